package attachment

import (
	"io"
	"net/http"

	"officeflow/misc"
	"officeflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
)

var (
	APIInstanceAttachmentsRoot = "/v1/workflow-instances"

	DetailAttachmentFunc = DetailAttachment
	CreateAttachmentFunc = CreateAttachment
	SignAttachmentFunc   = SignAttachment
)

func RegisterAttachmentAPI(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group(APIInstanceAttachmentsRoot, middleWares...)
	g.GET(":instanceId/attachments/:name", HandleGetAttachment)
	g.POST(":instanceId/attachments", HandleCreateAttachment)
	g.GET(":instanceId/attachments/:name/sign", HandleSignAttachment)
}

func HandleGetAttachment(c *gin.Context) {
	id, err := types.ParseID(c.Param("instanceId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("instanceId") + "'"})
		return
	}

	bytes, err := DetailAttachmentFunc(id, c.Param("name"), session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}

	c.Data(http.StatusOK, "application/octet-stream", bytes)
}

func HandleCreateAttachment(c *gin.Context) {
	id, err := types.ParseID(c.Param("instanceId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("instanceId") + "'"})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		panic(err)
	}
	src, err := file.Open()
	if err != nil {
		panic(err)
	}
	defer func(src io.ReadCloser) {
		_ = src.Close()
	}(src)

	if err := CreateAttachmentFunc(id, file.Filename, src, session.ExtractSessionFromGinContext(c)); err != nil {
		panic(err)
	}

	c.JSON(http.StatusOK, gin.H{})
}

func HandleSignAttachment(c *gin.Context) {
	id, err := types.ParseID(c.Param("instanceId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("instanceId") + "'"})
		return
	}

	url, err := SignAttachmentFunc(id, c.Param("name"), session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}
