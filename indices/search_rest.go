package indices

import (
	"net/http"

	"officeflow/session"

	"github.com/gin-gonic/gin"
)

func RegisterSearchHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/instance-search", middleWares...)
	g.GET("", HandleSearchInstances)
}

func HandleSearchInstances(c *gin.Context) {
	docs, err := SearchInstancesFunc(c.Query("q"), session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, docs)
}
