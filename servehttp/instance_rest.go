package servehttp

import (
	"net/http"

	"officeflow/bizerror"
	"officeflow/domain"
	"officeflow/domain/instance"
	"officeflow/misc"
	"officeflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func RegisterInstanceHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	handler := &instanceHandler{
		validator: validator.New(),
	}

	g := r.Group("/v1/workflow-instances", middleWares...)
	g.POST("", handler.handleCreateInstance)
	g.GET("", handler.handleQueryInstances)
	g.GET(":instanceId", handler.handleDetailInstance)
	g.POST(":instanceId/submission", handler.handleSubmitInstance)
	g.POST(":instanceId/approval", handler.handleApproveNode)
	g.POST(":instanceId/rejection", handler.handleRejectNode)
	g.POST(":instanceId/cancellation", handler.handleCancelInstance)

	p := r.Group("/v1/pending-nodes", middleWares...)
	p.GET("", handler.handleQueryPendingNodes)
}

type instanceHandler struct {
	validator *validator.Validate
}

func (h *instanceHandler) handleCreateInstance(c *gin.Context) {
	creation := instance.InstanceCreation{}
	err := c.ShouldBindBodyWith(&creation, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(creation); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	record, err := instance.CreateInstanceFunc(&creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h *instanceHandler) handleQueryInstances(c *gin.Context) {
	query := domain.WorkflowInstanceQuery{}
	_ = c.MustBindWith(&query, binding.Query)

	records, err := instance.QueryInstancesFunc(&query, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, records)
}

func (h *instanceHandler) handleDetailInstance(c *gin.Context) {
	id, err := types.ParseID(c.Param("instanceId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("instanceId") + "'"})
		return
	}

	detail, err := instance.DetailInstanceFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *instanceHandler) handleSubmitInstance(c *gin.Context) {
	id, err := types.ParseID(c.Param("instanceId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("instanceId") + "'"})
		return
	}

	record, err := instance.SubmitInstanceFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *instanceHandler) handleApproveNode(c *gin.Context) {
	id, err := types.ParseID(c.Param("instanceId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("instanceId") + "'"})
		return
	}

	decision := instance.DecisionRequest{}
	err = c.ShouldBindBodyWith(&decision, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(decision); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	record, err := instance.ApproveNodeFunc(id, &decision, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *instanceHandler) handleRejectNode(c *gin.Context) {
	id, err := types.ParseID(c.Param("instanceId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("instanceId") + "'"})
		return
	}

	decision := instance.DecisionRequest{}
	err = c.ShouldBindBodyWith(&decision, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(decision); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	record, err := instance.RejectNodeFunc(id, &decision, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *instanceHandler) handleCancelInstance(c *gin.Context) {
	id, err := types.ParseID(c.Param("instanceId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("instanceId") + "'"})
		return
	}

	cancel := instance.CancelRequest{}
	err = c.ShouldBindBodyWith(&cancel, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(cancel); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	record, err := instance.CancelInstanceFunc(id, &cancel, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *instanceHandler) handleQueryPendingNodes(c *gin.Context) {
	entries, err := instance.QueryPendingNodesFunc(session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, entries)
}
