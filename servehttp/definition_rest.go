package servehttp

import (
	"net/http"

	"officeflow/bizerror"
	"officeflow/domain"
	"officeflow/domain/flow"
	"officeflow/misc"
	"officeflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func RegisterDefinitionHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/workflow-definitions", middleWares...)

	handler := &definitionHandler{
		validator: validator.New(),
	}

	g.POST("", handler.handleCreateDefinition)
	g.GET("", handler.handleQueryDefinitions)
	g.GET(":definitionId", handler.handleDetailDefinition)
	g.PUT(":definitionId", handler.handleUpdateDefinition)
	g.POST(":definitionId/activation", handler.handleActivateDefinition)
	g.DELETE(":definitionId/activation", handler.handleDeactivateDefinition)
}

type definitionHandler struct {
	validator *validator.Validate
}

func (h *definitionHandler) handleQueryDefinitions(c *gin.Context) {
	query := domain.WorkflowDefinitionQuery{}
	_ = c.MustBindWith(&query, binding.Query)

	definitions, err := flow.QueryDefinitionsFunc(&query, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, definitions)
}

func (h *definitionHandler) handleCreateDefinition(c *gin.Context) {
	creation := flow.DefinitionCreation{}
	err := c.ShouldBindBodyWith(&creation, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(creation); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	definition, err := flow.CreateDefinitionFunc(&creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, definition)
}

func (h *definitionHandler) handleDetailDefinition(c *gin.Context) {
	id, err := types.ParseID(c.Param("definitionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("definitionId") + "'"})
		return
	}

	definition, err := flow.DetailDefinitionFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, definition)
}

func (h *definitionHandler) handleUpdateDefinition(c *gin.Context) {
	id, err := types.ParseID(c.Param("definitionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("definitionId") + "'"})
		return
	}

	updating := flow.DefinitionUpdating{}
	err = c.ShouldBindBodyWith(&updating, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(updating); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	definition, err := flow.UpdateDefinitionFunc(id, &updating, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, definition)
}

func (h *definitionHandler) handleActivateDefinition(c *gin.Context) {
	id, err := types.ParseID(c.Param("definitionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("definitionId") + "'"})
		return
	}

	definition, err := flow.ActivateDefinitionFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, definition)
}

func (h *definitionHandler) handleDeactivateDefinition(c *gin.Context) {
	id, err := types.ParseID(c.Param("definitionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("definitionId") + "'"})
		return
	}

	if err := flow.DeactivateDefinitionFunc(id, session.ExtractSessionFromGinContext(c)); err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.AbortWithStatus(http.StatusNoContent)
}
