package servehttp

import (
	"net/http"

	"officeflow/bizerror"
	"officeflow/domain"
	"officeflow/domain/org"
	"officeflow/misc"
	"officeflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func RegisterDepartmentHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/departments", middleWares...)

	handler := &departmentHandler{
		validator: validator.New(),
	}

	g.POST("", handler.handleCreateDepartment)
	g.GET("", handler.handleQueryDepartments)
	g.GET(":departmentId", handler.handleDetailDepartment)
	g.PUT(":departmentId", handler.handleUpdateDepartment)
}

type departmentHandler struct {
	validator *validator.Validate
}

func (h *departmentHandler) handleQueryDepartments(c *gin.Context) {
	query := domain.DepartmentQuery{}
	_ = c.MustBindWith(&query, binding.Query)

	departments, err := org.QueryDepartmentsFunc(&query, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, departments)
}

func (h *departmentHandler) handleCreateDepartment(c *gin.Context) {
	creation := org.DepartmentCreation{}
	err := c.ShouldBindBodyWith(&creation, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(creation); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	department, err := org.CreateDepartmentFunc(&creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, department)
}

func (h *departmentHandler) handleDetailDepartment(c *gin.Context) {
	id, err := types.ParseID(c.Param("departmentId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("departmentId") + "'"})
		return
	}

	department, err := org.DetailDepartmentFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, department)
}

func (h *departmentHandler) handleUpdateDepartment(c *gin.Context) {
	id, err := types.ParseID(c.Param("departmentId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("departmentId") + "'"})
		return
	}

	updating := org.DepartmentUpdating{}
	err = c.ShouldBindBodyWith(&updating, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(updating); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	department, err := org.UpdateDepartmentFunc(id, &updating, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, department)
}
