package indices

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"officeflow/bizerror"
	"officeflow/domain"
	"officeflow/session"
	"officeflow/testinfra"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/gomega"
)

func TestHandleSearchInstances(t *testing.T) {
	RegisterTestingT(t)

	router := gin.Default()
	router.Use(bizerror.ErrorHandling())
	RegisterSearchHandler(router)

	t.Run("should return matched instance documents", func(t *testing.T) {
		defer func() { SearchInstancesFunc = SearchInstances }()
		SearchInstancesFunc = func(keyword string, s *session.Session) ([]InstanceDocument, error) {
			Expect(keyword).To(Equal("trip"))
			return []InstanceDocument{{WorkflowInstanceDetail: domain.WorkflowInstanceDetail{
				WorkflowInstance: domain.WorkflowInstance{ID: 100, Title: "business trip",
					Status: domain.InstanceStatusProcessing},
			}}}, nil
		}

		req := httptest.NewRequest(http.MethodGet, "/v1/instance-search?q=trip", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`[{"id":"100","definitionId":"0","businessKey":"","title":"business trip",
			"formData":null,"currentNodeId":"","status":"processing","initiatorId":"0","startTime":null,
			"endTime":null,"priority":0,"dueDate":null,"createTime":"0001-01-01T00:00:00Z","history":null}]`))
	})

	t.Run("should handle search error", func(t *testing.T) {
		defer func() { SearchInstancesFunc = SearchInstances }()
		SearchInstancesFunc = func(keyword string, s *session.Session) ([]InstanceDocument, error) {
			return nil, errors.New("error on search instances")
		}

		req := httptest.NewRequest(http.MethodGet, "/v1/instance-search?q=trip", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusInternalServerError))
		Expect(body).To(MatchJSON(`{"code":"common.internal_server_error","message":"error on search instances","data":null}`))
	})
}
