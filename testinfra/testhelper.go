package testinfra

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"

	"officeflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
)

// BuildSecCtx builds a session for tests.
func BuildSecCtx(uid types.ID, perms ...string) *session.Session {
	return &session.Session{
		Token:    "test-token-" + uid.String(),
		Identity: session.Identity{ID: uid, Name: "user-" + uid.String()},
		Perms:    perms,
		Context:  context.Background(),
	}
}

// ExecuteRequest runs the request against the engine and collects the result.
func ExecuteRequest(req *http.Request, engine *gin.Engine) (int, string, *http.Response) {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	resp := w.Result()
	bodyBytes, _ := ioutil.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode, string(bodyBytes), resp
}
