package sessions

import (
	"net/http"
	"time"

	"officeflow/account"
	"officeflow/bizerror"
	"officeflow/persistence"
	"officeflow/session"

	"github.com/gin-gonic/gin"
)

func RegisterSessionHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/session", middleWares...)
	g.GET("", DetailSessionSecurityContext)
}

// DetailSessionSecurityContext refreshes and returns the caller's session,
// reloading role grants so permission changes apply without a new login.
func DetailSessionSecurityContext(c *gin.Context) {
	sec := session.ExtractSessionFromGinContext(c)
	if sec.Token == "" {
		panic(bizerror.ErrUnauthenticated)
	}

	now := time.Now()
	ttl := session.TokenExpiration - now.Sub(sec.SigningTime)
	if ttl <= 0 {
		panic(bizerror.ErrUnauthenticated)
	}

	db := persistence.ActiveDataSourceManager.GormDB(c.Request.Context())
	perms, err := account.LoadPerms(sec.Identity.ID, db)
	if err != nil {
		panic(err)
	}
	securityContext := session.Session{Token: sec.Token, Identity: sec.Identity, Perms: perms, SigningTime: now}
	session.TokenCache.Set(sec.Token, &securityContext, ttl)
	c.JSON(http.StatusOK, &securityContext)
}
