// Package http wires the gin router.
package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/juanmaabanto/ms-identity/internal/config"
	"github.com/juanmaabanto/ms-identity/internal/http/handler"
	"github.com/juanmaabanto/ms-identity/internal/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(
	cfg config.Config,
	account *handler.AccountHandler,
	authorize *handler.AuthorizeHandler,
	users *handler.UsersHandler,
	sessions *middleware.Session,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(nil))
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(sessions.Load)

	r.POST("/signin", account.SignIn)
	r.POST("/signin/user/lookup", account.Lookup)
	r.GET("/signout", account.SignOut)
	r.POST("/signout", account.SignOut)

	oauth := r.Group("/oauth")
	{
		oauth.GET("/check", sessions.Revalidated, account.Check)
	}

	connect := r.Group("/connect")
	{
		connect.POST("/authorize", sessions.Require, authorize.Accept)
	}

	api := r.Group("/api/v1")
	{
		api.POST("/users", users.Register)
	}

	return r
}
