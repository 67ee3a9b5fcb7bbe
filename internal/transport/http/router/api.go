package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gaht-identity/internal/core/token"
	"gaht-identity/internal/transport/http/handler"
	mdw "gaht-identity/internal/transport/http/middleware"
)

// NewAPIEngine assembles the public surface: login and registration are open,
// /me sits behind token verification.
func NewAPIEngine(l *zap.Logger, authH *handler.AuthHandler, iss *token.Issuer) *gin.Engine {
	r := gin.New()

	r.Use(
		mdw.RequestID(),
		mdw.RateLimit(200, 400),
		mdw.ConcurrencyLimit(300),
		mdw.MaxBodyBytes(1<<20),
		mdw.Timeout(10*time.Second),
		mdw.SimpleRecovery(),
		mdw.Metrics(),
		mdw.AccessLog(l),
		cors.Default(),
	)

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })

	api := r.Group("/api/v1")
	api.POST("/auth/login", authH.Login)
	api.POST("/auth/register", authH.Register)

	authed := api.Group("")
	authed.Use(mdw.AuthJWT(iss, ""))
	authed.GET("/me", authH.Me)

	return r
}
