package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gaht-identity/internal/core/server"
	"gaht-identity/internal/core/token"
	"gaht-identity/internal/transport/http/handler"
	mdw "gaht-identity/internal/transport/http/middleware"
)

// RoleAdmin guards the whole management surface.
const RoleAdmin = "Admin"

func NewAdminEngine(l *zap.Logger, adminH *handler.AdminHandler, iss *token.Issuer) *gin.Engine {
	r := server.NewRouter(l)

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin := r.Group("/admin/v1")
	admin.Use(mdw.AuthJWT(iss, RoleAdmin))

	admin.GET("/users", adminH.ListUsers)
	admin.POST("/users/:id/deactivate", adminH.DeactivateUser)
	admin.GET("/roles", adminH.ListRoles)
	admin.POST("/roles", adminH.CreateRole)

	return r
}
