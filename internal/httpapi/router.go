package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vinkalabs/membot/internal/common"
	"github.com/vinkalabs/membot/internal/httpapi/handlers"
	"github.com/vinkalabs/membot/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)

	r.POST("/v1/messages", h.SendMessage)
	r.POST("/v1/messages/async", h.SendMessageAsync)
	r.GET("/v1/jobs/:id", h.GetJob)

	r.POST("/admin/login", h.AdminLogin)
	adminGroup := r.Group("/admin")
	adminGroup.Use(middleware.AuthRequired(h.Cfg.JWTSecret))
	adminGroup.POST("/tenants", h.UpsertTenant)
	adminGroup.POST("/bindings", h.BindUser)
	adminGroup.POST("/pro", h.SetPro)
	adminGroup.DELETE("/memory/:user_id", h.ResetMemory)

	return r
}
