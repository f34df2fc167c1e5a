// README: HTTP route registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"usta/internal/auth"
	"usta/internal/http/handlers"
	"usta/internal/http/middleware"
	"usta/internal/modules/location"
	"usta/internal/modules/matching"
	"usta/internal/modules/order"
	"usta/internal/push"
	"usta/internal/types"
)

type RouterDeps struct {
	Verifier auth.TokenVerifier
	Order    *order.Service
	Matcher  *matching.Service
	Location *location.Service
	Registry *push.Registry
	Log      *zap.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log), middleware.Logging(deps.Log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	orderHandler := handlers.NewOrderHandler(deps.Order, deps.Matcher, deps.Location.Store())
	locationHandler := handlers.NewLocationHandler(deps.Location)
	wsHandler := handlers.NewWSHandler(deps.Registry, deps.Order, deps.Location, deps.Log)

	authed := r.Group("/", middleware.Auth(deps.Verifier))

	client := authed.Group("/", middleware.RequireRole(types.RoleClient))
	client.POST("/api/orders", orderHandler.Create)
	client.POST("/api/orders/:id/dispatch", orderHandler.Dispatch)
	client.GET("/api/orders/:id/workers", orderHandler.Workers)
	client.GET("/api/orders/:id/accepted", orderHandler.Accepted)
	client.GET("/api/clients/orders", orderHandler.History)
	client.GET("/api/clients/stats", orderHandler.ClientStats)
	client.GET("/ws/client", wsHandler.Client)

	worker := authed.Group("/", middleware.RequireRole(types.RoleWorker))
	worker.POST("/api/location", locationHandler.Ping)
	worker.GET("/api/workers/stats", orderHandler.WorkerStats)
	worker.GET("/ws/worker", wsHandler.Worker)

	authed.GET("/api/orders/:id", orderHandler.Get)

	return r
}
