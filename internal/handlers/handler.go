package handlers

import (
	"net/http"
	"time"

	"energy_console/internal/logger"
	"energy_console/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// HTTPObserver records served requests. May be nil.
type HTTPObserver interface {
	ObserveHTTP(route string, status int, elapsed time.Duration)
	Handler() http.Handler
}

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
	metrics  HTTPObserver
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger, metrics HTTPObserver) *Handler {
	return &Handler{services: services, log: log, metrics: metrics}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.accessLog)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", h.health)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	h.registerAPIRoutes(router)

	// Snapshot stream over WebSocket on the same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.GET("/state", h.getState)
		api.GET("/series/:name", h.getSeries)
		api.GET("/logs", h.getLogs)
		h.registerAlertRoutes(api)
		h.registerControlRoutes(api)
	}
}

func (h *Handler) registerAlertRoutes(api *gin.RouterGroup) {
	alerts := api.Group("/alerts")
	{
		alerts.GET("", h.getAlerts)
		alerts.DELETE("", h.clearAlerts)
	}
}

func (h *Handler) registerControlRoutes(api *gin.RouterGroup) {
	// Body example: {"mode":"manual"}
	api.POST("/mode", h.setMode)
	api.POST("/override", h.toggleOverride)

	devices := api.Group("/devices/:room/:device")
	{
		// Body example: {"action":"on"}
		devices.POST("", h.commandDevice)
		devices.POST("/toggle", h.toggleDevice)
	}
}
