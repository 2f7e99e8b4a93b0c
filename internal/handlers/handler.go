package handlers

import (
	"irrigation_monitor/internal/logger"
	"irrigation_monitor/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
	gatherer prometheus.Gatherer
}

// NewHandler constructs a new HTTP handler with dependencies.
// A nil gatherer serves the default Prometheus registry.
func NewHandler(services *service.Service, log *logger.Logger, gatherer prometheus.Gatherer) *Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Handler{services: services, log: log, gatherer: gatherer}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// Zone status stream (HTTP upgrade) on the same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.subjectMiddleware)
	{
		h.registerZoneRoutes(api)
		h.registerScheduleRoutes(api)
		h.registerEventRoutes(api)
	}
}

func (h *Handler) registerZoneRoutes(api *gin.RouterGroup) {
	zones := api.Group("/zones")
	{
		zones.GET("", h.getZones)
		zones.GET("/:id", h.getZone)
		// Body example: {"duration":"00:20:00"}
		zones.POST("/:id/timer", h.commandAudit, h.startTimer)
		zones.DELETE("/:id/timer", h.commandAudit, h.stopTimer)
	}
}

func (h *Handler) registerScheduleRoutes(api *gin.RouterGroup) {
	sched := api.Group("/schedule")
	{
		sched.GET("/next", h.getNextRuns)
		sched.POST("/refresh", h.refreshSchedule)
	}
}

func (h *Handler) registerEventRoutes(api *gin.RouterGroup) {
	api.GET("/events", h.getEvents)
}
