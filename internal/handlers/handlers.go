package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"otp-gateway/internal/gateway"
	"otp-gateway/internal/scheduler"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers contains all HTTP handlers
type Handlers struct {
	gateway   *gateway.Service
	scheduler *scheduler.Scheduler
	ledger    Pinger
	gatherer  prometheus.Gatherer
	mode      string
}

// NewHandlers creates new HTTP handlers. ledger may be nil when the ledger has no health check.
func NewHandlers(g *gateway.Service, s *scheduler.Scheduler, ledger Pinger, gatherer prometheus.Gatherer, mode string) *Handlers {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Handlers{gateway: g, scheduler: s, ledger: ledger, gatherer: gatherer, mode: mode}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.POST("/get-otp", h.GetOTP)
	router.POST("/sync-rotated-pins", h.SyncRotatedPins)

	router.GET("/healthz", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1")
	{
		api.GET("/scheduler/status", h.GetSchedulerStatus)
		api.POST("/scheduler/run-once", h.RunOnce)
	}
}
