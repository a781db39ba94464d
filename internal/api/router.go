package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-slot-scheduling/internal/booking"
	"github.com/hackgods/clinic-slot-scheduling/internal/metrics"
	"github.com/hackgods/clinic-slot-scheduling/internal/slot"
)

type RouterConfig struct {
	Booking *booking.Service
	Store   slot.Store // nil when offline
	Redis   *redis.Client
	Metrics *metrics.Collector
	Log     *zap.Logger
	Env     string
	Version string
}

// NewRouter serves the read-only view of the slot calendar. Bookings and
// cancellations stay on the desk console.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))
	r.Use(MetricsMiddleware(cfg.Metrics))

	health := NewHealthHandler(cfg.Store, cfg.Redis, cfg.Booking.PendingCount, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	r.Route("/slots", func(r chi.Router) {
		r.Get("/occupied", listOccupiedHandler(cfg.Booking))
		r.Get("/insurance", listInsuranceHandler(cfg.Booking))
		r.Get("/available", listAvailableHandler(cfg.Booking))
		r.Get("/{date}/{time}", getSlotHandler(cfg.Booking))
	})

	return r
}
