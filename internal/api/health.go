package api

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/clinic-slot-scheduling/internal/slot"
)

type HealthHandler struct {
	store   slot.Store // nil when offline
	redis   *redis.Client
	pending func() (int, error)
	env     string
	version string
}

func NewHealthHandler(store slot.Store, redis *redis.Client, pending func() (int, error), env, version string) *HealthHandler {
	return &HealthHandler{
		store:   store,
		redis:   redis,
		pending: pending,
		env:     env,
		version: version,
	}
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Env     string `json:"env,omitempty"`
}

type ReadinessResponse struct {
	Status          string            `json:"status"`
	Version         string            `json:"version,omitempty"`
	Env             string            `json:"env,omitempty"`
	Dependencies    map[string]string `json:"dependencies"`
	PendingBookings int               `json:"pending_bookings"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	resp := LivenessResponse{
		Status:  "ok",
		Version: h.version,
		Env:     h.env,
	}
	writeJSON(w, http.StatusOK, resp)
}

// Readiness reports the store and Redis. A missing store is an error; a
// missing or failing Redis only degrades, since the lock is optional.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := make(map[string]string)
	status := "ok"

	switch {
	case h.store == nil:
		deps["store"] = "offline"
		status = "error"
	default:
		storeCtx, storeCancel := context.WithTimeout(ctx, 1*time.Second)
		err := h.store.Ping(storeCtx)
		storeCancel()
		if err != nil {
			deps["store"] = "down"
			status = "error"
		} else {
			deps["store"] = "ok"
		}
	}

	if h.redis == nil {
		deps["redis"] = "disabled"
	} else {
		redisCtx, redisCancel := context.WithTimeout(ctx, 1*time.Second)
		err := h.redis.Ping(redisCtx).Err()
		redisCancel()
		if err != nil {
			deps["redis"] = "down"
			if status == "ok" {
				status = "degraded"
			}
		} else {
			deps["redis"] = "ok"
		}
	}

	resp := ReadinessResponse{
		Status:       status,
		Version:      h.version,
		Env:          h.env,
		Dependencies: deps,
	}
	if h.pending != nil {
		if n, err := h.pending(); err == nil {
			resp.PendingBookings = n
		} else {
			deps["fallback_queue"] = "unreadable"
		}
	}

	httpStatus := http.StatusOK
	if status == "error" {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, resp)
}
