package httpx

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// HealthHandlers reports process and dependency health.
type HealthHandlers struct {
	DB    *sql.DB
	Redis *redis.Client
}

// Healthz reports liveness plus dependency reachability.
// GET /healthz.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := map[string]string{}

	if h.DB != nil {
		if err := h.DB.PingContext(ctx); err != nil {
			checks["postgres"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks["postgres"] = "ok"
		}
	}
	if h.Redis != nil {
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks["redis"] = "ok"
		}
	}

	WriteJSON(w, status, map[string]any{
		"status": http.StatusText(status),
		"checks": checks,
	})
}
