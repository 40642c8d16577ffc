package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/friendsforever/server-go/internal/config"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]Check
	online func() int
}

func NewHealthHandler(checks map[string]Check, online func() int) *HealthHandler {
	return &HealthHandler{checks: checks, online: online}
}

// GET /health
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), config.DBPingTimeout)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			log.Warn().Err(err).Str("check", name).Msg("health check failed")
			results[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	body := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UnixMilli(),
		"checks":    results,
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	if h.online != nil {
		body["online"] = h.online()
	}

	writeJSON(w, status, body)
}
