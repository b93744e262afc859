package httpapi

import (
	"context"
	"net/http"
	"time"

	obs "github.com/BRAVO68WEB/echohook/internal/infrastructure/observability"
)

const healthProbeTimeout = 2 * time.Second

type healthResponse struct {
	Status        string `json:"status"`
	Redis         string `json:"redis"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	SSEChannels   int    `json:"sse_channels"`
}

// handleHealth always answers 200; a failed store probe reports degraded.
func (d *Deps) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()
	ok, err := d.Store.HealthCheck(ctx)
	healthy := err == nil && ok
	resp := healthResponse{
		Status:        "healthy",
		Redis:         "connected",
		Version:       obs.Version,
		UptimeSeconds: int64(time.Since(d.StartedAt).Seconds()),
		SSEChannels:   d.Live.ChannelCount(),
	}
	if !healthy {
		resp.Status = "degraded"
		resp.Redis = "disconnected"
	}
	writeJSON(w, http.StatusOK, resp)
}
