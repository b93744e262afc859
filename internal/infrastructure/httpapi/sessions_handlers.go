package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/BRAVO68WEB/echohook/internal/live"
	"github.com/BRAVO68WEB/echohook/internal/usecase"
)

type createSessionResponse struct {
	SessionID    string `json:"session_id"`
	IngestionURL string `json:"ingestion_url"`
	StreamURL    string `json:"stream_url"`
	RequestsURL  string `json:"requests_url"`
	ExpiresAt    string `json:"expires_at"`
}

func (d *Deps) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := d.Sessions.Create(r.Context())
	if err != nil {
		writeDomainError(w, d.Logger, err)
		return
	}
	d.Metrics.SessionsCreatedTotal.Inc()
	d.Logger.Info().Str("session_id", sess.ID).Int("ttl_seconds", d.Sessions.TTLSeconds()).Msg("created session")
	base := d.Cfg.ListenURL
	writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID:    sess.ID,
		IngestionURL: base + "/i/" + sess.ID,
		StreamURL:    base + "/s/" + sess.ID,
		RequestsURL:  base + "/r/" + sess.ID,
		ExpiresAt:    sess.ExpiresAt,
	})
}

// queryInt parses a non-negative integer query parameter, falling back to
// def when absent or malformed.
func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func (d *Deps) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit := queryInt(r, "limit", usecase.DefaultHistoryLimit)
	offset := queryInt(r, "offset", 0)
	h, err := d.Sessions.History(r.Context(), id, limit, offset)
	if err != nil {
		writeDomainError(w, d.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (d *Deps) newStream(id string) *live.Stream {
	sub := d.Live.Subscribe(id)
	opts := []live.StreamOption{live.WithLogger(d.Logger)}
	if d.PingInterval > 0 {
		opts = append(opts, live.WithPingInterval(d.PingInterval))
	}
	return live.NewStream(id, sub, opts...)
}

// handleStream serves the session's live feed as server-sent events. The
// session is checked once up front; the stream then runs until the client
// goes away.
func (d *Deps) handleStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := d.Sessions.Require(r.Context(), id); err != nil {
		writeDomainError(w, d.Logger, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", "stream unsupported")
		return
	}
	// Streams outlive the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
	// Subscribe before the headers go out so nothing captured after the
	// client sees 200 is missed.
	stream := d.newStream(id)
	defer stream.Close()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	if origin := allowedOrigin(d.Cfg, r); origin != "" {
		h.Set("Access-Control-Allow-Origin", origin)
		if origin != "*" {
			h.Set("Access-Control-Allow-Credentials", "true")
		}
	}
	h.Set("Access-Control-Allow-Headers", "Cache-Control")
	h.Set("Access-Control-Expose-Headers", "Content-Type")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	gauge := d.Metrics.StreamSubscribers.WithLabelValues("sse")
	gauge.Inc()
	defer gauge.Dec()
	d.Logger.Info().Str("session_id", id).Int("receivers", d.Live.ReceiverCount(id)).Msg("stream subscriber connected")

	ctx := r.Context()
	for {
		f, err := stream.Next(ctx)
		if err != nil {
			if !errors.Is(err, ctx.Err()) {
				d.Logger.Warn().Err(err).Str("session_id", id).Msg("stream ended")
			}
			break
		}
		if err := writeSSE(w, flusher, f); err != nil {
			break
		}
	}
	d.Logger.Info().Str("session_id", id).Uint64("dropped", stream.Subscription().Dropped()).Msg("stream subscriber disconnected")
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, f live.Frame) error {
	if _, err := w.Write(f.Encode()); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
