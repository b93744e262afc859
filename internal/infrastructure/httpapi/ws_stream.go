package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 5 * time.Second

var wsUpgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// handleWSStream delivers the same frames as the SSE endpoint over a
// WebSocket, one JSON text message per frame. Client messages are ignored;
// reads only detect the close.
func (d *Deps) handleWSStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := d.Sessions.Require(r.Context(), id); err != nil {
		writeDomainError(w, d.Logger, err)
		return
	}
	c, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer c.Close()

	stream := d.newStream(id)
	defer stream.Close()
	gauge := d.Metrics.StreamSubscribers.WithLabelValues("websocket")
	gauge.Inc()
	defer gauge.Dec()
	d.Logger.Info().Str("session_id", id).Str("transport", "websocket").Msg("stream subscriber connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		_ = c.SetReadDeadline(time.Time{})
		for {
			// keepalive reads to detect client close
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		f, err := stream.Next(ctx)
		if err != nil {
			break
		}
		data, err := json.Marshal(f)
		if err != nil {
			continue
		}
		_ = c.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			break
		}
	}
	_ = c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	d.Logger.Info().Str("session_id", id).Str("transport", "websocket").Uint64("dropped", stream.Subscription().Dropped()).Msg("stream subscriber disconnected")
}
