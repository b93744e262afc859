package live

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/BRAVO68WEB/echohook/internal/domain"
)

// PingInterval is the keep-alive cadence of a live stream.
const PingInterval = 30 * time.Second

const (
	EventRequest = "request"
	EventPing    = "ping"
)

// Frame is one outbound stream event.
type Frame struct {
	Event string
	Data  json.RawMessage
}

// Encode renders the frame in event-stream wire format.
func (f Frame) Encode() []byte {
	b := make([]byte, 0, len(f.Event)+len(f.Data)+16)
	b = append(b, "event: "...)
	b = append(b, f.Event...)
	b = append(b, "\ndata: "...)
	b = append(b, f.Data...)
	b = append(b, "\n\n"...)
	return b
}

// MarshalJSON renders the frame as {"event": ..., "data": ...} for
// message-oriented transports.
func (f Frame) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}{f.Event, f.Data})
}

// StreamOption configures a Stream.
type StreamOption func(*Stream)

// WithPingInterval overrides PingInterval.
func WithPingInterval(d time.Duration) StreamOption {
	return func(s *Stream) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLogger attaches a logger for lag and encoding warnings.
func WithLogger(l *zerolog.Logger) StreamOption {
	return func(s *Stream) {
		if l != nil {
			s.logger = *l
		}
	}
}

// WithClock overrides the timestamp source of ping frames.
func WithClock(now func() time.Time) StreamOption {
	return func(s *Stream) { s.now = now }
}

// Stream merges an initial ping, the subscriber's captured requests and a
// periodic ping into one sequence of frames. The first frame is always a
// ping. After that, frames are returned in the order their source becomes
// ready. The sequence never ends on its own; it ends when ctx passed to Next
// is done or the caller stops reading and calls Close.
type Stream struct {
	sub       *Subscription
	sessionID string
	interval  time.Duration
	ticker    *time.Ticker
	started   bool
	logger    zerolog.Logger
	now       func() time.Time
}

// NewStream wraps sub. The heartbeat ticker starts immediately.
func NewStream(sessionID string, sub *Subscription, opts ...StreamOption) *Stream {
	s := &Stream{
		sub:       sub,
		sessionID: sessionID,
		interval:  PingInterval,
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ticker = time.NewTicker(s.interval)
	return s
}

// Next blocks until the next frame is ready or ctx is done.
func (s *Stream) Next(ctx context.Context) (Frame, error) {
	if !s.started {
		s.started = true
		return s.ping(), nil
	}
	for {
		// Heartbeats stay on cadence even when requests never stop arriving.
		select {
		case <-s.ticker.C:
			return s.ping(), nil
		default:
		}
		req, wake, err := s.sub.TryRecv()
		switch {
		case err == nil:
			f, ok := s.request(req)
			if !ok {
				continue
			}
			return f, nil
		case errors.Is(err, errEmpty):
		default:
			var lagged *LaggedError
			if errors.As(err, &lagged) {
				s.logger.Warn().Str("session_id", s.sessionID).Uint64("lagged", lagged.Missed).Msg("stream receiver lagged, messages dropped")
				continue
			}
			return Frame{}, err
		}
		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-s.ticker.C:
			return s.ping(), nil
		case <-wake:
		}
	}
}

// Close stops the heartbeat and releases the subscription.
func (s *Stream) Close() {
	s.ticker.Stop()
	s.sub.Close()
}

// Subscription returns the underlying subscription.
func (s *Stream) Subscription() *Subscription { return s.sub }

func (s *Stream) ping() Frame {
	data, _ := json.Marshal(map[string]string{"timestamp": domain.FormatTimestamp(s.now())})
	return Frame{Event: EventPing, Data: data}
}

func (s *Stream) request(req domain.CapturedRequest) (Frame, bool) {
	data, err := json.Marshal(req)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", s.sessionID).Str("request_id", req.ID).Msg("encode request frame")
		return Frame{}, false
	}
	s.logger.Debug().Str("session_id", s.sessionID).Str("request_id", req.ID).Str("method", req.Method).Msg("sending request frame")
	return Frame{Event: EventRequest, Data: data}, true
}
