package usecase

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/BRAVO68WEB/echohook/internal/domain"
	"github.com/BRAVO68WEB/echohook/pkg/shared/redact"
)

// Inbound is what the transport hands over for one call to an ingestion
// endpoint.
type Inbound struct {
	Method     string
	Path       string
	RawQuery   string
	Header     map[string][]string
	Host       string
	Body       []byte
	RemoteAddr string
}

type CaptureLimits struct {
	MaxBodySize           int
	MaxRequestsPerSession int
	TTLSeconds            int
}

// CaptureService admits a single inbound request: validate, size check,
// existence check, rate check, archive (which publishes), acknowledge.
type CaptureService struct {
	sessions SessionRepository
	requests RequestRepository
	limits   CaptureLimits
	logger   zerolog.Logger
	now      func() time.Time
	newID    func() (string, error)
}

func NewCaptureService(sessions SessionRepository, requests RequestRepository, limits CaptureLimits, logger *zerolog.Logger) *CaptureService {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "capture").Logger()
	}
	return &CaptureService{
		sessions: sessions,
		requests: requests,
		limits:   limits,
		logger:   l,
		now:      time.Now,
		newID:    NewID,
	}
}

// Ingest runs the pipeline for sessionID. The count check and the write are
// not atomic, so concurrent captures against one session may overshoot
// MaxRequestsPerSession slightly.
func (s *CaptureService) Ingest(ctx context.Context, sessionID string, in Inbound) (domain.CapturedRequest, error) {
	if _, err := ParseSessionID(sessionID); err != nil {
		return domain.CapturedRequest{}, err
	}
	if limit := s.limits.MaxBodySize; limit > 0 && len(in.Body) > limit {
		return domain.CapturedRequest{}, &domain.PayloadTooLargeError{Size: len(in.Body), Limit: limit}
	}
	ok, err := s.sessions.SessionExists(ctx, sessionID)
	if err != nil {
		return domain.CapturedRequest{}, err
	}
	if !ok {
		return domain.CapturedRequest{}, domain.ErrSessionNotFound
	}
	if limit := s.limits.MaxRequestsPerSession; limit > 0 {
		count, err := s.requests.GetRequestCount(ctx, sessionID)
		if err != nil {
			return domain.CapturedRequest{}, err
		}
		if count >= limit {
			return domain.CapturedRequest{}, &domain.RateLimitError{Limit: limit}
		}
	}

	id, err := s.newID()
	if err != nil {
		return domain.CapturedRequest{}, err
	}
	req := s.build(id, in)
	if err := s.requests.SaveRequest(ctx, sessionID, req, s.limits.TTLSeconds); err != nil {
		return domain.CapturedRequest{}, err
	}
	s.logger.Debug().
		Str("session_id", sessionID).
		Str("request_id", req.ID).
		Str("method", req.Method).
		Int("content_length", req.ContentLength).
		Interface("headers", redact.Headers(req.Headers)).
		Msg("captured request")
	return req, nil
}

func (s *CaptureService) build(id string, in Inbound) domain.CapturedRequest {
	headers := FlattenHeaders(in.Header)
	if in.Host != "" {
		headers["Host"] = in.Host
	}
	return domain.CapturedRequest{
		ID:            id,
		Method:        in.Method,
		Path:          in.Path,
		QueryParams:   ParseQuery(in.RawQuery),
		Headers:       headers,
		Body:          strings.ToValidUTF8(string(in.Body), "\uFFFD"),
		IPAddress:     SourceAddress(in.Header, in.RemoteAddr),
		UserAgent:     firstNonEmpty(lastValue(in.Header, "User-Agent"), "unknown"),
		Timestamp:     domain.FormatTimestamp(s.now()),
		ContentLength: len(in.Body),
	}
}

// ParseQuery splits a raw query string into key/value pairs without
// decoding. "a" and "a=" both map a to "". Later keys overwrite earlier ones.
func ParseQuery(raw string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		out[k] = v
	}
	return out
}

// FlattenHeaders keeps the last value of every header name.
func FlattenHeaders(h map[string][]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		if len(vs) == 0 {
			continue
		}
		out[k] = vs[len(vs)-1]
	}
	return out
}

// SourceAddress picks the client address: X-Real-IP, then the first
// X-Forwarded-For entry, then the peer host.
func SourceAddress(h map[string][]string, remoteAddr string) string {
	if ip := strings.TrimSpace(firstValue(h, "X-Real-IP")); ip != "" {
		return ip
	}
	if fwd := firstValue(h, "X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if remoteAddr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

func firstValue(h map[string][]string, key string) string {
	vs := lookup(h, key)
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

func lastValue(h map[string][]string, key string) string {
	vs := lookup(h, key)
	if len(vs) == 0 {
		return ""
	}
	return vs[len(vs)-1]
}

// lookup tries the canonical form first, then a case-insensitive scan for
// maps that were not built by net/http.
func lookup(h map[string][]string, key string) []string {
	if vs, ok := h[key]; ok {
		return vs
	}
	for k, vs := range h {
		if strings.EqualFold(k, key) {
			return vs
		}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
