package usecase

import (
	"context"

	"github.com/BRAVO68WEB/echohook/internal/domain"
)

// SessionRepository creates and probes sessions. Sessions expire through the
// store TTL; an expired session is indistinguishable from one that never
// existed.
type SessionRepository interface {
	CreateSession(ctx context.Context, id string, ttlSeconds int) (domain.Session, error)
	GetSession(ctx context.Context, id string) (domain.Session, bool, error)
	SessionExists(ctx context.Context, id string) (bool, error)
}

// RequestRepository is the append-ordered archive of captured requests.
// SaveRequest publishes to live subscribers once the durable write succeeds.
type RequestRepository interface {
	SaveRequest(ctx context.Context, sessionID string, req domain.CapturedRequest, ttlSeconds int) error
	GetRequests(ctx context.Context, sessionID string, limit, offset int) ([]domain.CapturedRequest, error)
	GetRequestCount(ctx context.Context, sessionID string) (int, error)
}

// HealthChecker probes the backing store connection.
type HealthChecker interface {
	HealthCheck(ctx context.Context) (bool, error)
}

// DiscoveryRepository advertises the public API URL for frontends.
type DiscoveryRepository interface {
	SetAPIURL(ctx context.Context, url string) error
}

// Store is the full Store Client contract.
type Store interface {
	SessionRepository
	RequestRepository
	HealthChecker
	DiscoveryRepository
	Close() error
}

// Publisher hands a captured request to live subscribers.
type Publisher interface {
	Publish(sessionID string, req domain.CapturedRequest) (int, error)
}
