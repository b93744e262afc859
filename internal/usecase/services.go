package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/BRAVO68WEB/echohook/internal/domain"
)

const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
)

// ParseSessionID checks that id has the identifier format used at session
// creation.
func ParseSessionID(id string) (uuid.UUID, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return uuid.UUID{}, domain.InvalidIdentifier(id)
	}
	return u, nil
}

// NewID returns a time-ordered identifier.
func NewID() (string, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

type SessionService struct {
	sessions   SessionRepository
	requests   RequestRepository
	ttlSeconds int
}

func NewSessionService(sessions SessionRepository, requests RequestRepository, ttlSeconds int) *SessionService {
	return &SessionService{sessions: sessions, requests: requests, ttlSeconds: ttlSeconds}
}

// TTLSeconds returns the lifetime given to new sessions.
func (s *SessionService) TTLSeconds() int { return s.ttlSeconds }

func (s *SessionService) Create(ctx context.Context) (domain.Session, error) {
	id, err := NewID()
	if err != nil {
		return domain.Session{}, err
	}
	return s.sessions.CreateSession(ctx, id, s.ttlSeconds)
}

func (s *SessionService) Get(ctx context.Context, id string) (domain.Session, bool, error) {
	if _, err := ParseSessionID(id); err != nil {
		return domain.Session{}, false, err
	}
	return s.sessions.GetSession(ctx, id)
}

// Require validates id and fails with ErrSessionNotFound unless the session
// currently exists.
func (s *SessionService) Require(ctx context.Context, id string) error {
	if _, err := ParseSessionID(id); err != nil {
		return err
	}
	ok, err := s.sessions.SessionExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrSessionNotFound
	}
	return nil
}

// History is one page of a session's captured requests, newest first.
type History struct {
	SessionID     string                   `json:"session_id"`
	TotalRequests int                      `json:"total_requests"`
	Requests      []domain.CapturedRequest `json:"requests"`
}

// ClampLimit bounds a requested page size to [1, MaxHistoryLimit].
func ClampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}

func (s *SessionService) History(ctx context.Context, id string, limit, offset int) (History, error) {
	if err := s.Require(ctx, id); err != nil {
		return History{}, err
	}
	if offset < 0 {
		offset = 0
	}
	reqs, err := s.requests.GetRequests(ctx, id, ClampLimit(limit), offset)
	if err != nil {
		return History{}, err
	}
	total, err := s.requests.GetRequestCount(ctx, id)
	if err != nil {
		return History{}, err
	}
	if reqs == nil {
		reqs = []domain.CapturedRequest{}
	}
	return History{SessionID: id, TotalRequests: total, Requests: reqs}, nil
}
