package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/BRAVO68WEB/echohook/internal/domain"
	"github.com/BRAVO68WEB/echohook/internal/live"
	"github.com/BRAVO68WEB/echohook/internal/usecase"
)

type sessionEntry struct {
	session   domain.Session
	expiresAt time.Time
}

type requestEntry struct {
	req       domain.CapturedRequest
	expiresAt time.Time
}

type indexEntry struct {
	id        string
	score     int64
	expiresAt time.Time
}

type sessionIndex struct {
	// entries are appended on write and sorted lazily on read.
	entries   []indexEntry
	sorted    bool
	expiresAt time.Time
}

// Store is a process-local Store Client with the same contract as the Redis
// one. Expiry is lazy: entries past their deadline are treated as absent and
// dropped on the next write.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	requests map[string]*requestEntry
	indexes  map[string]*sessionIndex
	apiURL   string

	publisher usecase.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

var _ usecase.Store = (*Store)(nil)

func NewStore(publisher usecase.Publisher, logger *zerolog.Logger) *Store {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "memory").Logger()
	}
	return &Store{
		sessions:  make(map[string]*sessionEntry),
		requests:  make(map[string]*requestEntry),
		indexes:   make(map[string]*sessionIndex),
		publisher: publisher,
		logger:    l,
		now:       time.Now,
	}
}

func requestKey(sessionID, requestID string) string { return sessionID + ":" + requestID }

func alive(deadline, now time.Time) bool { return deadline.IsZero() || now.Before(deadline) }

func (s *Store) HealthCheck(ctx context.Context) (bool, error) { return true, ctx.Err() }

func (s *Store) Close() error { return nil }

func (s *Store) SetAPIURL(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiURL = url
	return nil
}

// APIURL returns the last advertised API URL.
func (s *Store) APIURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apiURL
}

func (s *Store) CreateSession(ctx context.Context, id string, ttlSeconds int) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, &domain.StoreError{Op: "create session", Err: err}
	}
	now := s.now().UTC()
	ttl := time.Duration(ttlSeconds) * time.Second
	sess := domain.Session{
		ID:        id,
		CreatedAt: domain.FormatTimestamp(now),
		ExpiresAt: domain.FormatTimestamp(now.Add(ttl)),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpiredLocked(now)
	s.sessions[id] = &sessionEntry{session: sess, expiresAt: now.Add(ttl)}
	return sess, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (domain.Session, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.sessions[id]; ok && alive(e.expiresAt, s.now()) {
		return e.session, true, nil
	}
	return domain.Session{}, false, nil
}

func (s *Store) SessionExists(ctx context.Context, id string) (bool, error) {
	_, ok, err := s.GetSession(ctx, id)
	return ok, err
}

func (s *Store) SaveRequest(ctx context.Context, sessionID string, req domain.CapturedRequest, ttlSeconds int) error {
	if err := ctx.Err(); err != nil {
		return &domain.StoreError{Op: "save request", Err: err}
	}
	now := s.now()
	deadline := now.Add(time.Duration(ttlSeconds) * time.Second)
	score := req.ScoreMillis(now)

	s.mu.Lock()
	s.requests[requestKey(sessionID, req.ID)] = &requestEntry{req: req, expiresAt: deadline}
	idx := s.indexes[sessionID]
	if idx == nil || !alive(idx.expiresAt, now) {
		idx = &sessionIndex{}
		s.indexes[sessionID] = idx
	}
	replaced := false
	for i := range idx.entries {
		if idx.entries[i].id == req.ID {
			idx.entries[i] = indexEntry{id: req.ID, score: score, expiresAt: deadline}
			replaced = true
			break
		}
	}
	if !replaced {
		idx.entries = append(idx.entries, indexEntry{id: req.ID, score: score, expiresAt: deadline})
	}
	idx.sorted = false
	idx.expiresAt = deadline
	s.mu.Unlock()

	if s.publisher != nil {
		if _, err := s.publisher.Publish(sessionID, req); err != nil && !errors.Is(err, live.ErrNoChannel) {
			s.logger.Debug().Err(err).Str("session_id", sessionID).Str("request_id", req.ID).Msg("broadcast not delivered")
		}
	}
	return nil
}

// liveIndexLocked returns the session's index entries sorted newest first.
// Caller must hold the write lock.
func (s *Store) liveIndexLocked(sessionID string, now time.Time) []indexEntry {
	idx := s.indexes[sessionID]
	if idx == nil {
		return nil
	}
	if !alive(idx.expiresAt, now) {
		delete(s.indexes, sessionID)
		return nil
	}
	if !idx.sorted {
		// Ties order by member descending, as ZREVRANGE does.
		sort.Slice(idx.entries, func(i, j int) bool {
			a, b := idx.entries[i], idx.entries[j]
			if a.score != b.score {
				return a.score > b.score
			}
			return a.id > b.id
		})
		idx.sorted = true
	}
	return idx.entries
}

func (s *Store) GetRequests(ctx context.Context, sessionID string, limit, offset int) ([]domain.CapturedRequest, error) {
	out := make([]domain.CapturedRequest, 0)
	if limit <= 0 {
		return out, nil
	}
	if offset < 0 {
		offset = 0
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.liveIndexLocked(sessionID, now)
	if offset >= len(entries) {
		return out, nil
	}
	end := offset + limit
	if end > len(entries) {
		end = len(entries)
	}
	for _, e := range entries[offset:end] {
		r, ok := s.requests[requestKey(sessionID, e.id)]
		if !ok || !alive(r.expiresAt, now) {
			continue
		}
		out = append(out, r.req)
	}
	return out, nil
}

func (s *Store) GetRequestCount(ctx context.Context, sessionID string) (int, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.liveIndexLocked(sessionID, now)), nil
}

func (s *Store) evictExpiredLocked(now time.Time) {
	for id, e := range s.sessions {
		if !alive(e.expiresAt, now) {
			delete(s.sessions, id)
		}
	}
	for k, r := range s.requests {
		if !alive(r.expiresAt, now) {
			delete(s.requests, k)
		}
	}
	for id, idx := range s.indexes {
		if !alive(idx.expiresAt, now) {
			delete(s.indexes, id)
		}
	}
}
