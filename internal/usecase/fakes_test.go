package usecase

import (
	"context"
	"sync"

	"github.com/BRAVO68WEB/echohook/internal/domain"
)

type fakeStore struct {
	mu        sync.Mutex
	sessions  map[string]domain.Session
	requests  map[string][]domain.CapturedRequest
	published []domain.CapturedRequest
	apiURLs   []string
	healthy   bool
	err       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: map[string]domain.Session{},
		requests: map[string][]domain.CapturedRequest{},
		healthy:  true,
	}
}

func (f *fakeStore) CreateSession(ctx context.Context, id string, ttlSeconds int) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.Session{}, f.err
	}
	s := domain.Session{ID: id}
	f.sessions[id] = s
	return s, nil
}

func (f *fakeStore) GetSession(ctx context.Context, id string) (domain.Session, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	return s, ok, f.err
}

func (f *fakeStore) SessionExists(ctx context.Context, id string) (bool, error) {
	_, ok, err := f.GetSession(ctx, id)
	return ok, err
}

func (f *fakeStore) SaveRequest(ctx context.Context, sessionID string, req domain.CapturedRequest, ttlSeconds int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.requests[sessionID] = append(f.requests[sessionID], req)
	f.published = append(f.published, req)
	return nil
}

func (f *fakeStore) GetRequests(ctx context.Context, sessionID string, limit, offset int) ([]domain.CapturedRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	// stored oldest first; served newest first.
	all := append([]domain.CapturedRequest(nil), f.requests[sessionID]...)
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	if offset >= len(all) {
		return nil, f.err
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], f.err
}

func (f *fakeStore) GetRequestCount(ctx context.Context, sessionID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests[sessionID]), f.err
}

func (f *fakeStore) HealthCheck(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthy, f.err
}

func (f *fakeStore) SetAPIURL(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiURLs = append(f.apiURLs, url)
	return nil
}

func (f *fakeStore) Close() error { return nil }

var _ Store = (*fakeStore)(nil)
