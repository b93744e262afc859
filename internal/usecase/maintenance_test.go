package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReaper struct {
	removed  int
	channels int
	calls    atomic.Int32
}

func (r *fakeReaper) CleanupAll() int   { r.calls.Add(1); return r.removed }
func (r *fakeReaper) ChannelCount() int { return r.channels }

type recordingObserver struct {
	reaped  []int
	healthy []bool
}

func (o *recordingObserver) ChannelsReaped(n int) { o.reaped = append(o.reaped, n) }
func (o *recordingObserver) StoreHealthy(ok bool) { o.healthy = append(o.healthy, ok) }

func TestRunOnceReportsReapAndHealth(t *testing.T) {
	store := newFakeStore()
	reaper := &fakeReaper{removed: 2, channels: 1}
	obs := &recordingObserver{}
	m := NewMaintenance(reaper, store, nil, WithObserver(obs))

	m.RunOnce(context.Background())
	store.healthy = false
	m.RunOnce(context.Background())
	store.healthy = true
	store.err = errors.New("down")
	m.RunOnce(context.Background())

	assert.Equal(t, []int{2, 2, 2}, obs.reaped)
	assert.Equal(t, []bool{true, false, false}, obs.healthy)
}

func TestAPIURLRefreshedEveryTenthPass(t *testing.T) {
	store := newFakeStore()
	m := NewMaintenance(&fakeReaper{}, store, nil, WithAPIURLRefresh(store, "http://localhost:8080"))

	for i := 0; i < 9; i++ {
		m.RunOnce(context.Background())
	}
	assert.Empty(t, store.apiURLs)
	m.RunOnce(context.Background())
	assert.Equal(t, []string{"http://localhost:8080"}, store.apiURLs)
	for i := 0; i < 10; i++ {
		m.RunOnce(context.Background())
	}
	assert.Len(t, store.apiURLs, 2)
}

func TestRunStopsWithContext(t *testing.T) {
	reaper := &fakeReaper{}
	m := NewMaintenance(reaper, newFakeStore(), nil, WithInterval(5*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return reaper.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("maintenance loop did not stop")
	}
}
