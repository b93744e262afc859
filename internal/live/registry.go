package live

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/BRAVO68WEB/echohook/internal/domain"
)

// Registry maps session ids to their distribution channel. Structural
// changes (create, reap) take the write lock; publishers only take the read
// lock to find an existing channel.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]*Channel
	capacity int
	logger   zerolog.Logger

	dropped atomic.Uint64
}

// NewRegistry returns an empty registry whose channels hold capacity items
// each (DefaultCapacity when <= 0).
func NewRegistry(capacity int, logger *zerolog.Logger) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "live").Logger()
	}
	return &Registry{
		channels: make(map[string]*Channel),
		capacity: capacity,
		logger:   l,
	}
}

// Subscribe returns a new subscription for sessionID, creating the channel
// on first use. Lookup, creation and receiver registration happen under one
// write lock so a concurrent Cleanup can never reap a channel between its
// creation and its first subscriber.
func (r *Registry) Subscribe(sessionID string) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[sessionID]
	if ok {
		r.logger.Info().Str("session_id", sessionID).Int("receiver_count", ch.ReceiverCount()).Msg("subscribing to existing channel")
	} else {
		ch = NewChannel(r.capacity)
		ch.onDrop = func(n uint64) { r.dropped.Add(n) }
		r.channels[sessionID] = ch
		r.logger.Info().Str("session_id", sessionID).Msg("created channel")
	}
	return ch.Subscribe()
}

// Publish offers req to the subscribers of sessionID. It never blocks on
// slow subscribers. ErrNoChannel and ErrNoSubscribers report that nobody is
// listening; callers treat both as non-fatal.
func (r *Registry) Publish(sessionID string, req domain.CapturedRequest) (int, error) {
	r.mu.RLock()
	ch, ok := r.channels[sessionID]
	r.mu.RUnlock()
	if !ok {
		return 0, ErrNoChannel
	}
	return ch.Send(req)
}

// Cleanup removes the channel of sessionID if it has no receivers at the
// time of inspection. It reports whether a channel was removed.
func (r *Registry) Cleanup(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[sessionID]
	if !ok || ch.ReceiverCount() != 0 {
		return false
	}
	delete(r.channels, sessionID)
	r.logger.Debug().Str("session_id", sessionID).Msg("cleaned up channel")
	return true
}

// CleanupAll removes every channel without receivers and returns how many
// were removed.
func (r *Registry) CleanupAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, ch := range r.channels {
		if ch.ReceiverCount() == 0 {
			delete(r.channels, id)
			removed++
		}
	}
	return removed
}

// ChannelCount returns the number of live channels.
func (r *Registry) ChannelCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// ReceiverCount returns the receivers attached to sessionID's channel, or
// zero when it has none.
func (r *Registry) ReceiverCount(sessionID string) int {
	r.mu.RLock()
	ch := r.channels[sessionID]
	r.mu.RUnlock()
	if ch == nil {
		return 0
	}
	return ch.ReceiverCount()
}

// Dropped returns the number of items lost to lagging subscribers across all
// channels since the registry was created. It never decreases, including
// when channels are reaped.
func (r *Registry) Dropped() uint64 { return r.dropped.Load() }
