// Package live distributes freshly captured requests to the subscribers
// currently watching a session. Everything here is process-local: a
// subscriber only sees captures written through the same process, so running
// more than one instance needs sticky routing at the edge.
package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/BRAVO68WEB/echohook/internal/domain"
)

// DefaultCapacity is the number of pending items a channel retains.
const DefaultCapacity = 256

var (
	// ErrNoChannel is returned by Publish when nobody ever subscribed to the
	// session, or its channel was reaped.
	ErrNoChannel = errors.New("live: no channel for session")
	// ErrNoSubscribers is returned when the channel exists but has no
	// receivers. The item is not retained.
	ErrNoSubscribers = errors.New("live: no active subscribers")
	// ErrClosed is returned by a Subscription after Close.
	ErrClosed = errors.New("live: subscription closed")

	errEmpty = errors.New("live: nothing pending")
)

// LaggedError tells a subscriber that Missed items were overwritten before
// it read them. The subscription has already skipped ahead to the oldest
// retained item.
type LaggedError struct {
	Missed uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("live: subscriber lagged, %d items dropped", e.Missed)
}

// Channel is a bounded multi-producer multi-consumer broadcast ring. Each
// subscriber keeps its own read position; writers overwrite the oldest slot
// and never wait for readers.
type Channel struct {
	mu   sync.RWMutex
	ring []domain.CapturedRequest
	// tail is the monotonic position of the next write (total items sent).
	tail uint64
	// wake is closed and replaced on every send.
	wake chan struct{}

	receivers atomic.Int64
	dropped   atomic.Uint64
	onDrop    func(n uint64)
}

// NewChannel returns a channel retaining up to capacity items.
func NewChannel(capacity int) *Channel {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Channel{
		ring: make([]domain.CapturedRequest, capacity),
		wake: make(chan struct{}),
	}
}

// Capacity returns the ring size.
func (c *Channel) Capacity() int { return len(c.ring) }

// ReceiverCount returns the number of open subscriptions.
func (c *Channel) ReceiverCount() int { return int(c.receivers.Load()) }

// Dropped returns the total number of items missed by lagging subscribers.
func (c *Channel) Dropped() uint64 { return c.dropped.Load() }

// Send offers req to every current subscriber and returns how many there
// were.
func (c *Channel) Send(req domain.CapturedRequest) (int, error) {
	n := c.receivers.Load()
	if n == 0 {
		return 0, ErrNoSubscribers
	}
	c.mu.Lock()
	c.ring[c.tail%uint64(len(c.ring))] = req
	c.tail++
	close(c.wake)
	c.wake = make(chan struct{})
	c.mu.Unlock()
	return int(n), nil
}

// Subscribe attaches a new receiver positioned at the current tail, so it
// only observes items sent after this call.
func (c *Channel) Subscribe() *Subscription {
	c.mu.RLock()
	next := c.tail
	c.receivers.Add(1)
	c.mu.RUnlock()
	return &Subscription{ch: c, next: next}
}

func (c *Channel) recordDrop(n uint64) {
	c.dropped.Add(n)
	if c.onDrop != nil {
		c.onDrop(n)
	}
}

// Subscription is one receiver on a Channel. It is not safe for concurrent
// use by multiple goroutines; each subscriber owns its own.
type Subscription struct {
	ch      *Channel
	next    uint64
	dropped atomic.Uint64
	closed  atomic.Bool
}

// Dropped returns how many items this subscriber has missed so far.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// TryRecv returns the next pending item without blocking. When nothing is
// pending it returns a channel that is closed on the next send.
func (s *Subscription) TryRecv() (domain.CapturedRequest, <-chan struct{}, error) {
	if s.closed.Load() {
		return domain.CapturedRequest{}, nil, ErrClosed
	}
	c := s.ch
	c.mu.RLock()
	defer c.mu.RUnlock()
	if s.next == c.tail {
		return domain.CapturedRequest{}, c.wake, errEmpty
	}
	size := uint64(len(c.ring))
	var oldest uint64
	if c.tail > size {
		oldest = c.tail - size
	}
	if s.next < oldest {
		missed := oldest - s.next
		s.next = oldest
		s.dropped.Add(missed)
		c.recordDrop(missed)
		return domain.CapturedRequest{}, nil, &LaggedError{Missed: missed}
	}
	item := c.ring[s.next%size]
	s.next++
	return item, nil, nil
}

// Recv blocks until an item is available, the subscriber lagged, or ctx is
// done. A *LaggedError is not terminal; the next call resumes with the
// oldest retained item.
func (s *Subscription) Recv(ctx context.Context) (domain.CapturedRequest, error) {
	for {
		item, wake, err := s.TryRecv()
		if !errors.Is(err, errEmpty) {
			return item, err
		}
		select {
		case <-ctx.Done():
			return domain.CapturedRequest{}, ctx.Err()
		case <-wake:
		}
	}
}

// Close releases the subscriber's slot. It is safe to call more than once.
func (s *Subscription) Close() {
	if s.closed.CompareAndSwap(false, true) {
		s.ch.receivers.Add(-1)
	}
}
