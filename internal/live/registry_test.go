package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BRAVO68WEB/echohook/internal/domain"
)

func capture(id string) domain.CapturedRequest {
	return domain.CapturedRequest{ID: id, Method: "POST", Path: "/i/x", Body: `{"x":1}`}
}

func recvWithin(t *testing.T, sub *Subscription, d time.Duration) (domain.CapturedRequest, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return sub.Recv(ctx)
}

func TestPublishWithoutChannel(t *testing.T) {
	r := NewRegistry(0, nil)
	n, err := r.Publish("s1", capture("a"))
	assert.ErrorIs(t, err, ErrNoChannel)
	assert.Zero(t, n)
}

func TestPublishAfterAllSubscribersLeft(t *testing.T) {
	r := NewRegistry(0, nil)
	sub := r.Subscribe("s1")
	sub.Close()
	_, err := r.Publish("s1", capture("a"))
	assert.ErrorIs(t, err, ErrNoSubscribers)
}

func TestSubscriberSeesOnlyLaterCaptures(t *testing.T) {
	r := NewRegistry(0, nil)
	early := r.Subscribe("s1")
	defer early.Close()

	_, err := r.Publish("s1", capture("a"))
	require.NoError(t, err)

	late := r.Subscribe("s1")
	defer late.Close()
	_, err = r.Publish("s1", capture("b"))
	require.NoError(t, err)

	got, err := recvWithin(t, early, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)
	got, err = recvWithin(t, early, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "b", got.ID)

	got, err = recvWithin(t, late, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "b", got.ID)
	_, err = recvWithin(t, late, 20*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTwoSubscribersSameOrder(t *testing.T) {
	r := NewRegistry(0, nil)
	first := r.Subscribe("s1")
	second := r.Subscribe("s1")
	defer first.Close()
	defer second.Close()
	assert.Equal(t, 2, r.ReceiverCount("s1"))

	for i := 0; i < 10; i++ {
		n, err := r.Publish("s1", capture(fmt.Sprint(i)))
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	}
	for _, sub := range []*Subscription{first, second} {
		for i := 0; i < 10; i++ {
			got, err := recvWithin(t, sub, time.Second)
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprint(i), got.ID)
		}
	}
}

func TestRecvWakesOnPublish(t *testing.T) {
	r := NewRegistry(0, nil)
	sub := r.Subscribe("s1")
	defer sub.Close()

	done := make(chan domain.CapturedRequest, 1)
	go func() {
		got, err := recvWithin(t, sub, 2*time.Second)
		if err == nil {
			done <- got
		}
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	_, err := r.Publish("s1", capture("woken"))
	require.NoError(t, err)
	got, ok := <-done
	require.True(t, ok)
	assert.Equal(t, "woken", got.ID)
}

func TestLaggingSubscriberReportsDrops(t *testing.T) {
	r := NewRegistry(0, nil)
	sub := r.Subscribe("s1")
	defer sub.Close()

	for i := 0; i < 300; i++ {
		_, err := r.Publish("s1", capture(fmt.Sprint(i)))
		require.NoError(t, err)
	}

	_, err := recvWithin(t, sub, time.Second)
	var lagged *LaggedError
	require.True(t, errors.As(err, &lagged))
	assert.EqualValues(t, 300-DefaultCapacity, lagged.Missed)
	assert.EqualValues(t, 300-DefaultCapacity, sub.Dropped())
	assert.EqualValues(t, 300-DefaultCapacity, r.Dropped())

	got, err := recvWithin(t, sub, time.Second)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprint(300-DefaultCapacity), got.ID)

	// Newer items keep flowing after the loss.
	_, err = r.Publish("s1", capture("fresh"))
	require.NoError(t, err)
	var last domain.CapturedRequest
	for i := 0; i < DefaultCapacity; i++ {
		last, err = recvWithin(t, sub, time.Second)
		require.NoError(t, err)
	}
	assert.Equal(t, "fresh", last.ID)
}

func TestClosedSubscription(t *testing.T) {
	r := NewRegistry(0, nil)
	sub := r.Subscribe("s1")
	sub.Close()
	sub.Close()
	assert.Equal(t, 0, r.ReceiverCount("s1"))
	_, err := recvWithin(t, sub, time.Second)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCleanupOnlyRemovesIdleChannels(t *testing.T) {
	r := NewRegistry(0, nil)
	assert.Zero(t, r.CleanupAll())

	active := r.Subscribe("active")
	defer active.Close()
	idle := r.Subscribe("idle")
	idle.Close()
	other := r.Subscribe("other")
	other.Close()
	require.Equal(t, 3, r.ChannelCount())

	assert.False(t, r.Cleanup("active"))
	assert.False(t, r.Cleanup("missing"))
	assert.True(t, r.Cleanup("idle"))
	assert.Equal(t, 1, r.CleanupAll())
	assert.Equal(t, 1, r.ChannelCount())

	_, err := r.Publish("active", capture("a"))
	assert.NoError(t, err)
	_, err = r.Publish("idle", capture("a"))
	assert.ErrorIs(t, err, ErrNoChannel)
}

func TestResubscribeAfterCleanupCreatesFreshChannel(t *testing.T) {
	r := NewRegistry(0, nil)
	r.Subscribe("s1").Close()
	require.True(t, r.Cleanup("s1"))

	sub := r.Subscribe("s1")
	defer sub.Close()
	_, err := r.Publish("s1", capture("a"))
	require.NoError(t, err)
	got, err := recvWithin(t, sub, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)
}

func TestConcurrentSubscribePublishCleanup(t *testing.T) {
	r := NewRegistry(16, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_, _ = r.Publish(fmt.Sprintf("s%d", i%8), capture(fmt.Sprint(w, i)))
			}
		}(w)
	}
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				sub := r.Subscribe(fmt.Sprintf("s%d", (i+w)%8))
				_, _, _ = sub.TryRecv()
				sub.Close()
			}
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			default:
				r.CleanupAll()
			}
		}
	}()

	// A subscription taken while cleanup runs must stay attached.
	held := r.Subscribe("held")
	_, err := r.Publish("held", capture("kept"))
	require.NoError(t, err)
	got, err := recvWithin(t, held, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "kept", got.ID)
	held.Close()

	time.Sleep(20 * time.Millisecond)
	cancel()
	wg.Wait()
	r.CleanupAll()
	assert.Zero(t, r.ChannelCount())
}
