package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boundedchan/internal/channel"
	"boundedchan/internal/event"
)

func newEvents(t *testing.T, capacity int) *channel.Channel[event.Event] {
	t.Helper()
	ch, err := channel.New[event.Event](capacity, channel.WithName(t.Name()))
	require.NoError(t, err)
	return ch
}

func TestGroupDeliversEveryEventOnce(t *testing.T) {
	ch := newEvents(t, 4)

	var mu sync.Mutex
	seen := make(map[string]int)
	collect := func(ev event.Event) error {
		mu.Lock()
		defer mu.Unlock()
		seen[ev.Key()]++
		return nil
	}

	g := NewGroup(ch)
	for p := 0; p < 3; p++ {
		g.AddProducer(Sequence(fmt.Sprintf("p%d", p), 50, 0, 0, nil))
	}
	g.AddConsumer(Each(0, nil, collect)).AddConsumer(Each(0, nil, collect))

	require.NoError(t, g.Run(context.Background()))
	assert.Equal(t, channel.StateDrained, ch.State())
	require.Len(t, seen, 150)
	for key, n := range seen {
		assert.Equal(t, 1, n, key)
	}
}

func TestGroupProducerFailureFailsStream(t *testing.T) {
	ch := newEvents(t, 2)
	boom := errors.New("source unavailable")

	var got []uint64
	g := NewGroup(ch).
		AddProducer(func(ctx context.Context, w *channel.Writer[event.Event]) error {
			if err := w.Write(ctx, event.Event{Source: "p", Seq: 0}); err != nil {
				return err
			}
			return boom
		}).
		AddConsumer(Each(0, nil, func(ev event.Event) error {
			got = append(got, ev.Seq)
			return nil
		}))

	err := g.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []uint64{0}, got)
	assert.Equal(t, channel.StateDrained, ch.State())
}

func TestGroupConsumerFailureCancelsProducers(t *testing.T) {
	ch := newEvents(t, 1)
	stop := errors.New("consumer gave up")

	g := NewGroup(ch).
		AddProducer(Sequence("p", 1000, 0, 0, nil)).
		AddConsumer(Each(0, nil, func(event.Event) error { return stop }))

	done := make(chan error, 1)
	go func() { done <- g.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, stop)
	case <-time.After(2 * time.Second):
		t.Fatal("group did not stop after consumer failure")
	}
}

func TestGroupWithoutProducersCompletesImmediately(t *testing.T) {
	ch := newEvents(t, 1)
	calls := 0
	g := NewGroup(ch).AddConsumer(Each(0, nil, func(event.Event) error {
		calls++
		return nil
	}))
	require.NoError(t, g.Run(context.Background()))
	assert.Zero(t, calls)
}

func TestGroupCancelDrainsAcceptedItems(t *testing.T) {
	ch := newEvents(t, 4)
	ctx, cancel := context.WithCancel(context.Background())

	var accepted atomic.Int64
	var consumed atomic.Int64
	g := NewGroup(ch).
		AddProducer(func(ctx context.Context, w *channel.Writer[event.Event]) error {
			for i := uint64(0); ; i++ {
				if err := w.Write(ctx, event.Event{Source: "p", Seq: i}); err != nil {
					return err
				}
				accepted.Add(1)
			}
		}).
		AddConsumer(Each(time.Millisecond, nil, func(event.Event) error {
			consumed.Add(1)
			return nil
		}))

	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	require.Eventually(t, func() bool { return consumed.Load() >= 5 }, 2*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, channel.ErrCancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("group did not stop after cancel")
	}
	assert.Equal(t, accepted.Load(), consumed.Load())
	assert.Equal(t, channel.StateDrained, ch.State())
}
