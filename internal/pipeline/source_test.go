package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boundedchan/internal/channel"
	"boundedchan/internal/event"
	"boundedchan/internal/metrics"
)

func TestSequenceWritesTaggedEvents(t *testing.T) {
	ch := newEvents(t, 8)
	require.NoError(t, Sequence("gen", 5, time.Millisecond, 0, nil)(context.Background(), ch.Writer()))
	ch.Writer().Complete()

	var seqs []uint64
	for ev, err := range ch.Reader().All(context.Background()) {
		require.NoError(t, err)
		assert.Equal(t, "gen", ev.Source)
		assert.Equal(t, int(ev.Seq), ev.Data)
		seqs = append(seqs, ev.Seq)
	}
	assert.Equal(t, []uint64{0, 1, 2, 3, 4}, seqs)
}

func TestSequenceStopsOnCancel(t *testing.T) {
	ch := newEvents(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := Sequence("gen", 10, 0, 0, nil)(ctx, ch.Writer())
	assert.ErrorIs(t, err, channel.ErrTimedOut)
	assert.Equal(t, 1, ch.Len())
}

func TestTryPublish(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	ch := newEvents(t, 1)
	w := ch.Writer()

	require.NoError(t, TryPublish(w, m, "lines", event.Event{Seq: 1}))
	assert.ErrorIs(t, TryPublish(w, m, "lines", event.Event{Seq: 2}), channel.ErrFull)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DroppedLocal.WithLabelValues("lines")))

	w.Complete()
	assert.ErrorIs(t, TryPublish(w, m, "lines", event.Event{Seq: 3}), channel.ErrClosed)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DroppedLocal.WithLabelValues("lines")))

	assert.ErrorIs(t, TryPublish(w, nil, "lines", event.Event{Seq: 4}), channel.ErrClosed)
}

func TestSequenceWriteTimeout(t *testing.T) {
	ch := newEvents(t, 1)
	require.NoError(t, ch.Writer().Write(context.Background(), event.Event{}))

	err := Sequence("gen", 1, 0, 10*time.Millisecond, nil)(context.Background(), ch.Writer())
	assert.ErrorIs(t, err, channel.ErrTimedOut)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
