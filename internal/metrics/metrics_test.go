package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boundedchan/internal/channel"
)

func TestObserverRecordsChannelActivity(t *testing.T) {
	m := New(prometheus.NewRegistry())
	ch, err := channel.New[int](2, channel.WithObserver(m.ForChannel("jobs")))
	require.NoError(t, err)
	w, r := ch.Writer(), ch.Reader()
	ctx := context.Background()

	require.NoError(t, w.Write(ctx, 1))
	require.NoError(t, w.Write(ctx, 2))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.QueueDepth.WithLabelValues("jobs")))

	short, cancel := context.WithTimeout(ctx, 5*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Write(short, 3), channel.ErrTimedOut)

	_, err = r.Read(ctx)
	require.NoError(t, err)

	w.CompleteWithError(errors.New("boom"))
	assert.ErrorIs(t, w.Write(ctx, 4), channel.ErrClosed)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.WritesTotal.WithLabelValues("jobs")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ReadsTotal.WithLabelValues("jobs")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.QueueDepth.WithLabelValues("jobs")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RejectedTotal.WithLabelValues("jobs")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.WaitsTotal.WithLabelValues("jobs", "write")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AbandonedTotal.WithLabelValues("jobs", "write", "timeout")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CompletionsTotal.WithLabelValues("jobs", "failed")))
}

func TestAbandonedReasonCancelled(t *testing.T) {
	m := New(prometheus.NewRegistry())
	ch, err := channel.New[int](1, channel.WithObserver(m.ForChannel("idle")))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ch.Reader().Read(ctx)
	assert.ErrorIs(t, err, channel.ErrCancelled)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AbandonedTotal.WithLabelValues("idle", "read", "cancelled")))
}

func TestDisposeResetsDepth(t *testing.T) {
	m := New(prometheus.NewRegistry())
	ch, err := channel.New[int](4, channel.WithObserver(m.ForChannel("jobs")))
	require.NoError(t, err)
	w := ch.Writer()
	require.NoError(t, w.Write(context.Background(), 1))
	require.NoError(t, w.Write(context.Background(), 2))
	require.Equal(t, float64(2), testutil.ToFloat64(m.QueueDepth.WithLabelValues("jobs")))

	assert.Equal(t, 2, ch.Dispose())
	assert.Equal(t, float64(0), testutil.ToFloat64(m.QueueDepth.WithLabelValues("jobs")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.DiscardedTotal.WithLabelValues("jobs")))
}

func TestNewRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
