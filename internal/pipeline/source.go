package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"

	"boundedchan/internal/channel"
	"boundedchan/internal/event"
	"boundedchan/internal/metrics"
)

// Sequence produces n events tagged source#0..source#n-1, pausing delay
// between writes. A positive timeout bounds each individual write.
func Sequence(source string, n int, delay, timeout time.Duration, clk clock.Clock) Producer[event.Event] {
	if clk == nil {
		clk = clock.New()
	}
	return func(ctx context.Context, w *channel.Writer[event.Event]) error {
		for i := 0; i < n; i++ {
			ev := event.Event{Source: source, Seq: uint64(i), TS: clk.Now().UTC(), Data: i}
			if err := write(ctx, clk, timeout, w, ev); err != nil {
				return err
			}
			if delay > 0 && i < n-1 {
				if err := sleep(ctx, clk, delay); err != nil {
					return err
				}
			}
		}
		return nil
	}
}

// Each reads until end of stream, calling fn for every item and pausing
// delay after each one.
func Each[T any](delay time.Duration, clk clock.Clock, fn func(T) error) Consumer[T] {
	if clk == nil {
		clk = clock.New()
	}
	return func(ctx context.Context, r *channel.Reader[T]) error {
		for v, err := range r.All(ctx) {
			if err != nil {
				return err
			}
			if err := fn(v); err != nil {
				return err
			}
			if delay > 0 {
				if err := sleep(ctx, clk, delay); err != nil {
					return err
				}
			}
		}
		return nil
	}
}

// TryPublish writes v without waiting. A write refused because the channel
// is full is counted as a local drop for stream; the error is returned
// either way so the caller always sees the rejection.
func TryPublish[T any](w *channel.Writer[T], m *metrics.Metrics, stream string, v T) error {
	err := w.TryWrite(v)
	if errors.Is(err, channel.ErrFull) && m != nil {
		m.DroppedLocal.WithLabelValues(stream).Inc()
	}
	return err
}

func write[T any](ctx context.Context, clk clock.Clock, timeout time.Duration, w *channel.Writer[T], v T) error {
	if timeout <= 0 {
		return w.Write(ctx, v)
	}
	ctx, cancel := clk.WithTimeout(ctx, timeout)
	defer cancel()
	return w.Write(ctx, v)
}

func sleep(ctx context.Context, clk clock.Clock, d time.Duration) error {
	t := clk.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
