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

type FlushFunc func(ctx context.Context, b event.Batch) error

// Batcher drains a reader into batches of at most MaxEvents, flushing a
// partial batch once its oldest event has waited MaxWait, and flushing
// whatever is left when the stream ends.
type Batcher struct {
	Source    string
	MaxEvents int
	MaxWait   time.Duration
	Flush     FlushFunc
	Clock     clock.Clock
	Metrics   *metrics.Metrics
}

func (b *Batcher) Run(ctx context.Context, r *channel.Reader[event.Event]) error {
	clk := b.Clock
	if clk == nil {
		clk = clock.New()
	}
	maxEvents := b.MaxEvents
	if maxEvents <= 0 {
		maxEvents = 1
	}

	batch := make([]event.Event, 0, maxEvents)
	var deadline time.Time

	for {
		var ev event.Event
		var err error
		if len(batch) > 0 && b.MaxWait > 0 {
			ev, err = b.readBefore(ctx, clk, r, deadline)
		} else {
			ev, err = r.Read(ctx)
		}

		switch {
		case err == nil:
			if len(batch) == 0 {
				deadline = clk.Now().Add(b.MaxWait)
			}
			batch = append(batch, ev)
			if len(batch) < maxEvents {
				continue
			}
		case channel.IsEndOfStream(err):
			return b.flush(ctx, clk, batch)
		case errors.Is(err, errMaxWait):
		default:
			// Hand over what was already read before giving up.
			if ferr := b.flush(context.WithoutCancel(ctx), clk, batch); ferr != nil {
				return errors.Join(err, ferr)
			}
			return err
		}

		if err := b.flush(ctx, clk, batch); err != nil {
			return err
		}
		batch = make([]event.Event, 0, maxEvents)
	}
}

var errMaxWait = errors.New("batch max wait elapsed")

// readBefore reads with a timer on clk that gives up at deadline, returning
// errMaxWait when it fires first.
func (b *Batcher) readBefore(ctx context.Context, clk clock.Clock, r *channel.Reader[event.Event], deadline time.Time) (event.Event, error) {
	d := deadline.Sub(clk.Now())
	if d <= 0 {
		return event.Event{}, errMaxWait
	}
	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	t := clk.Timer(d)
	defer t.Stop()
	fired := make(chan struct{})
	go func() {
		select {
		case <-t.C:
			close(fired)
			cancel()
		case <-readCtx.Done():
		}
	}()

	ev, err := r.Read(readCtx)
	if err != nil && ctx.Err() == nil {
		select {
		case <-fired:
			return ev, errMaxWait
		default:
		}
	}
	return ev, err
}

func (b *Batcher) flush(ctx context.Context, clk clock.Clock, events []event.Event) error {
	if len(events) == 0 {
		return nil
	}
	if err := b.Flush(ctx, event.Batch{Source: b.Source, SentAt: clk.Now().UTC(), Events: events}); err != nil {
		return err
	}
	if b.Metrics != nil {
		b.Metrics.BatchesFlushed.WithLabelValues(b.Source).Inc()
	}
	return nil
}
