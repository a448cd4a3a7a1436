// Package pipeline wires producers and consumers around a bounded channel.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"boundedchan/internal/channel"
)

type Producer[T any] func(ctx context.Context, w *channel.Writer[T]) error

type Consumer[T any] func(ctx context.Context, r *channel.Reader[T]) error

// Group runs a set of producers and consumers over one channel. The channel
// is completed once every producer has returned; if any producer failed it
// is completed with that error so consumers can tell a failed stream from a
// finished one.
type Group[T any] struct {
	ch        *channel.Channel[T]
	producers []Producer[T]
	consumers []Consumer[T]
}

func NewGroup[T any](ch *channel.Channel[T]) *Group[T] {
	return &Group[T]{ch: ch}
}

func (g *Group[T]) AddProducer(p Producer[T]) *Group[T] {
	g.producers = append(g.producers, p)
	return g
}

func (g *Group[T]) AddConsumer(c Consumer[T]) *Group[T] {
	g.consumers = append(g.consumers, c)
	return g
}

// Run blocks until every producer and consumer has returned and reports the
// first error. A consumer's own failure wins over the cancellation it causes
// in the producers. Cancelling ctx stops the producers
// only: consumers keep draining until the channel is completed, so every
// accepted item is still consumed. A failing consumer cancels everyone.
func (g *Group[T]) Run(ctx context.Context) error {
	eg, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	pctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(gctx, cancel)
	defer stop()

	var producers errgroup.Group
	for i, p := range g.producers {
		producers.Go(func() error {
			if err := p(pctx, g.ch.Writer()); err != nil {
				return fmt.Errorf("producer %d: %w", i, err)
			}
			return nil
		})
	}

	// A producer failure completes the channel with that error instead of
	// cancelling consumers; they drain what was accepted and then see it.
	var producerErr error
	eg.Go(func() error {
		w := g.ch.Writer()
		if err := producers.Wait(); err != nil {
			log.Error().Err(err).Str("channel", g.ch.Name()).Msg("producer failed, completing channel with error")
			producerErr = err
			w.CompleteWithError(err)
			return nil
		}
		w.Complete()
		log.Debug().Str("channel", g.ch.Name()).Int("producers", len(g.producers)).Msg("producers done, channel completed")
		return nil
	})

	for i, c := range g.consumers {
		eg.Go(func() error {
			if err := c(gctx, g.ch.Reader()); err != nil {
				return fmt.Errorf("consumer %d: %w", i, err)
			}
			log.Debug().Str("channel", g.ch.Name()).Int("consumer", i).Msg("consumer drained")
			return nil
		})
	}

	// Consumers that stopped on the failed stream report a wrapped copy of
	// producerErr; anything else a consumer returned is the root cause.
	err := eg.Wait()
	if producerErr != nil && (err == nil || errors.Is(err, channel.ErrFailed)) {
		return producerErr
	}
	return err
}
