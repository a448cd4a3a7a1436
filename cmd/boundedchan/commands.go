package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"boundedchan/internal/channel"
	"boundedchan/internal/event"
	"boundedchan/internal/metrics"
	"boundedchan/internal/pipeline"
	"boundedchan/internal/sink"
	"boundedchan/internal/tail"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run producers and consumers over one bounded channel",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		ch, m, err := newChannel(ctx)
		if err != nil {
			return err
		}

		g := pipeline.NewGroup(ch)
		for i := 0; i < cfg.Producers; i++ {
			g.AddProducer(pipeline.Sequence(fmt.Sprintf("producer-%d", i), cfg.Items, cfg.WriteDelay, cfg.OpTimeout, nil))
		}

		post := newSink(m)
		var received atomic.Int64
		for i := 0; i < cfg.Consumers; i++ {
			name := fmt.Sprintf("consumer-%d", i)
			if cfg.ReadDelay > 0 {
				g.AddConsumer(pipeline.Each(cfg.ReadDelay, nil, func(ev event.Event) error {
					received.Add(1)
					log.Info().Str("consumer", name).Str("event", ev.Key()).Msg("received")
					return nil
				}))
				continue
			}
			b := &pipeline.Batcher{
				Source:    name,
				MaxEvents: cfg.BatchMaxEvents,
				MaxWait:   cfg.BatchMaxWait,
				Metrics:   m,
				Flush: func(ctx context.Context, b event.Batch) error {
					received.Add(int64(len(b.Events)))
					log.Info().Str("consumer", b.Source).Int("events", len(b.Events)).Msg("batch flushed")
					if post != nil {
						return post(ctx, b)
					}
					return nil
				},
			}
			g.AddConsumer(b.Run)
		}

		start := time.Now()
		err = g.Run(ctx)
		log.Info().
			Str("channel", ch.Name()).
			Int("written", cfg.Producers*cfg.Items).
			Int64("received", received.Load()).
			Dur("elapsed", time.Since(start)).
			Msg("run finished")
		if interrupted(cmd, err) {
			log.Info().Msg("run interrupted")
			return nil
		}
		return err
	},
}

var tailCmd = &cobra.Command{
	Use:   "tail [file]",
	Short: "Follow a file through the channel and print its lines in batches",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.TailPath
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return errors.New("no file given and tail_path is not configured")
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		ch, m, err := newChannel(ctx)
		if err != nil {
			return err
		}

		opts := tail.Options{
			Path:         path,
			Poll:         cfg.TailPoll,
			FromStart:    cfg.TailFromStart,
			DropWhenFull: cfg.DropWhenFull,
			Metrics:      m,
		}
		out := cmd.OutOrStdout()
		post := newSink(m)
		b := &pipeline.Batcher{
			Source:    "tail",
			MaxEvents: cfg.BatchMaxEvents,
			MaxWait:   cfg.BatchMaxWait,
			Metrics:   m,
			Flush: func(ctx context.Context, b event.Batch) error {
				if post != nil {
					return post(ctx, b)
				}
				for _, ev := range b.Events {
					if line, ok := ev.Data.(event.Line); ok {
						fmt.Fprintln(out, line.Text)
					}
				}
				return nil
			},
		}

		err = pipeline.NewGroup(ch).
			AddProducer(func(ctx context.Context, w *channel.Writer[event.Event]) error {
				return tail.Follow(ctx, opts, w)
			}).
			AddConsumer(b.Run).
			Run(ctx)
		if interrupted(cmd, err) {
			return nil
		}
		return err
	},
}

// interrupted reports whether err only reflects the command's context being
// cancelled, which is how SIGINT and SIGTERM stop a pipeline.
func interrupted(cmd *cobra.Command, err error) bool {
	return err != nil && cmd.Context().Err() != nil && errors.Is(err, context.Canceled)
}

// newSink returns the HTTP collector flush when sink_url is configured.
func newSink(m *metrics.Metrics) pipeline.FlushFunc {
	if cfg.SinkURL == "" {
		return nil
	}
	return sink.NewHTTP(cfg.SinkURL, cfg.SinkToken, cfg.SinkTimeout, cfg.SinkRetryMax, cfg.SinkRetryBase, m).Flush
}

var (
	scenarioCapacity int
	scenarioItems    int
	scenarioDelay    time.Duration
)

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "One writer and one slow reader over a small channel, printing the hand-off order",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScenario(cmd.Context(), &syncWriter{w: cmd.OutOrStdout()}, scenarioCapacity, scenarioItems, scenarioDelay)
	},
}

func init() {
	scenarioCmd.Flags().IntVar(&scenarioCapacity, "capacity", 3, "channel capacity")
	scenarioCmd.Flags().IntVar(&scenarioItems, "items", 5, "number of values to write")
	scenarioCmd.Flags().DurationVar(&scenarioDelay, "delay", 50*time.Millisecond, "reader pause after each value")
}

func runScenario(ctx context.Context, out io.Writer, capacity, items int, delay time.Duration) error {
	ch, err := channel.New[int](capacity, channel.WithName("scenario"))
	if err != nil {
		return err
	}
	w, r := ch.Writer(), ch.Reader()

	go func() {
		for i := 0; i < items; i++ {
			if err := w.Write(ctx, i); err != nil {
				w.CompleteWithError(err)
				return
			}
			fmt.Fprintf(out, "wrote %d\n", i)
		}
		w.Complete()
	}()

	for v, err := range r.All(ctx) {
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "read %d\n", v)
		select {
		case <-ctx.Done():
		case <-time.After(delay):
		}
	}
	fmt.Fprintln(out, "end of stream")
	return nil
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
