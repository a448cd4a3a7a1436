package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"boundedchan/internal/channel"
	"boundedchan/internal/config"
	"boundedchan/internal/event"
	"boundedchan/internal/metrics"
)

var (
	cfgPath     string
	logLevel    string
	metricsBind string
	cfg         *config.Config

	rootCmd = &cobra.Command{
		Use:   "boundedchan",
		Short: "Bounded producer/consumer channel pipelines",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg, err = loadConfig(cmd); err != nil {
				return err
			}
			return setupLogging(cfg.LogLevel)
		},
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "YAML config path (defaults are used when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log_level from config")
	rootCmd.PersistentFlags().StringVar(&metricsBind, "metrics-bind", "", "override metrics_bind from config; \"off\" disables the endpoint")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(tailCmd)
	rootCmd.AddCommand(scenarioCmd)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	c := config.Default()
	if cfgPath != "" {
		var err error
		if c, err = config.Load(cfgPath); err != nil {
			return nil, fmt.Errorf("config load failed: %w", err)
		}
	}
	if cmd.Flags().Changed("log-level") {
		c.LogLevel = logLevel
	}
	if cmd.Flags().Changed("metrics-bind") {
		c.MetricsBind = metricsBind
	}
	return c, nil
}

func setupLogging(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	return nil
}

// newChannel builds the event channel and, unless disabled, serves its
// metrics on cfg.MetricsBind.
func newChannel(ctx context.Context) (*channel.Channel[event.Event], *metrics.Metrics, error) {
	m := metrics.New(prometheus.DefaultRegisterer)
	ch, err := channel.New[event.Event](cfg.Capacity,
		channel.WithName(cfg.Name),
		channel.WithObserver(m.ForChannel(cfg.Name)),
	)
	if err != nil {
		return nil, nil, err
	}
	if cfg.MetricsBind != "" && cfg.MetricsBind != "off" {
		go serveMetrics(ctx, cfg.MetricsBind)
	}
	go logStats(ctx, ch)
	return ch, m, nil
}

func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	log.Info().Str("addr", addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("metrics server error")
	}
}

func logStats(ctx context.Context, ch *channel.Channel[event.Event]) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := ch.Stats()
			log.Debug().
				Str("channel", s.Name).
				Int("length", s.Length).
				Int("capacity", s.Capacity).
				Stringer("state", s.State).
				Int("blocked_readers", s.BlockedReaders).
				Int("blocked_writers", s.BlockedWriters).
				Msg("channel stats")
		}
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
