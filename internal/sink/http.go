// Package sink delivers flushed batches to an HTTP collector.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"

	"boundedchan/internal/event"
	"boundedchan/internal/metrics"
)

const batchPath = "/api/v1/events/batch"

// StatusError is returned when the collector answers with a non-2xx code.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sink: collector returned %d", e.Code)
}

type HTTP struct {
	BaseURL   string
	Token     string
	RetryMax  int
	RetryBase time.Duration
	Client    *http.Client
	Clock     clock.Clock
	Metrics   *metrics.Metrics
}

func NewHTTP(baseURL, token string, timeout time.Duration, retryMax int, retryBase time.Duration, m *metrics.Metrics) *HTTP {
	return &HTTP{
		BaseURL:   baseURL,
		Token:     token,
		RetryMax:  retryMax,
		RetryBase: retryBase,
		Client:    &http.Client{Timeout: timeout},
		Metrics:   m,
	}
}

// Flush posts b as JSON, retrying with jittered exponential backoff. It has
// the signature of pipeline.FlushFunc.
func (h *HTTP) Flush(ctx context.Context, b event.Batch) error {
	if len(b.Events) == 0 {
		return nil
	}
	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("sink: encode batch: %w", err)
	}

	clk := h.Clock
	if clk == nil {
		clk = clock.New()
	}

	var lastErr error
	for i, d := range backoffSchedule(h.RetryBase, h.RetryMax) {
		if i > 0 {
			t := clk.Timer(d)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		if lastErr = h.post(ctx, payload); lastErr == nil {
			return nil
		}
		log.Debug().Err(lastErr).Int("attempt", i+1).Str("source", b.Source).Msg("batch post failed")
	}
	return lastErr
}

func (h *HTTP) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+batchPath, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	if h.Token != "" {
		req.Header.Set("Authorization", "Bearer "+h.Token)
	}
	req.Header.Set("Content-Type", "application/json")

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		h.sendError("net")
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		h.sendError(strconv.Itoa(resp.StatusCode))
		return &StatusError{Code: resp.StatusCode}
	}
	if h.Metrics != nil {
		h.Metrics.SinkBatchesSent.Inc()
	}
	return nil
}

func (h *HTTP) sendError(reason string) {
	if h.Metrics != nil {
		h.Metrics.SinkSendErrors.WithLabelValues(reason).Inc()
	}
}

func backoffSchedule(base time.Duration, max int) []time.Duration {
	if max <= 0 {
		max = 1
	}
	out := make([]time.Duration, 0, max)
	for i := 0; i < max; i++ {
		out = append(out, jitter(base*time.Duration(1<<i)))
	}
	return out
}

// jitter spreads d by up to 30% either way.
func jitter(d time.Duration) time.Duration {
	delta := int64(float64(d) * 0.3)
	if delta <= 0 {
		return d
	}
	return time.Duration(int64(d) + rand.Int63n(delta*2) - delta)
}
