package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"boundedchan/internal/channel"
)

type Metrics struct {
	WritesTotal      *prometheus.CounterVec
	ReadsTotal       *prometheus.CounterVec
	RejectedTotal    *prometheus.CounterVec
	WaitsTotal       *prometheus.CounterVec
	AbandonedTotal   *prometheus.CounterVec
	CompletionsTotal *prometheus.CounterVec
	QueueDepth       *prometheus.GaugeVec
	DiscardedTotal   *prometheus.CounterVec
	DroppedLocal     *prometheus.CounterVec
	BatchesFlushed   *prometheus.CounterVec
	SinkBatchesSent  prometheus.Counter
	SinkSendErrors   *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil reg uses the
// default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		WritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "channel_writes_total",
			Help: "Items accepted by the channel",
		}, []string{"channel"}),
		ReadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "channel_reads_total",
			Help: "Items handed to readers",
		}, []string{"channel"}),
		RejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "channel_writes_rejected_total",
			Help: "Writes refused because the channel was completed",
		}, []string{"channel"}),
		WaitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "channel_waits_total",
			Help: "Calls that had to suspend",
		}, []string{"channel", "op"}),
		AbandonedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "channel_waits_abandoned_total",
			Help: "Suspended calls that gave up on cancellation or timeout",
		}, []string{"channel", "op", "reason"}),
		CompletionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "channel_completions_total",
			Help: "Channel completions by outcome",
		}, []string{"channel", "outcome"}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "channel_queue_depth",
			Help: "Buffered items by channel",
		}, []string{"channel"}),
		DiscardedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "channel_discarded_total",
			Help: "Buffered items dropped by Dispose",
		}, []string{"channel"}),
		DroppedLocal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "events_dropped_local_total",
			Help: "Events dropped locally due to backpressure",
		}, []string{"stream"}),
		BatchesFlushed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batches_flushed_total",
			Help: "Batches handed to the flush callback",
		}, []string{"stream"}),
		SinkBatchesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sink_batches_sent_total",
			Help: "Batches accepted by the HTTP collector",
		}),
		SinkSendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sink_send_errors_total",
			Help: "Failed batch posts by reason",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		m.WritesTotal,
		m.ReadsTotal,
		m.RejectedTotal,
		m.WaitsTotal,
		m.AbandonedTotal,
		m.CompletionsTotal,
		m.QueueDepth,
		m.DiscardedTotal,
		m.DroppedLocal,
		m.BatchesFlushed,
		m.SinkBatchesSent,
		m.SinkSendErrors,
	)

	return m
}

// ForChannel returns an observer that records events under the given
// channel label.
func (m *Metrics) ForChannel(name string) channel.Observer {
	return &observer{m: m, name: name}
}

type observer struct {
	m    *Metrics
	name string
}

func (o *observer) Wrote(depth int) {
	o.m.WritesTotal.WithLabelValues(o.name).Inc()
	o.m.QueueDepth.WithLabelValues(o.name).Set(float64(depth))
}

func (o *observer) Took(depth int) {
	o.m.ReadsTotal.WithLabelValues(o.name).Inc()
	o.m.QueueDepth.WithLabelValues(o.name).Set(float64(depth))
}

func (o *observer) Rejected() {
	o.m.RejectedTotal.WithLabelValues(o.name).Inc()
}

func (o *observer) Waiting(op channel.Op) {
	o.m.WaitsTotal.WithLabelValues(o.name, string(op)).Inc()
}

func (o *observer) Abandoned(op channel.Op, err error) {
	reason := "cancelled"
	if errors.Is(err, channel.ErrTimedOut) {
		reason = "timeout"
	}
	o.m.AbandonedTotal.WithLabelValues(o.name, string(op), reason).Inc()
}

func (o *observer) Completed(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	o.m.CompletionsTotal.WithLabelValues(o.name, outcome).Inc()
}

func (o *observer) Discarded(n int) {
	o.m.DiscardedTotal.WithLabelValues(o.name).Add(float64(n))
	o.m.QueueDepth.WithLabelValues(o.name).Set(0)
}
