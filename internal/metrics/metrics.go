// Package metrics exports dispatcher activity as prometheus metrics.
package metrics

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/casualjim/chorus/dispatch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const (
	Namespace = "chorus"
	subsystem = "dispatch"
)

var _ dispatch.Observer = (*Collector)(nil)

// Collector observes a dispatcher. Register it with a prometheus registry and pass it to
// dispatch.Observe.
type Collector struct {
	attempts *prometheus.CounterVec
	retries  *prometheus.CounterVec
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inflight *prometheus.GaugeVec

	mu      sync.Mutex
	running map[string]int
}

func New() *Collector {
	return &Collector{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: subsystem,
				Name:      "attempts_total",
				Help:      "Total number of provider calls started",
			},
			[]string{"model"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: subsystem,
				Name:      "retries_total",
				Help:      "Total number of failed provider calls scheduled again",
			},
			[]string{"model"},
		),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: subsystem,
				Name:      "outcomes_total",
				Help:      "Total number of settled jobs by result",
			},
			[]string{"model", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: subsystem,
				Name:      "job_duration_seconds",
				Help:      "Time from enqueue to terminal outcome, retries included",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"model"},
		),
		inflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: subsystem,
				Name:      "inflight_calls",
				Help:      "Provider calls currently running",
			},
			[]string{"model"},
		),
		running: make(map[string]int),
	}
}

// Register adds every metric of c to reg.
func (c *Collector) Register(reg prometheus.Registerer) error {
	var errs []error
	for _, col := range []prometheus.Collector{c.attempts, c.retries, c.outcomes, c.duration, c.inflight} {
		if err := reg.Register(col); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Collector) OnAdmit(model string, _ int) {
	c.attempts.WithLabelValues(model).Inc()
	c.mu.Lock()
	c.running[model]++
	c.mu.Unlock()
	c.inflight.WithLabelValues(model).Inc()
}

func (c *Collector) OnRetry(model string, _ int, _ time.Duration, _ error) {
	c.retries.WithLabelValues(model).Inc()
	c.finished(model)
}

func (c *Collector) OnSettle(model string, outcome dispatch.Outcome, elapsed time.Duration) {
	result := "success"
	if outcome.Failed() {
		result = "failure"
	}
	c.outcomes.WithLabelValues(model, result).Inc()
	c.duration.WithLabelValues(model).Observe(elapsed.Seconds())
	c.finished(model)
}

// finished ends a running call. Jobs refused before admission settle without one.
func (c *Collector) finished(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running[model] == 0 {
		return
	}
	c.running[model]--
	c.inflight.WithLabelValues(model).Dec()
}

// WriteText writes everything g gathers in the prometheus text format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
