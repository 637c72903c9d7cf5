// internal/metrics/metrics.go

// Package metrics exposes poll loop counters on a private Prometheus
// registry, plus the health report, over HTTP.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tamzrod/masermon/internal/status"
)

const namespace = "masermon"

// Cycle results.
const (
	ResultOK         = "ok"
	ResultEmpty      = "empty"
	ResultValidation = "validation"
	ResultError      = "error"
	ResultSinkError  = "sink_error"
)

type Metrics struct {
	reg *prometheus.Registry

	cycles          *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	channelFailures *prometheus.CounterVec
	sinkFailures    prometheus.Counter
	reconnects      *prometheus.CounterVec
	health          prometheus.Gauge
	info            *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Poll cycles by result",
		}, []string{"result"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one poll cycle including the sink write",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2, 5, 10, 30},
		}),
		channelFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_failures_total",
			Help:      "Channels dropped from a cycle after exhausting retries",
		}, []string{"channel"}),
		sinkFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_write_failures_total",
			Help:      "Measurements the database did not accept",
		}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_reconnects_total",
			Help:      "Sink reconnect attempts by result",
		}, []string{"result"}),
		health: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "health",
			Help:      "Health code: 0 unknown, 1 ok, 2 error",
		}),
		info: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "info",
			Help:      "Constant 1, labelled with the device being polled",
		}, []string{"protocol", "device", "run"}),
	}

	m.reg.MustRegister(
		m.cycles,
		m.cycleDuration,
		m.channelFailures,
		m.sinkFailures,
		m.reconnects,
		m.health,
		m.info,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) SetInfo(info status.Info) {
	m.info.WithLabelValues(info.Protocol, info.Device, info.Run).Set(1)
}

func (m *Metrics) CycleDone(result string, d time.Duration) {
	m.cycles.WithLabelValues(result).Inc()
	m.cycleDuration.Observe(d.Seconds())
}

// ChannelFailed satisfies the EFOS-B channel observer.
func (m *Metrics) ChannelFailed(name string) {
	m.channelFailures.WithLabelValues(name).Inc()
}

func (m *Metrics) SinkWriteFailed() { m.sinkFailures.Inc() }

func (m *Metrics) SinkReconnected(err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.reconnects.WithLabelValues(result).Inc()
}

func (m *Metrics) SetHealth(code uint16) { m.health.Set(float64(code)) }
