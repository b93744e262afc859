package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "echohook"

// LiveStats is the part of the live registry exported as metrics.
type LiveStats interface {
	ChannelCount() int
	Dropped() uint64
}

type Metrics struct {
	registry              *prometheus.Registry
	SessionsCreatedTotal  prometheus.Counter
	CapturesTotal         prometheus.Counter
	CapturesRejectedTotal *prometheus.CounterVec
	StreamSubscribers     *prometheus.GaugeVec
	StoreHealthyGauge     prometheus.Gauge
	ChannelsReapedTotal   prometheus.Counter
}

func NewMetrics() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		SessionsCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Total sessions created",
		}),
		CapturesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captures_total",
			Help:      "Total requests captured",
		}),
		CapturesRejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captures_rejected_total",
			Help:      "Total ingestion attempts rejected by reason",
		}, []string{"reason"}),
		StreamSubscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_subscribers",
			Help:      "Connected live stream subscribers by transport",
		}, []string{"transport"}),
		StoreHealthyGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_healthy",
			Help:      "1 if the last store health check passed",
		}),
		ChannelsReapedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channels_reaped_total",
			Help:      "Total idle live channels removed by maintenance",
		}),
	}
	r.MustRegister(
		m.SessionsCreatedTotal,
		m.CapturesTotal,
		m.CapturesRejectedTotal,
		m.StreamSubscribers,
		m.StoreHealthyGauge,
		m.ChannelsReapedTotal,
	)
	return m
}

// BindLive exports channel count and cumulative subscriber loss from s.
// Call once.
func (m *Metrics) BindLive(s LiveStats) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_channels",
			Help:      "Live distribution channels currently allocated",
		}, func() float64 { return float64(s.ChannelCount()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_dropped_total",
			Help:      "Total captures skipped by lagging subscribers",
		}, func() float64 { return float64(s.Dropped()) }),
	)
}

// ChannelsReaped and StoreHealthy make Metrics a maintenance observer.
func (m *Metrics) ChannelsReaped(n int) { m.ChannelsReapedTotal.Add(float64(n)) }

func (m *Metrics) StoreHealthy(ok bool) {
	if ok {
		m.StoreHealthyGauge.Set(1)
		return
	}
	m.StoreHealthyGauge.Set(0)
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
