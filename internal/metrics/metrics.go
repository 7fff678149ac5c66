// Package metrics exposes console counters and gauges to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"energy_console/internal/console"
	"energy_console/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "energy_console"

type Metrics struct {
	registry *prometheus.Registry

	messagesTotal     *prometheus.CounterVec
	commandRejections *prometheus.CounterVec
	priceFetches      *prometheus.CounterVec
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	energyWh  prometheus.Gauge
	connected prometheus.Gauge
	override  prometheus.Gauge
	ecoMode   prometheus.Gauge
	devicesOn prometheus.Gauge
}

// New registers every collector on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_messages_total",
			Help:      "Inbound broker messages by channel and outcome.",
		}, []string{"channel", "outcome"}),
		commandRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_rejections_total",
			Help:      "User commands refused by the authority gate, by reason.",
		}, []string{"reason"}),
		priceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_fetches_total",
			Help:      "Live price fetch attempts by result.",
		}, []string{"result"}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request durations by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		energyWh: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "energy_watt_hours",
			Help:      "Energy accumulated from the metering room this session.",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "broker_connected",
			Help:      "1 while the broker connection is up.",
		}),
		override: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "override_active",
			Help:      "1 while the emergency override is active.",
		}),
		ecoMode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "eco_mode",
			Help:      "1 in eco mode, 0 in manual mode.",
		}),
		devicesOn: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "devices_on",
			Help:      "Tracked devices currently on.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.messagesTotal,
		m.commandRejections,
		m.priceFetches,
		m.httpRequestsTotal,
		m.httpDuration,
		m.energyWh,
		m.connected,
		m.override,
		m.ecoMode,
		m.devicesOn,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) MessageHandled(channel string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(channel, "handled").Inc()
}

func (m *Metrics) MessageDropped(channel, reason string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(channel, "dropped_"+reason).Inc()
}

func (m *Metrics) CommandRejected(reason string) {
	if m == nil {
		return
	}
	m.commandRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) PriceFetch(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.priceFetches.WithLabelValues(result).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveConsole refreshes the state gauges. Called on the loop goroutine.
func (m *Metrics) ObserveConsole(c *console.Console) {
	if m == nil {
		return
	}
	m.energyWh.Set(c.Energy().WattHours)
	m.connected.Set(boolGauge(c.Connected()))

	snap := c.Snapshot()
	m.override.Set(boolGauge(snap.Override))
	m.ecoMode.Set(boolGauge(snap.Mode == models.ModeEco))
	on := 0
	for _, d := range snap.Devices {
		if d.On {
			on++
		}
	}
	m.devicesOn.Set(float64(on))
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
