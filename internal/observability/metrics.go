package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EngineCollector bundles Prometheus metrics for the orbit engine, the
// position notifier, the stream hub and the telemetry sources.
type EngineCollector struct {
	gatherer prometheus.Gatherer

	Ticks             prometheus.Counter
	TickDuration      prometheus.Histogram
	Satellites        *prometheus.GaugeVec
	VisibleSatellites prometheus.Gauge
	Reinitializations prometheus.Counter

	Publications prometheus.Counter
	Suppressed   prometheus.Counter

	StreamClients prometheus.Gauge

	TelemetryFetches *prometheus.CounterVec
}

// NewEngineCollector registers engine metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewEngineCollector(reg prometheus.Registerer) (*EngineCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	ticks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orbit_engine_ticks_total",
		Help: "Total number of frame ticks applied to the orbit store.",
	}), "orbit_engine_ticks_total")
	if err != nil {
		return nil, err
	}

	tickDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orbit_engine_tick_duration_seconds",
		Help:    "Wall-clock time spent computing one frame tick.",
		Buckets: []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
	}), "orbit_engine_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	satellites, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "orbit_engine_satellites",
		Help: "Number of tracked satellites, labeled by motion source.",
	}, []string{"source"}), "orbit_engine_satellites")
	if err != nil {
		return nil, err
	}

	visible, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orbit_engine_visible_satellites",
		Help: "Number of satellites above the horizon after the last tick.",
	}), "orbit_engine_visible_satellites")
	if err != nil {
		return nil, err
	}

	reinits, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orbit_engine_reinitializations_total",
		Help: "Number of times the satellite set was replaced.",
	}), "orbit_engine_reinitializations_total")
	if err != nil {
		return nil, err
	}

	publications, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orbit_notifier_publications_total",
		Help: "Position snapshots delivered to the notifier callback.",
	}), "orbit_notifier_publications_total")
	if err != nil {
		return nil, err
	}

	suppressed, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orbit_notifier_suppressed_total",
		Help: "Notifier cycles skipped because no satellite moved past the threshold.",
	}), "orbit_notifier_suppressed_total")
	if err != nil {
		return nil, err
	}

	clients, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orbit_stream_clients",
		Help: "Connected position stream clients.",
	}), "orbit_stream_clients")
	if err != nil {
		return nil, err
	}

	fetches, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orbit_telemetry_fetches_total",
		Help: "Telemetry source fetches, labeled by source and result.",
	}, []string{"source", "result"}), "orbit_telemetry_fetches_total")
	if err != nil {
		return nil, err
	}

	return &EngineCollector{
		gatherer:          gatherer,
		Ticks:             ticks,
		TickDuration:      tickDuration,
		Satellites:        satellites,
		VisibleSatellites: visible,
		Reinitializations: reinits,
		Publications:      publications,
		Suppressed:        suppressed,
		StreamClients:     clients,
		TelemetryFetches:  fetches,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *EngineCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveTick records one applied tick.
func (c *EngineCollector) ObserveTick(d time.Duration, visible int) {
	if c == nil {
		return
	}
	c.Ticks.Inc()
	c.TickDuration.Observe(d.Seconds())
	c.VisibleSatellites.Set(float64(visible))
}

// SetSatelliteCounts updates the per-source satellite gauges.
func (c *EngineCollector) SetSatelliteCounts(trajectory, synthetic int) {
	if c == nil {
		return
	}
	c.Satellites.WithLabelValues("trajectory").Set(float64(trajectory))
	c.Satellites.WithLabelValues("synthetic").Set(float64(synthetic))
}

// IncReinitializations counts a satellite-set replacement.
func (c *EngineCollector) IncReinitializations() {
	if c == nil {
		return
	}
	c.Reinitializations.Inc()
}

// IncPublications counts a delivered position snapshot.
func (c *EngineCollector) IncPublications() {
	if c == nil {
		return
	}
	c.Publications.Inc()
}

// IncSuppressed counts a notifier cycle below the movement threshold.
func (c *EngineCollector) IncSuppressed() {
	if c == nil {
		return
	}
	c.Suppressed.Inc()
}

// SetStreamClients updates the connected-client gauge.
func (c *EngineCollector) SetStreamClients(n int) {
	if c == nil {
		return
	}
	c.StreamClients.Set(float64(n))
}

// ObserveTelemetryFetch counts a fetch from the named source.
func (c *EngineCollector) ObserveTelemetryFetch(source string, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.TelemetryFetches.WithLabelValues(source, result).Inc()
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
