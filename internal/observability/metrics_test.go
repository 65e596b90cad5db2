package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestEngineCollectorRecordsTicks(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("NewEngineCollector: %v", err)
	}

	collector.ObserveTick(2*time.Millisecond, 4)
	collector.ObserveTick(3*time.Millisecond, 7)

	if got := testutil.ToFloat64(collector.Ticks); got != 2 {
		t.Fatalf("orbit_engine_ticks_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.VisibleSatellites); got != 7 {
		t.Fatalf("orbit_engine_visible_satellites = %v, want 7", got)
	}
	if count := histogramSampleCount(t, reg, "orbit_engine_tick_duration_seconds", nil); count != 2 {
		t.Fatalf("tick histogram sample count = %d, want 2", count)
	}
}

func TestEngineCollectorSourcesAndFetches(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("NewEngineCollector: %v", err)
	}

	collector.SetSatelliteCounts(3, 9)
	collector.ObserveTelemetryFetch("sqlite", nil)
	collector.ObserveTelemetryFetch("sqlite", errors.New("locked"))
	collector.ObserveTelemetryFetch("sqlite", nil)

	if got := testutil.ToFloat64(collector.Satellites.WithLabelValues("trajectory")); got != 3 {
		t.Fatalf("trajectory satellites = %v, want 3", got)
	}
	if got := testutil.ToFloat64(collector.Satellites.WithLabelValues("synthetic")); got != 9 {
		t.Fatalf("synthetic satellites = %v, want 9", got)
	}
	if got := testutil.ToFloat64(collector.TelemetryFetches.WithLabelValues("sqlite", "ok")); got != 2 {
		t.Fatalf("ok fetches = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.TelemetryFetches.WithLabelValues("sqlite", "error")); got != 1 {
		t.Fatalf("failed fetches = %v, want 1", got)
	}
}

func TestEngineCollectorToleratesReregistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("first NewEngineCollector: %v", err)
	}
	second, err := NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("second NewEngineCollector: %v", err)
	}

	first.IncPublications()
	second.IncPublications()
	if got := testutil.ToFloat64(first.Publications); got != 2 {
		t.Fatalf("shared publications counter = %v, want 2", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *EngineCollector
	c.ObserveTick(time.Millisecond, 1)
	c.SetSatelliteCounts(1, 1)
	c.IncReinitializations()
	c.IncPublications()
	c.IncSuppressed()
	c.SetStreamClients(1)
	c.ObserveTelemetryFetch("file", nil)
}

func TestMetricsHandlerExposesEngineMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("NewEngineCollector: %v", err)
	}
	collector.IncReinitializations()
	collector.IncSuppressed()
	collector.SetStreamClients(5)
	collector.ObserveTick(time.Millisecond, 2)
	collector.SetSatelliteCounts(1, 2)
	collector.ObserveTelemetryFetch("file", nil)
	collector.IncPublications()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"orbit_engine_ticks_total",
		"orbit_engine_tick_duration_seconds",
		"orbit_engine_satellites",
		"orbit_engine_visible_satellites",
		"orbit_engine_reinitializations_total",
		"orbit_notifier_publications_total",
		"orbit_notifier_suppressed_total",
		"orbit_stream_clients 5",
		"orbit_telemetry_fetches_total",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
