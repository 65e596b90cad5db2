package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/orbit-engine/internal/logging"
	"github.com/signalsfoundry/orbit-engine/internal/sim/engine"
	"github.com/signalsfoundry/orbit-engine/internal/telemetry"
	"github.com/signalsfoundry/orbit-engine/model"
)

func f64(v float64) *float64 { return &v }

func newTestAPI(t *testing.T) (*api, http.Handler) {
	t.Helper()
	eng := engine.New(nil, engine.DefaultConfig())
	src := telemetry.NewStaticSource(model.NormalizeAll([]model.RawSatelliteRecord{
		{ID: "sat-a", Name: "ALPHA", ElevationDeg: f64(60), AzimuthDeg: f64(90)},
		{ID: "sat-b", Name: "BRAVO", ElevationDeg: f64(50), AzimuthDeg: f64(270)},
	}))
	if !syncOnce(context.Background(), eng, src, logging.Noop()) {
		t.Fatalf("initial sync did not load satellites")
	}
	a := newAPI(eng, logging.Noop())
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	return a, newMux(a, ok, ok)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRenderEndpointAppliesHandover(t *testing.T) {
	_, mux := newTestAPI(t)

	rr := do(t, mux, http.MethodPut, "/api/v1/handover",
		`{"state": {"phase": "preparing", "current_satellite_id": "sat-a", "target_satellite_id": "BRAVO"}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("PUT handover status = %d body=%s", rr.Code, rr.Body.String())
	}

	rr = do(t, mux, http.MethodGet, "/api/v1/render", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("render status = %d", rr.Code)
	}
	var resp renderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode render: %v", err)
	}
	if len(resp.Satellites) != 2 {
		t.Fatalf("render list has %d satellites, want 2", len(resp.Satellites))
	}
	for _, item := range resp.Satellites {
		switch item.ID {
		case "sat-a":
			if item.Color != "#ffaa00" || item.Scale != 1.4 {
				t.Fatalf("current = %+v", item)
			}
		case "sat-b":
			if item.Color != "#0088ff" || item.Scale != 1.0 {
				t.Fatalf("target = %+v", item)
			}
		}
	}
}

func TestRenderSingleSatellite(t *testing.T) {
	_, mux := newTestAPI(t)

	rr := do(t, mux, http.MethodGet, "/api/v1/render?id=sat-b", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var item engine.RenderItem
	if err := json.Unmarshal(rr.Body.Bytes(), &item); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if item.Name != "BRAVO" || item.Color != "#ffffff" {
		t.Fatalf("item = %+v", item)
	}

	if rr := do(t, mux, http.MethodGet, "/api/v1/render?id=ghost", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown satellite status = %d, want 404", rr.Code)
	}
}

func TestPutHandoverRejectsUnknownPhase(t *testing.T) {
	a, mux := newTestAPI(t)

	rr := do(t, mux, http.MethodPut, "/api/v1/handover", `{"state": {"phase": "teleporting"}}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if got := a.currentHandover().State.Phase; got != model.PhaseStable {
		t.Fatalf("phase = %q, want unchanged stable", got)
	}
	if rr := do(t, mux, http.MethodPut, "/api/v1/handover", `not json`); rr.Code != http.StatusBadRequest {
		t.Fatalf("malformed body status = %d", rr.Code)
	}
}

func TestPositionsAndHealth(t *testing.T) {
	_, mux := newTestAPI(t)

	rr := do(t, mux, http.MethodGet, "/api/v1/positions", "")
	var rows []model.SatellitePosition
	if err := json.Unmarshal(rr.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode positions %s: %v", rr.Body.String(), err)
	}
	if len(rows) != 2 {
		t.Fatalf("positions = %d rows, want 2", len(rows))
	}

	rr = do(t, mux, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"satellites":2`) {
		t.Fatalf("healthz = %d %s", rr.Code, rr.Body.String())
	}
}

type failingSource struct{}

func (failingSource) Latest(context.Context) ([]model.SatelliteRecord, error) {
	return nil, errors.New("upstream unavailable")
}

func TestSyncOnceKeepsSetOnFailure(t *testing.T) {
	a, _ := newTestAPI(t)
	if syncOnce(context.Background(), a.eng, failingSource{}, logging.Noop()) {
		t.Fatalf("failed sync reported a change")
	}
	if a.eng.Store().Len() != 2 {
		t.Fatalf("failed sync dropped satellites")
	}
}

func TestRunSyncLoopStopsOnCancel(t *testing.T) {
	a, _ := newTestAPI(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runSyncLoop(ctx, a.eng, failingSource{}, time.Millisecond, logging.Noop())
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("sync loop did not stop")
	}
}
