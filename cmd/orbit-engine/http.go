package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/signalsfoundry/orbit-engine/internal/logging"
	"github.com/signalsfoundry/orbit-engine/internal/sim/engine"
	"github.com/signalsfoundry/orbit-engine/model"
)

// handoverView is the latest handover state pushed by the handover
// controller. The engine only ever reads it.
type handoverView struct {
	State     model.HandoverState     `json:"state"`
	Algorithm *model.AlgorithmResults `json:"algorithm,omitempty"`
}

type api struct {
	eng *engine.Engine
	log logging.Logger

	mu       sync.RWMutex
	handover handoverView
}

func newAPI(eng *engine.Engine, log logging.Logger) *api {
	if log == nil {
		log = logging.Noop()
	}
	return &api{
		eng:      eng,
		log:      log.With(logging.String("component", "http")),
		handover: handoverView{State: model.HandoverState{Phase: model.PhaseStable}},
	}
}

func newMux(a *api, metrics, hub http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics)
	mux.Handle("GET /ws", hub)
	mux.HandleFunc("GET /healthz", a.healthz)
	mux.HandleFunc("GET /api/v1/render", a.render)
	mux.HandleFunc("GET /api/v1/positions", a.positions)
	mux.HandleFunc("GET /api/v1/handover", a.getHandover)
	mux.HandleFunc("PUT /api/v1/handover", a.putHandover)
	return mux
}

func (a *api) currentHandover() handoverView {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.handover
}

type renderResponse struct {
	SimTime    float64             `json:"sim_time"`
	Generation uint64              `json:"generation"`
	Satellites []engine.RenderItem `json:"satellites"`
}

func (a *api) render(w http.ResponseWriter, r *http.Request) {
	hv := a.currentHandover()
	if id := r.URL.Query().Get("id"); id != "" {
		item, ok := a.eng.Render(id, hv.State, hv.Algorithm)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("satellite %q not tracked", id))
			return
		}
		writeJSON(w, http.StatusOK, item)
		return
	}
	writeJSON(w, http.StatusOK, renderResponse{
		SimTime:    a.eng.Store().SimTime(),
		Generation: a.eng.Store().Generation(),
		Satellites: a.eng.RenderList(hv.State, hv.Algorithm),
	})
}

func (a *api) positions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.eng.Positions())
}

func (a *api) getHandover(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.currentHandover())
}

func (a *api) putHandover(w http.ResponseWriter, r *http.Request) {
	var hv handoverView
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(&hv); err != nil {
		writeError(w, http.StatusBadRequest, "decode handover: "+err.Error())
		return
	}
	if hv.State.Phase == "" {
		hv.State.Phase = model.PhaseStable
	}
	if !hv.State.Phase.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown handover phase %q", hv.State.Phase))
		return
	}

	a.mu.Lock()
	a.handover = hv
	a.mu.Unlock()

	a.log.Debug(r.Context(), "handover state updated", logging.String("phase", string(hv.State.Phase)))
	writeJSON(w, http.StatusOK, hv)
}

func (a *api) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"satellites": a.eng.Store().Len(),
		"sim_time":   a.eng.SimTime(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
