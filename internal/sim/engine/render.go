package engine

import (
	"github.com/signalsfoundry/orbit-engine/core"
	"github.com/signalsfoundry/orbit-engine/model"
)

// RenderItem is what the rendering layer draws for one satellite.
type RenderItem struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Source       string     `json:"source"`
	Position     model.Vec3 `json:"position"`
	Visible      bool       `json:"visible"`
	ElevationDeg float64    `json:"elevation_deg"`
	AzimuthDeg   float64    `json:"azimuth_deg"`
	DistanceKm   float64    `json:"distance_km"`
	Color        string     `json:"color"`
	Scale        float64    `json:"scale"`
}

// RenderList returns the draw list for the currently visible satellites,
// highlighted for the given handover state. algo may be nil.
func (e *Engine) RenderList(hs model.HandoverState, algo *model.AlgorithmResults) []RenderItem {
	visible := e.store.Visible()
	out := make([]RenderItem, 0, len(visible))
	for _, entry := range visible {
		out = append(out, renderItem(entry, hs, algo))
	}
	return out
}

// Render returns the draw state for a single satellite, visible or not.
func (e *Engine) Render(id string, hs model.HandoverState, algo *model.AlgorithmResults) (RenderItem, bool) {
	entry, ok := e.store.Get(id)
	if !ok {
		return RenderItem{}, false
	}
	return renderItem(entry, hs, algo), true
}

func renderItem(entry model.OrbitEntry, hs model.HandoverState, algo *model.AlgorithmResults) RenderItem {
	h := core.ResolveHighlight(entry.ID, entry.Name, algo, hs)
	return RenderItem{
		ID:           entry.ID,
		Name:         entry.Name,
		Source:       entry.Source.String(),
		Position:     entry.Position,
		Visible:      entry.Visible,
		ElevationDeg: entry.Elevation,
		AzimuthDeg:   entry.Azimuth,
		DistanceKm:   entry.Distance,
		Color:        h.Color,
		Scale:        h.Scale,
	}
}
