package core

import (
	"strings"

	"github.com/signalsfoundry/orbit-engine/model"
)

// Highlight is the display treatment for one satellite.
type Highlight struct {
	Color string  `json:"color"`
	Scale float64 `json:"scale"`
}

// Display colours.
const (
	ColorDefault      = "#ffffff"
	ColorConnected    = "#00ff00"
	ColorPreparing    = "#ffaa00"
	ColorEstablishing = "#ffff00"
	ColorReleasing    = "#888888"
	ColorTarget       = "#0088ff"
)

// DefaultHighlight applies to satellites not involved in a handover.
var DefaultHighlight = Highlight{Color: ColorDefault, Scale: 0.8}

// The serving satellite shrinks and greys out as the handover proceeds.
var currentHighlights = map[model.HandoverPhase]Highlight{
	model.PhaseStable:       {Color: ColorConnected, Scale: 1.5},
	model.PhasePreparing:    {Color: ColorPreparing, Scale: 1.4},
	model.PhaseEstablishing: {Color: ColorEstablishing, Scale: 1.3},
	model.PhaseSwitching:    {Color: ColorReleasing, Scale: 1.1},
	model.PhaseCompleting:   {Color: ColorReleasing, Scale: 0.9},
}

// The target grows and turns green as it takes over.
var targetHighlights = map[model.HandoverPhase]Highlight{
	model.PhasePreparing:    {Color: ColorTarget, Scale: 1.0},
	model.PhaseEstablishing: {Color: ColorTarget, Scale: 1.2},
	model.PhaseSwitching:    {Color: ColorConnected, Scale: 1.3},
	model.PhaseCompleting:   {Color: ColorConnected, Scale: 1.5},
}

// ResolveHighlight picks the colour and scale for the satellite identified
// by id/name. The handover state's current/target ids take precedence over
// the algorithm's current/predicted ids; algo may be nil.
func ResolveHighlight(id, name string, algo *model.AlgorithmResults, hs model.HandoverState) Highlight {
	currentID := deref(hs.CurrentSatelliteID)
	targetID := deref(hs.TargetSatelliteID)
	if algo != nil {
		if currentID == "" {
			currentID = deref(algo.CurrentSatelliteID)
		}
		if targetID == "" {
			targetID = deref(algo.PredictedSatelliteID)
		}
	}

	phase := hs.Phase
	if !phase.Valid() {
		phase = model.PhaseStable
	}

	cm := matchSatellite(id, name, currentID)
	tm := matchSatellite(id, name, targetID)
	for _, strength := range []matchStrength{matchExact, matchContains} {
		if cm == strength {
			return currentHighlights[phase]
		}
		if tm == strength {
			if h, ok := targetHighlights[phase]; ok {
				return h
			}
			return DefaultHighlight
		}
	}
	return DefaultHighlight
}

type matchStrength int

const (
	matchNone matchStrength = iota
	matchContains
	matchExact
)

// matchSatellite matches on exact id or name first, then on the name
// containing the reference id to tolerate upstream naming drift.
func matchSatellite(id, name, ref string) matchStrength {
	if ref == "" {
		return matchNone
	}
	if id == ref || name == ref {
		return matchExact
	}
	if name != "" && strings.Contains(name, ref) {
		return matchContains
	}
	return matchNone
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
