package core

import (
	"testing"

	"github.com/signalsfoundry/orbit-engine/model"
)

func TestResolveHighlightHandoverTables(t *testing.T) {
	hs := func(phase model.HandoverPhase) model.HandoverState {
		return model.HandoverState{
			Phase:              phase,
			CurrentSatelliteID: model.StringPtr("sat-1"),
			TargetSatelliteID:  model.StringPtr("sat-2"),
		}
	}
	tests := []struct {
		phase   model.HandoverPhase
		current Highlight
		target  Highlight
	}{
		{model.PhaseStable, Highlight{"#00ff00", 1.5}, DefaultHighlight},
		{model.PhasePreparing, Highlight{"#ffaa00", 1.4}, Highlight{"#0088ff", 1.0}},
		{model.PhaseEstablishing, Highlight{"#ffff00", 1.3}, Highlight{"#0088ff", 1.2}},
		{model.PhaseSwitching, Highlight{"#888888", 1.1}, Highlight{"#00ff00", 1.3}},
		{model.PhaseCompleting, Highlight{"#888888", 0.9}, Highlight{"#00ff00", 1.5}},
	}
	for _, tt := range tests {
		t.Run(string(tt.phase), func(t *testing.T) {
			if got := ResolveHighlight("sat-1", "ALPHA", nil, hs(tt.phase)); got != tt.current {
				t.Fatalf("current = %+v, want %+v", got, tt.current)
			}
			if got := ResolveHighlight("sat-2", "BRAVO", nil, hs(tt.phase)); got != tt.target {
				t.Fatalf("target = %+v, want %+v", got, tt.target)
			}
			if got := ResolveHighlight("sat-3", "CHARLIE", nil, hs(tt.phase)); got != DefaultHighlight {
				t.Fatalf("bystander = %+v, want default", got)
			}
		})
	}
}

func TestResolveHighlightMatching(t *testing.T) {
	state := model.HandoverState{Phase: model.PhaseStable, CurrentSatelliteID: model.StringPtr("STARLINK-1007")}

	if got := ResolveHighlight("44713", "STARLINK-1007", nil, state); got.Color != ColorConnected {
		t.Fatalf("name match = %+v", got)
	}
	if got := ResolveHighlight("44713", "STARLINK-1007 (v1.0)", nil, state); got.Color != ColorConnected {
		t.Fatalf("name-contains match = %+v", got)
	}
	if got := ResolveHighlight("44713", "", nil, state); got != DefaultHighlight {
		t.Fatalf("no name should not match = %+v", got)
	}
}

func TestResolveHighlightPrefersExactMatch(t *testing.T) {
	// The target id is an exact match while the current id only appears as a
	// substring of the name.
	state := model.HandoverState{
		Phase:              model.PhaseSwitching,
		CurrentSatelliteID: model.StringPtr("SAT"),
		TargetSatelliteID:  model.StringPtr("SAT-9"),
	}
	got := ResolveHighlight("SAT-9", "SAT-9", nil, state)
	if got != (Highlight{ColorConnected, 1.3}) {
		t.Fatalf("got %+v, want target switching highlight", got)
	}
}

func TestResolveHighlightFallsBackToAlgorithm(t *testing.T) {
	algo := &model.AlgorithmResults{
		CurrentSatelliteID:   model.StringPtr("sat-1"),
		PredictedSatelliteID: model.StringPtr("sat-2"),
	}
	state := model.HandoverState{Phase: model.PhasePreparing}

	if got := ResolveHighlight("sat-1", "", algo, state); got != (Highlight{ColorPreparing, 1.4}) {
		t.Fatalf("algorithm current = %+v", got)
	}
	if got := ResolveHighlight("sat-2", "", algo, state); got != (Highlight{ColorTarget, 1.0}) {
		t.Fatalf("algorithm predicted = %+v", got)
	}

	// Handover state wins over the algorithm.
	state.CurrentSatelliteID = model.StringPtr("sat-7")
	if got := ResolveHighlight("sat-1", "", algo, state); got != DefaultHighlight {
		t.Fatalf("overridden algorithm current = %+v, want default", got)
	}
}

func TestResolveHighlightUnknownPhaseIsStable(t *testing.T) {
	state := model.HandoverState{Phase: "bogus", CurrentSatelliteID: model.StringPtr("sat-1")}
	if got := ResolveHighlight("sat-1", "", nil, state); got != (Highlight{ColorConnected, 1.5}) {
		t.Fatalf("got %+v", got)
	}
	if got := ResolveHighlight("sat-2", "", nil, model.HandoverState{}); got != DefaultHighlight {
		t.Fatalf("empty state = %+v", got)
	}
}
