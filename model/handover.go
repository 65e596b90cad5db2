package model

// HandoverPhase is the lifecycle stage of a connection migrating between
// satellites.
type HandoverPhase string

const (
	PhaseStable       HandoverPhase = "stable"
	PhasePreparing    HandoverPhase = "preparing"
	PhaseEstablishing HandoverPhase = "establishing"
	PhaseSwitching    HandoverPhase = "switching"
	PhaseCompleting   HandoverPhase = "completing"
)

// Valid reports whether p is one of the known phases.
func (p HandoverPhase) Valid() bool {
	switch p {
	case PhaseStable, PhasePreparing, PhaseEstablishing, PhaseSwitching, PhaseCompleting:
		return true
	}
	return false
}

// HandoverState is owned by the handover controller; the engine only reads it.
type HandoverState struct {
	Phase              HandoverPhase `json:"phase"`
	CurrentSatelliteID *string       `json:"current_satellite_id,omitempty"`
	TargetSatelliteID  *string       `json:"target_satellite_id,omitempty"`
	Progress           float64       `json:"progress"`
}

// AlgorithmResults carries the handover algorithm's own view of the serving
// and predicted satellites.
type AlgorithmResults struct {
	CurrentSatelliteID   *string       `json:"current_satellite_id,omitempty"`
	PredictedSatelliteID *string       `json:"predicted_satellite_id,omitempty"`
	Confidence           float64       `json:"confidence"`
	Phase                HandoverPhase `json:"phase,omitempty"`
}

// StringPtr is a convenience for building states in code and tests.
func StringPtr(s string) *string { return &s }
