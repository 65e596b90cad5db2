package model

// OrbitSource says where an entry's motion comes from.
type OrbitSource int

const (
	// OrbitSourceSynthetic entries follow a generated rise/peak/set arc.
	OrbitSourceSynthetic OrbitSource = iota
	// OrbitSourceTrajectory entries are interpolated from historical samples.
	OrbitSourceTrajectory
)

func (s OrbitSource) String() string {
	switch s {
	case OrbitSourceTrajectory:
		return "trajectory"
	default:
		return "synthetic"
	}
}

// PhaseOffset spreads an entry's visibility window relative to the others.
type PhaseOffset struct {
	// Fraction is the initial position (0..1) within the visible window.
	Fraction float64
	// AzimuthShiftDeg is added to the nominal azimuth of the arc.
	AzimuthShiftDeg float64
	// TransitDurationSec is the length of the visible window.
	TransitDurationSec float64
	// TransitStartSec is the simulated time at which the current window
	// started, so that (now - TransitStartSec)/TransitDurationSec == Fraction
	// at initialisation.
	TransitStartSec float64
}

// Nominal is the last-known look angle used to anchor a synthetic arc.
type Nominal struct {
	ElevationDeg float64
	AzimuthDeg   float64
	DistanceKm   float64
}

// OrbitEntry is the store's authoritative per-satellite record.
type OrbitEntry struct {
	ID   string
	Name string

	Source     OrbitSource
	Trajectory *Trajectory
	Nominal    Nominal
	Phase      PhaseOffset

	Position  Vec3
	Visible   bool
	Elevation float64
	Azimuth   float64
	Distance  float64
}

// Clone copies the entry. The trajectory is shared: it is read-only once the
// entry has been created.
func (e *OrbitEntry) Clone() *OrbitEntry {
	if e == nil {
		return nil
	}
	cp := *e
	return &cp
}

// OrbitUpdate is the per-tick result for one entry.
type OrbitUpdate struct {
	Position  Vec3
	Visible   bool
	Elevation float64
	Azimuth   float64
	Distance  float64
}
