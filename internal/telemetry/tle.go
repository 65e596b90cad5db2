package telemetry

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"github.com/signalsfoundry/orbit-engine/model"
)

// TLE is one two-line element set with its optional name line.
type TLE struct {
	Name  string
	Line1 string
	Line2 string
}

// CatalogNumber returns the NORAD catalog number from line 1, trimmed.
func (t TLE) CatalogNumber() string {
	if len(t.Line1) < 7 {
		return ""
	}
	return strings.TrimSpace(t.Line1[2:7])
}

// Observer is the receiver location look angles are computed for.
type Observer struct {
	LatitudeDeg  float64 `yaml:"latitude_deg"`
	LongitudeDeg float64 `yaml:"longitude_deg"`
	AltitudeKm   float64 `yaml:"altitude_km"`
}

// TLEConfig controls how TLE sets are sampled into trajectories.
type TLEConfig struct {
	Observer Observer `yaml:"observer"`

	// Span is the length of the sampled trajectory starting at fetch time.
	// Default: 10m
	Span time.Duration `yaml:"span"`

	// Step is the sampling interval.
	// Default: 10s
	Step time.Duration `yaml:"step"`
}

// DefaultTLEConfig returns a 10 minute, 10 second step sampling plan for an
// observer at the origin.
func DefaultTLEConfig() TLEConfig {
	return TLEConfig{
		Span: 10 * time.Minute,
		Step: 10 * time.Second,
	}
}

// ParseTLE reads TLE sets in either the 2-line or the 3-line (name first)
// format. Malformed groups are skipped.
func ParseTLE(r io.Reader) ([]TLE, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read TLE data: %w", err)
	}

	var out []TLE
	for i := 0; i < len(lines); {
		switch {
		case i+1 < len(lines) && isLine(lines[i], '1') && isLine(lines[i+1], '2'):
			out = append(out, TLE{Line1: lines[i], Line2: lines[i+1]})
			i += 2
		case i+2 < len(lines) && isLine(lines[i+1], '1') && isLine(lines[i+2], '2'):
			name := strings.TrimSpace(strings.TrimPrefix(lines[i], "0 "))
			out = append(out, TLE{Name: name, Line1: lines[i+1], Line2: lines[i+2]})
			i += 3
		default:
			i++
		}
	}
	return out, nil
}

func isLine(line string, n byte) bool {
	return len(line) >= 69 && line[0] == n && line[1] == ' '
}

// TLESource propagates a fixed TLE set with SGP4 on every fetch and samples
// look angles from the configured observer.
type TLESource struct {
	tles []TLE
	cfg  TLEConfig
	now  func() time.Time
}

// NewTLESource returns a source for tles.
func NewTLESource(tles []TLE, cfg TLEConfig) *TLESource {
	return &TLESource{tles: tles, cfg: cfg, now: time.Now}
}

// LoadTLEFile parses path into a TLESource.
func LoadTLEFile(path string, cfg TLEConfig) (*TLESource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open TLE file: %w", err)
	}
	defer f.Close()

	tles, err := ParseTLE(f)
	if err != nil {
		return nil, err
	}
	return NewTLESource(tles, cfg), nil
}

// Latest samples every satellite over [now, now+Span]. The record's look
// angles are those of the first sample.
func (s *TLESource) Latest(ctx context.Context) ([]model.SatelliteRecord, error) {
	if len(s.tles) == 0 {
		return nil, ErrNoData
	}
	start := s.now().UTC().Truncate(time.Second)

	raw := make([]model.RawSatelliteRecord, 0, len(s.tles))
	for _, tle := range s.tles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		traj := s.sample(tle, start)
		if traj.Len() == 0 {
			continue
		}
		first := traj.Points[0]
		raw = append(raw, model.RawSatelliteRecord{
			ID:           tle.CatalogNumber(),
			Name:         tle.Name,
			ElevationDeg: floatRef(first.ElevationDeg),
			AzimuthDeg:   floatRef(first.AzimuthDeg),
			DistanceKm:   floatRef(first.DistanceKm),
			Trajectory:   traj,
		})
	}
	if len(raw) == 0 {
		return nil, ErrNoData
	}
	return model.NormalizeAll(raw), nil
}

func (s *TLESource) sample(tle TLE, start time.Time) *model.Trajectory {
	step := s.cfg.Step
	if step <= 0 {
		step = 10 * time.Second
	}
	span := s.cfg.Span
	if span <= 0 {
		span = 10 * time.Minute
	}

	sat := satellite.TLEToSat(tle.Line1, tle.Line2, satellite.GravityWGS72)
	obs := satellite.LatLong{
		Latitude:  s.cfg.Observer.LatitudeDeg * degToRad,
		Longitude: s.cfg.Observer.LongitudeDeg * degToRad,
	}

	traj := &model.Trajectory{
		DurationSec: span.Seconds(),
		SampleCount: int(span/step) + 1,
	}
	end := start.Add(span)
	for t := start; !t.After(end); t = t.Add(step) {
		year, month, day := t.Date()
		hour, min, sec := t.Clock()

		pos, _ := satellite.Propagate(sat, year, int(month), day, hour, min, sec)
		if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) {
			// Decayed or invalid element set; keep what was sampled so far.
			break
		}
		jd := satellite.JDay(year, int(month), day, hour, min, sec)
		alt, _, ll := satellite.ECIToLLA(pos, satellite.ThetaG_JD(jd))
		lld := satellite.LatLongDeg(ll)
		look := satellite.ECIToLookAngles(pos, obs, s.cfg.Observer.AltitudeKm, jd)

		el := look.El * radToDeg
		traj.Points = append(traj.Points, model.TrajectoryPoint{
			Timestamp:    float64(t.Unix()),
			Latitude:     lld.Latitude,
			Longitude:    lld.Longitude,
			AltitudeKm:   alt,
			ElevationDeg: el,
			AzimuthDeg:   look.Az * radToDeg,
			DistanceKm:   look.Rg,
			Visible:      el > 0,
		})
	}
	return traj
}

func floatRef(v float64) *float64 { return &v }

const (
	degToRad = math.Pi / 180
	radToDeg = 180 / math.Pi
)
