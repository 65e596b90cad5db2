// Package engine turns satellite records into per-frame positions and
// visibility. It owns the simulated clock and the motion model of every
// tracked satellite; the orbit store holds the committed results.
package engine

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"github.com/signalsfoundry/orbit-engine/core"
	"github.com/signalsfoundry/orbit-engine/internal/logging"
	"github.com/signalsfoundry/orbit-engine/internal/observability"
	"github.com/signalsfoundry/orbit-engine/kb"
	"github.com/signalsfoundry/orbit-engine/model"
	"go.opentelemetry.io/otel/attribute"
)

// Config holds the engine parameters.
type Config struct {
	Orbit core.OrbitConfig
	Phase core.PhaseConfig

	// Speed multiplies every frame delta.
	// Default: 1
	Speed float64

	// CyclicTrajectories replays historical trajectories in a loop. When
	// false, time past the end of a trajectory follows a synthetic arc.
	// Default: true
	CyclicTrajectories bool
}

// DefaultConfig returns the standard engine configuration.
func DefaultConfig() Config {
	return Config{
		Orbit:              core.DefaultOrbitConfig(),
		Phase:              core.DefaultPhaseConfig(),
		Speed:              1,
		CyclicTrajectories: true,
	}
}

// Source supplies the latest satellite records.
type Source interface {
	Latest(ctx context.Context) ([]model.SatelliteRecord, error)
}

// MetricsRecorder receives engine measurements.
type MetricsRecorder interface {
	ObserveTick(d time.Duration, visible int)
	SetSatelliteCounts(trajectory, synthetic int)
	IncReinitializations()
}

// Option customises Engine construction.
type Option func(*Engine)

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetricsRecorder attaches a metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// Engine advances all satellites from one frame to the next.
type Engine struct {
	// mu serialises the write path (Initialize, Tick). Reads go through the
	// store and never take it.
	mu sync.Mutex

	store  *kb.OrbitStore
	cfg    Config
	orbit  *core.SyntheticOrbit
	phases *core.PhaseAssigner

	simTime     float64
	speed       float64
	models      map[string]core.MotionModel
	fingerprint uint64
	hasSet      bool

	log     logging.Logger
	metrics MetricsRecorder
}

// New constructs an engine writing into store.
func New(store *kb.OrbitStore, cfg Config, opts ...Option) *Engine {
	if store == nil {
		store = kb.NewOrbitStore()
	}
	e := &Engine{
		store:  store,
		cfg:    cfg,
		orbit:  core.NewSyntheticOrbit(cfg.Orbit),
		phases: core.NewPhaseAssigner(cfg.Phase),
		speed:  cfg.Speed,
		models: make(map[string]core.MotionModel),
		log:    logging.Noop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.log = e.log.With(logging.String("component", "engine"))
	return e
}

// Store exposes the orbit store the engine writes to.
func (e *Engine) Store() *kb.OrbitStore {
	return e.store
}

// SimTime returns the simulated seconds accumulated so far.
func (e *Engine) SimTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.simTime
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the speed multiplier applied to subsequent ticks.
func (e *Engine) SetSpeed(speed float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speed = speed
}

// Initialize replaces the tracked satellite set. Phases are assigned at the
// current simulated time and every entry gets its initial position before
// the set becomes visible to readers. Duplicate IDs keep their first record.
func (e *Engine) Initialize(ctx context.Context, records []model.SatelliteRecord) uint64 {
	ctx, span := observability.StartSpan(ctx, "engine.Initialize",
		attribute.Int("satellites", len(records)))
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initializeLocked(ctx, records, fingerprint(records))
}

func (e *Engine) initializeLocked(ctx context.Context, records []model.SatelliteRecord, fp uint64) uint64 {
	entries, models, counts := e.buildLocked(ctx, records)
	gen, err := e.store.Replace(entries, e.simTime)
	if err != nil {
		// buildLocked already dropped duplicates; nothing else can fail.
		e.log.Error(ctx, "replace orbit set", logging.Err(err))
		return e.store.Generation()
	}
	e.models = models
	e.fingerprint = fp
	e.hasSet = true

	if e.metrics != nil {
		e.metrics.IncReinitializations()
		e.metrics.SetSatelliteCounts(counts.trajectory, counts.synthetic)
	}
	e.log.Info(ctx, "satellite set initialised",
		logging.Int("satellites", len(entries)),
		logging.Int("trajectory", counts.trajectory),
		logging.Int("synthetic", counts.synthetic),
		logging.Float("sim_time", e.simTime),
		logging.Any("generation", gen),
	)
	return gen
}

type sourceCounts struct {
	trajectory int
	synthetic  int
}

func (e *Engine) buildLocked(ctx context.Context, records []model.SatelliteRecord) ([]*model.OrbitEntry, map[string]core.MotionModel, sourceCounts) {
	now := e.simTime
	window := e.cfg.Orbit.WindowSec

	entries := make([]*model.OrbitEntry, 0, len(records))
	models := make(map[string]core.MotionModel, len(records))
	var counts sourceCounts

	syntheticIndex := 0
	for _, rec := range records {
		if _, dup := models[rec.ID]; dup {
			e.log.Warn(ctx, "dropping duplicate satellite record", logging.String("satellite_id", rec.ID))
			continue
		}
		entry := &model.OrbitEntry{
			ID:   rec.ID,
			Name: rec.Name,
			Nominal: model.Nominal{
				ElevationDeg: rec.ElevationDeg,
				AzimuthDeg:   rec.AzimuthDeg,
				DistanceKm:   rec.DistanceKm,
			},
		}
		if rec.HasTrajectory() {
			entry.Source = model.OrbitSourceTrajectory
			entry.Trajectory = rec.Trajectory
			entry.Phase = model.PhaseOffset{
				TransitDurationSec: rec.Trajectory.Duration(),
				TransitStartSec:    now,
			}
			counts.trajectory++
		} else {
			entry.Source = model.OrbitSourceSynthetic
			entry.Phase = e.phases.Assign(syntheticIndex, rec, now, window)
			syntheticIndex++
			counts.synthetic++
		}

		m := core.NewMotionModel(entry, e.orbit, e.cfg.CyclicTrajectories)
		applyUpdate(entry, m.Sample(now))
		entries = append(entries, entry)
		models[rec.ID] = m
	}
	return entries, models, counts
}

// Sync fetches the latest records from src and reinitialises only when the
// satellite set changed. It reports whether a reinitialisation happened.
// Source errors leave the current set untouched.
func (e *Engine) Sync(ctx context.Context, src Source) (bool, error) {
	ctx, span := observability.StartSpan(ctx, "engine.Sync")
	defer span.End()

	records, err := src.Latest(ctx)
	if err != nil {
		span.RecordError(err)
		return false, err
	}

	fp := fingerprint(records)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.hasSet && fp == e.fingerprint {
		e.log.Debug(ctx, "satellite set unchanged", logging.Int("satellites", len(records)))
		return false, nil
	}

	e.initializeLocked(ctx, records, fp)
	return true, nil
}

// Tick advances the simulated clock by delta times the speed multiplier and
// recomputes every entry from that single instant.
func (e *Engine) Tick(delta time.Duration) {
	started := time.Now()

	e.mu.Lock()
	e.simTime += delta.Seconds() * e.speed
	now := e.simTime
	gen, entries := e.store.Snapshot()
	updates := make(map[string]model.OrbitUpdate, len(entries))
	visible := 0
	for _, entry := range entries {
		m, ok := e.models[entry.ID]
		if !ok {
			continue
		}
		u := m.Sample(now)
		if u.Visible {
			visible++
		}
		updates[entry.ID] = u
	}
	err := e.store.ApplyUpdates(gen, now, updates)
	e.mu.Unlock()

	if err != nil {
		e.log.Debug(context.Background(), "discarded tick for replaced satellite set", logging.Err(err))
		return
	}
	if e.metrics != nil {
		e.metrics.ObserveTick(time.Since(started), visible)
	}
}

// Positions builds a snapshot of all visible satellites keyed by id and name.
func (e *Engine) Positions() *model.PositionMap {
	visible := e.store.Visible()
	rows := make([]model.SatellitePosition, 0, len(visible))
	for _, entry := range visible {
		rows = append(rows, model.SatellitePosition{
			ID:       entry.ID,
			Name:     entry.Name,
			Position: entry.Position,
		})
	}
	return model.NewPositionMap(rows)
}

func applyUpdate(entry *model.OrbitEntry, u model.OrbitUpdate) {
	entry.Position = u.Position
	entry.Visible = u.Visible
	entry.Elevation = u.Elevation
	entry.Azimuth = u.Azimuth
	entry.Distance = u.Distance
}

// fingerprint identifies a satellite set: ids in order plus the shape of
// each trajectory. Look-angle refreshes alone do not change it.
func fingerprint(records []model.SatelliteRecord) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, rec := range records {
		h.Write([]byte(rec.ID))
		h.Write([]byte{0})
		binary.LittleEndian.PutUint64(buf[:], uint64(rec.Trajectory.Len()))
		h.Write(buf[:])
		if rec.HasTrajectory() {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(rec.Trajectory.Start()))
			h.Write(buf[:])
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(rec.Trajectory.Duration()))
			h.Write(buf[:])
		}
	}
	return h.Sum64()
}
