// Package telemetry provides the satellite record sources the engine
// synchronises from: static lists, JSON files, a SQLite archive and TLE sets
// propagated with SGP4.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/signalsfoundry/orbit-engine/internal/logging"
	"github.com/signalsfoundry/orbit-engine/model"
)

var (
	// ErrNoData is returned when a source holds no satellites at all.
	ErrNoData = errors.New("telemetry: no satellite data")

	// ErrUnknownSource is returned by Open for an unrecognised kind.
	ErrUnknownSource = errors.New("telemetry: unknown source kind")
)

// Source kinds accepted by Open.
const (
	KindFile   = "file"
	KindSQLite = "sqlite"
	KindTLE    = "tle"
)

// Source supplies the latest normalized satellite records.
type Source interface {
	Latest(ctx context.Context) ([]model.SatelliteRecord, error)
}

// Config selects and parameterises a source.
type Config struct {
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`

	// Refresh is how often the engine re-syncs from the source.
	Refresh time.Duration `yaml:"refresh"`

	TLE TLEConfig `yaml:"tle"`
}

// DefaultConfig returns a file source refreshed every 30 seconds.
func DefaultConfig() Config {
	return Config{
		Kind:    KindFile,
		Path:    "satellites.json",
		Refresh: 30 * time.Second,
		TLE:     DefaultTLEConfig(),
	}
}

// Open builds the source described by cfg. The returned close function is
// never nil.
func Open(ctx context.Context, cfg Config) (Source, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(cfg.Kind) {
	case KindFile:
		return NewFileSource(cfg.Path), noop, nil
	case KindSQLite:
		src, err := OpenSQLite(ctx, cfg.Path)
		if err != nil {
			return nil, noop, err
		}
		return src, src.Close, nil
	case KindTLE:
		src, err := LoadTLEFile(cfg.Path, cfg.TLE)
		if err != nil {
			return nil, noop, err
		}
		return src, noop, nil
	default:
		return nil, noop, fmt.Errorf("%w: %q", ErrUnknownSource, cfg.Kind)
	}
}

// StaticSource serves a fixed record list.
type StaticSource struct {
	records []model.SatelliteRecord
}

// NewStaticSource wraps records.
func NewStaticSource(records []model.SatelliteRecord) *StaticSource {
	return &StaticSource{records: records}
}

// Latest returns a copy of the wrapped records.
func (s *StaticSource) Latest(ctx context.Context) ([]model.SatelliteRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.records) == 0 {
		return nil, ErrNoData
	}
	out := make([]model.SatelliteRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

// FetchRecorder counts fetch outcomes per source.
type FetchRecorder interface {
	ObserveTelemetryFetch(source string, err error)
}

type instrumented struct {
	src     Source
	name    string
	metrics FetchRecorder
	log     logging.Logger
}

// Instrument wraps src so that every fetch is counted and failures logged.
func Instrument(src Source, name string, metrics FetchRecorder, log logging.Logger) Source {
	if log == nil {
		log = logging.Noop()
	}
	return &instrumented{
		src:     src,
		name:    name,
		metrics: metrics,
		log:     log.With(logging.String("component", "telemetry"), logging.String("source", name)),
	}
}

func (i *instrumented) Latest(ctx context.Context) ([]model.SatelliteRecord, error) {
	started := time.Now()
	records, err := i.src.Latest(ctx)
	if i.metrics != nil {
		i.metrics.ObserveTelemetryFetch(i.name, err)
	}
	if err != nil {
		i.log.Warn(ctx, "telemetry fetch failed", logging.Err(err))
		return nil, err
	}
	i.log.Debug(ctx, "telemetry fetched",
		logging.Int("satellites", len(records)),
		logging.Duration("took", time.Since(started)),
	)
	return records, nil
}
