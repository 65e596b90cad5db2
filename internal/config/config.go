// Package config loads the orbit engine configuration: defaults, then an
// optional YAML file, then ORBIT_* environment variables. Command-line flags
// are applied by the binaries on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/signalsfoundry/orbit-engine/core"
	"github.com/signalsfoundry/orbit-engine/internal/logging"
	"github.com/signalsfoundry/orbit-engine/internal/observability"
	"github.com/signalsfoundry/orbit-engine/internal/sim/engine"
	"github.com/signalsfoundry/orbit-engine/internal/sim/notify"
	"github.com/signalsfoundry/orbit-engine/internal/telemetry"
	"github.com/signalsfoundry/orbit-engine/timectrl"
	"go.yaml.in/yaml/v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete runtime configuration.
type Config struct {
	Engine    EngineConfig                `yaml:"engine"`
	Notifier  NotifierConfig              `yaml:"notifier"`
	Frame     FrameConfig                 `yaml:"frame"`
	Telemetry telemetry.Config            `yaml:"telemetry"`
	Server    ServerConfig                `yaml:"server"`
	Logging   logging.Config              `yaml:"logging"`
	Tracing   observability.TracingConfig `yaml:"tracing"`
}

// EngineConfig mirrors engine.Config in file form.
type EngineConfig struct {
	WindowSec          float64 `yaml:"window_sec"`
	PeriodSec          float64 `yaml:"period_sec"`
	AzimuthArcDeg      float64 `yaml:"azimuth_arc_deg"`
	HorizonDipDeg      float64 `yaml:"horizon_dip_deg"`
	SceneScale         float64 `yaml:"scene_scale"`
	HeightScale        float64 `yaml:"height_scale"`
	MinVisibleHeight   float64 `yaml:"min_visible_height"`
	HighElevationDeg   float64 `yaml:"high_elevation_deg"`
	LowElevationDeg    float64 `yaml:"low_elevation_deg"`
	Speed              float64 `yaml:"speed"`
	CyclicTrajectories bool    `yaml:"cyclic_trajectories"`
}

// NotifierConfig mirrors notify.Config.
type NotifierConfig struct {
	Interval  time.Duration `yaml:"interval"`
	Threshold float64       `yaml:"threshold"`
}

// FrameConfig drives the time controller.
type FrameConfig struct {
	Interval time.Duration `yaml:"interval"`
	Mode     string        `yaml:"mode"` // realtime | accelerated
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`

	// StreamRate is the maximum number of position messages per second sent
	// to one websocket client; StreamBurst is its bucket size.
	StreamRate  float64 `yaml:"stream_rate"`
	StreamBurst int     `yaml:"stream_burst"`
}

// Default returns the built-in configuration.
func Default() Config {
	orbit := core.DefaultOrbitConfig()
	phase := core.DefaultPhaseConfig()
	notifier := notify.DefaultConfig()
	return Config{
		Engine: EngineConfig{
			WindowSec:          orbit.WindowSec,
			PeriodSec:          orbit.PeriodSec,
			AzimuthArcDeg:      orbit.AzimuthArcDeg,
			HorizonDipDeg:      orbit.HorizonDipDeg,
			SceneScale:         orbit.Projection.SceneScale,
			HeightScale:        orbit.Projection.HeightScale,
			MinVisibleHeight:   orbit.Projection.MinVisibleHeight,
			HighElevationDeg:   phase.HighElevationDeg,
			LowElevationDeg:    phase.LowElevationDeg,
			Speed:              1,
			CyclicTrajectories: true,
		},
		Notifier: NotifierConfig{
			Interval:  notifier.Interval,
			Threshold: notifier.Threshold,
		},
		Frame: FrameConfig{
			Interval: 16 * time.Millisecond,
			Mode:     timectrl.RealTime.String(),
		},
		Telemetry: telemetry.DefaultConfig(),
		Server: ServerConfig{
			Addr:        ":8080",
			StreamRate:  8,
			StreamBurst: 4,
		},
		Logging: logging.Config{Level: "info", Format: "text"},
		Tracing: observability.DefaultTracingConfig(),
	}
}

// Load returns Default overlaid with the YAML file at path (if non-empty)
// and the environment. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overlays ORBIT_* variables, plus LOG_LEVEL/LOG_FORMAT and the
// tracing variables, read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	floats := []struct {
		key string
		dst *float64
	}{
		{"ORBIT_WINDOW_SEC", &c.Engine.WindowSec},
		{"ORBIT_PERIOD_SEC", &c.Engine.PeriodSec},
		{"ORBIT_SPEED", &c.Engine.Speed},
		{"ORBIT_NOTIFY_THRESHOLD", &c.Notifier.Threshold},
		{"ORBIT_STREAM_RATE", &c.Server.StreamRate},
	}
	for _, f := range floats {
		v, ok := lookup(f.key)
		if !ok || v == "" {
			continue
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalid, f.key, v, err)
		}
		*f.dst = parsed
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"ORBIT_NOTIFY_INTERVAL", &c.Notifier.Interval},
		{"ORBIT_FRAME_INTERVAL", &c.Frame.Interval},
		{"ORBIT_TELEMETRY_REFRESH", &c.Telemetry.Refresh},
	}
	for _, d := range durations {
		v, ok := lookup(d.key)
		if !ok || v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalid, d.key, v, err)
		}
		*d.dst = parsed
	}

	if v, ok := lookup("ORBIT_CYCLIC_TRAJECTORIES"); ok && v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: ORBIT_CYCLIC_TRAJECTORIES=%q: %v", ErrInvalid, v, err)
		}
		c.Engine.CyclicTrajectories = parsed
	}
	if v, ok := lookup("ORBIT_FRAME_MODE"); ok && v != "" {
		c.Frame.Mode = strings.ToLower(v)
	}
	if v, ok := lookup("ORBIT_TELEMETRY_KIND"); ok && v != "" {
		c.Telemetry.Kind = strings.ToLower(v)
	}
	if v, ok := lookup("ORBIT_TELEMETRY_PATH"); ok && v != "" {
		c.Telemetry.Path = v
	}
	if v, ok := lookup("ORBIT_LISTEN_ADDR"); ok && v != "" {
		c.Server.Addr = v
	}

	c.Logging = logging.ConfigFromEnv(c.Logging)
	c.Tracing = observability.TracingConfigFromEnv(c.Tracing)
	return nil
}

// Validate rejects values the engine does not defend against at runtime.
func (c Config) Validate() error {
	var problems []string
	if c.Engine.WindowSec <= 0 {
		problems = append(problems, "engine.window_sec must be positive")
	}
	if c.Engine.PeriodSec < 0 {
		problems = append(problems, "engine.period_sec must not be negative")
	}
	if c.Engine.SceneScale <= 0 || c.Engine.HeightScale <= 0 {
		problems = append(problems, "engine.scene_scale and engine.height_scale must be positive")
	}
	if c.Engine.LowElevationDeg > c.Engine.HighElevationDeg {
		problems = append(problems, "engine.low_elevation_deg must not exceed engine.high_elevation_deg")
	}
	if c.Engine.Speed < 0 {
		problems = append(problems, "engine.speed must not be negative")
	}
	if c.Notifier.Interval <= 0 {
		problems = append(problems, "notifier.interval must be positive")
	}
	if c.Notifier.Threshold < 0 {
		problems = append(problems, "notifier.threshold must not be negative")
	}
	if c.Frame.Interval <= 0 {
		problems = append(problems, "frame.interval must be positive")
	}
	if _, err := c.FrameMode(); err != nil {
		problems = append(problems, err.Error())
	}
	switch c.Telemetry.Kind {
	case telemetry.KindFile, telemetry.KindSQLite, telemetry.KindTLE:
	default:
		problems = append(problems, fmt.Sprintf("telemetry.kind %q is not one of file, sqlite, tle", c.Telemetry.Kind))
	}
	if c.Telemetry.Refresh <= 0 {
		problems = append(problems, "telemetry.refresh must be positive")
	}
	if c.Server.StreamRate <= 0 || c.Server.StreamBurst <= 0 {
		problems = append(problems, "server.stream_rate and server.stream_burst must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// FrameMode parses Frame.Mode.
func (c Config) FrameMode() (timectrl.Mode, error) {
	switch strings.ToLower(c.Frame.Mode) {
	case "", timectrl.RealTime.String():
		return timectrl.RealTime, nil
	case timectrl.Accelerated.String():
		return timectrl.Accelerated, nil
	default:
		return timectrl.RealTime, fmt.Errorf("frame.mode %q is not one of realtime, accelerated", c.Frame.Mode)
	}
}

// EngineConfig converts the engine section.
func (c Config) EngineConfig() engine.Config {
	out := engine.DefaultConfig()
	out.Orbit.WindowSec = c.Engine.WindowSec
	out.Orbit.PeriodSec = c.Engine.PeriodSec
	out.Orbit.AzimuthArcDeg = c.Engine.AzimuthArcDeg
	out.Orbit.HorizonDipDeg = c.Engine.HorizonDipDeg
	out.Orbit.Projection = core.Projection{
		SceneScale:       c.Engine.SceneScale,
		HeightScale:      c.Engine.HeightScale,
		MinVisibleHeight: c.Engine.MinVisibleHeight,
	}
	out.Phase.HighElevationDeg = c.Engine.HighElevationDeg
	out.Phase.LowElevationDeg = c.Engine.LowElevationDeg
	out.Speed = c.Engine.Speed
	out.CyclicTrajectories = c.Engine.CyclicTrajectories
	return out
}

// NotifierConfig converts the notifier section.
func (c Config) NotifierConfig() notify.Config {
	return notify.Config{
		Interval:  c.Notifier.Interval,
		Threshold: c.Notifier.Threshold,
	}
}
