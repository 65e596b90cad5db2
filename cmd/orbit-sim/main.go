package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/signalsfoundry/orbit-engine/internal/logging"
	"github.com/signalsfoundry/orbit-engine/internal/sim/engine"
	"github.com/signalsfoundry/orbit-engine/internal/sim/notify"
	"github.com/signalsfoundry/orbit-engine/internal/telemetry"
	"github.com/signalsfoundry/orbit-engine/kb"
	"github.com/signalsfoundry/orbit-engine/model"
	"github.com/signalsfoundry/orbit-engine/timectrl"
)

type options struct {
	duration time.Duration
	frame    time.Duration
	speed    float64
	every    int
	kind     string
	path     string
	observer telemetry.Observer
}

func main() {
	var opts options
	flag.DurationVar(&opts.duration, "duration", 10*time.Minute, "total simulated duration")
	flag.DurationVar(&opts.frame, "frame", time.Second, "frame interval")
	flag.Float64Var(&opts.speed, "speed", 1, "speed multiplier applied to every frame")
	flag.IntVar(&opts.every, "every", 30, "print positions every N frames")
	flag.StringVar(&opts.kind, "telemetry", "", "telemetry source kind (file, sqlite, tle); empty uses a built-in demo set")
	flag.StringVar(&opts.path, "telemetry-path", "", "telemetry source path")
	flag.Float64Var(&opts.observer.LatitudeDeg, "lat", 0, "observer latitude for TLE sources")
	flag.Float64Var(&opts.observer.LongitudeDeg, "lon", 0, "observer longitude for TLE sources")
	flag.Float64Var(&opts.observer.AltitudeKm, "alt", 0, "observer altitude in km for TLE sources")
	flag.Parse()

	if err := run(context.Background(), opts, os.Stdout, logging.NewFromEnv()); err != nil {
		fmt.Fprintf(os.Stderr, "orbit-sim: %v\n", err)
		os.Exit(1)
	}
}

// run drives the engine offline: frames are stepped back to back without
// waiting for the wall clock.
func run(ctx context.Context, opts options, out io.Writer, log logging.Logger) error {
	src, closeSrc, err := openSource(ctx, opts)
	if err != nil {
		return err
	}
	defer closeSrc()

	cfg := engine.DefaultConfig()
	cfg.Speed = opts.speed
	store := kb.NewOrbitStore()
	eng := engine.New(store, cfg, engine.WithLogger(log))

	unsubscribe := store.Subscribe(func(ev kb.Event) {
		if ev.Type == kb.EventReinitialized {
			fmt.Fprintf(out, "Loaded %d satellites (generation %d)\n", ev.Satellites, ev.Generation)
		}
	})
	defer unsubscribe()

	if _, err := eng.Sync(ctx, src); err != nil {
		return fmt.Errorf("load satellites: %w", err)
	}

	// The notifier is checked once per frame instead of on its own ticker so
	// that the printed stream matches what a live client would receive.
	published := 0
	notifier := notify.New(eng, notify.DefaultConfig(), notify.WithLogger(log))
	notifier.SetCallback(func(*model.PositionMap) { published++ })

	tc := timectrl.NewTimeController(opts.frame, timectrl.Accelerated)
	tc.AddListener(func(t timectrl.Tick) {
		eng.Tick(t.Delta)
		notifier.Check()
		if opts.every > 0 && t.Frame%uint64(opts.every) == 0 {
			printFrame(out, eng.SimTime(), store.Entries())
		}
	})

	fmt.Fprintf(out, "Starting simulation: duration=%s, frame=%s, speed=%g\n", opts.duration, opts.frame, opts.speed)
	for tc.Elapsed() < opts.duration {
		if err := ctx.Err(); err != nil {
			return err
		}
		tc.Step(opts.frame)
	}
	fmt.Fprintf(out, "Simulation complete: %d frames, %d position updates published.\n", tc.Frames(), published)
	return nil
}

func openSource(ctx context.Context, opts options) (engine.Source, func() error, error) {
	if opts.kind == "" {
		return telemetry.NewStaticSource(demoRecords()), func() error { return nil }, nil
	}
	tle := telemetry.DefaultTLEConfig()
	tle.Observer = opts.observer
	return telemetry.Open(ctx, telemetry.Config{Kind: opts.kind, Path: opts.path, TLE: tle})
}

func printFrame(out io.Writer, simTime float64, entries []model.OrbitEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	fmt.Fprintf(out, "[t=%7.1fs]\n", simTime)
	for _, e := range entries {
		fmt.Fprintf(out, "  %-12s %-16s %-10s el=%6.2f az=%6.2f range=%7.1fkm visible=%-5v pos=(%.0f, %.0f, %.0f)\n",
			e.ID, e.Name, e.Source, e.Elevation, e.Azimuth, e.Distance, e.Visible,
			e.Position.X, e.Position.Y, e.Position.Z,
		)
	}
}

// demoRecords is a small mixed sky: one satellite with a recorded pass and
// a handful that only report a look angle.
func demoRecords() []model.SatelliteRecord {
	pass := &model.Trajectory{DurationSec: 600}
	for i := 0; i <= 20; i++ {
		ts := float64(i * 30)
		el := 70 * (1 - abs(ts-300)/300)
		pass.Points = append(pass.Points, model.TrajectoryPoint{
			Timestamp:    ts,
			ElevationDeg: el,
			AzimuthDeg:   300 + ts/10,
			DistanceKm:   model.SlantRangeKm(el, model.DefaultShellAltitudeKm),
			Visible:      el > 0,
		})
	}

	el := func(v float64) *float64 { return &v }
	return model.NormalizeAll([]model.RawSatelliteRecord{
		{ID: "44713", Name: "STARLINK-1007", Trajectory: pass},
		{ID: "44714", Name: "STARLINK-1008", ElevationDeg: el(62), AzimuthDeg: el(140)},
		{ID: "44716", Name: "STARLINK-1010", ElevationDeg: el(33)},
		{ID: "44718", Name: "STARLINK-1012", ElevationDeg: el(12), AzimuthDeg: el(20)},
		{Name: "ONEWEB-0012"},
	})
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
