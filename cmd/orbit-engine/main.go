package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/signalsfoundry/orbit-engine/internal/config"
	"github.com/signalsfoundry/orbit-engine/internal/logging"
	"github.com/signalsfoundry/orbit-engine/internal/observability"
	"github.com/signalsfoundry/orbit-engine/internal/sim/engine"
	"github.com/signalsfoundry/orbit-engine/internal/sim/notify"
	"github.com/signalsfoundry/orbit-engine/internal/stream"
	"github.com/signalsfoundry/orbit-engine/internal/telemetry"
	"github.com/signalsfoundry/orbit-engine/kb"
	"github.com/signalsfoundry/orbit-engine/timectrl"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML configuration file")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	telemetryKind := flag.String("telemetry", "", "Telemetry source kind: file, sqlite or tle (overrides config)")
	telemetryPath := flag.String("telemetry-path", "", "Telemetry source path (overrides config)")
	speed := flag.Float64("speed", 0, "Simulation speed multiplier (overrides config when > 0)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.NewFromEnv().Error(context.Background(), "failed to load configuration", logging.Err(err))
		os.Exit(1)
	}
	applyFlags(&cfg, *addr, *telemetryKind, *telemetryPath, *speed)
	if err := cfg.Validate(); err != nil {
		logging.NewFromEnv().Error(context.Background(), "invalid configuration", logging.Err(err))
		os.Exit(1)
	}

	log := logging.New(cfg.Logging)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewEngineCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.Err(err))
		os.Exit(1)
	}

	rawSrc, closeSrc, err := telemetry.Open(ctx, cfg.Telemetry)
	if err != nil {
		log.Error(ctx, "failed to open telemetry source",
			logging.String("kind", cfg.Telemetry.Kind),
			logging.String("path", cfg.Telemetry.Path),
			logging.Err(err),
		)
		os.Exit(1)
	}
	defer func() {
		if err := closeSrc(); err != nil {
			log.Warn(context.Background(), "closing telemetry source", logging.Err(err))
		}
	}()
	src := telemetry.Instrument(rawSrc, cfg.Telemetry.Kind, collector, log)

	eng := engine.New(kb.NewOrbitStore(), cfg.EngineConfig(),
		engine.WithLogger(log),
		engine.WithMetricsRecorder(collector),
	)
	// A failed first fetch is not fatal: the refresh loop keeps trying and
	// the engine serves an empty sky meanwhile.
	syncOnce(ctx, eng, src, log)

	hub := stream.NewHub(stream.Config{Rate: cfg.Server.StreamRate, Burst: cfg.Server.StreamBurst},
		stream.WithLogger(log),
		stream.WithClientGauge(collector),
	)
	notifier := notify.New(eng, cfg.NotifierConfig(),
		notify.WithLogger(log),
		notify.WithMetricsRecorder(collector),
	)
	notifier.SetCallback(hub.Broadcast)

	mode, _ := cfg.FrameMode()
	tc := timectrl.NewTimeController(cfg.Frame.Interval, mode)
	tc.AddListener(func(t timectrl.Tick) {
		eng.Tick(t.Delta)
	})

	a := newAPI(eng, log)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newMux(a, collector.Handler(), hub),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "http server exited", logging.Err(err))
			stop()
		}
	}()

	log.Info(ctx, "orbit engine started",
		logging.String("addr", cfg.Server.Addr),
		logging.String("telemetry", cfg.Telemetry.Kind),
		logging.Duration("frame", cfg.Frame.Interval),
		logging.String("mode", mode.String()),
		logging.Float("speed", cfg.Engine.Speed),
	)

	frames := tc.Start(ctx, 0)
	go notifier.Run(ctx)
	go runSyncLoop(ctx, eng, src, cfg.Telemetry.Refresh, log)

	<-ctx.Done()
	log.Info(context.Background(), "shutting down orbit engine")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	hub.Close()
	<-frames
}

func applyFlags(cfg *config.Config, addr, kind, path string, speed float64) {
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if kind != "" {
		cfg.Telemetry.Kind = kind
	}
	if path != "" {
		cfg.Telemetry.Path = path
	}
	if speed > 0 {
		cfg.Engine.Speed = speed
	}
}

// syncOnce pulls the latest records and reinitialises the engine when the
// satellite set changed. Errors are logged; the current set stays in place.
func syncOnce(ctx context.Context, eng *engine.Engine, src engine.Source, log logging.Logger) bool {
	ctx, _ = logging.EnsureSyncID(ctx)
	changed, err := eng.Sync(ctx, src)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return false
		}
		log.Warn(ctx, "telemetry sync failed", logging.Err(err))
		return false
	}
	if changed {
		log.Info(ctx, "satellite set reloaded", logging.Int("satellites", eng.Store().Len()))
	}
	return changed
}

func runSyncLoop(ctx context.Context, eng *engine.Engine, src engine.Source, interval time.Duration, log logging.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			syncOnce(ctx, eng, src, log)
		}
	}
}
