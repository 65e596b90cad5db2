package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/orbit-engine/internal/logging"
)

func TestRunDemoSky(t *testing.T) {
	var out bytes.Buffer
	opts := options{duration: time.Minute, frame: time.Second, speed: 1, every: 30}

	if err := run(context.Background(), opts, &out, logging.Noop()); err != nil {
		t.Fatalf("run: %v", err)
	}
	text := out.String()
	for _, want := range []string{
		"Loaded 5 satellites (generation 1)",
		"[t=   30.0s]",
		"[t=   60.0s]",
		"STARLINK-1007",
		"ONEWEB-0012",
		"Simulation complete: 60 frames",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}

func TestRunFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sats.json")
	doc := `[{"id": "a", "elevation_deg": 50}, {"id": "b", "elevation_deg": 15, "azimuth_deg": 10}]`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	var out bytes.Buffer
	opts := options{duration: 10 * time.Second, frame: time.Second, speed: 6, every: 5, kind: "file", path: path}
	if err := run(context.Background(), opts, &out, logging.Noop()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "Loaded 2 satellites") {
		t.Fatalf("output = %s", out.String())
	}
	if !strings.Contains(out.String(), "[t=   60.0s]") {
		t.Fatalf("speed multiplier not applied:\n%s", out.String())
	}
}

func TestRunUnknownSource(t *testing.T) {
	opts := options{duration: time.Second, frame: time.Second, kind: "radio"}
	if err := run(context.Background(), opts, &bytes.Buffer{}, logging.Noop()); err == nil {
		t.Fatalf("expected error for unknown telemetry kind")
	}
}
