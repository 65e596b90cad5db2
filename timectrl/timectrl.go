// Package timectrl drives the per-frame tick loop.
package timectrl

import (
	"context"
	"sync"
	"time"
)

// Mode describes how the TimeController measures frame deltas.
type Mode int

const (
	// RealTime reports the wall-clock time elapsed since the previous frame.
	RealTime Mode = iota
	// Accelerated reports exactly one Frame interval per frame regardless of
	// scheduling jitter, which keeps offline runs deterministic.
	Accelerated
)

func (m Mode) String() string {
	if m == Accelerated {
		return "accelerated"
	}
	return "realtime"
}

// Tick is delivered to listeners once per frame.
type Tick struct {
	Frame   uint64
	Delta   time.Duration
	Elapsed time.Duration
}

// TimeController produces frame ticks and notifies registered listeners.
// Listeners run on the controller's goroutine, one frame at a time.
type TimeController struct {
	mu    sync.RWMutex
	Frame time.Duration
	Mode  Mode

	frames  uint64
	elapsed time.Duration

	listeners []func(Tick)
}

// NewTimeController constructs a controller ticking every frame interval.
func NewTimeController(frame time.Duration, mode Mode) *TimeController {
	return &TimeController{
		Frame: frame,
		Mode:  mode,
	}
}

// Elapsed returns the total frame time delivered so far.
func (tc *TimeController) Elapsed() time.Duration {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.elapsed
}

// Frames returns the number of frames delivered so far.
func (tc *TimeController) Frames() uint64 {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.frames
}

// AddListener registers a callback invoked on every frame.
func (tc *TimeController) AddListener(fn func(Tick)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Step delivers a single frame with the given delta. It is what Start calls
// on every ticker fire and is exported for deterministic driving in tests
// and offline runs.
func (tc *TimeController) Step(delta time.Duration) Tick {
	tc.mu.Lock()
	tc.frames++
	tc.elapsed += delta
	tick := Tick{Frame: tc.frames, Delta: delta, Elapsed: tc.elapsed}
	listeners := append([]func(Tick){}, tc.listeners...)
	tc.mu.Unlock()

	for _, fn := range listeners {
		fn(tick)
	}
	return tick
}

// Start runs the controller in a separate goroutine until ctx is cancelled
// or, when duration is positive, until that much frame time has elapsed.
// It returns a channel that is closed when the controller finishes.
func (tc *TimeController) Start(ctx context.Context, duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		ticker := time.NewTicker(tc.Frame)
		defer ticker.Stop()

		last := time.Now()
		var run time.Duration
		for {
			if duration > 0 && run >= duration {
				return
			}

			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				delta := tc.Frame
				if tc.Mode == RealTime {
					delta = now.Sub(last)
				}
				last = now
				run += delta
				tc.Step(delta)
			}
		}
	}()
	return done
}
