// Package notify republishes satellite positions to downstream consumers on
// a fixed cadence, skipping cycles in which nothing moved perceptibly.
package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/signalsfoundry/orbit-engine/internal/logging"
	"github.com/signalsfoundry/orbit-engine/model"
)

// Config controls the notifier cadence and sensitivity.
type Config struct {
	// Interval between comparison cycles, independent of the frame rate.
	// Default: 250ms
	Interval time.Duration

	// Threshold is the per-axis displacement, in scene units, that counts as
	// movement.
	// Default: 2.0
	Threshold float64
}

// DefaultConfig returns the standard notifier configuration.
func DefaultConfig() Config {
	return Config{
		Interval:  250 * time.Millisecond,
		Threshold: 2.0,
	}
}

// PositionSource builds the current snapshot of visible satellites.
type PositionSource interface {
	Positions() *model.PositionMap
}

// Callback receives published snapshots. The map must not be modified.
type Callback func(*model.PositionMap)

// MetricsRecorder receives publication counts.
type MetricsRecorder interface {
	IncPublications()
	IncSuppressed()
}

// Option customises PositionNotifier construction.
type Option func(*PositionNotifier)

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) Option {
	return func(n *PositionNotifier) {
		if l != nil {
			n.log = l
		}
	}
}

// WithMetricsRecorder attaches a metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(n *PositionNotifier) {
		n.metrics = m
	}
}

// PositionNotifier is a throttling diff-and-broadcast filter.
type PositionNotifier struct {
	src PositionSource
	cfg Config

	// callback is read at publish time, so it can be swapped without
	// restarting the loop.
	callback atomic.Pointer[Callback]

	mu   sync.Mutex
	last *model.PositionMap

	log     logging.Logger
	metrics MetricsRecorder
}

// New constructs a notifier reading from src.
func New(src PositionSource, cfg Config, opts ...Option) *PositionNotifier {
	n := &PositionNotifier{
		src: src,
		cfg: cfg,
		log: logging.Noop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	n.log = n.log.With(logging.String("component", "notifier"))
	return n
}

// SetCallback replaces the current callback. nil disables publication.
func (n *PositionNotifier) SetCallback(cb Callback) {
	if cb == nil {
		n.callback.Store(nil)
		return
	}
	n.callback.Store(&cb)
}

// LastPublished returns the most recently published snapshot, or nil.
func (n *PositionNotifier) LastPublished() *model.PositionMap {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}

// Check runs one comparison cycle and reports whether a snapshot was
// published. The last-published reference only moves when it was.
func (n *PositionNotifier) Check() bool {
	cb := n.callback.Load()
	if cb == nil {
		return false
	}
	snapshot := n.src.Positions()

	n.mu.Lock()
	if !n.movedLocked(snapshot) {
		n.mu.Unlock()
		if n.metrics != nil {
			n.metrics.IncSuppressed()
		}
		return false
	}
	n.last = snapshot
	n.mu.Unlock()

	(*cb)(snapshot)
	if n.metrics != nil {
		n.metrics.IncPublications()
	}
	return true
}

// Run calls Check every Interval until ctx is cancelled.
func (n *PositionNotifier) Run(ctx context.Context) {
	ticker := time.NewTicker(n.cfg.Interval)
	defer ticker.Stop()

	n.log.Info(ctx, "position notifier started",
		logging.Duration("interval", n.cfg.Interval),
		logging.Float("threshold", n.cfg.Threshold),
	)
	for {
		select {
		case <-ctx.Done():
			n.log.Info(context.Background(), "position notifier stopped")
			return
		case <-ticker.C:
			n.Check()
		}
	}
}

// movedLocked reports whether next differs perceptibly from the last
// published snapshot. Satellites appearing or disappearing count as movement.
func (n *PositionNotifier) movedLocked(next *model.PositionMap) bool {
	if n.last == nil {
		return true
	}
	if n.last.Len() != next.Len() {
		return true
	}
	for _, row := range next.Rows() {
		prev, ok := n.last.ByID(row.ID)
		if !ok {
			return true
		}
		if prev.MaxAxisDelta(row.Position) > n.cfg.Threshold {
			return true
		}
	}
	return false
}
