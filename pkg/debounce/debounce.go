// ABOUTME: Cancellable quiet-period timer owned by an editor session
// ABOUTME: At most one pending timer; supports suspension during programmatic edits

package debounce

import (
	"sync"
	"time"
)

// Timer is the handle returned by a Clock
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. SystemClock uses time.AfterFunc.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock is the wall-clock implementation
var SystemClock Clock = systemClock{}

// Debouncer runs fn once a quiet period has passed since the last Trigger
type Debouncer struct {
	mu        sync.Mutex
	clock     Clock
	quiet     time.Duration
	fn        func()
	timer     Timer
	gen       uint64
	suspended bool
	stopped   bool
}

// Option configures a Debouncer
type Option func(*Debouncer)

// WithClock replaces the system clock, mostly for tests
func WithClock(c Clock) Option {
	return func(d *Debouncer) {
		if c != nil {
			d.clock = c
		}
	}
}

// New creates a debouncer calling fn after quiet
func New(quiet time.Duration, fn func(), opts ...Option) *Debouncer {
	d := &Debouncer{clock: SystemClock, quiet: quiet, fn: fn}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Trigger (re)starts the quiet period. It returns false while the
// debouncer is suspended or stopped.
func (d *Debouncer) Trigger() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.suspended || d.stopped {
		return false
	}
	d.cancelLocked()

	gen := d.gen
	d.timer = d.clock.AfterFunc(d.quiet, func() { d.fire(gen) })
	return true
}

// Cancel drops a pending run, if any
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
}

// Suspend cancels any pending run and ignores triggers until Resume
func (d *Debouncer) Suspend() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	d.suspended = true
}

// Resume accepts triggers again. Nothing is rescheduled.
func (d *Debouncer) Resume() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.suspended = false
}

// Pending reports whether a run is scheduled
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop cancels any pending run permanently
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	d.stopped = true
}

func (d *Debouncer) cancelLocked() {
	// A timer that already fired may still be waiting on mu; bumping the
	// generation makes it return without running fn.
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.stopped || d.suspended {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.fn()
}
