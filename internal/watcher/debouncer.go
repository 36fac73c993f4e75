package watcher

import (
	"sync"
	"sync/atomic"
	"time"
)

// State is the debouncer's lifecycle state.
type State int

const (
	// StateIdle means no timer is pending and the action is not running.
	StateIdle State = iota
	// StatePending means a timer is armed and will fire after the window.
	StatePending
	// StateRunning means the action is executing.
	StateRunning
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Debouncer coalesces bursts of Schedule calls into a single action run.
// Each Schedule cancels the pending timer and arms a new one; the action runs
// once the window elapses without another Schedule.
//
// With WithReentrancyGuard, a timer that fires while the action is still
// running is dropped rather than queued.
type Debouncer struct {
	window time.Duration
	action func()
	guard  bool

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	pending bool
	running int
	stopped bool

	runs    atomic.Uint64
	dropped atomic.Uint64
}

// DebounceOption configures a Debouncer.
type DebounceOption func(*Debouncer)

// WithReentrancyGuard drops fires that arrive while the action is running.
func WithReentrancyGuard() DebounceOption {
	return func(d *Debouncer) { d.guard = true }
}

// NewDebouncer creates a debouncer that runs action after window of quiet.
func NewDebouncer(window time.Duration, action func(), opts ...DebounceOption) *Debouncer {
	d := &Debouncer{
		window: window,
		action: action,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Schedule arms the timer, replacing any pending one.
// Calls after Stop are ignored.
func (d *Debouncer) Schedule() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.pending = true
	d.timer = time.AfterFunc(d.window, func() {
		d.fire(gen)
	})
}

// fire runs the action unless the timer was superseded, the debouncer was
// stopped, or the guard is held.
func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	// A timer that was stopped too late to cancel still ends up here.
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.timer = nil
	if d.guard && d.running > 0 {
		d.mu.Unlock()
		d.dropped.Add(1)
		return
	}
	d.running++
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.running--
		d.mu.Unlock()
	}()

	d.runs.Add(1)
	d.action()
}

// State reports the current state. Running takes precedence over a timer
// armed during the run.
func (d *Debouncer) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case d.running > 0:
		return StateRunning
	case d.pending:
		return StatePending
	default:
		return StateIdle
	}
}

// Runs returns how many times the action has been started.
func (d *Debouncer) Runs() uint64 {
	return d.runs.Load()
}

// Dropped returns how many fires were dropped by the reentrancy guard.
func (d *Debouncer) Dropped() uint64 {
	return d.dropped.Load()
}

// Stop cancels any pending timer. Safe to call multiple times.
// A run already in progress is not interrupted.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
