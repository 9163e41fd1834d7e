package service

import (
	"sync"
	"time"
)

// Debouncer runs fn once after delay has passed without another Trigger
// (trailing edge). Runs never overlap, and a run armed by an older Trigger
// is skipped once a newer Trigger has happened.
type Debouncer struct {
	delay      time.Duration
	fn         func()
	onCoalesce func()

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64

	runMu sync.Mutex
}

// NewDebouncer creates a debouncer; onCoalesce, when non-nil, is called
// each time a pending run is replaced by a newer Trigger.
func NewDebouncer(delay time.Duration, fn func(), onCoalesce func()) *Debouncer {
	return &Debouncer{
		delay:      delay,
		fn:         fn,
		onCoalesce: onCoalesce,
	}
}

// Trigger (re)arms the timer, cancelling any pending run
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	gen := d.gen
	if d.timer != nil && d.timer.Stop() && d.onCoalesce != nil {
		d.onCoalesce()
	}
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Pending reports whether a run is armed
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.timer != nil
}

// Flush runs a pending call immediately instead of waiting for the timer.
// It reports whether anything was pending.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	if d.timer == nil {
		d.mu.Unlock()
		return false
	}
	d.timer.Stop()
	d.timer = nil
	d.gen++
	d.mu.Unlock()

	d.runMu.Lock()
	defer d.runMu.Unlock()
	d.fn()
	return true
}

// Cancel drops a pending run without executing it
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer) fire(gen uint64) {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.fn()
}
