package executor

import (
	"sync"
	"time"
)

// Debouncer runs at most one pending call. Scheduling a new call before
// the delay elapses replaces the pending one.
type Debouncer struct {
	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

// Schedule arranges for fn to run after delay, dropping any call still
// pending. It reports whether a pending call was dropped.
func (d *Debouncer) Schedule(delay time.Duration, fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	replaced := d.stopLocked()
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(delay, func() {
		d.mu.Lock()
		if d.gen != gen {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		fn()
	})
	return replaced
}

// Cancel drops the pending call, if any, and reports whether there was one.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopLocked()
}

// Pending reports whether a call is waiting to run.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Debouncer) stopLocked() bool {
	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	// A callback that already fired but has not taken the lock sees a
	// newer generation and returns without running.
	d.gen++
	return true
}
