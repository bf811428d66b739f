// Package orchestrator sequences the asynchronous work a widget starts:
// debounced requests where only the newest result may land, and gates that
// keep a second request from starting while one is in flight.
package orchestrator

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultHintDelay is the quiet period before a hint request is sent.
const DefaultHintDelay = 300 * time.Millisecond

// Debouncer delays work until triggers stop arriving for the configured
// delay. Every trigger gets a token; a result produced for a token that is no
// longer the latest must be discarded by the caller.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool

	latest atomic.Uint64
}

// NewDebouncer creates a debouncer. A non-positive delay uses DefaultHintDelay.
func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultHintDelay
	}
	return &Debouncer{delay: delay}
}

// Delay returns the quiet period.
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

// Trigger schedules fn to run after the quiet period, cancelling any pending
// call. fn receives the token of this trigger. Returns 0 after Stop.
func (d *Debouncer) Trigger(fn func(token uint64)) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return 0
	}
	token := d.latest.Add(1)
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		if d.IsLatest(token) {
			fn(token)
		}
	})
	return token
}

// IsLatest reports whether token belongs to the newest trigger.
func (d *Debouncer) IsLatest(token uint64) bool {
	return token != 0 && d.latest.Load() == token
}

// Invalidate makes every outstanding token stale without scheduling work.
func (d *Debouncer) Invalidate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.latest.Add(1)
}

// Stop cancels pending work and refuses new triggers. Results still in flight
// become stale.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.latest.Add(1)
}
