package orchestrator

import (
	"errors"
	"sync/atomic"
)

// ErrBusy is returned when a gated operation is already running.
var ErrBusy = errors.New("operation already in progress")

// Gate admits one holder at a time. It never blocks: a second caller is
// turned away instead of queued.
type Gate struct {
	held atomic.Bool
}

// TryAcquire takes the gate if it is free.
func (g *Gate) TryAcquire() bool {
	return g.held.CompareAndSwap(false, true)
}

// Release frees the gate.
func (g *Gate) Release() {
	g.held.Store(false)
}

// Busy reports whether the gate is held.
func (g *Gate) Busy() bool {
	return g.held.Load()
}

// Do runs fn while holding the gate, or returns ErrBusy.
func (g *Gate) Do(fn func() error) error {
	if !g.TryAcquire() {
		return ErrBusy
	}
	defer g.Release()
	return fn()
}
