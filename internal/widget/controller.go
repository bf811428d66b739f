// Package widget runs the per-instance controllers behind mounted exercise
// nodes. A controller mirrors the document mode, fires lock and unlock side
// effects once per transition, and refuses mutations made in the wrong mode.
package widget

import (
	"errors"
	"sync"

	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/document"
)

// Widget errors.
var (
	ErrWrongMode = errors.New("action not allowed in the current mode")
	ErrClosed    = errors.New("widget is closed")
)

// Host is the part of the document a controller observes.
type Host interface {
	IsEditable() bool
	On(ev document.Event, fn func()) *document.Subscription
}

var _ Host = (*document.Document)(nil)

// Hooks are the mode transition side effects. Either may be nil.
type Hooks struct {
	// OnLock runs on editable -> locked.
	OnLock func()
	// OnUnlock runs on locked -> editable.
	OnUnlock func()
}

// Controller keeps one widget in step with its host's mode.
type Controller struct {
	host  Host
	hooks Hooks

	mu       sync.Mutex
	editable bool
	closed   bool
	subs     []*document.Subscription
}

// NewController reads the host mode and subscribes to both change channels.
// Hooks do not run for the initial mode.
func NewController(host Host, hooks Hooks) *Controller {
	c := &Controller{
		host:     host,
		hooks:    hooks,
		editable: host.IsEditable(),
	}
	c.subs = []*document.Subscription{
		host.On(document.EventTransaction, c.sync),
		host.On(document.EventUpdate, c.sync),
	}
	return c
}

// Editable returns the last mode the controller observed.
func (c *Controller) Editable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editable
}

// Closed reports whether Close has been called.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// sync re-reads the host mode and runs the hook for a transition. The hook
// runs outside the lock so it may mutate the document.
func (c *Controller) sync() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	now := c.host.IsEditable()
	if now == c.editable {
		c.mu.Unlock()
		return
	}
	c.editable = now
	c.mu.Unlock()

	hook := c.hooks.OnUnlock
	if !now {
		hook = c.hooks.OnLock
	}
	if hook != nil {
		hook()
	}
}

// Guard runs fn only when the host is in the wanted mode.
func (c *Controller) Guard(wantEditable bool, fn func() error) error {
	c.sync()

	c.mu.Lock()
	closed, editable := c.closed, c.editable
	c.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if editable != wantEditable {
		return ErrWrongMode
	}
	return fn()
}

// Close releases both subscriptions. Safe to call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
}
