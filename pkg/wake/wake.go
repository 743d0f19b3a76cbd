// Package wake delivers wake signals to the conversation loop from
// pluggable sources: a keyboard for development, the websocket sensor
// bridge on the appliance, or anything else that can call a function.
package wake

import (
	"context"
	"sync"
)

// Source produces wake signals.
type Source interface {
	// Start begins watching for wake signals. Starting a running
	// source is a no-op.
	Start(ctx context.Context) error

	// Stop stops the source. Stopping a stopped source is a no-op.
	Stop() error

	// OnWake registers the callback fired on every wake signal.
	// Registration replaces any previous callback.
	OnWake(fn func())

	// Name identifies the source in logs.
	Name() string
}

// Trigger is a Source fired programmatically, used to adapt push-style
// producers like the sensor bridge.
type Trigger struct {
	name string

	mu      sync.Mutex
	running bool
	onWake  func()
}

// NewTrigger creates a named programmatic wake source.
func NewTrigger(name string) *Trigger {
	return &Trigger{name: name}
}

// Start marks the trigger as live.
func (t *Trigger) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = true
	return nil
}

// Stop marks the trigger as stopped. Subsequent fires are dropped.
func (t *Trigger) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	return nil
}

// OnWake registers the wake callback.
func (t *Trigger) OnWake(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onWake = fn
}

// Name returns the trigger's name.
func (t *Trigger) Name() string {
	return t.name
}

// Fire delivers one wake signal. It reports whether the signal reached
// a callback; fires on a stopped trigger are dropped.
func (t *Trigger) Fire() bool {
	t.mu.Lock()
	fn := t.onWake
	running := t.running
	t.mu.Unlock()
	if !running || fn == nil {
		return false
	}
	fn()
	return true
}

// Ensure Trigger implements Source.
var _ Source = (*Trigger)(nil)
