// Package timeout provides named, cancellable countdown timers for the
// conversation loop. Each named timer fires its callback exactly once per
// arming unless it is reset or superseded first; a reset that races the
// firing always wins.
package timeout

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Timer names used by the conversation loop.
const (
	// Conversation counts silence while the system is listening.
	Conversation = "conversation"

	// Idle counts time spent in light sleep before deep sleep.
	Idle = "idle"
)

// ErrUnknownTimer is returned when starting a timer that was never registered.
var ErrUnknownTimer = errors.New("timeout: unknown timer")

// Manager owns a set of named timers. All methods are safe for concurrent
// use; callbacks run on their own goroutine, never on the caller's.
type Manager struct {
	mu     sync.Mutex
	timers map[string]*timer
	logger *slog.Logger
}

type timer struct {
	name       string
	defaultDur time.Duration
	callback   func()

	// gen invalidates in-flight fires: a fire whose generation is stale
	// was cancelled or superseded and must be discarded.
	gen   uint64
	armed bool
	t     *time.Timer
}

// NewManager creates an empty timer manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		timers: make(map[string]*timer),
		logger: logger.With("component", "timeout"),
	}
}

// Register defines a named timer with its default duration and fire
// callback. Registering an existing name replaces its definition and
// cancels any armed instance.
func (m *Manager) Register(name string, d time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.timers[name]; ok {
		old.cancelLocked()
	}
	m.timers[name] = &timer{name: name, defaultDur: d, callback: fn}
}

// Start arms the named timer with its default duration, superseding any
// previously armed instance of the same name.
func (m *Manager) Start(name string) error {
	return m.startLockedDuration(name, 0)
}

// StartWith arms the named timer with a custom duration. The default
// duration is left untouched.
func (m *Manager) StartWith(name string, d time.Duration) error {
	return m.startLockedDuration(name, d)
}

func (m *Manager) startLockedDuration(name string, d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.timers[name]
	if !ok {
		return ErrUnknownTimer
	}
	if d <= 0 {
		d = t.defaultDur
	}

	t.cancelLocked()
	t.gen++
	t.armed = true
	gen := t.gen
	t.t = time.AfterFunc(d, func() { m.fire(name, gen) })

	m.logger.Debug("timer armed", "timer", name, "duration", d)
	return nil
}

// Reset cancels the named timer without firing it. Resetting a timer that
// is not armed is a no-op.
func (m *Manager) Reset(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.timers[name]
	if !ok {
		return
	}
	if t.armed {
		m.logger.Debug("timer cancelled", "timer", name)
	}
	t.cancelLocked()
}

// Stop is an alias for Reset.
func (m *Manager) Stop(name string) {
	m.Reset(name)
}

// StopAll cancels every armed timer.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.timers {
		t.cancelLocked()
	}
}

// Active reports whether the named timer is currently armed.
func (m *Manager) Active(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.timers[name]
	return ok && t.armed
}

// fire runs when a countdown elapses. The generation check under the lock
// makes cancellation atomic with respect to firing: a timer cancelled or
// restarted after this fire was scheduled is discarded here.
func (m *Manager) fire(name string, gen uint64) {
	m.mu.Lock()
	t, ok := m.timers[name]
	if !ok || !t.armed || t.gen != gen {
		m.mu.Unlock()
		return
	}
	t.armed = false
	t.t = nil
	fn := t.callback
	m.mu.Unlock()

	m.logger.Debug("timer fired", "timer", name)
	if fn != nil {
		fn()
	}
}

// cancelLocked invalidates any armed instance. Caller holds the manager lock.
func (t *timer) cancelLocked() {
	t.gen++
	t.armed = false
	if t.t != nil {
		t.t.Stop()
		t.t = nil
	}
}
