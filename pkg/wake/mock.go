package wake

import (
	"context"
	"sync"
)

// Mock is a scriptable wake source for tests.
type Mock struct {
	mu      sync.Mutex
	running bool
	onWake  func()
	calls   []string
}

// NewMock creates a mock wake source.
func NewMock() *Mock {
	return &Mock{}
}

// Start records the call and marks the source running.
func (m *Mock) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "Start")
	m.running = true
	return nil
}

// Stop records the call and marks the source stopped.
func (m *Mock) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "Stop")
	m.running = false
	return nil
}

// OnWake registers the wake callback.
func (m *Mock) OnWake(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onWake = fn
}

// Name returns "mock".
func (m *Mock) Name() string {
	return "mock"
}

// Running reports whether Start has been called without a later Stop.
func (m *Mock) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Wake fires one wake signal regardless of running state, simulating
// a stray sensor message.
func (m *Mock) Wake() {
	m.mu.Lock()
	fn := m.onWake
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Calls returns the recorded lifecycle calls in order.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// Reset clears recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Ensure Mock implements Source.
var _ Source = (*Mock)(nil)
