package backend

import (
	"context"
	"sync"
	"time"
)

// Mock implements Controller for testing.
type Mock struct {
	// StartFunc is called when Start is invoked. Nil succeeds.
	StartFunc func(ctx context.Context) error

	// StopFunc is called when Stop is invoked. Nil succeeds.
	StopFunc func(ctx context.Context) error

	// PingFunc is called when Ping is invoked. Nil succeeds.
	PingFunc func(ctx context.Context) error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation.
type MockCall struct {
	Method string
	Time   time.Time
}

// NewMock creates a mock controller that succeeds at everything.
func NewMock() *Mock {
	return &Mock{}
}

// Start calls StartFunc and records the call.
func (m *Mock) Start(ctx context.Context) error {
	m.record("Start")
	if m.StartFunc != nil {
		return m.StartFunc(ctx)
	}
	return nil
}

// Stop calls StopFunc and records the call.
func (m *Mock) Stop(ctx context.Context) error {
	m.record("Stop")
	if m.StopFunc != nil {
		return m.StopFunc(ctx)
	}
	return nil
}

// Ping calls PingFunc and records the call.
func (m *Mock) Ping(ctx context.Context) error {
	m.record("Ping")
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

// record adds a call to the tracking list.
func (m *Mock) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, Time: time.Now()})
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Verify Mock implements Controller at compile time.
var _ Controller = (*Mock)(nil)
