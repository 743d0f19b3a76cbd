package capture

import (
	"context"
	"sync"
)

// Mock is a scriptable capture source for testing. Tests drive it by
// calling EmitSpeechStart and EmitUtterance; events emitted while the
// source is stopped or paused are dropped, mirroring a gated
// microphone loop.
//
// Callbacks run synchronously on the emitting goroutine so tests stay
// deterministic.
type Mock struct {
	mu            sync.Mutex
	running       bool
	paused        bool
	onSpeechStart func()
	onUtterance   func(text string)

	calls     []string
	delivered []string
	dropped   []string
}

// NewMock creates a mock capture source.
func NewMock() *Mock {
	return &Mock{}
}

// Start marks the source running.
func (m *Mock) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, "Start")
	if m.running {
		return nil
	}
	m.running = true
	m.paused = false
	return nil
}

// Stop marks the source stopped.
func (m *Mock) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, "Stop")
	m.running = false
	return nil
}

// Running reports whether the source is started.
func (m *Mock) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Pause suppresses event delivery.
func (m *Mock) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, "Pause")
	m.paused = true
}

// Resume re-enables event delivery.
func (m *Mock) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, "Resume")
	m.paused = false
}

// Paused reports whether delivery is suppressed.
func (m *Mock) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// OnSpeechStart sets the speech-start callback.
func (m *Mock) OnSpeechStart(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSpeechStart = fn
}

// OnUtterance sets the utterance callback.
func (m *Mock) OnUtterance(fn func(text string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUtterance = fn
}

// EmitSpeechStart simulates detected speech activity. It reports
// whether the event was delivered.
func (m *Mock) EmitSpeechStart() bool {
	m.mu.Lock()
	deliverable := m.running && !m.paused
	fn := m.onSpeechStart
	m.mu.Unlock()

	if !deliverable || fn == nil {
		return false
	}
	fn()
	return true
}

// EmitUtterance simulates a completed transcription. It reports
// whether the event was delivered.
func (m *Mock) EmitUtterance(text string) bool {
	m.mu.Lock()
	deliverable := m.running && !m.paused
	fn := m.onUtterance
	if deliverable {
		m.delivered = append(m.delivered, text)
	} else {
		m.dropped = append(m.dropped, text)
	}
	m.mu.Unlock()

	if !deliverable || fn == nil {
		return false
	}
	fn(text)
	return true
}

// Say emits a speech-start event followed by the utterance, the way a
// real source reports one spoken turn.
func (m *Mock) Say(text string) bool {
	m.EmitSpeechStart()
	return m.EmitUtterance(text)
}

// Calls returns the lifecycle methods invoked, in order.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// CallCount returns how many times the named method was invoked.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, c := range m.calls {
		if c == method {
			n++
		}
	}
	return n
}

// Delivered returns utterances that reached the callback.
func (m *Mock) Delivered() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.delivered...)
}

// Dropped returns utterances emitted while stopped or paused.
func (m *Mock) Dropped() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.dropped...)
}

// Reset clears recorded calls and utterances. State flags are kept.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.delivered = nil
	m.dropped = nil
}

// Ensure Mock implements Source.
var _ Source = (*Mock)(nil)
