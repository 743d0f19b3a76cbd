package feedback

import "sync"

// Mock records the feedback calls made during a test.
type Mock struct {
	mu       sync.Mutex
	patterns []Pattern
	tones    []Tone
}

// NewMock creates a recording feedback sink.
func NewMock() *Mock {
	return &Mock{}
}

// LED records the requested pattern.
func (m *Mock) LED(p Pattern) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns = append(m.patterns, p)
}

// Play records the requested tone.
func (m *Mock) Play(t Tone) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tones = append(m.tones, t)
}

// Patterns returns every LED pattern requested so far.
func (m *Mock) Patterns() []Pattern {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Pattern, len(m.patterns))
	copy(out, m.patterns)
	return out
}

// LastPattern returns the most recent LED pattern, or PatternOff when
// none was requested.
func (m *Mock) LastPattern() Pattern {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.patterns) == 0 {
		return PatternOff
	}
	return m.patterns[len(m.patterns)-1]
}

// Tones returns every tone requested so far.
func (m *Mock) Tones() []Tone {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Tone, len(m.tones))
	copy(out, m.tones)
	return out
}

// Reset clears the recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns = nil
	m.tones = nil
}

// Ensure Mock implements Feedback.
var _ Feedback = (*Mock)(nil)
