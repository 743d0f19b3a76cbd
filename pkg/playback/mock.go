package playback

import (
	"context"
	"sync"
	"time"
)

// MockPlay records a single call to MockPlayer.Play.
type MockPlay struct {
	Path string
	Time time.Time
}

// MockPlayer is a configurable Player for tests. The zero value succeeds
// instantly; set Delay to simulate playback time or PlayFunc for full
// control.
type MockPlayer struct {
	// PlayFunc overrides Play entirely when set.
	PlayFunc func(ctx context.Context, path string) error

	// Delay is how long each default Play blocks.
	Delay time.Duration

	// Err is returned by the default Play after the delay.
	Err error

	mu    sync.Mutex
	calls []MockPlay
}

// NewMockPlayer creates a mock that simulates the given per-item playback
// duration.
func NewMockPlayer(delay time.Duration) *MockPlayer {
	return &MockPlayer{Delay: delay}
}

// Play records the call, then either delegates to PlayFunc or sleeps for
// Delay while honoring context cancellation.
func (m *MockPlayer) Play(ctx context.Context, path string) error {
	m.mu.Lock()
	m.calls = append(m.calls, MockPlay{Path: path, Time: time.Now()})
	m.mu.Unlock()

	if m.PlayFunc != nil {
		return m.PlayFunc(ctx, path)
	}

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.Err
}

// Calls returns a copy of all recorded calls.
func (m *MockPlayer) Calls() []MockPlay {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockPlay, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of recorded calls.
func (m *MockPlayer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Played returns the paths in the order they were played.
func (m *MockPlayer) Played() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	for i, c := range m.calls {
		out[i] = c.Path
	}
	return out
}

// Reset clears recorded calls.
func (m *MockPlayer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
