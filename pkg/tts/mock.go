package tts

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Mock implements Synthesizer for testing.
// All methods can be customized via function fields.
type Mock struct {
	// SynthesizeFunc is called when Synthesize is invoked.
	// If nil, returns a result with no file and an estimated duration.
	SynthesizeFunc func(ctx context.Context, text string) (*AudioResult, error)

	// HealthFunc is called when Health is invoked.
	// If nil, returns nil (healthy).
	HealthFunc func(ctx context.Context) error

	// CloseFunc is called when Close is invoked.
	// If nil, returns nil.
	CloseFunc func() error

	// Tracking
	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation for verification.
type MockCall struct {
	Method string
	Text   string
	Time   time.Time
}

// NewMock creates a new mock engine with sensible defaults.
// The default Synthesize estimates duration at roughly natural speech
// pacing without touching the filesystem.
func NewMock() *Mock {
	return &Mock{
		SynthesizeFunc: func(ctx context.Context, text string) (*AudioResult, error) {
			// ~60ms per character approximates Piper medium voices.
			return &AudioResult{
				Format: AudioFormat{
					Encoding:   EncodingPCM22,
					SampleRate: 22050,
					Channels:   1,
					BitDepth:   16,
				},
				CharCount: len(text),
				LatencyMs: 10,
				Duration:  time.Duration(len(text)) * 60 * time.Millisecond,
			}, nil
		},
		HealthFunc: func(ctx context.Context) error {
			return nil
		},
	}
}

// NewFileMock creates a mock that writes a real silent WAV file per call
// into dir, for tests that exercise file cleanup.
func NewFileMock(dir string) *Mock {
	m := NewMock()
	m.SynthesizeFunc = func(ctx context.Context, text string) (*AudioResult, error) {
		path := filepath.Join(dir, "mock-"+uuid.NewString()+".wav")
		if err := os.WriteFile(path, silentWAV(), 0644); err != nil {
			return nil, WrapError("mock", err)
		}
		return &AudioResult{
			Path:    path,
			Cleanup: true,
			Format: AudioFormat{
				Encoding:   EncodingPCM22,
				SampleRate: 22050,
				Channels:   1,
				BitDepth:   16,
			},
			CharCount: len(text),
			LatencyMs: 1,
		}, nil
	}
	return m
}

// Synthesize calls SynthesizeFunc and records the call.
func (m *Mock) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	m.recordCall("Synthesize", text)
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text)
	}
	return nil, WrapError("mock", ErrEngineUnavailable)
}

// Health calls HealthFunc and records the call.
func (m *Mock) Health(ctx context.Context) error {
	m.recordCall("Health", "")
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Close calls CloseFunc and records the call.
func (m *Mock) Close() error {
	m.recordCall("Close", "")
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// recordCall adds a call to the tracking list.
func (m *Mock) recordCall(method, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{
		Method: method,
		Text:   text,
		Time:   time.Now(),
	})
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

// LastCall returns the most recent call, or nil if none.
func (m *Mock) LastCall() *MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	call := m.calls[len(m.calls)-1]
	return &call
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// WithError returns a mock that always returns the given error.
func WithError(err error) *Mock {
	return &Mock{
		SynthesizeFunc: func(ctx context.Context, text string) (*AudioResult, error) {
			return nil, err
		},
		HealthFunc: func(ctx context.Context) error {
			return err
		},
	}
}

// WithLatency wraps a mock to add artificial synthesis latency.
func WithLatency(m *Mock, delay time.Duration) *Mock {
	originalSynthesize := m.SynthesizeFunc
	m.SynthesizeFunc = func(ctx context.Context, text string) (*AudioResult, error) {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if originalSynthesize != nil {
			return originalSynthesize(ctx, text)
		}
		return nil, WrapError("mock", ErrEngineUnavailable)
	}
	return m
}

// silentWAV returns a minimal valid WAV file: a 44-byte header followed by
// a handful of zero samples at 22.05kHz mono PCM16.
func silentWAV() []byte {
	const samples = 32
	data := make([]byte, 44+samples*2)

	copy(data[0:4], "RIFF")
	putUint32(data[4:8], uint32(36+samples*2))
	copy(data[8:12], "WAVE")
	copy(data[12:16], "fmt ")
	putUint32(data[16:20], 16)
	putUint16(data[20:22], 1) // PCM
	putUint16(data[22:24], 1) // mono
	putUint32(data[24:28], 22050)
	putUint32(data[28:32], 22050*2)
	putUint16(data[32:34], 2)
	putUint16(data[34:36], 16)
	copy(data[36:40], "data")
	putUint32(data[40:44], uint32(samples*2))

	return data
}

func putUint16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// Verify Mock implements Synthesizer at compile time.
var _ Synthesizer = (*Mock)(nil)
