// Package capture defines the speech input contract for the assistant.
//
// A Source owns the microphone loop and its voice activity detection.
// It reports two events: the moment speech activity begins, and the
// finished transcript of each utterance. The orchestrator pauses the
// source while the assistant is speaking so the device does not hear
// itself, and resumes it when it returns to listening.
package capture

import "context"

// Source captures user speech and emits transcribed utterances.
//
// Pause and Resume gate event delivery without tearing down the audio
// device. Both are idempotent: pausing a paused source or resuming a
// running one is a no-op.
type Source interface {
	// Lifecycle

	// Start begins the capture loop. Starting a running source is a no-op.
	Start(ctx context.Context) error

	// Stop halts the capture loop and releases the input device.
	// It is safe to call Stop multiple times.
	Stop() error

	// Running reports whether the capture loop is active.
	Running() bool

	// Gating

	// Pause suppresses event delivery while keeping the device open.
	Pause()

	// Resume re-enables event delivery after a Pause.
	Resume()

	// Paused reports whether event delivery is currently suppressed.
	Paused() bool

	// Events

	// OnSpeechStart is called when speech activity is first detected,
	// before any transcript is available.
	OnSpeechStart(fn func())

	// OnUtterance is called with the transcript of a completed utterance.
	OnUtterance(fn func(text string))
}

// Callbacks groups source callbacks for convenience.
type Callbacks struct {
	OnSpeechStart func()
	OnUtterance   func(text string)
}

// Apply sets all non-nil callbacks on a source.
func (c *Callbacks) Apply(s Source) {
	if c.OnSpeechStart != nil {
		s.OnSpeechStart(c.OnSpeechStart)
	}
	if c.OnUtterance != nil {
		s.OnUtterance(c.OnUtterance)
	}
}
