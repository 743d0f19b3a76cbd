// Package feedback drives the appliance's status LED and feedback
// tones. All of it is fire-and-forget: failures are logged and never
// block or abort a state transition.
package feedback

import "log/slog"

// Pattern names a visual LED state.
type Pattern string

// LED patterns for each conversation state.
const (
	PatternListening  Pattern = "listening"   // slow pulse
	PatternProcessing Pattern = "processing"  // solid
	PatternSpeaking   Pattern = "speaking"    // fast pulse
	PatternLightSleep Pattern = "light_sleep" // dim
	PatternDeepSleep  Pattern = "deep_sleep"  // off
	PatternError      Pattern = "error"       // rapid blink
	PatternOff        Pattern = "off"
)

// Tone names a short feedback sound.
type Tone string

// Tones the conversation loop can request.
const (
	ToneWake  Tone = "wake"
	ToneSleep Tone = "sleep"
	ToneError Tone = "error"
)

// Feedback is the appliance feedback contract.
type Feedback interface {
	// LED switches the status LED to the given pattern.
	LED(p Pattern)

	// Play plays a feedback tone without waiting for it to finish.
	Play(t Tone)
}

// Log is a Feedback that only logs, for development machines without
// an LED or speaker wired up.
type Log struct {
	Logger *slog.Logger
}

// NewLog creates a log-only feedback sink.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{Logger: logger.With("component", "feedback")}
}

// LED logs the requested pattern.
func (l *Log) LED(p Pattern) {
	l.Logger.Debug("led pattern", "pattern", string(p))
}

// Play logs the requested tone.
func (l *Log) Play(t Tone) {
	l.Logger.Debug("feedback tone", "tone", string(t))
}

// Ensure Log implements Feedback.
var _ Feedback = (*Log)(nil)
