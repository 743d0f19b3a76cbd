package tts

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNoVoice is returned when no voice model path is configured.
	ErrNoVoice = errors.New("tts: voice model required")

	// ErrEmptyText is returned when there is nothing to synthesize.
	ErrEmptyText = errors.New("tts: empty text")

	// ErrEngineUnavailable is returned when no engines are available.
	ErrEngineUnavailable = errors.New("tts: no engines available")
)

// CommandError represents a failed synthesis subprocess.
type CommandError struct {
	// Engine identifies which engine ran the command.
	Engine string

	// Stderr holds the subprocess diagnostics, trimmed.
	Stderr string

	// Err is the underlying exec error.
	Err error
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("tts [%s]: %v: %s", e.Engine, e.Err, e.Stderr)
	}
	return fmt.Sprintf("tts [%s]: %v", e.Engine, e.Err)
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// EngineError wraps an error with engine context.
type EngineError struct {
	Engine string
	Err    error
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	return fmt.Sprintf("tts [%s]: %v", e.Engine, e.Err)
}

// Unwrap returns the underlying error.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with engine context.
func WrapError(engine string, err error) error {
	if err == nil {
		return nil
	}
	return &EngineError{Engine: engine, Err: err}
}
