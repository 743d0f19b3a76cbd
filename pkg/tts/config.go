package tts

import (
	"log/slog"
	"time"
)

// DefaultVoice is the voice model shipped with the appliance.
const DefaultVoice = "pt_BR-faber-medium.onnx"

// Config holds TTS engine configuration.
// Use functional options (WithXxx) to set these values.
type Config struct {
	// Binary is the synthesizer executable.
	Binary string

	// Voice is the path to the .onnx voice model.
	Voice string

	// OutputDir is where temporary WAV files are written.
	// Empty uses the system temp directory.
	OutputDir string

	// Speaker selects a speaker ID for multi-speaker voice models.
	Speaker int

	// Tuning controls synthesis characteristics.
	Tuning Tuning

	// OutputFormat describes the audio the voice model produces.
	OutputFormat Encoding

	// Timeout bounds a single synthesis run.
	Timeout time.Duration

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring TTS engines.
type Option func(*Config)

// WithBinary sets the synthesizer executable path.
func WithBinary(path string) Option {
	return func(c *Config) {
		c.Binary = path
	}
}

// WithVoice sets the voice model path.
func WithVoice(path string) Option {
	return func(c *Config) {
		c.Voice = path
	}
}

// WithOutputDir sets the directory for temporary WAV files.
func WithOutputDir(dir string) Option {
	return func(c *Config) {
		c.OutputDir = dir
	}
}

// WithSpeaker selects a speaker ID for multi-speaker models.
func WithSpeaker(id int) Option {
	return func(c *Config) {
		c.Speaker = id
	}
}

// WithTuning sets synthesis characteristics.
func WithTuning(t Tuning) Option {
	return func(c *Config) {
		c.Tuning = t
	}
}

// WithOutputFormat sets the audio format the voice model produces.
func WithOutputFormat(format Encoding) Option {
	return func(c *Config) {
		c.OutputFormat = format
	}
}

// WithTimeout bounds a single synthesis run.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithLogger sets the structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Binary:       "piper",
		Voice:        DefaultVoice,
		Tuning:       DefaultTuning(),
		OutputFormat: EncodingPCM22, // medium-quality Piper voices
		Timeout:      30 * time.Second,
		Logger:       slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Voice == "" {
		return ErrNoVoice
	}
	return nil
}
