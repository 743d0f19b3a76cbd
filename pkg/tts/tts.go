// Package tts provides a unified interface for text-to-speech engines.
//
// The appliance synthesizes speech locally with Piper; the package keeps an
// engine-neutral Synthesizer interface so the pipeline can fall back to an
// alternate engine (or a mock in tests) without changing caller code.
// Synthesis is file-based: each call produces a WAV file on disk that the
// playback queue plays and then deletes.
//
// Example usage:
//
//	engine, _ := tts.NewPiper(
//	    tts.WithVoice("/opt/voices/pt_BR-faber-medium.onnx"),
//	)
//	defer engine.Close()
//
//	result, _ := engine.Synthesize(ctx, "Olá, tudo bem?")
//	// result.Path points at the synthesized WAV file
package tts

import (
	"context"
	"time"
)

// Synthesizer defines the text-to-speech engine interface.
// All implementations must satisfy this interface so engines can be swapped
// without touching the pipeline.
type Synthesizer interface {
	// Synthesize converts one sentence to a WAV file on disk.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Health checks that the engine is usable (binary present, voice
	// model readable).
	Health(ctx context.Context) error

	// Close releases any resources held by the engine.
	Close() error
}

// AudioResult describes one synthesized audio file.
type AudioResult struct {
	// Path is the WAV file written by the engine.
	Path string

	// Cleanup marks Path as a temporary file the consumer should delete
	// after playback.
	Cleanup bool

	// Format describes the audio encoding and sample rate.
	Format AudioFormat

	// Duration is the estimated playback duration.
	Duration time.Duration

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the synthesis wall time in milliseconds.
	LatencyMs int64
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	// Encoding specifies the sample encoding (e.g. pcm_22050).
	Encoding Encoding

	// SampleRate in Hz (e.g. 16000, 22050).
	SampleRate int

	// Channels is 1 for mono, 2 for stereo.
	Channels int

	// BitDepth for PCM formats (16 for PCM16).
	BitDepth int
}

// Encoding represents audio encoding types.
// These match the sample rates of Piper voice quality tiers.
type Encoding string

const (
	EncodingPCM16 Encoding = "pcm_16000" // 16kHz mono PCM16 (low-quality voices)
	EncodingPCM22 Encoding = "pcm_22050" // 22.05kHz mono PCM16 (medium/high voices)
	EncodingPCM24 Encoding = "pcm_24000" // 24kHz mono PCM16
	EncodingPCM44 Encoding = "pcm_44100" // 44.1kHz mono PCM16
)

// Tuning controls Piper synthesis characteristics. Zero values fall back to
// the voice model's own defaults.
type Tuning struct {
	// LengthScale stretches phoneme durations. 1.0 is the voice default,
	// higher is slower speech.
	LengthScale float64

	// NoiseScale controls generator noise (0.0-1.0). Higher is more
	// expressive but less consistent.
	NoiseScale float64

	// NoiseW controls phoneme duration noise (0.0-1.0).
	NoiseW float64
}

// DefaultTuning returns the stock Piper synthesis parameters.
func DefaultTuning() Tuning {
	return Tuning{
		LengthScale: 1.0,
		NoiseScale:  0.667,
		NoiseW:      0.8,
	}
}

// SampleRateFromEncoding extracts the sample rate from an encoding type.
func SampleRateFromEncoding(enc Encoding) int {
	switch enc {
	case EncodingPCM16:
		return 16000
	case EncodingPCM22:
		return 22050
	case EncodingPCM24:
		return 24000
	case EncodingPCM44:
		return 44100
	default:
		return 22050 // Piper medium voices
	}
}
