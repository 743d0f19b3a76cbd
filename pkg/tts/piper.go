package tts

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Piper synthesizes speech by shelling out to the piper binary. Each call
// writes one temporary WAV file; the caller (normally the playback queue)
// owns its deletion.
type Piper struct {
	config *Config
	logger *slog.Logger
}

// NewPiper creates a Piper engine.
// The voice model path is required; everything else has defaults.
func NewPiper(opts ...Option) (*Piper, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Piper{
		config: cfg,
		logger: cfg.Logger.With("component", "tts.piper"),
	}, nil
}

// Synthesize runs piper with the sentence on stdin and returns the WAV file
// it produced.
func (p *Piper) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	out, err := os.CreateTemp(p.config.OutputDir, "buddy-tts-*.wav")
	if err != nil {
		return nil, WrapError("piper", err)
	}
	path := out.Name()
	out.Close()

	cmd := exec.CommandContext(ctx, p.config.Binary, p.args(path)...)
	cmd.Stdin = strings.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		os.Remove(path)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &CommandError{
			Engine: "piper",
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	latency := time.Since(start)

	format := AudioFormat{
		Encoding:   p.config.OutputFormat,
		SampleRate: SampleRateFromEncoding(p.config.OutputFormat),
		Channels:   1,
		BitDepth:   16,
	}

	result := &AudioResult{
		Path:      path,
		Cleanup:   true,
		Format:    format,
		CharCount: len(text),
		LatencyMs: latency.Milliseconds(),
	}
	if info, err := os.Stat(path); err == nil {
		result.Duration = pcmDuration(info.Size(), format)
	}

	p.logger.Debug("synthesized sentence",
		"chars", result.CharCount,
		"latency_ms", result.LatencyMs,
		"duration", result.Duration,
	)
	return result, nil
}

// args builds the piper command line for one synthesis run.
func (p *Piper) args(outPath string) []string {
	args := []string{
		"--model", p.config.Voice,
		"--output_file", outPath,
	}

	t := p.config.Tuning
	if t.LengthScale > 0 {
		args = append(args, "--length_scale", formatFloat(t.LengthScale))
	}
	if t.NoiseScale > 0 {
		args = append(args, "--noise_scale", formatFloat(t.NoiseScale))
	}
	if t.NoiseW > 0 {
		args = append(args, "--noise_w", formatFloat(t.NoiseW))
	}
	if p.config.Speaker > 0 {
		args = append(args, "--speaker", strconv.Itoa(p.config.Speaker))
	}
	return args
}

// Health verifies the binary is on PATH and the voice model is readable.
func (p *Piper) Health(ctx context.Context) error {
	if _, err := exec.LookPath(p.config.Binary); err != nil {
		return WrapError("piper", fmt.Errorf("binary %q: %w", p.config.Binary, err))
	}
	if _, err := os.Stat(p.config.Voice); err != nil {
		return WrapError("piper", fmt.Errorf("voice model %q: %w", p.config.Voice, err))
	}
	return nil
}

// Close releases engine resources. Piper holds none between runs.
func (p *Piper) Close() error {
	return nil
}

// pcmDuration estimates playback time of a WAV file from its size, assuming
// a 44-byte header.
func pcmDuration(size int64, f AudioFormat) time.Duration {
	pcm := size - 44
	if pcm <= 0 {
		return 0
	}
	bytesPerSec := int64(f.SampleRate * f.Channels * f.BitDepth / 8)
	if bytesPerSec <= 0 {
		return 0
	}
	return time.Duration(pcm) * time.Second / time.Duration(bytesPerSec)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Verify Piper implements Synthesizer at compile time.
var _ Synthesizer = (*Piper)(nil)
