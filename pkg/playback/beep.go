package playback

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
)

// BeepPlayer plays WAV files through the beep speaker. It is the
// development path for machines without aplay; the appliance uses
// AplayPlayer.
type BeepPlayer struct {
	mu         sync.Mutex
	sampleRate beep.SampleRate
}

// NewBeepPlayer creates a beep-backed player. The speaker is initialized
// lazily with the sample rate of the first file played; later files at a
// different rate are resampled.
func NewBeepPlayer() *BeepPlayer {
	return &BeepPlayer{}
}

// Play decodes and plays one WAV file, blocking until it finishes or the
// context is cancelled.
func (p *BeepPlayer) Play(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	streamer, format, err := wav.Decode(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("decode %s: %w", path, err)
	}
	defer streamer.Close()

	p.mu.Lock()
	if p.sampleRate == 0 {
		if err := speaker.Init(format.SampleRate, format.SampleRate.N(100*time.Millisecond)); err != nil {
			p.mu.Unlock()
			return fmt.Errorf("speaker init: %w", err)
		}
		p.sampleRate = format.SampleRate
	}
	rate := p.sampleRate
	p.mu.Unlock()

	var stream beep.Streamer = streamer
	if format.SampleRate != rate {
		stream = beep.Resample(4, format.SampleRate, rate, streamer)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(stream, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return streamer.Err()
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}
