package playback

import (
	"context"
	"fmt"
	"os/exec"
)

// Player plays a single audio file to completion. Implementations must
// honor context cancellation so the queue can cut playback short.
type Player interface {
	Play(ctx context.Context, path string) error
}

// AplayPlayer shells out to ALSA's aplay, the playback path used on the
// appliance itself.
type AplayPlayer struct {
	// Device is the ALSA device passed as -D. Empty uses the default.
	Device string
}

// NewAplayPlayer creates an aplay-backed player for the given ALSA device.
func NewAplayPlayer(device string) *AplayPlayer {
	return &AplayPlayer{Device: device}
}

// Play blocks until aplay exits or the context is cancelled.
func (p *AplayPlayer) Play(ctx context.Context, path string) error {
	args := []string{"-q"}
	if p.Device != "" {
		args = append(args, "-D", p.Device)
	}
	args = append(args, path)

	cmd := exec.CommandContext(ctx, "aplay", args...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("aplay %s: %w", path, err)
	}
	return nil
}

// Ensure implementations satisfy the interface.
var (
	_ Player = (*AplayPlayer)(nil)
	_ Player = (*BeepPlayer)(nil)
	_ Player = (*MockPlayer)(nil)
)
