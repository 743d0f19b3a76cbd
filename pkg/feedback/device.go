package feedback

import (
	"context"
	"log/slog"
	"time"

	"github.com/waifuisalie/Talking-Buddy/pkg/playback"
)

// Device is the hardware feedback implementation. The LED and the tone
// files are both optional, so a partially wired board still works.
type Device struct {
	led     *SysfsLED
	tones   map[Tone]string
	player  playback.Player
	timeout time.Duration
	logger  *slog.Logger
}

// DeviceOption configures a Device.
type DeviceOption func(*Device)

// WithLED attaches a sysfs LED to the device.
func WithLED(led *SysfsLED) DeviceOption {
	return func(d *Device) { d.led = led }
}

// WithTone maps a tone to a WAV file on disk.
func WithTone(t Tone, path string) DeviceOption {
	return func(d *Device) { d.tones[t] = path }
}

// WithTonePlayer replaces the player used for tones.
func WithTonePlayer(p playback.Player) DeviceOption {
	return func(d *Device) { d.player = p }
}

// WithToneTimeout bounds how long a single tone may play.
func WithToneTimeout(timeout time.Duration) DeviceOption {
	return func(d *Device) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithDeviceLogger replaces the logger.
func WithDeviceLogger(logger *slog.Logger) DeviceOption {
	return func(d *Device) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDevice creates a hardware feedback sink.
func NewDevice(opts ...DeviceOption) *Device {
	d := &Device{
		tones:   make(map[Tone]string),
		player:  playback.NewAplayPlayer(""),
		timeout: 3 * time.Second,
		logger:  slog.Default().With("component", "feedback"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// LED switches the status LED. Without an LED attached it only logs.
func (d *Device) LED(p Pattern) {
	if d.led == nil {
		d.logger.Debug("led pattern (no led attached)", "pattern", string(p))
		return
	}
	if err := d.led.Apply(p); err != nil {
		d.logger.Warn("led update failed", "pattern", string(p), "error", err)
		return
	}
	d.logger.Debug("led pattern", "pattern", string(p))
}

// Play starts the tone in the background and returns immediately.
// Unmapped tones are skipped.
func (d *Device) Play(t Tone) {
	path, ok := d.tones[t]
	if !ok {
		d.logger.Debug("tone not configured", "tone", string(t))
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.player.Play(ctx, path); err != nil {
			d.logger.Warn("tone playback failed", "tone", string(t), "error", err)
		}
	}()
}

// Ensure Device implements Feedback.
var _ Feedback = (*Device)(nil)
