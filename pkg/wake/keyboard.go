package wake

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/eiannone/keyboard"
)

// Keyboard is a development wake source: pressing 'w' wakes the
// machine, 'q' or Esc fires the quit callback. It owns the terminal's
// raw keyboard while running.
type Keyboard struct {
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	onWake  func()
	onQuit  func()
}

// NewKeyboard creates a keyboard wake source.
func NewKeyboard(logger *slog.Logger) *Keyboard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Keyboard{logger: logger.With("component", "wake", "source", "keyboard")}
}

// Start opens the keyboard and begins the key loop.
func (k *Keyboard) Start(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.running {
		return nil
	}
	if err := keyboard.Open(); err != nil {
		return fmt.Errorf("wake: open keyboard: %w", err)
	}
	k.running = true
	go k.loop(ctx)
	k.logger.Info("keyboard wake source active, press 'w' to wake, 'q' to quit")
	return nil
}

// Stop closes the keyboard, which unblocks the key loop.
func (k *Keyboard) Stop() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.running {
		return nil
	}
	k.running = false
	return keyboard.Close()
}

// OnWake registers the wake callback.
func (k *Keyboard) OnWake(fn func()) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.onWake = fn
}

// OnQuit registers the callback fired when 'q' or Esc is pressed.
func (k *Keyboard) OnQuit(fn func()) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.onQuit = fn
}

// Name returns "keyboard".
func (k *Keyboard) Name() string {
	return "keyboard"
}

func (k *Keyboard) loop(ctx context.Context) {
	for {
		char, key, err := keyboard.GetKey()
		if err != nil {
			// Stop closes the keyboard under us; anything else is a
			// real failure.
			k.mu.Lock()
			running := k.running
			k.mu.Unlock()
			if running {
				k.logger.Warn("keyboard read failed", "error", err)
			}
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}

		switch {
		case char == 'w' || char == 'W':
			k.mu.Lock()
			fn := k.onWake
			k.mu.Unlock()
			if fn != nil {
				fn()
			}
		case char == 'q' || char == 'Q' || key == keyboard.KeyEsc:
			k.logger.Info("quit key pressed")
			k.mu.Lock()
			fn := k.onQuit
			k.mu.Unlock()
			if fn != nil {
				fn()
			}
			return
		}
	}
}

// Ensure Keyboard implements Source.
var _ Source = (*Keyboard)(nil)
