package capture

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Console reads typed lines as utterances. It stands in for the
// microphone during development: each non-empty line is delivered as
// one complete utterance, with a speech-start event just before it.
//
// The read loop blocks on input, so after Stop it exits at the next
// line or at end of input.
type Console struct {
	reader io.Reader
	logger *slog.Logger

	mu            sync.Mutex
	running       bool
	paused        bool
	onSpeechStart func()
	onUtterance   func(text string)
}

// ConsoleOption configures a Console source.
type ConsoleOption func(*Console)

// WithReader overrides the input stream. Defaults to os.Stdin.
func WithReader(r io.Reader) ConsoleOption {
	return func(c *Console) { c.reader = r }
}

// WithConsoleLogger sets the logger.
func WithConsoleLogger(logger *slog.Logger) ConsoleOption {
	return func(c *Console) { c.logger = logger }
}

// NewConsole creates a console capture source.
func NewConsole(opts ...ConsoleOption) *Console {
	c := &Console{
		reader: os.Stdin,
		logger: slog.Default().With("component", "capture"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins reading lines. Starting a running source is a no-op.
func (c *Console) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}
	c.running = true
	c.paused = false

	go c.scanLoop(ctx)

	c.logger.Info("console capture started, type a line to speak")
	return nil
}

func (c *Console) scanLoop(ctx context.Context) {
	scanner := bufio.NewScanner(c.reader)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			c.Stop()
			return
		default:
		}

		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		c.mu.Lock()
		running, paused := c.running, c.paused
		speechStart, utterance := c.onSpeechStart, c.onUtterance
		c.mu.Unlock()

		if !running {
			return
		}
		if paused {
			c.logger.Debug("console capture paused, dropping line", "text", text)
			continue
		}

		if speechStart != nil {
			speechStart()
		}
		if utterance != nil {
			utterance(text)
		}
	}

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	if err := scanner.Err(); err != nil {
		c.logger.Warn("console capture read failed", "error", err)
	} else {
		c.logger.Info("console capture input closed")
	}
}

// Stop halts line delivery. The blocked read exits at the next line
// or at end of input.
func (c *Console) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}
	c.running = false

	c.logger.Info("console capture stopped")
	return nil
}

// Running reports whether the read loop is active.
func (c *Console) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Pause suppresses line delivery.
func (c *Console) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.paused {
		return
	}
	c.paused = true
	c.logger.Debug("console capture paused")
}

// Resume re-enables line delivery.
func (c *Console) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.paused {
		return
	}
	c.paused = false
	c.logger.Debug("console capture resumed")
}

// Paused reports whether delivery is suppressed.
func (c *Console) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// OnSpeechStart sets the speech-start callback.
func (c *Console) OnSpeechStart(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSpeechStart = fn
}

// OnUtterance sets the utterance callback.
func (c *Console) OnUtterance(fn func(text string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUtterance = fn
}

// Ensure Console implements Source.
var _ Source = (*Console)(nil)
