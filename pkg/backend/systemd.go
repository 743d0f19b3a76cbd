package backend

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/waifuisalie/Talking-Buddy/internal/httpc"
)

// Systemd manages the inference server through systemctl. On the appliance
// Ollama runs as a system unit; stopping it is how deep sleep returns the
// model's memory to the OS.
type Systemd struct {
	config *Config
	logger *slog.Logger
}

// Config holds controller configuration.
type Config struct {
	// Service is the systemd unit name.
	Service string

	// HealthURL is probed to decide the server is up.
	HealthURL string

	// Systemctl is the systemctl executable.
	Systemctl string

	// PollInterval is the delay between health probes during startup.
	PollInterval time.Duration

	// StartupTimeout bounds how long Start waits for the first
	// successful probe.
	StartupTimeout time.Duration

	// Logger is the structured logger.
	Logger *slog.Logger
}

// Option is a functional option for configuring the controller.
type Option func(*Config)

// WithService sets the systemd unit name.
func WithService(name string) Option {
	return func(c *Config) { c.Service = name }
}

// WithHealthURL sets the readiness probe URL.
func WithHealthURL(url string) Option {
	return func(c *Config) { c.HealthURL = url }
}

// WithSystemctl overrides the systemctl executable.
func WithSystemctl(path string) Option {
	return func(c *Config) { c.Systemctl = path }
}

// WithPoll sets the probe interval and the startup window.
func WithPoll(interval, timeout time.Duration) Option {
	return func(c *Config) {
		c.PollInterval = interval
		c.StartupTimeout = timeout
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns the stock Ollama-on-systemd configuration.
// The probe hits the native /api/tags endpoint because it answers even
// while a model is still loading.
func DefaultConfig() *Config {
	return &Config{
		Service:        "ollama",
		HealthURL:      "http://localhost:11434/api/tags",
		Systemctl:      "systemctl",
		PollInterval:   500 * time.Millisecond,
		StartupTimeout: 30 * time.Second,
		Logger:         slog.Default(),
	}
}

// NewSystemd creates a systemd-backed controller.
func NewSystemd(opts ...Option) *Systemd {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &Systemd{
		config: cfg,
		logger: cfg.Logger.With("component", "backend", "service", cfg.Service),
	}
}

// Start launches the unit and waits until the API answers.
func (s *Systemd) Start(ctx context.Context) error {
	s.logger.Info("starting inference server")
	if err := s.systemctl(ctx, "start"); err != nil {
		return err
	}
	return s.waitReady(ctx)
}

// Stop shuts the unit down.
func (s *Systemd) Stop(ctx context.Context) error {
	s.logger.Info("stopping inference server")
	return s.systemctl(ctx, "stop")
}

// Ping probes the health URL once.
func (s *Systemd) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", s.config.HealthURL, nil)
	if err != nil {
		return fmt.Errorf("backend: create probe: %w", err)
	}

	resp, err := httpc.Do(req)
	if err != nil {
		return fmt.Errorf("backend: probe %s: %w", s.config.HealthURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend: probe %s: status %d", s.config.HealthURL, resp.StatusCode)
	}
	return nil
}

// waitReady polls the health URL until it answers or the window closes.
func (s *Systemd) waitReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.StartupTimeout)
	defer cancel()

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	start := time.Now()
	for attempt := 1; ; attempt++ {
		if err := s.Ping(ctx); err == nil {
			s.logger.Info("inference server responsive",
				"attempts", attempt,
				"elapsed", time.Since(start),
			)
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w after %s", ErrNotResponsive, time.Since(start).Round(time.Millisecond))
		case <-ticker.C:
		}
	}
}

// systemctl runs one systemctl verb against the configured unit.
func (s *Systemd) systemctl(ctx context.Context, verb string) error {
	cmd := exec.CommandContext(ctx, s.config.Systemctl, verb, s.config.Service)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("backend: systemctl %s %s: %w: %s", verb, s.config.Service, err, msg)
		}
		return fmt.Errorf("backend: systemctl %s %s: %w", verb, s.config.Service, err)
	}
	return nil
}

// Verify Systemd implements Controller at compile time.
var _ Controller = (*Systemd)(nil)
