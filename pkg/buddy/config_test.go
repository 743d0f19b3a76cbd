package buddy

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Policy != "conversation" {
		t.Errorf("expected conversation policy, got %s", cfg.Policy)
	}
	if cfg.Model != DefaultModel {
		t.Errorf("expected %s, got %s", DefaultModel, cfg.Model)
	}
	if cfg.InferenceURL != DefaultInferenceURL {
		t.Errorf("expected %s, got %s", DefaultInferenceURL, cfg.InferenceURL)
	}
	if cfg.IdleTimeout != 300*time.Second {
		t.Errorf("expected 300s idle timeout, got %v", cfg.IdleTimeout)
	}
	if cfg.ListenAddr != DefaultListenAddr {
		t.Errorf("expected %s, got %s", DefaultListenAddr, cfg.ListenAddr)
	}
	if !cfg.KeyboardWake {
		t.Error("expected keyboard wake enabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestLoadEnvConfig(t *testing.T) {
	t.Setenv("BUDDY_MODEL", "llama3")
	t.Setenv("BUDDY_POLICY", "smart")
	t.Setenv("BUDDY_IDLE_TIMEOUT", "2m")
	t.Setenv("BUDDY_TEMPERATURE", "0.9")
	t.Setenv("BUDDY_KEYBOARD_WAKE", "false")
	t.Setenv("BUDDY_LED", "act")

	cfg := DefaultConfig()
	cfg.LoadEnvConfig()

	if cfg.Model != "llama3" {
		t.Errorf("expected llama3, got %s", cfg.Model)
	}
	if cfg.Policy != "smart" {
		t.Errorf("expected smart, got %s", cfg.Policy)
	}
	if cfg.IdleTimeout != 2*time.Minute {
		t.Errorf("expected 2m, got %v", cfg.IdleTimeout)
	}
	if cfg.Temperature != 0.9 {
		t.Errorf("expected 0.9, got %v", cfg.Temperature)
	}
	if cfg.KeyboardWake {
		t.Error("expected keyboard wake disabled")
	}
	if cfg.LEDName != "act" {
		t.Errorf("expected act, got %s", cfg.LEDName)
	}

	// Untouched fields keep their defaults.
	if cfg.PiperBinary != "piper" {
		t.Errorf("expected piper, got %s", cfg.PiperBinary)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown policy", func(c *Config) { c.Policy = "aggressive" }, "Policy"},
		{"zero conversation timeout", func(c *Config) { c.ConversationTimeout = 0 }, "ConversationTimeout"},
		{"negative follow-up", func(c *Config) { c.FollowUpTimeout = -time.Second }, "FollowUpTimeout"},
		{"zero idle", func(c *Config) { c.IdleTimeout = 0 }, "IdleTimeout"},
		{"zero context turns", func(c *Config) { c.ContextTurns = 0 }, "ContextTurns"},
		{"empty inference URL", func(c *Config) { c.InferenceURL = "" }, "InferenceURL"},
		{"empty model", func(c *Config) { c.Model = "" }, "Model"},
		{"zero max tokens", func(c *Config) { c.MaxTokens = 0 }, "MaxTokens"},
		{"temperature too high", func(c *Config) { c.Temperature = 2.5 }, "Temperature"},
		{"empty voice", func(c *Config) { c.PiperVoice = "" }, "PiperVoice"},
		{"unknown player", func(c *Config) { c.Player = "sox" }, "Player"},
		{"zero min sentence", func(c *Config) { c.MinSentenceLength = 0 }, "MinSentenceLength"},
		{"zero history turns", func(c *Config) { c.MaxTurns = 0 }, "MaxTurns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Validate() error = %v, want ConfigError", err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("expected field %s, got %s", tt.wantField, cfgErr.Field)
			}
		})
	}
}
