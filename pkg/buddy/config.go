// Package buddy assembles the talking buddy appliance: the conversation
// state machine, the streaming response pipeline, wake sources, the
// sensor bridge and the dashboard, all wired from a single Config.
package buddy

import (
	"fmt"
	"time"

	"github.com/waifuisalie/Talking-Buddy/internal/config"
	"github.com/waifuisalie/Talking-Buddy/pkg/convo"
	"github.com/waifuisalie/Talking-Buddy/pkg/memory"
	"github.com/waifuisalie/Talking-Buddy/pkg/playback"
	"github.com/waifuisalie/Talking-Buddy/pkg/segment"
	"github.com/waifuisalie/Talking-Buddy/pkg/tts"
)

// Default configuration values.
const (
	DefaultInferenceURL = "http://localhost:11434/v1"
	DefaultModel        = "gemma3-ptbr"
	DefaultService      = "ollama"
	DefaultListenAddr   = ":8080"
	DefaultHistoryFile  = "conversations/history.json"
)

// Config holds all configuration for the appliance. Flag parsing is
// done in cmd/buddy/main.go; this struct is data only.
type Config struct {
	// LogLevel selects the slog level: debug, info, warn or error.
	LogLevel string

	// Conversation policy and timers.
	Policy              string
	ConversationTimeout time.Duration
	FollowUpTimeout     time.Duration
	IdleTimeout         time.Duration
	ContextTurns        int

	// SystemPrompt is sent ahead of the history when set. The default
	// is empty because the shipped model is already tuned for the
	// companion persona.
	SystemPrompt string

	// Inference backend.
	InferenceURL  string
	Model         string
	FallbackModel string
	MaxTokens     int
	Temperature   float64

	// BackendService is the systemd unit stopped on deep sleep and
	// restarted on wake.
	BackendService string

	// Speech synthesis. FallbackVoice, when set, is tried after the
	// primary voice fails.
	PiperBinary   string
	PiperVoice    string
	FallbackVoice string

	// Playback output: "aplay" for the ALSA pipeline on the appliance,
	// "beep" for the in-process decoder on a dev machine. AudioDevice
	// selects the aplay device, empty for the system default.
	Player      string
	AudioDevice string
	GraceDelay  time.Duration

	// MinSentenceLength is the shortest fragment handed to the
	// synthesizer on its own.
	MinSentenceLength int

	// Conversation history.
	HistoryFile string
	MaxTurns    int

	// Hardware feedback. Empty values disable the respective output.
	LEDName  string
	TonesDir string

	// ListenAddr serves the dashboard and the sensor bridge. Empty
	// disables both.
	ListenAddr string

	// KeyboardWake enables the interactive keyboard wake source. Turn
	// it off when running headless under systemd.
	KeyboardWake bool
}

// DefaultConfig returns sensible defaults for the appliance. The
// conversation timers come straight from the state machine defaults.
func DefaultConfig() Config {
	machine := convo.DefaultConfig()
	return Config{
		LogLevel:            "info",
		Policy:              string(machine.Policy),
		ConversationTimeout: machine.ConversationTimeout,
		FollowUpTimeout:     machine.FollowUpTimeout,
		IdleTimeout:         machine.IdleTimeout,
		ContextTurns:        machine.ContextTurns,
		InferenceURL:        DefaultInferenceURL,
		Model:               DefaultModel,
		MaxTokens:           250,
		Temperature:         0.7,
		BackendService:      DefaultService,
		PiperBinary:         "piper",
		PiperVoice:          tts.DefaultVoice,
		Player:              "aplay",
		GraceDelay:          playback.DefaultGraceDelay,
		MinSentenceLength:   segment.DefaultMinLength,
		HistoryFile:         DefaultHistoryFile,
		MaxTurns:            memory.DefaultMaxTurns,
		ListenAddr:          DefaultListenAddr,
		KeyboardWake:        true,
	}
}

// LoadEnvConfig applies BUDDY_* environment overrides. Call it before
// flag parsing so explicit flags win over the environment.
func (c *Config) LoadEnvConfig() {
	c.LogLevel = config.String("BUDDY_LOG_LEVEL", c.LogLevel)
	c.Policy = config.String("BUDDY_POLICY", c.Policy)
	c.ConversationTimeout = config.Duration("BUDDY_CONVERSATION_TIMEOUT", c.ConversationTimeout)
	c.FollowUpTimeout = config.Duration("BUDDY_FOLLOWUP_TIMEOUT", c.FollowUpTimeout)
	c.IdleTimeout = config.Duration("BUDDY_IDLE_TIMEOUT", c.IdleTimeout)
	c.ContextTurns = config.Int("BUDDY_CONTEXT_TURNS", c.ContextTurns)
	c.SystemPrompt = config.String("BUDDY_SYSTEM_PROMPT", c.SystemPrompt)
	c.InferenceURL = config.String("BUDDY_OLLAMA_URL", c.InferenceURL)
	c.Model = config.String("BUDDY_MODEL", c.Model)
	c.FallbackModel = config.String("BUDDY_FALLBACK_MODEL", c.FallbackModel)
	c.MaxTokens = config.Int("BUDDY_MAX_TOKENS", c.MaxTokens)
	c.Temperature = config.Float("BUDDY_TEMPERATURE", c.Temperature)
	c.BackendService = config.String("BUDDY_BACKEND_SERVICE", c.BackendService)
	c.PiperBinary = config.String("BUDDY_PIPER_BINARY", c.PiperBinary)
	c.PiperVoice = config.String("BUDDY_PIPER_VOICE", c.PiperVoice)
	c.FallbackVoice = config.String("BUDDY_FALLBACK_VOICE", c.FallbackVoice)
	c.Player = config.String("BUDDY_PLAYER", c.Player)
	c.AudioDevice = config.String("BUDDY_AUDIO_DEVICE", c.AudioDevice)
	c.GraceDelay = config.Duration("BUDDY_GRACE_DELAY", c.GraceDelay)
	c.MinSentenceLength = config.Int("BUDDY_MIN_SENTENCE", c.MinSentenceLength)
	c.HistoryFile = config.String("BUDDY_HISTORY_FILE", c.HistoryFile)
	c.MaxTurns = config.Int("BUDDY_HISTORY_TURNS", c.MaxTurns)
	c.LEDName = config.String("BUDDY_LED", c.LEDName)
	c.TonesDir = config.String("BUDDY_TONES_DIR", c.TonesDir)
	c.ListenAddr = config.String("BUDDY_LISTEN_ADDR", c.ListenAddr)
	c.KeyboardWake = config.Bool("BUDDY_KEYBOARD_WAKE", c.KeyboardWake)
}

// Validate checks that the configuration can actually run.
func (c *Config) Validate() error {
	if !convo.Policy(c.Policy).Known() {
		return &ConfigError{Field: "Policy", Message: fmt.Sprintf("unknown policy %q (want single-shot, conversation or smart)", c.Policy)}
	}
	if c.ConversationTimeout <= 0 {
		return &ConfigError{Field: "ConversationTimeout", Message: "conversation timeout must be positive"}
	}
	if c.FollowUpTimeout <= 0 {
		return &ConfigError{Field: "FollowUpTimeout", Message: "follow-up timeout must be positive"}
	}
	if c.IdleTimeout <= 0 {
		return &ConfigError{Field: "IdleTimeout", Message: "idle timeout must be positive"}
	}
	if c.ContextTurns < 1 {
		return &ConfigError{Field: "ContextTurns", Message: "context turns must be at least 1"}
	}
	if c.InferenceURL == "" {
		return &ConfigError{Field: "InferenceURL", Message: "inference URL is required"}
	}
	if c.Model == "" {
		return &ConfigError{Field: "Model", Message: "model name is required"}
	}
	if c.MaxTokens < 1 {
		return &ConfigError{Field: "MaxTokens", Message: "max tokens must be at least 1"}
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return &ConfigError{Field: "Temperature", Message: "temperature must be between 0 and 2"}
	}
	if c.PiperVoice == "" {
		return &ConfigError{Field: "PiperVoice", Message: "piper voice model is required"}
	}
	if c.Player != "aplay" && c.Player != "beep" {
		return &ConfigError{Field: "Player", Message: fmt.Sprintf("unknown player %q (want aplay or beep)", c.Player)}
	}
	if c.MinSentenceLength < 1 {
		return &ConfigError{Field: "MinSentenceLength", Message: "min sentence length must be at least 1"}
	}
	if c.MaxTurns < 1 {
		return &ConfigError{Field: "MaxTurns", Message: "history turns must be at least 1"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
