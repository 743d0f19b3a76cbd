// Talking buddy appliance daemon. Wires the conversation state
// machine, the streaming speech pipeline, the wake sources and the
// dashboard, then runs until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/waifuisalie/Talking-Buddy/internal/log"
	"github.com/waifuisalie/Talking-Buddy/pkg/buddy"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "buddy: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; the defaults cover a stock appliance.
	godotenv.Load()

	cfg := parseFlags()
	log.Init(cfg.LogLevel)

	app, err := buddy.New(cfg)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	if err := app.Init(); err != nil {
		return fmt.Errorf("initialization: %w", err)
	}
	defer app.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return app.Run(ctx)
}

// parseFlags builds the config from defaults, BUDDY_* environment
// overrides and command line flags, in that order.
func parseFlags() buddy.Config {
	cfg := buddy.DefaultConfig()
	cfg.LoadEnvConfig()

	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	flag.StringVar(&cfg.Policy, "policy", cfg.Policy, "Interaction policy: single-shot, conversation, smart")
	flag.DurationVar(&cfg.ConversationTimeout, "conversation-timeout", cfg.ConversationTimeout, "Silence window before light sleep")
	flag.DurationVar(&cfg.FollowUpTimeout, "followup-timeout", cfg.FollowUpTimeout, "Follow-up window after a question (smart policy)")
	flag.DurationVar(&cfg.IdleTimeout, "idle-timeout", cfg.IdleTimeout, "Light sleep duration before deep sleep")
	flag.StringVar(&cfg.InferenceURL, "ollama-url", cfg.InferenceURL, "Ollama OpenAI-compatible base URL")
	flag.StringVar(&cfg.Model, "model", cfg.Model, "Chat model name")
	flag.StringVar(&cfg.FallbackModel, "fallback-model", cfg.FallbackModel, "Model tried when the primary fails")
	flag.StringVar(&cfg.PiperVoice, "voice", cfg.PiperVoice, "Piper voice model")
	flag.StringVar(&cfg.Player, "player", cfg.Player, "Audio output: aplay or beep")
	flag.StringVar(&cfg.AudioDevice, "audio-device", cfg.AudioDevice, "ALSA device for aplay")
	flag.StringVar(&cfg.HistoryFile, "history", cfg.HistoryFile, "Conversation history file")
	flag.StringVar(&cfg.LEDName, "led", cfg.LEDName, "Sysfs status LED name")
	flag.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "Dashboard and sensor bridge address, empty to disable")
	flag.BoolVar(&cfg.KeyboardWake, "keyboard", cfg.KeyboardWake, "Enable the keyboard wake source")
	flag.Parse()

	return cfg
}
