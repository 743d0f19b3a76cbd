package buddy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/waifuisalie/Talking-Buddy/pkg/backend"
	"github.com/waifuisalie/Talking-Buddy/pkg/bridge"
	"github.com/waifuisalie/Talking-Buddy/pkg/capture"
	"github.com/waifuisalie/Talking-Buddy/pkg/convo"
	"github.com/waifuisalie/Talking-Buddy/pkg/feedback"
	"github.com/waifuisalie/Talking-Buddy/pkg/inference"
	"github.com/waifuisalie/Talking-Buddy/pkg/memory"
	"github.com/waifuisalie/Talking-Buddy/pkg/playback"
	"github.com/waifuisalie/Talking-Buddy/pkg/protocol"
	"github.com/waifuisalie/Talking-Buddy/pkg/segment"
	"github.com/waifuisalie/Talking-Buddy/pkg/speech"
	"github.com/waifuisalie/Talking-Buddy/pkg/tts"
	"github.com/waifuisalie/Talking-Buddy/pkg/wake"
	"github.com/waifuisalie/Talking-Buddy/pkg/web"
)

// warmupTimeout bounds the one-token request that pre-loads the model
// after a deep sleep wake.
const warmupTimeout = 60 * time.Second

// App is the appliance orchestrator. It owns every component and their
// lifecycle: New validates, Init builds, Run blocks, Shutdown stops.
type App struct {
	config Config
	logger *slog.Logger

	// Response pipeline.
	provider inference.Provider
	synth    tts.Synthesizer
	player   playback.Player
	queue    *playback.Queue
	pipeline *speech.Pipeline

	// Conversation.
	history *memory.History
	machine *convo.Machine

	// Wake sources.
	keyboard   *wake.Keyboard
	sensorWake *wake.Trigger

	// Network surfaces, nil when ListenAddr is empty.
	bridge *bridge.Server
	web    *web.Server

	quit     chan struct{}
	quitOnce sync.Once
}

// New creates the application. The config must already carry any
// environment or flag overrides; New only validates it.
func New(cfg Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &App{
		config: cfg,
		logger: slog.Default().With("component", "buddy"),
		quit:   make(chan struct{}),
	}, nil
}

// Init builds all components. Call it after New and before Run.
func (a *App) Init() error {
	if err := a.initInference(); err != nil {
		return fmt.Errorf("inference init: %w", err)
	}
	if err := a.initSpeech(); err != nil {
		return fmt.Errorf("speech init: %w", err)
	}
	a.initHistory()

	// The bridge must exist before the machine so it can receive
	// sleep notifications.
	if a.config.ListenAddr != "" {
		a.bridge = bridge.New(a.logger)
	}
	if err := a.initMachine(); err != nil {
		return fmt.Errorf("machine init: %w", err)
	}
	a.initWakeSources()
	a.initServers()
	return nil
}

// Run starts the machine, the wake sources and the servers, then
// blocks until ctx is cancelled, the keyboard quits, or the machine
// stops on its own.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	machineDone := make(chan error, 1)
	go func() { machineDone <- a.machine.Run(runCtx) }()

	a.sensorWake.Start(runCtx)
	if a.keyboard != nil {
		if err := a.keyboard.Start(runCtx); err != nil {
			// No TTY, probably running under systemd. The sensor
			// bridge and the dashboard still wake us.
			a.logger.Warn("keyboard wake unavailable", "error", err)
			a.keyboard = nil
		}
	}

	if a.web != nil {
		go func() {
			if err := a.web.Start(); err != nil {
				a.logger.Error("dashboard server stopped", "error", err)
			}
		}()
	}

	a.logger.Info("talking buddy ready",
		"state", a.machine.State(),
		"policy", a.config.Policy,
		"model", a.config.Model)

	select {
	case <-ctx.Done():
	case <-a.quit:
		a.logger.Info("quit requested")
		cancel()
	case err := <-machineDone:
		return err
	}
	return <-machineDone
}

// Shutdown stops everything Run started. Safe to call after Run
// returns; the machine has already wound itself down by then.
func (a *App) Shutdown() {
	if a.keyboard != nil {
		a.keyboard.Stop()
	}
	if a.sensorWake != nil {
		a.sensorWake.Stop()
	}
	if a.web != nil {
		if err := a.web.Shutdown(); err != nil {
			a.logger.Warn("dashboard shutdown failed", "error", err)
		}
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Warn("history close failed", "error", err)
		}
	}
	if a.provider != nil {
		a.provider.Close()
	}
	a.logger.Info("goodbye")
}

// initInference builds the chat provider, chaining a fallback model
// behind the primary when one is configured.
func (a *App) initInference() error {
	primary, err := a.newClient(a.config.Model)
	if err != nil {
		return err
	}
	a.provider = primary

	if a.config.FallbackModel == "" {
		return nil
	}
	fallback, err := a.newClient(a.config.FallbackModel)
	if err != nil {
		return err
	}
	chain, err := inference.NewChainWithLogger(a.logger, primary, fallback)
	if err != nil {
		return err
	}
	a.provider = chain
	a.logger.Info("inference fallback enabled",
		"model", a.config.Model, "fallback", a.config.FallbackModel)
	return nil
}

func (a *App) newClient(model string) (*inference.Client, error) {
	return inference.NewClient(
		inference.WithBaseURL(a.config.InferenceURL),
		inference.WithModel(model),
		inference.WithMaxTokens(a.config.MaxTokens),
		inference.WithTemperature(a.config.Temperature),
		inference.WithLogger(a.logger),
	)
}

// initSpeech builds the synthesizer, the playback queue and the
// sentence pipeline that connects them.
func (a *App) initSpeech() error {
	synth, err := a.newPiper(a.config.PiperVoice)
	if err != nil {
		return err
	}
	a.synth = synth

	if a.config.FallbackVoice != "" {
		fallback, err := a.newPiper(a.config.FallbackVoice)
		if err != nil {
			return err
		}
		chain, err := tts.NewChainWithLogger(a.logger, synth, fallback)
		if err != nil {
			return err
		}
		a.synth = chain
	}

	if a.config.Player == "beep" {
		a.player = playback.NewBeepPlayer()
	} else {
		a.player = playback.NewAplayPlayer(a.config.AudioDevice)
	}
	a.queue = playback.NewQueue(a.player,
		playback.WithGraceDelay(a.config.GraceDelay),
		playback.WithLogger(a.logger))
	a.pipeline = speech.NewPipeline(a.synth, a.queue,
		speech.WithSegmentOptions(segment.WithMinLength(a.config.MinSentenceLength)),
		speech.WithLogger(a.logger))
	return nil
}

func (a *App) newPiper(voice string) (*tts.Piper, error) {
	return tts.NewPiper(
		tts.WithBinary(a.config.PiperBinary),
		tts.WithVoice(voice),
		tts.WithLogger(a.logger),
	)
}

func (a *App) initHistory() {
	opts := []memory.Option{
		memory.WithMaxTurns(a.config.MaxTurns),
		memory.WithLogger(a.logger),
	}
	if a.config.HistoryFile != "" {
		opts = append(opts, memory.WithFile(a.config.HistoryFile))
	}
	a.history = memory.New(opts...)
}

// initMachine assembles the conversation state machine and its
// collaborators.
func (a *App) initMachine() error {
	cfg := convo.DefaultConfig().
		WithPolicy(convo.Policy(a.config.Policy)).
		WithConversationTimeout(a.config.ConversationTimeout).
		WithFollowUpTimeout(a.config.FollowUpTimeout).
		WithIdleTimeout(a.config.IdleTimeout).
		WithContextTurns(a.config.ContextTurns)

	genOpts := []convo.GeneratorOption{
		convo.WithMaxTokens(a.config.MaxTokens),
		convo.WithTemperature(a.config.Temperature),
		convo.WithGeneratorLogger(a.logger),
	}
	if a.config.SystemPrompt != "" {
		genOpts = append(genOpts, convo.WithSystemPrompt(a.config.SystemPrompt))
	}

	deps := convo.Deps{
		Capture:   capture.NewConsole(capture.WithConsoleLogger(a.logger)),
		Backend:   a.buildBackend(),
		Responder: convo.NewGenerator(a.provider, a.pipeline, genOpts...),
		History:   a.history,
		Queue:     a.queue,
		Feedback:  a.buildFeedback(),
		Logger:    a.logger,
	}
	if a.bridge != nil {
		deps.Notifier = a.bridge
	}

	machine, err := convo.New(deps, cfg)
	if err != nil {
		return err
	}
	a.machine = machine

	a.machine.OnStateChange(func(from, to convo.State) {
		if from == convo.StateDeepSleep && to == convo.StateListening {
			go a.warmModel()
		}
	})
	return nil
}

// buildBackend derives the health endpoint from the inference URL so a
// remote Ollama is probed at the right host.
func (a *App) buildBackend() backend.Controller {
	healthURL := strings.TrimSuffix(a.config.InferenceURL, "/v1") + "/api/tags"
	return backend.NewSystemd(
		backend.WithService(a.config.BackendService),
		backend.WithHealthURL(healthURL),
		backend.WithLogger(a.logger),
	)
}

// buildFeedback wires the LED and tone outputs when configured, and
// returns nil otherwise so the machine falls back to its log sink.
func (a *App) buildFeedback() feedback.Feedback {
	var opts []feedback.DeviceOption
	if a.config.LEDName != "" {
		led, err := feedback.NewSysfsLED(feedback.DefaultSysfsRoot, a.config.LEDName)
		if err != nil {
			a.logger.Warn("status LED unavailable", "led", a.config.LEDName, "error", err)
		} else {
			opts = append(opts, feedback.WithLED(led))
		}
	}
	if a.config.TonesDir != "" {
		opts = append(opts,
			feedback.WithTone(feedback.ToneWake, filepath.Join(a.config.TonesDir, "wake.wav")),
			feedback.WithTone(feedback.ToneSleep, filepath.Join(a.config.TonesDir, "sleep.wav")),
			feedback.WithTone(feedback.ToneError, filepath.Join(a.config.TonesDir, "error.wav")),
			feedback.WithTonePlayer(a.player),
		)
	}
	if len(opts) == 0 {
		return nil
	}
	opts = append(opts, feedback.WithDeviceLogger(a.logger))
	return feedback.NewDevice(opts...)
}

func (a *App) initWakeSources() {
	a.sensorWake = wake.NewTrigger("sensor")
	a.sensorWake.OnWake(func() { a.wakeAsync("sensor") })

	if a.config.KeyboardWake {
		a.keyboard = wake.NewKeyboard(a.logger)
		a.keyboard.OnWake(func() { a.wakeAsync("keyboard") })
		a.keyboard.OnQuit(a.requestQuit)
	}
}

// initServers builds the dashboard, mounts the sensor bridge on its
// listener and wires the live streams to the machine and the history.
func (a *App) initServers() {
	if a.bridge == nil {
		return
	}
	a.bridge.OnWake(a.handleSensorWake)

	a.web = web.NewServer(a.config.ListenAddr,
		web.WithStatusSource(a.machine.Status),
		web.WithHistory(a.history),
		web.WithWakeTrigger(a.dashboardWake),
		web.WithLogger(a.logger),
	)
	a.bridge.RegisterRoutes(a.web.App())
	a.bridge.RegisterAPIRoutes(a.web.App().Group("/api"))

	a.machine.OnStateChange(a.web.PushState)
	a.history.OnTurn(a.web.PushTurn)
}

// handleSensorWake acks wake requests from the bridge. The ack must go
// out promptly, so the machine wake runs through the async trigger.
func (a *App) handleSensorWake(sensorID string, w *protocol.WakeData) (bool, string) {
	accepted := a.sensorWake.Fire()
	if accepted && a.web != nil {
		a.web.AddLog("wake", fmt.Sprintf("wake from sensor %s", sensorID))
	}
	return accepted, string(a.machine.State())
}

// dashboardWake serves the manual wake button. Deep sleep wakes take
// tens of seconds, so the request is accepted and runs in the
// background.
func (a *App) dashboardWake() error {
	if !a.machine.Running() {
		return convo.ErrNotRunning
	}
	a.wakeAsync("dashboard")
	return nil
}

// wakeAsync delivers a wake signal without blocking the caller. Wakes
// from deep sleep wait for the backend to come up.
func (a *App) wakeAsync(source string) {
	go func() {
		if err := a.machine.WakeDefault(); err != nil && !errors.Is(err, convo.ErrNotRunning) {
			a.logger.Warn("wake failed", "source", source, "error", err)
		}
	}()
}

func (a *App) requestQuit() {
	a.quitOnce.Do(func() { close(a.quit) })
}

// warmModel issues a one-token request after a deep sleep wake so the
// backend loads the model before the user's first utterance arrives.
func (a *App) warmModel() {
	ctx, cancel := context.WithTimeout(context.Background(), warmupTimeout)
	defer cancel()

	req := &inference.ChatRequest{
		Messages:  []inference.Message{inference.NewUserMessage("oi")},
		MaxTokens: 1,
	}
	start := time.Now()
	if _, err := a.provider.Chat(ctx, req); err != nil {
		a.logger.Debug("model warm-up failed", "error", err)
		return
	}
	a.logger.Debug("model warmed", "took", time.Since(start))
}
