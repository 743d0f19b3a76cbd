package convo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/waifuisalie/Talking-Buddy/pkg/backend"
	"github.com/waifuisalie/Talking-Buddy/pkg/capture"
	"github.com/waifuisalie/Talking-Buddy/pkg/dismiss"
	"github.com/waifuisalie/Talking-Buddy/pkg/feedback"
	"github.com/waifuisalie/Talking-Buddy/pkg/memory"
	"github.com/waifuisalie/Talking-Buddy/pkg/playback"
	"github.com/waifuisalie/Talking-Buddy/pkg/timeout"
)

// backendStopTimeout bounds the backend shutdown when entering deep
// sleep.
const backendStopTimeout = 30 * time.Second

// SleepNotifier is told when the machine enters light sleep, so an
// external wake sensor can switch back to wake-word detection. Calls
// are best effort and must not block.
type SleepNotifier interface {
	NotifySleep()
}

// Deps are the machine's collaborators. Capture, Backend, Responder,
// History and Queue are required; the rest default sensibly.
type Deps struct {
	Capture   capture.Source
	Backend   backend.Controller
	Responder Responder
	History   *memory.History
	Queue     *playback.Queue

	// Detector flags dismissal phrases. Defaults to the built-in
	// pattern set.
	Detector *dismiss.Detector

	// Timers defaults to a fresh timeout.Manager.
	Timers *timeout.Manager

	// Feedback defaults to a log-only sink.
	Feedback feedback.Feedback

	// Notifier is optional.
	Notifier SleepNotifier

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Machine is the conversation state machine. Create one with New, then
// call Run; Wake is safe from any goroutine while Run is active.
type Machine struct {
	cfg       Config
	capture   capture.Source
	backend   backend.Controller
	responder Responder
	history   *memory.History
	queue     *playback.Queue
	detector  *dismiss.Detector
	timers    *timeout.Manager
	feedback  feedback.Feedback
	notifier  SleepNotifier
	logger    *slog.Logger

	mu       sync.Mutex
	state    State
	flags    flags
	since    time.Time
	waking   bool
	closing  bool
	runCtx   context.Context
	stateFns []func(from, to State)

	turns       chan string
	sessionDone chan playback.Stats
}

// New creates a machine. It validates the config and the required
// dependencies but does not start anything.
func New(deps Deps, cfg Config) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Capture == nil {
		return nil, fmt.Errorf("%w: capture source", ErrMissingDependency)
	}
	if deps.Backend == nil {
		return nil, fmt.Errorf("%w: backend controller", ErrMissingDependency)
	}
	if deps.Responder == nil {
		return nil, fmt.Errorf("%w: responder", ErrMissingDependency)
	}
	if deps.History == nil {
		return nil, fmt.Errorf("%w: history", ErrMissingDependency)
	}
	if deps.Queue == nil {
		return nil, fmt.Errorf("%w: playback queue", ErrMissingDependency)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "convo")

	m := &Machine{
		cfg:         cfg,
		capture:     deps.Capture,
		backend:     deps.Backend,
		responder:   deps.Responder,
		history:     deps.History,
		queue:       deps.Queue,
		detector:    deps.Detector,
		timers:      deps.Timers,
		feedback:    deps.Feedback,
		notifier:    deps.Notifier,
		logger:      logger,
		state:       cfg.InitialState,
		since:       time.Now(),
		turns:       make(chan string, 1),
		sessionDone: make(chan playback.Stats, 1),
	}
	if m.detector == nil {
		m.detector = dismiss.New()
	}
	if m.timers == nil {
		m.timers = timeout.NewManager(logger)
	}
	if m.feedback == nil {
		m.feedback = feedback.NewLog(logger)
	}
	return m, nil
}

// Validate checks the config for values the machine cannot run with.
func (c Config) Validate() error {
	if c.ConversationTimeout <= 0 {
		return fmt.Errorf("%w: conversation timeout must be positive", ErrInvalidConfig)
	}
	if c.FollowUpTimeout <= 0 {
		return fmt.Errorf("%w: follow-up timeout must be positive", ErrInvalidConfig)
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("%w: idle timeout must be positive", ErrInvalidConfig)
	}
	if c.WakeTimeout <= 0 {
		return fmt.Errorf("%w: wake timeout must be positive", ErrInvalidConfig)
	}
	if c.ContextTurns < 1 {
		return fmt.Errorf("%w: context turns must be at least 1", ErrInvalidConfig)
	}
	switch c.InitialState {
	case StateListening, StateLightSleep, StateDeepSleep:
	default:
		return fmt.Errorf("%w: initial state %q", ErrInvalidConfig, c.InitialState)
	}
	return nil
}

// Run wires the collaborator callbacks, enters the initial state and
// blocks dispatching turns until ctx is cancelled. It returns nil
// after an orderly shutdown.
func (m *Machine) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.runCtx != nil {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.runCtx = ctx
	initial := m.cfg.InitialState
	m.state = initial
	m.since = time.Now()
	m.mu.Unlock()

	m.capture.OnSpeechStart(m.handleSpeechStart)
	m.capture.OnUtterance(m.handleUtterance)
	m.queue.OnFirstItem(m.handleFirstAudio)
	m.queue.OnComplete(m.handleSessionComplete)
	m.timers.Register(timeout.Conversation, m.cfg.ConversationTimeout, m.handleConversationTimeout)
	m.timers.Register(timeout.Idle, m.cfg.IdleTimeout, m.handleIdleTimeout)

	m.enterInitial(ctx, initial)
	m.logger.Info("conversation loop running",
		"state", string(initial),
		"policy", string(m.cfg.Policy))

	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return nil
		case text := <-m.turns:
			m.runTurn(ctx, text)
		}
	}
}

func (m *Machine) enterInitial(ctx context.Context, s State) {
	m.feedback.LED(ledFor(s))
	switch s {
	case StateListening:
		if err := m.capture.Start(ctx); err != nil {
			m.logger.Error("capture start failed", "error", err)
		}
		m.startTimer(timeout.Conversation)
	case StateLightSleep:
		m.startTimer(timeout.Idle)
	}
}

// Wake moves the machine out of sleep. In active states it is a no-op.
// Waking from deep sleep starts the inference backend first and blocks
// until it answers or ctx expires; on failure the machine stays in
// deep sleep and the error is returned.
func (m *Machine) Wake(ctx context.Context) error {
	m.mu.Lock()
	if m.runCtx == nil || m.closing {
		m.mu.Unlock()
		return ErrNotRunning
	}
	if m.state.Active() {
		state := m.state
		m.mu.Unlock()
		m.logger.Debug("wake ignored, already active", "state", string(state))
		return nil
	}
	if m.waking {
		m.mu.Unlock()
		m.logger.Debug("wake already in progress")
		return nil
	}
	from := m.state
	m.waking = true
	m.mu.Unlock()

	if from == StateDeepSleep {
		m.logger.Info("waking inference backend")
		if err := m.backend.Start(ctx); err != nil {
			m.mu.Lock()
			m.waking = false
			m.mu.Unlock()
			m.logger.Error("backend did not come up, staying in deep sleep", "error", err)
			return fmt.Errorf("wake from deep sleep: %w", err)
		}
	}

	m.mu.Lock()
	m.waking = false
	from = m.state
	d, ok := decide(evWakeReady, from, m.flags, m.cfg.Policy)
	if !ok {
		m.mu.Unlock()
		return nil
	}
	m.state = d.next
	m.since = time.Now()
	m.mu.Unlock()

	m.logger.Info("awake", "from", string(from))
	m.apply(from, d, "")
	m.feedback.Play(feedback.ToneWake)
	return nil
}

// WakeDefault is Wake with the configured wake timeout, for wake
// sources that carry no context of their own.
func (m *Machine) WakeDefault() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.WakeTimeout)
	defer cancel()
	return m.Wake(ctx)
}

// State returns the current operating state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Running reports whether Run has started and shutdown has not begun.
func (m *Machine) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runCtx != nil && !m.closing
}

// Status returns a snapshot for the dashboard.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		State:            m.state,
		Policy:           m.cfg.Policy,
		Processing:       m.flags.processing,
		PendingDismissal: m.flags.pendingDismiss,
		Since:            m.since,
	}
}

// OnStateChange registers fn to run after every state change. Callbacks
// run synchronously on the dispatching goroutine and must be quick.
func (m *Machine) OnStateChange(fn func(from, to State)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateFns = append(m.stateFns, fn)
}

// handleSpeechStart re-arms the conversation window while the user is
// talking, so a slow utterance is not cut off by the silence timer.
func (m *Machine) handleSpeechStart() {
	m.mu.Lock()
	restart := m.state == StateListening && !m.flags.processing && !m.closing
	m.mu.Unlock()
	if restart {
		m.startTimer(timeout.Conversation)
		m.logger.Debug("speech detected, conversation window restarted")
	}
}

// handleUtterance is called by the capture source with a finished
// transcript.
func (m *Machine) handleUtterance(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		return
	}
	d, ok := decide(evTranscript, m.state, m.flags, m.cfg.Policy)
	if !ok {
		state := m.state
		m.mu.Unlock()
		m.logger.Debug("transcript dropped", "state", string(state))
		return
	}
	dismissed := m.detector.Detect(text)
	if dismissed {
		m.flags.pendingDismiss = true
	}
	m.flags.processing = true
	from := m.state
	m.state = d.next
	m.since = time.Now()
	m.mu.Unlock()

	m.logger.Info("utterance accepted", "chars", len(text))
	if dismissed {
		m.logger.Info("dismissal detected, will sleep after this response")
	}
	m.apply(from, d, text)
}

// handleFirstAudio marks the start of audible output.
func (m *Machine) handleFirstAudio() {
	m.mu.Lock()
	d, ok := decide(evFirstAudio, m.state, m.flags, m.cfg.Policy)
	if !ok {
		m.mu.Unlock()
		return
	}
	from := m.state
	m.state = d.next
	m.since = time.Now()
	m.mu.Unlock()

	m.apply(from, d, "")
}

// handleSessionComplete forwards the queue's completion to the
// dispatch loop, which owns the post-playback decision.
func (m *Machine) handleSessionComplete(stats playback.Stats) {
	select {
	case m.sessionDone <- stats:
	default:
		m.logger.Warn("playback completion had no waiting turn", "session", stats.SessionID)
	}
}

func (m *Machine) handleConversationTimeout() {
	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		return
	}
	d, ok := decide(evConversationTimeout, m.state, m.flags, m.cfg.Policy)
	if !ok {
		m.mu.Unlock()
		return
	}
	from := m.state
	m.state = d.next
	m.since = time.Now()
	m.mu.Unlock()

	m.logger.Info("conversation timed out, entering light sleep")
	m.apply(from, d, "")
}

func (m *Machine) handleIdleTimeout() {
	m.mu.Lock()
	if m.closing || m.waking {
		m.mu.Unlock()
		return
	}
	d, ok := decide(evIdleTimeout, m.state, m.flags, m.cfg.Policy)
	if !ok {
		m.mu.Unlock()
		return
	}
	from := m.state
	m.state = d.next
	m.since = time.Now()
	m.mu.Unlock()

	m.logger.Info("idle timeout, entering deep sleep")
	m.apply(from, d, "")
}

// runTurn executes one accepted transcript on the dispatch goroutine:
// append history, generate and speak the response, then wait for the
// playback session to settle before deciding where to go next.
func (m *Machine) runTurn(ctx context.Context, text string) {
	m.history.AddUser(text)
	recent := m.history.Recent(m.cfg.ContextTurns)

	res, err := m.responder.Respond(ctx, recent)
	failed := err != nil
	if failed {
		m.logger.Error("turn failed", "error", err)
		m.feedback.Play(feedback.ToneError)
	} else if strings.TrimSpace(res.Text) != "" {
		m.history.AddAssistant(res.Text)
	}
	question := strings.HasSuffix(strings.TrimSpace(res.Text), "?")

	select {
	case stats := <-m.sessionDone:
		m.finishTurn(stats, failed, question)
	case <-ctx.Done():
	}
}

// finishTurn runs the post-playback policy decision.
func (m *Machine) finishTurn(stats playback.Stats, failed, question bool) {
	m.mu.Lock()
	f := m.flags
	f.turnFailed = failed
	f.questionEnd = question
	policy := m.cfg.Policy
	unknown := !policy.Known()
	d, ok := decide(evPlaybackDone, m.state, f, policy)
	if !ok {
		state := m.state
		m.mu.Unlock()
		m.logger.Warn("playback completed in unexpected state", "state", string(state))
		return
	}
	from := m.state
	m.state = d.next
	m.since = time.Now()
	m.flags.processing = false
	dismissed := m.flags.pendingDismiss
	m.flags.pendingDismiss = false
	m.mu.Unlock()

	if unknown {
		m.logger.Warn("unknown interaction policy, using conversation behavior", "policy", string(policy))
	}
	if dismissed {
		m.logger.Info("dismissal honored")
	}
	m.logger.Info("turn complete",
		"session", stats.SessionID,
		"sentences", stats.Played,
		"failed", failed,
		"next", string(d.next))
	m.apply(from, d, "")
}

// apply updates feedback, notifies observers and runs the effect list.
// The state itself was already written under the lock.
func (m *Machine) apply(from State, d decision, turnText string) {
	if from != d.next {
		m.feedback.LED(ledFor(d.next))
		m.notifyStateChange(from, d.next)
	}
	for _, fx := range d.effects {
		m.runEffect(fx, from, d.next, turnText)
	}
}

func (m *Machine) runEffect(fx effect, from, to State, turnText string) {
	switch fx {
	case fxStartCapture:
		m.mu.Lock()
		ctx := m.runCtx
		m.mu.Unlock()
		if ctx == nil {
			ctx = context.Background()
		}
		if err := m.capture.Start(ctx); err != nil {
			m.logger.Error("capture start failed", "error", err)
		}
	case fxResumeCapture:
		m.capture.Resume()
	case fxPauseCapture:
		m.capture.Pause()
	case fxStopCapture:
		if err := m.capture.Stop(); err != nil {
			m.logger.Warn("capture stop failed", "error", err)
		}
	case fxArmConversation:
		m.startTimer(timeout.Conversation)
	case fxArmFollowUp:
		if err := m.timers.StartWith(timeout.Conversation, m.cfg.FollowUpTimeout); err != nil {
			m.logger.Warn("timer start failed", "timer", timeout.Conversation, "error", err)
		}
	case fxCancelConversation:
		m.timers.Reset(timeout.Conversation)
	case fxArmIdle:
		m.startTimer(timeout.Idle)
	case fxCancelIdle:
		m.timers.Reset(timeout.Idle)
	case fxStopTimers:
		m.timers.StopAll()
	case fxDispatchTurn:
		select {
		case m.turns <- turnText:
		default:
			m.logger.Warn("dispatch queue full, transcript dropped")
		}
	case fxNotifySleep:
		if m.notifier != nil {
			m.notifier.NotifySleep()
		}
		m.feedback.Play(feedback.ToneSleep)
	case fxStopBackend:
		m.stopBackend(from)
	}
}

// stopBackend shuts the inference server down for deep sleep. On
// failure the machine falls back to light sleep and re-arms the idle
// timer, unless a wake has raced past us.
func (m *Machine) stopBackend(from State) {
	ctx, cancel := context.WithTimeout(context.Background(), backendStopTimeout)
	err := m.backend.Stop(ctx)
	cancel()
	if err == nil {
		m.logger.Info("inference backend stopped")
		return
	}
	m.logger.Warn("backend stop failed, staying in light sleep", "error", err)

	m.mu.Lock()
	if m.state != StateDeepSleep || m.waking || m.closing {
		m.mu.Unlock()
		return
	}
	m.state = StateLightSleep
	m.since = time.Now()
	m.mu.Unlock()

	m.feedback.LED(ledFor(StateLightSleep))
	m.notifyStateChange(StateDeepSleep, StateLightSleep)
	m.startTimer(timeout.Idle)
}

func (m *Machine) startTimer(name string) {
	if err := m.timers.Start(name); err != nil {
		m.logger.Warn("timer start failed", "timer", name, "error", err)
	}
}

func (m *Machine) notifyStateChange(from, to State) {
	m.mu.Lock()
	fns := make([]func(State, State), len(m.stateFns))
	copy(fns, m.stateFns)
	m.mu.Unlock()
	for _, fn := range fns {
		fn(from, to)
	}
}

// shutdown tears the loop down in order: stop accepting events, cancel
// timers, drain the audio queue, persist history.
func (m *Machine) shutdown() {
	m.mu.Lock()
	m.closing = true
	m.mu.Unlock()

	if err := m.capture.Stop(); err != nil {
		m.logger.Warn("capture stop failed", "error", err)
	}
	m.timers.StopAll()
	m.queue.Stop(true)
	m.queue.Wait(2 * time.Second)
	if err := m.history.Save(); err != nil {
		m.logger.Warn("history save failed", "error", err)
	}
	m.feedback.LED(feedback.PatternOff)
	m.logger.Info("conversation loop stopped")
}

func ledFor(s State) feedback.Pattern {
	switch s {
	case StateListening:
		return feedback.PatternListening
	case StateProcessing:
		return feedback.PatternProcessing
	case StateSpeaking:
		return feedback.PatternSpeaking
	case StateLightSleep:
		return feedback.PatternLightSleep
	case StateDeepSleep:
		return feedback.PatternDeepSleep
	}
	return feedback.PatternOff
}
