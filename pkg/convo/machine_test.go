package convo_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/waifuisalie/Talking-Buddy/pkg/backend"
	"github.com/waifuisalie/Talking-Buddy/pkg/capture"
	"github.com/waifuisalie/Talking-Buddy/pkg/convo"
	"github.com/waifuisalie/Talking-Buddy/pkg/feedback"
	"github.com/waifuisalie/Talking-Buddy/pkg/inference"
	"github.com/waifuisalie/Talking-Buddy/pkg/memory"
	"github.com/waifuisalie/Talking-Buddy/pkg/playback"
	"github.com/waifuisalie/Talking-Buddy/pkg/segment"
	"github.com/waifuisalie/Talking-Buddy/pkg/speech"
	"github.com/waifuisalie/Talking-Buddy/pkg/timeout"
	"github.com/waifuisalie/Talking-Buddy/pkg/tts"
)

// stateRecorder collects the machine's state changes in order.
type stateRecorder struct {
	mu  sync.Mutex
	seq []convo.State
}

func (r *stateRecorder) record(from, to convo.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq = append(r.seq, to)
}

func (r *stateRecorder) sequence() []convo.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]convo.State, len(r.seq))
	copy(out, r.seq)
	return out
}

// fixture wires a machine to mock collaborators with a real speech
// pipeline and playback queue in between.
type fixture struct {
	m       *convo.Machine
	capture *capture.Mock
	backend *backend.Mock
	synth   *tts.Mock
	player  *playback.MockPlayer
	queue   *playback.Queue
	history *memory.History
	timers  *timeout.Manager
	fb      *feedback.Mock
	rec     *stateRecorder
	cancel  context.CancelFunc
	done    chan error
	stopped bool
}

// newFixture builds the machine without starting it. The provider's
// responses flow through the real generator, segmenter, synthesis
// pipeline and playback queue.
func newFixture(t *testing.T, cfg convo.Config, provider inference.Provider, mutate func(*convo.Deps)) *fixture {
	t.Helper()

	f := &fixture{
		capture: capture.NewMock(),
		backend: backend.NewMock(),
		synth:   tts.NewMock(),
		player:  playback.NewMockPlayer(5 * time.Millisecond),
		history: memory.New(),
		timers:  timeout.NewManager(nil),
		fb:      feedback.NewMock(),
		rec:     &stateRecorder{},
	}
	f.queue = playback.NewQueue(f.player, playback.WithGraceDelay(20*time.Millisecond))
	pipeline := speech.NewPipeline(f.synth, f.queue,
		speech.WithSegmentOptions(segment.WithMinLength(5)))

	deps := convo.Deps{
		Capture:   f.capture,
		Backend:   f.backend,
		Responder: convo.NewGenerator(provider, pipeline),
		History:   f.history,
		Queue:     f.queue,
		Timers:    f.timers,
		Feedback:  f.fb,
	}
	if mutate != nil {
		mutate(&deps)
	}

	m, err := convo.New(deps, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.OnStateChange(f.rec.record)
	f.m = m
	return f
}

// run starts the machine and waits until it accepts events. Shutdown
// is registered as a cleanup.
func (f *fixture) run(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.done = make(chan error, 1)
	go func() { f.done <- f.m.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for !f.m.Running() {
		select {
		case <-deadline:
			t.Fatal("machine never started")
		case <-time.After(2 * time.Millisecond):
		}
	}

	t.Cleanup(func() {
		if f.stopped {
			return
		}
		cancel()
		select {
		case <-f.done:
		case <-time.After(2 * time.Second):
			t.Error("machine did not shut down")
		}
	})
}

// stop shuts the machine down and returns Run's result.
func (f *fixture) stop(t *testing.T) error {
	t.Helper()
	f.stopped = true
	f.cancel()
	select {
	case err := <-f.done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("machine did not shut down")
		return nil
	}
}

func startFixture(t *testing.T, cfg convo.Config, provider inference.Provider) *fixture {
	t.Helper()
	f := newFixture(t, cfg, provider, nil)
	f.run(t)
	return f
}

func (f *fixture) wake(t *testing.T) {
	t.Helper()
	if err := f.m.Wake(context.Background()); err != nil {
		t.Fatalf("Wake: %v", err)
	}
}

func waitForState(t *testing.T, m *convo.Machine, want convo.State) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for m.State() != want {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for state %s, still %s", want, m.State())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// waitTimerActive polls until the named timer is armed. Timers are
// armed by effects that run just after the state write, so a state
// observation alone is not enough.
func waitTimerActive(t *testing.T, timers *timeout.Manager, name string) {
	t.Helper()
	deadline := time.After(time.Second)
	for !timers.Active(name) {
		select {
		case <-deadline:
			t.Fatalf("timer %s was never armed", name)
		case <-time.After(2 * time.Millisecond):
		}
	}
}

// waitForSequence waits until the recorded state changes match want.
func waitForSequence(t *testing.T, rec *stateRecorder, want []convo.State) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		if got := rec.sequence(); slices.Equal(got, want) {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("expected state sequence %v, got %v", want, rec.sequence())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestWakeFromLightSleep(t *testing.T) {
	f := startFixture(t, convo.DefaultConfig(), inference.NewStreamMock("oi"))

	f.wake(t)

	if got := f.m.State(); got != convo.StateListening {
		t.Fatalf("expected listening after wake, got %s", got)
	}
	if got := f.capture.CallCount("Start"); got != 1 {
		t.Errorf("expected 1 capture start, got %d", got)
	}
	if !f.timers.Active(timeout.Conversation) {
		t.Error("expected conversation timer armed after wake")
	}
	if got := f.fb.LastPattern(); got != feedback.PatternListening {
		t.Errorf("expected listening LED pattern, got %s", got)
	}
}

func TestWakeIdempotentWhileActive(t *testing.T) {
	f := startFixture(t, convo.DefaultConfig(), inference.NewStreamMock("oi"))

	f.wake(t)
	f.wake(t)
	f.wake(t)

	if got := f.m.State(); got != convo.StateListening {
		t.Errorf("expected listening, got %s", got)
	}
	if got := f.capture.CallCount("Start"); got != 1 {
		t.Errorf("expected capture started once, got %d", got)
	}
	if got := len(f.rec.sequence()); got != 1 {
		t.Errorf("expected a single state change, got %v", f.rec.sequence())
	}
}

func TestWakeFromDeepSleepStartsBackend(t *testing.T) {
	cfg := convo.DefaultConfig().WithInitialState(convo.StateDeepSleep)
	f := startFixture(t, cfg, inference.NewStreamMock("oi"))

	f.wake(t)

	if got := f.m.State(); got != convo.StateListening {
		t.Fatalf("expected listening after deep-sleep wake, got %s", got)
	}
	if got := f.backend.CallCount("Start"); got != 1 {
		t.Errorf("expected 1 backend start, got %d", got)
	}
}

func TestWakeFailureStaysInDeepSleep(t *testing.T) {
	boom := errors.New("unit start failed")
	cfg := convo.DefaultConfig().WithInitialState(convo.StateDeepSleep)
	f := newFixture(t, cfg, inference.NewStreamMock("oi"), nil)
	f.backend.StartFunc = func(ctx context.Context) error { return boom }
	f.run(t)

	err := f.m.Wake(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wake to surface the backend error, got %v", err)
	}
	if got := f.m.State(); got != convo.StateDeepSleep {
		t.Errorf("expected machine to stay in deep sleep, got %s", got)
	}
	if got := f.capture.CallCount("Start"); got != 0 {
		t.Errorf("expected capture untouched, got %d starts", got)
	}
}

func TestWakeBeforeRun(t *testing.T) {
	f := newFixture(t, convo.DefaultConfig(), inference.NewStreamMock("oi"), nil)
	if err := f.m.Wake(context.Background()); !errors.Is(err, convo.ErrNotRunning) {
		t.Errorf("expected ErrNotRunning, got %v", err)
	}
}

func TestSmartPolicyFollowsUpOnQuestion(t *testing.T) {
	cfg := convo.DefaultConfig().
		WithPolicy(convo.PolicySmart).
		WithFollowUpTimeout(250 * time.Millisecond)
	provider := inference.NewStreamMock("It's 3 PM", ". Anything", " else?")
	f := startFixture(t, cfg, provider)

	f.wake(t)
	if !f.capture.Say("What time is it?") {
		t.Fatal("utterance was not delivered")
	}

	// The response ends with a question, so the machine returns to
	// listening with the shorter follow-up window armed.
	waitForSequence(t, f.rec, []convo.State{
		convo.StateListening,
		convo.StateProcessing,
		convo.StateSpeaking,
		convo.StateListening,
	})
	waitTimerActive(t, f.timers, timeout.Conversation)

	if got := f.player.CallCount(); got != 2 {
		t.Errorf("expected 2 sentences played, got %d", got)
	}
	if got := f.synth.CallCount("Synthesize"); got != 2 {
		t.Errorf("expected 2 sentences synthesized, got %d", got)
	}
	if got := f.history.Len(); got != 2 {
		t.Errorf("expected 2 history turns, got %d", got)
	}

	// The follow-up window is far shorter than the 30s conversation
	// timeout; with no reply the machine drops to light sleep.
	waitForState(t, f.m, convo.StateLightSleep)
}

func TestSmartPolicySleepsOnStatement(t *testing.T) {
	cfg := convo.DefaultConfig().WithPolicy(convo.PolicySmart)
	provider := inference.NewStreamMock("São três da tarde.")
	f := startFixture(t, cfg, provider)

	f.wake(t)
	f.capture.Say("que horas são")

	waitForState(t, f.m, convo.StateLightSleep)
	waitTimerActive(t, f.timers, timeout.Idle)

	if got := f.capture.CallCount("Stop"); got == 0 {
		t.Error("expected capture stopped on light sleep")
	}
}

func TestSingleShotSleepsAfterResponse(t *testing.T) {
	cfg := convo.DefaultConfig().WithPolicy(convo.PolicySingleShot)
	provider := inference.NewStreamMock("It's 3 PM", ". Anything", " else?")
	f := startFixture(t, cfg, provider)

	f.wake(t)
	f.capture.Say("What time is it?")

	waitForSequence(t, f.rec, []convo.State{
		convo.StateListening,
		convo.StateProcessing,
		convo.StateSpeaking,
		convo.StateLightSleep,
	})
	waitTimerActive(t, f.timers, timeout.Idle)

	if got := f.player.CallCount(); got != 2 {
		t.Errorf("expected 2 sentences played, got %d", got)
	}
	if got := f.fb.LastPattern(); got != feedback.PatternLightSleep {
		t.Errorf("expected light-sleep LED pattern, got %s", got)
	}
}

func TestDismissalOverridesPolicy(t *testing.T) {
	policies := []convo.Policy{convo.PolicyConversation, convo.PolicySmart}
	for _, policy := range policies {
		t.Run(string(policy), func(t *testing.T) {
			cfg := convo.DefaultConfig().WithPolicy(policy)
			// The reply ends with a question, which would keep either
			// policy listening. The dismissal must win anyway.
			provider := inference.NewStreamMock("Até logo! Precisa de algo mais?")
			f := startFixture(t, cfg, provider)

			f.wake(t)
			f.capture.Say("tchau")

			waitForState(t, f.m, convo.StateLightSleep)

			status := f.m.Status()
			if status.PendingDismissal {
				t.Error("expected dismissal flag consumed after playback")
			}
			if got := f.player.CallCount(); got == 0 {
				t.Error("expected the farewell response to play before sleeping")
			}
		})
	}
}

func TestConversationTimeoutDropsToLightSleep(t *testing.T) {
	cfg := convo.DefaultConfig().WithConversationTimeout(60 * time.Millisecond)
	f := startFixture(t, cfg, inference.NewStreamMock("oi"))

	f.wake(t)
	waitForState(t, f.m, convo.StateLightSleep)
	waitTimerActive(t, f.timers, timeout.Idle)

	if got := f.capture.CallCount("Stop"); got == 0 {
		t.Error("expected capture stopped after silence")
	}
}

func TestIdleTimeoutEntersDeepSleep(t *testing.T) {
	cfg := convo.DefaultConfig().WithIdleTimeout(60 * time.Millisecond)
	f := startFixture(t, cfg, inference.NewStreamMock("oi"))

	// Initial state is light sleep; the idle timer runs from startup.
	waitForState(t, f.m, convo.StateDeepSleep)

	deadline := time.After(time.Second)
	for f.backend.CallCount("Stop") == 0 {
		select {
		case <-deadline:
			t.Fatal("backend was never stopped")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if got := f.backend.CallCount("Stop"); got != 1 {
		t.Errorf("expected 1 backend stop, got %d", got)
	}
	if got := f.fb.LastPattern(); got != feedback.PatternDeepSleep {
		t.Errorf("expected deep-sleep LED pattern, got %s", got)
	}
}

func TestDeepSleepAbortsWhenBackendStopFails(t *testing.T) {
	cfg := convo.DefaultConfig().WithIdleTimeout(80 * time.Millisecond)
	f := newFixture(t, cfg, inference.NewStreamMock("oi"), nil)
	f.backend.StopFunc = func(ctx context.Context) error {
		return errors.New("unit busy")
	}
	f.run(t)

	deadline := time.After(3 * time.Second)
	for f.backend.CallCount("Stop") == 0 {
		select {
		case <-deadline:
			t.Fatal("backend stop was never attempted")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// The failed stop reverts the machine to light sleep with the
	// idle timer re-armed.
	waitForState(t, f.m, convo.StateLightSleep)
}

func TestFailedTurnReturnsToListening(t *testing.T) {
	cfg := convo.DefaultConfig().WithPolicy(convo.PolicySingleShot)
	provider := inference.NewMock()
	provider.StreamFunc = func(ctx context.Context, req *inference.ChatRequest) (inference.Stream, error) {
		return nil, errors.New("model overloaded")
	}
	f := startFixture(t, cfg, provider)

	f.wake(t)
	f.capture.Say("oi")

	// Even under single-shot, a failed turn goes back to listening so
	// the user can retry. The spoken error reply passes through
	// speaking on the way.
	waitForSequence(t, f.rec, []convo.State{
		convo.StateListening,
		convo.StateProcessing,
		convo.StateSpeaking,
		convo.StateListening,
	})

	if got := f.player.CallCount(); got == 0 {
		t.Error("expected the spoken error reply to play")
	}
	if got := f.history.Len(); got != 1 {
		t.Errorf("expected only the user turn in history, got %d", got)
	}
	if tones := f.fb.Tones(); !slices.Contains(tones, feedback.ToneError) {
		t.Errorf("expected error tone, got %v", tones)
	}
}

func TestUnknownPolicyFallsBackToConversation(t *testing.T) {
	cfg := convo.DefaultConfig().WithPolicy(convo.Policy("aggressive"))
	f := startFixture(t, cfg, inference.NewStreamMock("Claro, posso ajudar."))

	f.wake(t)
	f.capture.Say("oi")

	waitForSequence(t, f.rec, []convo.State{
		convo.StateListening,
		convo.StateProcessing,
		convo.StateSpeaking,
		convo.StateListening,
	})
	waitTimerActive(t, f.timers, timeout.Conversation)
}

func TestTranscriptIgnoredWhileProcessing(t *testing.T) {
	// A slow synthesizer keeps the machine in processing long enough
	// to prove the guard.
	provider := inference.NewStreamMock("Resposta curta.")
	f := newFixture(t, convo.DefaultConfig(), provider, nil)
	base := f.synth.SynthesizeFunc
	f.synth.SynthesizeFunc = func(ctx context.Context, text string) (*tts.AudioResult, error) {
		time.Sleep(80 * time.Millisecond)
		return base(ctx, text)
	}
	f.run(t)

	f.wake(t)
	f.capture.Say("primeira pergunta")

	// Capture is paused during processing, so the mock drops this.
	if f.capture.Say("segunda pergunta") {
		t.Error("expected second utterance to be dropped while processing")
	}

	waitForState(t, f.m, convo.StateListening)
	if got := f.history.Len(); got != 2 {
		t.Errorf("expected 2 history turns (one exchange), got %d", got)
	}
}

func TestStatusSnapshot(t *testing.T) {
	f := startFixture(t, convo.DefaultConfig(), inference.NewStreamMock("oi"))

	status := f.m.Status()
	if status.State != convo.StateLightSleep {
		t.Errorf("expected light sleep, got %s", status.State)
	}
	if status.Policy != convo.PolicyConversation {
		t.Errorf("expected conversation policy, got %s", status.Policy)
	}
	if status.Processing || status.PendingDismissal {
		t.Error("expected clean flags at startup")
	}
	if status.Since.IsZero() {
		t.Error("expected Since to be set")
	}
}

func TestShutdownStopsCollaborators(t *testing.T) {
	f := startFixture(t, convo.DefaultConfig(), inference.NewStreamMock("oi"))
	f.wake(t)

	if err := f.stop(t); err != nil {
		t.Errorf("expected clean shutdown, got %v", err)
	}

	if got := f.capture.CallCount("Stop"); got == 0 {
		t.Error("expected capture stopped on shutdown")
	}
	if f.timers.Active(timeout.Conversation) || f.timers.Active(timeout.Idle) {
		t.Error("expected all timers stopped on shutdown")
	}
	if got := f.fb.LastPattern(); got != feedback.PatternOff {
		t.Errorf("expected LED off after shutdown, got %s", got)
	}
}

func TestNewValidatesDependencies(t *testing.T) {
	f := newFixture(t, convo.DefaultConfig(), inference.NewStreamMock("oi"), nil)

	tests := []struct {
		name   string
		mutate func(*convo.Deps)
	}{
		{"missing capture", func(d *convo.Deps) { d.Capture = nil }},
		{"missing backend", func(d *convo.Deps) { d.Backend = nil }},
		{"missing responder", func(d *convo.Deps) { d.Responder = nil }},
		{"missing history", func(d *convo.Deps) { d.History = nil }},
		{"missing queue", func(d *convo.Deps) { d.Queue = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := convo.Deps{
				Capture:   f.capture,
				Backend:   f.backend,
				Responder: staticResponder{},
				History:   f.history,
				Queue:     f.queue,
			}
			tt.mutate(&deps)
			if _, err := convo.New(deps, convo.DefaultConfig()); !errors.Is(err, convo.ErrMissingDependency) {
				t.Errorf("expected ErrMissingDependency, got %v", err)
			}
		})
	}
}

type staticResponder struct{}

func (staticResponder) Respond(ctx context.Context, turns []memory.Turn) (speech.Result, error) {
	return speech.Result{}, nil
}
