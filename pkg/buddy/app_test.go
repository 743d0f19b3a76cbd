package buddy

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/waifuisalie/Talking-Buddy/pkg/convo"
	"github.com/waifuisalie/Talking-Buddy/pkg/playback"
	"github.com/waifuisalie/Talking-Buddy/pkg/protocol"
)

// testConfig returns a config that initializes without hardware, a
// model server or a TTY.
func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.HistoryFile = filepath.Join(t.TempDir(), "history.json")
	cfg.KeyboardWake = false
	cfg.ListenAddr = ""
	return cfg
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy = "bogus"

	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for invalid config")
	}
}

func TestInitWiresComponents(t *testing.T) {
	app, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := app.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if app.provider == nil {
		t.Error("expected inference provider")
	}
	if app.pipeline == nil {
		t.Error("expected speech pipeline")
	}
	if app.machine == nil {
		t.Error("expected conversation machine")
	}
	if app.sensorWake == nil {
		t.Error("expected sensor wake trigger")
	}
	if app.keyboard != nil {
		t.Error("expected no keyboard source when disabled")
	}
	if app.bridge != nil || app.web != nil {
		t.Error("expected no servers when listen addr is empty")
	}
}

func TestInitWithServers(t *testing.T) {
	cfg := testConfig(t)
	cfg.ListenAddr = "127.0.0.1:18100"

	app, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := app.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if app.bridge == nil {
		t.Fatal("expected sensor bridge")
	}
	if app.web == nil {
		t.Fatal("expected dashboard server")
	}
}

func TestInitWithFallbacks(t *testing.T) {
	cfg := testConfig(t)
	cfg.FallbackModel = "llama3"
	cfg.FallbackVoice = "pt_BR-edresson-low.onnx"

	app, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := app.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
}

func TestRunAndShutdown(t *testing.T) {
	cfg := testConfig(t)
	cfg.ListenAddr = "127.0.0.1:18101"

	app, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := app.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	if err := app.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if app.machine.Running() {
		t.Error("expected machine stopped after Run returns")
	}
	app.Shutdown()
}

func TestWakeBeforeRun(t *testing.T) {
	app, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := app.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	// The machine is not running and the trigger is not started, so a
	// sensor wake must be refused.
	accepted, state := app.handleSensorWake("sensor-1", &protocol.WakeData{Word: "buddy"})
	if accepted {
		t.Error("expected sensor wake rejected before Run")
	}
	if state != string(convo.StateLightSleep) {
		t.Errorf("expected light_sleep, got %s", state)
	}

	if err := app.dashboardWake(); !errors.Is(err, convo.ErrNotRunning) {
		t.Errorf("dashboardWake() error = %v, want ErrNotRunning", err)
	}
}

func TestBuildFeedback(t *testing.T) {
	app, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	app.player = playback.NewMockPlayer(0)

	t.Run("nothing configured", func(t *testing.T) {
		if fb := app.buildFeedback(); fb != nil {
			t.Errorf("expected nil feedback, got %T", fb)
		}
	})

	t.Run("missing LED drops to nil", func(t *testing.T) {
		app.config.LEDName = "definitely-missing-led"
		defer func() { app.config.LEDName = "" }()

		if fb := app.buildFeedback(); fb != nil {
			t.Errorf("expected nil feedback, got %T", fb)
		}
	})

	t.Run("tones configured", func(t *testing.T) {
		app.config.TonesDir = t.TempDir()
		defer func() { app.config.TonesDir = "" }()

		if fb := app.buildFeedback(); fb == nil {
			t.Error("expected feedback device")
		}
	})
}
