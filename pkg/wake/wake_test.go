package wake_test

import (
	"context"
	"slices"
	"testing"

	"github.com/waifuisalie/Talking-Buddy/pkg/wake"
)

func TestTriggerDeliversWhileRunning(t *testing.T) {
	trig := wake.NewTrigger("sensor")
	var fired int
	trig.OnWake(func() { fired++ })

	if trig.Fire() {
		t.Error("expected fire before Start to be dropped")
	}

	if err := trig.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !trig.Fire() {
		t.Error("expected fire after Start to be delivered")
	}
	if !trig.Fire() {
		t.Error("expected repeated fires to be delivered")
	}

	if err := trig.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if trig.Fire() {
		t.Error("expected fire after Stop to be dropped")
	}

	if fired != 2 {
		t.Errorf("expected 2 deliveries, got %d", fired)
	}
}

func TestTriggerWithoutCallback(t *testing.T) {
	trig := wake.NewTrigger("sensor")
	if err := trig.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if trig.Fire() {
		t.Error("expected fire with no callback to report undelivered")
	}
	if got := trig.Name(); got != "sensor" {
		t.Errorf("expected name sensor, got %q", got)
	}
}

func TestMockLifecycle(t *testing.T) {
	m := wake.NewMock()
	var fired int
	m.OnWake(func() { fired++ })

	if m.Running() {
		t.Error("expected mock stopped before Start")
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !m.Running() {
		t.Error("expected mock running after Start")
	}
	m.Wake()
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if fired != 1 {
		t.Errorf("expected 1 wake, got %d", fired)
	}
	if got := m.Calls(); !slices.Equal(got, []string{"Start", "Stop"}) {
		t.Errorf("unexpected calls: %v", got)
	}

	m.Reset()
	if len(m.Calls()) != 0 {
		t.Error("expected no calls after Reset")
	}
}

func TestKeyboardName(t *testing.T) {
	k := wake.NewKeyboard(nil)
	if got := k.Name(); got != "keyboard" {
		t.Errorf("expected keyboard, got %q", got)
	}
	// Stopping a never-started keyboard source is a no-op.
	if err := k.Stop(); err != nil {
		t.Errorf("Stop on stopped source: %v", err)
	}
}
