package timeout

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestStartAndFire(t *testing.T) {
	m := NewManager(nil)

	var fired atomic.Int32
	m.Register(Conversation, 2*time.Second, func() { fired.Add(1) })

	if err := m.Start(Conversation); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	time.Sleep(2500 * time.Millisecond)

	if got := fired.Load(); got != 1 {
		t.Errorf("expected callback fired exactly once, got %d", got)
	}
	if m.Active(Conversation) {
		t.Error("timer should not be armed after firing")
	}
}

func TestResetPreventsFire(t *testing.T) {
	m := NewManager(nil)

	var fired atomic.Int32
	m.Register(Conversation, 2*time.Second, func() { fired.Add(1) })

	if err := m.Start(Conversation); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	time.Sleep(1 * time.Second)
	m.Reset(Conversation)
	time.Sleep(1500 * time.Millisecond)

	if got := fired.Load(); got != 0 {
		t.Errorf("expected callback never fired after reset, got %d calls", got)
	}
}

func TestRestartSupersedes(t *testing.T) {
	m := NewManager(nil)

	var fired atomic.Int32
	m.Register(Conversation, 200*time.Millisecond, func() { fired.Add(1) })

	_ = m.Start(Conversation)
	time.Sleep(100 * time.Millisecond)
	_ = m.Start(Conversation) // supersedes the first arming

	// The first instance would have fired by now; only the second may.
	time.Sleep(150 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Fatalf("superseded timer fired, got %d calls", got)
	}

	time.Sleep(150 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("expected exactly one fire from the restart, got %d", got)
	}
}

func TestStartWithKeepsDefault(t *testing.T) {
	m := NewManager(nil)

	var fired atomic.Int32
	m.Register(Conversation, 1*time.Hour, func() { fired.Add(1) })

	if err := m.StartWith(Conversation, 50*time.Millisecond); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	time.Sleep(150 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("custom duration did not fire, got %d", got)
	}

	// The default must be untouched: a plain Start arms the hour-long
	// countdown, which cannot fire within this test.
	_ = m.Start(Conversation)
	time.Sleep(100 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("default duration was mutated by StartWith, got %d fires", got)
	}
	m.Reset(Conversation)
}

func TestUnknownTimer(t *testing.T) {
	m := NewManager(nil)
	if err := m.Start("bogus"); err != ErrUnknownTimer {
		t.Errorf("expected ErrUnknownTimer, got %v", err)
	}
	// Reset and Stop on unknown names are harmless no-ops.
	m.Reset("bogus")
	m.Stop("bogus")
}

func TestIndependentTimers(t *testing.T) {
	m := NewManager(nil)

	var conv, idle atomic.Int32
	m.Register(Conversation, 50*time.Millisecond, func() { conv.Add(1) })
	m.Register(Idle, 1*time.Hour, func() { idle.Add(1) })

	_ = m.Start(Conversation)
	_ = m.Start(Idle)
	m.Reset(Idle)

	time.Sleep(150 * time.Millisecond)

	if got := conv.Load(); got != 1 {
		t.Errorf("conversation timer: expected 1 fire, got %d", got)
	}
	if got := idle.Load(); got != 0 {
		t.Errorf("idle timer: expected 0 fires after reset, got %d", got)
	}
}

func TestStopAll(t *testing.T) {
	m := NewManager(nil)

	var fired atomic.Int32
	m.Register(Conversation, 50*time.Millisecond, func() { fired.Add(1) })
	m.Register(Idle, 50*time.Millisecond, func() { fired.Add(1) })

	_ = m.Start(Conversation)
	_ = m.Start(Idle)
	m.StopAll()

	time.Sleep(150 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Errorf("expected no fires after StopAll, got %d", got)
	}
}

func TestConcurrentStartReset(t *testing.T) {
	m := NewManager(nil)

	var fired atomic.Int32
	m.Register(Conversation, time.Millisecond, func() { fired.Add(1) })

	// Hammer start/reset from multiple goroutines; the generation check
	// must never allow a cancelled instance to fire late.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = m.Start(Conversation)
				m.Reset(Conversation)
			}
		}()
	}
	wg.Wait()

	m.Reset(Conversation)
	before := fired.Load()
	time.Sleep(20 * time.Millisecond)
	if after := fired.Load(); after != before {
		t.Errorf("cancelled timer fired late: %d -> %d", before, after)
	}
}
