package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestPing(t *testing.T) {
	t.Run("responsive server", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/tags" {
				t.Errorf("expected /api/tags, got %s", r.URL.Path)
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		ctl := NewSystemd(WithHealthURL(server.URL + "/api/tags"))
		if err := ctl.Ping(context.Background()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("error status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		ctl := NewSystemd(WithHealthURL(server.URL + "/api/tags"))
		if err := ctl.Ping(context.Background()); err == nil {
			t.Error("expected error for 503")
		}
	})

	t.Run("unreachable server", func(t *testing.T) {
		ctl := NewSystemd(WithHealthURL("http://127.0.0.1:1/api/tags"))
		if err := ctl.Ping(context.Background()); err == nil {
			t.Error("expected error for unreachable server")
		}
	})
}

func TestStartWaitsForReadiness(t *testing.T) {
	var probes atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Unready for the first two probes, like a unit still booting.
		if probes.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctl := NewSystemd(
		WithHealthURL(server.URL+"/api/tags"),
		WithSystemctl("true"), // no-op stand-in for systemctl
		WithPoll(10*time.Millisecond, 2*time.Second),
	)

	if err := ctl.Start(context.Background()); err != nil {
		t.Fatalf("Start should succeed once probes pass: %v", err)
	}
	if n := probes.Load(); n < 3 {
		t.Errorf("expected at least 3 probes, got %d", n)
	}
}

func TestStartTimesOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctl := NewSystemd(
		WithHealthURL(server.URL+"/api/tags"),
		WithSystemctl("true"),
		WithPoll(10*time.Millisecond, 100*time.Millisecond),
	)

	err := ctl.Start(context.Background())
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, ErrNotResponsive) {
		t.Errorf("expected ErrNotResponsive, got %v", err)
	}
}

func TestStartFailsWhenUnitFails(t *testing.T) {
	ctl := NewSystemd(
		WithSystemctl("false"), // command that always exits 1
	)

	if err := ctl.Start(context.Background()); err == nil {
		t.Error("expected error when systemctl fails")
	}
}

func TestStopRunsUnitStop(t *testing.T) {
	ctl := NewSystemd(WithSystemctl("true"))
	if err := ctl.Stop(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMockController(t *testing.T) {
	mock := NewMock()
	ctx := context.Background()

	if err := mock.Start(ctx); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := mock.Stop(ctx); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := mock.Ping(ctx); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if mock.CallCount("Start") != 1 || mock.CallCount("Stop") != 1 || mock.CallCount("Ping") != 1 {
		t.Errorf("unexpected call counts: %+v", mock.Calls())
	}

	boom := errors.New("unit failed")
	mock.StartFunc = func(ctx context.Context) error { return boom }
	if err := mock.Start(ctx); !errors.Is(err, boom) {
		t.Errorf("expected injected error, got %v", err)
	}

	mock.Reset()
	if len(mock.Calls()) != 0 {
		t.Error("expected calls cleared after reset")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Service != "ollama" {
		t.Errorf("expected ollama service, got %s", cfg.Service)
	}
	if cfg.HealthURL != "http://localhost:11434/api/tags" {
		t.Errorf("unexpected health URL: %s", cfg.HealthURL)
	}
	if cfg.StartupTimeout != 30*time.Second {
		t.Errorf("expected 30s startup window, got %v", cfg.StartupTimeout)
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Errorf("expected 500ms poll interval, got %v", cfg.PollInterval)
	}
}
