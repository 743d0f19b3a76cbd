package config

import (
	"testing"
	"time"
)

func TestString(t *testing.T) {
	t.Setenv("TB_TEST_STRING", "value")

	if got := String("TB_TEST_STRING", "fallback"); got != "value" {
		t.Errorf("expected value, got %s", got)
	}
	if got := String("TB_TEST_STRING_UNSET", "fallback"); got != "fallback" {
		t.Errorf("expected fallback, got %s", got)
	}
}

func TestInt(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{"valid", "42", 42},
		{"negative", "-3", -3},
		{"garbage", "forty", 7},
		{"empty", "", 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TB_TEST_INT", tt.value)
			if got := Int("TB_TEST_INT", 7); got != tt.want {
				t.Errorf("Int(%q) = %d, want %d", tt.value, got, tt.want)
			}
		})
	}
}

func TestBool(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"true", "true", true},
		{"one", "1", true},
		{"false", "false", false},
		{"garbage", "yep", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TB_TEST_BOOL", tt.value)
			if got := Bool("TB_TEST_BOOL", true); got != tt.want {
				t.Errorf("Bool(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestFloat(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  float64
	}{
		{"valid", "0.85", 0.85},
		{"integer", "2", 2},
		{"garbage", "warm", 0.7},
		{"empty", "", 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TB_TEST_FLOAT", tt.value)
			if got := Float("TB_TEST_FLOAT", 0.7); got != tt.want {
				t.Errorf("Float(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"seconds", "30s", 30 * time.Second},
		{"minutes", "5m", 5 * time.Minute},
		{"bare number", "30", time.Second},
		{"empty", "", time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TB_TEST_DURATION", tt.value)
			if got := Duration("TB_TEST_DURATION", time.Second); got != tt.want {
				t.Errorf("Duration(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
