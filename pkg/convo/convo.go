// Package convo implements the conversation state machine that drives
// the appliance: who may speak, which timers run, and when the
// inference backend is allowed to sleep.
//
// The machine moves between five states:
//
//	listening    capture running, waiting for an utterance
//	processing   a turn is in flight, capture paused
//	speaking     response audio is playing
//	light_sleep  capture stopped, backend still warm
//	deep_sleep   backend stopped, wake must restart it
//
// Transitions are computed by a pure decision step and executed by a
// single dispatcher, so the table in decide() is the whole behavior.
package convo

import (
	"time"
)

// State is the machine's operating state.
type State string

// Operating states.
const (
	StateListening  State = "listening"
	StateProcessing State = "processing"
	StateSpeaking   State = "speaking"
	StateLightSleep State = "light_sleep"
	StateDeepSleep  State = "deep_sleep"
)

// Active reports whether the state accepts conversation events. Wake
// signals are no-ops in active states.
func (s State) Active() bool {
	switch s {
	case StateListening, StateProcessing, StateSpeaking:
		return true
	}
	return false
}

// Policy decides where the machine goes after a response finishes
// playing.
type Policy string

// Interaction policies.
const (
	// PolicySingleShot returns to light sleep after every response.
	PolicySingleShot Policy = "single-shot"

	// PolicyConversation keeps listening after every response.
	PolicyConversation Policy = "conversation"

	// PolicySmart keeps listening with a shorter follow-up window when
	// the response ends with a question, otherwise sleeps.
	PolicySmart Policy = "smart"
)

// Known reports whether p is one of the defined policies. Unknown
// policies behave like PolicyConversation, with a warning.
func (p Policy) Known() bool {
	switch p {
	case PolicySingleShot, PolicyConversation, PolicySmart:
		return true
	}
	return false
}

// Config holds the machine's tunables. The zero value is not usable;
// start from DefaultConfig and derive with the With methods.
type Config struct {
	// Policy selects the post-response behavior.
	Policy Policy

	// ConversationTimeout is how long listening waits for an utterance
	// before dropping to light sleep.
	ConversationTimeout time.Duration

	// FollowUpTimeout is the shorter window used by PolicySmart after
	// a question.
	FollowUpTimeout time.Duration

	// IdleTimeout is how long light sleep lasts before deep sleep.
	IdleTimeout time.Duration

	// WakeTimeout bounds the backend start when waking from deep sleep
	// through a wake source callback.
	WakeTimeout time.Duration

	// ContextTurns is how many recent history turns are sent to the
	// model.
	ContextTurns int

	// InitialState is where Run starts. Defaults to light sleep.
	InitialState State
}

// DefaultConfig returns the appliance defaults.
func DefaultConfig() Config {
	return Config{
		Policy:              PolicyConversation,
		ConversationTimeout: 30 * time.Second,
		FollowUpTimeout:     15 * time.Second,
		IdleTimeout:         300 * time.Second,
		WakeTimeout:         30 * time.Second,
		ContextTurns:        8,
		InitialState:        StateLightSleep,
	}
}

// WithPolicy returns a copy with the policy set.
func (c Config) WithPolicy(p Policy) Config {
	c.Policy = p
	return c
}

// WithConversationTimeout returns a copy with the listening window set.
func (c Config) WithConversationTimeout(d time.Duration) Config {
	c.ConversationTimeout = d
	return c
}

// WithFollowUpTimeout returns a copy with the smart follow-up window set.
func (c Config) WithFollowUpTimeout(d time.Duration) Config {
	c.FollowUpTimeout = d
	return c
}

// WithIdleTimeout returns a copy with the light-sleep window set.
func (c Config) WithIdleTimeout(d time.Duration) Config {
	c.IdleTimeout = d
	return c
}

// WithWakeTimeout returns a copy with the wake bound set.
func (c Config) WithWakeTimeout(d time.Duration) Config {
	c.WakeTimeout = d
	return c
}

// WithContextTurns returns a copy with the model context size set.
func (c Config) WithContextTurns(n int) Config {
	c.ContextTurns = n
	return c
}

// WithInitialState returns a copy with the starting state set.
func (c Config) WithInitialState(s State) Config {
	c.InitialState = s
	return c
}

// Status is a point-in-time snapshot of the machine, safe to serve
// from the dashboard.
type Status struct {
	State            State     `json:"state"`
	Policy           Policy    `json:"policy"`
	Processing       bool      `json:"processing"`
	PendingDismissal bool      `json:"pending_dismissal"`
	Since            time.Time `json:"since"`
}
