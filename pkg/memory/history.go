// Package memory keeps the assistant's conversation history.
//
// History is an ordered, bounded log of user and assistant turns. Each
// addition persists to the configured Store so a restart resumes the
// conversation where it left off. The log is appended from a single
// dispatch path; reads may come from anywhere.
package memory

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Roles recorded in the history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultMaxTurns bounds the history at ten exchanges.
const DefaultMaxTurns = 20

// Turn is one utterance in the conversation, by either side.
type Turn struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats summarizes the current history.
type Stats struct {
	SessionID      string        `json:"session_id"`
	TotalTurns     int           `json:"total_turns"`
	UserTurns      int           `json:"user_turns"`
	AssistantTurns int           `json:"assistant_turns"`
	FirstTurn      time.Time     `json:"first_turn,omitempty"`
	LastTurn       time.Time     `json:"last_turn,omitempty"`
	Duration       time.Duration `json:"duration_ns"`
}

// History is the bounded conversation log.
type History struct {
	mu        sync.RWMutex
	sessionID string
	maxTurns  int
	turns     []Turn
	onTurn    []func(Turn)

	store  Store
	logger *slog.Logger
}

// Option configures a History.
type Option func(*History)

// WithMaxTurns overrides the turn cap. Values below 2 keep the default.
func WithMaxTurns(n int) Option {
	return func(h *History) {
		if n >= 2 {
			h.maxTurns = n
		}
	}
}

// WithStore sets the persistence backend.
func WithStore(store Store) Option {
	return func(h *History) { h.store = store }
}

// WithFile persists the history to a JSON file at path.
func WithFile(path string) Option {
	return func(h *History) { h.store = NewJSONStore(path) }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *History) { h.logger = logger }
}

// New creates a conversation history. If a store is configured and
// holds a previous session, it is loaded.
func New(opts ...Option) *History {
	h := &History{
		sessionID: uuid.NewString(),
		maxTurns:  DefaultMaxTurns,
		logger:    slog.Default().With("component", "memory"),
	}
	for _, opt := range opts {
		opt(h)
	}

	if err := h.Load(); err != nil {
		h.logger.Warn("could not load conversation history", "error", err)
	}

	return h
}

// OnTurn registers an observer called after every appended turn.
// Observers run on the appending goroutine and must not block.
func (h *History) OnTurn(fn func(Turn)) {
	h.mu.Lock()
	h.onTurn = append(h.onTurn, fn)
	h.mu.Unlock()
}

// AddUser appends a user turn.
func (h *History) AddUser(text string) Turn {
	return h.add(RoleUser, text)
}

// AddAssistant appends an assistant turn.
func (h *History) AddAssistant(text string) Turn {
	return h.add(RoleAssistant, text)
}

func (h *History) add(role, text string) Turn {
	turn := Turn{Role: role, Text: text, Timestamp: time.Now()}

	h.mu.Lock()
	h.turns = append(h.turns, turn)
	if len(h.turns) > h.maxTurns {
		evicted := len(h.turns) - h.maxTurns
		h.turns = append([]Turn(nil), h.turns[evicted:]...)
	}
	observers := append(([]func(Turn))(nil), h.onTurn...)
	h.mu.Unlock()

	if err := h.Save(); err != nil {
		h.logger.Warn("could not persist conversation history", "error", err)
	}

	for _, fn := range observers {
		fn(turn)
	}

	return turn
}

// Turns returns a copy of all turns, oldest first.
func (h *History) Turns() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Turn(nil), h.turns...)
}

// Recent returns a copy of the most recent n turns, oldest first.
func (h *History) Recent(n int) []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 || len(h.turns) == 0 {
		return nil
	}
	if n > len(h.turns) {
		n = len(h.turns)
	}
	return append([]Turn(nil), h.turns[len(h.turns)-n:]...)
}

// Len returns the number of stored turns.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// SessionID returns the conversation session identifier.
func (h *History) SessionID() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessionID
}

// Stats returns counts and timing for the current history.
func (h *History) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := Stats{
		SessionID:  h.sessionID,
		TotalTurns: len(h.turns),
	}
	for _, t := range h.turns {
		switch t.Role {
		case RoleUser:
			s.UserTurns++
		case RoleAssistant:
			s.AssistantTurns++
		}
	}
	if len(h.turns) > 0 {
		s.FirstTurn = h.turns[0].Timestamp
		s.LastTurn = h.turns[len(h.turns)-1].Timestamp
		s.Duration = s.LastTurn.Sub(s.FirstTurn)
	}
	return s
}

// Clear removes all turns, keeping the session id, and persists the
// empty log.
func (h *History) Clear() {
	h.mu.Lock()
	h.turns = nil
	h.mu.Unlock()

	if err := h.Save(); err != nil {
		h.logger.Warn("could not persist cleared history", "error", err)
	}
}

// historyFile is the on-disk JSON layout.
type historyFile struct {
	SessionID string    `json:"session_id"`
	SavedAt   time.Time `json:"saved_at"`
	Turns     []Turn    `json:"turns"`
}

// Save persists the history to the configured store.
func (h *History) Save() error {
	if h.store == nil {
		return nil
	}

	h.mu.RLock()
	file := historyFile{
		SessionID: h.sessionID,
		SavedAt:   time.Now(),
		Turns:     h.turns,
	}
	h.mu.RUnlock()

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}
	return h.store.Save(data)
}

// Load reads a previously saved history from the store. A missing
// file leaves the history empty.
func (h *History) Load() error {
	if h.store == nil {
		return nil
	}

	data, err := h.store.Load()
	if err != nil {
		return err
	}
	if data == nil {
		return nil
	}

	var file historyFile
	if err := json.Unmarshal(data, &file); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if file.SessionID != "" {
		h.sessionID = file.SessionID
	}
	h.turns = file.Turns
	if len(h.turns) > h.maxTurns {
		h.turns = append([]Turn(nil), h.turns[len(h.turns)-h.maxTurns:]...)
	}

	h.logger.Info("conversation history loaded",
		"turns", len(h.turns),
		"session_id", h.sessionID,
	)
	return nil
}

// Close releases the persistence backend.
func (h *History) Close() error {
	if h.store == nil {
		return nil
	}
	return h.store.Close()
}
