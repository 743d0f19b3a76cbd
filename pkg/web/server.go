// Package web provides the appliance's dashboard server: a REST API
// over the conversation state plus live websocket streams for status,
// events and logs.
package web

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/waifuisalie/Talking-Buddy/pkg/convo"
	"github.com/waifuisalie/Talking-Buddy/pkg/hub"
	"github.com/waifuisalie/Talking-Buddy/pkg/memory"
	"github.com/waifuisalie/Talking-Buddy/pkg/protocol"
)

// maxLogEntries bounds the in-memory log ring.
const maxLogEntries = 500

// LogEntry is one line in the dashboard log ring.
type LogEntry struct {
	Time    string `json:"time"`
	Type    string `json:"type"` // state, turn, wake, error
	Message string `json:"message"`
}

// Server is the dashboard server.
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger

	statusFn func() convo.Status
	history  *memory.History
	onWake   func() error

	started time.Time

	// Log ring (last maxLogEntries entries)
	logs   []LogEntry
	logsMu sync.RWMutex

	// Hubs for websocket broadcast
	statusHub *hub.Hub
	eventsHub *hub.Hub
	logHub    *hub.Hub
}

// Option configures the server.
type Option func(*Server)

// WithStatusSource sets the callback that snapshots the conversation
// status.
func WithStatusSource(fn func() convo.Status) Option {
	return func(s *Server) { s.statusFn = fn }
}

// WithHistory exposes the conversation history on the API.
func WithHistory(h *memory.History) Option {
	return func(s *Server) { s.history = h }
}

// WithWakeTrigger enables the manual wake endpoint.
func WithWakeTrigger(fn func() error) Option {
	return func(s *Server) { s.onWake = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates a dashboard server listening on addr.
func NewServer(addr string, opts ...Option) *Server {
	s := &Server{
		addr:    addr,
		logger:  slog.Default(),
		started: time.Now(),
		logs:    make([]LogEntry, 0, maxLogEntries),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "web")

	s.statusHub = hub.New("status", s.logger)
	s.eventsHub = hub.New("events", s.logger)
	s.logHub = hub.New("logs", s.logger)

	app := fiber.New(fiber.Config{
		AppName:               "Talking Buddy Dashboard",
		DisableStartupMessage: true,
	})

	// CORS for a dashboard served from another origin during development
	app.Use(cors.New())

	app.Get("/", s.handleIndex)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/history", s.handleHistory)
	api.Get("/export/:format", s.handleExport)
	api.Get("/stats", s.handleStats)
	api.Get("/logs", s.handleGetLogs)
	api.Post("/wake", s.handleWake)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/events", websocket.New(s.handleEventsWS))
	app.Get("/ws/logs", websocket.New(s.handleLogsWS))

	s.app = app
	return s
}

// App returns the underlying fiber app, so other route providers can
// mount onto the same listener.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start runs the hubs and the listener. It blocks until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("dashboard listening", "addr", s.addr)

	go s.statusHub.Run()
	go s.eventsHub.Run()
	go s.logHub.Run()

	return s.app.Listen(s.addr)
}

// Shutdown stops the listener and the broadcast hubs.
func (s *Server) Shutdown() error {
	err := s.app.Shutdown()
	s.statusHub.Stop()
	s.eventsHub.Stop()
	s.logHub.Stop()
	return err
}

// PushState broadcasts a state change to status and event streams.
func (s *Server) PushState(from, to convo.State) {
	if s.statusFn != nil {
		s.statusHub.BroadcastJSON(s.statusFn())
	}

	msg, err := protocol.NewStateMessage(string(from), string(to))
	if err == nil {
		if data, err := msg.Bytes(); err == nil {
			s.eventsHub.Broadcast(data)
		}
	}

	s.AddLog("state", string(from)+" -> "+string(to))
}

// PushTurn broadcasts one conversation turn to the event stream.
func (s *Server) PushTurn(turn memory.Turn) {
	msg, err := protocol.NewTurnMessage(turn.Role, turn.Text, turn.Timestamp.UnixMilli())
	if err == nil {
		if data, err := msg.Bytes(); err == nil {
			s.eventsHub.Broadcast(data)
		}
	}

	s.AddLog("turn", turn.Role+": "+turn.Text)
}

// AddLog appends a log entry to the ring and broadcasts it.
func (s *Server) AddLog(logType, message string) {
	entry := LogEntry{
		Time:    time.Now().Format("15:04:05"),
		Type:    logType,
		Message: message,
	}

	s.logsMu.Lock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > maxLogEntries {
		s.logs = s.logs[1:]
	}
	s.logsMu.Unlock()

	s.logHub.BroadcastJSON(entry)
}

// recentLogs returns a copy of the log ring.
func (s *Server) recentLogs() []LogEntry {
	s.logsMu.RLock()
	defer s.logsMu.RUnlock()
	return append([]LogEntry(nil), s.logs...)
}

// currentStatusJSON renders the status snapshot for a new websocket
// client, or nil when no status source is wired.
func (s *Server) currentStatusJSON() []byte {
	if s.statusFn == nil {
		return nil
	}
	data, err := json.Marshal(s.statusFn())
	if err != nil {
		return nil
	}
	return data
}
