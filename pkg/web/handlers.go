package web

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/waifuisalie/Talking-Buddy/pkg/convo"
	"github.com/waifuisalie/Talking-Buddy/pkg/hub"
	"github.com/waifuisalie/Talking-Buddy/pkg/memory"
)

// StatusResponse is the /api/status payload.
type StatusResponse struct {
	Conversation *convo.Status `json:"conversation,omitempty"`
	SessionID    string        `json:"session_id,omitempty"`
	Turns        int           `json:"turns"`
	UptimeS      float64       `json:"uptime_s"`
}

// ClientCounts reports connected websocket clients per stream.
type ClientCounts struct {
	Status int `json:"status"`
	Events int `json:"events"`
	Logs   int `json:"logs"`
}

// StatsResponse is the /api/stats payload.
type StatsResponse struct {
	System  SystemStats   `json:"system"`
	History *memory.Stats `json:"history,omitempty"`
	Clients ClientCounts  `json:"clients"`
}

// handleIndex lists the API surface.
func (s *Server) handleIndex(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"name": "talking-buddy",
		"endpoints": []string{
			"/api/status", "/api/history", "/api/export/:format",
			"/api/stats", "/api/logs", "/api/wake",
			"/ws/status", "/ws/events", "/ws/logs",
		},
	})
}

// handleStatus returns the current conversation status.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	resp := StatusResponse{UptimeS: time.Since(s.started).Seconds()}

	if s.statusFn != nil {
		status := s.statusFn()
		resp.Conversation = &status
	}
	if s.history != nil {
		resp.SessionID = s.history.SessionID()
		resp.Turns = s.history.Len()
	}
	return c.JSON(resp)
}

// handleHistory returns the full conversation log.
func (s *Server) handleHistory(c *fiber.Ctx) error {
	if s.history == nil {
		return c.JSON(fiber.Map{"turns": []memory.Turn{}})
	}
	return c.JSON(fiber.Map{
		"session_id": s.history.SessionID(),
		"turns":      s.history.Turns(),
	})
}

// handleExport renders the conversation as a download.
func (s *Server) handleExport(c *fiber.Ctx) error {
	if s.history == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "history not available",
		})
	}

	format := c.Params("format")
	out, err := s.history.Export(format)
	if err != nil {
		if errors.Is(err, memory.ErrUnknownFormat) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	contentType := "text/plain; charset=utf-8"
	ext := "txt"
	switch format {
	case memory.FormatJSON:
		contentType, ext = "application/json", "json"
	case memory.FormatMarkdown:
		contentType, ext = "text/markdown; charset=utf-8", "md"
	}

	filename := "conversation-" + shortID(s.history.SessionID()) + "." + ext
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.SendString(out)
}

// handleStats returns host and appliance counters.
func (s *Server) handleStats(c *fiber.Ctx) error {
	resp := StatsResponse{
		System: ReadSystemStats(),
		Clients: ClientCounts{
			Status: s.statusHub.ClientCount(),
			Events: s.eventsHub.ClientCount(),
			Logs:   s.logHub.ClientCount(),
		},
	}
	if s.history != nil {
		stats := s.history.Stats()
		resp.History = &stats
	}
	return c.JSON(resp)
}

// handleGetLogs returns the log ring.
func (s *Server) handleGetLogs(c *fiber.Ctx) error {
	return c.JSON(s.recentLogs())
}

// handleWake triggers a wake as if a sensor had fired.
func (s *Server) handleWake(c *fiber.Ctx) error {
	if s.onWake == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "wake trigger not configured",
		})
	}
	if err := s.onWake(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	s.AddLog("wake", "manual wake from dashboard")
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleStatusWS streams status snapshots: the current one right away,
// then one per change.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	client := hub.NewClient(s.statusHub, c)

	// The write pump is not running yet, so a direct write is safe.
	if snapshot := s.currentStatusJSON(); snapshot != nil {
		c.WriteMessage(websocket.TextMessage, snapshot)
	}

	client.Run()
}

// handleEventsWS streams state changes and conversation turns as
// protocol envelopes.
func (s *Server) handleEventsWS(c *websocket.Conn) {
	hub.NewClient(s.eventsHub, c).Run()
}

// handleLogsWS replays the log ring, then streams new entries.
func (s *Server) handleLogsWS(c *websocket.Conn) {
	client := hub.NewClient(s.logHub, c)

	for _, entry := range s.recentLogs() {
		if data, err := json.Marshal(entry); err == nil {
			c.WriteMessage(websocket.TextMessage, data)
		}
	}

	client.Run()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
