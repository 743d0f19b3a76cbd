// Package bridge accepts WebSocket connections from wake-word sensors.
//
// A sensor (typically an ESP32 running a wake-word model) connects,
// introduces itself with a hello message and then reports detections.
// The bridge acknowledges every wake signal and pushes a sleep
// notification when the appliance stops listening, so the sensor knows
// to resume wake-word detection.
package bridge

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/waifuisalie/Talking-Buddy/pkg/protocol"
)

// writeWait bounds a single message write to a sensor.
const writeWait = 10 * time.Second

// SensorConnection represents a connected wake-word sensor.
type SensorConnection struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time

	mu       sync.Mutex
	lastSeen time.Time
	model    string
	firmware string
}

// Send sends a message to the sensor.
func (s *SensorConnection) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.Conn.WriteMessage(websocket.TextMessage, data)
}

// WakeHandler decides whether a wake signal is accepted. It returns the
// verdict and the appliance state to report back to the sensor. Handlers
// run on the sensor's read loop and must return promptly; slow wake work
// belongs on another goroutine.
type WakeHandler func(sensorID string, wake *protocol.WakeData) (accepted bool, state string)

// Server manages WebSocket connections from wake-word sensors.
type Server struct {
	mu      sync.RWMutex
	sensors map[string]*SensorConnection
	onWake  WakeHandler

	logger *slog.Logger

	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	wakeCount        atomic.Uint64
	wakesAccepted    atomic.Uint64
	lastWakeMs       atomic.Int64
}

// New creates a sensor bridge server.
func New(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		sensors: make(map[string]*SensorConnection),
		logger:  logger.With("component", "bridge"),
	}
}

// OnWake sets the handler for incoming wake signals.
func (s *Server) OnWake(handler WakeHandler) {
	s.mu.Lock()
	s.onWake = handler
	s.mu.Unlock()
}

// RegisterRoutes registers the sensor WebSocket routes on a Fiber app.
func (s *Server) RegisterRoutes(app *fiber.App) {
	app.Use("/ws/sensor", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/sensor", websocket.New(s.handleSensor))
	app.Get("/ws/sensor/:id", websocket.New(s.handleSensor))
}

// handleSensor runs the read loop for one sensor connection.
func (s *Server) handleSensor(c *websocket.Conn) {
	sensorID := c.Params("id")
	if sensorID == "" {
		sensorID = "sensor-" + uuid.NewString()[:8]
	}

	sensor := &SensorConnection{
		ID:        sensorID,
		Conn:      c,
		Connected: time.Now(),
		lastSeen:  time.Now(),
	}

	s.mu.Lock()
	s.sensors[sensorID] = sensor
	count := len(s.sensors)
	s.mu.Unlock()

	s.logger.Info("sensor connected", "sensor_id", sensorID, "total", count)

	defer func() {
		s.mu.Lock()
		delete(s.sensors, sensorID)
		count := len(s.sensors)
		s.mu.Unlock()

		s.logger.Info("sensor disconnected", "sensor_id", sensorID, "total", count)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			s.logger.Debug("sensor read ended", "sensor_id", sensorID, "error", err)
			return
		}

		sensor.mu.Lock()
		sensor.lastSeen = time.Now()
		sensor.mu.Unlock()

		s.messagesReceived.Add(1)
		s.handleMessage(sensor, data)
	}
}

// handleMessage processes one incoming sensor message.
func (s *Server) handleMessage(sensor *SensorConnection, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		s.logger.Warn("unparseable sensor message", "sensor_id", sensor.ID, "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeHello:
		hello, err := protocol.GetHelloData(msg)
		if err != nil {
			s.logger.Warn("malformed hello", "sensor_id", sensor.ID, "error", err)
			return
		}
		sensor.mu.Lock()
		sensor.model = hello.Model
		sensor.firmware = hello.Firmware
		sensor.mu.Unlock()
		s.logger.Info("sensor hello",
			"sensor_id", sensor.ID,
			"model", hello.Model,
			"firmware", hello.Firmware,
		)

	case protocol.TypeWake:
		s.handleWake(sensor, msg)

	case protocol.TypePing:
		ping, err := protocol.GetPingData(msg)
		if err != nil {
			s.logger.Warn("malformed ping", "sensor_id", sensor.ID, "error", err)
			return
		}
		pong, err := protocol.NewPongMessage(ping.ID, msg.Timestamp, time.Now().UnixMilli())
		if err != nil {
			return
		}
		if err := s.send(sensor, pong); err != nil {
			s.logger.Debug("pong send failed", "sensor_id", sensor.ID, "error", err)
		}

	default:
		s.logger.Debug("unhandled sensor message", "sensor_id", sensor.ID, "type", msg.Type)
	}
}

// handleWake runs the wake handler and acknowledges the signal either
// way, so the sensor always learns whether it got through.
func (s *Server) handleWake(sensor *SensorConnection, msg *protocol.Message) {
	wake, err := protocol.GetWakeData(msg)
	if err != nil {
		s.logger.Warn("malformed wake message", "sensor_id", sensor.ID, "error", err)
		return
	}

	s.wakeCount.Add(1)
	s.lastWakeMs.Store(time.Now().UnixMilli())

	s.mu.RLock()
	handler := s.onWake
	s.mu.RUnlock()

	accepted := false
	state := ""
	if handler != nil {
		accepted, state = handler(sensor.ID, wake)
	} else {
		s.logger.Warn("wake signal received but no handler wired", "sensor_id", sensor.ID)
	}
	if accepted {
		s.wakesAccepted.Add(1)
	}

	s.logger.Info("wake signal",
		"sensor_id", sensor.ID,
		"word", wake.Word,
		"confidence", wake.Confidence,
		"accepted", accepted,
	)

	ack, err := protocol.NewWakeAckMessage(sensor.ID, accepted, state)
	if err != nil {
		s.logger.Warn("could not build wake ack", "error", err)
		return
	}
	if err := s.send(sensor, ack); err != nil {
		s.logger.Warn("could not ack wake", "sensor_id", sensor.ID, "error", err)
	}
}

// NotifySleep tells every connected sensor the appliance stopped
// listening. It returns immediately; delivery is best effort.
func (s *Server) NotifySleep() {
	msg, err := protocol.NewSleepMessage("light_sleep")
	if err != nil {
		return
	}
	go s.Broadcast(msg)
}

// Broadcast sends a message to all connected sensors.
func (s *Server) Broadcast(msg *protocol.Message) {
	s.mu.RLock()
	sensors := make([]*SensorConnection, 0, len(s.sensors))
	for _, sensor := range s.sensors {
		sensors = append(sensors, sensor)
	}
	s.mu.RUnlock()

	for _, sensor := range sensors {
		if err := s.send(sensor, msg); err != nil {
			s.logger.Debug("broadcast send failed", "sensor_id", sensor.ID, "error", err)
		}
	}
}

// send delivers one message to one sensor.
func (s *Server) send(sensor *SensorConnection, msg *protocol.Message) error {
	s.messagesSent.Add(1)
	return sensor.Send(msg)
}

// GetSensor returns a sensor connection by ID, or nil.
func (s *Server) GetSensor(sensorID string) *SensorConnection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sensors[sensorID]
}

// SensorCount returns the number of connected sensors.
func (s *Server) SensorCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sensors)
}

// SensorInfo describes one connected sensor.
type SensorInfo struct {
	ID        string    `json:"id"`
	Model     string    `json:"model,omitempty"`
	Firmware  string    `json:"firmware,omitempty"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

// Sensors returns info about all connected sensors.
func (s *Server) Sensors() []SensorInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]SensorInfo, 0, len(s.sensors))
	for _, sensor := range s.sensors {
		sensor.mu.Lock()
		infos = append(infos, SensorInfo{
			ID:        sensor.ID,
			Model:     sensor.model,
			Firmware:  sensor.firmware,
			Connected: sensor.Connected,
			LastSeen:  sensor.lastSeen,
		})
		sensor.mu.Unlock()
	}
	return infos
}

// Stats contains bridge counters.
type Stats struct {
	SensorCount      int    `json:"sensor_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	WakeCount        uint64 `json:"wake_count"`
	WakesAccepted    uint64 `json:"wakes_accepted"`
	LastWakeTime     int64  `json:"last_wake_time,omitempty"` // Unix milliseconds
}

// GetStats returns bridge counters.
func (s *Server) GetStats() Stats {
	return Stats{
		SensorCount:      s.SensorCount(),
		MessagesReceived: s.messagesReceived.Load(),
		MessagesSent:     s.messagesSent.Load(),
		WakeCount:        s.wakeCount.Load(),
		WakesAccepted:    s.wakesAccepted.Load(),
		LastWakeTime:     s.lastWakeMs.Load(),
	}
}

// RegisterAPIRoutes registers sensor inspection routes.
func (s *Server) RegisterAPIRoutes(api fiber.Router) {
	sensors := api.Group("/sensors")

	sensors.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"sensors": s.Sensors(),
			"count":   s.SensorCount(),
		})
	})

	sensors.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(s.GetStats())
	})
}
