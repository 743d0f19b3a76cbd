// Package protocol defines the WebSocket message types the appliance
// exchanges with wake-word sensors and dashboard clients. The sensor
// side replaces the old serial line protocol (WAKE_WORD_DETECTED /
// ACK_WAKE / CHATBOT_SLEEPING) with the same envelope used everywhere
// else.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Sensor → appliance messages
	TypeHello MessageType = "hello" // Sensor introduces itself
	TypeWake  MessageType = "wake"  // Wake word detected

	// Appliance → sensor messages
	TypeWakeAck MessageType = "wake_ack" // Wake signal acknowledged
	TypeSleep   MessageType = "sleep"    // Appliance entered sleep

	// Appliance → dashboard messages
	TypeState MessageType = "state" // Operating state change
	TypeTurn  MessageType = "turn"  // Conversation turn

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct.
func (m *Message) ParseData(v any) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message.
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// =============================================================================
// Sensor → Appliance Message Types
// =============================================================================

// HelloData introduces a sensor after it connects.
type HelloData struct {
	SensorID string `json:"sensor_id"`
	Model    string `json:"model,omitempty"`    // e.g., "esp32-s3"
	Firmware string `json:"firmware,omitempty"` // Sensor firmware version
}

// WakeData reports a wake word detection.
type WakeData struct {
	SensorID   string  `json:"sensor_id"`
	Word       string  `json:"word,omitempty"`       // Detected wake word
	Confidence float64 `json:"confidence,omitempty"` // 0.0 to 1.0
}

// =============================================================================
// Appliance → Sensor Message Types
// =============================================================================

// WakeAckData acknowledges a wake signal.
type WakeAckData struct {
	SensorID string `json:"sensor_id"`
	Accepted bool   `json:"accepted"` // False when the wake could not be handled
	State    string `json:"state"`    // Operating state after the wake
}

// SleepData tells the sensor the appliance went to sleep, so wake-word
// detection should resume.
type SleepData struct {
	State string `json:"state"` // "light_sleep" or "deep_sleep"
}

// =============================================================================
// Appliance → Dashboard Message Types
// =============================================================================

// StateData broadcasts an operating state change.
type StateData struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// TurnData broadcasts one conversation turn.
type TurnData struct {
	Role      string `json:"role"` // "user" or "assistant"
	Text      string `json:"text"`
	Timestamp int64  `json:"ts"` // Unix milliseconds
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information.
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains the pong response.
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
