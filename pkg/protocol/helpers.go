package protocol

// Helper functions for creating and parsing typed messages.

// NewHelloMessage creates a sensor hello message.
func NewHelloMessage(sensorID, model, firmware string) (*Message, error) {
	return NewMessage(TypeHello, HelloData{
		SensorID: sensorID,
		Model:    model,
		Firmware: firmware,
	})
}

// NewWakeMessage creates a wake word detection message.
func NewWakeMessage(sensorID, word string, confidence float64) (*Message, error) {
	return NewMessage(TypeWake, WakeData{
		SensorID:   sensorID,
		Word:       word,
		Confidence: confidence,
	})
}

// NewWakeAckMessage creates a wake acknowledgement.
func NewWakeAckMessage(sensorID string, accepted bool, state string) (*Message, error) {
	return NewMessage(TypeWakeAck, WakeAckData{
		SensorID: sensorID,
		Accepted: accepted,
		State:    state,
	})
}

// NewSleepMessage creates a sleep notification.
func NewSleepMessage(state string) (*Message, error) {
	return NewMessage(TypeSleep, SleepData{State: state})
}

// NewStateMessage creates a state change broadcast.
func NewStateMessage(from, to string) (*Message, error) {
	return NewMessage(TypeState, StateData{From: from, To: to})
}

// NewTurnMessage creates a conversation turn broadcast.
func NewTurnMessage(role, text string, ts int64) (*Message, error) {
	return NewMessage(TypeTurn, TurnData{
		Role:      role,
		Text:      text,
		Timestamp: ts,
	})
}

// NewPingMessage creates a ping message.
func NewPingMessage(id string, ts int64) (*Message, error) {
	return NewMessage(TypePing, PingData{ID: id, Timestamp: ts})
}

// NewPongMessage creates a pong response.
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// GetHelloData extracts hello data from a message.
func GetHelloData(msg *Message) (*HelloData, error) {
	var data HelloData
	if err := msg.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetWakeData extracts wake data from a message.
func GetWakeData(msg *Message) (*WakeData, error) {
	var data WakeData
	if err := msg.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetWakeAckData extracts wake acknowledgement data from a message.
func GetWakeAckData(msg *Message) (*WakeAckData, error) {
	var data WakeAckData
	if err := msg.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetSleepData extracts sleep data from a message.
func GetSleepData(msg *Message) (*SleepData, error) {
	var data SleepData
	if err := msg.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetStateData extracts state change data from a message.
func GetStateData(msg *Message) (*StateData, error) {
	var data StateData
	if err := msg.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetTurnData extracts turn data from a message.
func GetTurnData(msg *Message) (*TurnData, error) {
	var data TurnData
	if err := msg.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message.
func GetPingData(msg *Message) (*PingData, error) {
	var data PingData
	if err := msg.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message.
func GetPongData(msg *Message) (*PongData, error) {
	var data PongData
	if err := msg.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
