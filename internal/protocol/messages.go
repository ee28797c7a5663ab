package protocol

import (
	"encoding/json"
	"fmt"
)

// MessageType represents the type of a WebSocket frame
type MessageType string

const (
	// Client to Server
	MsgTypeKeepalive MessageType = "keepalive"

	// Server to Client
	MsgTypeAck          MessageType = "ack"
	MsgTypeAppointments MessageType = "appointments"
	MsgTypeSymptoms     MessageType = "symptoms"
	MsgTypeError        MessageType = "error"
)

// BaseMessage is the common structure for all frames
type BaseMessage struct {
	Type MessageType `json:"type"`
}

// KeepaliveMessage keeps an idle socket open
type KeepaliveMessage struct {
	Type MessageType `json:"type"`
}

// UpdateMessage carries the full current contents of one patient
// sub-collection.
type UpdateMessage struct {
	Type      MessageType `json:"type"`
	PatientID string      `json:"patientId"`
	Data      any         `json:"data"`
}

// AckMessage is sent by the server in response to client frames
type AckMessage struct {
	Type   MessageType `json:"type"`
	Status string      `json:"status"`
}

type ErrorMessage struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// AckStatus constants
const (
	AckStatusSubscribed = "subscribed"
	AckStatusAlive      = "alive"
)

// ParseMessage parses a client frame into the appropriate message type
func ParseMessage(data []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	switch base.Type {
	case MsgTypeKeepalive:
		return &KeepaliveMessage{Type: base.Type}, nil
	default:
		return nil, fmt.Errorf("unknown message type: %s", base.Type)
	}
}

// EncodeMessage encodes a message to JSON
func EncodeMessage(msg interface{}) ([]byte, error) {
	return json.Marshal(msg)
}

// NewAckMessage creates a new acknowledgment message
func NewAckMessage(status string) *AckMessage {
	return &AckMessage{
		Type:   MsgTypeAck,
		Status: status,
	}
}

func NewErrorMessage(msg string) *ErrorMessage {
	return &ErrorMessage{Type: MsgTypeError, Message: msg}
}

// NewUpdateMessage wraps a sub-collection snapshot. kind is "appointments"
// or "symptoms".
func NewUpdateMessage(patientID, kind string, data any) *UpdateMessage {
	return &UpdateMessage{Type: MessageType(kind), PatientID: patientID, Data: data}
}
