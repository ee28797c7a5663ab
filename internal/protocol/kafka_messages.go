package protocol

import (
	"encoding/json"
	"time"
)

// UserUpdated is emitted after a patient document's family list is written.
// EventID is unique per write, so consumers can tell a redelivery from a
// later change with the same contents.
type UserUpdated struct {
	EventID     string    `json:"event_id"`
	Type        string    `json:"type"`
	PatientID   string    `json:"patient_id"`
	PatientName string    `json:"patient_name"`
	Before      []string  `json:"before"`
	After       []string  `json:"after"`
	OccurredAt  time.Time `json:"occurred_at"`
}

const (
	EventTypeFamilyUpdated = "FAMILY_UPDATED"
)

// EncodeUserUpdated encodes a UserUpdated event to JSON
func EncodeUserUpdated(evt *UserUpdated) ([]byte, error) {
	return json.Marshal(evt)
}

// DecodeUserUpdated decodes JSON to UserUpdated
func DecodeUserUpdated(data []byte) (*UserUpdated, error) {
	var evt UserUpdated
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, err
	}
	return &evt, nil
}
