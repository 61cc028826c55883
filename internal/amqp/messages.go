package amqp

import (
	"encoding/json"
	"time"

	"pennywise/internal/core"
)

// OccurrenceMessage announces one generated record. It carries only the ids;
// the export worker fetches the full record from the database.
type OccurrenceMessage struct {
	Kind        core.RecurringKind `json:"kind"`
	RecordID    string             `json:"record_id"`
	RecurringID string             `json:"recurring_id"`
	Timestamp   time.Time          `json:"timestamp"`
}

func NewOccurrenceMessage(kind core.RecurringKind, recordID, recurringID string) *OccurrenceMessage {
	return &OccurrenceMessage{
		Kind:        kind,
		RecordID:    recordID,
		RecurringID: recurringID,
		Timestamp:   time.Now(),
	}
}

func (m *OccurrenceMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func OccurrenceMessageFromJSON(data []byte) (*OccurrenceMessage, error) {
	var msg OccurrenceMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
