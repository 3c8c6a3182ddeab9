package amqp

import (
	"encoding/json"
	"time"

	"fintrack/internal/core"
)

// Record mutation actions carried on the event stream.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// RecordEvent is a lightweight notification that a record changed.
// Consumers that need the full record fetch it themselves; the payload
// carries only identity, never amounts.
type RecordEvent struct {
	Entity    core.RecordKind `json:"entity"`
	Action    string          `json:"action"`
	RecordID  string          `json:"record_id"`
	UserID    string          `json:"user_id"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewRecordEvent(entity core.RecordKind, action, recordID, userID string) *RecordEvent {
	return &RecordEvent{
		Entity:    entity,
		Action:    action,
		RecordID:  recordID,
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

func (e *RecordEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func RecordEventFromJSON(data []byte) (*RecordEvent, error) {
	var e RecordEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
