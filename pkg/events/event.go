package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the dotted event code, e.g. "report.completed".
	// Publishers put it on the wire under the "events." subject prefix.
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

const (
	ReportRequested = "report.requested"
	ReportStarted   = "report.started"
	ReportCompleted = "report.completed"
	ReportFailed    = "report.failed"
)

const SubjectPrefix = "events."

// Subject returns the NATS subject an event type is published under.
func Subject(eventType string) string {
	return SubjectPrefix + eventType
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// String reads a string field from the payload, returning "" when the field
// is missing or has another type.
func (e BaseEvent) String(key string) string {
	if v, ok := e.Data[key].(string); ok {
		return v
	}
	return ""
}
