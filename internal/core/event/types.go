package event

import "time"

type EventType string

const (
	EventJobCreated   EventType = "conversion.created"
	EventJobCompleted EventType = "conversion.completed"
	EventJobFailed    EventType = "conversion.failed"
	EventJobDeleted   EventType = "conversion.deleted"
	// EventJobDiscarded marks an outcome that arrived after its job record
	// was deleted; the terminal write had nothing to land on.
	EventJobDiscarded EventType = "conversion.discarded"
)

type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   JobEvent
}

// JobEvent is the payload for all conversion lifecycle events.
type JobEvent struct {
	JobID       string
	OwnerID     string
	Source      string
	URL         string
	Title       string
	ArtifactRef string
	Error       string
}
