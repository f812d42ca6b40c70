package history

import (
	"context"
	"time"
)

// EventType is the kind of lifecycle event recorded for a project.
type EventType string

const (
	EventStart EventType = "start"
	EventStop  EventType = "stop"
)

// Event is one project lifecycle transition, exported to an audit sink.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Project    string    `json:"project"`
	PID        int       `json:"pid"`
	Detail     string    `json:"detail,omitempty"` // exit error for stop events
}

// Sink is a destination for lifecycle events. Implementations must be safe
// for concurrent use; send failures are logged by the supervisor and never
// block a lifecycle operation.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}
