// Package events describes the notifications emitted after a task change
// has been committed.
package events

import (
	"context"
	"time"

	"github.com/sakif/tasklist/internal/model"
)

// Event types.
const (
	TaskCreated = "task.created"
	TaskUpdated = "task.updated"
	TaskDeleted = "task.deleted"
)

// Event is one committed change to a task.
type Event struct {
	Type       string    `json:"type"`
	TaskID     int64     `json:"taskId"`
	OwnerID    int64     `json:"ownerId"`
	Title      string    `json:"title"`
	Completed  bool      `json:"completed"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NewTaskEvent builds an event of the given type from a task snapshot.
func NewTaskEvent(eventType string, t model.Task, at time.Time) Event {
	return Event{
		Type:       eventType,
		TaskID:     t.ID,
		OwnerID:    t.OwnerID,
		Title:      t.Title,
		Completed:  t.Completed,
		OccurredAt: at,
	}
}

// Publisher delivers events somewhere outside the process.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Noop drops every event. It is the publisher when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
