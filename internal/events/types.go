// Package events provides event types and publishing for trellis.
package events

import (
	"time"
)

// EventType identifies the kind of event.
type EventType string

const (
	// Task lifecycle events.

	// EventTaskCreated indicates a task was created.
	EventTaskCreated EventType = "task_created"
	// EventTaskUpdated indicates a task was modified.
	EventTaskUpdated EventType = "task_updated"
	// EventTaskDeleted indicates a task was deleted.
	EventTaskDeleted EventType = "task_deleted"

	// Hierarchy events.

	// EventPhasesEnsured indicates a phase-spawn pass completed for a
	// parent task. Fired once per EnsurePhases call, after any
	// task_created events for newly spawned children.
	EventPhasesEnsured EventType = "phases_ensured"
)

// Event represents a published event.
type Event struct {
	Type   EventType `json:"type"`
	TaskID string    `json:"task_id"`
	Data   any       `json:"data,omitempty"`
	Time   time.Time `json:"time"`
}

// NewEvent creates a new event with the current timestamp.
func NewEvent(eventType EventType, taskID string, data any) Event {
	return Event{
		Type:   eventType,
		TaskID: taskID,
		Data:   data,
		Time:   time.Now(),
	}
}

// TaskDeletedData carries details of a deletion.
type TaskDeletedData struct {
	TaskID   string `json:"task_id"`
	Cascaded int    `json:"cascaded,omitempty"`
}

// PhasesEnsuredData summarizes a phase-spawn pass.
type PhasesEnsuredData struct {
	ParentID string `json:"parent_id"`
	Track    string `json:"track"`
	Spawned  int    `json:"spawned"`
	Total    int    `json:"total"`
}
