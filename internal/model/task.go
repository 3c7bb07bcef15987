package model

import "strings"

// Status of a task on the remote service.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// ParseStatus maps a raw status string onto the closed set. Anything
// unrecognised counts as pending, matching the server-side default.
func ParseStatus(raw string) Status {
	if Status(raw) == StatusCompleted {
		return StatusCompleted
	}
	return StatusPending
}

// Priority runs 1..5 with 1 the most urgent.
type Priority int

const (
	PriorityHighest Priority = 1
	PriorityHigh    Priority = 2
	PriorityMedium  Priority = 3
	PriorityLow     Priority = 4
	PriorityLowest  Priority = 5
)

// Normalize clamps absent or out-of-range values to medium, the
// default the service applies on create.
func (p Priority) Normalize() Priority {
	if p < PriorityHighest || p > PriorityLowest {
		return PriorityMedium
	}
	return p
}

func (p Priority) Label() string {
	switch p.Normalize() {
	case PriorityHighest:
		return "Highest"
	case PriorityHigh:
		return "High"
	case PriorityLow:
		return "Low"
	case PriorityLowest:
		return "Lowest"
	default:
		return "Medium"
	}
}

// Task is one item in the remote task collection. The service owns it;
// the client only holds a read/write cache.
type Task struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	Priority    Priority `json:"priority,omitempty"`
	Status      Status   `json:"status"`
	DueDate     *Time    `json:"due_date,omitempty"`
	CompletedAt *Time    `json:"completed_at,omitempty"`
	CreatedAt   *Time    `json:"created_at,omitempty"`
	UserID      string   `json:"user_id,omitempty"`
}

// CategoryLabel renders the category with the fallback the UI uses
// everywhere for unlabelled tasks.
func (t Task) CategoryLabel() string {
	if name := strings.TrimSpace(t.Category); name != "" {
		return name
	}
	return "Uncategorized"
}

// TaskDraft is the payload for creating a task. The service assigns
// the id.
type TaskDraft struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	Priority    Priority `json:"priority,omitempty"`
	DueDate     *Time    `json:"due_date,omitempty"`
}

// TaskPatch carries only the fields to change. Values of nil encode an
// explicit JSON null, which the service needs to clear completed_at.
type TaskPatch map[string]any
