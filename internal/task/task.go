// Package task aggregates task files grouped into session directories into a
// live, deduplicated snapshot.
//
// Layout:
//
//	<root>/<sessionId>/<taskFile>.json
package task

import "slices"

// Status is a task's progress state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// ParseStatus returns the Status named by s, or StatusPending for anything
// unrecognized.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusPending, StatusInProgress, StatusCompleted:
		return Status(s)
	default:
		return StatusPending
	}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return ParseStatus(string(s)) == s
}

// Task is one unit of work tracked by a session.
type Task struct {
	ID          string         `json:"id"`
	Subject     string         `json:"subject"`
	Description string         `json:"description,omitempty"`
	Status      Status         `json:"status"`
	Owner       string         `json:"owner,omitempty"`
	ActiveForm  string         `json:"activeForm,omitempty"`
	BlockedBy   []string       `json:"blockedBy,omitempty"`
	Blocks      []string       `json:"blocks,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`

	// SessionID is the name of the containing directory.
	SessionID string `json:"sessionId"`
	// FilePath is the absolute path of the source file.
	FilePath string `json:"filePath"`
}

// Key identifies a task. Ids are only unique within a session.
type Key struct {
	SessionID string
	ID        string
}

// Key returns the task's composite identity.
func (t Task) Key() Key {
	return Key{SessionID: t.SessionID, ID: t.ID}
}

// Clone returns a copy of t that shares no slices or maps with it.
func (t Task) Clone() Task {
	t.BlockedBy = slices.Clone(t.BlockedBy)
	t.Blocks = slices.Clone(t.Blocks)
	if t.Metadata != nil {
		t.Metadata = cloneValue(t.Metadata).(map[string]any)
	}
	return t
}

// CloneAll deep-copies a task list. The result is never nil.
func CloneAll(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}

// cloneValue copies the map and slice shapes produced by JSON decoding.
func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
