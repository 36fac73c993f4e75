package ui

import (
	"sort"

	"github.com/Chili6666/iclaude-workbench/internal/task"
)

// SessionSummary groups one session's tasks with status counts.
type SessionSummary struct {
	ID         string      `json:"id"`
	Tasks      []task.Task `json:"tasks"`
	Pending    int         `json:"pending"`
	InProgress int         `json:"inProgress"`
	Completed  int         `json:"completed"`
}

// Total returns the number of tasks in the session.
func (s SessionSummary) Total() int {
	return len(s.Tasks)
}

// Progress returns the completed fraction, 0 for an empty session.
func (s SessionSummary) Progress() float64 {
	if len(s.Tasks) == 0 {
		return 0
	}
	return float64(s.Completed) / float64(len(s.Tasks))
}

// Summarize groups tasks by session. Sessions with in-progress work come
// first, then by id. Task order within a session is preserved.
func Summarize(tasks []task.Task) []SessionSummary {
	index := make(map[string]int)
	var out []SessionSummary
	for _, t := range tasks {
		i, ok := index[t.SessionID]
		if !ok {
			i = len(out)
			index[t.SessionID] = i
			out = append(out, SessionSummary{ID: t.SessionID})
		}
		s := &out[i]
		s.Tasks = append(s.Tasks, t)
		switch t.Status {
		case task.StatusCompleted:
			s.Completed++
		case task.StatusInProgress:
			s.InProgress++
		default:
			s.Pending++
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := out[i].InProgress > 0, out[j].InProgress > 0
		if ai != aj {
			return ai
		}
		return out[i].ID < out[j].ID
	})
	return out
}
