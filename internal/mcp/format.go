package mcp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Chili6666/iclaude-workbench/internal/task"
)

var statusMarks = map[task.Status]string{
	task.StatusPending:    "[ ]",
	task.StatusInProgress: "[~]",
	task.StatusCompleted:  "[x]",
}

// FormatTasks renders tasks as markdown, one section per session in
// session id order. Task order within a session is preserved.
func FormatTasks(tasks []task.Task) string {
	if len(tasks) == 0 {
		return "No tasks found."
	}

	bySession := make(map[string][]task.Task)
	for _, t := range tasks {
		bySession[t.SessionID] = append(bySession[t.SessionID], t)
	}
	sessions := make([]string, 0, len(bySession))
	for id := range bySession {
		sessions = append(sessions, id)
	}
	sort.Strings(sessions)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Tasks\n\nFound %d task", len(tasks)))
	if len(tasks) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString(fmt.Sprintf(" in %d session", len(sessions)))
	if len(sessions) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n")

	for _, id := range sessions {
		sb.WriteString(fmt.Sprintf("\n### Session `%s`\n\n", id))
		for _, t := range bySession[id] {
			formatTask(&sb, t)
		}
	}
	return sb.String()
}

func formatTask(sb *strings.Builder, t task.Task) {
	sb.WriteString(fmt.Sprintf("- %s **%s** %s", statusMarks[t.Status], t.ID, t.Subject))
	if t.Status == task.StatusInProgress && t.ActiveForm != "" {
		sb.WriteString(fmt.Sprintf(" _(%s)_", t.ActiveForm))
	}
	if t.Owner != "" {
		sb.WriteString(fmt.Sprintf(" @%s", t.Owner))
	}
	if len(t.BlockedBy) > 0 {
		sb.WriteString(fmt.Sprintf(" (blocked by %s)", strings.Join(t.BlockedBy, ", ")))
	}
	sb.WriteString("\n")
}
