package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// StatusInfo describes the health of a running (or stopped) daemon.
type StatusInfo struct {
	Running   bool   `json:"running"`
	PID       int    `json:"pid,omitempty"`
	Uptime    string `json:"uptime,omitempty"`
	Version   string `json:"version,omitempty"`
	Socket    string `json:"socket"`
	TasksRoot string `json:"tasks_root,omitempty"`
	PlansRoot string `json:"plans_root,omitempty"`

	Sessions int `json:"sessions"`
	Tasks    int `json:"tasks"`
	Plans    int `json:"plans"`

	WatchBackend string    `json:"watch_backend,omitempty"`
	WatchedDirs  int       `json:"watched_dirs"`
	Reloads      uint64    `json:"reloads"`
	LastReload   time.Time `json:"last_reload,omitempty"`
	Subscribers  int       `json:"subscribers"`
}

// StatusRenderer displays daemon status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: GetStyles(noColor)}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	if !info.Running {
		_, _ = fmt.Fprintf(r.out, "%s %s\n", r.styles.Header.Render("Daemon:"), r.renderState("stopped"))
		_, _ = fmt.Fprintf(r.out, "  Socket: %s\n", info.Socket)
		return nil
	}

	_, _ = fmt.Fprintf(r.out, "%s %s\n\n", r.styles.Header.Render("Daemon:"), r.renderState("running"))
	_, _ = fmt.Fprintf(r.out, "  PID:     %d\n", info.PID)
	_, _ = fmt.Fprintf(r.out, "  Uptime:  %s\n", info.Uptime)
	if info.Version != "" {
		_, _ = fmt.Fprintf(r.out, "  Version: %s\n", info.Version)
	}
	_, _ = fmt.Fprintf(r.out, "  Socket:  %s\n", info.Socket)
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Sources:")
	_, _ = fmt.Fprintf(r.out, "    Tasks: %s\n", info.TasksRoot)
	_, _ = fmt.Fprintf(r.out, "    Plans: %s\n", info.PlansRoot)
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Snapshot:")
	_, _ = fmt.Fprintf(r.out, "    Sessions: %d\n", info.Sessions)
	_, _ = fmt.Fprintf(r.out, "    Tasks:    %d\n", info.Tasks)
	_, _ = fmt.Fprintf(r.out, "    Plans:    %d\n", info.Plans)
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintf(r.out, "  Watcher: %s, %d dirs, %d reloads", info.WatchBackend, info.WatchedDirs, info.Reloads)
	if !info.LastReload.IsZero() {
		_, _ = fmt.Fprintf(r.out, " (last %s)", formatTime(info.LastReload))
	}
	_, _ = fmt.Fprintln(r.out)
	_, _ = fmt.Fprintf(r.out, "  Subscribers: %d\n", info.Subscribers)
	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

func (r *StatusRenderer) renderState(state string) string {
	switch state {
	case "running":
		return r.styles.Success.Render(state)
	case "stopped":
		return r.styles.Warning.Render(state)
	default:
		return state
	}
}

// formatTime formats a time relative to now.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	default:
		return t.Format("2006-01-02 15:04")
	}
}
