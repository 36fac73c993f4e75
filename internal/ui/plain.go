package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Chili6666/iclaude-workbench/internal/bridge"
	"github.com/Chili6666/iclaude-workbench/internal/task"
)

// PlainBoard prints one summary line per update (for CI/pipes).
type PlainBoard struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

// NewPlainBoard creates a plain text board.
func NewPlainBoard(cfg Config) *PlainBoard {
	return &PlainBoard{out: cfg.Output, now: time.Now}
}

// Run implements Board.
func (b *PlainBoard) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// Send implements Board.
func (b *PlainBoard) Send(msg bridge.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	stamp := b.now().Format("15:04:05")
	switch msg.Type {
	case bridge.TypeTasksUpdated:
		var pending, active, done int
		sessions := Summarize(msg.Tasks)
		for _, s := range sessions {
			pending += s.Pending
			active += s.InProgress
			done += s.Completed
		}
		_, _ = fmt.Fprintf(b.out, "[%s] tasks: %d in %d sessions (pending %d, in progress %d, completed %d)\n",
			stamp, len(msg.Tasks), len(sessions), pending, active, done)
		for _, s := range sessions {
			for _, t := range s.Tasks {
				if t.Status == task.StatusInProgress {
					_, _ = fmt.Fprintf(b.out, "           %s #%s %s\n", s.ID, t.ID, activeLabel(t.Subject, t.ActiveForm))
				}
			}
		}
	case bridge.TypePlansUpdated:
		_, _ = fmt.Fprintf(b.out, "[%s] plans: %d\n", stamp, len(msg.Plans))
	}
}

func activeLabel(subject, activeForm string) string {
	if activeForm != "" {
		return activeForm
	}
	return subject
}

var _ Board = (*PlainBoard)(nil)
