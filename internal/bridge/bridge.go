package bridge

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	werrors "github.com/Chili6666/iclaude-workbench/internal/errors"
	"github.com/Chili6666/iclaude-workbench/internal/notify"
	"github.com/Chili6666/iclaude-workbench/internal/plan"
	"github.com/Chili6666/iclaude-workbench/internal/task"
	"github.com/Chili6666/iclaude-workbench/internal/workspace"
)

// TaskSource is the subset of *task.Aggregator the bridge uses.
type TaskSource interface {
	Current() []task.Task
	Refresh(ctx context.Context) ([]task.Task, error)
	Subscribe(fn func([]task.Task)) notify.Subscription
	Unsubscribe(s notify.Subscription) bool
}

// PlanSource is the subset of *plan.Aggregator the bridge uses.
type PlanSource interface {
	Current() []plan.Plan
	Refresh(ctx context.Context) ([]plan.Plan, error)
	Search(query string) []plan.Plan
	Get(id string) (plan.Plan, bool)
	Subscribe(fn func([]plan.Plan)) notify.Subscription
	Unsubscribe(s notify.Subscription) bool
}

// FolderLister lists workspace folders.
type FolderLister interface {
	List(roots []string, maxDepth int) []workspace.Folder
}

// Opener shows a file to the user.
type Opener interface {
	Open(ctx context.Context, path string) error
}

// Copier copies src into dstDir and returns the written path.
type Copier interface {
	Copy(ctx context.Context, src, dstDir string) (string, error)
}

// Commander runs commands. *Bridge implements it in-process and
// CommanderFunc adapts remote clients.
type Commander interface {
	Handle(ctx context.Context, cmd Command) (*Message, error)
}

// CommanderFunc adapts a function to Commander.
type CommanderFunc func(ctx context.Context, cmd Command) (*Message, error)

// Handle calls f.
func (f CommanderFunc) Handle(ctx context.Context, cmd Command) (*Message, error) {
	return f(ctx, cmd)
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// WithMaxDepth sets the folder listing depth.
func WithMaxDepth(depth int) Option {
	return func(b *Bridge) { b.maxDepth = depth }
}

// Bridge dispatches commands and republishes aggregator notifications.
type Bridge struct {
	tasks    TaskSource
	plans    PlanSource
	lister   FolderLister
	roots    []string
	maxDepth int
	opener   Opener
	copier   Copier
	logger   *slog.Logger

	subs *notify.Registry[Message]

	mu       sync.Mutex
	taskSub  notify.Subscription
	planSub  notify.Subscription
	attached bool
}

// New creates a Bridge. roots are the workspace roots; the first one is the
// project folder for copyPlanToProject.
func New(tasks TaskSource, plans PlanSource, lister FolderLister, roots []string, opener Opener, copier Copier, opts ...Option) *Bridge {
	b := &Bridge{
		tasks:    tasks,
		plans:    plans,
		lister:   lister,
		roots:    append([]string(nil), roots...),
		maxDepth: workspace.DefaultMaxDepth,
		opener:   opener,
		copier:   copier,
		subs:     notify.NewCloningRegistry(Message.Clone),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// Start subscribes to both aggregators. Every later reload is republished
// to the bridge's subscribers. Calling Start twice is a no-op.
func (b *Bridge) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.attached {
		return
	}
	b.taskSub = b.tasks.Subscribe(func(tasks []task.Task) {
		b.subs.Notify(TasksUpdated(tasks))
	})
	b.planSub = b.plans.Subscribe(func(plans []plan.Plan) {
		b.subs.Notify(PlansUpdated(plans))
	})
	b.attached = true
}

// Stop detaches from the aggregators. Bridge subscribers are kept.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return
	}
	b.tasks.Unsubscribe(b.taskSub)
	b.plans.Unsubscribe(b.planSub)
	b.attached = false
}

// Subscribe registers fn for every message the bridge publishes. fn runs on
// the publishing goroutine and must not block.
func (b *Bridge) Subscribe(fn func(Message)) notify.Subscription {
	return b.subs.Subscribe(fn)
}

// Unsubscribe removes a subscription.
func (b *Bridge) Unsubscribe(s notify.Subscription) bool {
	return b.subs.Unsubscribe(s)
}

// Roots returns the workspace roots.
func (b *Bridge) Roots() []string {
	return append([]string(nil), b.roots...)
}

// Snapshot returns the current state as three messages without reloading,
// for clients that connect after the last notification.
func (b *Bridge) Snapshot() []Message {
	return []Message{
		TasksUpdated(b.tasks.Current()),
		PlansUpdated(b.plans.Current()),
		WorkspaceFoldersUpdated(b.Folders()),
	}
}

// Folders lists the workspace folders.
func (b *Bridge) Folders() []workspace.Folder {
	return b.lister.List(b.roots, b.maxDepth)
}

// Handle executes cmd and returns the reply message. Request commands also
// publish their result to subscribers.
func (b *Bridge) Handle(ctx context.Context, cmd Command) (*Message, error) {
	switch cmd.Type {
	case CmdRequestTasks:
		// Refresh notifies the aggregator's subscribers, which republishes.
		tasks, err := b.tasks.Refresh(ctx)
		if err != nil {
			return nil, err
		}
		msg := TasksUpdated(tasks)
		return &msg, nil

	case CmdRequestPlans:
		plans, err := b.plans.Refresh(ctx)
		if err != nil {
			return nil, err
		}
		msg := PlansUpdated(plans)
		return &msg, nil

	case CmdRequestWorkspaceFolders:
		msg := WorkspaceFoldersUpdated(b.Folders())
		b.subs.Notify(msg)
		return &msg, nil

	case CmdOpenTaskFile, CmdOpenPlanFile:
		path, err := requirePath("filePath", cmd.FilePath)
		if err != nil {
			return nil, err
		}
		if err := b.opener.Open(ctx, path); err != nil {
			return nil, err
		}
		b.logger.Debug("opened file", slog.String("command", cmd.Type), slog.String("path", path))
		return &Message{Type: TypeFileOpened, Path: path}, nil

	case CmdCopyPlanToFolder:
		src, err := requirePath("sourcePath", cmd.SourcePath)
		if err != nil {
			return nil, err
		}
		dst, err := requirePath("targetFolderPath", cmd.TargetFolderPath)
		if err != nil {
			return nil, err
		}
		return b.copyPlan(ctx, src, dst)

	case CmdCopyPlanToProject:
		src, err := requirePath("sourcePath", cmd.SourcePath)
		if err != nil {
			return nil, err
		}
		if len(b.roots) == 0 {
			return nil, werrors.New(werrors.ErrCodeInvalidPath, "no workspace folder is open", nil).
				WithSuggestion("Configure workspace.roots or pass a folder argument")
		}
		return b.copyPlan(ctx, src, b.roots[0])

	case CmdSearchPlans:
		return &Message{
			Type:  TypePlanSearchResults,
			Query: cmd.Query,
			Plans: b.plans.Search(cmd.Query),
		}, nil

	case CmdRequestPlanContent:
		if strings.TrimSpace(cmd.PlanID) == "" {
			return nil, werrors.ValidationError("planId is required", nil)
		}
		p, ok := b.plans.Get(cmd.PlanID)
		if !ok {
			return nil, werrors.New(werrors.ErrCodeNotFound, "plan not found: "+cmd.PlanID, nil)
		}
		return &Message{Type: TypePlanContent, Plan: &p}, nil

	default:
		return nil, werrors.New(werrors.ErrCodeUnknownCommand, "unknown command type: "+cmd.Type, nil)
	}
}

func (b *Bridge) copyPlan(ctx context.Context, src, dstDir string) (*Message, error) {
	written, err := b.copier.Copy(ctx, src, dstDir)
	if err != nil {
		return nil, err
	}
	b.logger.Info("plan copied", slog.String("source", src), slog.String("target", written))
	return &Message{Type: TypePlanCopied, Path: written}, nil
}

// requirePath checks that a command path is present and absolute.
func requirePath(field, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", werrors.ValidationError(field+" is required", nil)
	}
	if !filepath.IsAbs(p) {
		return "", werrors.New(werrors.ErrCodeInvalidPath, field+" must be absolute: "+p, nil)
	}
	return filepath.Clean(p), nil
}
