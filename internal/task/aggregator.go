package task

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/Chili6666/iclaude-workbench/internal/notify"
	"github.com/Chili6666/iclaude-workbench/internal/scanner"
	"github.com/Chili6666/iclaude-workbench/internal/watcher"
)

// FileSuffix selects task files inside a session directory.
const FileSuffix = ".json"

// ErrAlreadyStarted is returned by a second Start call.
var ErrAlreadyStarted = errors.New("task aggregator already started")

// Config configures an Aggregator.
type Config struct {
	// Root is the tasks root containing one directory per session.
	Root string

	// DebounceWindow delays reloads after the last change notification.
	// Default: watcher.DefaultOptions().DebounceWindow
	DebounceWindow time.Duration

	// FullRebuild closes and reopens every watch after each reload instead
	// of reconciling the watch set.
	FullRebuild bool
}

// Stats describes the aggregator's last reload.
type Stats struct {
	Root         string    `json:"root"`
	Sessions     int       `json:"sessions"`
	Tasks        int       `json:"tasks"`
	Skipped      int       `json:"skipped"`
	Reloads      uint64    `json:"reloads"`
	DroppedFires uint64    `json:"droppedFires"`
	Watched      int       `json:"watched"`
	LastReload   time.Time `json:"lastReload"`
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger. Default: slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

// WithScanner sets the directory scanner. Default: scanner.New(nil, logger)
func WithScanner(s *scanner.Scanner) Option {
	return func(a *Aggregator) { a.scanner = s }
}

// Aggregator maintains the current task list for a tasks root and notifies
// subscribers after every reload.
//
// Subscribers run synchronously on the reloading goroutine and must not call
// Refresh or Close on the same aggregator.
type Aggregator struct {
	root        string
	fullRebuild bool
	scanner     *scanner.Scanner
	logger      *slog.Logger
	subs        *notify.Registry[[]Task]
	debouncer   *watcher.Debouncer
	watches     *watcher.WatchSet

	// reloadMu serializes load, replace, notify and watch maintenance.
	reloadMu sync.Mutex
	baseCtx  context.Context
	started  bool
	closed   bool

	snapMu   sync.RWMutex
	snapshot []Task
	sessions []string
	stats    Stats
}

type loadResult struct {
	tasks       []Task
	sessions    []string
	sessionDirs []string
	skipped     int
}

// NewAggregator creates an aggregator over cfg.Root. It does not touch the
// filesystem until Start or LoadAll.
func NewAggregator(cfg Config, backend watcher.Backend, opts ...Option) *Aggregator {
	a := &Aggregator{
		root:        cfg.Root,
		fullRebuild: cfg.FullRebuild,
		subs:        notify.NewCloningRegistry(CloneAll),
		baseCtx:     context.Background(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.scanner == nil {
		a.scanner = scanner.New(nil, a.logger)
	}

	window := cfg.DebounceWindow
	if window <= 0 {
		window = watcher.DefaultOptions().DebounceWindow
	}
	a.debouncer = watcher.NewDebouncer(window, a.onDebounced, watcher.WithReentrancyGuard())
	a.watches = watcher.NewWatchSet(backend, a.debouncer.Schedule, a.logger)
	a.stats.Root = cfg.Root
	return a
}

// Root returns the tasks root.
func (a *Aggregator) Root() string {
	return a.root
}

// Start loads the initial snapshot and watches the root and every existing
// session directory. Subscribers are not notified for the initial load.
// ctx bounds watch-triggered reloads for the aggregator's lifetime.
func (a *Aggregator) Start(ctx context.Context) error {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()

	if a.started {
		return ErrAlreadyStarted
	}
	res, err := a.load(ctx)
	if err != nil {
		return err
	}
	a.baseCtx = ctx
	a.started = true
	a.replace(res)

	a.watches.Watch(a.root)
	for _, dir := range res.sessionDirs {
		a.watches.Watch(dir)
	}
	a.setWatched()

	a.logger.Info("task aggregator started",
		slog.String("root", a.root),
		slog.Int("sessions", len(res.sessions)),
		slog.Int("tasks", len(res.tasks)),
		slog.Int("watched", a.watches.Len()))
	return nil
}

// LoadAll scans the tasks root and returns the deduplicated task list. A
// missing root yields an empty list. The only error is ctx's.
func (a *Aggregator) LoadAll(ctx context.Context) ([]Task, error) {
	res, err := a.load(ctx)
	if err != nil {
		return nil, err
	}
	return res.tasks, nil
}

// Subscribe registers fn to receive the full task list after every reload.
func (a *Aggregator) Subscribe(fn func([]Task)) notify.Subscription {
	return a.subs.Subscribe(fn)
}

// Unsubscribe removes a subscription.
func (a *Aggregator) Unsubscribe(s notify.Subscription) bool {
	return a.subs.Unsubscribe(s)
}

// Current returns a copy of the last snapshot without reloading.
func (a *Aggregator) Current() []Task {
	a.snapMu.RLock()
	defer a.snapMu.RUnlock()
	return CloneAll(a.snapshot)
}

// Sessions returns the session ids seen by the last reload, in scan order.
func (a *Aggregator) Sessions() []string {
	a.snapMu.RLock()
	defer a.snapMu.RUnlock()
	return append([]string(nil), a.sessions...)
}

// Stats returns reload statistics.
func (a *Aggregator) Stats() Stats {
	a.snapMu.RLock()
	s := a.stats
	a.snapMu.RUnlock()

	s.DroppedFires = a.debouncer.Dropped()
	return s
}

// Refresh forces a reload, notifies subscribers and returns the new
// snapshot.
func (a *Aggregator) Refresh(ctx context.Context) ([]Task, error) {
	return a.reload(ctx)
}

// Close stops watching and drops every subscriber. A reload in progress is
// allowed to finish first. Safe to call multiple times.
func (a *Aggregator) Close() error {
	a.debouncer.Stop()

	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.watches.CloseAll()
	a.subs.Clear()
	return nil
}

func (a *Aggregator) onDebounced() {
	a.reloadMu.Lock()
	ctx := a.baseCtx
	a.reloadMu.Unlock()

	if _, err := a.reload(ctx); err != nil {
		a.logger.Debug("task reload abandoned", slog.String("error", err.Error()))
	}
}

func (a *Aggregator) reload(ctx context.Context) ([]Task, error) {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()

	if a.closed {
		return a.Current(), nil
	}

	res, err := a.load(ctx)
	if err != nil {
		return nil, err
	}
	a.replace(res)
	a.subs.Notify(res.tasks)

	paths := append([]string{a.root}, res.sessionDirs...)
	if a.fullRebuild {
		a.watches.RebuildAll(paths)
	} else {
		a.watches.Reconcile(paths)
	}
	a.setWatched()

	a.logger.Debug("tasks reloaded",
		slog.Int("sessions", len(res.sessions)),
		slog.Int("tasks", len(res.tasks)),
		slog.Int("skipped", res.skipped))
	return CloneAll(res.tasks), nil
}

// load scans every session directory. Duplicate (session, id) pairs keep the
// last scanned record at the position of the first.
func (a *Aggregator) load(ctx context.Context) (loadResult, error) {
	var res loadResult
	index := make(map[Key]int)

	for _, session := range a.scanner.Dirs(a.root) {
		if err := ctx.Err(); err != nil {
			return loadResult{}, err
		}
		res.sessions = append(res.sessions, session.Name)
		res.sessionDirs = append(res.sessionDirs, session.Path)

		for _, file := range a.scanner.List(session.Path, FileSuffix).Files {
			t, ok := a.parseFile(file.Path, session.Name)
			if !ok {
				res.skipped++
				continue
			}
			if i, dup := index[t.Key()]; dup {
				res.tasks[i] = t
				continue
			}
			index[t.Key()] = len(res.tasks)
			res.tasks = append(res.tasks, t)
		}
	}
	if res.tasks == nil {
		res.tasks = []Task{}
	}
	return res, nil
}

func (a *Aggregator) parseFile(path, sessionID string) (Task, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		a.logger.Warn("skipping task file",
			slog.String("path", path),
			slog.String("reason", "unreadable"),
			slog.String("error", err.Error()))
		return Task{}, false
	}
	t, err := ParseTask(data, sessionID, path)
	if err != nil {
		a.logger.Warn("skipping task file",
			slog.String("path", path),
			slog.String("reason", err.Error()))
		return Task{}, false
	}
	return t, true
}

func (a *Aggregator) replace(res loadResult) {
	a.snapMu.Lock()
	defer a.snapMu.Unlock()

	a.snapshot = res.tasks
	a.sessions = res.sessions
	a.stats.Sessions = len(res.sessions)
	a.stats.Tasks = len(res.tasks)
	a.stats.Skipped = res.skipped
	a.stats.Reloads++
	a.stats.LastReload = time.Now()
}

func (a *Aggregator) setWatched() {
	n := a.watches.Len()
	a.snapMu.Lock()
	a.stats.Watched = n
	a.snapMu.Unlock()
}
