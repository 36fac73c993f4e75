package plan

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Chili6666/iclaude-workbench/internal/notify"
	"github.com/Chili6666/iclaude-workbench/internal/scanner"
	"github.com/Chili6666/iclaude-workbench/internal/watcher"
)

// ErrAlreadyStarted is returned by a second Start call.
var ErrAlreadyStarted = errors.New("plan aggregator already started")

// Config configures an Aggregator.
type Config struct {
	// Root is the plans directory.
	Root string

	// DebounceWindow delays reloads after the last change notification.
	// Default: watcher.DefaultOptions().DebounceWindow
	DebounceWindow time.Duration
}

// Stats describes the aggregator's last reload.
type Stats struct {
	Root       string    `json:"root"`
	Plans      int       `json:"plans"`
	Skipped    int       `json:"skipped"`
	Reloads    uint64    `json:"reloads"`
	Watching   bool      `json:"watching"`
	LastReload time.Time `json:"lastReload"`
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

// Aggregator maintains the current plan list for a plans directory.
//
// Subscribers run synchronously on the reloading goroutine and must not call
// Refresh or Close on the same aggregator.
type Aggregator struct {
	root      string
	scanner   *scanner.Scanner
	logger    *slog.Logger
	subs      *notify.Registry[[]Plan]
	debouncer *watcher.Debouncer
	watches   *watcher.WatchSet

	reloadMu sync.Mutex
	baseCtx  context.Context
	started  bool
	closed   bool

	snapMu   sync.RWMutex
	snapshot []Plan
	stats    Stats
}

// NewAggregator creates an aggregator over cfg.Root.
func NewAggregator(cfg Config, backend watcher.Backend, opts ...Option) *Aggregator {
	a := &Aggregator{
		root:    cfg.Root,
		subs:    notify.NewCloningRegistry(clonePlans),
		baseCtx: context.Background(),
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
	a.debouncer = watcher.NewDebouncer(window, a.onDebounced)
	a.watches = watcher.NewWatchSet(backend, a.debouncer.Schedule, a.logger)
	a.stats.Root = cfg.Root
	return a
}

// Root returns the plans directory.
func (a *Aggregator) Root() string {
	return a.root
}

// Start loads the initial snapshot and watches the plans directory.
// Subscribers are not notified for the initial load.
func (a *Aggregator) Start(ctx context.Context) error {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()

	if a.started {
		return ErrAlreadyStarted
	}
	plans, skipped, err := a.load(ctx)
	if err != nil {
		return err
	}
	a.baseCtx = ctx
	a.started = true
	a.replace(plans, skipped)
	a.watchRoot()

	a.logger.Info("plan aggregator started",
		slog.String("root", a.root),
		slog.Int("plans", len(plans)))
	return nil
}

// LoadAll returns every plan in the directory, most recently modified first.
// A missing directory yields an empty list. The only error is ctx's.
func (a *Aggregator) LoadAll(ctx context.Context) ([]Plan, error) {
	plans, _, err := a.load(ctx)
	return plans, err
}

// Subscribe registers fn to receive the full plan list after every reload.
func (a *Aggregator) Subscribe(fn func([]Plan)) notify.Subscription {
	return a.subs.Subscribe(fn)
}

// Unsubscribe removes a subscription.
func (a *Aggregator) Unsubscribe(s notify.Subscription) bool {
	return a.subs.Unsubscribe(s)
}

// Current returns a copy of the last snapshot without reloading.
func (a *Aggregator) Current() []Plan {
	a.snapMu.RLock()
	defer a.snapMu.RUnlock()
	return clonePlans(a.snapshot)
}

// Search returns the current plans whose title or content contains query,
// ignoring case. A blank query returns every plan.
func (a *Aggregator) Search(query string) []Plan {
	current := a.Current()
	if strings.TrimSpace(query) == "" {
		return current
	}
	out := make([]Plan, 0, len(current))
	for _, p := range current {
		if p.Matches(query) {
			out = append(out, p)
		}
	}
	return out
}

// Get returns the current plan with the given id.
func (a *Aggregator) Get(id string) (Plan, bool) {
	a.snapMu.RLock()
	defer a.snapMu.RUnlock()
	for _, p := range a.snapshot {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// Content returns the text of the current plan with the given id.
func (a *Aggregator) Content(id string) (string, bool) {
	p, ok := a.Get(id)
	return p.Content, ok
}

// Stats returns reload statistics.
func (a *Aggregator) Stats() Stats {
	a.snapMu.RLock()
	defer a.snapMu.RUnlock()
	return a.stats
}

// Refresh forces a reload, notifies subscribers and returns the new
// snapshot.
func (a *Aggregator) Refresh(ctx context.Context) ([]Plan, error) {
	return a.reload(ctx)
}

// Close stops watching and drops every subscriber. Safe to call multiple
// times.
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
		a.logger.Debug("plan reload abandoned", slog.String("error", err.Error()))
	}
}

func (a *Aggregator) reload(ctx context.Context) ([]Plan, error) {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()

	if a.closed {
		return a.Current(), nil
	}

	plans, skipped, err := a.load(ctx)
	if err != nil {
		return nil, err
	}
	a.replace(plans, skipped)
	a.subs.Notify(plans)
	// Directory may have been created or replaced since the last watch.
	a.watchRoot()

	a.logger.Debug("plans reloaded",
		slog.Int("plans", len(plans)),
		slog.Int("skipped", skipped))
	return clonePlans(plans), nil
}

func (a *Aggregator) load(ctx context.Context) ([]Plan, int, error) {
	files := a.scanner.List(a.root, FileSuffix).Files
	plans := make([]Plan, 0, len(files))
	skipped := 0

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		p, err := ParsePlan(f.Path)
		if err != nil {
			a.logger.Warn("skipping plan file",
				slog.String("path", f.Path),
				slog.String("error", err.Error()))
			skipped++
			continue
		}
		plans = append(plans, p)
	}

	sort.SliceStable(plans, func(i, j int) bool {
		return plans[i].ModifiedAt > plans[j].ModifiedAt
	})
	return plans, skipped, nil
}

func (a *Aggregator) watchRoot() {
	a.watches.Reconcile([]string{a.root})
	watching := a.watches.Len() == 1

	a.snapMu.Lock()
	a.stats.Watching = watching
	a.snapMu.Unlock()
}

func (a *Aggregator) replace(plans []Plan, skipped int) {
	a.snapMu.Lock()
	defer a.snapMu.Unlock()

	a.snapshot = plans
	a.stats.Plans = len(plans)
	a.stats.Skipped = skipped
	a.stats.Reloads++
	a.stats.LastReload = time.Now()
}

// Plan holds no references, so a flat copy is a deep one.
func clonePlans(plans []Plan) []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}
