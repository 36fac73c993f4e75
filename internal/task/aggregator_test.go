package task

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chili6666/iclaude-workbench/internal/watcher"
	"github.com/Chili6666/iclaude-workbench/internal/watcher/watchertest"
)

const testWindow = 10 * time.Millisecond

func writeTask(t *testing.T, root, session, file, body string) string {
	t.Helper()
	dir := filepath.Join(root, session)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, file)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func newTestAggregator(t *testing.T, root string) (*Aggregator, *watchertest.Backend) {
	t.Helper()
	backend := watchertest.New()
	a := NewAggregator(Config{Root: root, DebounceWindow: testWindow}, backend)
	t.Cleanup(func() { _ = a.Close() })
	return a, backend
}

// recorder collects notifications.
type recorder struct {
	mu    sync.Mutex
	calls [][]Task
}

func (r *recorder) record(tasks []Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, tasks)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recorder) last() []Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return nil
	}
	return r.calls[len(r.calls)-1]
}

func TestLoadAll_SameIDAcrossSessions_KeepsBoth(t *testing.T) {
	// Given: two sessions that both contain id "1"
	root := t.TempDir()
	writeTask(t, root, "sess-a", "1.json", `{"id":"1","subject":"from a"}`)
	writeTask(t, root, "sess-b", "1.json", `{"id":"1","subject":"from b"}`)
	a, _ := newTestAggregator(t, root)

	// When: loading
	tasks, err := a.LoadAll(context.Background())

	// Then: both are present, keyed by session
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, Key{SessionID: "sess-a", ID: "1"}, tasks[0].Key())
	assert.Equal(t, "from a", tasks[0].Subject)
	assert.Equal(t, Key{SessionID: "sess-b", ID: "1"}, tasks[1].Key())
	assert.Equal(t, "from b", tasks[1].Subject)
}

func TestLoadAll_SameIDWithinSession_LastScannedWins(t *testing.T) {
	// Given: one session with two files claiming id "1" and one other task
	root := t.TempDir()
	writeTask(t, root, "sess", "a.json", `{"id":"1","subject":"first"}`)
	writeTask(t, root, "sess", "b.json", `{"id":"2","subject":"other"}`)
	writeTask(t, root, "sess", "c.json", `{"id":"1","subject":"second"}`)
	a, _ := newTestAggregator(t, root)

	// When: loading
	tasks, err := a.LoadAll(context.Background())

	// Then: one entry for the key, taken from the file scanned last
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "second", tasks[0].Subject)
	assert.Equal(t, filepath.Join(root, "sess", "c.json"), tasks[0].FilePath)
	assert.Equal(t, "other", tasks[1].Subject)
}

func TestLoadAll_SkipsInvalidKeepsSiblings(t *testing.T) {
	// Given: a missing-id file, a broken file and a valid file side by side
	root := t.TempDir()
	writeTask(t, root, "sess", "1.json", `{"subject":"x"}`)
	writeTask(t, root, "sess", "2.json", `{"id":"2",`)
	writeTask(t, root, "sess", "3.json", `{"id":"3","status":"done"}`)
	writeTask(t, root, "sess", "notes.txt", `{"id":"4"}`)
	a, _ := newTestAggregator(t, root)

	// When: loading
	tasks, err := a.LoadAll(context.Background())

	// Then: only the valid task remains, with coerced status
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "3", tasks[0].ID)
	assert.Equal(t, StatusPending, tasks[0].Status)
	assert.Equal(t, "sess", tasks[0].SessionID)
}

func TestLoadAll_MissingRoot_Empty(t *testing.T) {
	a, _ := newTestAggregator(t, filepath.Join(t.TempDir(), "missing"))

	tasks, err := a.LoadAll(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, tasks)
	assert.Empty(t, tasks)
}

func TestLoadAll_IgnoresHiddenAndDenylistedSessions(t *testing.T) {
	root := t.TempDir()
	writeTask(t, root, ".tmp", "1.json", `{"id":"1"}`)
	writeTask(t, root, "node_modules", "1.json", `{"id":"1"}`)
	writeTask(t, root, "sess", "1.json", `{"id":"1"}`)
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.json"), []byte(`{"id":"9"}`), 0o644))
	a, _ := newTestAggregator(t, root)

	tasks, err := a.LoadAll(context.Background())

	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "sess", tasks[0].SessionID)
}

func TestLoadAll_CancelledContext(t *testing.T) {
	root := t.TempDir()
	writeTask(t, root, "sess", "1.json", `{"id":"1"}`)
	a, _ := newTestAggregator(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.LoadAll(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestStart_WatchesRootAndSessions(t *testing.T) {
	// Given: a root with two sessions
	root := t.TempDir()
	writeTask(t, root, "s1", "1.json", `{"id":"1"}`)
	writeTask(t, root, "s2", "1.json", `{"id":"1"}`)
	a, backend := newTestAggregator(t, root)
	rec := &recorder{}
	a.Subscribe(rec.record)

	// When: started
	require.NoError(t, a.Start(context.Background()))

	// Then: the snapshot is populated without a notification
	assert.Len(t, a.Current(), 2)
	assert.Equal(t, 0, rec.count())
	assert.Equal(t, []string{root, filepath.Join(root, "s1"), filepath.Join(root, "s2")}, backend.Open())
	assert.Equal(t, []string{"s1", "s2"}, a.Sessions())
	assert.ErrorIs(t, a.Start(context.Background()), ErrAlreadyStarted)
}

func TestWatchTriggeredReload_NotifiesAndWatchesNewSession(t *testing.T) {
	// Given: a started aggregator with one session
	root := t.TempDir()
	writeTask(t, root, "s1", "1.json", `{"id":"1"}`)
	a, backend := newTestAggregator(t, root)
	rec := &recorder{}
	a.Subscribe(rec.record)
	require.NoError(t, a.Start(context.Background()))

	// When: a new session appears and the root watch fires
	writeTask(t, root, "s2", "1.json", `{"id":"1","subject":"new"}`)
	backend.Fire(root)

	// Then: subscribers get the full new list and s2 becomes watched
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, rec.last(), 2)
	assert.Len(t, a.Current(), 2)
	require.Eventually(t, func() bool {
		return len(backend.Open()) == 3
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, backend.Open(), filepath.Join(root, "s2"))
}

func TestWatchTriggeredReload_RemovedSessionStopsBeingWatched(t *testing.T) {
	root := t.TempDir()
	writeTask(t, root, "s1", "1.json", `{"id":"1"}`)
	writeTask(t, root, "s2", "1.json", `{"id":"1"}`)
	a, backend := newTestAggregator(t, root)
	rec := &recorder{}
	a.Subscribe(rec.record)
	require.NoError(t, a.Start(context.Background()))

	require.NoError(t, os.RemoveAll(filepath.Join(root, "s2")))
	backend.Kill(filepath.Join(root, "s2"))
	backend.Fire(root)

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, rec.last(), 1)
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{root, filepath.Join(root, "s1")}, backend.Open())
	}, time.Second, 5*time.Millisecond)
}

func TestWatchTriggeredReload_BurstCoalesces(t *testing.T) {
	// Given: a started aggregator
	root := t.TempDir()
	writeTask(t, root, "s1", "1.json", `{"id":"1"}`)
	backend := watchertest.New()
	a := NewAggregator(Config{Root: root, DebounceWindow: 50 * time.Millisecond}, backend)
	defer a.Close()
	rec := &recorder{}
	a.Subscribe(rec.record)
	require.NoError(t, a.Start(context.Background()))

	// When: many notifications arrive within the window
	for i := 0; i < 10; i++ {
		backend.Fire(filepath.Join(root, "s1"))
		time.Sleep(2 * time.Millisecond)
	}

	// Then: exactly one reload happens
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestRefresh_NotifiesSubscribersInOrder(t *testing.T) {
	root := t.TempDir()
	writeTask(t, root, "s1", "1.json", `{"id":"1"}`)
	a, _ := newTestAggregator(t, root)
	require.NoError(t, a.Start(context.Background()))

	var order []string
	a.Subscribe(func([]Task) { order = append(order, "first") })
	s := a.Subscribe(func([]Task) { order = append(order, "second") })
	a.Subscribe(func([]Task) { order = append(order, "third") })

	tasks, err := a.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
	assert.Equal(t, []string{"first", "second", "third"}, order)

	assert.True(t, a.Unsubscribe(s))
	order = nil
	_, err = a.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "third"}, order)
}

func TestRefresh_RootCreatedAfterStart_StartsWatching(t *testing.T) {
	// Given: an aggregator started before the root exists
	root := filepath.Join(t.TempDir(), "tasks")
	backend := watchertest.New()
	backend.FailOn(root)
	a := NewAggregator(Config{Root: root, DebounceWindow: testWindow}, backend)
	defer a.Close()
	require.NoError(t, a.Start(context.Background()))
	assert.Empty(t, backend.Open())

	// When: the root appears and a refresh is forced
	writeTask(t, root, "s1", "1.json", `{"id":"1"}`)
	tasks, err := a.Refresh(context.Background())

	// Then: the session is loaded and watched even though the root watch fails
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
	assert.Equal(t, []string{filepath.Join(root, "s1")}, backend.Open())
}

func TestCurrent_ReturnsCopy(t *testing.T) {
	// Given: a task with nested metadata and dependency lists
	root := t.TempDir()
	writeTask(t, root, "s1", "1.json",
		`{"id":"1","subject":"orig","metadata":{"k":"v","nested":{"n":1},"list":["a"]},"blocks":["2"],"blockedBy":["0"]}`)
	a, _ := newTestAggregator(t, root)
	require.NoError(t, a.Start(context.Background()))

	// When: the caller edits every field of the returned snapshot
	got := a.Current()
	got[0].Subject = "mutated"
	got[0].Metadata["k"] = "mutated"
	got[0].Metadata["nested"].(map[string]any)["n"] = 2
	got[0].Metadata["list"].([]any)[0] = "z"
	got[0].Blocks[0] = "X"
	got[0].BlockedBy[0] = "Y"

	// Then: the aggregator's snapshot is unchanged
	cur := a.Current()[0]
	assert.Equal(t, "orig", cur.Subject)
	assert.Equal(t, "v", cur.Metadata["k"])
	assert.Equal(t, map[string]any{"n": float64(1)}, cur.Metadata["nested"])
	assert.Equal(t, []any{"a"}, cur.Metadata["list"])
	assert.Equal(t, []string{"2"}, cur.Blocks)
	assert.Equal(t, []string{"0"}, cur.BlockedBy)
}

func TestRefresh_SubscribersGetIndependentCopies(t *testing.T) {
	// Given: a subscriber that rewrites the list it receives
	root := t.TempDir()
	writeTask(t, root, "s1", "1.json", `{"id":"1","metadata":{"k":"v"},"blocks":["2"]}`)
	writeTask(t, root, "s1", "2.json", `{"id":"2"}`)
	a, _ := newTestAggregator(t, root)
	require.NoError(t, a.Start(context.Background()))

	a.Subscribe(func(tasks []Task) {
		tasks[0].Metadata["k"] = "edited"
		tasks[0].Blocks[0] = "edited"
		tasks[0], tasks[1] = tasks[1], tasks[0]
	})
	rec := &recorder{}
	a.Subscribe(rec.record)

	// When: refreshing
	returned, err := a.Refresh(context.Background())
	require.NoError(t, err)

	// Then: the later subscriber, the caller and the snapshot saw none of it
	for _, tasks := range [][]Task{rec.last(), returned, a.Current()} {
		require.Len(t, tasks, 2)
		assert.Equal(t, "1", tasks[0].ID)
		assert.Equal(t, "v", tasks[0].Metadata["k"])
		assert.Equal(t, []string{"2"}, tasks[0].Blocks)
	}
}

func TestFullRebuild_ReopensEveryWatch(t *testing.T) {
	root := t.TempDir()
	writeTask(t, root, "s1", "1.json", `{"id":"1"}`)
	backend := watchertest.New()
	a := NewAggregator(Config{Root: root, DebounceWindow: testWindow, FullRebuild: true}, backend)
	defer a.Close()
	require.NoError(t, a.Start(context.Background()))
	assert.Equal(t, 2, backend.Opened())

	_, err := a.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, backend.Opened())
	assert.Equal(t, []string{root, filepath.Join(root, "s1")}, backend.Open())
}

func TestClose_StopsWatchingAndNotifying(t *testing.T) {
	root := t.TempDir()
	writeTask(t, root, "s1", "1.json", `{"id":"1"}`)
	a, backend := newTestAggregator(t, root)
	rec := &recorder{}
	a.Subscribe(rec.record)
	require.NoError(t, a.Start(context.Background()))

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	backend.Fire(root)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 0, rec.count())
	assert.Empty(t, backend.Open())
}

func TestStats(t *testing.T) {
	root := t.TempDir()
	writeTask(t, root, "s1", "1.json", `{"id":"1"}`)
	writeTask(t, root, "s1", "2.json", `broken`)
	a, _ := newTestAggregator(t, root)
	require.NoError(t, a.Start(context.Background()))

	s := a.Stats()

	assert.Equal(t, root, s.Root)
	assert.Equal(t, 1, s.Sessions)
	assert.Equal(t, 1, s.Tasks)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 2, s.Watched)
	assert.Equal(t, uint64(1), s.Reloads)
	assert.False(t, s.LastReload.IsZero())
}

func TestAggregator_WithPollingBackend(t *testing.T) {
	// Given: an aggregator on a real polling backend
	root := t.TempDir()
	writeTask(t, root, "s1", "1.json", `{"id":"1","status":"pending"}`)
	backend := watcher.NewPollingBackend(20*time.Millisecond, nil)
	defer backend.Close()
	a := NewAggregator(Config{Root: root, DebounceWindow: testWindow}, backend)
	defer a.Close()
	rec := &recorder{}
	a.Subscribe(rec.record)
	require.NoError(t, a.Start(context.Background()))

	// When: a task is added to the existing session
	writeTask(t, root, "s1", "2.json", `{"id":"2","status":"completed"}`)

	// Then: the change is picked up without a manual refresh
	require.Eventually(t, func() bool {
		last := rec.last()
		return len(last) == 2
	}, 3*time.Second, 10*time.Millisecond)
}
