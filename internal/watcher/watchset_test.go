package watcher_test

import (
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Chili6666/iclaude-workbench/internal/watcher"
	"github.com/Chili6666/iclaude-workbench/internal/watcher/watchertest"
)

func TestWatchSet_Watch_SharedCallback(t *testing.T) {
	// Given: a watch set over two directories
	backend := watchertest.New()
	var calls atomic.Int32
	set := watcher.NewWatchSet(backend, func() { calls.Add(1) }, nil)
	set.Watch("/root/a")
	set.Watch("/root/b")

	// When: both directories change
	backend.Fire("/root/a")
	backend.Fire("/root/b")

	// Then: the shared callback ran for each
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []string{"/root/a", "/root/b"}, set.Paths())
}

func TestWatchSet_Watch_FailureIsIgnored(t *testing.T) {
	// Given: a backend that refuses one path
	backend := watchertest.New()
	backend.FailOn("/root/locked")
	set := watcher.NewWatchSet(backend, func() {}, nil)

	// When: watching it and a healthy sibling
	ok := set.Watch("/root/locked")
	set.Watch("/root/open")

	// Then: only the healthy path is held
	assert.False(t, ok)
	assert.Equal(t, []string{"/root/open"}, set.Paths())
}

func TestWatchSet_Watch_SamePathTwice_SingleHandle(t *testing.T) {
	backend := watchertest.New()
	set := watcher.NewWatchSet(backend, func() {}, nil)

	set.Watch("/root/a")
	set.Watch(filepath.Join("/root", "a", "."))

	assert.Equal(t, 1, set.Len())
	assert.Equal(t, 1, backend.Opened())
}

func TestWatchSet_RebuildAll_ReopensEverything(t *testing.T) {
	// Given: a set holding two paths
	backend := watchertest.New()
	set := watcher.NewWatchSet(backend, func() {}, nil)
	set.RebuildAll([]string{"/root", "/root/s1"})
	assert.Equal(t, 2, backend.Opened())

	// When: rebuilt with an overlapping list
	set.RebuildAll([]string{"/root", "/root/s2"})

	// Then: every handle was closed and recreated
	assert.Equal(t, 4, backend.Opened())
	assert.Equal(t, []string{"/root", "/root/s2"}, backend.Open())
}

func TestWatchSet_Reconcile_OnlyChurnsDifferences(t *testing.T) {
	// Given: a set holding root and two sessions
	backend := watchertest.New()
	set := watcher.NewWatchSet(backend, func() {}, nil)
	set.Reconcile([]string{"/root", "/root/s1", "/root/s2"})
	assert.Equal(t, 3, backend.Opened())

	// When: s1 disappears and s3 appears
	set.Reconcile([]string{"/root", "/root/s2", "/root/s3"})

	// Then: only s3 is newly opened and s1 is released
	assert.Equal(t, 4, backend.Opened())
	assert.Equal(t, []string{"/root", "/root/s2", "/root/s3"}, backend.Open())
	assert.Equal(t, []string{"/root", "/root/s2", "/root/s3"}, set.Paths())
}

func TestWatchSet_Reconcile_ReplacesDeadHandles(t *testing.T) {
	// Given: a held path whose directory was removed and recreated
	backend := watchertest.New()
	set := watcher.NewWatchSet(backend, func() {}, nil)
	set.Reconcile([]string{"/root", "/root/s1"})
	backend.Kill("/root/s1")

	// When: reconciled with the same list
	set.Reconcile([]string{"/root", "/root/s1"})

	// Then: the dead handle was replaced
	assert.Equal(t, 3, backend.Opened())
	assert.Equal(t, []string{"/root", "/root/s1"}, backend.Open())
	assert.Equal(t, 1, backend.Fire("/root/s1"))
}

func TestWatchSet_CloseAll_Idempotent(t *testing.T) {
	backend := watchertest.New()
	set := watcher.NewWatchSet(backend, func() {}, nil)
	set.Watch("/root")

	set.CloseAll()
	set.CloseAll()

	assert.Equal(t, 0, set.Len())
	assert.Empty(t, backend.Open())
}
