// Package watcher provides non-recursive directory watching, a managed set of
// watch handles, and a debouncer for coalescing bursts of change
// notifications into a single reload.
//
// Two backends implement the Backend interface:
//   - Primary: fsnotify for event-based watching
//   - Fallback: polling for environments where fsnotify fails (network mounts, Docker volumes)
//
// Usage:
//
//	backend, err := watcher.NewBackend(watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer backend.Close()
//
//	d := watcher.NewDebouncer(100*time.Millisecond, reload, watcher.WithReentrancyGuard())
//	set := watcher.NewWatchSet(backend, d.Schedule)
//	set.Watch("/path/to/dir")
//
//	// after each reload
//	set.Reconcile(wantedDirs)
package watcher
