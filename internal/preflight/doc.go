// Package preflight runs the environment checks behind 'workbench doctor':
// the tasks and plans roots, the state directory, descriptor and inotify
// limits, the watch backend, and the task files themselves.
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, preflight.Targets{TasksRoot: root})
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
