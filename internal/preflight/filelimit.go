package preflight

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Chili6666/iclaude-workbench/internal/watcher"
)

// MinFileDescriptors is the minimum required file descriptor limit. The
// fsnotify backend holds one descriptor per watched directory on BSD and
// macOS.
const MinFileDescriptors = 256

// MinInotifyWatches is the inotify watch limit below which many concurrent
// sessions can exhaust the budget shared with editors and other tools.
const MinInotifyWatches = 8192

// inotifyWatchesPath is a variable so tests can point it elsewhere.
var inotifyWatchesPath = "/proc/sys/fs/inotify/max_user_watches"

// CheckFileDescriptors checks if the file descriptor limit is sufficient.
func (c *Checker) CheckFileDescriptors() CheckResult {
	result := CheckResult{
		Name:     "file_descriptors",
		Required: true,
	}

	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check file descriptor limit: %v", err)
		return result
	}

	currentLimit := rLimit.Cur

	if currentLimit < MinFileDescriptors {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%d (minimum: %d)", currentLimit, MinFileDescriptors)
		result.Details = "Run 'ulimit -n 10240' to increase the limit"
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d (minimum: %d)", currentLimit, MinFileDescriptors)
	return result
}

// CheckInotifyWatches checks the per-user inotify watch limit on Linux.
func (c *Checker) CheckInotifyWatches() CheckResult {
	result := CheckResult{Name: "inotify_watches"}

	if runtime.GOOS != "linux" {
		result.Status = StatusPass
		result.Message = "not applicable on " + runtime.GOOS
		return result
	}

	data, err := os.ReadFile(inotifyWatchesPath)
	if err != nil {
		result.Status = StatusWarn
		result.Message = "limit unknown: " + err.Error()
		return result
	}
	limit, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("unreadable limit %q", strings.TrimSpace(string(data)))
		return result
	}

	result.Message = fmt.Sprintf("%d (recommended: %d)", limit, MinInotifyWatches)
	if limit < MinInotifyWatches {
		result.Status = StatusWarn
		result.Details = "Run 'sudo sysctl fs.inotify.max_user_watches=524288' to raise the limit"
		return result
	}
	result.Status = StatusPass
	return result
}

// CheckWatchBackend creates the configured backend and watches dir with it
// once. An auto backend that falls back to polling is a warning: changes
// then show up one poll interval late.
func (c *Checker) CheckWatchBackend(backend string, pollInterval time.Duration, dir string) CheckResult {
	result := CheckResult{
		Name:     "watch_backend",
		Required: true,
	}

	b, err := watcher.NewBackend(watcher.Options{Backend: backend, PollInterval: pollInterval})
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}
	defer func() { _ = b.Close() }()

	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		h, err := b.Watch(dir, func() {})
		if err != nil {
			result.Status = StatusFail
			result.Message = fmt.Sprintf("%s cannot watch %s: %v", b.Name(), dir, err)
			return result
		}
		_ = h.Close()
	}

	result.Message = b.Name()
	if b.Name() == watcher.BackendPolling && backend != watcher.BackendPolling {
		result.Status = StatusWarn
		result.Message = "polling (fsnotify unavailable)"
		return result
	}
	result.Status = StatusPass
	return result
}
