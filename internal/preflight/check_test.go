package preflight

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status CheckStatus
		want   string
	}{
		{StatusPass, "PASS"},
		{StatusWarn, "WARN"},
		{StatusFail, "FAIL"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestCheckResult_IsCritical(t *testing.T) {
	tests := []struct {
		name     string
		result   CheckResult
		expected bool
	}{
		{
			name:     "required pass is not critical",
			result:   CheckResult{Status: StatusPass, Required: true},
			expected: false,
		},
		{
			name:     "required fail is critical",
			result:   CheckResult{Status: StatusFail, Required: true},
			expected: true,
		},
		{
			name:     "optional fail is not critical",
			result:   CheckResult{Status: StatusFail, Required: false},
			expected: false,
		},
		{
			name:     "required warn is not critical",
			result:   CheckResult{Status: StatusWarn, Required: true},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.IsCritical())
		})
	}
}

func TestChecker_New(t *testing.T) {
	// Given: default options
	checker := New()

	// Then: checker is created with defaults
	assert.NotNil(t, checker)
	assert.False(t, checker.verbose)
	assert.NotNil(t, checker.scanner)
}

func TestChecker_NewWithOptions(t *testing.T) {
	// Given: custom options
	buf := &bytes.Buffer{}
	checker := New(
		WithVerbose(true),
		WithOutput(buf),
	)

	// Then: options are applied
	assert.True(t, checker.verbose)
	assert.Equal(t, buf, checker.output)
}

func TestChecker_HasCriticalFailures(t *testing.T) {
	checker := New()

	tests := []struct {
		name     string
		results  []CheckResult
		expected bool
	}{
		{
			name:     "no results",
			results:  []CheckResult{},
			expected: false,
		},
		{
			name: "all pass",
			results: []CheckResult{
				{Status: StatusPass, Required: true},
				{Status: StatusPass, Required: true},
			},
			expected: false,
		},
		{
			name: "warning only",
			results: []CheckResult{
				{Status: StatusPass, Required: true},
				{Status: StatusWarn, Required: false},
			},
			expected: false,
		},
		{
			name: "optional failure",
			results: []CheckResult{
				{Status: StatusPass, Required: true},
				{Status: StatusFail, Required: false},
			},
			expected: false,
		},
		{
			name: "required failure",
			results: []CheckResult{
				{Status: StatusPass, Required: true},
				{Status: StatusFail, Required: true},
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, checker.HasCriticalFailures(tt.results))
		})
	}
}

func TestChecker_CheckWritePermissions_Writable(t *testing.T) {
	// Given: a writable directory
	tmpDir := t.TempDir()

	// When: checking write permissions
	checker := New()
	result := checker.CheckWritePermissions(tmpDir)

	// Then: passes
	assert.Equal(t, StatusPass, result.Status)
	assert.Equal(t, "write_permissions", result.Name)
	assert.True(t, result.Required)
}

func TestChecker_CheckWritePermissions_ReadOnly(t *testing.T) {
	// Given: a read-only directory (skip on CI/root)
	if os.Getuid() == 0 {
		t.Skip("Skipping read-only test when running as root")
	}

	tmpDir := t.TempDir()
	readOnlyDir := filepath.Join(tmpDir, "readonly")
	require.NoError(t, os.Mkdir(readOnlyDir, 0555))
	defer func() { _ = os.Chmod(readOnlyDir, 0755) }() // Restore for cleanup

	// When: checking write permissions
	checker := New()
	result := checker.CheckWritePermissions(readOnlyDir)

	// Then: fails
	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "permission denied")
}

func TestChecker_RunAll_ReturnsAllChecks(t *testing.T) {
	// Given: an empty home with no .claude directory yet
	home := t.TempDir()
	checker := New()

	// When: running all checks
	results := checker.RunAll(context.Background(), Targets{
		TasksRoot:    filepath.Join(home, ".claude", "tasks"),
		PlansRoot:    filepath.Join(home, ".claude", "plans"),
		StateDir:     filepath.Join(home, ".iclaude-workbench"),
		WatchBackend: "polling",
		PollInterval: time.Second,
	})

	// Then: every check ran and missing roots are only warnings
	byName := make(map[string]CheckResult)
	for _, r := range results {
		byName[r.Name] = r
	}
	for _, name := range []string{"tasks_root", "plans_root", "write_permissions", "file_descriptors", "inotify_watches", "watch_backend", "task_files"} {
		assert.Contains(t, byName, name)
	}
	assert.Equal(t, StatusWarn, byName["tasks_root"].Status)
	assert.Equal(t, StatusWarn, byName["plans_root"].Status)
	assert.Equal(t, StatusPass, byName["watch_backend"].Status)
	assert.Equal(t, "polling", byName["watch_backend"].Message)
	assert.False(t, checker.HasCriticalFailures(results))
}

func TestChecker_CheckTasksRoot(t *testing.T) {
	// Given: a tasks root with two sessions and a stray file
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "s1"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "s2"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), nil, 0o644))

	// When: checking the root
	result := New().CheckTasksRoot(root)

	// Then: the sessions are counted
	assert.Equal(t, StatusPass, result.Status)
	assert.Contains(t, result.Message, "2 sessions")
}

func TestChecker_CheckPlansRoot_NotADirectory(t *testing.T) {
	// Given: a file where the plans directory should be
	path := filepath.Join(t.TempDir(), "plans")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	// When: checking it
	result := New().CheckPlansRoot(path)

	// Then: the check fails critically
	assert.Equal(t, StatusFail, result.Status)
	assert.True(t, result.IsCritical())
}

func TestChecker_CheckTaskFiles(t *testing.T) {
	// Given: one good, one coerced and one unparsable task file
	root := t.TempDir()
	session := filepath.Join(root, "s1")
	require.NoError(t, os.Mkdir(session, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(session, "1.json"),
		[]byte(`{"id":"1","subject":"Build","status":"pending"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(session, "2.json"),
		[]byte(`{"id":"2","subject":"Test","status":"blocked"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(session, "3.json"),
		[]byte(`{not json`), 0o644))

	// When: linting the root
	result := New().CheckTaskFiles(context.Background(), root)

	// Then: the problems are warnings with per-file details
	assert.Equal(t, StatusWarn, result.Status)
	assert.Equal(t, "3 files: 1 skipped, 1 coerced", result.Message)
	assert.Contains(t, result.Details, "3.json: skipped")
	assert.Contains(t, result.Details, "2.json")
	assert.False(t, result.IsCritical())
}

func TestChecker_CheckTaskFiles_Empty(t *testing.T) {
	result := New().CheckTaskFiles(context.Background(), t.TempDir())
	assert.Equal(t, StatusPass, result.Status)
	assert.Equal(t, "no task files", result.Message)
}

func TestChecker_CheckInotifyWatches(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("inotify is Linux only")
	}

	tests := []struct {
		name    string
		content string
		want    CheckStatus
	}{
		{name: "high limit", content: "524288\n", want: StatusPass},
		{name: "low limit", content: "1024\n", want: StatusWarn},
		{name: "garbage", content: "lots", want: StatusWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a fake limit file
			path := filepath.Join(t.TempDir(), "max_user_watches")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			old := inotifyWatchesPath
			inotifyWatchesPath = path
			defer func() { inotifyWatchesPath = old }()

			// When: checking the limit
			result := New().CheckInotifyWatches()

			// Then: the status matches
			assert.Equal(t, tt.want, result.Status)
		})
	}
}

func TestChecker_CheckWatchBackend_Unknown(t *testing.T) {
	result := New().CheckWatchBackend("kqueue", time.Second, t.TempDir())
	assert.Equal(t, StatusFail, result.Status)
	assert.True(t, result.IsCritical())
}

func TestChecker_PrintResults(t *testing.T) {
	// Given: some check results
	results := []CheckResult{
		{Name: "tasks_root", Status: StatusPass, Message: "3 sessions"},
		{Name: "task_files", Status: StatusWarn, Message: "1 skipped", Details: "a.json: skipped"},
		{Name: "watch_backend", Status: StatusFail, Message: "unknown", Required: true},
	}

	buf := &bytes.Buffer{}
	checker := New(WithOutput(buf), WithVerbose(true))

	// When: printing results
	checker.PrintResults(results)

	// Then: output contains formatted results
	output := buf.String()
	assert.Contains(t, output, "[PASS] tasks_root")
	assert.Contains(t, output, "[WARN]")
	assert.Contains(t, output, "[FAIL]")
	assert.Contains(t, output, "a.json: skipped")
	assert.Contains(t, output, "Status: FAILED")
	assert.Contains(t, output, "1 error(s)")
}

func TestChecker_SummaryStatus(t *testing.T) {
	checker := New()

	tests := []struct {
		name     string
		results  []CheckResult
		expected string
	}{
		{
			name: "all pass",
			results: []CheckResult{
				{Status: StatusPass},
				{Status: StatusPass},
			},
			expected: "ready",
		},
		{
			name: "with warnings",
			results: []CheckResult{
				{Status: StatusPass},
				{Status: StatusWarn},
			},
			expected: "ready_with_warnings",
		},
		{
			name: "with critical failure",
			results: []CheckResult{
				{Status: StatusPass},
				{Status: StatusFail, Required: true},
			},
			expected: "failed",
		},
		{
			name: "with optional failure",
			results: []CheckResult{
				{Status: StatusPass},
				{Status: StatusFail, Required: false},
			},
			expected: "ready_with_warnings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, checker.SummaryStatus(tt.results))
		})
	}
}
