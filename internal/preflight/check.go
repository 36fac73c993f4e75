package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Chili6666/iclaude-workbench/internal/plan"
	"github.com/Chili6666/iclaude-workbench/internal/scanner"
	"github.com/Chili6666/iclaude-workbench/internal/task"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Targets names what RunAll checks.
type Targets struct {
	TasksRoot string
	PlansRoot string
	// StateDir holds the daemon socket, pid file and logs.
	StateDir string
	// WatchBackend is auto, fsnotify or polling.
	WatchBackend string
	PollInterval time.Duration
}

// Checker performs preflight validation checks.
type Checker struct {
	verbose bool
	output  io.Writer
	scanner *scanner.Scanner
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose enables verbose output.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// WithScanner sets the scanner used to read the roots, so the checks see
// what the aggregators see.
func WithScanner(sc *scanner.Scanner) Option {
	return func(c *Checker) {
		c.scanner = sc
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.scanner == nil {
		c.scanner = scanner.New(nil, nil)
	}
	return c
}

// RunAll runs all preflight checks and returns the results.
func (c *Checker) RunAll(ctx context.Context, t Targets) []CheckResult {
	var results []CheckResult

	results = append(results, c.CheckTasksRoot(t.TasksRoot))
	results = append(results, c.CheckPlansRoot(t.PlansRoot))
	if t.StateDir != "" {
		results = append(results, c.CheckWritePermissions(t.StateDir))
	}
	results = append(results, c.CheckFileDescriptors())
	results = append(results, c.CheckInotifyWatches())
	results = append(results, c.CheckWatchBackend(t.WatchBackend, t.PollInterval, t.TasksRoot))
	results = append(results, c.CheckTaskFiles(ctx, t.TasksRoot))

	return results
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns a summary status string for the results.
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	hasCriticalFailure := false

	for _, r := range results {
		if r.IsCritical() {
			hasCriticalFailure = true
		}
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			hasWarnings = true
		}
	}

	if hasCriticalFailure {
		return "failed"
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults prints check results to the configured output.
func (c *Checker) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(c.output, "Workbench System Check")
	_, _ = fmt.Fprintln(c.output, "======================")
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			for _, line := range strings.Split(r.Details, "\n") {
				_, _ = fmt.Fprintf(c.output, "      %s\n", line)
			}
		}
	}

	_, _ = fmt.Fprintln(c.output)
	status := c.SummaryStatus(results)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(status))

	var warnings, errors []string
	for _, r := range results {
		if r.IsCritical() {
			errors = append(errors, r.Name+": "+r.Message)
		} else if r.Status != StatusPass {
			warnings = append(warnings, r.Name+": "+r.Message)
		}
	}

	if len(errors) > 0 {
		_, _ = fmt.Fprintln(c.output)
		_, _ = fmt.Fprintf(c.output, "%d error(s):\n", len(errors))
		for _, e := range errors {
			_, _ = fmt.Fprintf(c.output, "  - %s\n", e)
		}
	}

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(c.output)
		_, _ = fmt.Fprintf(c.output, "%d warning(s):\n", len(warnings))
		for _, w := range warnings {
			_, _ = fmt.Fprintf(c.output, "  - %s\n", w)
		}
	}
}

// CheckTasksRoot checks the tasks root. A missing root is only a warning:
// it appears with the first agent session.
func (c *Checker) CheckTasksRoot(root string) CheckResult {
	result, ok := checkDir("tasks_root", root)
	if !ok {
		return result
	}
	sessions := c.scanner.Dirs(root)
	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d sessions in %s", len(sessions), root)
	return result
}

// CheckPlansRoot checks the plans directory.
func (c *Checker) CheckPlansRoot(root string) CheckResult {
	result, ok := checkDir("plans_root", root)
	if !ok {
		return result
	}
	listing := c.scanner.List(root, plan.FileSuffix)
	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d plans in %s", len(listing.Files), root)
	return result
}

func checkDir(name, path string) (CheckResult, bool) {
	result := CheckResult{Name: name, Required: true}

	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		result.Status = StatusWarn
		result.Message = "not found: " + path
		result.Details = "The directory is created by the first agent session; it is watched once it exists"
		return result, false
	case err != nil:
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot access %s: %v", path, err)
		return result, false
	case !info.IsDir():
		result.Status = StatusFail
		result.Message = "not a directory: " + path
		return result, false
	}
	return result, true
}

// CheckWritePermissions checks that the state directory can be created
// and written.
func (c *Checker) CheckWritePermissions(path string) CheckResult {
	result := CheckResult{
		Name:     "write_permissions",
		Required: true,
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}

	testFile := filepath.Join(path, ".workbench-preflight-test")
	f, err := os.Create(testFile)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(testFile)

	result.Status = StatusPass
	result.Message = "OK"
	return result
}

// CheckTaskFiles lints every task file under root. Skipped and coerced
// files are warnings; the board still shows everything else.
func (c *Checker) CheckTaskFiles(ctx context.Context, root string) CheckResult {
	result := CheckResult{Name: "task_files"}

	linter, err := task.NewLinter()
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}
	lints, err := linter.LintRoot(ctx, c.scanner, root)
	if err != nil {
		result.Status = StatusWarn
		result.Message = "lint interrupted: " + err.Error()
		return result
	}

	var rejected, coerced int
	var details []string
	for _, l := range lints {
		switch {
		case l.Rejected:
			rejected++
			details = append(details, fmt.Sprintf("%s: skipped (%s)", l.File, l.Reason))
		case !l.OK():
			coerced++
			for _, is := range l.Issues {
				details = append(details, fmt.Sprintf("%s: %s %s", l.File, is.Path, is.Message))
			}
		}
	}

	result.Details = strings.Join(details, "\n")
	switch {
	case len(lints) == 0:
		result.Status = StatusPass
		result.Message = "no task files"
	case rejected > 0 || coerced > 0:
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%d files: %d skipped, %d coerced", len(lints), rejected, coerced)
	default:
		result.Status = StatusPass
		result.Message = fmt.Sprintf("%d files OK", len(lints))
	}
	return result
}
