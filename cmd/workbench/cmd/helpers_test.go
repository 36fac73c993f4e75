package cmd

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testHome is a throwaway home directory with its own .claude tree, user
// config dir and daemon socket.
type testHome struct {
	dir    string
	tasks  string
	plans  string
	socket string
}

func newTestHome(t *testing.T) *testHome {
	t.Helper()

	dir := t.TempDir()
	h := &testHome{
		dir:   dir,
		tasks: filepath.Join(dir, ".claude", "tasks"),
		plans: filepath.Join(dir, ".claude", "plans"),
	}
	require.NoError(t, os.MkdirAll(h.tasks, 0o755))
	require.NoError(t, os.MkdirAll(h.plans, 0o755))

	// Unix socket paths are length limited; t.TempDir can be too deep.
	sockDir, err := os.MkdirTemp("", "wbc")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(sockDir) })
	h.socket = filepath.Join(sockDir, "d.sock")

	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	t.Setenv("WORKBENCH_HOME", dir)
	t.Setenv("WORKBENCH_TASKS_DIR", "")
	t.Setenv("WORKBENCH_PLANS_DIR", "")
	t.Setenv("WORKBENCH_WATCH_BACKEND", "polling")
	t.Setenv("WORKBENCH_SOCKET", h.socket)
	t.Setenv("WORKBENCH_LOG_LEVEL", "")
	t.Setenv("NO_COLOR", "1")

	return h
}

func (h *testHome) writeTask(t *testing.T, session, name, body string) string {
	t.Helper()
	dir := filepath.Join(h.tasks, session)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func (h *testHome) writePlan(t *testing.T, id, content string, modified time.Time) string {
	t.Helper()
	path := filepath.Join(h.plans, id+".md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, modified, modified))
	return path
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	root := NewRootCmd()
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
