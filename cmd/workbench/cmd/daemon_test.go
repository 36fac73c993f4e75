package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chili6666/iclaude-workbench/internal/bridge"
	"github.com/Chili6666/iclaude-workbench/internal/daemon"
	werrors "github.com/Chili6666/iclaude-workbench/internal/errors"
	"github.com/Chili6666/iclaude-workbench/internal/task"
	"github.com/Chili6666/iclaude-workbench/internal/ui"
	"github.com/Chili6666/iclaude-workbench/pkg/version"
)

// prepared builds a root command for later execution.
func prepared(args ...string) (*cobra.Command, *bytes.Buffer) {
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(new(bytes.Buffer))
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	return root, buf
}

func TestDaemonCmd_Subcommands(t *testing.T) {
	// Given: the daemon command
	cmd := newDaemonCmd()

	// Then: start, stop and status exist
	for _, name := range []string{"start", "stop", "status"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}

	start, _, _ := cmd.Find([]string{"start"})
	assert.NotNil(t, start.Flags().ShorthandLookup("f"))
}

func TestDaemonStatus_NotRunning(t *testing.T) {
	// Given: no daemon on the test socket
	h := newTestHome(t)

	// When: asking for status
	stdout, _, err := execute(t, "daemon", "status")

	// Then: stopped with a start hint
	require.NoError(t, err)
	assert.Contains(t, stdout, "stopped")
	assert.Contains(t, stdout, h.socket)
	assert.Contains(t, stdout, "workbench daemon start")
}

func TestDaemonStatus_NotRunningJSON(t *testing.T) {
	// Given: no daemon on the test socket
	h := newTestHome(t)

	// When: asking for JSON status
	stdout, _, err := execute(t, "daemon", "status", "--json")

	// Then: running is false and the roots are reported
	require.NoError(t, err)
	var info ui.StatusInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.False(t, info.Running)
	assert.Equal(t, h.tasks, info.TasksRoot)
	assert.Equal(t, h.plans, info.PlansRoot)
}

func TestDaemonStop_NotRunning(t *testing.T) {
	// Given: no daemon
	newTestHome(t)

	// When: stopping
	stdout, _, err := execute(t, "daemon", "stop")

	// Then: nothing to do
	require.NoError(t, err)
	assert.Contains(t, stdout, "Daemon is not running")
}

func TestServe_AlreadyLocked(t *testing.T) {
	// Given: another process holds the daemon lock
	h := newTestHome(t)
	dcfg := daemon.DefaultConfig().WithSocket(h.socket)
	lock := daemon.NewLock(dcfg.LockPath)
	require.NoError(t, lock.Acquire())
	defer func() { _ = lock.Release() }()

	// When: serving
	_, _, err := execute(t, "serve", "--no-http")

	// Then: it refuses with the daemon-running code
	require.Error(t, err)
	assert.Equal(t, werrors.ErrCodeDaemonRunning, werrors.CodeOf(err))
}

func TestServe_SharesStateOverSocket(t *testing.T) {
	// Given: seeded files and commands prepared before the daemon starts
	h := newTestHome(t)
	seedTasks(t, h)
	seedPlans(t, h)

	serveCmd, _ := prepared("serve", "--no-http")
	tasksCmd, tasksOut := prepared("tasks", "--json")
	showCmd, _ := prepared("plans", "show", "missing")
	statusCmd, statusOut := prepared("daemon", "status", "--json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- serveCmd.ExecuteContext(ctx) }()

	client := daemon.NewClient(daemon.DefaultConfig().WithSocket(h.socket))
	require.Eventually(t, client.IsRunning, 10*time.Second, 20*time.Millisecond)

	// When: a CLI command runs against the daemon
	require.NoError(t, tasksCmd.Execute())

	// Then: it sees the daemon's snapshot
	var tasks []task.Task
	require.NoError(t, json.Unmarshal(tasksOut.Bytes(), &tasks))
	assert.Len(t, tasks, 3)

	// And: daemon errors keep their codes across the socket
	err := showCmd.Execute()
	require.Error(t, err)
	assert.Equal(t, werrors.ErrCodeNotFound, werrors.CodeOf(err))

	// And: status reports the engine
	require.NoError(t, statusCmd.Execute())
	var info ui.StatusInfo
	require.NoError(t, json.Unmarshal(statusOut.Bytes(), &info))
	assert.True(t, info.Running)
	assert.Equal(t, os.Getpid(), info.PID)
	assert.Equal(t, version.Version, info.Version)
	assert.Equal(t, 2, info.Sessions)
	assert.Equal(t, 3, info.Tasks)
	assert.Equal(t, 3, info.Plans)
	assert.Equal(t, "polling", info.WatchBackend)

	// When: a new session appears and tasks are requested again
	h.writeTask(t, "s3", "1.json", `{"id":"1","subject":"Late"}`)
	msg, err := client.Command(ctx, bridge.Command{Type: bridge.CmdRequestTasks})

	// Then: the reply includes it
	require.NoError(t, err)
	assert.Len(t, msg.Tasks, 4)

	// When: the daemon is stopped
	cancel()

	// Then: it exits cleanly and removes its pid file
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}
	_, err = os.Stat(daemon.DefaultConfig().WithSocket(h.socket).PIDPath)
	assert.True(t, os.IsNotExist(err))
	assert.False(t, client.IsRunning())
}
