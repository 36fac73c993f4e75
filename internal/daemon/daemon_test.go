package daemon

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chili6666/iclaude-workbench/internal/bridge"
	werrors "github.com/Chili6666/iclaude-workbench/internal/errors"
	"github.com/Chili6666/iclaude-workbench/internal/notify"
	"github.com/Chili6666/iclaude-workbench/internal/plan"
)

// fakeHandler answers commands from a table and lets tests publish.
type fakeHandler struct {
	subs *notify.Registry[bridge.Message]

	mu       sync.Mutex
	commands []bridge.Command
	snapshot []bridge.Message
	err      error
}

func newFakeHandler() *fakeHandler {
	return &fakeHandler{subs: notify.NewRegistry[bridge.Message]()}
}

func (f *fakeHandler) Handle(_ context.Context, cmd bridge.Command) (*bridge.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd)
	if f.err != nil {
		return nil, f.err
	}
	return &bridge.Message{Type: bridge.TypePlanSearchResults, Query: cmd.Query}, nil
}

func (f *fakeHandler) Subscribe(fn func(bridge.Message)) notify.Subscription {
	return f.subs.Subscribe(fn)
}

func (f *fakeHandler) Unsubscribe(s notify.Subscription) bool {
	return f.subs.Unsubscribe(s)
}

func (f *fakeHandler) Snapshot() []bridge.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bridge.Message(nil), f.snapshot...)
}

// shortSocket returns a socket path short enough for sun_path.
func shortSocket(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("/tmp", "wbd")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, "d.sock")
}

func startServer(t *testing.T, h Handler, opts ...ServerOption) *Client {
	t.Helper()
	socket := shortSocket(t)
	srv := NewServer(socket, h, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})

	select {
	case <-srv.Ready():
	case err := <-done:
		t.Fatalf("server failed to start: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not become ready")
	}

	cfg := DefaultConfig().WithSocket(socket)
	cfg.Timeout = 2 * time.Second
	return NewClient(cfg)
}

func TestDefaultConfig_UsesWorkbenchDir(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "daemon.sock", filepath.Base(cfg.SocketPath))
	assert.Equal(t, ".iclaude-workbench", filepath.Base(filepath.Dir(cfg.SocketPath)))
	assert.Equal(t, filepath.Dir(cfg.SocketPath), filepath.Dir(cfg.PIDPath))
	assert.NoError(t, cfg.Validate())
}

func TestConfig_WithSocket_MovesPIDAndLock(t *testing.T) {
	cfg := DefaultConfig().WithSocket("/run/wb/custom.sock")

	assert.Equal(t, "/run/wb/custom.sock", cfg.SocketPath)
	assert.Equal(t, "/run/wb/custom.pid", cfg.PIDPath)
	assert.Equal(t, "/run/wb/custom.lock", cfg.LockPath)
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SocketPath = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Timeout = 0
	assert.Error(t, cfg.Validate())
}

func TestConfig_EnsureDir(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig().WithSocket(filepath.Join(dir, "a", "b", "d.sock"))

	require.NoError(t, cfg.EnsureDir())

	assert.DirExists(t, filepath.Join(dir, "a", "b"))
}

func TestError_Err_RestoresWorkbenchError(t *testing.T) {
	// Given: a command failure carrying a workbench code
	src := werrors.New(werrors.ErrCodeFileExists, "plan.md already exists", nil).
		WithSuggestion("Confirm the overwrite").
		WithDetail("target", "/p/plan.md")

	// When: it crosses the wire
	resp := newCommandErrorResponse("1", src)
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	var decoded Response
	require.NoError(t, json.Unmarshal(data, &decoded))

	// Then: the client sees the same code, message and hint
	got, ok := werrors.As(decoded.Error.Err())
	require.True(t, ok)
	assert.Equal(t, ErrCodeCommandFailed, decoded.Error.Code)
	assert.Equal(t, werrors.ErrCodeFileExists, got.Code)
	assert.Equal(t, "plan.md already exists", got.Message)
	assert.Equal(t, "Confirm the overwrite", got.Suggestion)
	assert.Equal(t, "/p/plan.md", got.Details["target"])
}

func TestError_Err_PlainErrorIsInternal(t *testing.T) {
	e := &Error{Code: ErrCodeMethodNotFound, Message: "method not found: x"}
	assert.Equal(t, werrors.ErrCodeInternal, werrors.CodeOf(e.Err()))
}

func TestClient_PingAndStatus(t *testing.T) {
	// Given: a server with a status hook
	client := startServer(t, newFakeHandler(), WithStatus(func(s *StatusResult) {
		s.Tasks = 7
		s.WatchMode = "polling"
	}))

	// When: pinging and asking for status
	require.NoError(t, client.Ping(context.Background()))
	status, err := client.Status(context.Background())

	// Then: the hook's fields come through
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, os.Getpid(), status.PID)
	assert.Equal(t, 7, status.Tasks)
	assert.Equal(t, "polling", status.WatchMode)
	assert.True(t, client.IsRunning())
}

func TestClient_Command(t *testing.T) {
	h := newFakeHandler()
	client := startServer(t, h)

	msg, err := client.Command(context.Background(), bridge.Command{Type: bridge.CmdSearchPlans, Query: "auth"})

	require.NoError(t, err)
	assert.Equal(t, bridge.TypePlanSearchResults, msg.Type)
	assert.Equal(t, "auth", msg.Query)
	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.commands, 1)
	assert.Equal(t, bridge.CmdSearchPlans, h.commands[0].Type)
}

func TestClient_Command_ErrorKeepsCode(t *testing.T) {
	h := newFakeHandler()
	h.err = werrors.New(werrors.ErrCodeUnknownCommand, "unknown command: nope", nil)
	client := startServer(t, h)

	_, err := client.Command(context.Background(), bridge.Command{Type: "nope"})

	require.Error(t, err)
	assert.Equal(t, werrors.ErrCodeUnknownCommand, werrors.CodeOf(err))
}

func TestClient_Command_RequiresType(t *testing.T) {
	client := startServer(t, newFakeHandler())

	_, err := client.Command(context.Background(), bridge.Command{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "command type is required")
}

func TestServer_RejectsUnknownMethodAndBadVersion(t *testing.T) {
	client := startServer(t, newFakeHandler())

	exchange := func(req string) Response {
		conn, err := net.Dial("unix", client.socketPath)
		require.NoError(t, err)
		defer func() { _ = conn.Close() }()
		_, err = conn.Write([]byte(req + "\n"))
		require.NoError(t, err)
		var resp Response
		require.NoError(t, json.NewDecoder(conn).Decode(&resp))
		return resp
	}

	resp := exchange(`{"jsonrpc":"2.0","method":"explode","id":"1"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeMethodNotFound, resp.Error.Code)

	resp = exchange(`{"jsonrpc":"1.0","method":"ping","id":"2"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidRequest, resp.Error.Code)

	resp = exchange(`not json`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeParseError, resp.Error.Code)
}

func TestClient_Subscribe_SnapshotThenLive(t *testing.T) {
	// Given: a handler with a two-message snapshot
	h := newFakeHandler()
	h.snapshot = []bridge.Message{
		bridge.TasksUpdated(nil),
		bridge.PlansUpdated([]plan.Plan{{ID: "a", Title: "A"}}),
	}
	client := startServer(t, h)

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan bridge.Message, 8)
	done := make(chan error, 1)
	go func() {
		done <- client.Subscribe(ctx, func(m bridge.Message) { got <- m })
	}()

	// When: the snapshot has arrived and a live message is published
	receive := func() bridge.Message {
		select {
		case m := <-got:
			return m
		case <-time.After(5 * time.Second):
			t.Fatal("no message received")
			return bridge.Message{}
		}
	}
	assert.Equal(t, bridge.TypeTasksUpdated, receive().Type)
	plans := receive()
	assert.Equal(t, bridge.TypePlansUpdated, plans.Type)
	require.Len(t, plans.Plans, 1)
	assert.Equal(t, "a", plans.Plans[0].ID)

	h.subs.Notify(bridge.Message{Type: bridge.TypeFileOpened, Path: "/x/plan.md"})

	// Then: the live message follows, and cancelling ends the stream cleanly
	live := receive()
	assert.Equal(t, bridge.TypeFileOpened, live.Type)
	assert.Equal(t, "/x/plan.md", live.Path)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("subscribe did not return")
	}

	assert.Eventually(t, func() bool { return h.subs.Len() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestClient_Unavailable(t *testing.T) {
	cfg := DefaultConfig().WithSocket(shortSocket(t))
	client := NewClient(cfg)

	err := client.Ping(context.Background())

	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
	assert.True(t, werrors.IsRetryable(err))
	assert.False(t, client.IsRunning())
}

func TestPIDFile_Lifecycle(t *testing.T) {
	p := NewPIDFile(filepath.Join(t.TempDir(), "sub", "daemon.pid"))

	_, err := p.Read()
	assert.ErrorIs(t, err, ErrPIDFileNotFound)
	assert.False(t, p.IsRunning())

	require.NoError(t, p.Write())
	pid, err := p.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.True(t, p.IsRunning())

	require.NoError(t, p.Remove())
	require.NoError(t, p.Remove())
	assert.NoFileExists(t, p.Path())
}

func TestPIDFile_InvalidContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

	_, err := NewPIDFile(path).Read()

	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrPIDFileNotFound)
}

func TestLock_SecondHolderRejected(t *testing.T) {
	// Given: one daemon holding the lock
	path := filepath.Join(t.TempDir(), "daemon.lock")
	first := NewLock(path)
	require.NoError(t, first.Acquire())
	defer func() { _ = first.Release() }()

	// When: a second daemon tries
	second := NewLock(path)
	err := second.Acquire()

	// Then: it is rejected until the first releases
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.False(t, second.Held())

	require.NoError(t, first.Release())
	require.NoError(t, second.Acquire())
	assert.True(t, second.Held())
	require.NoError(t, second.Release())
	require.NoError(t, second.Release())
}
