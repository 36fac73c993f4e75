package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/Chili6666/iclaude-workbench/internal/bridge"
	werrors "github.com/Chili6666/iclaude-workbench/internal/errors"
)

// Client talks to a running daemon.
type Client struct {
	socketPath string
	timeout    time.Duration
	requestID  atomic.Uint64
}

// NewClient creates a client for cfg.SocketPath.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	return &Client{socketPath: cfg.SocketPath, timeout: timeout}
}

// Connect dials the daemon socket.
func (c *Client) Connect(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, werrors.New(werrors.ErrCodeDaemonUnavailable, "daemon is not running", err).
			WithDetail("socket", c.socketPath).
			WithSuggestion("Run 'workbench daemon start'")
	}
	return conn, nil
}

// IsRunning reports whether the daemon accepts connections.
func (c *Client) IsRunning() bool {
	conn, err := c.Connect(context.Background())
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Ping checks that the daemon answers requests.
func (c *Client) Ping(ctx context.Context) error {
	var res PingResult
	if err := c.call(ctx, MethodPing, nil, &res); err != nil {
		return err
	}
	if !res.Pong {
		return fmt.Errorf("unexpected ping reply")
	}
	return nil
}

// Status retrieves daemon status.
func (c *Client) Status(ctx context.Context) (*StatusResult, error) {
	var status StatusResult
	if err := c.call(ctx, MethodStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Command runs a bridge command in the daemon. Command failures come back
// as *errors.WorkbenchError with the daemon-side code.
func (c *Client) Command(ctx context.Context, cmd bridge.Command) (*bridge.Message, error) {
	var msg bridge.Message
	if err := c.call(ctx, MethodCommand, cmd, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Subscribe streams bridge messages to fn until ctx is done or the daemon
// closes the connection. The current snapshot arrives first. It returns
// nil when ctx ends the stream.
func (c *Client) Subscribe(ctx context.Context, fn func(bridge.Message)) error {
	conn, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	_ = conn.SetDeadline(time.Now().Add(c.timeout))
	if err := c.send(conn, MethodSubscribe, nil); err != nil {
		return err
	}

	dec := json.NewDecoder(bufio.NewReader(conn))
	var ack Response
	if err := dec.Decode(&ack); err != nil {
		return fmt.Errorf("failed to receive response: %w", err)
	}
	if ack.Error != nil {
		return ack.Error.Err()
	}
	_ = conn.SetDeadline(time.Time{})

	for {
		var n Notification
		if err := dec.Decode(&n); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("subscription ended: %w", err)
		}
		if n.Method != MethodNotify {
			continue
		}
		var msg bridge.Message
		if err := json.Unmarshal(n.Params, &msg); err != nil {
			continue
		}
		fn(msg)
	}
}

func (c *Client) call(ctx context.Context, method string, params, out any) error {
	conn, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set deadline: %w", err)
	}

	if err := c.send(conn, method, params); err != nil {
		return err
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("failed to receive response: %w", err)
	}
	if resp.Error != nil {
		return resp.Error.Err()
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

func (c *Client) send(conn net.Conn, method string, params any) error {
	req := Request{JSONRPC: "2.0", Method: method, ID: c.nextID()}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to encode params: %w", err)
		}
		req.Params = data
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	return nil
}

func (c *Client) nextID() string {
	return fmt.Sprintf("req-%d", c.requestID.Add(1))
}

// IsUnavailable reports whether err means no daemon is listening.
func IsUnavailable(err error) bool {
	var we *werrors.WorkbenchError
	return errors.As(err, &we) && we.Code == werrors.ErrCodeDaemonUnavailable
}
