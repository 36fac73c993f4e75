package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/Chili6666/iclaude-workbench/internal/bridge"
	"github.com/Chili6666/iclaude-workbench/internal/notify"
)

// Handler is the bridge surface the server exposes. *bridge.Bridge
// implements it.
type Handler interface {
	Handle(ctx context.Context, cmd bridge.Command) (*bridge.Message, error)
	Subscribe(fn func(bridge.Message)) notify.Subscription
	Unsubscribe(s notify.Subscription) bool
	Snapshot() []bridge.Message
}

// subscriberBuffer is the number of notifications queued per subscriber.
// A subscriber that falls further behind is disconnected.
const subscriberBuffer = 64

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the server's logger.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// WithStatus sets a function that fills in domain fields of status replies.
func WithStatus(fn func(*StatusResult)) ServerOption {
	return func(s *Server) { s.status = fn }
}

// WithRequestTimeout bounds the read and write of a single request.
func WithRequestTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.timeout = d }
}

// Server listens on a Unix socket and dispatches JSON-RPC requests.
type Server struct {
	socketPath string
	handler    Handler
	status     func(*StatusResult)
	timeout    time.Duration
	logger     *slog.Logger

	mu          sync.Mutex
	listener    net.Listener
	started     time.Time
	shutdown    bool
	subscribers int
	wg          sync.WaitGroup
	ready       chan struct{}
}

// NewServer creates a server for socketPath.
func NewServer(socketPath string, h Handler, opts ...ServerOption) *Server {
	s := &Server{
		socketPath: socketPath,
		handler:    h,
		timeout:    DefaultConfig().Timeout,
		ready:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Ready is closed once the socket is accepting connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// ListenAndServe serves until ctx is cancelled, then waits for open
// connections (including subscribe streams, which end with ctx).
func (s *Server) ListenAndServe(ctx context.Context) error {
	// A socket file left by a crashed daemon blocks Listen.
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		s.logger.Warn("failed to restrict socket permissions", slog.String("error", err.Error()))
	}

	s.mu.Lock()
	s.listener = listener
	s.started = time.Now()
	s.mu.Unlock()
	close(s.ready)

	defer func() {
		_ = listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	s.logger.Info("daemon listening", slog.String("socket", s.socketPath))

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown {
				break
			}
			s.logger.Error("accept failed", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.wg.Wait()
	return nil
}

// Close stops accepting connections.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	if err := conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		s.logger.Warn("failed to set connection deadline", slog.String("error", err.Error()))
	}

	reader := bufio.NewReader(conn)
	encoder := json.NewEncoder(conn)

	var req Request
	if err := json.NewDecoder(reader).Decode(&req); err != nil {
		_ = encoder.Encode(NewErrorResponse("", ErrCodeParseError, "failed to parse request"))
		return
	}
	if req.JSONRPC != "2.0" {
		_ = encoder.Encode(NewErrorResponse(req.ID, ErrCodeInvalidRequest, "jsonrpc must be \"2.0\""))
		return
	}

	if req.Method == MethodSubscribe {
		s.stream(ctx, conn, encoder, req)
		return
	}

	_ = encoder.Encode(s.handleRequest(ctx, req))
}

func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	switch req.Method {
	case MethodPing:
		return NewSuccessResponse(req.ID, PingResult{Pong: true})

	case MethodStatus:
		return NewSuccessResponse(req.ID, s.Status())

	case MethodCommand:
		var cmd bridge.Command
		if len(req.Params) == 0 {
			return NewErrorResponse(req.ID, ErrCodeInvalidParams, "command params are required")
		}
		if err := json.Unmarshal(req.Params, &cmd); err != nil {
			return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to decode params")
		}
		if cmd.Type == "" {
			return NewErrorResponse(req.ID, ErrCodeInvalidParams, "command type is required")
		}

		msg, err := s.handler.Handle(ctx, cmd)
		if err != nil {
			s.logger.Debug("command failed", slog.String("type", cmd.Type), slog.String("error", err.Error()))
			return newCommandErrorResponse(req.ID, err)
		}
		return NewSuccessResponse(req.ID, msg)

	default:
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

// stream acknowledges a subscribe request, replays the current snapshot,
// then forwards every bridge message until the client disconnects or ctx
// ends.
func (s *Server) stream(ctx context.Context, conn net.Conn, encoder *json.Encoder, req Request) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan bridge.Message, subscriberBuffer)
	var overflow sync.Once

	sub := s.handler.Subscribe(func(m bridge.Message) {
		select {
		case queue <- m:
		default:
			overflow.Do(func() {
				s.logger.Warn("subscriber too slow, disconnecting")
				cancel()
			})
		}
	})
	defer s.handler.Unsubscribe(sub)

	s.mu.Lock()
	s.subscribers++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.subscribers--
		s.mu.Unlock()
	}()

	// Streams are long-lived: only individual writes are bounded.
	_ = conn.SetDeadline(time.Time{})

	write := func(v any) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(s.timeout))
		return encoder.Encode(v) == nil
	}

	if !write(NewSuccessResponse(req.ID, SubscribeResult{Subscribed: true})) {
		return
	}
	for _, m := range s.handler.Snapshot() {
		if !write(newNotification(m)) {
			return
		}
	}

	// Any read result (EOF or stray bytes) ends the stream.
	go func() {
		buf := make([]byte, 1)
		_, _ = conn.Read(buf)
		cancel()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case m := <-queue:
			if !write(newNotification(m)) {
				return
			}
		}
	}
}

// Status returns the current server status.
func (s *Server) Status() StatusResult {
	s.mu.Lock()
	status := StatusResult{
		Running:     true,
		PID:         os.Getpid(),
		Uptime:      time.Since(s.started).Round(time.Second).String(),
		SocketPath:  s.socketPath,
		Subscribers: s.subscribers,
	}
	s.mu.Unlock()

	if s.status != nil {
		s.status(&status)
	}
	return status
}

func newNotification(m bridge.Message) Notification {
	data, _ := json.Marshal(m)
	return Notification{JSONRPC: "2.0", Method: MethodNotify, Params: data}
}
