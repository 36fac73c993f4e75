// Package web serves the bridge over HTTP for browser dashboards. Live
// updates are delivered as Server-Sent Events.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Chili6666/iclaude-workbench/internal/bridge"
	"github.com/Chili6666/iclaude-workbench/internal/notify"
)

// Bridge is the command and notification surface served over HTTP.
type Bridge interface {
	Handle(ctx context.Context, cmd bridge.Command) (*bridge.Message, error)
	Subscribe(fn func(bridge.Message)) notify.Subscription
	Unsubscribe(s notify.Subscription) bool
	Snapshot() []bridge.Message
}

// eventBuffer is the number of messages queued per SSE client before it
// is dropped.
const eventBuffer = 64

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithKeepAlive sets the interval of SSE keep-alive comments.
func WithKeepAlive(d time.Duration) Option {
	return func(s *Server) { s.keepAlive = d }
}

// Server is the workbench HTTP server.
type Server struct {
	bridge    Bridge
	router    *gin.Engine
	logger    *slog.Logger
	keepAlive time.Duration
}

// NewServer creates a server and registers its routes.
func NewServer(b Bridge, opts ...Option) *Server {
	s := &Server{
		bridge:    b,
		router:    gin.New(),
		keepAlive: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.router.Use(gin.Recovery(), s.logRequests())

	s.router.GET("/healthz", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.GET("/tasks", s.handleTasks)
		api.GET("/plans", s.handlePlans)
		api.GET("/plans/:id", s.handlePlan)
		api.GET("/folders", s.handleFolders)
		api.POST("/commands", s.handleCommand)
		api.GET("/events", s.handleEvents)
	}

	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve serves on l until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(l) }()

	s.logger.Info("http listening", slog.String("addr", l.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, l)
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("elapsed", time.Since(start)))
	}
}
