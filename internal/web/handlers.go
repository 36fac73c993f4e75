package web

import (
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Chili6666/iclaude-workbench/internal/bridge"
	werrors "github.com/Chili6666/iclaude-workbench/internal/errors"
	"github.com/Chili6666/iclaude-workbench/internal/task"
)

const maxQuerySize = 1 << 10 // 1KB

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleTasks lists tasks, optionally narrowed by ?session= and ?status=.
func (s *Server) handleTasks(c *gin.Context) {
	msg, ok := s.run(c, bridge.Command{Type: bridge.CmdRequestTasks})
	if !ok {
		return
	}

	session := c.Query("session")
	status := c.Query("status")
	if session != "" || status != "" {
		filtered := make([]task.Task, 0, len(msg.Tasks))
		for _, t := range msg.Tasks {
			if session != "" && t.SessionID != session {
				continue
			}
			if status != "" && string(t.Status) != status {
				continue
			}
			filtered = append(filtered, t)
		}
		msg.Tasks = filtered
	}

	c.JSON(http.StatusOK, gin.H{
		"type":  msg.Type,
		"tasks": nonNil(msg.Tasks),
		"count": len(msg.Tasks),
	})
}

func (s *Server) handlePlans(c *gin.Context) {
	query := c.Query("q")
	if len(query) > maxQuerySize {
		s.fail(c, werrors.ValidationError("query exceeds maximum size of 1KB", nil))
		return
	}

	cmd := bridge.Command{Type: bridge.CmdRequestPlans}
	if query != "" {
		cmd = bridge.Command{Type: bridge.CmdSearchPlans, Query: query}
	}
	msg, ok := s.run(c, cmd)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"type":  msg.Type,
		"query": query,
		"plans": nonNil(msg.Plans),
		"count": len(msg.Plans),
	})
}

func (s *Server) handlePlan(c *gin.Context) {
	msg, ok := s.run(c, bridge.Command{Type: bridge.CmdRequestPlanContent, PlanID: c.Param("id")})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (s *Server) handleFolders(c *gin.Context) {
	msg, ok := s.run(c, bridge.Command{Type: bridge.CmdRequestWorkspaceFolders})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"type":    msg.Type,
		"folders": nonNil(msg.WorkspaceFolders),
		"count":   len(msg.WorkspaceFolders),
	})
}

func (s *Server) handleCommand(c *gin.Context) {
	var cmd bridge.Command
	if err := c.ShouldBindJSON(&cmd); err != nil {
		s.fail(c, werrors.ValidationError("invalid command body", err))
		return
	}
	if cmd.Type == "" {
		s.fail(c, werrors.ValidationError("command type is required", nil))
		return
	}

	msg, ok := s.run(c, cmd)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, msg)
}

// handleEvents streams the current snapshot and then every bridge message
// as Server-Sent Events named after the message type.
func (s *Server) handleEvents(c *gin.Context) {
	ctx := c.Request.Context()
	queue := make(chan bridge.Message, eventBuffer)
	dropped := make(chan struct{})
	var drop sync.Once

	sub := s.bridge.Subscribe(func(m bridge.Message) {
		select {
		case queue <- m:
		default:
			drop.Do(func() { close(dropped) })
		}
	})
	defer s.bridge.Unsubscribe(sub)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	for _, m := range s.bridge.Snapshot() {
		c.SSEvent(m.Type, m)
	}
	c.Writer.Flush()

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-dropped:
			s.logger.Warn("event client too slow, disconnecting")
			return false
		case m := <-queue:
			c.SSEvent(m.Type, m)
			return true
		case <-ticker.C:
			_, err := io.WriteString(w, ": keep-alive\n\n")
			return err == nil
		}
	})
}

// run executes cmd and writes the error response on failure.
func (s *Server) run(c *gin.Context, cmd bridge.Command) (*bridge.Message, bool) {
	msg, err := s.bridge.Handle(c.Request.Context(), cmd)
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return msg, true
}

func (s *Server) fail(c *gin.Context, err error) {
	we, ok := werrors.As(err)
	if !ok {
		we = werrors.Wrap(werrors.ErrCodeInternal, err)
	}

	body := gin.H{
		"success": false,
		"code":    we.Code,
		"error":   we.Message,
	}
	if we.Suggestion != "" {
		body["suggestion"] = we.Suggestion
	}
	if len(we.Details) > 0 {
		body["details"] = we.Details
	}
	c.AbortWithStatusJSON(statusFor(we.Code), body)
}

// statusFor maps workbench error codes to HTTP statuses.
func statusFor(code string) int {
	switch code {
	case werrors.ErrCodeInvalidInput, werrors.ErrCodeInvalidPath, werrors.ErrCodeUnknownCommand:
		return http.StatusBadRequest
	case werrors.ErrCodeNotFound, werrors.ErrCodeFileNotFound:
		return http.StatusNotFound
	case werrors.ErrCodeFilePermission:
		return http.StatusForbidden
	case werrors.ErrCodeFileExists:
		return http.StatusConflict
	case werrors.ErrCodeDaemonUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// nonNil keeps empty lists encoding as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
