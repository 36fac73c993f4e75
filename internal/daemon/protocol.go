package daemon

import (
	"encoding/json"

	werrors "github.com/Chili6666/iclaude-workbench/internal/errors"
)

// JSON-RPC 2.0 method names.
const (
	MethodPing      = "ping"
	MethodStatus    = "status"
	MethodCommand   = "command"
	MethodSubscribe = "subscribe"

	// MethodNotify is the method of server-to-client notifications on a
	// subscribe stream.
	MethodNotify = "notify"
)

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// ErrCodeCommandFailed is returned when a bridge command fails. Error.Data
// carries the WorkbenchError details when there are any.
const ErrCodeCommandFailed = -32001

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      string          `json:"id"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      string          `json:"id"`
}

// Notification is a server-initiated message without an id.
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Error represents a JSON-RPC 2.0 error.
type Error struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

// ErrorData mirrors the user-facing parts of a WorkbenchError.
type ErrorData struct {
	Code       string            `json:"code"`
	Suggestion string            `json:"suggestion,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

// Err converts e back into a WorkbenchError on the client side.
func (e *Error) Err() error {
	if e.Data != nil && e.Data.Code != "" {
		we := werrors.New(e.Data.Code, e.Message, nil)
		we.Suggestion = e.Data.Suggestion
		we.Details = e.Data.Details
		return we
	}
	return werrors.New(werrors.ErrCodeInternal, e.Message, nil)
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(id string, result any) Response {
	data, err := json.Marshal(result)
	if err != nil {
		return NewErrorResponse(id, ErrCodeInternalError, "failed to encode result: "+err.Error())
	}
	return Response{JSONRPC: "2.0", Result: data, ID: id}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id string, code int, message string) Response {
	return Response{
		JSONRPC: "2.0",
		Error:   &Error{Code: code, Message: message},
		ID:      id,
	}
}

// newCommandErrorResponse keeps the WorkbenchError code of err, if any.
func newCommandErrorResponse(id string, err error) Response {
	resp := NewErrorResponse(id, ErrCodeCommandFailed, err.Error())
	if we, ok := werrors.As(err); ok {
		resp.Error.Message = we.Message
		resp.Error.Data = &ErrorData{Code: we.Code, Suggestion: we.Suggestion, Details: we.Details}
	}
	return resp
}

// StatusResult contains daemon status information.
type StatusResult struct {
	Running     bool   `json:"running"`
	PID         int    `json:"pid"`
	Uptime      string `json:"uptime"`
	Version     string `json:"version,omitempty"`
	SocketPath  string `json:"socket_path,omitempty"`
	TasksRoot   string `json:"tasks_root,omitempty"`
	PlansRoot   string `json:"plans_root,omitempty"`
	Sessions    int    `json:"sessions"`
	Tasks       int    `json:"tasks"`
	Plans       int    `json:"plans"`
	Watched     int    `json:"watched_dirs"`
	Reloads     uint64 `json:"reloads"`
	Subscribers int    `json:"subscribers"`
	WatchMode   string `json:"watch_backend,omitempty"`
}

// PingResult is the response to a ping request.
type PingResult struct {
	Pong bool `json:"pong"`
}

// SubscribeResult acknowledges a subscribe request before streaming starts.
type SubscribeResult struct {
	Subscribed bool `json:"subscribed"`
}
