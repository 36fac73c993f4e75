package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Chili6666/iclaude-workbench/internal/bridge"
	"github.com/Chili6666/iclaude-workbench/internal/task"
	"github.com/Chili6666/iclaude-workbench/pkg/version"
)

// Server is the MCP server. It answers every tool through a bridge
// Commander, which is either an in-process bridge or a daemon client.
type Server struct {
	mcp    *mcp.Server
	cmds   bridge.Commander
	logger *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "list_tasks",
		Description: "List agent tasks across all sessions. Optionally filter by session id or status (pending, in_progress, completed).",
	},
	{
		Name:        "list_plans",
		Description: "List saved implementation plans, newest first. Returns titles and paths without content.",
	},
	{
		Name:        "search_plans",
		Description: "Find plans whose title or content contains the query (case-insensitive).",
	},
	{
		Name:        "get_plan",
		Description: "Return the full markdown content of one plan by id.",
	},
	{
		Name:        "list_workspace_folders",
		Description: "List the folders of the open workspace, up to the configured depth.",
	},
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates an MCP server backed by cmds.
func NewServer(cmds bridge.Commander, opts ...Option) (*Server, error) {
	if cmds == nil {
		return nil, fmt.Errorf("commander is required")
	}

	s := &Server{cmds: cmds, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{Name: version.Name, Version: version.Version},
		nil,
	)
	s.registerTools()
	s.registerResources()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return append([]ToolInfo(nil), tools...)
}

// CallTool invokes a tool by name with the given arguments and returns
// its structured output.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "list_tasks":
		var in ListTasksInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.listTasks(ctx, in)
	case "list_plans":
		return s.listPlans(ctx)
	case "search_plans":
		var in SearchPlansInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.searchPlans(ctx, in)
	case "get_plan":
		var in GetPlanInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.getPlan(ctx, in)
	case "list_workspace_folders":
		return s.listFolders(ctx)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

// Serve runs the server on the given transport until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description},
		func(ctx context.Context, _ *mcp.CallToolRequest, in ListTasksInput) (*mcp.CallToolResult, *ListTasksOutput, error) {
			out, err := s.listTasks(ctx, in)
			return nil, out, err
		})
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description},
		func(ctx context.Context, _ *mcp.CallToolRequest, _ ListPlansInput) (*mcp.CallToolResult, *PlansOutput, error) {
			out, err := s.listPlans(ctx)
			return nil, out, err
		})
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[2].Name, Description: tools[2].Description},
		func(ctx context.Context, _ *mcp.CallToolRequest, in SearchPlansInput) (*mcp.CallToolResult, *PlansOutput, error) {
			out, err := s.searchPlans(ctx, in)
			return nil, out, err
		})
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[3].Name, Description: tools[3].Description},
		func(ctx context.Context, _ *mcp.CallToolRequest, in GetPlanInput) (*mcp.CallToolResult, *GetPlanOutput, error) {
			out, err := s.getPlan(ctx, in)
			return nil, out, err
		})
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[4].Name, Description: tools[4].Description},
		func(ctx context.Context, _ *mcp.CallToolRequest, _ ListFoldersInput) (*mcp.CallToolResult, *ListFoldersOutput, error) {
			out, err := s.listFolders(ctx)
			return nil, out, err
		})

	s.logger.Debug("MCP tools registered", slog.Int("count", len(tools)))
}

func (s *Server) listTasks(ctx context.Context, in ListTasksInput) (*ListTasksOutput, error) {
	if in.Status != "" && !task.Status(in.Status).Valid() {
		return nil, NewInvalidParamsError(fmt.Sprintf("unknown status %q", in.Status))
	}

	msg, err := s.cmds.Handle(ctx, bridge.Command{Type: bridge.CmdRequestTasks})
	if err != nil {
		return nil, MapError(err)
	}

	out := &ListTasksOutput{Tasks: make([]TaskOutput, 0, len(msg.Tasks))}
	for _, t := range msg.Tasks {
		if in.Session != "" && t.SessionID != in.Session {
			continue
		}
		if in.Status != "" && string(t.Status) != in.Status {
			continue
		}
		out.Tasks = append(out.Tasks, toTaskOutput(t))
	}
	out.Count = len(out.Tasks)
	return out, nil
}

func (s *Server) listPlans(ctx context.Context) (*PlansOutput, error) {
	msg, err := s.cmds.Handle(ctx, bridge.Command{Type: bridge.CmdRequestPlans})
	if err != nil {
		return nil, MapError(err)
	}
	return toPlansOutput("", msg), nil
}

func (s *Server) searchPlans(ctx context.Context, in SearchPlansInput) (*PlansOutput, error) {
	if strings.TrimSpace(in.Query) == "" {
		return nil, NewInvalidParamsError("query parameter is required")
	}
	msg, err := s.cmds.Handle(ctx, bridge.Command{Type: bridge.CmdSearchPlans, Query: in.Query})
	if err != nil {
		return nil, MapError(err)
	}
	return toPlansOutput(in.Query, msg), nil
}

func (s *Server) getPlan(ctx context.Context, in GetPlanInput) (*GetPlanOutput, error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, NewInvalidParamsError("id parameter is required")
	}
	msg, err := s.cmds.Handle(ctx, bridge.Command{Type: bridge.CmdRequestPlanContent, PlanID: in.ID})
	if err != nil {
		return nil, MapError(err)
	}
	if msg.Plan == nil {
		return nil, NewResourceNotFoundError("plan://" + in.ID)
	}
	p := msg.Plan
	return &GetPlanOutput{
		PlanSummary: PlanSummary{ID: p.ID, Title: p.Title, FilePath: p.FilePath, ModifiedAt: p.ModifiedAt},
		Content:     p.Content,
	}, nil
}

func (s *Server) listFolders(ctx context.Context) (*ListFoldersOutput, error) {
	msg, err := s.cmds.Handle(ctx, bridge.Command{Type: bridge.CmdRequestWorkspaceFolders})
	if err != nil {
		return nil, MapError(err)
	}
	out := &ListFoldersOutput{Folders: make([]FolderOutput, 0, len(msg.WorkspaceFolders))}
	for _, f := range msg.WorkspaceFolders {
		out.Folders = append(out.Folders, FolderOutput{Name: f.Name, Path: f.Path})
	}
	out.Count = len(out.Folders)
	return out, nil
}

func toTaskOutput(t task.Task) TaskOutput {
	return TaskOutput{
		ID:         t.ID,
		Subject:    t.Subject,
		Status:     string(t.Status),
		SessionID:  t.SessionID,
		Owner:      t.Owner,
		ActiveForm: t.ActiveForm,
		BlockedBy:  t.BlockedBy,
		Blocks:     t.Blocks,
		FilePath:   t.FilePath,
	}
}

func toPlansOutput(query string, msg *bridge.Message) *PlansOutput {
	out := &PlansOutput{Query: query, Plans: make([]PlanSummary, 0, len(msg.Plans))}
	for _, p := range msg.Plans {
		out.Plans = append(out.Plans, PlanSummary{ID: p.ID, Title: p.Title, FilePath: p.FilePath, ModifiedAt: p.ModifiedAt})
	}
	out.Count = len(out.Plans)
	return out
}

// decodeArgs maps loosely typed tool arguments onto an input struct.
func decodeArgs(args map[string]any, dst any) error {
	if len(args) == 0 {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return NewInvalidParamsError("arguments are not valid JSON")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return NewInvalidParamsError(fmt.Sprintf("invalid arguments: %v", err))
	}
	return nil
}
