package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Chili6666/iclaude-workbench/internal/bridge"
)

// Resource URIs.
const (
	TasksURI      = "workbench://tasks"
	PlansURI      = "workbench://plans"
	planURIPrefix = "plan://"
)

// registerResources registers the task board, the plan index and a
// template for individual plans.
func (s *Server) registerResources() {
	s.mcp.AddResource(&mcp.Resource{
		Name:        "tasks",
		URI:         TasksURI,
		Description: "All agent tasks grouped by session, as markdown",
		MIMEType:    "text/markdown",
	}, s.resourceHandler)
	s.mcp.AddResource(&mcp.Resource{
		Name:        "plans",
		URI:         PlansURI,
		Description: "Index of saved plans as JSON",
		MIMEType:    "application/json",
	}, s.resourceHandler)
	s.mcp.AddResourceTemplate(&mcp.ResourceTemplate{
		Name:        "plan",
		URITemplate: planURIPrefix + "{id}",
		Description: "Markdown content of one plan",
		MIMEType:    "text/markdown",
	}, s.resourceHandler)
}

func (s *Server) resourceHandler(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	content, mimeType, err := s.ReadResource(ctx, req.Params.URI)
	if err != nil {
		return nil, err
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: req.Params.URI, MIMEType: mimeType, Text: content},
		},
	}, nil
}

// ReadResource returns the content and MIME type for uri.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, string, error) {
	switch {
	case uri == TasksURI:
		msg, err := s.cmds.Handle(ctx, bridge.Command{Type: bridge.CmdRequestTasks})
		if err != nil {
			return "", "", MapError(err)
		}
		return FormatTasks(msg.Tasks), "text/markdown", nil

	case uri == PlansURI:
		out, err := s.listPlans(ctx)
		if err != nil {
			return "", "", err
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return "", "", MapError(err)
		}
		return string(data), "application/json", nil

	case strings.HasPrefix(uri, planURIPrefix):
		id := strings.TrimPrefix(uri, planURIPrefix)
		if id == "" || strings.ContainsAny(id, `/\`) {
			return "", "", NewResourceNotFoundError(uri)
		}
		p, err := s.getPlan(ctx, GetPlanInput{ID: id})
		if err != nil {
			return "", "", err
		}
		return p.Content, "text/markdown", nil

	default:
		return "", "", NewResourceNotFoundError(uri)
	}
}
