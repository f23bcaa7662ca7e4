// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Jera tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/jera/internal/storage"
	"github.com/starford/jera/internal/taskservice"
)

// Server wraps the MCP server with Jera tools.
type Server struct {
	mcp   *server.MCPServer
	svc   *taskservice.Service
	store storage.Provider
}

// New creates a new MCP server with all Jera tools registered.
func New(svc *taskservice.Service, store storage.Provider) *Server {
	s := &Server{svc: svc, store: store}

	s.mcp = server.NewMCPServer(
		"Jera",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List all tasks in the project, optionally filtered by status."),
		mcp.WithString("status", mcp.Description("Optional status filter: TODO, IN_PROGRESS, or DONE")),
	), s.listTasks)

	s.mcp.AddTool(mcp.NewTool("search_tasks",
		mcp.WithDescription("Full-text search through task titles, memos, and assignees."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchTasks)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read the raw Markdown content of a plan document. "+
			"Documents follow the WBS format; read the contract first via the "+
			"get_wbs_contract tool or the jera://wbs-format resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the document (must end with .wbs.md)")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("update_task_status",
		mcp.WithDescription("Set the status of a task by ID. The change is saved to disk "+
			"without touching any other section of the document."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Task ID (from list_tasks or search_tasks)")),
		mcp.WithString("status", mcp.Required(), mcp.Description("New status: TODO, IN_PROGRESS, or DONE")),
	), s.updateTaskStatus)

	s.mcp.AddTool(mcp.NewTool("get_wbs_contract",
		mcp.WithDescription("Returns the canonical Jera WBS document format contract. "+
			"Call this before reading or editing plan documents to understand the structure."),
	), s.getWBSContract)

	// Resource: WBS format contract.
	s.mcp.AddResource(
		mcp.NewResource("jera://wbs-format", "WBS Format Contract",
			mcp.WithResourceDescription("Canonical WBS Markdown format that all plan documents follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readWBSFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := ""
	if v, err := req.RequireString("status"); err == nil {
		status = v
	}
	tasks := s.svc.ListTasks(ctx, status)
	out, _ := json.MarshalIndent(tasks, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) searchTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.store.Read(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) updateTaskStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	status, err := req.RequireString("status")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	task, err := s.svc.UpdateTask(ctx, id, taskservice.TaskPatch{Status: &status})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s is now %s", task.Title, task.Status)), nil
}

func (s *Server) getWBSContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(WBSFormatContract), nil
}

func (s *Server) readWBSFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "jera://wbs-format",
			MIMEType: "text/markdown",
			Text:     WBSFormatContract,
		},
	}, nil
}
