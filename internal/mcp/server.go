// Package mcp wraps the issue collection and exposes it as MCP tools
// over stdio, so agent clients can query and mutate issues natively.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/trkhq/trk/internal/feedback"
	"github.com/trkhq/trk/internal/issues"
	"github.com/trkhq/trk/internal/models"
)

// Server wraps the trk data layer and exposes it as MCP tools.
type Server struct {
	issues *issues.Collection
	ai     *feedback.Client // nil when no API key is configured
}

// NewServer creates the MCP server wrapper.
func NewServer(c *issues.Collection, ai *feedback.Client) *Server {
	return &Server{issues: c, ai: ai}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("trk", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.listIssuesTool())
	srv.AddTool(s.createIssueTool())
	srv.AddTool(s.updateIssueTool())
	srv.AddTool(s.archiveIssueTool())
	srv.AddTool(s.deleteIssueTool())
	srv.AddTool(s.importFeedbackTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// issueOut is the JSON shape returned by every issue tool.
type issueOut struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	Archived    bool   `json:"archived"`
	Assignee    string `json:"assignee,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toIssueOut(i models.Issue) issueOut {
	return issueOut{
		ID:          i.ID,
		Title:       i.Title,
		Description: i.Description,
		Status:      string(i.Status),
		Priority:    string(i.Priority),
		Archived:    i.Archived,
		Assignee:    i.Assignee,
		CreatedAt:   i.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   i.UpdatedAt.Format(time.RFC3339),
	}
}

func issueResult(i models.Issue) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(toIssueOut(i))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal issue: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// trk_list_issues
func (s *Server) listIssuesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("trk_list_issues",
		mcp.WithDescription("List issues. Returns a JSON array of issues with id, title, status, priority, assignee, and archived flag. Archived issues are excluded unless archived=true."),
		mcp.WithString("status", mcp.Description("Filter by status: OPEN, IN_PROGRESS, DONE, CANCELED")),
		mcp.WithString("priority", mcp.Description("Filter by priority: LOW, MEDIUM, HIGH")),
		mcp.WithString("search", mcp.Description("Case-insensitive substring match over title and description")),
		mcp.WithBoolean("archived", mcp.Description("Show the archived view instead of the default view")),
	)
	return tool, s.handleListIssues
}

func (s *Server) handleListIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := issues.Filter{
		Status:   models.IssueStatus(request.GetString("status", "")),
		Priority: models.IssuePriority(request.GetString("priority", "")),
		Search:   request.GetString("search", ""),
		Archived: request.GetBool("archived", false),
	}

	list := issues.FilterIssues(s.issues.List(), filter)
	out := make([]issueOut, len(list))
	for i, issue := range list {
		out[i] = toIssueOut(issue)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal issues: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// trk_create_issue
func (s *Server) createIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("trk_create_issue",
		mcp.WithDescription("Create a new issue. Returns the created issue as JSON."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Issue title")),
		mcp.WithString("description", mcp.Description("Issue description")),
		mcp.WithString("status", mcp.Description("Status: OPEN, IN_PROGRESS, DONE, CANCELED (default OPEN)")),
		mcp.WithString("priority", mcp.Description("Priority: LOW, MEDIUM, HIGH (default MEDIUM)")),
		mcp.WithString("assignee", mcp.Description("Assignee display name")),
	)
	return tool, s.handleCreateIssue
}

func (s *Server) handleCreateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := request.RequireString("title")
	if err != nil || title == "" {
		return mcp.NewToolResultError("missing required parameter: title"), nil
	}

	status := models.IssueStatus(request.GetString("status", string(models.IssueStatusOpen)))
	if !models.ValidStatus(status) {
		return mcp.NewToolResultError(fmt.Sprintf("invalid status: %s", status)), nil
	}
	priority := models.IssuePriority(request.GetString("priority", string(models.IssuePriorityMedium)))
	if !models.ValidPriority(priority) {
		return mcp.NewToolResultError(fmt.Sprintf("invalid priority: %s", priority)), nil
	}

	issue := s.issues.Create(issues.CreateFields{
		Title:       title,
		Description: request.GetString("description", ""),
		Status:      status,
		Priority:    priority,
		Assignee:    request.GetString("assignee", ""),
	})
	return issueResult(issue)
}

// trk_update_issue
func (s *Server) updateIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("trk_update_issue",
		mcp.WithDescription("Update an issue's title, description, status, priority, or assignee. Only supplied fields change. Returns the updated issue as JSON."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Issue ID")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("status", mcp.Description("New status: OPEN, IN_PROGRESS, DONE, CANCELED")),
		mcp.WithString("priority", mcp.Description("New priority: LOW, MEDIUM, HIGH")),
		mcp.WithString("assignee", mcp.Description("New assignee display name")),
	)
	return tool, s.handleUpdateIssue
}

func (s *Server) handleUpdateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}

	var patch issues.Patch
	if v := request.GetString("title", ""); v != "" {
		patch.Title = &v
	}
	if v := request.GetString("description", ""); v != "" {
		patch.Description = &v
	}
	if v := request.GetString("status", ""); v != "" {
		status := models.IssueStatus(v)
		if !models.ValidStatus(status) {
			return mcp.NewToolResultError(fmt.Sprintf("invalid status: %s", v)), nil
		}
		patch.Status = &status
	}
	if v := request.GetString("priority", ""); v != "" {
		priority := models.IssuePriority(v)
		if !models.ValidPriority(priority) {
			return mcp.NewToolResultError(fmt.Sprintf("invalid priority: %s", v)), nil
		}
		patch.Priority = &priority
	}
	if v := request.GetString("assignee", ""); v != "" {
		patch.Assignee = &v
	}

	issue, found := s.issues.Update(id, patch)
	if !found {
		return mcp.NewToolResultError(fmt.Sprintf("issue not found: %s", id)), nil
	}
	return issueResult(issue)
}

// trk_archive_issue
func (s *Server) archiveIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("trk_archive_issue",
		mcp.WithDescription("Toggle an issue's archived flag. Archiving requires status DONE or CANCELED; restoring is always permitted."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Issue ID")),
	)
	return tool, s.handleArchiveIssue
}

func (s *Server) handleArchiveIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}

	issue, found, err := s.issues.ToggleArchive(id)
	if !found {
		return mcp.NewToolResultError(fmt.Sprintf("issue not found: %s", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return issueResult(issue)
}

// trk_delete_issue
func (s *Server) deleteIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("trk_delete_issue",
		mcp.WithDescription("Delete an issue permanently. This is not reversible; archive instead to keep the record."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Issue ID")),
	)
	return tool, s.handleDeleteIssue
}

func (s *Server) handleDeleteIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}

	if !s.issues.Delete(id) {
		return mcp.NewToolResultError(fmt.Sprintf("issue not found: %s", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(`{"deleted":%q}`, id)), nil
}

// trk_import_feedback
func (s *Server) importFeedbackTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("trk_import_feedback",
		mcp.WithDescription("Convert free-form feedback text into issues via the AI converter and create them. All-or-nothing: on failure no issues are created."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Feedback text to triage")),
	)
	return tool, s.handleImportFeedback
}

func (s *Server) handleImportFeedback(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.ai == nil {
		return mcp.NewToolResultError("no AI API key configured"), nil
	}

	text, err := request.RequireString("text")
	if err != nil || text == "" {
		return mcp.NewToolResultError("missing required parameter: text"), nil
	}

	drafts, err := s.ai.ProposeIssues(ctx, text)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	created := feedback.Apply(s.issues, drafts)
	out := make([]issueOut, len(created))
	for i, issue := range created {
		out[i] = toIssueOut(issue)
	}
	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal issues: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
