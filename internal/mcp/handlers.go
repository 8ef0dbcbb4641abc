package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/osbuddy/internal/api"
	"github.com/ziadkadry99/osbuddy/internal/knowledge"
)

func (s *Server) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.svc.ListSessions(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing chats failed: %v", err)), nil
	}
	if len(list) == 0 {
		return mcp.NewToolResultText("No chats yet."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d chat(s):\n", len(list))
	for _, sess := range list {
		fmt.Fprintf(&sb, "- %s  %s\n", sess.ID, sess.Title)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: session_id"), nil
	}

	sess, err := s.svc.GetSession(ctx, id)
	if errors.Is(err, api.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("No chat with ID %q.", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading chat failed: %v", err)), nil
	}
	return mcp.NewToolResultText(formatTranscript(sess)), nil
}

func (s *Server) handleNewSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.svc.NewSession(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("creating chat failed: %v", err)), nil
	}
	return mcp.NewToolResultText("Created chat " + id), nil
}

func (s *Server) handleDeleteSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: session_id"), nil
	}

	ok, err := s.svc.DeleteSession(ctx, id)
	if err != nil && !errors.Is(err, api.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("deleting chat failed: %v", err)), nil
	}
	if !ok {
		return mcp.NewToolResultText(fmt.Sprintf("Chat %s was already gone.", id)), nil
	}
	return mcp.NewToolResultText("Deleted chat " + id), nil
}

func (s *Server) handleSendMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := request.RequireString("message")
	if err != nil || strings.TrimSpace(message) == "" {
		return mcp.NewToolResultError("missing required parameter: message"), nil
	}

	reply, err := s.svc.Chat(ctx, message, request.GetString("session_id", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("the tutor could not answer: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString(reply.Response)
	sb.WriteString("\n\n---\n")
	if reply.SessionID != "" {
		fmt.Fprintf(&sb, "Chat: %s\n", reply.SessionID)
	}
	if reply.Thoughts != "" {
		fmt.Fprintf(&sb, "Source: %s\n", reply.Thoughts)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleSearchNotes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}
	limit := request.GetInt("limit", 3)
	if limit <= 0 {
		limit = 3
	}

	results, err := s.notes.Query(ctx, query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("No results found. Run `osbuddy ingest` to index your notes."), nil
	}
	return mcp.NewToolResultText(formatResults(results)), nil
}

func formatTranscript(sess *api.Session) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n", sess.Title)
	if len(sess.Messages) == 0 {
		sb.WriteString("\nThis chat is empty.\n")
	}
	for _, m := range sess.Messages {
		speaker := "Tutor"
		if m.Role == "user" {
			speaker = "User"
		}
		fmt.Fprintf(&sb, "\n**%s:**\n%s\n", speaker, m.Content)
	}
	return sb.String()
}

// formatResults renders note chunks for agent consumption.
func formatResults(results []knowledge.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d result(s):\n", len(results))
	for i, r := range results {
		fmt.Fprintf(&sb, "\n--- Result %d ---\n", i+1)
		fmt.Fprintf(&sb, "Note: %s (part %d)\n", r.Source, r.Index+1)
		fmt.Fprintf(&sb, "Similarity: %.1f%%\n\n", r.Similarity*100)
		sb.WriteString(r.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}
