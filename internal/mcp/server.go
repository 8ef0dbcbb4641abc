package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/osbuddy/internal/api"
	"github.com/ziadkadry99/osbuddy/internal/knowledge"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Service is the session service as seen by agent tools. *api.Client
// implements it.
type Service interface {
	ListSessions(ctx context.Context) ([]api.SessionSummary, error)
	NewSession(ctx context.Context) (string, error)
	GetSession(ctx context.Context, id string) (*api.Session, error)
	DeleteSession(ctx context.Context, id string) (bool, error)
	Chat(ctx context.Context, message, sessionID string) (*api.ChatReply, error)
}

// Notes is the optional knowledge base exposed through search_notes.
type Notes interface {
	Query(ctx context.Context, question string, k int) ([]knowledge.Result, error)
}

// Server exposes OS Buddy chats to AI agents over MCP.
type Server struct {
	svc   Service
	notes Notes
	mcp   *server.MCPServer
}

// NewServer creates an MCP server. notes may be nil, in which case
// search_notes is not offered.
func NewServer(svc Service, notes Notes) *Server {
	s := &Server{svc: svc, notes: notes}

	s.mcp = server.NewMCPServer(
		"osbuddy",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

func (s *Server) registerTools() {
	s.mcp.AddTool(listSessionsTool, s.handleListSessions)
	s.mcp.AddTool(getSessionTool, s.handleGetSession)
	s.mcp.AddTool(newSessionTool, s.handleNewSession)
	s.mcp.AddTool(deleteSessionTool, s.handleDeleteSession)
	s.mcp.AddTool(sendMessageTool, s.handleSendMessage)
	if s.notes != nil {
		s.mcp.AddTool(searchNotesTool, s.handleSearchNotes)
	}
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
