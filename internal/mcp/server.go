package mcpserver

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"sqlplugin/internal/config"
	"sqlplugin/internal/domain"
	"sqlplugin/internal/logging"
	"sqlplugin/internal/query"
)

// Plugin is the lookup plugin as seen by the MCP front-end.
type Plugin interface {
	ID() string
	Description() string
	BuildInfo() config.BuildInfo
	Read(ctx context.Context, req domain.ReadRequest) domain.ReadResponse
	QueryIDs() []string
	Query(id string) (*query.Definition, bool)
	Health() domain.HealthResult
}

// Server is the MCP server for the lookup plugin.
// It exposes lookups as tools and the query catalogue and health as resources.
type Server struct {
	mcp    *server.MCPServer
	plugin Plugin
	logger *log.Logger
}

// New creates and configures a new MCP server with all tools and resources.
func New(plugin Plugin, logger *log.Logger) *Server {
	s := &Server{
		plugin: plugin,
		logger: logging.OrDiscard(logger).With("component", "mcp"),
	}

	version := plugin.BuildInfo().Version
	if version == "" {
		version = "dev"
	}
	s.mcp = server.NewMCPServer(
		plugin.ID(),
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
		server.WithInstructions(plugin.Description()),
	)

	s.registerLookupTools()
	s.registerResources()
	s.registerPrompts()
	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.logger.Info("Starting stdio server")
	return server.ServeStdio(s.mcp)
}

// MCPServer exposes the underlying server, for in-process transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}
