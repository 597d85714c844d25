package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	healthURI        = "sqlplugin://health"
	queriesURI       = "sqlplugin://queries"
	queryURIPrefix   = "sqlplugin://queries/"
	queryURITemplate = queryURIPrefix + "{queryId}"
)

func (s *Server) registerResources() {
	// ── sqlplugin://health ─────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		healthURI,
		"Plugin Health",
		mcp.WithMIMEType("application/json"),
	), s.handleHealthResource)

	// ── sqlplugin://queries ────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		queriesURI,
		"Registered Queries",
		mcp.WithMIMEType("application/json"),
	), s.handleQueriesResource)

	// ── sqlplugin://queries/{queryId} ──────────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(queryURITemplate, "Registered Query"),
		s.handleQueryResource,
	)
}

func (s *Server) handleHealthResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonContents(healthURI, s.plugin.Health())
}

func (s *Server) handleQueriesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	summaries := make([]querySummary, 0)
	for _, id := range s.plugin.QueryIDs() {
		if def, ok := s.plugin.Query(id); ok {
			summaries = append(summaries, summarizeQuery(def, false))
		}
	}
	return jsonContents(queriesURI, summaries)
}

func (s *Server) handleQueryResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	queryID := strings.TrimPrefix(uri, queryURIPrefix)
	if queryID == uri || queryID == "" {
		return nil, fmt.Errorf("could not extract queryId from URI: %s", uri)
	}
	def, ok := s.plugin.Query(queryID)
	if !ok {
		return nil, fmt.Errorf("unknown query %q", queryID)
	}
	return jsonContents(uri, summarizeQuery(def, true))
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := marshalJSON(v)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
