package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"sqlplugin/internal/domain"
)

func (s *Server) registerLookupTools() {
	s.mcp.AddTool(mcp.NewTool("lookup",
		mcp.WithDescription("Fetch the single record a registered query returns for a key. "+
			"Reports RECORD_NOT_FOUND or MULTIPLE_RECORDS instead of guessing."),
		mcp.WithString("queryId", mcp.Description("Registered query id (see list_queries)"), mcp.Required()),
		mcp.WithString("key", mcp.Description("Key value, in the query's key type"), mcp.Required()),
		mcp.WithString("requestId", mcp.Description("Request id echoed in the response (optional)")),
	), s.handleLookup)

	s.mcp.AddTool(mcp.NewTool("list_queries",
		mcp.WithDescription("List the registered lookup queries with their key type and output fields"),
	), s.handleListQueries)

	s.mcp.AddTool(mcp.NewTool("describe_query",
		mcp.WithDescription("Show one registered query, including its SQL"),
		mcp.WithString("queryId", mcp.Description("Registered query id"), mcp.Required()),
	), s.handleDescribeQuery)
}

func (s *Server) handleLookup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	queryID := req.GetString("queryId", "")
	key := req.GetString("key", "")
	requestID := req.GetString("requestId", "")

	resp := s.plugin.Read(ctx, domain.NewReadRequest(requestID, queryID, key))
	s.logger.Debug("Lookup", "query", queryID, "status", resp.Status, "request", resp.RequestID)

	result, err := jsonResult(resp)
	if err != nil {
		return nil, err
	}
	result.IsError = resp.Status == domain.StatusFailure
	return result, nil
}

func (s *Server) handleListQueries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summaries := make([]querySummary, 0)
	for _, id := range s.plugin.QueryIDs() {
		if def, ok := s.plugin.Query(id); ok {
			summaries = append(summaries, summarizeQuery(def, false))
		}
	}
	return jsonResult(summaries)
}

func (s *Server) handleDescribeQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	queryID := req.GetString("queryId", "")
	def, ok := s.plugin.Query(queryID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown query %q", queryID)), nil
	}
	return jsonResult(summarizeQuery(def, true))
}
