package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("find_record",
		mcp.WithPromptDescription("Guide through looking up one record with a registered query"),
		mcp.WithArgument("subject",
			mcp.ArgumentDescription("What record is being looked for, e.g. 'user 42'"),
			mcp.RequiredArgument(),
		),
	), s.handleFindRecordPrompt)
}

func (s *Server) handleFindRecordPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	subject := req.Params.Arguments["subject"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Look up: %s", subject),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Find the record for: %s

Steps:
1. Call list_queries and pick the query whose output fields describe this record.
2. Convert the key to the query's key type (TEXT, NUMBER or an ISO date-time for TIMESTAMP).
3. Call lookup with the queryId and key.
4. SUCCESS carries the record in objectDetails. RECORD_NOT_FOUND and MULTIPLE_RECORDS
   mean the key does not identify exactly one row: report that rather than retrying
   with a different key.`, subject),
				},
			},
		},
	}, nil
}
