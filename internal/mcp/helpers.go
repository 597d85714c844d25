package mcpserver

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"sqlplugin/internal/query"
)

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := marshalJSON(v)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

// marshalJSON serializes a value to indented JSON bytes.
func marshalJSON(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

type columnSummary struct {
	Name          string            `json:"name"`
	DataType      string            `json:"dataType"`
	OutputField   string            `json:"outputField"`
	Substitutions map[string]string `json:"substitutions,omitempty"`
}

type querySummary struct {
	ID      string          `json:"id"`
	KeyType string          `json:"keyType"`
	SQL     string          `json:"sql,omitempty"`
	Columns []columnSummary `json:"columns"`
}

// summarizeQuery describes a definition. The SQL text is only included on request.
func summarizeQuery(def *query.Definition, withSQL bool) querySummary {
	out := querySummary{ID: def.ID, KeyType: def.KeyType.String(), Columns: []columnSummary{}}
	if withSQL {
		out.SQL = def.SQL
	}
	for _, c := range def.Columns() {
		subs := c.Substitutions()
		if len(subs) == 0 {
			subs = nil
		}
		out.Columns = append(out.Columns, columnSummary{
			Name:          c.Name,
			DataType:      c.DataType.String(),
			OutputField:   c.OutputField,
			Substitutions: subs,
		})
	}
	return out
}
