package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"sqlplugin/internal/config"
	"sqlplugin/internal/logging"
)

// Configuration key segments below "query.<id>".
const (
	keyQueries        = "query"
	keySQL            = "sql"
	keySearchDataType = "search-data-type"
	keyColumn         = "column"
	keyEnabled        = "enabled"
	keyDataType       = "data-type"
	keyJSONField      = "json-field"
	keyEnum           = "enum"
)

// unsetColumnDataType is what a column without data-type resolves to. It names no
// supported type, so such columns are dropped.
const unsetColumnDataType = "string"

// ConfigurationError aborts compilation of a query and, with it, startup.
type ConfigurationError struct {
	QueryID string
	Key     string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("query %s: %s: %s", e.QueryID, e.Key, e.Reason)
}

// ColumnConfigurationError records a column dropped during compilation.
type ColumnConfigurationError struct {
	QueryID string
	Column  string
	Reason  string
}

func (e *ColumnConfigurationError) Error() string {
	return fmt.Sprintf("query %s: column %s: %s", e.QueryID, e.Column, e.Reason)
}

// Compiler turns the configuration tree into query definitions.
type Compiler struct {
	logger *log.Logger
}

// NewCompiler returns a compiler logging to logger.
func NewCompiler(logger *log.Logger) *Compiler {
	return &Compiler{logger: logging.OrDiscard(logger)}
}

// DiscoverQueryIDs returns, sorted, every id with a query.<id>.sql key.
func DiscoverQueryIDs(root *config.Section) []string {
	var ids []string
	for _, q := range root.Child(keyQueries).Children() {
		if q.Has(keySQL) {
			ids = append(ids, q.Name())
		}
	}
	return ids
}

// CompileAll compiles every discovered query. The first ConfigurationError aborts.
func (c *Compiler) CompileAll(root *config.Section) (*Registry, error) {
	ids := DiscoverQueryIDs(root)
	c.logger.Info("Compiling queries", "count", len(ids))
	defs := make([]*Definition, 0, len(ids))
	for _, id := range ids {
		def, err := c.Compile(root, id)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return NewRegistry(defs...)
}

// Compile builds the definition of query id. It does not modify root.
func (c *Compiler) Compile(root *config.Section, id string) (*Definition, error) {
	q := root.Lookup(keyQueries, id)
	logger := c.logger.With("query", id)
	logger.Debug("Compiling query")

	sqlText, ok := q.Child(keySQL).Value()
	if !ok {
		return nil, &ConfigurationError{QueryID: id, Key: keySQL, Reason: "missing"}
	}
	if strings.TrimSpace(sqlText) == "" {
		return nil, &ConfigurationError{QueryID: id, Key: keySQL, Reason: "empty"}
	}
	if n := countParameters(sqlText); n != 1 {
		logger.Warn("SQL should bind exactly one positional parameter", "found", n)
	}

	rawKeyType, ok := q.Child(keySearchDataType).Value()
	if !ok {
		return nil, &ConfigurationError{QueryID: id, Key: keySearchDataType, Reason: "missing"}
	}
	keyType, err := ParseDataType(rawKeyType)
	if err != nil {
		return nil, &ConfigurationError{QueryID: id, Key: keySearchDataType, Reason: err.Error()}
	}

	def := &Definition{ID: id, SQL: sqlText, KeyType: keyType}
	for _, col := range q.Child(keyColumn).Children() {
		if len(col.Names()) == 0 {
			continue
		}
		schema, colErr := compileColumn(id, col)
		if colErr != nil {
			logger.Warn("Ignoring column", "column", col.Name(), "reason", colErr.Reason)
			def.skipped = append(def.skipped, colErr)
			continue
		}
		def.columns = append(def.columns, schema)
	}
	sort.Slice(def.columns, func(i, j int) bool { return def.columns[i].Name < def.columns[j].Name })

	logger.Info("Compiled query", "key-type", keyType, "columns", len(def.columns), "skipped", len(def.skipped))
	return def, nil
}

func compileColumn(queryID string, col *config.Section) (ColumnSchema, *ColumnConfigurationError) {
	name := col.Name()
	if !strings.EqualFold(strings.TrimSpace(col.String(keyEnabled, "")), "true") {
		return ColumnSchema{}, &ColumnConfigurationError{QueryID: queryID, Column: name, Reason: "column is not enabled"}
	}
	rawType := col.String(keyDataType, unsetColumnDataType)
	dataType, err := ParseDataType(rawType)
	if err != nil {
		reason := err.Error()
		if !col.Has(keyDataType) {
			reason = "data-type is not set"
		}
		return ColumnSchema{}, &ColumnConfigurationError{QueryID: queryID, Column: name, Reason: reason}
	}
	schema := ColumnSchema{
		Name:         name,
		DataType:     dataType,
		OutputField:  col.String(keyJSONField, name),
		substitution: make(map[string]string),
	}
	for _, entry := range col.Child(keyEnum).Children() {
		if v, ok := entry.Value(); ok {
			schema.substitution[entry.Name()] = v
		}
	}
	return schema, nil
}

// countParameters counts positional parameters outside quoted text: each "?", and each
// distinct "$n" or "@pn" reference.
func countParameters(sqlText string) int {
	count := 0
	numbered := make(map[string]bool)
	var quote byte
	for i := 0; i < len(sqlText); i++ {
		ch := sqlText[i]
		if quote != 0 {
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch {
		case ch == '\'' || ch == '"' || ch == '`':
			quote = ch
		case ch == '?':
			count++
		case ch == '$' || (ch == '@' && i+1 < len(sqlText) && (sqlText[i+1] == 'p' || sqlText[i+1] == 'P')):
			start := i + 1
			if ch == '@' {
				start++
			}
			end := start
			for end < len(sqlText) && sqlText[end] >= '0' && sqlText[end] <= '9' {
				end++
			}
			if end > start {
				numbered[sqlText[start:end]] = true
				i = end - 1
			}
		}
	}
	return count + len(numbered)
}
