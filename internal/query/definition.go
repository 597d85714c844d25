package query

import (
	"fmt"
	"maps"
	"sort"
	"strings"
)

// ColumnSchema describes how one result column becomes one output field.
type ColumnSchema struct {
	Name        string
	DataType    DataType
	OutputField string

	substitution map[string]string
}

// Substitute applies the column's substitution table once. Unmapped values pass through.
func (c ColumnSchema) Substitute(raw string) string {
	if v, ok := c.substitution[raw]; ok {
		return v
	}
	return raw
}

// Substitutions returns a copy of the substitution table.
func (c ColumnSchema) Substitutions() map[string]string {
	return maps.Clone(c.substitution)
}

// Definition is one compiled lookup query. It is immutable once compiled.
type Definition struct {
	ID      string
	SQL     string
	KeyType DataType

	columns []ColumnSchema
	skipped []error
}

// Columns returns the column schemas in name order.
func (d *Definition) Columns() []ColumnSchema {
	return append([]ColumnSchema(nil), d.columns...)
}

// Column returns the schema for name.
func (d *Definition) Column(name string) (ColumnSchema, bool) {
	i := sort.Search(len(d.columns), func(i int) bool { return d.columns[i].Name >= name })
	if i < len(d.columns) && d.columns[i].Name == name {
		return d.columns[i], true
	}
	return ColumnSchema{}, false
}

// Skipped lists the columns dropped during compilation, as *ColumnConfigurationError.
func (d *Definition) Skipped() []error {
	return append([]error(nil), d.skipped...)
}

func (d *Definition) String() string {
	names := make([]string, len(d.columns))
	for i, c := range d.columns {
		names[i] = c.Name
	}
	return fmt.Sprintf("%s(key %s, columns [%s])", d.ID, d.KeyType, strings.Join(names, ", "))
}

// Registry maps query ids to definitions. It is built once and only read afterwards,
// so lookups need no locking.
type Registry struct {
	defs map[string]*Definition
}

// NewRegistry builds a registry, rejecting duplicate ids.
func NewRegistry(defs ...*Definition) (*Registry, error) {
	r := &Registry{defs: make(map[string]*Definition, len(defs))}
	for _, d := range defs {
		if _, dup := r.defs[d.ID]; dup {
			return nil, fmt.Errorf("query %q defined twice", d.ID)
		}
		r.defs[d.ID] = d
	}
	return r, nil
}

// Lookup returns the definition registered under id.
func (r *Registry) Lookup(id string) (*Definition, bool) {
	if r == nil {
		return nil, false
	}
	d, ok := r.defs[id]
	return d, ok
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0, len(r.defs))
	for id := range r.defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered queries.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.defs)
}
