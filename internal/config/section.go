package config

import (
	"sort"
	"strings"
)

// Section is one node of the dotted key hierarchy: "query.user.sql" is the value of
// section "sql" under "user" under "query". A node may carry a value and children.
//
// All methods are nil-safe so lookups can be chained without checks.
type Section struct {
	name     string
	path     string
	value    string
	hasValue bool
	children map[string]*Section
}

func newSection(name, path string) *Section {
	return &Section{name: name, path: path, children: make(map[string]*Section)}
}

func (s *Section) insert(parts []string, value string) {
	if len(parts) == 0 {
		s.value = value
		s.hasValue = true
		return
	}
	child, ok := s.children[parts[0]]
	if !ok {
		path := parts[0]
		if s.path != "" {
			path = s.path + "." + parts[0]
		}
		child = newSection(parts[0], path)
		s.children[parts[0]] = child
	}
	child.insert(parts[1:], value)
}

// Name is the last segment of the section's key.
func (s *Section) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

// Path is the full dotted key of the section.
func (s *Section) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Child returns the named child, or nil.
func (s *Section) Child(name string) *Section {
	if s == nil {
		return nil
	}
	return s.children[name]
}

// Lookup walks names below s.
func (s *Section) Lookup(names ...string) *Section {
	cur := s
	for _, n := range names {
		cur = cur.Child(n)
	}
	return cur
}

// Value returns the section's own value.
func (s *Section) Value() (string, bool) {
	if s == nil || !s.hasValue {
		return "", false
	}
	return s.value, true
}

// String returns the value of the named child, or def.
func (s *Section) String(name, def string) string {
	if v, ok := s.Child(name).Value(); ok {
		return v
	}
	return def
}

// Has reports whether the named child carries a value.
func (s *Section) Has(name string) bool {
	_, ok := s.Child(name).Value()
	return ok
}

// Names returns child names in sorted order.
func (s *Section) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.children))
	for n := range s.children {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Children returns children in name order.
func (s *Section) Children() []*Section {
	names := s.Names()
	out := make([]*Section, 0, len(names))
	for _, n := range names {
		out = append(out, s.children[n])
	}
	return out
}

// Flatten returns every valued descendant keyed by its path relative to s.
func (s *Section) Flatten() map[string]string {
	out := make(map[string]string)
	if s == nil {
		return out
	}
	var walk func(node *Section, prefix []string)
	walk = func(node *Section, prefix []string) {
		if node.hasValue && len(prefix) > 0 {
			out[strings.Join(prefix, ".")] = node.value
		}
		for name, child := range node.children {
			walk(child, append(append([]string(nil), prefix...), name))
		}
	}
	walk(s, nil)
	return out
}
