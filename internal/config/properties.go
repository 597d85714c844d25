// Package config loads the plugin's flat .properties configuration and exposes it
// as a tree of dotted sections for typed parsing.
package config

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/magiconair/properties"
	"github.com/spf13/afero"
)

//go:embed defaults.properties
var defaultProperties []byte

// Properties is an immutable flat key/value configuration.
type Properties struct {
	values map[string]string
}

// FromMap copies m into a Properties value.
func FromMap(m map[string]string) Properties {
	values := make(map[string]string, len(m))
	for k, v := range m {
		values[k] = v
	}
	return Properties{values: values}
}

// Parse reads properties text. ${...} expansion is disabled so SQL text is kept verbatim.
func Parse(data []byte) (Properties, error) {
	loader := properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	p, err := loader.LoadBytes(data)
	if err != nil {
		return Properties{}, fmt.Errorf("parse properties: %w", err)
	}
	return Properties{values: p.Map()}, nil
}

// Defaults returns the built-in properties shipped with the plugin.
func Defaults() Properties {
	p, err := Parse(defaultProperties)
	if err != nil {
		panic(fmt.Sprintf("config: invalid embedded defaults: %v", err))
	}
	return p
}

// Lookup returns the value for key and whether it was set.
func (p Properties) Lookup(key string) (string, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Get returns the value for key, or def when unset.
func (p Properties) Get(key, def string) string {
	if v, ok := p.values[key]; ok {
		return v
	}
	return def
}

// Len returns the number of keys.
func (p Properties) Len() int { return len(p.values) }

// Keys returns all keys in sorted order.
func (p Properties) Keys() []string {
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge returns a new Properties where keys in other override keys in p.
func (p Properties) Merge(other Properties) Properties {
	merged := make(map[string]string, len(p.values)+len(other.values))
	for k, v := range p.values {
		merged[k] = v
	}
	for k, v := range other.values {
		merged[k] = v
	}
	return Properties{values: merged}
}

// Root builds the section tree for all keys.
func (p Properties) Root() *Section {
	root := newSection("", "")
	for k, v := range p.values {
		root.insert(strings.Split(k, "."), v)
	}
	return root
}

// String renders keys in order, hiding values of keys that look like secrets.
func (p Properties) String() string {
	var b strings.Builder
	for _, k := range p.Keys() {
		v := p.values[k]
		if isSecretKey(k) {
			v = "****"
		}
		fmt.Fprintf(&b, "%s=%s\n", k, v)
	}
	return b.String()
}

func isSecretKey(key string) bool {
	lower := strings.ToLower(key)
	return strings.Contains(lower, "password") || strings.Contains(lower, "secret")
}

// Loader reads .properties files from a filesystem.
type Loader struct {
	fs afero.Fs
}

// NewLoader creates a Loader over fs.
func NewLoader(fs afero.Fs) *Loader {
	return &Loader{fs: fs}
}

// LoadFile reads and parses a single file.
func (l *Loader) LoadFile(path string) (Properties, error) {
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return Properties{}, fmt.Errorf("read %s: %w", path, err)
	}
	p, err := Parse(data)
	if err != nil {
		return Properties{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Load merges the built-in defaults, then every optional file that exists, then every
// required file. Later files override earlier ones.
func (l *Loader) Load(optional, required []string) (Properties, error) {
	props := Defaults()
	for _, path := range optional {
		exists, err := afero.Exists(l.fs, path)
		if err != nil {
			return Properties{}, fmt.Errorf("stat %s: %w", path, err)
		}
		if !exists {
			continue
		}
		p, err := l.LoadFile(path)
		if err != nil {
			return Properties{}, err
		}
		props = props.Merge(p)
	}
	for _, path := range required {
		p, err := l.LoadFile(path)
		if err != nil {
			return Properties{}, err
		}
		props = props.Merge(p)
	}
	return props, nil
}
