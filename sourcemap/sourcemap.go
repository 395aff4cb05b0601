// Package sourcemap implements the read side of version 3 source maps: the
// raw JSON document, its decoded mapping table and generated-to-original
// position lookups.
//
// The encoder side lives with the compiler and is out of scope here. Maps are
// treated as immutable once parsed, except for path normalization applied
// during extraction.
package sourcemap

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
)

// Version is the only source map format version supported.
const Version = 3

// Map is a single parsed source map document.
type Map struct {
	Version    int      `json:"version"`
	File       string   `json:"file"`
	SourceRoot string   `json:"sourceRoot,omitempty"`
	Sources    []string `json:"sources"`
	// SourcesContent entries may be null in the JSON document.
	SourcesContent []*string `json:"sourcesContent,omitempty"`
	// Names are preserved, but not interpreted.
	Names    []string `json:"names"`
	Mappings string   `json:"mappings"`
}

// Parse decodes a source map JSON document.
func Parse(data []byte) (*Map, error) {
	m := &Map{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("%w: failed to parse source map JSON: %s", ErrData, err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Map) validate() error {
	if m.Version != Version {
		return fmt.Errorf("%w: unsupported source map version %d, want %d", ErrData, m.Version, Version)
	}
	return nil
}

// Table decodes the map's mappings string.
func (m *Map) Table() (Table, error) {
	t, err := BuildTable(m.Mappings)
	if err != nil {
		return nil, fmt.Errorf("source map for %q: %w", m.File, err)
	}
	return t, nil
}

// Position is a location in a source file, as returned by lookups.
type Position struct {
	Source string `json:"source"`
	Line   int    `json:"line"`
	Col    int    `json:"col"`
}

func (p Position) String() string {
	return fmt.Sprintf("%s:%d:%d", p.Source, p.Line, p.Col)
}

// Resolve turns a table entry into an original position, looking up the
// source file name. Line and column are passed through unchanged.
func (m *Map) Resolve(e Entry) (Position, error) {
	if e.SourceIndex < 0 || e.SourceIndex >= len(m.Sources) {
		return Position{}, fmt.Errorf("%w: source index %d out of range, map %q has %d sources", ErrData, e.SourceIndex, m.File, len(m.Sources))
	}
	source := m.Sources[e.SourceIndex]
	if m.SourceRoot != "" {
		source = joinSourceRoot(m.SourceRoot, source)
	}
	return Position{Source: source, Line: e.OriginalLine, Col: e.OriginalColumn}, nil
}

// joinSourceRoot prefixes source with root. URL roots keep their "//" and are
// joined with a single '/', file system roots are joined as paths.
func joinSourceRoot(root, source string) string {
	if strings.Contains(root, "://") {
		return strings.TrimSuffix(root, "/") + "/" + strings.TrimPrefix(source, "/")
	}
	return path.Join(NormalizePath(root), source)
}

// Lookup finds the original position for a zero-based generated position.
func (m *Map) Lookup(line, col int) (Position, error) {
	t, err := m.Table()
	if err != nil {
		return Position{}, err
	}
	return t.Lookup(m, line, col)
}
