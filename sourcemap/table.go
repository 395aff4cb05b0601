package sourcemap

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gopherjs/srcmap/internal/vlq"
)

// NoName is the Entry.NameIndex value for segments without a name field.
const NoName = -1

// Entry is a single decoded mapping. All positions are zero-based.
type Entry struct {
	GeneratedLine   int
	GeneratedColumn int
	SourceIndex     int
	OriginalLine    int
	OriginalColumn  int
	// NameIndex is an index into Map.Names or NoName.
	NameIndex int
}

func (e Entry) before(line, col int) bool {
	return e.GeneratedLine < line || (e.GeneratedLine == line && e.GeneratedColumn < col)
}

// Table is the list of all mappings of a source map, in the order they are
// encoded. Encoders emit generated positions in non-decreasing order, and
// Locate relies on it.
type Table []Entry

// BuildTable decodes a complete mappings string.
//
// Only the generated column is reset at the start of each generated line;
// source index, original line, original column and name index are relative to
// the previous segment regardless of the line it was on. Segments with a
// single field produce an entry at the current accumulator state.
func BuildTable(mappings string) (Table, error) {
	var (
		table Table
		// generated column, source index, original line, original column, name index.
		acc [5]int
	)
	for line, group := range strings.Split(mappings, ";") {
		acc[0] = 0
		segments, err := vlq.DecodeLine(group)
		if err != nil {
			return nil, fmt.Errorf("%w: generated line %d: %s", ErrData, line, err)
		}
		for _, fields := range segments {
			for i, delta := range fields {
				acc[i] += delta
			}
			name := NoName
			if len(fields) == 5 {
				name = acc[4]
			}
			table = append(table, Entry{
				GeneratedLine:   line,
				GeneratedColumn: acc[0],
				SourceIndex:     acc[1],
				OriginalLine:    acc[2],
				OriginalColumn:  acc[3],
				NameIndex:       name,
			})
		}
	}
	return table, nil
}

// Locate returns the entry for a zero-based generated position: the exact
// match if there is one, otherwise the closest entry before it. A position
// preceding every entry resolves to the first entry and a position past the
// end resolves to the last one.
func (t Table) Locate(line, col int) (Entry, error) {
	if len(t) == 0 {
		return Entry{}, fmt.Errorf("%w: empty mapping table", ErrData)
	}
	pos := sort.Search(len(t), func(i int) bool { return !t[i].before(line, col) })
	switch {
	case pos == len(t):
		return t[len(t)-1], nil
	case t[pos].GeneratedLine == line && t[pos].GeneratedColumn == col:
		return t[pos], nil
	case pos == 0:
		return t[0], nil
	default:
		return t[pos-1], nil
	}
}

// Lookup locates a zero-based generated position and resolves it against m.
func (t Table) Lookup(m *Map, line, col int) (Position, error) {
	e, err := t.Locate(line, col)
	if err != nil {
		return Position{}, err
	}
	return m.Resolve(e)
}
