// Package srctesting contains common helpers for unit testing source map
// decoding and remapping: building real source maps with an independent
// encoder, embedding them into compiled files and laying out multi-file
// fixtures on disk.
package srctesting

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/neelance/sourcemap"
	"golang.org/x/tools/txtar"
)

// Mapping describes a generated to original position correspondence. Unlike the
// github.com/neelance/sourcemap types, all positions are zero-based. A mapping
// with an empty Source has no original position.
type Mapping struct {
	GenLine  int
	GenCol   int
	Source   string
	OrigLine int
	OrigCol  int
	Name     string
}

// SourceMap builds a version 3 source map for the generated file using the
// github.com/neelance/sourcemap encoder. The order of Sources and Names is the
// order of first use after sorting mappings by generated position.
func SourceMap(file string, mappings ...Mapping) *sourcemap.Map {
	m := &sourcemap.Map{Version: 3, File: file}
	for _, mp := range mappings {
		encoded := &sourcemap.Mapping{
			GeneratedLine:   mp.GenLine + 1,
			GeneratedColumn: mp.GenCol,
		}
		if mp.Source != "" {
			encoded.OriginalFile = mp.Source
			encoded.OriginalLine = mp.OrigLine + 1
			encoded.OriginalColumn = mp.OrigCol
			encoded.OriginalName = mp.Name
		}
		m.AddMapping(encoded)
	}
	m.EncodeMappings()
	return m
}

// SourceMapJSON returns the JSON encoding of SourceMap(file, mappings...).
func SourceMapJSON(t *testing.T, file string, mappings ...Mapping) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := SourceMap(file, mappings...).WriteTo(buf); err != nil {
		t.Fatalf("Failed to encode test source map: %s", err)
	}
	return buf.Bytes()
}

// InlineTrailer returns the "//# sourceMappingURL=data:..." comment carrying
// mapJSON, as emitted by the compiler at the end of each output file.
func InlineTrailer(mapJSON []byte, withCharset bool) string {
	charset := ""
	if withCharset {
		charset = "charset=utf-8;"
	}
	return "//# sourceMappingURL=data:application/json;" + charset + "base64," + base64.StdEncoding.EncodeToString(mapJSON)
}

// Compiled returns generated code followed by an inline source map trailer.
func Compiled(t *testing.T, code, file string, mappings ...Mapping) string {
	t.Helper()
	if !strings.HasSuffix(code, "\n") {
		code += "\n"
	}
	return code + InlineTrailer(SourceMapJSON(t, file, mappings...), false)
}

// WriteArchive parses a txtar archive and writes its files under dir,
// creating intermediate directories. It returns the absolute paths of the
// written files in archive order.
func WriteArchive(t *testing.T, dir string, archive string) []string {
	t.Helper()
	a := txtar.Parse([]byte(archive))
	paths := make([]string, 0, len(a.Files))
	for _, f := range a.Files {
		path := filepath.Join(dir, filepath.FromSlash(f.Name))
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatalf("Failed to create fixture directory: %s", err)
		}
		if err := os.WriteFile(path, f.Data, 0o640); err != nil {
			t.Fatalf("Failed to write fixture %s: %s", f.Name, err)
		}
		paths = append(paths, path)
	}
	return paths
}
