package sourcemapx

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/gopherjs/srcmap/sourcemap"
)

const (
	commentPrefix = "//# sourceMappingURL="
	dataURLPrefix = "data:application/json;"
)

// trailerPattern matches everything that follows commentPrefix in an inline
// source map comment, up to the end of the file.
var trailerPattern = regexp.MustCompile(`^data:application/json;(?:charset=utf-8;)?base64,(\S*)\s*$`)

// Extract splits the compiled text into code and the source map embedded in
// its trailing comment.
//
// If the text doesn't end with an inline source map comment, it is returned
// unchanged with a nil map and no error. Malformed Base64 or JSON payloads are
// reported as sourcemap.ErrData.
//
// The map's file is rewritten from ".tsx" to ".ts": the compiler may label an
// output as .tsx internally, but only ever writes .ts files. The file and
// every sources entry are normalized with sourcemap.NormalizePath.
func Extract(text string) (code string, m *sourcemap.Map, err error) {
	idx := strings.LastIndex(text, commentPrefix)
	if idx == -1 {
		return text, nil, nil
	}
	match := trailerPattern.FindStringSubmatch(text[idx+len(commentPrefix):])
	if match == nil {
		return text, nil, nil
	}

	payload, err := base64.StdEncoding.DecodeString(match[1])
	if err != nil {
		return text, nil, fmt.Errorf("%w: failed to decode inline source map: %s", sourcemap.ErrData, err)
	}
	m, err = sourcemap.Parse(payload)
	if err != nil {
		return text, nil, fmt.Errorf("inline source map: %w", err)
	}
	normalize(m)
	return text[:idx], m, nil
}

func normalize(m *sourcemap.Map) {
	if strings.HasSuffix(m.File, ".tsx") {
		m.File = strings.TrimSuffix(m.File, ".tsx") + ".ts"
	}
	m.File = sourcemap.NormalizePath(m.File)
	for i, source := range m.Sources {
		m.Sources[i] = sourcemap.NormalizePath(source)
	}
}

// HasTrailer reports whether the compiled text ends with an inline source map
// comment, without decoding it.
func HasTrailer(text string) bool {
	idx := strings.LastIndex(text, commentPrefix)
	return idx != -1 && trailerPattern.MatchString(text[idx+len(commentPrefix):])
}

// Embed appends m to code as an inline source map comment. A newline is
// inserted between the code and the comment if code doesn't end with one.
func Embed(code string, m *sourcemap.Map) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode source map for %q: %w", m.File, err)
	}
	b := &strings.Builder{}
	b.WriteString(code)
	if code != "" && !strings.HasSuffix(code, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString(commentPrefix)
	b.WriteString(dataURLPrefix)
	b.WriteString("charset=utf-8;base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	b.WriteByte('\n')
	return b.String(), nil
}
