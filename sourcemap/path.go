package sourcemap

import "strings"

// NormalizePath converts a file path into the platform-independent form used
// for source map store keys and for the file and sources fields of extracted
// maps: backslashes become forward slashes and a leading drive letter is
// upper-cased. NormalizePath is idempotent.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	if len(p) >= 2 && p[1] == ':' && isDriveLetter(p[0]) {
		p = strings.ToUpper(p[:1]) + p[1:]
	}
	return p
}

func isDriveLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
