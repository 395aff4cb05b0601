// Package sourcemapx contains utilities for passing source maps around inline,
// inside the compiled files they describe.
//
// The compiler front-end appends the source map of every output file as the
// last line of that file, in the form of a data URL:
//
//	//# sourceMappingURL=data:application/json;charset=utf-8;base64,<payload>
//
// where the "charset=utf-8;" parameter is optional and <payload> is the Base64
// encoded JSON document. Extract splits such a file into its code and parsed
// source map, Embed does the reverse.
//
// Paths in extracted maps are normalized with sourcemap.NormalizePath, so
// that lookups keyed by generated file path behave the same on every
// platform.
package sourcemapx
