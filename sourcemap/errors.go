package sourcemap

import "errors"

// Failure kinds reported by the remapping engine. Errors returned by this
// module wrap one of them, use errors.Is to classify.
var (
	// ErrData indicates a malformed mappings string, malformed embedded JSON,
	// an empty mapping table or an unsupported source map version.
	ErrData = errors.New("invalid source map data")
	// ErrLookupMiss indicates that no source map is known for a generated file.
	ErrLookupMiss = errors.New("no source map for generated file")
	// ErrFileMissing indicates that the generated file no longer exists.
	ErrFileMissing = errors.New("generated file is missing")
)
