package stacktrace

import (
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/gopherjs/srcmap/build/mapstore"
	"github.com/gopherjs/srcmap/sourcemap"
)

// MapSource provides source maps and their decoded tables by generated file
// path. *mapstore.Store implements it.
type MapSource interface {
	Get(path string) (*sourcemap.Map, error)
	Table(path string) (sourcemap.Table, error)
}

// Resolver answers original position queries for generated files.
type Resolver struct {
	Maps MapSource
	// Stat is used to check that the generated file still exists. Defaults to
	// os.Stat.
	Stat func(name string) (os.FileInfo, error)
}

// Resolve returns the original position for a zero-based generated line and
// column. Errors wrap sourcemap.ErrFileMissing, sourcemap.ErrLookupMiss or
// sourcemap.ErrData.
func (r *Resolver) Resolve(path string, line, col int) (sourcemap.Position, error) {
	stat := r.Stat
	if stat == nil {
		stat = os.Stat
	}
	if _, err := stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return sourcemap.Position{}, fmt.Errorf("%w: %s", sourcemap.ErrFileMissing, path)
		}
		return sourcemap.Position{}, fmt.Errorf("%w: %s: %s", sourcemap.ErrFileMissing, path, err)
	}
	m, err := r.Maps.Get(path)
	if err != nil {
		return sourcemap.Position{}, err
	}
	t, err := r.Maps.Table(path)
	if err != nil {
		return sourcemap.Position{}, err
	}
	pos, err := t.Lookup(m, line, col)
	if err != nil {
		return sourcemap.Position{}, fmt.Errorf("%s:%d:%d: %w", path, line, col, err)
	}
	return pos, nil
}

// Remapper rewrites frame positions from generated to original sources.
type Remapper struct {
	Resolver *Resolver
	// Filter selects the frames returned by Trace. Defaults to DefaultFilter.
	Filter func(f *Frame) bool
	// Internal lists generated files of the tracing machinery itself, which
	// DefaultFilter hides from traces.
	Internal []string
}

// Remap resolves the original position of every frame in place. Frames with
// an unknown source and native frames are left alone. A frame that can't be remapped keeps its
// generated position and gets an ErrMsg, the rest of the frames are remapped
// regardless. Remap must be called at most once for a given frame.
func (rm *Remapper) Remap(frames []*Frame) {
	for _, f := range frames {
		if f.Source == UnknownSource || f.Type == TypeNative {
			continue
		}
		if err := rm.remapFrame(f); err != nil {
			log.Debugf("Failed to remap frame %s at %s:%d:%d: %v", f.Name(), f.Source, f.Line, f.Col, err)
			f.ErrMsg = err.Error()
		}
	}
}

func (rm *Remapper) remapFrame(f *Frame) error {
	if f.Line < 1 || f.Col < 1 {
		return fmt.Errorf("%w: frame has no position (%d:%d)", sourcemap.ErrData, f.Line, f.Col)
	}
	// The runtime reports one-based positions, source maps are zero-based.
	pos, err := rm.Resolver.Resolve(f.Source, f.Line-1, f.Col-1)
	if err != nil {
		return err
	}
	f.Mapped = true
	f.OrgSource, f.OrgLine, f.OrgCol = pos.Source, pos.Line+1, pos.Col+1
	f.Source, f.Line, f.Col = f.OrgSource, f.OrgLine, f.OrgCol
	return nil
}

// DefaultFilter drops frames with an unknown source and frames internal to
// the remapper.
func (rm *Remapper) DefaultFilter(f *Frame) bool {
	if f.Source == UnknownSource {
		return false
	}
	for _, internal := range rm.Internal {
		internal = mapstore.Key(internal)
		if mapstore.Key(f.Generated.Source) == internal || mapstore.Key(f.Source) == internal {
			return false
		}
	}
	return true
}

// Trace classifies, remaps and filters raw frames captured at a call site.
func (rm *Remapper) Trace(raw []RawFrame) []*Frame {
	frames := Capture(raw)
	rm.Remap(frames)

	keep := rm.Filter
	if keep == nil {
		keep = rm.DefaultFilter
	}
	result := frames[:0]
	for _, f := range frames {
		if keep(f) {
			result = append(result, f)
		}
	}
	return result
}

// Caller returns the frame that called the function which captured the trace.
// Frame 0 is the capturing call site itself.
func Caller(frames []*Frame) (*Frame, bool) {
	if len(frames) < 2 {
		return nil, false
	}
	return frames[1], true
}

// OutsideCaller returns the first frame that is in a different source file
// than frame 0, skipping helpers in the same file as the capturing call site.
func OutsideCaller(frames []*Frame) (*Frame, bool) {
	if len(frames) == 0 {
		return nil, false
	}
	for _, f := range frames[1:] {
		if f.Source != frames[0].Source {
			return f, true
		}
	}
	return nil, false
}
