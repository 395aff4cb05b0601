// Package stacktrace translates captured call stacks of generated code back to
// positions in the original sources.
//
// A trace goes through three stages. Capture classifies the raw frames
// supplied by the runtime's stack introspection. Remapper.Remap rewrites the
// position of each frame using the source map of its generated file, recording
// a reason on frames it couldn't remap. Finally a filter drops frames that are
// of no interest to the user. Remapper.Trace runs all three.
package stacktrace

import (
	"github.com/gopherjs/srcmap/sourcemap"
)

// UnknownSource is the source reported by the runtime for frames without a
// known location.
const UnknownSource = "unknown"

// anonymousFunction is the name given to frames reclassified as functions.
const anonymousFunction = "<anonymous>"

// FrameType is the kind of activation a frame represents.
type FrameType string

// Frame types, in classification priority order.
const (
	TypeEval        FrameType = "eval"
	TypeNative      FrameType = "native"
	TypeConstructor FrameType = "constructor"
	TypeMethod      FrameType = "method"
	TypeFunction    FrameType = "function"
	TypeScript      FrameType = "script"
	TypeUnknown     FrameType = "unknown"
)

// RawFrame is a single frame as reported by the runtime's stack introspection,
// top of the stack first. Line and column are one-based.
type RawFrame struct {
	Source       string
	Line         int
	Col          int
	FunctionName string
	MethodName   string

	IsTopLevel    bool
	IsConstructor bool
	IsAsync       bool
	IsEval        bool
	IsNative      bool
}

// Frame is a classified, possibly remapped, stack frame.
//
// Source, Line and Col are the visible position of the frame: the generated
// position as captured, replaced by the original position once remapped.
type Frame struct {
	Source       string `json:"source"`
	Line         int    `json:"line"`
	Col          int    `json:"col"`
	FunctionName string `json:"functionName,omitempty"`
	MethodName   string `json:"methodName,omitempty"`

	IsTopLevel    bool `json:"isTopLevel,omitempty"`
	IsConstructor bool `json:"isConstructor,omitempty"`
	IsAsync       bool `json:"isAsync,omitempty"`
	IsEval        bool `json:"isEval,omitempty"`
	IsNative      bool `json:"isNative,omitempty"`

	Type FrameType `json:"type"`

	// Generated is the position as captured from the runtime.
	Generated sourcemap.Position `json:"generated"`

	// Set by a successful remapping.
	Mapped    bool   `json:"-"`
	OrgSource string `json:"org_source,omitempty"`
	OrgLine   int    `json:"org_line,omitempty"`
	OrgCol    int    `json:"org_col,omitempty"`

	// ErrMsg explains why remapping of this frame failed.
	ErrMsg string `json:"errMsg,omitempty"`
}

// Name returns a human-readable name of the frame's function.
func (f *Frame) Name() string {
	switch {
	case f.FunctionName != "":
		return f.FunctionName
	case f.MethodName != "":
		return f.MethodName
	default:
		return anonymousFunction
	}
}

func classify(r RawFrame) FrameType {
	switch {
	case r.IsEval:
		return TypeEval
	case r.IsNative:
		return TypeNative
	case r.IsConstructor:
		return TypeConstructor
	case r.MethodName != "":
		return TypeMethod
	case r.FunctionName != "":
		return TypeFunction
	case r.IsTopLevel:
		return TypeScript
	default:
		return TypeUnknown
	}
}

// Capture classifies raw frames. It has no side effects and doesn't touch
// the file system.
//
// The runtime reports calls made from inside a top-level anonymous function
// as top-level code, so two adjacent script frames can't both be genuine. The
// earlier one is turned into an anonymous function frame.
func Capture(raw []RawFrame) []*Frame {
	frames := make([]*Frame, 0, len(raw))
	for _, r := range raw {
		f := &Frame{
			Source:        r.Source,
			Line:          r.Line,
			Col:           r.Col,
			FunctionName:  r.FunctionName,
			MethodName:    r.MethodName,
			IsTopLevel:    r.IsTopLevel,
			IsConstructor: r.IsConstructor,
			IsAsync:       r.IsAsync,
			IsEval:        r.IsEval,
			IsNative:      r.IsNative,
			Type:          classify(r),
			Generated:     sourcemap.Position{Source: r.Source, Line: r.Line, Col: r.Col},
		}
		if f.Type == TypeScript {
			f.FunctionName, f.MethodName = "", ""
		}
		if n := len(frames); n > 0 && f.Type == TypeScript && frames[n-1].Type == TypeScript {
			frames[n-1].Type = TypeFunction
			frames[n-1].FunctionName = anonymousFunction
		}
		frames = append(frames, f)
	}
	return frames
}
