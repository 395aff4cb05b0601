package stacktrace

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// at [new |async ]name (location)
	// at location
	v8FramePattern = regexp.MustCompile(`^at\s+(?:(new|async)\s+)?(?:(.+?)\s+\((.*)\)|(.+))$`)
	// file:line:column
	v8LocationPattern = regexp.MustCompile(`^(.*):(\d+):(\d+)$`)
	// The call site of eval: "eval at name (file:line:column), <anonymous>:line:column".
	v8EvalOriginPattern = regexp.MustCompile(`\(([^()]*):(\d+):(\d+)\)`)
	// Method alias: "Type.method [as alias]".
	v8AliasPattern = regexp.MustCompile(`^(.*?)\s+\[as ([^\]]+)\]$`)
)

// ParseV8 extracts raw frames from a V8-style stack trace, as found in the
// "stack" property of errors thrown by generated JavaScript code. Lines that
// don't look like frames, such as the error message, are skipped.
func ParseV8(stack string) []RawFrame {
	var frames []RawFrame
	for _, line := range strings.Split(stack, "\n") {
		if f, ok := parseV8Line(strings.TrimSpace(line)); ok {
			frames = append(frames, f)
		}
	}
	return frames
}

func parseV8Line(line string) (RawFrame, bool) {
	match := v8FramePattern.FindStringSubmatch(line)
	if match == nil {
		return RawFrame{}, false
	}
	f := RawFrame{
		IsConstructor: match[1] == "new",
		IsAsync:       match[1] == "async",
	}

	name, location := match[2], match[3]
	if match[4] != "" {
		location = match[4]
	}
	setLocation(&f, location)
	setName(&f, name)
	return f, true
}

func setLocation(f *RawFrame, location string) {
	f.Source = UnknownSource
	switch {
	case location == "native":
		f.IsNative = true
		f.Source = "native"
	case strings.HasPrefix(location, "eval at "):
		f.IsEval = true
		if m := v8EvalOriginPattern.FindStringSubmatch(location); m != nil {
			f.Source, f.Line, f.Col = m[1], atoi(m[2]), atoi(m[3])
		}
	default:
		if m := v8LocationPattern.FindStringSubmatch(location); m != nil && m[1] != "<anonymous>" {
			f.Source, f.Line, f.Col = strings.TrimPrefix(m[1], "file://"), atoi(m[2]), atoi(m[3])
		}
	}
}

func setName(f *RawFrame, name string) {
	if m := v8AliasPattern.FindStringSubmatch(name); m != nil {
		name = m[1]
		f.MethodName = m[2]
	}
	if name == "" || name == anonymousFunction || strings.HasSuffix(name, "."+anonymousFunction) {
		// Top-level code of a script or module.
		f.IsTopLevel = !f.IsConstructor && f.MethodName == ""
		return
	}
	f.FunctionName = name
	if i := strings.LastIndexByte(name, '.'); i != -1 && f.MethodName == "" && !f.IsConstructor {
		f.MethodName = name[i+1:]
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
