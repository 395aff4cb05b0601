package stacktrace

import (
	"fmt"
	"strings"
)

// String formats the frame the way V8 prints it: "at name (file:line:col)".
func (f *Frame) String() string {
	location := fmt.Sprintf("%s:%d:%d", f.Source, f.Line, f.Col)
	switch f.Type {
	case TypeNative:
		location = "native"
	case TypeScript, TypeUnknown:
		return "at " + location
	}

	name := f.Name()
	switch {
	case f.IsConstructor:
		name = "new " + name
	case f.IsAsync:
		name = "async " + name
	}
	return fmt.Sprintf("at %s (%s)", name, location)
}

// Format renders frames as a stack trace, one indented frame per line. In
// debug mode every line also tells whether the frame was remapped, with the
// generated position or the reason remapping failed.
func Format(frames []*Frame, debug bool) string {
	lines := make([]string, len(frames))
	for i, f := range frames {
		line := "    " + f.String()
		if debug {
			switch {
			case f.Mapped:
				line += fmt.Sprintf(" [mapped from %s]", f.Generated)
			case f.ErrMsg != "":
				line += fmt.Sprintf(" [unmapped: %s]", f.ErrMsg)
			default:
				line += " [unmapped]"
			}
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}
