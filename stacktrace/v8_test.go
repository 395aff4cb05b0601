package stacktrace

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseV8(t *testing.T) {
	const stack = `TypeError: Cannot read properties of undefined (reading 'x')
    at Foo.bar (/work/out/app.js:10:15)
    at Foo.run [as start] (/work/out/app.js:20:3)
    at new Widget (/work/out/widget.js:3:9)
    at async load (file:///work/out/loader.js:7:1)
    at helper (/work/out/app.js:30:5)
    at Object.<anonymous> (/work/out/main.js:1:1)
    at /work/out/main.js:2:4
    at Array.forEach (native)
    at eval (eval at compile (/work/out/eval.js:4:2), <anonymous>:1:1)
    at <anonymous>
`
	want := []RawFrame{
		{Source: "/work/out/app.js", Line: 10, Col: 15, FunctionName: "Foo.bar", MethodName: "bar"},
		{Source: "/work/out/app.js", Line: 20, Col: 3, FunctionName: "Foo.run", MethodName: "start"},
		{Source: "/work/out/widget.js", Line: 3, Col: 9, FunctionName: "Widget", IsConstructor: true},
		{Source: "/work/out/loader.js", Line: 7, Col: 1, FunctionName: "load", IsAsync: true},
		{Source: "/work/out/app.js", Line: 30, Col: 5, FunctionName: "helper"},
		{Source: "/work/out/main.js", Line: 1, Col: 1, IsTopLevel: true},
		{Source: "/work/out/main.js", Line: 2, Col: 4, IsTopLevel: true},
		{Source: "native", FunctionName: "Array.forEach", MethodName: "forEach", IsNative: true},
		{Source: "/work/out/eval.js", Line: 4, Col: 2, FunctionName: "eval", IsEval: true},
		{Source: UnknownSource, IsTopLevel: true},
	}

	got := ParseV8(stack)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseV8() returned diff (-want,+got):\n%s", diff)
	}

	types := []FrameType{}
	for _, f := range Capture(got) {
		types = append(types, f.Type)
	}
	wantTypes := []FrameType{
		TypeMethod, TypeMethod, TypeConstructor, TypeFunction, TypeFunction,
		TypeFunction, TypeScript, TypeNative, TypeEval, TypeScript,
	}
	if diff := cmp.Diff(wantTypes, types); diff != "" {
		t.Errorf("Classified frame types differ (-want,+got):\n%s", diff)
	}
}

func TestParseV8Empty(t *testing.T) {
	if got := ParseV8("Error: boom"); len(got) != 0 {
		t.Errorf("Got: %d frames from a message without frames. Want: 0.", len(got))
	}
}
