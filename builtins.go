package tagweaver

import (
	"bytes"
	"io"
	"strconv"
	"strings"
)

// Stock tag and function implementations. UpperTransform/UpperFunc and
// RepeatDirective/RepeatFunc are natural pairs to register under one name,
// so the same name works both as markup and as a call.

// RepeatDirective renders its body count times. When the caller provides
// loop variables, the first one receives the zero-based iteration index.
type RepeatDirective struct{}

// Execute implements the Directive interface.
func (RepeatDirective) Execute(env *Environment, w io.Writer, params map[string]Value, loopVars []Value, body Body) error {
	count, err := intParam(params, "count", 1)
	if err != nil {
		return err
	}
	if body == nil {
		return nil
	}
	for i := 0; i < count; i++ {
		if len(loopVars) > 0 {
			loopVars[0] = Number(i)
		}
		if err := body(w); err != nil {
			return err
		}
	}
	return nil
}

// RepeatFunc is the function-call form of RepeatDirective.
func RepeatFunc() *TypedFunc {
	return &TypedFunc{
		Name:     "repeat",
		ArgTypes: []string{"string", "number"},
		Fn: func(args []Value) (Value, error) {
			return String(strings.Repeat(string(args[0].(String)), int(args[1].(Number)))), nil
		},
	}
}

// UpperTransform upper-cases everything streamed through it.
type UpperTransform struct{}

// Filter implements the Transform interface.
func (UpperTransform) Filter(out io.Writer, args map[string]Value) (io.Writer, error) {
	return &upperWriter{out: out}, nil
}

type upperWriter struct {
	out io.Writer
}

func (w *upperWriter) Write(p []byte) (int, error) {
	if _, err := w.out.Write(bytes.ToUpper(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// UpperFunc is the function-call form of UpperTransform.
func UpperFunc() *TypedFunc {
	return &TypedFunc{
		Name:     "upper",
		ArgTypes: []string{"string"},
		Fn: func(args []Value) (Value, error) {
			return String(strings.ToUpper(string(args[0].(String)))), nil
		},
	}
}

// intParam reads an integer tag parameter; attribute values arrive as
// strings, so numeric strings are accepted too.
func intParam(params map[string]Value, name string, def int) (int, error) {
	v, ok := params[name]
	if !ok {
		return def, nil
	}
	switch t := v.(type) {
	case Number:
		return int(t), nil
	case String:
		n, err := strconv.Atoi(strings.TrimSpace(string(t)))
		if err == nil {
			return n, nil
		}
	}
	return 0, NewUnexpectedTypeError(name, v, []string{"number"})
}
