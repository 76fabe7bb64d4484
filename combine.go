package tagweaver

import "io"

// A tag library may register a custom tag and a function under the same
// name. Template markup has a single namespace, so both roles must be
// answered by one value; Combine builds that value.

// Combine merges a custom tag (a Directive or a Transform) and a function
// into a single value exposing both capability sets. Every invocation is
// routed to the sub-value that implements it; errors from the delegates
// pass through unchanged.
//
// A tag satisfying neither renderable capability is a programming error in
// the caller and yields an *InternalError naming the offending type.
func Combine(tag Value, fn Callable) (Value, error) {
	switch t := tag.(type) {
	case Directive:
		if sc, ok := fn.(SimpleCallable); ok {
			return &directiveAndSimpleCallable{dir: t, fn: sc}, nil
		}
		return &directiveAndCallable{dir: t, fn: fn}, nil
	case Transform:
		if sc, ok := fn.(SimpleCallable); ok {
			return &transformAndSimpleCallable{tr: t, fn: sc}, nil
		}
		return &transformAndCallable{tr: t, fn: fn}, nil
	default:
		return nil, newInternalError("cannot combine %s as a custom tag: neither a directive nor a transform", typeOf(tag))
	}
}

// CanCombineAsTag tells if v can be used as the tag argument of Combine.
func CanCombineAsTag(v Value) bool {
	if isCombined(v) {
		return false
	}
	switch v.(type) {
	case Directive, Transform:
		return true
	}
	return false
}

// CanCombineAsFunction tells if v can be used as the function argument of
// Combine.
func CanCombineAsFunction(v Value) bool {
	if isCombined(v) {
		return false
	}
	_, ok := v.(Callable)
	return ok
}

// combinedValue marks the adapters produced by Combine, so that a combined
// value is never fed back in as an input of a later Combine call. Nothing
// outside this package can satisfy it.
type combinedValue interface{ combinedValue() }

func isCombined(v Value) bool {
	_, ok := v.(combinedValue)
	return ok
}

type directiveAndSimpleCallable struct {
	dir Directive
	fn  SimpleCallable
}

func (c *directiveAndSimpleCallable) combinedValue() {}

func (c *directiveAndSimpleCallable) Execute(env *Environment, w io.Writer, params map[string]Value, loopVars []Value, body Body) error {
	return c.dir.Execute(env, w, params, loopVars, body)
}

func (c *directiveAndSimpleCallable) Call(args []Value) (Value, error) {
	return c.fn.Call(args)
}

func (c *directiveAndSimpleCallable) ExplainTypeError(expected []string) []string {
	return c.fn.ExplainTypeError(expected)
}

type directiveAndCallable struct {
	dir Directive
	fn  Callable
}

func (c *directiveAndCallable) combinedValue() {}

func (c *directiveAndCallable) Execute(env *Environment, w io.Writer, params map[string]Value, loopVars []Value, body Body) error {
	return c.dir.Execute(env, w, params, loopVars, body)
}

func (c *directiveAndCallable) Call(args []Value) (Value, error) {
	return c.fn.Call(args)
}

type transformAndSimpleCallable struct {
	tr Transform
	fn SimpleCallable
}

func (c *transformAndSimpleCallable) combinedValue() {}

func (c *transformAndSimpleCallable) Filter(out io.Writer, args map[string]Value) (io.Writer, error) {
	return c.tr.Filter(out, args)
}

func (c *transformAndSimpleCallable) Call(args []Value) (Value, error) {
	return c.fn.Call(args)
}

func (c *transformAndSimpleCallable) ExplainTypeError(expected []string) []string {
	return c.fn.ExplainTypeError(expected)
}

type transformAndCallable struct {
	tr Transform
	fn Callable
}

func (c *transformAndCallable) combinedValue() {}

func (c *transformAndCallable) Filter(out io.Writer, args map[string]Value) (io.Writer, error) {
	return c.tr.Filter(out, args)
}

func (c *transformAndCallable) Call(args []Value) (Value, error) {
	return c.fn.Call(args)
}
