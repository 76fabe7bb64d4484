package tagweaver

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Value is any value visible to a template. Behaviour comes from the
// capability interfaces below; plain data values carry none of them.
type Value any

// Hash is the key/value lookup capability. Get returns nil for a missing
// key; use Has to distinguish a missing key from a stored nil.
type Hash interface {
	Get(key string) (Value, error)
	Has(key string) bool
}

// Body renders the nested content of a tag into w.
type Body func(w io.Writer) error

// Directive is a custom tag that renders a block. params holds the named
// attributes, loopVars the positional loop variables the directive may set
// before each body run, and body the nested content (nil for self-closed
// tags).
type Directive interface {
	Execute(env *Environment, w io.Writer, params map[string]Value, loopVars []Value, body Body) error
}

// Transform is a custom tag that wraps the output writer; nested content is
// streamed through the returned writer. If the returned writer implements
// io.Closer, it is closed once the body has been rendered.
type Transform interface {
	Filter(out io.Writer, args map[string]Value) (io.Writer, error)
}

// Callable is the extended calling convention: an ordered argument list in,
// a single result out.
type Callable interface {
	Call(args []Value) (Value, error)
}

// TypeErrorExplainer is implemented by values that can explain why they
// failed a type expectation. The returned lines are attached as tips to the
// resulting UnexpectedTypeError.
type TypeErrorExplainer interface {
	ExplainTypeError(expected []string) []string
}

// SimpleCallable is the fixed-signature calling convention: a Callable that
// checks its own arguments and can explain type errors.
type SimpleCallable interface {
	Callable
	TypeErrorExplainer
}

// Func adapts a plain function to the extended calling convention.
type Func func(args []Value) (Value, error)

func (f Func) Call(args []Value) (Value, error) { return f(args) }

// ===== Concrete values =====

type String string

type Number float64

type Bool bool

// MapHash is a map-backed Hash.
type MapHash map[string]Value

func (h MapHash) Get(key string) (Value, error) {
	v, ok := h[key]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (h MapHash) Has(key string) bool {
	_, ok := h[key]
	return ok
}

// TypedFunc is a simple callable with a declared signature. Call checks
// arity and argument types before invoking Fn, so Fn can assert its
// arguments without further checks.
type TypedFunc struct {
	Name     string
	ArgTypes []string // "string", "number", "bool", "hash" or "any"
	Fn       func(args []Value) (Value, error)
}

func (f *TypedFunc) Call(args []Value) (Value, error) {
	if len(args) != len(f.ArgTypes) {
		return nil, fmt.Errorf("%s takes %d argument(s), got %d", f.Name, len(f.ArgTypes), len(args))
	}
	for i, want := range f.ArgTypes {
		if !matchesType(args[i], want) {
			blamed := fmt.Sprintf("argument %d of %s(...)", i+1, f.Name)
			return nil, NewUnexpectedTypeError(blamed, args[i], []string{want})
		}
	}
	return f.Fn(args)
}

func (f *TypedFunc) ExplainTypeError(expected []string) []string {
	return []string{fmt.Sprintf(
		"%s(%s) is a function; perhaps you meant to call it where a %s was expected",
		f.Name, strings.Join(f.ArgTypes, ", "), strings.Join(expected, " or "))}
}

func matchesType(v Value, want string) bool {
	switch want {
	case "any", "":
		return true
	case "string":
		_, ok := v.(String)
		return ok
	case "number":
		_, ok := v.(Number)
		return ok
	case "bool":
		_, ok := v.(Bool)
		return ok
	case "hash":
		_, ok := v.(Hash)
		return ok
	}
	return false
}

// typeOf describes a value's runtime type for error messages.
func typeOf(v Value) string {
	if v == nil {
		return "nil"
	}
	if isCombined(v) {
		return "combined tag+function value"
	}
	switch v.(type) {
	case String:
		return "string"
	case Number:
		return "number"
	case Bool:
		return "boolean"
	case Hash:
		return "hash"
	case Directive:
		return "directive"
	case Transform:
		return "transform"
	case Callable:
		return "function"
	}
	return fmt.Sprintf("%T", v)
}

// stringify renders a value as interpolation output.
func stringify(v Value) string {
	switch t := v.(type) {
	case nil:
		return ""
	case String:
		return string(t)
	case Number:
		return strconv.FormatFloat(float64(t), 'f', -1, 64)
	case Bool:
		if t {
			return "true"
		}
		return "false"
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprintf("%v", v)
}
