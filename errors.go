package tagweaver

import (
	"fmt"
	"strings"
)

// Position represents a position in the template input.
type Position struct {
	Line   int // 1-based line number
	Column int // 1-based column number
}

// String returns a string representation of the position.
func (p Position) String() string {
	return fmt.Sprintf("line %d, column %d", p.Line, p.Column)
}

// RenderError is the base error type for rendering failures.
type RenderError struct {
	Pos     Position // Position where the error occurred
	Message string   // Error message
	Context string   // Surrounding template text for context
}

// Error implements the error interface.
func (e *RenderError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s at %s\nContext: %s", e.Message, e.Pos, e.Context)
	}
	return fmt.Sprintf("%s at %s", e.Message, e.Pos)
}

// NewRenderError creates a new RenderError with context.
func NewRenderError(pos Position, message, context string) *RenderError {
	return &RenderError{Pos: pos, Message: message, Context: snippet(context)}
}

// UnknownTagError reports markup whose tag name is not registered in the
// library, under the UnknownError policy.
type UnknownTagError struct {
	RenderError
	TagName string // Name of the unknown tag
}

// Error implements the error interface.
func (e *UnknownTagError) Error() string {
	return fmt.Sprintf("unknown tag <%s> at %s\nContext: %s", e.TagName, e.Pos, e.Context)
}

// NewUnknownTagError creates a new UnknownTagError.
func NewUnknownTagError(pos Position, tagName, context string) *UnknownTagError {
	return &UnknownTagError{
		RenderError: RenderError{
			Pos:     pos,
			Message: "tag is not registered in the library",
			Context: snippet(context),
		},
		TagName: tagName,
	}
}

// ValidationError reports that a tag's rendered output failed validation.
type ValidationError struct {
	RenderError
	TagName string // Name of the tag whose output failed validation
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for tag <%s> at %s: %s\nContext: %s",
		e.TagName, e.Pos, e.Message, e.Context)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(pos Position, tagName, message, output string) *ValidationError {
	return &ValidationError{
		RenderError: RenderError{
			Pos:     pos,
			Message: message,
			Context: snippet(output),
		},
		TagName: tagName,
	}
}

// UnexpectedTypeError reports that a value accessed through a template
// expression had the wrong runtime type.
type UnexpectedTypeError struct {
	Blamed   string   // The expression or tag that produced the value
	Actual   string   // Description of the value's actual type
	Expected []string // Type names that would have been accepted
	Tips     []string
}

// Error implements the error interface.
func (e *UnexpectedTypeError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "expected %s value, but %s evaluated to a %s",
		strings.Join(e.Expected, " or "), e.Blamed, e.Actual)
	for _, tip := range e.Tips {
		sb.WriteString("\nTip: ")
		sb.WriteString(tip)
	}
	return sb.String()
}

// NewUnexpectedTypeError creates a new UnexpectedTypeError. When the blamed
// value can explain the mismatch itself, its explanation is appended to the
// tips.
func NewUnexpectedTypeError(blamed string, actual Value, expected []string, tips ...string) *UnexpectedTypeError {
	if ex, ok := actual.(TypeErrorExplainer); ok {
		tips = append(tips, ex.ExplainTypeError(expected)...)
	}
	return &UnexpectedTypeError{
		Blamed:   blamed,
		Actual:   typeOf(actual),
		Expected: expected,
		Tips:     tips,
	}
}

// NonHashError reports that a key lookup was attempted on a value that is
// not a hash.
type NonHashError struct {
	UnexpectedTypeError
}

// NewNonHashError creates a new NonHashError blaming the given expression.
func NewNonHashError(blamed string, actual Value, tips ...string) *NonHashError {
	return &NonHashError{*NewUnexpectedTypeError(blamed, actual, []string{"hash"}, tips...)}
}

// NonCallableError reports that a call was attempted on a value that is not
// callable.
type NonCallableError struct {
	UnexpectedTypeError
}

// NewNonCallableError creates a new NonCallableError blaming the given
// expression.
func NewNonCallableError(blamed string, actual Value, tips ...string) *NonCallableError {
	return &NonCallableError{*NewUnexpectedTypeError(blamed, actual, []string{"function"}, tips...)}
}

// InternalError signals a broken invariant inside the tag library layer.
// It always indicates a programming error, never bad template input.
type InternalError struct {
	Message string
}

// Error implements the error interface.
func (e *InternalError) Error() string {
	return "internal error: " + e.Message
}

func newInternalError(format string, args ...any) *InternalError {
	return &InternalError{Message: fmt.Sprintf(format, args...)}
}

// snippet trims raw template text to a short single-line excerpt suitable
// for error context.
func snippet(s string) string {
	s = strings.ReplaceAll(s, "\n", `\n`)
	if len(s) > 80 {
		return s[:77] + "..."
	}
	return s
}
