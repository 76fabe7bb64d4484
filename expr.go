package tagweaver

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Interpolation grammar: ${name(arg, ...)} calls a function, anything else
// is a dotted path walked through hash values.

var callRe = regexp.MustCompile(`^([A-Za-z_][\w\-.]*)\s*\((.*)\)$`)

// evalExpr evaluates the body of a ${...} interpolation.
func (st *renderState) evalExpr(expr string) (Value, error) {
	expr = strings.TrimSpace(expr)
	if m := callRe.FindStringSubmatch(expr); m != nil {
		return st.evalCall(m[1], m[2])
	}
	return st.evalPath(expr)
}

func (st *renderState) evalCall(name, argSrc string) (Value, error) {
	v, ok := st.env.lookup(name)
	if !ok {
		return nil, NewRenderError(st.pos, fmt.Sprintf("%s is undefined", name), "")
	}
	fn, ok := v.(Callable)
	if !ok {
		return nil, NewNonCallableError(name, v)
	}

	parts, err := splitArgs(argSrc)
	if err != nil {
		return nil, NewRenderError(st.pos, err.Error(), argSrc)
	}
	args := make([]Value, 0, len(parts))
	for _, part := range parts {
		arg, err := st.evalArg(part)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return fn.Call(args)
}

func (st *renderState) evalArg(src string) (Value, error) {
	src = strings.TrimSpace(src)
	if lit, ok := parseLiteral(src); ok {
		return lit, nil
	}
	return st.evalPath(src)
}

// evalPath walks a dotted path through hash values, starting from the
// variable scope (then the library for a bare name).
func (st *renderState) evalPath(path string) (Value, error) {
	segs := strings.Split(path, ".")
	v, ok := st.env.lookup(segs[0])
	if !ok {
		return nil, NewRenderError(st.pos, fmt.Sprintf("%s is undefined", segs[0]), "")
	}
	walked := segs[0]
	for _, seg := range segs[1:] {
		h, isHash := v.(Hash)
		if !isHash {
			return nil, NewNonHashError(walked, v)
		}
		next, err := h.Get(seg)
		if err != nil {
			return nil, err
		}
		if next == nil && !h.Has(seg) {
			return nil, NewRenderError(st.pos, fmt.Sprintf("%s.%s is undefined", walked, seg), "")
		}
		v = next
		walked += "." + seg
	}
	return v, nil
}

// parseLiteral recognises quoted strings, numbers and booleans.
func parseLiteral(src string) (Value, bool) {
	if len(src) >= 2 && (src[0] == '"' || src[0] == '\'') && src[len(src)-1] == src[0] {
		return String(src[1 : len(src)-1]), true
	}
	if n, err := strconv.ParseFloat(src, 64); err == nil {
		return Number(n), true
	}
	switch src {
	case "true":
		return Bool(true), true
	case "false":
		return Bool(false), true
	}
	return nil, false
}

// splitArgs splits a call argument list on top-level commas, respecting
// quoted strings.
func splitArgs(src string) ([]string, error) {
	if strings.TrimSpace(src) == "" {
		return nil, nil
	}
	var parts []string
	var cur strings.Builder
	var quote byte
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case quote != 0:
			cur.WriteByte(c)
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
			cur.WriteByte(c)
		case c == ',':
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated string literal in argument list")
	}
	parts = append(parts, cur.String())
	return parts, nil
}
