package tagweaver

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Environment renders template text against a tag library and a variable
// scope. It adds no synchronization of its own: rendering state lives on
// the stack, so an Environment is safe for sequential reuse, and for
// concurrent use only insofar as the registered values are.
type Environment struct {
	lib        *TagLibrary
	policy     UnknownTagPolicy
	logger     *zap.Logger
	vars       MapHash
	validators *ValidatorRegistry
}

// NewEnvironment creates an Environment over a tag library.
func NewEnvironment(lib *TagLibrary, opts ...func(*Environment)) *Environment {
	e := &Environment{
		lib:        lib,
		policy:     UnknownCopy,
		logger:     zap.NewNop(),
		vars:       MapHash{},
		validators: NewValidatorRegistry(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// WithUnknownPolicy sets the unknown-tag policy.
func WithUnknownPolicy(p UnknownTagPolicy) func(*Environment) {
	return func(e *Environment) { e.policy = p }
}

// WithLogger attaches a logger for rendering diagnostics.
func WithLogger(logger *zap.Logger) func(*Environment) {
	return func(e *Environment) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithVars seeds the top-level variable scope.
func WithVars(vars MapHash) func(*Environment) {
	return func(e *Environment) {
		for k, v := range vars {
			e.vars[k] = v
		}
	}
}

// SetVar sets a top-level template variable.
func (e *Environment) SetVar(name string, v Value) { e.vars[name] = v }

// RegisterRegexValidator registers a regex validator for a tag's rendered
// output.
func (e *Environment) RegisterRegexValidator(tagName, pattern, description string) error {
	return e.validators.RegisterRegex(tagName, pattern, description)
}

// RegisterFuncValidator registers a custom validation function for a tag's
// rendered output.
func (e *Environment) RegisterFuncValidator(tagName string, validateFunc func(string, string, Position) error) {
	e.validators.RegisterFunc(tagName, validateFunc)
}

// lookup resolves a bare name: variables first, then the tag library.
func (e *Environment) lookup(name string) (Value, bool) {
	if v, ok := e.vars[name]; ok {
		return v, true
	}
	if e.lib != nil {
		if v, ok := e.lib.Lookup(name); ok {
			return v, true
		}
	}
	return nil, false
}

var (
	// Complete start tag: <Name attrs...> with name [A-Za-z][\w.-:]*.
	xmlStartRe = regexp.MustCompile(`(?s)<([A-Za-z][\w\.\-:]*)\b[^>]*>`)
	// Self-closed tag: <Name ... />
	xmlSelfCloseRe = regexp.MustCompile(`(?s)^<([A-Za-z][\w\.\-:]*)\b[^>]*/\s*>$`)
)

// renderState carries per-Process bookkeeping so an Environment can be
// reused across inputs.
type renderState struct {
	env *Environment
	pos Position
}

// Process streams template text from r, writing rendered output to w. It
// keeps rendering as long as the buffer holds a complete construct, and at
// EOF it drains whatever remains.
func (e *Environment) Process(r io.Reader, w io.Writer) error {
	st := &renderState{env: e, pos: Position{Line: 1, Column: 1}}
	br := bufio.NewReader(r)
	var buf bytes.Buffer

	for {
		chunk := make([]byte, 4096)
		n, err := br.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			for {
				progress, perr := st.renderNext(&buf, w, false)
				if perr != nil {
					return perr
				}
				if !progress {
					break
				}
			}
		}
		if err == io.EOF {
			for {
				progress, perr := st.renderNext(&buf, w, true)
				if perr != nil {
					return perr
				}
				if !progress {
					break
				}
			}
			// Whatever is still buffered was held back waiting for more
			// input; at EOF it is literal text.
			if buf.Len() > 0 {
				if _, werr := w.Write(buf.Bytes()); werr != nil {
					return werr
				}
				st.consume(&buf, buf.Len())
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// renderFragment renders a raw slice of template text (a tag body) into w.
// Nested markup behaves exactly as top-level markup.
func (e *Environment) renderFragment(raw []byte, w io.Writer) error {
	st := &renderState{env: e, pos: Position{Line: 1, Column: 1}}
	buf := bytes.NewBuffer(raw)
	for {
		progress, err := st.renderNext(buf, w, true)
		if err != nil {
			return err
		}
		if !progress {
			break
		}
	}
	if buf.Len() > 0 {
		if _, err := w.Write(buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// renderNext renders the next complete construct at the start of the
// buffer. It reports whether it made progress; no progress and no error
// means more input is needed (or, at EOF, that the remainder is literal).
func (st *renderState) renderNext(buf *bytes.Buffer, w io.Writer, atEOF bool) (bool, error) {
	b := buf.Bytes()
	if len(b) == 0 {
		return false, nil
	}

	// 1) ${...} interpolation
	if bytes.HasPrefix(b, []byte("${")) {
		end := bytes.IndexByte(b, '}')
		if end == -1 {
			return false, nil
		}
		val, err := st.evalExpr(string(b[2:end]))
		if err != nil {
			return false, err
		}
		if _, werr := io.WriteString(w, stringify(val)); werr != nil {
			return false, werr
		}
		st.consume(buf, end+1)
		return true, nil
	}

	// 2) markup element at buffer start
	if b[0] == '<' {
		if len(b) > 1 && isNameStart(b[1]) {
			if m := xmlStartRe.FindIndex(b); m != nil && m[0] == 0 {
				return st.renderElement(buf, w, atEOF)
			}
			if !atEOF && bytes.IndexByte(b, '>') == -1 {
				// start tag may still be arriving
				return false, nil
			}
		}
		if len(b) == 1 && !atEOF {
			return false, nil
		}
		// a '<' that opens no element is literal text
		if _, err := w.Write(b[:1]); err != nil {
			return false, err
		}
		st.consume(buf, 1)
		return true, nil
	}

	// 3) plain text up to the next construct
	next := len(b)
	if i := bytes.IndexByte(b, '<'); i >= 0 && i < next {
		next = i
	}
	if i := bytes.Index(b, []byte("${")); i >= 0 && i < next {
		next = i
	}
	if next == len(b) && !atEOF && b[len(b)-1] == '$' {
		// hold back a trailing '$' that may begin ${...} in the next chunk
		next--
	}
	if next == 0 {
		return false, nil
	}
	if _, err := w.Write(b[:next]); err != nil {
		return false, err
	}
	st.consume(buf, next)
	return true, nil
}

// renderElement handles a buffer that starts with a complete start tag.
func (st *renderState) renderElement(buf *bytes.Buffer, w io.Writer, atEOF bool) (bool, error) {
	b := buf.Bytes()
	name := string(xmlStartRe.FindSubmatch(b)[1])
	startEnd := nextTagEnd(b)

	selfClosed := xmlSelfCloseRe.Match(b[:startEnd])
	extent := startEnd
	if !selfClosed {
		end, full := findBalancedElement(b, name)
		if full {
			extent = end
		} else {
			extent = 0
		}
	}

	var value Value
	known := false
	if st.env.lib != nil {
		value, known = st.env.lib.Lookup(name)
	}
	if !known {
		return st.renderUnknown(buf, w, atEOF, name, startEnd, extent)
	}
	if extent == 0 {
		if atEOF {
			return false, NewRenderError(st.pos, fmt.Sprintf("element <%s> is never closed", name), string(b))
		}
		return false, nil
	}

	raw := make([]byte, extent)
	copy(raw, b[:extent])
	params, err := st.parseAttrs(raw[:startEnd])
	if err != nil {
		return false, err
	}

	var body Body
	if !selfClosed {
		closeStart := bytes.LastIndex(raw, []byte("</"))
		inner := raw[startEnd:closeStart]
		body = func(bw io.Writer) error { return st.env.renderFragment(inner, bw) }
	}

	st.consume(buf, extent)
	return true, st.dispatch(w, name, value, params, body)
}

// renderUnknown applies the unknown-tag policy to an element whose name is
// not in the library. startEnd is the extent of the start tag, extent the
// extent of the whole element (0 when its end has not arrived yet).
func (st *renderState) renderUnknown(buf *bytes.Buffer, w io.Writer, atEOF bool, name string, startEnd, extent int) (bool, error) {
	b := buf.Bytes()
	switch st.env.policy {
	case UnknownError:
		return false, NewUnknownTagError(st.pos, name, string(b[:startEnd]))
	case UnknownDrop:
		if extent > 0 {
			st.env.logger.Debug("dropping unknown tag", zap.String("tag", name))
			st.consume(buf, extent)
			return true, nil
		}
		if atEOF {
			st.env.logger.Debug("dropping unclosed unknown tag", zap.String("tag", name))
			st.consume(buf, len(b))
			return true, nil
		}
		return false, nil
	default:
		// UnknownCopy: the start tag is literal output; the body and the
		// closing tag are rendered as ordinary template text.
		if _, err := w.Write(b[:startEnd]); err != nil {
			return false, err
		}
		st.consume(buf, startEnd)
		return true, nil
	}
}

// dispatch routes a parsed element to the registered value's renderable
// capability. Errors from the delegates pass through unchanged.
func (st *renderState) dispatch(w io.Writer, name string, value Value, params map[string]Value, body Body) error {
	out := w
	var capture *bytes.Buffer
	if st.env.validators.has(name) {
		capture = &bytes.Buffer{}
		out = capture
	}

	switch v := value.(type) {
	case Directive:
		if err := v.Execute(st.env, out, params, nil, body); err != nil {
			return err
		}
	case Transform:
		fw, err := v.Filter(out, params)
		if err != nil {
			return err
		}
		if body != nil {
			if err := body(fw); err != nil {
				return err
			}
		}
		if c, ok := fw.(io.Closer); ok {
			if err := c.Close(); err != nil {
				return err
			}
		}
	default:
		return NewUnexpectedTypeError("<"+name+">", value, []string{"directive", "transform"})
	}

	if capture != nil {
		if err := st.env.validators.ValidateOutput(name, capture.String(), st.pos); err != nil {
			return err
		}
		if _, err := w.Write(capture.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// parseAttrs decodes the attributes of a start tag into parameter values.
// An attribute of the exact shape ${expr} is evaluated; anything else stays
// a string.
func (st *renderState) parseAttrs(startTag []byte) (map[string]Value, error) {
	dec := xml.NewDecoder(bytes.NewReader(startTag))
	tok, err := dec.Token()
	if err != nil {
		return nil, NewRenderError(st.pos, fmt.Sprintf("malformed tag: %v", err), string(startTag))
	}
	se, ok := tok.(xml.StartElement)
	if !ok {
		return nil, NewRenderError(st.pos, "expected element start", string(startTag))
	}
	params := make(map[string]Value, len(se.Attr))
	for _, attr := range se.Attr {
		v, err := st.attrValue(attr.Value)
		if err != nil {
			return nil, err
		}
		params[attr.Name.Local] = v
	}
	return params, nil
}

func (st *renderState) attrValue(s string) (Value, error) {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return st.evalExpr(s[2 : len(s)-1])
	}
	return String(s), nil
}

// consume advances the buffer and the line/column tracker together.
func (st *renderState) consume(buf *bytes.Buffer, n int) {
	for _, c := range buf.Next(n) {
		if c == '\n' {
			st.pos.Line++
			st.pos.Column = 1
		} else {
			st.pos.Column++
		}
	}
}

// ===== scanning helpers =====

func isNameStart(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z'
}

func isNameChar(c byte) bool {
	return isNameStart(c) || c >= '0' && c <= '9' || c == '_' || c == '.' || c == '-' || c == ':'
}

// nextTagEnd returns the index just past the '>' of the tag that starts at
// b[0], or 0 if the tag is still incomplete.
func nextTagEnd(b []byte) int {
	if len(b) == 0 || b[0] != '<' {
		return 0
	}
	i := bytes.IndexByte(b, '>')
	if i < 0 {
		return 0
	}
	return i + 1
}

// findBalancedElement finds the index just past the closing </name> that
// balances the element starting at b[0]. Nested elements with the same name
// are counted.
func findBalancedElement(b []byte, name string) (end int, ok bool) {
	openTag := []byte("<" + name)
	closeTag := []byte("</" + name)
	count := 0
	i := 0
	for i < len(b) {
		o := indexTag(b[i:], openTag)
		c := indexTag(b[i:], closeTag)
		if o == -1 && c == -1 {
			return 0, false
		}
		if o != -1 && (c == -1 || o < c) {
			j := i + o
			k := bytes.IndexByte(b[j:], '>')
			if k == -1 {
				return 0, false
			}
			count++
			i = j + k + 1
			continue
		}
		j := i + c
		k := bytes.IndexByte(b[j:], '>')
		if k == -1 {
			return 0, false
		}
		count--
		i = j + k + 1
		if count == 0 {
			return i, true
		}
	}
	return 0, false
}

// indexTag finds tag in b, requiring that the name is not a prefix of a
// longer name (so "<up" does not match "<upper").
func indexTag(b, tag []byte) int {
	from := 0
	for {
		i := bytes.Index(b[from:], tag)
		if i == -1 {
			return -1
		}
		at := from + i
		rest := at + len(tag)
		if rest >= len(b) || !isNameChar(b[rest]) {
			return at
		}
		from = at + 1
	}
}
