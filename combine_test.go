package tagweaver

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type probeDirective struct {
	calls      int
	lastEnv    *Environment
	lastW      io.Writer
	lastParams map[string]Value
	lastLoop   []Value
	gotBody    bool
	err        error
}

func (d *probeDirective) Execute(env *Environment, w io.Writer, params map[string]Value, loopVars []Value, body Body) error {
	d.calls++
	d.lastEnv = env
	d.lastW = w
	d.lastParams = params
	d.lastLoop = loopVars
	d.gotBody = body != nil
	return d.err
}

type probeTransform struct {
	calls    int
	lastOut  io.Writer
	lastArgs map[string]Value
	err      error
}

func (t *probeTransform) Filter(out io.Writer, args map[string]Value) (io.Writer, error) {
	t.calls++
	t.lastOut = out
	t.lastArgs = args
	return out, t.err
}

type probeFunc struct {
	calls    int
	lastArgs []Value
	ret      Value
	err      error
}

func (f *probeFunc) Call(args []Value) (Value, error) {
	f.calls++
	f.lastArgs = args
	return f.ret, f.err
}

type probeSimpleFunc struct {
	probeFunc
	explainCalls int
	lastExpected []string
	explanation  []string
}

func (f *probeSimpleFunc) ExplainTypeError(expected []string) []string {
	f.explainCalls++
	f.lastExpected = expected
	return f.explanation
}

func Test_Combine(t *testing.T) {
	t.Run("should route directive and simple callable to the right delegates", func(t *testing.T) {
		dir := &probeDirective{}
		fn := &probeSimpleFunc{probeFunc: probeFunc{ret: String("ok")}, explanation: []string{"try calling it"}}

		merged, err := Combine(dir, fn)
		require.NoError(t, err)

		env := NewEnvironment(nil)
		var out bytes.Buffer
		params := map[string]Value{"a": String("x")}
		loopVars := make([]Value, 1)
		body := Body(func(io.Writer) error { return nil })

		d, ok := merged.(Directive)
		require.True(t, ok)
		require.NoError(t, d.Execute(env, &out, params, loopVars, body))
		assert.Equal(t, 1, dir.calls)
		assert.Same(t, env, dir.lastEnv)
		assert.Equal(t, params, dir.lastParams)
		assert.True(t, &loopVars[0] == &dir.lastLoop[0], "loop variables must be passed through, not copied")
		assert.True(t, dir.gotBody)
		assert.Equal(t, 0, fn.calls, "rendering must never touch the callable delegate")

		c, ok := merged.(Callable)
		require.True(t, ok)
		got, err := c.Call([]Value{Number(1)})
		require.NoError(t, err)
		assert.Equal(t, String("ok"), got)
		assert.Equal(t, 1, fn.calls)
		assert.Equal(t, []Value{Number(1)}, fn.lastArgs)
		assert.Equal(t, 1, dir.calls, "calling must never touch the directive delegate")

		ex, ok := merged.(TypeErrorExplainer)
		require.True(t, ok)
		assert.Equal(t, []string{"try calling it"}, ex.ExplainTypeError([]string{"string"}))
		assert.Equal(t, []string{"string"}, fn.lastExpected)
	})

	t.Run("should route directive and extended callable without an explainer", func(t *testing.T) {
		dir := &probeDirective{}
		fn := &probeFunc{ret: Number(7)}

		merged, err := Combine(dir, fn)
		require.NoError(t, err)

		_, ok := merged.(TypeErrorExplainer)
		assert.False(t, ok, "extended callables have no type-error explanation")

		got, err := merged.(Callable).Call([]Value{String("x")})
		require.NoError(t, err)
		assert.Equal(t, Number(7), got)
		assert.Equal(t, []Value{String("x")}, fn.lastArgs)

		require.NoError(t, merged.(Directive).Execute(nil, io.Discard, nil, nil, nil))
		assert.Equal(t, 1, dir.calls)
		assert.Equal(t, 1, fn.calls)
	})

	t.Run("should route transform and simple callable to the right delegates", func(t *testing.T) {
		tr := &probeTransform{}
		fn := &probeSimpleFunc{explanation: []string{"tip"}}

		merged, err := Combine(tr, fn)
		require.NoError(t, err)

		var out bytes.Buffer
		args := map[string]Value{"k": Number(2)}
		w, err := merged.(Transform).Filter(&out, args)
		require.NoError(t, err)
		assert.Same(t, &out, w)
		assert.Equal(t, 1, tr.calls)
		assert.Equal(t, args, tr.lastArgs)
		assert.Equal(t, 0, fn.calls)

		assert.Equal(t, []string{"tip"}, merged.(TypeErrorExplainer).ExplainTypeError([]string{"number"}))
	})

	t.Run("should route transform and extended callable", func(t *testing.T) {
		tr := &probeTransform{}
		fn := &probeFunc{ret: Bool(true)}

		merged, err := Combine(tr, fn)
		require.NoError(t, err)

		_, ok := merged.(TypeErrorExplainer)
		assert.False(t, ok)

		got, err := merged.(Callable).Call(nil)
		require.NoError(t, err)
		assert.Equal(t, Bool(true), got)
		assert.Equal(t, 0, tr.calls)
	})

	t.Run("should propagate delegate errors unchanged", func(t *testing.T) {
		execErr := errors.New("render boom")
		callErr := errors.New("call boom")
		dir := &probeDirective{err: execErr}
		fn := &probeFunc{err: callErr}

		merged, err := Combine(dir, fn)
		require.NoError(t, err)

		assert.ErrorIs(t, merged.(Directive).Execute(nil, io.Discard, nil, nil, nil), execErr)
		_, err = merged.(Callable).Call(nil)
		assert.ErrorIs(t, err, callErr)
	})

	t.Run("should fail with an internal error when the tag is not renderable", func(t *testing.T) {
		_, err := Combine(&probeFunc{}, &probeFunc{})
		require.Error(t, err)

		var internal *InternalError
		require.ErrorAs(t, err, &internal)
		assert.Contains(t, internal.Message, "function")

		var typeErr *UnexpectedTypeError
		assert.False(t, errors.As(err, &typeErr), "must be an internal error, not a type error")
	})

	t.Run("should give the same type error through the adapter as standalone", func(t *testing.T) {
		upper := UpperFunc()
		merged, err := Combine(&probeTransform{}, upper)
		require.NoError(t, err)

		_, standaloneErr := upper.Call([]Value{Number(1)})
		_, combinedErr := merged.(Callable).Call([]Value{Number(1)})
		require.Error(t, standaloneErr)
		require.Error(t, combinedErr)
		assert.Equal(t, standaloneErr.Error(), combinedErr.Error())
	})
}

func Test_Combine_Eligibility(t *testing.T) {
	dir := &probeDirective{}
	tr := &probeTransform{}
	fn := &probeFunc{}

	t.Run("should accept plain directives, transforms and callables", func(t *testing.T) {
		assert.True(t, CanCombineAsTag(dir))
		assert.True(t, CanCombineAsTag(tr))
		assert.False(t, CanCombineAsTag(fn))

		assert.True(t, CanCombineAsFunction(fn))
		assert.False(t, CanCombineAsFunction(dir))
		assert.False(t, CanCombineAsFunction(String("x")))
	})

	t.Run("should reject combined values on both axes", func(t *testing.T) {
		for _, tag := range []Value{dir, tr} {
			for _, callable := range []Callable{fn, &probeSimpleFunc{}} {
				merged, err := Combine(tag, callable)
				require.NoError(t, err)
				assert.False(t, CanCombineAsTag(merged))
				assert.False(t, CanCombineAsFunction(merged))
			}
		}
	})
}
