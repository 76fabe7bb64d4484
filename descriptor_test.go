package tagweaver

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const demoDescriptor = `
library: demo
version: "1.0"
tags:
  - name: upper
    kind: transform
    impl: upperTag
  - name: repeat
    kind: directive
    impl: repeatTag
functions:
  - name: upper
    impl: upperFn
  - name: repeat
    impl: repeatFn
`

func demoImpls() map[string]Value {
	return map[string]Value{
		"upperTag":  UpperTransform{},
		"repeatTag": RepeatDirective{},
		"upperFn":   UpperFunc(),
		"repeatFn":  RepeatFunc(),
	}
}

func Test_LoadDescriptor(t *testing.T) {
	t.Run("should build a library with combined shared names", func(t *testing.T) {
		lib, err := LoadDescriptor(strings.NewReader(demoDescriptor), demoImpls())
		require.NoError(t, err)
		assert.Equal(t, "demo", lib.Name())

		if diff := cmp.Diff([]string{"repeat", "upper"}, lib.Names()); diff != "" {
			t.Errorf("unexpected names (-want +got):\n%s", diff)
		}

		upper, ok := lib.Lookup("upper")
		require.True(t, ok)
		_, isTransform := upper.(Transform)
		_, isCallable := upper.(Callable)
		assert.True(t, isTransform, "upper lost its transform role")
		assert.True(t, isCallable, "upper lost its function role")

		repeat, _ := lib.Lookup("repeat")
		_, isDirective := repeat.(Directive)
		_, isCallable = repeat.(Callable)
		assert.True(t, isDirective)
		assert.True(t, isCallable)
	})

	t.Run("should render through a descriptor-built library", func(t *testing.T) {
		lib, err := LoadDescriptor(strings.NewReader(demoDescriptor), demoImpls())
		require.NoError(t, err)

		env := NewEnvironment(lib)
		var out bytes.Buffer
		require.NoError(t, env.Process(strings.NewReader(`<upper>${upper('a')}b</upper>`), &out))
		assert.Equal(t, "AB", out.String())
	})

	t.Run("should fail on a missing implementation key", func(t *testing.T) {
		src := "library: demo\ntags:\n  - name: x\n    kind: directive\n    impl: nope\n"
		_, err := LoadDescriptor(strings.NewReader(src), demoImpls())
		require.Error(t, err)
		assert.Contains(t, err.Error(), `no implementation for key "nope"`)
	})

	t.Run("should fail when the declared kind does not match the value", func(t *testing.T) {
		src := "library: demo\ntags:\n  - name: upper\n    kind: directive\n    impl: upperTag\n"
		_, err := LoadDescriptor(strings.NewReader(src), demoImpls())
		require.Error(t, err)
		typeErr, ok := err.(*UnexpectedTypeError)
		require.True(t, ok, "expected UnexpectedTypeError, got %T: %v", err, err)
		assert.Equal(t, []string{"directive"}, typeErr.Expected)
		assert.Equal(t, "transform", typeErr.Actual)
	})

	t.Run("should fail on an unknown kind", func(t *testing.T) {
		src := "library: demo\ntags:\n  - name: upper\n    kind: widget\n    impl: upperTag\n"
		_, err := LoadDescriptor(strings.NewReader(src), demoImpls())
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown kind "widget"`)
	})

	t.Run("should fail when a function implementation is not callable", func(t *testing.T) {
		src := "library: demo\nfunctions:\n  - name: f\n    impl: data\n"
		impls := map[string]Value{"data": String("nope")}
		_, err := LoadDescriptor(strings.NewReader(src), impls)
		require.Error(t, err)
		_, ok := err.(*NonCallableError)
		require.True(t, ok, "expected NonCallableError, got %T: %v", err, err)
	})

	t.Run("should require a library name", func(t *testing.T) {
		_, err := LoadDescriptor(strings.NewReader("tags: []\n"), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing a library name")
	})
}
