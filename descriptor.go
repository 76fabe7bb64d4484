package tagweaver

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Descriptor is the YAML shape of a tag library descriptor. Tags and
// functions may share a name; such pairs are merged into a single dual-role
// value at load time.
type Descriptor struct {
	Library   string               `yaml:"library"`
	Version   string               `yaml:"version"`
	Tags      []TagDescriptor      `yaml:"tags"`
	Functions []FunctionDescriptor `yaml:"functions"`
}

// TagDescriptor declares a custom tag.
type TagDescriptor struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"` // "directive", "transform", or empty for either
	Impl string `yaml:"impl"`
}

// FunctionDescriptor declares a function.
type FunctionDescriptor struct {
	Name string `yaml:"name"`
	Impl string `yaml:"impl"`
}

// LoadDescriptor reads a YAML descriptor from r and resolves each declared
// entry against impls, a map from impl key to the Go value implementing it.
// Name collisions between a tag and a function are combined by the library.
func LoadDescriptor(r io.Reader, impls map[string]Value, opts ...func(*TagLibrary)) (*TagLibrary, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("tagweaver: parsing descriptor: %w", err)
	}
	if d.Library == "" {
		return nil, fmt.Errorf("tagweaver: descriptor is missing a library name")
	}

	lib := NewTagLibrary(d.Library, opts...)
	for _, tag := range d.Tags {
		impl, ok := impls[tag.Impl]
		if !ok {
			return nil, fmt.Errorf("tagweaver: tag %q: no implementation for key %q", tag.Name, tag.Impl)
		}
		if err := checkTagKind(tag, impl); err != nil {
			return nil, err
		}
		if err := lib.RegisterTag(tag.Name, impl); err != nil {
			return nil, err
		}
	}
	for _, fn := range d.Functions {
		impl, ok := impls[fn.Impl]
		if !ok {
			return nil, fmt.Errorf("tagweaver: function %q: no implementation for key %q", fn.Name, fn.Impl)
		}
		callable, ok := impl.(Callable)
		if !ok {
			return nil, NewNonCallableError(fmt.Sprintf("function %q (impl %q)", fn.Name, fn.Impl), impl)
		}
		if err := lib.RegisterFunction(fn.Name, callable); err != nil {
			return nil, err
		}
	}
	return lib, nil
}

func checkTagKind(tag TagDescriptor, impl Value) error {
	blamed := fmt.Sprintf("tag %q (impl %q)", tag.Name, tag.Impl)
	switch tag.Kind {
	case "directive":
		if _, ok := impl.(Directive); !ok {
			return NewUnexpectedTypeError(blamed, impl, []string{"directive"})
		}
	case "transform":
		if _, ok := impl.(Transform); !ok {
			return NewUnexpectedTypeError(blamed, impl, []string{"transform"})
		}
	case "":
		switch impl.(type) {
		case Directive, Transform:
		default:
			return NewUnexpectedTypeError(blamed, impl, []string{"directive", "transform"})
		}
	default:
		return fmt.Errorf("tagweaver: tag %q has unknown kind %q", tag.Name, tag.Kind)
	}
	return nil
}
