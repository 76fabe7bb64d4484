package tagweaver

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// TagLibrary stores custom tags and functions under a single namespace,
// keyed by lowercase name. When a tag and a function are registered under
// the same name, the two are merged into one dual-role value via Combine.
type TagLibrary struct {
	name   string
	byName map[string]Value
	logger *zap.Logger
}

// NewTagLibrary creates an empty library with the given name.
func NewTagLibrary(name string, opts ...func(*TagLibrary)) *TagLibrary {
	l := &TagLibrary{
		name:   name,
		byName: map[string]Value{},
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// WithLibraryLogger attaches a logger for registration diagnostics.
func WithLibraryLogger(logger *zap.Logger) func(*TagLibrary) {
	return func(l *TagLibrary) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Name returns the library name.
func (l *TagLibrary) Name() string { return l.name }

// RegisterTag registers a custom tag (a Directive or a Transform). If a
// function is already registered under the same name, the two are combined
// into a single dual-role value.
func (l *TagLibrary) RegisterTag(name string, tag Value) error {
	if !CanCombineAsTag(tag) {
		if isCombined(tag) {
			return fmt.Errorf("tagweaver: tag %q: a combined value cannot be registered again", name)
		}
		return NewUnexpectedTypeError(fmt.Sprintf("tag %q", name), tag, []string{"directive", "transform"})
	}

	key := strings.ToLower(name)
	existing, ok := l.byName[key]
	if !ok {
		l.byName[key] = tag
		return nil
	}

	fn, isFn := existing.(Callable)
	if isFn && CanCombineAsFunction(existing) {
		merged, err := Combine(tag, fn)
		if err != nil {
			l.logger.Error("combining tag and function failed",
				zap.String("library", l.name),
				zap.String("name", key),
				zap.String("tagType", typeOf(tag)),
				zap.Error(err))
			return err
		}
		l.logger.Debug("tag and function share a name; registered a combined value",
			zap.String("library", l.name),
			zap.String("name", key))
		l.byName[key] = merged
		return nil
	}
	return fmt.Errorf("tagweaver: tag %q already registered in library %q", name, l.name)
}

// RegisterFunction registers a function. If a custom tag is already
// registered under the same name, the two are combined into a single
// dual-role value.
func (l *TagLibrary) RegisterFunction(name string, fn Callable) error {
	if !CanCombineAsFunction(fn) {
		if isCombined(fn) {
			return fmt.Errorf("tagweaver: function %q: a combined value cannot be registered again", name)
		}
		return NewNonCallableError(fmt.Sprintf("function %q", name), fn)
	}

	key := strings.ToLower(name)
	existing, ok := l.byName[key]
	if !ok {
		l.byName[key] = fn
		return nil
	}

	if CanCombineAsTag(existing) {
		merged, err := Combine(existing, fn)
		if err != nil {
			l.logger.Error("combining tag and function failed",
				zap.String("library", l.name),
				zap.String("name", key),
				zap.String("tagType", typeOf(existing)),
				zap.Error(err))
			return err
		}
		l.logger.Debug("tag and function share a name; registered a combined value",
			zap.String("library", l.name),
			zap.String("name", key))
		l.byName[key] = merged
		return nil
	}
	return fmt.Errorf("tagweaver: function %q already registered in library %q", name, l.name)
}

// Lookup retrieves the value registered under a name. Names are matched
// case-insensitively.
func (l *TagLibrary) Lookup(name string) (Value, bool) {
	v, ok := l.byName[strings.ToLower(name)]
	return v, ok
}

// Has reports whether a name is registered.
func (l *TagLibrary) Has(name string) bool {
	_, ok := l.byName[strings.ToLower(name)]
	return ok
}

// Names returns a sorted list of registered names.
func (l *TagLibrary) Names() []string {
	names := make([]string, 0, len(l.byName))
	for name := range l.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
