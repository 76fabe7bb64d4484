package tagweaver

import (
	"fmt"
	"regexp"
	"strings"
)

// OutputValidator is an interface for validating the rendered output of a
// tag.
type OutputValidator interface {
	// Validate checks if the output is valid.
	// Returns nil if valid, or an error if invalid.
	Validate(tagName string, output string, pos Position) error
}

// RegexValidator validates output against a regular expression.
type RegexValidator struct {
	Pattern     *regexp.Regexp
	Description string // Human-readable description of what the pattern expects
}

// Validate implements the OutputValidator interface.
func (v *RegexValidator) Validate(tagName string, output string, pos Position) error {
	if !v.Pattern.MatchString(output) {
		return NewValidationError(
			pos,
			tagName,
			fmt.Sprintf("output does not match expected pattern: %s", v.Description),
			output,
		)
	}
	return nil
}

// FuncValidator uses a custom function to validate output.
type FuncValidator struct {
	ValidateFunc func(tagName string, output string, pos Position) error
}

// Validate implements the OutputValidator interface.
func (v *FuncValidator) Validate(tagName string, output string, pos Position) error {
	return v.ValidateFunc(tagName, output, pos)
}

// ValidatorRegistry manages validators for different tags.
type ValidatorRegistry struct {
	validators map[string][]OutputValidator
}

// NewValidatorRegistry creates a new validator registry.
func NewValidatorRegistry() *ValidatorRegistry {
	return &ValidatorRegistry{
		validators: make(map[string][]OutputValidator),
	}
}

// Register adds a validator for a tag name.
// Multiple validators can be registered for the same tag.
func (r *ValidatorRegistry) Register(tagName string, validator OutputValidator) {
	if validator == nil {
		return
	}
	tagName = strings.ToLower(tagName)
	r.validators[tagName] = append(r.validators[tagName], validator)
}

// RegisterRegex creates and registers a RegexValidator.
func (r *ValidatorRegistry) RegisterRegex(tagName, pattern, description string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid regex pattern for tag %s: %w", tagName, err)
	}

	r.Register(tagName, &RegexValidator{
		Pattern:     re,
		Description: description,
	})
	return nil
}

// RegisterFunc creates and registers a FuncValidator.
func (r *ValidatorRegistry) RegisterFunc(tagName string, validateFunc func(string, string, Position) error) {
	r.Register(tagName, &FuncValidator{
		ValidateFunc: validateFunc,
	})
}

// has reports whether any validator is registered for a tag.
func (r *ValidatorRegistry) has(tagName string) bool {
	_, ok := r.validators[strings.ToLower(tagName)]
	return ok
}

// ValidateOutput validates the rendered output of a tag.
// Returns nil if valid, or an error if any validator fails.
func (r *ValidatorRegistry) ValidateOutput(tagName string, output string, pos Position) error {
	validators, ok := r.validators[strings.ToLower(tagName)]
	if !ok {
		// No validators registered for this tag
		return nil
	}

	for _, validator := range validators {
		if err := validator.Validate(tagName, output, pos); err != nil {
			return err
		}
	}

	return nil
}
