package errors

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError collects per-field problems and converts to an
// InvalidArgument Error.
type ValidationError struct {
	Fields map[string][]string `json:"fields"`
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	if len(v.Fields) == 0 {
		return "validation failed"
	}

	names := make([]string, 0, len(v.Fields))
	for field := range v.Fields {
		names = append(names, field)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, field := range names {
		parts[i] = fmt.Sprintf("%s: %s", field, strings.Join(v.Fields[field], ", "))
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(parts, "; "))
}

// NewValidationError creates a new validation error
func NewValidationError() *ValidationError {
	return &ValidationError{
		Fields: make(map[string][]string),
	}
}

// AddFieldError adds an error for a specific field
func (v *ValidationError) AddFieldError(field, message string) {
	v.Fields[field] = append(v.Fields[field], message)
}

// HasErrors returns true if there are any validation errors
func (v *ValidationError) HasErrors() bool {
	return len(v.Fields) > 0
}

// ToError converts the validation error to our standard error type
func (v *ValidationError) ToError() *Error {
	if !v.HasErrors() {
		return nil
	}

	return InvalidArgument(v.Error()).WithMeta("validation_errors", v.Fields)
}

// ValidationBuilder helps build validation errors fluently
type ValidationBuilder struct {
	err *ValidationError
}

// NewValidationBuilder creates a new validation builder
func NewValidationBuilder() *ValidationBuilder {
	return &ValidationBuilder{
		err: NewValidationError(),
	}
}

// Field adds a field error
func (b *ValidationBuilder) Field(field, message string) *ValidationBuilder {
	b.err.AddFieldError(field, message)
	return b
}

// Fieldf adds a field error with formatted message
func (b *ValidationBuilder) Fieldf(field, format string, args ...interface{}) *ValidationBuilder {
	b.err.AddFieldError(field, fmt.Sprintf(format, args...))
	return b
}

// RequiredField adds a required field error
func (b *ValidationBuilder) RequiredField(field string) *ValidationBuilder {
	return b.Field(field, "is required")
}

// InvalidField adds an invalid field error
func (b *ValidationBuilder) InvalidField(field, reason string) *ValidationBuilder {
	return b.Fieldf(field, "is invalid: %s", reason)
}

// HasErrors returns true if any errors have been added
func (b *ValidationBuilder) HasErrors() bool {
	return b.err.HasErrors()
}

// Build returns an InvalidArgument Error if there are field errors, nil otherwise
func (b *ValidationBuilder) Build() error {
	if !b.err.HasErrors() {
		return nil
	}
	return b.err.ToError()
}

// ValidateRange checks that value sits within [lo, hi]
func ValidateRange(field string, value, lo, hi int) error {
	if value < lo || value > hi {
		return NewValidationBuilder().
			Fieldf(field, "must be between %d and %d", lo, hi).
			Build()
	}
	return nil
}
