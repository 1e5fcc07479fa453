package command

import (
	"fmt"
	"math"
	"strings"
)

// FieldError describes a validation failure on one parameter.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when command parameters are missing or out of range.
// Nothing is dispatched for a command that fails validation.
type ValidationError struct {
	Command Name         `json:"command"`
	Message string       `json:"message"`
	Fields  []FieldError `json:"details,omitempty"`
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("invalid %s: %s", e.Command, e.Message)
	}
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Command, strings.Join(msgs, "; "))
}

// checker collects field errors.
type checker struct {
	fields []FieldError
}

func (c *checker) add(field, format string, args ...any) {
	c.fields = append(c.fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// floatRange rejects NaN along with values outside [lo, hi].
func (c *checker) floatRange(field string, v, lo, hi float64) {
	if math.IsNaN(v) || v < lo || v > hi {
		c.add(field, "%s must be between %g and %g", field, lo, hi)
	}
}

func (c *checker) intRange(field string, v, lo, hi int) {
	if v < lo || v > hi {
		c.add(field, "%s must be between %d and %d", field, lo, hi)
	}
}

func (c *checker) err(name Name) error {
	if len(c.fields) == 0 {
		return nil
	}
	return &ValidationError{Command: name, Message: "parameter validation failed", Fields: c.fields}
}
