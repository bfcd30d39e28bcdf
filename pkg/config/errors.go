package config

import "fmt"

// FieldError reports a single configuration validation failure, mirroring
// the teacher's pkg/config/errors.go shape so all config errors can be
// aggregated and reported together instead of failing on the first one.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// AggregateError collects every FieldError found during validation.
type AggregateError struct {
	Errors []*FieldError
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return "invalid configuration: " + e.Errors[0].Error()
	}
	msg := fmt.Sprintf("invalid configuration (%d errors):", len(e.Errors))
	for _, fe := range e.Errors {
		msg += "\n  - " + fe.Error()
	}
	return msg
}

func (e *AggregateError) add(field, reason string) {
	e.Errors = append(e.Errors, &FieldError{Field: field, Reason: reason})
}

func (e *AggregateError) asError() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}
