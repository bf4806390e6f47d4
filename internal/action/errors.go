package action

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies why a dispatched call failed.
type ErrorKind string

const (
	// InvalidInput means the raw input violated the input schema. The
	// implementation was not invoked.
	InvalidInput ErrorKind = "invalid_input"
	// OperationFailed wraps an error returned by the implementation.
	OperationFailed ErrorKind = "operation_failed"
	// OutputContractViolation means the implementation returned a value that
	// does not match its declared output schema.
	OutputContractViolation ErrorKind = "output_contract_violation"
	// UnknownOperation means no operation is registered under the name.
	UnknownOperation ErrorKind = "unknown_operation"
)

// Error is the structured failure returned by the dispatcher.
type Error struct {
	Kind       ErrorKind
	Op         string
	Violations []Violation
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Kind == UnknownOperation {
		fmt.Fprintf(&b, "unknown operation %q", e.Op)
		return b.String()
	}

	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(strings.ReplaceAll(string(e.Kind), "_", " "))
	if len(e.Violations) > 0 {
		parts := make([]string, len(e.Violations))
		for i, v := range e.Violations {
			parts[i] = v.String()
		}
		b.WriteString(": ")
		b.WriteString(strings.Join(parts, "; "))
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a dispatcher error, or "" if err did not come
// from the dispatcher.
func KindOf(err error) ErrorKind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// ViolationsOf returns the field-level violations carried by err, if any.
func ViolationsOf(err error) []Violation {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Violations
	}
	return nil
}
