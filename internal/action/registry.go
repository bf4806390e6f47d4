// Package action declares typed operations with input and output schemas,
// validates calls against them, and exposes the registered set for surface
// generation.
package action

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// Func is the implementation of an operation.
type Func[In, Out any] func(ctx context.Context, in In) (Out, error)

// Operation is the untyped view of a registered action used by surfaces.
type Operation interface {
	Name() string
	Description() string
	Input() *Schema
	Output() *Schema
	// Invoke validates raw JSON input, runs the implementation, and returns
	// its validated JSON output.
	Invoke(ctx context.Context, raw json.RawMessage) (json.RawMessage, error)
}

// Action is the typed handle returned by Register.
type Action[In, Out any] struct {
	name        string
	description string
	in          *Schema
	out         *Schema
	impl        Func[In, Out]
}

func (a *Action[In, Out]) Name() string        { return a.name }
func (a *Action[In, Out]) Description() string { return a.description }
func (a *Action[In, Out]) Input() *Schema      { return a.in }
func (a *Action[In, Out]) Output() *Schema     { return a.out }

var emptyObject = json.RawMessage(`{}`)

// Invoke implements Operation. Input is validated once before the
// implementation runs and output is validated once before it is returned.
func (a *Action[In, Out]) Invoke(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = emptyObject
	}

	decoded, err := decodeValue(raw)
	if err != nil {
		return nil, &Error{
			Kind:       InvalidInput,
			Op:         a.name,
			Violations: []Violation{{Message: "malformed JSON: " + err.Error()}},
			Err:        err,
		}
	}
	if violations := a.in.Validate(decoded); len(violations) > 0 {
		return nil, &Error{Kind: InvalidInput, Op: a.name, Violations: violations}
	}

	var in In
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, &Error{
			Kind:       InvalidInput,
			Op:         a.name,
			Violations: []Violation{{Message: err.Error()}},
			Err:        err,
		}
	}

	out, err := a.impl(ctx, in)
	if err != nil {
		return nil, &Error{Kind: OperationFailed, Op: a.name, Err: err}
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		return nil, &Error{Kind: OutputContractViolation, Op: a.name, Err: fmt.Errorf("encoding output: %w", err)}
	}
	decodedOut, err := decodeValue(encoded)
	if err != nil {
		return nil, &Error{Kind: OutputContractViolation, Op: a.name, Err: err}
	}
	if violations := a.out.Validate(decodedOut); len(violations) > 0 {
		return nil, &Error{Kind: OutputContractViolation, Op: a.name, Violations: violations}
	}
	return encoded, nil
}

// Call runs the action with a typed input through the same validation path
// as Invoke.
func (a *Action[In, Out]) Call(ctx context.Context, in In) (Out, error) {
	var zero Out
	raw, err := json.Marshal(in)
	if err != nil {
		return zero, &Error{Kind: InvalidInput, Op: a.name, Violations: []Violation{{Message: err.Error()}}, Err: err}
	}
	res, err := a.Invoke(ctx, raw)
	if err != nil {
		return zero, err
	}
	var out Out
	if err := json.Unmarshal(res, &out); err != nil {
		return zero, &Error{Kind: OutputContractViolation, Op: a.name, Err: fmt.Errorf("decoding output: %w", err)}
	}
	return out, nil
}

// ErrSealed is returned when registering into a sealed registry.
var ErrSealed = errors.New("registry is sealed")

var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Registry holds the process-wide set of operations. Registration happens at
// startup and is not safe for concurrent use; after Seal the registry is
// read-only and may be shared freely.
type Registry struct {
	ops    []Operation
	byName map[string]Operation
	sealed bool
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Operation)}
}

// Register adds an operation and returns its typed handle. The input schema
// must be a non-nullable object because every surface passes a JSON object.
func Register[In, Out any](r *Registry, name, description string, in, out *Schema, impl Func[In, Out]) (*Action[In, Out], error) {
	if r.sealed {
		return nil, fmt.Errorf("registering %q: %w", name, ErrSealed)
	}
	if !namePattern.MatchString(name) {
		return nil, fmt.Errorf("invalid operation name %q", name)
	}
	if _, exists := r.byName[name]; exists {
		return nil, fmt.Errorf("operation %q already registered", name)
	}
	if in == nil || in.Kind != KindObject || in.Nullable {
		return nil, fmt.Errorf("operation %q: input schema must be a non-nullable object", name)
	}
	if out == nil {
		return nil, fmt.Errorf("operation %q: output schema is required", name)
	}
	if impl == nil {
		return nil, fmt.Errorf("operation %q: implementation is required", name)
	}

	a := &Action[In, Out]{name: name, description: description, in: in, out: out, impl: impl}
	r.ops = append(r.ops, a)
	r.byName[name] = a
	return a, nil
}

// MustRegister is Register for startup wiring; it panics on error.
func MustRegister[In, Out any](r *Registry, name, description string, in, out *Schema, impl Func[In, Out]) *Action[In, Out] {
	a, err := Register(r, name, description, in, out, impl)
	if err != nil {
		panic(err)
	}
	return a
}

// Seal freezes the registry.
func (r *Registry) Seal() {
	r.sealed = true
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	return r.sealed
}

// Operations returns the registered operations in registration order.
func (r *Registry) Operations() []Operation {
	out := make([]Operation, len(r.ops))
	copy(out, r.ops)
	return out
}

// Lookup returns the operation registered under name.
func (r *Registry) Lookup(name string) (Operation, bool) {
	op, ok := r.byName[name]
	return op, ok
}

// Call dispatches raw JSON input to the named operation.
func (r *Registry) Call(ctx context.Context, name string, raw json.RawMessage) (json.RawMessage, error) {
	op, ok := r.byName[name]
	if !ok {
		return nil, &Error{Kind: UnknownOperation, Op: name}
	}
	return op.Invoke(ctx, raw)
}
