package request

import (
	"errors"
	"fmt"

	"github.com/drand/vmauth/program"
)

var (
	// ErrArity is returned when the number of inputs differs from the number
	// of declared input types.
	ErrArity = errors.New("input arity mismatch")
	// ErrTypeMismatch is returned when an input does not have the shape its
	// declared type requires.
	ErrTypeMismatch = errors.New("input type mismatch")
	// ErrOwnership is returned when a record input is not owned by the caller.
	ErrOwnership = errors.New("record not owned by caller")
	// ErrIndexOverflow is returned when a call has more inputs than an input
	// index can address.
	ErrIndexOverflow = errors.New("input index overflow")
	// ErrDerivation wraps failures of the underlying hash and group
	// operations.
	ErrDerivation = errors.New("derivation failure")
	// ErrInvalidRequest is returned when a request does not verify.
	ErrInvalidRequest = errors.New("invalid request")
)

// InputError reports a failure tied to one input of a call. errors.Is matches
// it against its Kind, errors.Unwrap returns the underlying cause.
type InputError struct {
	Kind     error
	Index    int
	Type     program.ValueType
	Program  program.ProgramID
	Function program.Identifier
	Err      error
}

func (e *InputError) Error() string {
	msg := fmt.Sprintf("%s/%s: input %d (%s): %v", e.Program, e.Function, e.Index, e.Type, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is the kind of this error.
func (e *InputError) Is(target error) bool {
	return target == e.Kind
}

func (e *InputError) Unwrap() error {
	return e.Err
}

func derivationError(step string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDerivation, step, err)
}
