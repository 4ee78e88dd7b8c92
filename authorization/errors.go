package authorization

import (
	"errors"
	"fmt"

	"github.com/drand/vmauth/program"
)

var (
	// ErrAggregation is matched by every error returned by Authorize.
	ErrAggregation = errors.New("authorization aborted")
	// ErrCallDepth is returned when nested calls go deeper than allowed.
	ErrCallDepth = errors.New("call depth exceeded")
	// ErrMalformed is returned when the requests of an authorization do not
	// follow the call graph of its root function.
	ErrMalformed = errors.New("malformed authorization")
	// ErrEmpty is returned when verifying an authorization with no request.
	ErrEmpty = errors.New("empty authorization")
)

// AggregationError reports the call at which an authorization was aborted.
// Nothing signed before the failure is returned to the caller.
type AggregationError struct {
	Program  program.ProgramID
	Function program.Identifier
	Depth    int
	Err      error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("%v: %s/%s at depth %d: %v", ErrAggregation, e.Program, e.Function, e.Depth, e.Err)
}

// Is makes every AggregationError match ErrAggregation.
func (e *AggregationError) Is(target error) bool {
	return target == ErrAggregation
}

func (e *AggregationError) Unwrap() error {
	return e.Err
}
