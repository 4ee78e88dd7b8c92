package authorization

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/drand/vmauth/crypto"
	"github.com/drand/vmauth/internal/metrics"
	"github.com/drand/vmauth/program"
	"github.com/drand/vmauth/request"
)

// Authorization is the ordered list of requests authorizing a call and every
// nested call it makes, in call order. The first request is the root call.
type Authorization struct {
	id       uuid.UUID
	requests []*request.Request
}

// ID returns the identifier of the authorization, used to correlate logs.
func (a *Authorization) ID() uuid.UUID {
	return a.id
}

// Len returns the number of requests.
func (a *Authorization) Len() int {
	return len(a.requests)
}

// Get returns the i-th request.
func (a *Authorization) Get(i int) (*request.Request, error) {
	if i < 0 || i >= len(a.requests) {
		return nil, fmt.Errorf("request %d out of range [0, %d)", i, len(a.requests))
	}
	return a.requests[i], nil
}

// Requests returns the requests in call order.
func (a *Authorization) Requests() []*request.Request {
	return append([]*request.Request(nil), a.requests...)
}

// Root returns the request of the top level call.
func (a *Authorization) Root() *request.Request {
	if len(a.requests) == 0 {
		return nil
	}
	return a.requests[0]
}

// Verify checks every request against the declarations of the stack and
// checks that the requests follow the call graph of the root function with
// the arguments each call passes. All failures are reported.
func (a *Authorization) Verify(sch *crypto.Scheme, stack *program.Stack) error {
	root := a.Root()
	if root == nil {
		return ErrEmpty
	}
	var result *multierror.Error
	if err := a.checkShape(stack); err != nil {
		result = multierror.Append(result, err)
	}
	for i, req := range a.requests {
		if !req.Caller().Equal(root.Caller()) {
			result = multierror.Append(result, fmt.Errorf("%w: request %d has another caller", ErrMalformed, i))
		}
		types, err := stack.InputTypes(req.ProgramID(), req.FunctionName())
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("request %d: %w", i, err))
			continue
		}
		if err := req.Verify(sch, types); err != nil {
			result = multierror.Append(result, fmt.Errorf("request %d: %w", i, err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		metrics.Verifications.WithLabelValues(metrics.ResultFailed).Inc()
		return err
	}
	metrics.Verifications.WithLabelValues(metrics.ResultOK).Inc()
	return nil
}

// checkShape replays the call graph of the root function in pre-order and
// matches every call against the next request.
func (a *Authorization) checkShape(stack *program.Stack) error {
	root := a.requests[0]
	if _, err := stack.NumberOfCalls(root.ProgramID(), root.FunctionName()); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	pos := 0
	var walk func(pid program.ProgramID, name program.Identifier, args []program.Value) error
	walk = func(pid program.ProgramID, name program.Identifier, args []program.Value) error {
		if pos >= len(a.requests) {
			return fmt.Errorf("%w: missing request for %s/%s", ErrMalformed, pid, name)
		}
		req := a.requests[pos]
		if req.ProgramID() != pid || req.FunctionName() != name {
			return fmt.Errorf("%w: request %d is %s/%s, expected %s/%s",
				ErrMalformed, pos, req.ProgramID(), req.FunctionName(), pid, name)
		}
		if args != nil && !sameValues(args, req.Inputs()) {
			return fmt.Errorf("%w: request %d does not carry the arguments of its call", ErrMalformed, pos)
		}
		pos++
		fn, err := stack.Function(pid, name)
		if err != nil {
			return err
		}
		for _, c := range fn.Calls {
			callArgs, err := c.Arguments(req.Inputs())
			if err != nil {
				return err
			}
			if err := walk(c.Target(pid), c.Function, callArgs); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root.ProgramID(), root.FunctionName(), nil); err != nil {
		return err
	}
	if pos != len(a.requests) {
		return fmt.Errorf("%w: %d requests beyond the call graph", ErrMalformed, len(a.requests)-pos)
	}
	return nil
}

func sameValues(a, b []program.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] == nil || b[i] == nil || a[i].String() != b[i].String() {
			return false
		}
	}
	return true
}

// AuthorizationTOML is the TOML-able version of an authorization.
type AuthorizationTOML struct {
	ID       string
	Requests []request.RequestTOML
}

// TOML returns the TOML-compatible version of the authorization.
func (a *Authorization) TOML() interface{} {
	atoml := &AuthorizationTOML{ID: a.id.String()}
	for _, r := range a.requests {
		atoml.Requests = append(atoml.Requests, *r.TOML().(*request.RequestTOML))
	}
	return atoml
}

// FromTOML decodes an authorization. It still has to be verified.
func (a *Authorization) FromTOML(i interface{}) error {
	atoml, ok := i.(*AuthorizationTOML)
	if !ok {
		return errors.New("authorization can't decode toml from non AuthorizationTOML struct")
	}
	id, err := uuid.Parse(atoml.ID)
	if err != nil {
		return fmt.Errorf("authorization id: %w", err)
	}
	auth := &Authorization{id: id}
	for i := range atoml.Requests {
		req := new(request.Request)
		if err := req.FromTOML(&atoml.Requests[i]); err != nil {
			return fmt.Errorf("request %d: %w", i, err)
		}
		auth.requests = append(auth.requests, req)
	}
	*a = *auth
	return nil
}

// TOMLValue returns an empty TOML-compatible value of the authorization.
func (a *Authorization) TOMLValue() interface{} {
	return &AuthorizationTOML{}
}
