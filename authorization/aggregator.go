package authorization

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/drand/vmauth/common/key"
	"github.com/drand/vmauth/common/log"
	"github.com/drand/vmauth/internal/metrics"
	"github.com/drand/vmauth/program"
	"github.com/drand/vmauth/request"
)

// DefaultMaxDepth is the deepest nesting of calls an authorization may have.
const DefaultMaxDepth = 16

// Aggregator builds authorizations of function calls, nested calls included,
// against the programs of a stack.
type Aggregator struct {
	stack       *program.Stack
	log         log.Logger
	clock       clockwork.Clock
	maxDepth    int
	tracing     bool
	requestOpts []request.Option
}

// Option customizes an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger of the aggregator.
func WithLogger(l log.Logger) Option {
	return func(a *Aggregator) {
		a.log = l
	}
}

// WithClock sets the clock used to time signing.
func WithClock(c clockwork.Clock) Option {
	return func(a *Aggregator) {
		a.clock = c
	}
}

// WithMaxDepth bounds the nesting of calls.
func WithMaxDepth(depth int) Option {
	return func(a *Aggregator) {
		a.maxDepth = depth
	}
}

// WithRequestTracing passes the aggregator logger to every request it signs.
func WithRequestTracing() Option {
	return func(a *Aggregator) {
		a.tracing = true
	}
}

// NewAggregator returns an aggregator over stack.
func NewAggregator(stack *program.Stack, opts ...Option) *Aggregator {
	a := &Aggregator{
		stack:    stack,
		log:      log.DefaultLogger(),
		clock:    clockwork.NewRealClock(),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.tracing {
		a.requestOpts = append(a.requestOpts, request.WithLogger(a.log.Named("request")))
	}
	return a
}

// Authorize signs the call of programID/functionName on inputs and, when the
// function makes nested calls, signs every nested call with the same key in
// call order. Any failure aborts the whole authorization. ctx is checked
// before each request.
func (a *Aggregator) Authorize(
	ctx context.Context,
	priv *key.PrivateKey,
	programID program.ProgramID,
	functionName program.Identifier,
	inputs []program.Value,
	rng io.Reader,
) (*Authorization, error) {
	start := a.clock.Now()
	auth, err := a.authorize(ctx, priv, programID, functionName, inputs, rng)
	if err != nil {
		metrics.Authorizations.WithLabelValues(metrics.ResultFailed).Inc()
		a.log.Debugw("authorization aborted", "program", programID.String(), "function", functionName.String(), "err", err)
		return nil, err
	}
	metrics.Authorizations.WithLabelValues(metrics.ResultOK).Inc()
	metrics.AuthorizationSize.Observe(float64(auth.Len()))
	a.log.Debugw("authorization built",
		"id", auth.id.String(),
		"program", programID.String(),
		"function", functionName.String(),
		"requests", auth.Len(),
		"took", a.clock.Since(start).String())
	return auth, nil
}

func (a *Aggregator) authorize(
	ctx context.Context,
	priv *key.PrivateKey,
	programID program.ProgramID,
	functionName program.Identifier,
	inputs []program.Value,
	rng io.Reader,
) (*Authorization, error) {
	n, err := a.stack.NumberOfCalls(programID, functionName)
	if err != nil {
		return nil, &AggregationError{Program: programID, Function: functionName, Err: err}
	}
	acc := &accumulator{requests: make([]*request.Request, 0, n)}
	if err := a.visit(ctx, acc, priv, programID, functionName, inputs, rng, 0); err != nil {
		return nil, err
	}
	if len(acc.requests) != n {
		return nil, &AggregationError{
			Program:  programID,
			Function: functionName,
			Err:      fmt.Errorf("signed %d requests, call graph has %d", len(acc.requests), n),
		}
	}
	id, err := uuid.NewRandomFromReader(rng)
	if err != nil {
		return nil, &AggregationError{Program: programID, Function: functionName, Err: err}
	}
	return &Authorization{id: id, requests: acc.requests}, nil
}

// accumulator collects the requests of one authorization. It is dropped as a
// whole when any call fails.
type accumulator struct {
	requests []*request.Request
}

// visit signs one call then its nested calls, depth first.
func (a *Aggregator) visit(
	ctx context.Context,
	acc *accumulator,
	priv *key.PrivateKey,
	programID program.ProgramID,
	functionName program.Identifier,
	inputs []program.Value,
	rng io.Reader,
	depth int,
) error {
	fail := func(err error) error {
		return &AggregationError{Program: programID, Function: functionName, Depth: depth, Err: err}
	}
	if depth > a.maxDepth {
		return fail(fmt.Errorf("%w: limit is %d", ErrCallDepth, a.maxDepth))
	}
	select {
	case <-ctx.Done():
		return fail(ctx.Err())
	default:
	}
	fn, err := a.stack.Function(programID, functionName)
	if err != nil {
		return fail(err)
	}

	start := a.clock.Now()
	req, err := request.Sign(priv, programID, functionName, inputs, fn.Inputs, rng, a.requestOpts...)
	if err != nil {
		return fail(err)
	}
	metrics.SigningLatency.Observe(a.clock.Since(start).Seconds())
	metrics.RequestsSigned.WithLabelValues(programID.String(), functionName.String()).Inc()
	acc.requests = append(acc.requests, req)
	a.log.Debugw("request signed",
		"program", programID.String(),
		"function", functionName.String(),
		"depth", depth,
		"position", len(acc.requests)-1,
		"inputs", len(inputs))

	for _, call := range fn.Calls {
		args, err := call.Arguments(inputs)
		if err != nil {
			return fail(err)
		}
		if err := a.visit(ctx, acc, priv, call.Target(programID), call.Function, args, rng, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// Call is one top level call of a batch.
type Call struct {
	Program  program.ProgramID
	Function program.Identifier
	Inputs   []program.Value
}

// AuthorizeBatch authorizes independent calls in parallel. rngFor returns the
// random source of the i-th call; sources must not be shared between calls.
// The first failure cancels the remaining calls and no authorization is
// returned.
func (a *Aggregator) AuthorizeBatch(
	ctx context.Context,
	priv *key.PrivateKey,
	calls []Call,
	rngFor func(i int) io.Reader,
) ([]*Authorization, error) {
	out := make([]*Authorization, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i := range calls {
		i := i
		g.Go(func() error {
			c := calls[i]
			auth, err := a.Authorize(gctx, priv, c.Program, c.Function, c.Inputs, rngFor(i))
			if err != nil {
				return fmt.Errorf("call %d: %w", i, err)
			}
			out[i] = auth
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
