package authorization

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/drand/vmauth/common/key"
	"github.com/drand/vmauth/common/log"
	"github.com/drand/vmauth/common/testlogger"
	"github.com/drand/vmauth/crypto"
	"github.com/drand/vmauth/internal/metrics"
	"github.com/drand/vmauth/program"
	"github.com/drand/vmauth/request"
)

const feeProgram = `
id = "fee.vm"

[[functions]]
name = "pay"
inputs = ["u64.public"]

[[functions]]
name = "noop"
inputs = []
`

const tokenProgram = `
id = "token.vm"

[[functions]]
name = "transfer"
inputs = ["token.record", "address.private", "u64.public"]

  [[functions.calls]]
  program = "fee.vm"
  function = "pay"
  operands = ["r2"]

  [[functions.calls]]
  function = "log"
  operands = ["{ code: 1u8 }"]

[[functions]]
name = "log"
inputs = ["entry.public"]

  [[functions.calls]]
  program = "fee.vm"
  function = "noop"
`

const badProgram = `
id = "bad.vm"

[[functions]]
name = "pay_with_bool"
inputs = ["u64.public"]

  [[functions.calls]]
  program = "fee.vm"
  function = "pay"
  operands = ["true"]

[[functions]]
name = "ping"
inputs = []

  [[functions.calls]]
  function = "pong"

[[functions]]
name = "pong"
inputs = []

  [[functions.calls]]
  function = "ping"
`

var (
	feeID   = program.MustProgramID("fee.vm")
	tokenID = program.MustProgramID("token.vm")
	badID   = program.MustProgramID("bad.vm")
)

type fixture struct {
	sch    *crypto.Scheme
	stack  *program.Stack
	agg    *Aggregator
	priv   *key.PrivateKey
	caller key.Address
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	l := testlogger.New(t)
	stack := program.NewStack(l)
	for _, src := range []string{feeProgram, tokenProgram, badProgram} {
		p, err := program.Parse(src)
		require.NoError(t, err)
		require.NoError(t, stack.Add(p))
	}
	sch := crypto.NewTestnetScheme()
	priv, err := key.PrivateKeyFromSeed(sch, crypto.FieldFromUint64(1))
	require.NoError(t, err)
	d, err := key.Derive(priv)
	require.NoError(t, err)
	opts = append([]Option{WithLogger(l), WithClock(clockwork.NewFakeClock())}, opts...)
	return &fixture{
		sch:    sch,
		stack:  stack,
		agg:    NewAggregator(stack, opts...),
		priv:   priv,
		caller: d.Address,
	}
}

func newRNG(seed int64) io.Reader {
	return rand.New(rand.NewSource(seed))
}

func (f *fixture) transferInputs() []program.Value {
	rec := &program.Record{
		Owner:           f.caller,
		OwnerVisibility: program.Private,
		Entries: []program.Entry{
			{Name: "amount", Visibility: program.Private, Value: program.NewU64(100)},
		},
		Nonce: program.NewRecordNonce(newRNG(99)),
	}
	return []program.Value{rec, program.NewAddress(f.caller), program.NewU64(7)}
}

func TestAuthorizeSingleCall(t *testing.T) {
	f := newFixture(t)
	auth, err := f.agg.Authorize(context.Background(), f.priv, feeID, "pay", []program.Value{program.NewU64(1)}, newRNG(1))
	require.NoError(t, err)
	require.Equal(t, 1, auth.Len())
	require.Equal(t, feeID, auth.Root().ProgramID())
	require.NoError(t, auth.Verify(f.sch, f.stack))

	_, err = auth.Get(1)
	require.Error(t, err)
	req, err := auth.Get(0)
	require.NoError(t, err)
	require.Equal(t, auth.Root(), req)
}

func TestAuthorizePreOrder(t *testing.T) {
	f := newFixture(t, WithRequestTracing())
	before := testutil.ToFloat64(metrics.RequestsSigned.WithLabelValues("fee.vm", "noop"))

	auth, err := f.agg.Authorize(context.Background(), f.priv, tokenID, "transfer", f.transferInputs(), newRNG(1))
	require.NoError(t, err)

	var order []string
	for _, r := range auth.Requests() {
		order = append(order, r.ProgramID().String()+"/"+r.FunctionName().String())
		require.True(t, r.Caller().Equal(f.caller))
	}
	require.Equal(t, []string{"token.vm/transfer", "fee.vm/pay", "token.vm/log", "fee.vm/noop"}, order)

	// r2 is forwarded to fee.vm/pay
	pay, err := auth.Get(1)
	require.NoError(t, err)
	require.Equal(t, "7u64", pay.Inputs()[0].String())

	// every nested request has its own transition
	seen := make(map[string]bool)
	for _, r := range auth.Requests() {
		tvk := r.TVK()
		seen[crypto.FieldToString(&tvk)] = true
	}
	require.Len(t, seen, 4)

	require.NoError(t, auth.Verify(f.sch, f.stack))
	require.Equal(t, before+1, testutil.ToFloat64(metrics.RequestsSigned.WithLabelValues("fee.vm", "noop")))
}

func TestRequestTracingFollowsLogger(t *testing.T) {
	var buf bytes.Buffer
	l := log.New(zapcore.AddSync(&buf), log.DebugLevel, true)
	// tracing is requested before the logger is set
	f := newFixture(t, WithRequestTracing(), WithLogger(l))

	_, err := f.agg.Authorize(context.Background(), f.priv, feeID, "pay", []program.Value{program.NewU64(1)}, newRNG(1))
	require.NoError(t, err)
	require.Contains(t, buf.String(), `"logger":"request"`)
	require.Contains(t, buf.String(), `"function_id"`)
}

func TestAuthorizeDeterministic(t *testing.T) {
	f := newFixture(t)
	encode := func(a *Authorization) string {
		var buf bytes.Buffer
		require.NoError(t, toml.NewEncoder(&buf).Encode(a.TOML()))
		return buf.String()
	}
	a1, err := f.agg.Authorize(context.Background(), f.priv, tokenID, "transfer", f.transferInputs(), newRNG(5))
	require.NoError(t, err)
	a2, err := f.agg.Authorize(context.Background(), f.priv, tokenID, "transfer", f.transferInputs(), newRNG(5))
	require.NoError(t, err)
	require.Equal(t, a1.ID(), a2.ID())
	require.Equal(t, encode(a1), encode(a2))

	a3, err := f.agg.Authorize(context.Background(), f.priv, tokenID, "transfer", f.transferInputs(), newRNG(6))
	require.NoError(t, err)
	require.NotEqual(t, a1.ID(), a3.ID())
}

func TestAuthorizeAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// the nested call to fee.vm/pay passes a boolean
	auth, err := f.agg.Authorize(ctx, f.priv, badID, "pay_with_bool", []program.Value{program.NewU64(1)}, newRNG(1))
	require.Nil(t, auth)
	require.ErrorIs(t, err, ErrAggregation)
	require.ErrorIs(t, err, request.ErrTypeMismatch)
	var aggErr *AggregationError
	require.ErrorAs(t, err, &aggErr)
	require.Equal(t, feeID, aggErr.Program)
	require.Equal(t, program.Identifier("pay"), aggErr.Function)
	require.Equal(t, 1, aggErr.Depth)

	// root inputs are checked too
	auth, err = f.agg.Authorize(ctx, f.priv, feeID, "pay", nil, newRNG(1))
	require.Nil(t, auth)
	require.ErrorIs(t, err, request.ErrArity)

	auth, err = f.agg.Authorize(ctx, f.priv, badID, "ping", nil, newRNG(1))
	require.Nil(t, auth)
	require.ErrorIs(t, err, program.ErrCyclicCall)

	auth, err = f.agg.Authorize(ctx, f.priv, program.MustProgramID("nope.vm"), "pay", nil, newRNG(1))
	require.Nil(t, auth)
	require.ErrorIs(t, err, program.ErrUnknownProgram)
}

func TestAuthorizeRejectsForeignRecord(t *testing.T) {
	f := newFixture(t)
	inputs := f.transferInputs()
	other, err := key.PrivateKeyFromSeed(f.sch, crypto.FieldFromUint64(2))
	require.NoError(t, err)

	auth, err := f.agg.Authorize(context.Background(), other, tokenID, "transfer", inputs, newRNG(1))
	require.Nil(t, auth)
	require.ErrorIs(t, err, request.ErrOwnership)
	require.ErrorIs(t, err, ErrAggregation)
}

func TestAuthorizeCallDepth(t *testing.T) {
	f := newFixture(t, WithMaxDepth(1))
	auth, err := f.agg.Authorize(context.Background(), f.priv, tokenID, "transfer", f.transferInputs(), newRNG(1))
	require.Nil(t, auth)
	require.ErrorIs(t, err, ErrCallDepth)

	var aggErr *AggregationError
	require.ErrorAs(t, err, &aggErr)
	require.Equal(t, 2, aggErr.Depth)
	require.Equal(t, feeID, aggErr.Program)
	require.Contains(t, err.Error(), "fee.vm/noop")
}

func TestAuthorizeCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	auth, err := f.agg.Authorize(ctx, f.priv, tokenID, "transfer", f.transferInputs(), newRNG(1))
	require.Nil(t, auth)
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, err, ErrAggregation)
}

func TestAuthorizeBatch(t *testing.T) {
	f := newFixture(t)
	calls := []Call{
		{Program: feeID, Function: "pay", Inputs: []program.Value{program.NewU64(1)}},
		{Program: tokenID, Function: "transfer", Inputs: f.transferInputs()},
		{Program: feeID, Function: "noop"},
	}
	rngFor := func(i int) io.Reader { return newRNG(int64(100 + i)) }

	auths, err := f.agg.AuthorizeBatch(context.Background(), f.priv, calls, rngFor)
	require.NoError(t, err)
	require.Len(t, auths, 3)
	require.Equal(t, []int{1, 4, 1}, []int{auths[0].Len(), auths[1].Len(), auths[2].Len()})
	for i, a := range auths {
		require.Equal(t, calls[i].Program, a.Root().ProgramID())
		require.NoError(t, a.Verify(f.sch, f.stack))
	}

	// batch results match sequential ones
	seq, err := f.agg.Authorize(context.Background(), f.priv, tokenID, "transfer", f.transferInputs(), rngFor(1))
	require.NoError(t, err)
	require.Equal(t, seq.ID(), auths[1].ID())

	calls = append(calls, Call{Program: feeID, Function: "pay", Inputs: []program.Value{program.NewBoolean(true)}})
	auths, err = f.agg.AuthorizeBatch(context.Background(), f.priv, calls, rngFor)
	require.Nil(t, auths)
	require.ErrorIs(t, err, request.ErrTypeMismatch)
	require.Contains(t, err.Error(), "call 3")
}

func TestVerifyDetectsMalformed(t *testing.T) {
	f := newFixture(t)
	auth, err := f.agg.Authorize(context.Background(), f.priv, tokenID, "transfer", f.transferInputs(), newRNG(1))
	require.NoError(t, err)

	swapped := &Authorization{id: auth.id, requests: auth.Requests()}
	swapped.requests[1], swapped.requests[2] = swapped.requests[2], swapped.requests[1]
	require.ErrorIs(t, swapped.Verify(f.sch, f.stack), ErrMalformed)

	truncated := &Authorization{id: auth.id, requests: auth.Requests()[:3]}
	require.ErrorIs(t, truncated.Verify(f.sch, f.stack), ErrMalformed)

	extra := &Authorization{id: auth.id, requests: append(auth.Requests(), auth.Requests()[1])}
	require.ErrorIs(t, extra.Verify(f.sch, f.stack), ErrMalformed)

	// a nested request signed for other arguments
	payOther, err := f.agg.Authorize(context.Background(), f.priv, feeID, "pay", []program.Value{program.NewU64(8)}, newRNG(2))
	require.NoError(t, err)
	forged := &Authorization{id: auth.id, requests: auth.Requests()}
	forged.requests[1] = payOther.Root()
	require.ErrorIs(t, forged.Verify(f.sch, f.stack), ErrMalformed)

	require.ErrorIs(t, (&Authorization{}).Verify(f.sch, f.stack), ErrEmpty)
	require.NoError(t, auth.Verify(f.sch, f.stack))
}

func TestAuthorizationTOML(t *testing.T) {
	f := newFixture(t)
	auth, err := f.agg.Authorize(context.Background(), f.priv, tokenID, "transfer", f.transferInputs(), newRNG(1))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "auth.toml")
	require.NoError(t, key.Save(path, auth, false))
	loaded := new(Authorization)
	require.NoError(t, key.Load(path, loaded))

	require.Equal(t, auth.ID(), loaded.ID())
	require.Equal(t, auth.Len(), loaded.Len())
	require.NoError(t, loaded.Verify(f.sch, f.stack))

	require.Error(t, loaded.FromTOML(&AuthorizationTOML{ID: "not-a-uuid"}))
	require.Error(t, loaded.FromTOML(&request.RequestTOML{}))
}
