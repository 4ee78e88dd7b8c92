package request

import (
	"bytes"
	"errors"
	"io"
	"math"
	"math/big"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/require"

	"github.com/drand/vmauth/common/key"
	"github.com/drand/vmauth/crypto"
	"github.com/drand/vmauth/program"
)

var (
	tokenID  = program.MustProgramID("token.vm")
	transfer = program.MustIdentifier("transfer")
)

type fixture struct {
	sch    *crypto.Scheme
	priv   *key.PrivateKey
	caller key.Address
}

func newFixture(t *testing.T, seed uint64) *fixture {
	t.Helper()
	sch := crypto.NewTestnetScheme()
	priv, err := key.PrivateKeyFromSeed(sch, crypto.FieldFromUint64(seed))
	require.NoError(t, err)
	d, err := key.Derive(priv)
	require.NoError(t, err)
	return &fixture{sch: sch, priv: priv, caller: d.Address}
}

func newRNG(seed int64) io.Reader {
	return rand.New(rand.NewSource(seed))
}

func newRecord(owner key.Address, amount uint64, seed int64) *program.Record {
	return &program.Record{
		Owner:           owner,
		OwnerVisibility: program.Private,
		Entries: []program.Entry{
			{Name: "amount", Visibility: program.Private, Value: program.NewU64(amount)},
		},
		Nonce: program.NewRecordNonce(newRNG(seed)),
	}
}

// scenario signs [u64.public, token.record] with a record owned by the caller.
func (f *fixture) scenario(t *testing.T, rngSeed int64) (*Request, []program.ValueType) {
	t.Helper()
	types := program.MustValueTypes("u64.public", "token.record")
	inputs := []program.Value{program.NewU64(100), newRecord(f.caller, 50, 7)}
	req, err := Sign(f.priv, tokenID, transfer, inputs, types, newRNG(rngSeed))
	require.NoError(t, err)
	return req, types
}

func encode(t *testing.T, req *Request) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, toml.NewEncoder(&buf).Encode(req.TOML()))
	return buf.String()
}

func cloneRequest(r *Request) *Request {
	c := *r
	c.inputIDs = append([]InputID(nil), r.inputIDs...)
	c.inputs = append([]program.Value(nil), r.inputs...)
	sig := *r.signature
	c.signature = &sig
	return &c
}

func TestSignVerifyScenario(t *testing.T) {
	f := newFixture(t, 1)
	req, types := f.scenario(t, 1)

	ids := req.InputIDs()
	require.Len(t, ids, 2)
	_, ok := ids[0].(PublicID)
	require.True(t, ok)
	rid, ok := ids[1].(RecordID)
	require.True(t, ok)
	require.NotNil(t, rid.Gamma)
	require.Len(t, req.RecordIDs(), 1)

	require.True(t, req.Caller().Equal(f.caller))
	require.Equal(t, f.sch.NetworkID, req.NetworkID())
	require.Equal(t, tokenID, req.ProgramID())
	require.Equal(t, transfer, req.FunctionName())
	tcm, err := f.sch.Hash2(req.TVK())
	require.NoError(t, err)
	reqTCM := req.TCM()
	require.True(t, tcm.Equal(&reqTCM))

	require.NoError(t, req.Verify(f.sch, types))

	// re-supplying another public value under the old signature fails
	tampered := cloneRequest(req)
	tampered.inputs[0] = program.NewU64(101)
	require.ErrorIs(t, tampered.Verify(f.sch, types), ErrInvalidRequest)

	// even with the matching identifier, the signature does not cover it
	h, err := plaintextHash(f.sch, mustFunctionID(t, f.sch), program.NewU64(101), req.tcm, 0)
	require.NoError(t, err)
	tampered.inputIDs[0] = PublicID{Hash: h}
	require.ErrorIs(t, tampered.Verify(f.sch, types), ErrInvalidRequest)
}

func mustFunctionID(t *testing.T, sch *crypto.Scheme) crypto.Field {
	t.Helper()
	fid, err := functionID(sch, tokenID, transfer)
	require.NoError(t, err)
	return fid
}

func TestSignDeterministic(t *testing.T) {
	f := newFixture(t, 2)
	r1, _ := f.scenario(t, 42)
	r2, _ := f.scenario(t, 42)
	require.Equal(t, encode(t, r1), encode(t, r2))
}

func TestNonceFreshness(t *testing.T) {
	f := newFixture(t, 3)
	r1, types := f.scenario(t, 1)
	r2, _ := f.scenario(t, 2)

	require.False(t, r1.TSK().Equal(r2.TSK()))
	tvk1, tvk2 := r1.TVK(), r2.TVK()
	require.False(t, tvk1.Equal(&tvk2))
	tcm1, tcm2 := r1.TCM(), r2.TCM()
	require.False(t, tcm1.Equal(&tcm2))
	require.False(t, r1.Signature().Challenge().Equal(r2.Signature().Challenge()))
	require.False(t, r1.Signature().Response().Equal(r2.Signature().Response()))

	require.NoError(t, r1.Verify(f.sch, types))
	require.NoError(t, r2.Verify(f.sch, types))
}

func TestSerialNumbers(t *testing.T) {
	f := newFixture(t, 4)
	types := program.MustValueTypes("token.record")
	rec := newRecord(f.caller, 10, 1)

	sign := func(rec *program.Record, seed int64) RecordID {
		req, err := Sign(f.priv, tokenID, transfer, []program.Value{rec}, types, newRNG(seed))
		require.NoError(t, err)
		require.NoError(t, req.Verify(f.sch, types))
		return req.RecordIDs()[0]
	}

	// same record, same key: same nullifier whatever the nonce
	a, b := sign(rec, 1), sign(rec, 2)
	require.True(t, a.Commitment.Equal(&b.Commitment))
	require.True(t, a.Gamma.Equal(b.Gamma))
	require.True(t, a.SerialNumber.Equal(&b.SerialNumber))
	require.True(t, a.Tag.Equal(&b.Tag))

	// another record: another nullifier
	c := sign(newRecord(f.caller, 10, 2), 1)
	require.False(t, a.Commitment.Equal(&c.Commitment))
	require.False(t, a.SerialNumber.Equal(&c.SerialNumber))
	require.False(t, a.Tag.Equal(&c.Tag))
}

func TestOwnership(t *testing.T) {
	f := newFixture(t, 5)
	other := newFixture(t, 6)
	types := program.MustValueTypes("u64.public", "token.record")
	inputs := []program.Value{program.NewU64(1), newRecord(other.caller, 10, 1)}

	req, err := Sign(f.priv, tokenID, transfer, inputs, types, newRNG(1))
	require.Nil(t, req)
	require.ErrorIs(t, err, ErrOwnership)

	var inputErr *InputError
	require.ErrorAs(t, err, &inputErr)
	require.Equal(t, 1, inputErr.Index)
	require.Equal(t, "token.record", inputErr.Type.String())
	require.Equal(t, tokenID, inputErr.Program)
	require.Equal(t, transfer, inputErr.Function)
	require.Contains(t, err.Error(), "token.vm/transfer: input 1")

	// an external record needs no ownership
	ext := program.MustValueTypes("u64.public", "other.vm/token.record")
	req, err = Sign(f.priv, tokenID, transfer, inputs, ext, newRNG(1))
	require.NoError(t, err)
	require.NoError(t, req.Verify(f.sch, ext))
}

// countingReader counts the bytes read from it.
type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}

func TestArityCheckedFirst(t *testing.T) {
	f := newFixture(t, 7)
	rng := &countingReader{r: newRNG(1)}
	types := program.MustValueTypes("u64.public", "u64.public")

	req, err := Sign(f.priv, tokenID, transfer, []program.Value{program.NewU64(1)}, types, rng)
	require.Nil(t, req)
	require.ErrorIs(t, err, ErrArity)
	require.Zero(t, rng.n)

	huge := math.MaxUint16 + 1
	req, err = Sign(f.priv, tokenID, transfer, make([]program.Value, huge), make([]program.ValueType, huge), rng)
	require.Nil(t, req)
	require.ErrorIs(t, err, ErrIndexOverflow)
	require.Zero(t, rng.n)
}

func TestTypeMismatch(t *testing.T) {
	f := newFixture(t, 8)
	rec := newRecord(f.caller, 1, 1)
	point := &program.Struct{Members: []program.Member{{Name: "x", Value: program.NewU64(1)}}}
	tests := []struct {
		decl  string
		input program.Value
	}{
		{"u64.public", rec},
		{"u64.private", program.NewBoolean(true)},
		{"u64.constant", point},
		{"point.public", program.NewU64(1)},
		{"token.record", program.NewU64(1)},
		{"other.vm/token.record", point},
		{"u64.public", nil},
	}
	for _, tt := range tests {
		types := program.MustValueTypes("u64.public", tt.decl)
		req, err := Sign(f.priv, tokenID, transfer, []program.Value{program.NewU64(1), tt.input}, types, newRNG(1))
		require.Nil(t, req, tt.decl)
		require.ErrorIs(t, err, ErrTypeMismatch, tt.decl)
		var inputErr *InputError
		require.ErrorAs(t, err, &inputErr)
		require.Equal(t, 1, inputErr.Index)
	}
}

func TestEveryVisibilityClass(t *testing.T) {
	f := newFixture(t, 9)
	types := program.MustValueTypes(
		"u8.constant",
		"u64.public",
		"point.private",
		"token.record",
		"other.vm/coin.record",
	)
	point, err := program.ParsePlaintext("{ x: 1field, y: 2field }")
	require.NoError(t, err)
	inputs := []program.Value{
		program.NewBoolean(true),
		program.NewU64(9),
		point,
		newRecord(f.caller, 10, 1),
		newRecord(newFixture(t, 10).caller, 3, 2),
	}
	_, err = Sign(f.priv, tokenID, transfer, inputs, types, newRNG(1))
	require.ErrorIs(t, err, ErrTypeMismatch)

	u8, err := program.ParseLiteral("3u8")
	require.NoError(t, err)
	inputs[0] = u8
	req, err := Sign(f.priv, tokenID, transfer, inputs, types, newRNG(1))
	require.NoError(t, err)
	require.Equal(t, []string{"constant", "public", "private", "record", "external_record"}, inputKinds(req.InputIDs()))
	require.NoError(t, req.Verify(f.sch, types))

	// the input index is folded into every hash
	swapped := program.MustValueTypes("u64.public", "u64.public")
	req2, err := Sign(f.priv, tokenID, transfer, []program.Value{program.NewU64(9), program.NewU64(9)}, swapped, newRNG(1))
	require.NoError(t, err)
	h0, _ := hashOf(req2.InputIDs()[0])
	h1, _ := hashOf(req2.InputIDs()[1])
	require.False(t, h0.Equal(&h1))

	// verifying against other declarations fails
	require.Error(t, req.Verify(f.sch, types[:4]))
	require.Error(t, req.Verify(f.sch, program.MustValueTypes(
		"u8.constant", "u64.private", "point.private", "token.record", "other.vm/coin.record")))
}

func TestTamperSensitivity(t *testing.T) {
	f := newFixture(t, 11)
	req, types := f.scenario(t, 1)
	other := newFixture(t, 12)
	otherReq, _ := other.scenario(t, 1)

	var one crypto.Field
	one.SetOne()
	bump := func(x crypto.Field) crypto.Field {
		x.Add(&x, &one)
		return x
	}
	scalarOne := f.sch.Group.Scalar().One()

	mutations := map[string]func(r *Request){
		"tvk":      func(r *Request) { r.tvk = bump(r.tvk) },
		"tcm":      func(r *Request) { r.tcm = bump(r.tcm) },
		"function": func(r *Request) { r.functionName = "withdraw" },
		"program":  func(r *Request) { r.programID = program.MustProgramID("other.vm") },
		"caller":   func(r *Request) { r.caller = other.caller },
		"public id": func(r *Request) {
			r.inputIDs[0] = PublicID{Hash: bump(r.inputIDs[0].(PublicID).Hash)}
		},
		"public id kind": func(r *Request) {
			r.inputIDs[0] = ConstantID{Hash: r.inputIDs[0].(PublicID).Hash}
		},
		"record tag": func(r *Request) {
			rid := r.inputIDs[1].(RecordID)
			rid.Tag = bump(rid.Tag)
			r.inputIDs[1] = rid
		},
		"record serial number": func(r *Request) {
			rid := r.inputIDs[1].(RecordID)
			rid.SerialNumber = bump(rid.SerialNumber)
			r.inputIDs[1] = rid
		},
		"record gamma": func(r *Request) {
			rid := r.inputIDs[1].(RecordID)
			rid.Gamma = f.sch.Group.Point().Add(rid.Gamma, f.sch.Group.Point().Base())
			r.inputIDs[1] = rid
		},
		"sk_tag": func(r *Request) { r.skTag = bump(r.skTag) },
		"challenge": func(r *Request) {
			r.signature.challenge = f.sch.Group.Scalar().Add(r.signature.challenge, scalarOne)
		},
		"response": func(r *Request) {
			r.signature.response = f.sch.Group.Scalar().Add(r.signature.response, scalarOne)
		},
		"compute key": func(r *Request) { r.signature.computeKey = otherReq.signature.computeKey },
		"signature":   func(r *Request) { r.signature = otherReq.signature },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			r := cloneRequest(req)
			mutate(r)
			require.Error(t, r.Verify(f.sch, types))
		})
	}

	require.ErrorIs(t, req.Verify(crypto.NewMainnetScheme(), types), ErrInvalidRequest)
	require.NoError(t, req.Verify(f.sch, types))
}

func TestSignFields(t *testing.T) {
	f := newFixture(t, 13)
	message := []crypto.Field{crypto.FieldFromUint64(1), crypto.FieldFromUint64(2), crypto.FieldFromUint64(3)}
	sig, err := SignFields(f.priv, message, newRNG(1))
	require.NoError(t, err)
	require.True(t, sig.Verify(f.sch, f.caller, message))

	for i := range message {
		tampered := append([]crypto.Field(nil), message...)
		tampered[i] = crypto.FieldFromUint64(99)
		require.False(t, sig.Verify(f.sch, f.caller, tampered), "field %d", i)
	}
	require.False(t, sig.Verify(f.sch, f.caller, message[:2]))
	require.False(t, sig.Verify(f.sch, newFixture(t, 14).caller, message))
	require.False(t, sig.Verify(f.sch, key.Address{}, message))

	var nilSig *Signature
	require.False(t, nilSig.Verify(f.sch, f.caller, message))
}

func TestRequestTOML(t *testing.T) {
	f := newFixture(t, 15)
	types := program.MustValueTypes("u64.public", "token.record", "point.private")
	point, err := program.ParsePlaintext("{ x: 1field, y: 2field }")
	require.NoError(t, err)
	inputs := []program.Value{program.NewU64(5), newRecord(f.caller, 10, 3), point}
	req, err := Sign(f.priv, tokenID, transfer, inputs, types, newRNG(1))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "request.toml")
	require.NoError(t, key.Save(path, req, false))
	loaded := new(Request)
	require.NoError(t, key.Load(path, loaded))

	require.Equal(t, encode(t, req), encode(t, loaded))
	require.NoError(t, loaded.Verify(f.sch, types))
	require.True(t, loaded.TSK().Equal(req.TSK()))

	require.Error(t, loaded.FromTOML(&SignatureTOML{}))
	bad := req.TOML().(*RequestTOML)
	bad.NetworkID = 9
	require.Error(t, new(Request).FromTOML(bad))
}

func TestRequestTOMLLargeField(t *testing.T) {
	f := newFixture(t, 16)
	types := program.MustValueTypes("field.public", "field.private")
	top, err := program.ParseLiteral(new(big.Int).Sub(crypto.Modulus(), big.NewInt(1)).String() + "field")
	require.NoError(t, err)
	inputs := []program.Value{top, top}
	req, err := Sign(f.priv, tokenID, transfer, inputs, types, newRNG(2))
	require.NoError(t, err)
	require.NoError(t, req.Verify(f.sch, types))

	path := filepath.Join(t.TempDir(), "request.toml")
	require.NoError(t, key.Save(path, req, false))
	loaded := new(Request)
	require.NoError(t, key.Load(path, loaded))
	require.Equal(t, encode(t, req), encode(t, loaded))
	require.NoError(t, loaded.Verify(f.sch, types))
}

func TestInputErrorIs(t *testing.T) {
	cause := errors.New("boom")
	err := &InputError{Kind: ErrDerivation, Index: 3, Type: program.PublicType{}, Program: tokenID, Function: transfer, Err: cause}
	require.ErrorIs(t, err, ErrDerivation)
	require.ErrorIs(t, err, cause)
	require.NotErrorIs(t, err, ErrOwnership)
	require.Contains(t, err.Error(), "input 3")
	require.Contains(t, err.Error(), "boom")

	wrapped := derivationError("challenge", cause)
	require.ErrorIs(t, wrapped, ErrDerivation)
	require.ErrorIs(t, wrapped, cause)
}
