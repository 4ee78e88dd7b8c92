package request

import (
	"fmt"
	"io"
	"math"

	"github.com/drand/kyber"

	"github.com/drand/vmauth/common/key"
	"github.com/drand/vmauth/common/log"
	"github.com/drand/vmauth/crypto"
	"github.com/drand/vmauth/program"
)

type config struct {
	log log.Logger
}

// Option customizes Sign and Verify.
type Option func(*config)

// WithLogger traces the public intermediate values of signing and
// verification at debug level. Without it nothing is logged.
func WithLogger(l log.Logger) Option {
	return func(c *config) {
		c.log = l
	}
}

func (c *config) tracing() bool {
	return c.log != nil && c.log.Enabled(log.DebugLevel)
}

// Sign builds the request authorizing a call of programID/functionName on the
// given inputs. The scheme is the one the private key was derived under.
// Inputs are checked against inputTypes one by one, in order, and any failure
// returns no request. rng provides the nonce of the transition secret and must
// not be reused across calls.
func Sign(
	priv *key.PrivateKey,
	programID program.ProgramID,
	functionName program.Identifier,
	inputs []program.Value,
	inputTypes []program.ValueType,
	rng io.Reader,
	opts ...Option,
) (*Request, error) {
	if len(inputs) != len(inputTypes) {
		return nil, fmt.Errorf("%w: %s/%s expects %d inputs, got %d",
			ErrArity, programID, functionName, len(inputTypes), len(inputs))
	}
	if len(inputTypes) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %s/%s has %d inputs", ErrIndexOverflow, programID, functionName, len(inputTypes))
	}
	cfg := new(config)
	for _, opt := range opts {
		opt(cfg)
	}

	sch := priv.Scheme()
	keys, err := key.Derive(priv)
	if err != nil {
		return nil, derivationError("account keys", err)
	}
	skSig := priv.SkSig()

	nonce, err := crypto.SampleField(rng)
	if err != nil {
		return nil, derivationError("nonce", err)
	}
	r, err := sch.HashToScalar(sch.SerialNumberDomain, crypto.ScalarToField(skSig), nonce)
	if err != nil {
		return nil, derivationError("transition secret", err)
	}
	g := sch.Group
	gr := g.Point().Mul(r, nil)
	caller := keys.Address
	tvk := crypto.XCoordinate(g.Point().Mul(r, caller.Point()))
	tcm, err := transitionCommitment(sch, tvk)
	if err != nil {
		return nil, derivationError("transition commitment", err)
	}
	fid, err := functionID(sch, programID, functionName)
	if err != nil {
		return nil, derivationError("function id", err)
	}

	s := &signer{
		sch:          sch,
		keys:         keys,
		skSig:        skSig,
		r:            r,
		programID:    programID,
		functionName: functionName,
		functionID:   fid,
		tvk:          tvk,
		tcm:          tcm,
		message: []crypto.Field{
			crypto.XCoordinate(gr),
			crypto.XCoordinate(keys.ComputeKey.PkSig()),
			crypto.XCoordinate(keys.ComputeKey.PrSig()),
			caller.X(),
			tvk,
			tcm,
			fid,
		},
		ids: make([]InputID, 0, len(inputs)),
	}
	for i, t := range inputTypes {
		s.index, s.input, s.typ = i, inputs[i], t
		if err := t.Accept(s); err != nil {
			return nil, err
		}
	}

	challenge, err := sch.HashToScalar(s.message...)
	if err != nil {
		return nil, derivationError("challenge", err)
	}
	response := g.Scalar().Mul(challenge, skSig)
	response.Sub(r, response)

	if cfg.tracing() {
		cfg.log.Debugw("request signed",
			"program", programID.String(),
			"function", functionName.String(),
			"caller", caller.String(),
			"function_id", crypto.FieldToString(&fid),
			"tvk", crypto.FieldToString(&tvk),
			"tcm", crypto.FieldToString(&tcm),
			"inputs", inputKinds(s.ids),
			"message_len", len(s.message))
	}

	return &Request{
		caller:       caller,
		networkID:    sch.NetworkID,
		programID:    programID,
		functionName: functionName,
		inputIDs:     s.ids,
		inputs:       append([]program.Value(nil), inputs...),
		signature:    NewSignature(challenge, response, keys.ComputeKey),
		skTag:        keys.GraphKey.SkTag(),
		tvk:          tvk,
		tsk:          r,
		tcm:          tcm,
	}, nil
}

func inputKinds(ids []InputID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Kind().String()
	}
	return out
}

// signer derives the identifier of each input and accumulates the message.
type signer struct {
	sch          *crypto.Scheme
	keys         *key.Derived
	skSig        kyber.Scalar
	r            kyber.Scalar
	programID    program.ProgramID
	functionName program.Identifier
	functionID   crypto.Field
	tvk          crypto.Field
	tcm          crypto.Field

	index int
	input program.Value
	typ   program.ValueType

	message []crypto.Field
	ids     []InputID
}

func (s *signer) fail(kind, err error) error {
	return &InputError{
		Kind:     kind,
		Index:    s.index,
		Type:     s.typ,
		Program:  s.programID,
		Function: s.functionName,
		Err:      err,
	}
}

func (s *signer) plaintext(t program.PlaintextType) (program.Plaintext, error) {
	return expectPlaintext(s.input, t, s.fail)
}

func (s *signer) record() (*program.Record, error) {
	return expectRecord(s.input, s.fail)
}

func (s *signer) VisitConstant(t program.PlaintextType) error {
	p, err := s.plaintext(t)
	if err != nil {
		return err
	}
	h, err := plaintextHash(s.sch, s.functionID, p, s.tcm, s.index)
	if err != nil {
		return s.fail(ErrDerivation, err)
	}
	s.message = append(s.message, h)
	s.ids = append(s.ids, ConstantID{Hash: h})
	return nil
}

func (s *signer) VisitPublic(t program.PlaintextType) error {
	p, err := s.plaintext(t)
	if err != nil {
		return err
	}
	h, err := plaintextHash(s.sch, s.functionID, p, s.tcm, s.index)
	if err != nil {
		return s.fail(ErrDerivation, err)
	}
	s.message = append(s.message, h)
	s.ids = append(s.ids, PublicID{Hash: h})
	return nil
}

func (s *signer) VisitPrivate(t program.PlaintextType) error {
	p, err := s.plaintext(t)
	if err != nil {
		return err
	}
	h, err := privateHash(s.sch, s.functionID, s.tvk, p, s.index)
	if err != nil {
		return s.fail(ErrDerivation, err)
	}
	s.message = append(s.message, h)
	s.ids = append(s.ids, PrivateID{Hash: h})
	return nil
}

func (s *signer) VisitRecord(name program.Identifier) error {
	rec, err := s.record()
	if err != nil {
		return err
	}
	if !rec.Owner.Equal(s.keys.Address) {
		return s.fail(ErrOwnership, fmt.Errorf("owner is %s", rec.Owner))
	}
	cm, err := rec.Commitment(s.sch, s.programID, name)
	if err != nil {
		return s.fail(ErrDerivation, err)
	}
	h, err := serialNumberGenerator(s.sch, cm)
	if err != nil {
		return s.fail(ErrDerivation, err)
	}
	g := s.sch.Group
	hr := g.Point().Mul(s.r, h)
	gamma := g.Point().Mul(s.skSig, h)
	sn, err := serialNumber(s.sch, gamma, cm)
	if err != nil {
		return s.fail(ErrDerivation, err)
	}
	tag, err := recordTag(s.sch, s.keys.GraphKey.SkTag(), cm)
	if err != nil {
		return s.fail(ErrDerivation, err)
	}
	s.message = append(s.message,
		crypto.XCoordinate(h),
		crypto.XCoordinate(hr),
		crypto.XCoordinate(gamma),
		tag)
	s.ids = append(s.ids, RecordID{Commitment: cm, Gamma: gamma, SerialNumber: sn, Tag: tag})
	return nil
}

func (s *signer) VisitExternalRecord(_ program.Locator) error {
	rec, err := s.record()
	if err != nil {
		return err
	}
	h, err := externalRecordHash(s.sch, s.functionID, rec, s.tvk, s.index)
	if err != nil {
		return s.fail(ErrDerivation, err)
	}
	s.message = append(s.message, h)
	s.ids = append(s.ids, ExternalRecordID{Hash: h})
	return nil
}

func expectPlaintext(v program.Value, t program.PlaintextType, fail func(kind, err error) error) (program.Plaintext, error) {
	p, ok := v.(program.Plaintext)
	if !ok || p == nil {
		return nil, fail(ErrTypeMismatch, fmt.Errorf("expected a plaintext, got %T", v))
	}
	if !t.Accepts(p) {
		return nil, fail(ErrTypeMismatch, fmt.Errorf("expected %s, got %s", t, p))
	}
	return p, nil
}

func expectRecord(v program.Value, fail func(kind, err error) error) (*program.Record, error) {
	rec, ok := v.(*program.Record)
	if !ok || rec == nil {
		return nil, fail(ErrTypeMismatch, fmt.Errorf("expected a record, got %T", v))
	}
	return rec, nil
}
