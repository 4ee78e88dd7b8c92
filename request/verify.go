package request

import (
	"errors"
	"fmt"

	"github.com/drand/vmauth/crypto"
	"github.com/drand/vmauth/program"
)

// Verify checks the request against the declared input types of the called
// function. It rebuilds the signed message from the public parts of the
// request, checking every input identifier on the way, then checks the
// signature against the caller.
func (r *Request) Verify(sch *crypto.Scheme, inputTypes []program.ValueType, opts ...Option) error {
	cfg := new(config)
	for _, opt := range opts {
		opt(cfg)
	}
	if sch.NetworkID != r.networkID {
		return fmt.Errorf("%w: signed for network %d, verifying on %d", ErrInvalidRequest, r.networkID, sch.NetworkID)
	}
	if len(r.inputs) != len(inputTypes) || len(r.inputIDs) != len(inputTypes) {
		return fmt.Errorf("%w: %s/%s expects %d inputs, request has %d inputs and %d ids",
			ErrArity, r.programID, r.functionName, len(inputTypes), len(r.inputs), len(r.inputIDs))
	}
	if r.signature == nil || r.signature.computeKey == nil {
		return fmt.Errorf("%w: missing signature", ErrInvalidRequest)
	}

	tcm, err := transitionCommitment(sch, r.tvk)
	if err != nil {
		return derivationError("transition commitment", err)
	}
	if !tcm.Equal(&r.tcm) {
		return fmt.Errorf("%w: transition commitment does not match the transition view key", ErrInvalidRequest)
	}
	fid, err := functionID(sch, r.programID, r.functionName)
	if err != nil {
		return derivationError("function id", err)
	}

	v := &verifier{
		sch:        sch,
		req:        r,
		functionID: fid,
		message:    []crypto.Field{r.tvk, r.tcm, fid},
	}
	for i, t := range inputTypes {
		v.index, v.typ = i, t
		if err := t.Accept(v); err != nil {
			return err
		}
	}

	if !r.signature.Verify(sch, r.caller, v.message) {
		return fmt.Errorf("%w: signature check failed for %s/%s", ErrInvalidRequest, r.programID, r.functionName)
	}
	if cfg.tracing() {
		cfg.log.Debugw("request verified",
			"program", r.programID.String(),
			"function", r.functionName.String(),
			"caller", r.caller.String(),
			"inputs", inputKinds(r.inputIDs))
	}
	return nil
}

// verifier rebuilds the message of a request input by input.
type verifier struct {
	sch        *crypto.Scheme
	req        *Request
	functionID crypto.Field

	index int
	typ   program.ValueType

	message []crypto.Field
}

func (v *verifier) fail(kind, err error) error {
	return &InputError{
		Kind:     kind,
		Index:    v.index,
		Type:     v.typ,
		Program:  v.req.programID,
		Function: v.req.functionName,
		Err:      err,
	}
}

// checkHash compares a recomputed hash against the stored identifier, which
// must be of the given kind, and appends it to the message.
func (v *verifier) checkHash(kind InputKind, h crypto.Field, err error) error {
	if err != nil {
		return v.fail(ErrDerivation, err)
	}
	id := v.req.inputIDs[v.index]
	stored, ok := hashOf(id)
	if !ok || id.Kind() != kind {
		return v.fail(ErrInvalidRequest, fmt.Errorf("expected a %s id, got %s", kind, id.Kind()))
	}
	if !stored.Equal(&h) {
		return v.fail(ErrInvalidRequest, fmt.Errorf("%s id does not match the input", kind))
	}
	v.message = append(v.message, h)
	return nil
}

func (v *verifier) VisitConstant(t program.PlaintextType) error {
	p, err := expectPlaintext(v.req.inputs[v.index], t, v.fail)
	if err != nil {
		return err
	}
	h, err := plaintextHash(v.sch, v.functionID, p, v.req.tcm, v.index)
	return v.checkHash(KindConstant, h, err)
}

func (v *verifier) VisitPublic(t program.PlaintextType) error {
	p, err := expectPlaintext(v.req.inputs[v.index], t, v.fail)
	if err != nil {
		return err
	}
	h, err := plaintextHash(v.sch, v.functionID, p, v.req.tcm, v.index)
	return v.checkHash(KindPublic, h, err)
}

func (v *verifier) VisitPrivate(t program.PlaintextType) error {
	p, err := expectPlaintext(v.req.inputs[v.index], t, v.fail)
	if err != nil {
		return err
	}
	h, err := privateHash(v.sch, v.functionID, v.req.tvk, p, v.index)
	return v.checkHash(KindPrivate, h, err)
}

func (v *verifier) VisitExternalRecord(_ program.Locator) error {
	rec, err := expectRecord(v.req.inputs[v.index], v.fail)
	if err != nil {
		return err
	}
	h, err := externalRecordHash(v.sch, v.functionID, rec, v.req.tvk, v.index)
	return v.checkHash(KindExternalRecord, h, err)
}

func (v *verifier) VisitRecord(name program.Identifier) error {
	rec, err := expectRecord(v.req.inputs[v.index], v.fail)
	if err != nil {
		return err
	}
	id, ok := v.req.inputIDs[v.index].(RecordID)
	if !ok || id.Gamma == nil {
		return v.fail(ErrInvalidRequest, fmt.Errorf("expected a record id, got %s", v.req.inputIDs[v.index].Kind()))
	}
	if !rec.Owner.Equal(v.req.caller) {
		return v.fail(ErrOwnership, fmt.Errorf("owner is %s", rec.Owner))
	}
	cm, err := rec.Commitment(v.sch, v.req.programID, name)
	if err != nil {
		return v.fail(ErrDerivation, err)
	}
	if !cm.Equal(&id.Commitment) {
		return v.fail(ErrInvalidRequest, errors.New("record commitment does not match the input"))
	}
	h, err := serialNumberGenerator(v.sch, cm)
	if err != nil {
		return v.fail(ErrDerivation, err)
	}
	// r*H = response*H + challenge*gamma
	g := v.sch.Group
	sig := v.req.signature
	hr := g.Point().Mul(sig.response, h)
	hr.Add(hr, g.Point().Mul(sig.challenge, id.Gamma))

	sn, err := serialNumber(v.sch, id.Gamma, cm)
	if err != nil {
		return v.fail(ErrDerivation, err)
	}
	if !sn.Equal(&id.SerialNumber) {
		return v.fail(ErrInvalidRequest, errors.New("serial number does not match gamma"))
	}
	tag, err := recordTag(v.sch, v.req.skTag, cm)
	if err != nil {
		return v.fail(ErrDerivation, err)
	}
	if !tag.Equal(&id.Tag) {
		return v.fail(ErrInvalidRequest, errors.New("tag does not match the commitment"))
	}
	v.message = append(v.message,
		crypto.XCoordinate(h),
		crypto.XCoordinate(hr),
		crypto.XCoordinate(id.Gamma),
		id.Tag)
	return nil
}
