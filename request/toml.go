package request

import (
	"errors"
	"fmt"

	"github.com/drand/vmauth/common/key"
	"github.com/drand/vmauth/crypto"
	"github.com/drand/vmauth/program"
)

// RequestTOML is the TOML-able version of a request. Inputs and input ids
// keep the order of the request.
type RequestTOML struct {
	SchemeName string
	NetworkID  uint16
	Caller     string
	Program    string
	Function   string
	SkTag      string
	TVK        string
	TSK        string
	TCM        string
	Signature  *SignatureTOML
	InputIDs   []InputIDTOML
	Inputs     []InputTOML
}

// InputIDTOML holds one input id. Hash is set for every kind but record.
type InputIDTOML struct {
	Kind         string
	Hash         string `toml:",omitempty"`
	Commitment   string `toml:",omitempty"`
	Gamma        string `toml:",omitempty"`
	SerialNumber string `toml:",omitempty"`
	Tag          string `toml:",omitempty"`
}

// InputTOML holds one input value, either a plaintext or a record.
type InputTOML struct {
	Plaintext string              `toml:",omitempty"`
	Record    *program.RecordTOML `toml:",omitempty"`
}

// TOML returns the TOML-compatible version of the request.
func (r *Request) TOML() interface{} {
	rtoml := &RequestTOML{
		NetworkID: r.networkID,
		Caller:    r.caller.String(),
		Program:   r.programID.String(),
		Function:  r.functionName.String(),
		SkTag:     crypto.FieldToString(&r.skTag),
		TVK:       crypto.FieldToString(&r.tvk),
		TSK:       crypto.ScalarToString(r.tsk),
		TCM:       crypto.FieldToString(&r.tcm),
		Signature: r.signature.TOML().(*SignatureTOML),
	}
	for _, name := range crypto.ListSchemes() {
		if sch, err := crypto.SchemeFromName(name); err == nil && sch.NetworkID == r.networkID {
			rtoml.SchemeName = name
		}
	}
	for _, id := range r.inputIDs {
		rtoml.InputIDs = append(rtoml.InputIDs, inputIDToTOML(id))
	}
	for _, in := range r.inputs {
		if rec, ok := in.(*program.Record); ok {
			rtoml.Inputs = append(rtoml.Inputs, InputTOML{Record: rec.TOML().(*program.RecordTOML)})
			continue
		}
		rtoml.Inputs = append(rtoml.Inputs, InputTOML{Plaintext: in.String()})
	}
	return rtoml
}

func inputIDToTOML(id InputID) InputIDTOML {
	out := InputIDTOML{Kind: id.Kind().String()}
	if h, ok := hashOf(id); ok {
		out.Hash = crypto.FieldToString(&h)
		return out
	}
	rid := id.(RecordID)
	out.Commitment = crypto.FieldToString(&rid.Commitment)
	out.Gamma = crypto.PointToString(rid.Gamma)
	out.SerialNumber = crypto.FieldToString(&rid.SerialNumber)
	out.Tag = crypto.FieldToString(&rid.Tag)
	return out
}

func inputIDFromTOML(sch *crypto.Scheme, t InputIDTOML) (InputID, error) {
	kind, err := parseInputKind(t.Kind)
	if err != nil {
		return nil, err
	}
	if kind != KindRecord {
		h, err := crypto.StringToField(t.Hash)
		if err != nil {
			return nil, fmt.Errorf("%s id: %w", kind, err)
		}
		switch kind {
		case KindConstant:
			return ConstantID{Hash: h}, nil
		case KindPublic:
			return PublicID{Hash: h}, nil
		case KindPrivate:
			return PrivateID{Hash: h}, nil
		default:
			return ExternalRecordID{Hash: h}, nil
		}
	}
	var rid RecordID
	if rid.Commitment, err = crypto.StringToField(t.Commitment); err != nil {
		return nil, fmt.Errorf("record commitment: %w", err)
	}
	if rid.Gamma, err = crypto.StringToPoint(sch.Group, t.Gamma); err != nil {
		return nil, fmt.Errorf("record gamma: %w", err)
	}
	if rid.SerialNumber, err = crypto.StringToField(t.SerialNumber); err != nil {
		return nil, fmt.Errorf("record serial number: %w", err)
	}
	if rid.Tag, err = crypto.StringToField(t.Tag); err != nil {
		return nil, fmt.Errorf("record tag: %w", err)
	}
	return rid, nil
}

// FromTOML decodes a request. The decoded request still has to be verified.
func (r *Request) FromTOML(i interface{}) error {
	rtoml, ok := i.(*RequestTOML)
	if !ok {
		return errors.New("request can't decode toml from non RequestTOML struct")
	}
	sch, err := crypto.GetSchemeByIDWithDefault(rtoml.SchemeName)
	if err != nil {
		return err
	}
	if sch.NetworkID != rtoml.NetworkID {
		return fmt.Errorf("scheme %s has network id %d, request has %d", sch, sch.NetworkID, rtoml.NetworkID)
	}
	req := &Request{networkID: rtoml.NetworkID}
	if req.caller, err = key.ParseAddress(rtoml.Caller); err != nil {
		return fmt.Errorf("request caller: %w", err)
	}
	if req.programID, err = program.ParseProgramID(rtoml.Program); err != nil {
		return err
	}
	if req.functionName, err = program.NewIdentifier(rtoml.Function); err != nil {
		return err
	}
	if req.skTag, err = crypto.StringToField(rtoml.SkTag); err != nil {
		return fmt.Errorf("request sk_tag: %w", err)
	}
	if req.tvk, err = crypto.StringToField(rtoml.TVK); err != nil {
		return fmt.Errorf("request tvk: %w", err)
	}
	if req.tsk, err = crypto.StringToScalar(sch.Group, rtoml.TSK); err != nil {
		return fmt.Errorf("request tsk: %w", err)
	}
	if req.tcm, err = crypto.StringToField(rtoml.TCM); err != nil {
		return fmt.Errorf("request tcm: %w", err)
	}
	if rtoml.Signature == nil {
		return errors.New("request has no signature")
	}
	req.signature = new(Signature)
	if err := req.signature.fromTOML(sch, rtoml.Signature); err != nil {
		return err
	}
	for _, t := range rtoml.InputIDs {
		id, err := inputIDFromTOML(sch, t)
		if err != nil {
			return err
		}
		req.inputIDs = append(req.inputIDs, id)
	}
	for _, t := range rtoml.Inputs {
		v, err := inputFromTOML(t)
		if err != nil {
			return err
		}
		req.inputs = append(req.inputs, v)
	}
	*r = *req
	return nil
}

func inputFromTOML(t InputTOML) (program.Value, error) {
	if t.Record != nil {
		rec := new(program.Record)
		if err := rec.FromTOML(t.Record); err != nil {
			return nil, err
		}
		return rec, nil
	}
	return program.ParsePlaintext(t.Plaintext)
}

// TOMLValue returns an empty TOML-compatible value of the request.
func (r *Request) TOMLValue() interface{} {
	return &RequestTOML{}
}
