package request

import (
	"github.com/drand/kyber"

	"github.com/drand/vmauth/common/key"
	"github.com/drand/vmauth/crypto"
	"github.com/drand/vmauth/program"
)

// Request is a signed authorization of one function call. It is built by
// Sign and never modified afterwards; accessors return copies of mutable
// parts.
type Request struct {
	caller       key.Address
	networkID    uint16
	programID    program.ProgramID
	functionName program.Identifier
	inputIDs     []InputID
	inputs       []program.Value
	signature    *Signature
	skTag        crypto.Field
	tvk          crypto.Field
	tsk          kyber.Scalar
	tcm          crypto.Field
}

// Caller returns the address of the signer.
func (r *Request) Caller() key.Address {
	return r.caller
}

// NetworkID returns the network the request was signed for.
func (r *Request) NetworkID() uint16 {
	return r.networkID
}

// ProgramID returns the called program.
func (r *Request) ProgramID() program.ProgramID {
	return r.programID
}

// FunctionName returns the called function.
func (r *Request) FunctionName() program.Identifier {
	return r.functionName
}

// InputIDs returns the input identifiers in input order.
func (r *Request) InputIDs() []InputID {
	return append([]InputID(nil), r.inputIDs...)
}

// Inputs returns the input values in input order.
func (r *Request) Inputs() []program.Value {
	return append([]program.Value(nil), r.inputs...)
}

// Signature returns the request signature.
func (r *Request) Signature() *Signature {
	return r.signature
}

// SkTag returns the tag secret of the signer.
func (r *Request) SkTag() crypto.Field {
	return r.skTag
}

// TVK returns the transition view key.
func (r *Request) TVK() crypto.Field {
	return r.tvk
}

// TSK returns a copy of the transition secret key.
func (r *Request) TSK() kyber.Scalar {
	return r.tsk.Clone()
}

// TCM returns the transition commitment.
func (r *Request) TCM() crypto.Field {
	return r.tcm
}

// RecordIDs returns the identifiers of the records the request spends.
func (r *Request) RecordIDs() []RecordID {
	var out []RecordID
	for _, id := range r.inputIDs {
		if rid, ok := id.(RecordID); ok {
			out = append(out, rid)
		}
	}
	return out
}
