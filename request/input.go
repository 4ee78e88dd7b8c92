package request

import (
	"fmt"

	"github.com/drand/kyber"

	"github.com/drand/vmauth/crypto"
)

// InputKind is the visibility class of an input identifier.
type InputKind uint8

const (
	KindConstant InputKind = iota + 1
	KindPublic
	KindPrivate
	KindRecord
	KindExternalRecord
)

var inputKindNames = map[InputKind]string{
	KindConstant:       "constant",
	KindPublic:         "public",
	KindPrivate:        "private",
	KindRecord:         "record",
	KindExternalRecord: "external_record",
}

func (k InputKind) String() string {
	if name, ok := inputKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("InputKind(%d)", uint8(k))
}

func parseInputKind(s string) (InputKind, error) {
	for k, name := range inputKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown input kind %q", s)
}

// InputID is the public identifier of an input. It carries what a verifier
// needs to check the input without learning private values. The types in
// this package are the only implementations.
type InputID interface {
	Kind() InputKind
	isInputID()
}

// ConstantID is the hash of a constant input.
type ConstantID struct{ Hash crypto.Field }

// PublicID is the hash of a public input.
type PublicID struct{ Hash crypto.Field }

// PrivateID is the hash of the ciphertext of a private input.
type PrivateID struct{ Hash crypto.Field }

// ExternalRecordID is the hash of a record declared by another program.
type ExternalRecordID struct{ Hash crypto.Field }

// RecordID binds a spent record to its serial number and tag.
type RecordID struct {
	Commitment   crypto.Field
	Gamma        kyber.Point
	SerialNumber crypto.Field
	Tag          crypto.Field
}

func (ConstantID) Kind() InputKind       { return KindConstant }
func (PublicID) Kind() InputKind         { return KindPublic }
func (PrivateID) Kind() InputKind        { return KindPrivate }
func (ExternalRecordID) Kind() InputKind { return KindExternalRecord }
func (RecordID) Kind() InputKind         { return KindRecord }

func (ConstantID) isInputID()       {}
func (PublicID) isInputID()         {}
func (PrivateID) isInputID()        {}
func (ExternalRecordID) isInputID() {}
func (RecordID) isInputID()         {}

// hashOf returns the hash of the single-hash identifiers.
func hashOf(id InputID) (crypto.Field, bool) {
	switch v := id.(type) {
	case ConstantID:
		return v.Hash, true
	case PublicID:
		return v.Hash, true
	case PrivateID:
		return v.Hash, true
	case ExternalRecordID:
		return v.Hash, true
	default:
		return crypto.Field{}, false
	}
}
