package program

import (
	"fmt"
	"strings"
)

// PlaintextType is the declared type of a plaintext: a literal type, or the
// name of a struct when Literal is zero.
type PlaintextType struct {
	Literal LiteralType
	Struct  Identifier
}

// IsLiteral reports whether the type names a literal type.
func (t PlaintextType) IsLiteral() bool {
	return t.Literal != 0
}

// Accepts reports whether p has the shape of t. Literal types must match
// exactly. Programs do not declare struct layouts, so a struct type accepts
// any struct value whatever its members.
func (t PlaintextType) Accepts(p Plaintext) bool {
	switch v := p.(type) {
	case *Literal:
		return t.IsLiteral() && v.Type() == t.Literal
	case *Struct:
		return !t.IsLiteral()
	default:
		return false
	}
}

func (t PlaintextType) String() string {
	if t.IsLiteral() {
		return t.Literal.String()
	}
	return string(t.Struct)
}

// ParsePlaintextType parses "u64" or a struct name.
func ParsePlaintextType(s string) (PlaintextType, error) {
	if lt, ok := ParseLiteralType(s); ok {
		return PlaintextType{Literal: lt}, nil
	}
	id, err := NewIdentifier(s)
	if err != nil {
		return PlaintextType{}, err
	}
	return PlaintextType{Struct: id}, nil
}

// ValueTypeVisitor has one method per visibility class of a function input.
// Adding a class to ValueType adds a method here, so every visitor stops
// compiling until it handles the new class.
type ValueTypeVisitor interface {
	VisitConstant(t PlaintextType) error
	VisitPublic(t PlaintextType) error
	VisitPrivate(t PlaintextType) error
	VisitRecord(name Identifier) error
	VisitExternalRecord(l Locator) error
}

// ValueType is the declared type of a function input, including its
// visibility class. The implementations in this package are the only ones.
type ValueType interface {
	Accept(v ValueTypeVisitor) error
	String() string
	isValueType()
}

// ConstantType is a plaintext input known at compile time.
type ConstantType struct{ Type PlaintextType }

// PublicType is a plaintext input revealed to verifiers.
type PublicType struct{ Type PlaintextType }

// PrivateType is a plaintext input only revealed as a ciphertext hash.
type PrivateType struct{ Type PlaintextType }

// RecordType is a record of the called program, spent by the call.
type RecordType struct{ Name Identifier }

// ExternalRecordType is a record declared by another program.
type ExternalRecordType struct{ Locator Locator }

func (t ConstantType) Accept(v ValueTypeVisitor) error       { return v.VisitConstant(t.Type) }
func (t PublicType) Accept(v ValueTypeVisitor) error         { return v.VisitPublic(t.Type) }
func (t PrivateType) Accept(v ValueTypeVisitor) error        { return v.VisitPrivate(t.Type) }
func (t RecordType) Accept(v ValueTypeVisitor) error         { return v.VisitRecord(t.Name) }
func (t ExternalRecordType) Accept(v ValueTypeVisitor) error { return v.VisitExternalRecord(t.Locator) }

func (t ConstantType) String() string       { return t.Type.String() + ".constant" }
func (t PublicType) String() string         { return t.Type.String() + ".public" }
func (t PrivateType) String() string        { return t.Type.String() + ".private" }
func (t RecordType) String() string         { return string(t.Name) + ".record" }
func (t ExternalRecordType) String() string { return t.Locator.String() + ".record" }

func (ConstantType) isValueType()       {}
func (PublicType) isValueType()         {}
func (PrivateType) isValueType()        {}
func (RecordType) isValueType()         {}
func (ExternalRecordType) isValueType() {}

// ParseValueType parses a declared input type: "u64.public", "point.private",
// "token.record" or "token.vm/token.record".
func ParseValueType(s string) (ValueType, error) {
	idx := strings.LastIndex(s, ".")
	if idx < 0 {
		return nil, fmt.Errorf("%w: type %q has no visibility", ErrInvalidIdentifier, s)
	}
	base, class := s[:idx], s[idx+1:]
	if class == "record" {
		if strings.Contains(base, "/") {
			l, err := ParseLocator(base)
			if err != nil {
				return nil, err
			}
			return ExternalRecordType{Locator: l}, nil
		}
		name, err := NewIdentifier(base)
		if err != nil {
			return nil, err
		}
		return RecordType{Name: name}, nil
	}
	pt, err := ParsePlaintextType(base)
	if err != nil {
		return nil, err
	}
	switch class {
	case "constant":
		return ConstantType{Type: pt}, nil
	case "public":
		return PublicType{Type: pt}, nil
	case "private":
		return PrivateType{Type: pt}, nil
	default:
		return nil, fmt.Errorf("%w: unknown visibility %q in %q", ErrInvalidIdentifier, class, s)
	}
}

// MustValueTypes parses each declaration and panics on malformed input.
func MustValueTypes(decls ...string) []ValueType {
	out := make([]ValueType, len(decls))
	for i, d := range decls {
		t, err := ParseValueType(d)
		if err != nil {
			panic(err)
		}
		out[i] = t
	}
	return out
}
