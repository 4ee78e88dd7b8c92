package program

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/drand/kyber"

	"github.com/drand/vmauth/common/key"
	"github.com/drand/vmauth/crypto"
)

// LiteralType enumerates the primitive types a literal can take.
type LiteralType uint8

// The zero LiteralType is not a valid type; it marks struct-typed
// plaintexts in PlaintextType.
const (
	TypeAddress LiteralType = iota + 1
	TypeBoolean
	TypeField
	TypeScalar
	TypeI8
	TypeI16
	TypeI32
	TypeI64
	TypeI128
	TypeU8
	TypeU16
	TypeU32
	TypeU64
	TypeU128
)

var literalTypeNames = map[LiteralType]string{
	TypeAddress: "address",
	TypeBoolean: "boolean",
	TypeField:   "field",
	TypeScalar:  "scalar",
	TypeI8:      "i8",
	TypeI16:     "i16",
	TypeI32:     "i32",
	TypeI64:     "i64",
	TypeI128:    "i128",
	TypeU8:      "u8",
	TypeU16:     "u16",
	TypeU32:     "u32",
	TypeU64:     "u64",
	TypeU128:    "u128",
}

// ErrInvalidLiteral is returned for out of range or malformed literals.
var ErrInvalidLiteral = errors.New("invalid literal")

// ParseLiteralType maps a type name such as "u64" to its LiteralType.
func ParseLiteralType(s string) (LiteralType, bool) {
	for t, name := range literalTypeNames {
		if name == s {
			return t, true
		}
	}
	return 0, false
}

func (t LiteralType) String() string {
	if name, ok := literalTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("LiteralType(%d)", uint8(t))
}

// IsInteger reports whether t is one of the fixed width integer types.
func (t LiteralType) IsInteger() bool {
	return t >= TypeI8 && t <= TypeU128
}

// IsSigned reports whether t is a signed integer type.
func (t LiteralType) IsSigned() bool {
	return t >= TypeI8 && t <= TypeI128
}

// Bits returns the width of an integer type and 0 for the other types.
func (t LiteralType) Bits() uint {
	switch t {
	case TypeI8, TypeU8:
		return 8
	case TypeI16, TypeU16:
		return 16
	case TypeI32, TypeU32:
		return 32
	case TypeI64, TypeU64:
		return 64
	case TypeI128, TypeU128:
		return 128
	default:
		return 0
	}
}

// integerRange returns the inclusive bounds of an integer type.
func (t LiteralType) integerRange() (lo, hi *big.Int) {
	bits := t.Bits()
	one := big.NewInt(1)
	if t.IsSigned() {
		half := new(big.Int).Lsh(one, bits-1)
		return new(big.Int).Neg(half), new(big.Int).Sub(half, one)
	}
	return new(big.Int), new(big.Int).Sub(new(big.Int).Lsh(one, bits), one)
}

// Literal is a typed primitive value.
type Literal struct {
	typ  LiteralType
	addr key.Address
	b    bool
	f    crypto.Field
	s    kyber.Scalar
	i    *big.Int
}

// NewAddress returns an address literal.
func NewAddress(a key.Address) *Literal {
	return &Literal{typ: TypeAddress, addr: a}
}

// NewBoolean returns a boolean literal.
func NewBoolean(b bool) *Literal {
	return &Literal{typ: TypeBoolean, b: b}
}

// NewField returns a field literal.
func NewField(f crypto.Field) *Literal {
	return &Literal{typ: TypeField, f: f}
}

// NewScalar returns a scalar literal.
func NewScalar(s kyber.Scalar) *Literal {
	return &Literal{typ: TypeScalar, s: s.Clone()}
}

// NewInteger returns an integer literal of type t, failing if v is outside the
// range of t.
func NewInteger(t LiteralType, v *big.Int) (*Literal, error) {
	if !t.IsInteger() {
		return nil, fmt.Errorf("%w: %s is not an integer type", ErrInvalidLiteral, t)
	}
	lo, hi := t.integerRange()
	if v.Cmp(lo) < 0 || v.Cmp(hi) > 0 {
		return nil, fmt.Errorf("%w: %s out of range for %s", ErrInvalidLiteral, v, t)
	}
	return &Literal{typ: t, i: new(big.Int).Set(v)}, nil
}

// NewU64 returns a u64 literal.
func NewU64(v uint64) *Literal {
	return &Literal{typ: TypeU64, i: new(big.Int).SetUint64(v)}
}

// Type returns the literal type.
func (l *Literal) Type() LiteralType {
	return l.typ
}

// Address returns the value of an address literal.
func (l *Literal) Address() (key.Address, bool) {
	return l.addr, l.typ == TypeAddress
}

// Int returns a copy of the value of an integer literal.
func (l *Literal) Int() (*big.Int, bool) {
	if !l.typ.IsInteger() {
		return nil, false
	}
	return new(big.Int).Set(l.i), true
}

// valueField packs the literal value into a single field element. Integers
// are taken in two's complement over their own width.
func (l *Literal) valueField() (crypto.Field, error) {
	var f crypto.Field
	switch {
	case l.typ == TypeAddress:
		if l.addr.IsZero() {
			return f, fmt.Errorf("%w: unset address", ErrInvalidLiteral)
		}
		return l.addr.X(), nil
	case l.typ == TypeBoolean:
		if l.b {
			f.SetOne()
		}
		return f, nil
	case l.typ == TypeField:
		return l.f, nil
	case l.typ == TypeScalar:
		return crypto.ScalarToField(l.s), nil
	case l.typ.IsInteger():
		v := new(big.Int).Set(l.i)
		if v.Sign() < 0 {
			v.Add(v, new(big.Int).Lsh(big.NewInt(1), l.typ.Bits()))
		}
		f.SetBigInt(v)
		return f, nil
	default:
		return f, fmt.Errorf("%w: unknown type %s", ErrInvalidLiteral, l.typ)
	}
}

// ToFields encodes the literal as its type tag followed by its value.
func (l *Literal) ToFields() ([]crypto.Field, error) {
	v, err := l.valueField()
	if err != nil {
		return nil, err
	}
	return []crypto.Field{crypto.FieldFromUint64(uint64(l.typ)), v}, nil
}

// Equal reports whether both literals have the same type and value.
func (l *Literal) Equal(o *Literal) bool {
	if l.typ != o.typ {
		return false
	}
	a, errA := l.valueField()
	b, errB := o.valueField()
	return errA == nil && errB == nil && a.Equal(&b)
}

func (l *Literal) String() string {
	switch {
	case l.typ == TypeAddress:
		return l.addr.String()
	case l.typ == TypeBoolean:
		if l.b {
			return "true"
		}
		return "false"
	case l.typ == TypeField:
		return l.f.BigInt(new(big.Int)).String() + "field"
	case l.typ == TypeScalar:
		f := crypto.ScalarToField(l.s)
		return f.BigInt(new(big.Int)).String() + "scalar"
	case l.typ.IsInteger():
		return l.i.String() + l.typ.String()
	default:
		return "<invalid literal>"
	}
}

func (l *Literal) isPlaintext() {}

// ParseLiteral parses the textual form of a literal: "true", "false", an
// address, or a decimal number suffixed by its type as in "10u64", "-3i8",
// "7field" or "5scalar".
func ParseLiteral(s string) (*Literal, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "true":
		return NewBoolean(true), nil
	case s == "false":
		return NewBoolean(false), nil
	case strings.HasPrefix(s, key.AddressPrefix):
		a, err := key.ParseAddress(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidLiteral, err)
		}
		return NewAddress(a), nil
	}

	typ, digits, ok := splitLiteralSuffix(s)
	if !ok {
		return nil, fmt.Errorf("%w: unknown type in %q", ErrInvalidLiteral, s)
	}
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a decimal number", ErrInvalidLiteral, digits)
	}
	switch typ {
	case TypeField:
		if v.Sign() < 0 || v.Cmp(crypto.Modulus()) >= 0 {
			return nil, fmt.Errorf("%w: %s is not a field element", ErrInvalidLiteral, v)
		}
		var f crypto.Field
		f.SetBigInt(v)
		return NewField(f), nil
	case TypeScalar:
		if v.Sign() < 0 || v.Cmp(crypto.Order()) >= 0 {
			return nil, fmt.Errorf("%w: %s is not a scalar", ErrInvalidLiteral, v)
		}
		var f crypto.Field
		f.SetBigInt(v)
		return NewScalar(crypto.FieldToScalar(&f)), nil
	case TypeAddress, TypeBoolean:
		return nil, fmt.Errorf("%w: %q", ErrInvalidLiteral, s)
	default:
		return NewInteger(typ, v)
	}
}

// splitLiteralSuffix separates the numeric part of s from its type suffix.
func splitLiteralSuffix(s string) (LiteralType, string, bool) {
	var best LiteralType
	for t, name := range literalTypeNames {
		if strings.HasSuffix(s, name) && len(name) > len(literalTypeNames[best]) {
			best = t
		}
	}
	if best == 0 {
		return 0, "", false
	}
	return best, strings.TrimSuffix(s, literalTypeNames[best]), true
}
