package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/drand/kyber"
)

// ErrNonCanonicalField is returned when decoding an encoding that is not
// strictly smaller than the field modulus.
var ErrNonCanonicalField = errors.New("non canonical field encoding")

// PointToString returns a hex-encoded string representation of the given point.
func PointToString(p kyber.Point) string {
	buff, _ := p.MarshalBinary()
	return hex.EncodeToString(buff)
}

// ScalarToString returns a hex-encoded string representation of the given scalar.
func ScalarToString(s kyber.Scalar) string {
	buff, _ := s.MarshalBinary()
	return hex.EncodeToString(buff)
}

// FieldToString returns the hex-encoded big-endian representation of f.
func FieldToString(f *Field) string {
	buff := f.Bytes()
	return hex.EncodeToString(buff[:])
}

// StringToPoint unmarshals a point in the given group from the given string.
func StringToPoint(g kyber.Group, s string) (kyber.Point, error) {
	buff, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	p := g.Point()
	return p, p.UnmarshalBinary(buff)
}

// StringToScalar unmarshals a scalar in the given group from the given string.
func StringToScalar(g kyber.Group, s string) (kyber.Scalar, error) {
	buff, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	sc := g.Scalar()
	return sc, sc.UnmarshalBinary(buff)
}

// StringToField decodes a field element produced by FieldToString.
func StringToField(s string) (Field, error) {
	var f Field
	buff, err := hex.DecodeString(s)
	if err != nil {
		return f, err
	}
	if len(buff) != fr.Bytes {
		return f, fmt.Errorf("%w: expected %d bytes, got %d", ErrNonCanonicalField, fr.Bytes, len(buff))
	}
	if new(big.Int).SetBytes(buff).Cmp(fr.Modulus()) >= 0 {
		return f, ErrNonCanonicalField
	}
	f.SetBytes(buff)
	return f, nil
}
