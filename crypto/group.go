package crypto

import (
	"crypto/cipher"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-377/twistededwards"
	"github.com/drand/kyber"
	"github.com/drand/kyber/group/mod"
)

// Field is an element of the base field of the Edwards curve, which is the
// scalar field of BLS12-377. Every hash in this package outputs a Field.
type Field = fr.Element

// ErrInvalidPoint is returned when decoding bytes that do not represent a
// point of the prime order subgroup.
var ErrInvalidPoint = errors.New("invalid edwards point")

// cofactor of the Edwards curve over the BLS12-377 scalar field.
const cofactor = 4

var curve = twistededwards.GetEdwardsCurve()

type edwardsGroup struct{}

// Edwards is the prime order subgroup of the twisted Edwards curve defined
// over the BLS12-377 scalar field. Scalars are integers modulo the subgroup
// order and points are affine Edwards points.
var Edwards kyber.Group = &edwardsGroup{}

func (g *edwardsGroup) String() string {
	return "edwards-bls12-377"
}

func (g *edwardsGroup) ScalarLen() int {
	return (curve.Order.BitLen() + 7) / 8
}

func (g *edwardsGroup) Scalar() kyber.Scalar {
	return mod.NewInt64(0, &curve.Order)
}

func (g *edwardsGroup) PointLen() int {
	return fr.Bytes
}

func (g *edwardsGroup) Point() kyber.Point {
	return new(point).Null()
}

// point implements kyber.Point on top of the gnark-crypto affine Edwards point.
type point struct {
	p twistededwards.PointAffine
}

func (P *point) MarshalBinary() ([]byte, error) {
	buff := P.p.Bytes()
	return buff[:], nil
}

func (P *point) UnmarshalBinary(buff []byte) error {
	if len(buff) != fr.Bytes {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPoint, fr.Bytes, len(buff))
	}
	var q twistededwards.PointAffine
	if _, err := q.SetBytes(buff); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPoint, err)
	}
	if !q.IsOnCurve() {
		return ErrInvalidPoint
	}
	// reject points outside the prime order subgroup
	var check twistededwards.PointAffine
	check.ScalarMultiplication(&q, &curve.Order)
	if !isIdentity(&check) {
		return fmt.Errorf("%w: not in the prime order subgroup", ErrInvalidPoint)
	}
	P.p = q
	return nil
}

func (P *point) String() string {
	buff, _ := P.MarshalBinary()
	return hex.EncodeToString(buff)
}

func (P *point) MarshalSize() int {
	return fr.Bytes
}

func (P *point) MarshalTo(w io.Writer) (int, error) {
	buff, err := P.MarshalBinary()
	if err != nil {
		return 0, err
	}
	return w.Write(buff)
}

func (P *point) UnmarshalFrom(r io.Reader) (int, error) {
	buff := make([]byte, fr.Bytes)
	n, err := io.ReadFull(r, buff)
	if err != nil {
		return n, err
	}
	return n, P.UnmarshalBinary(buff)
}

func (P *point) Equal(q kyber.Point) bool {
	return P.p.Equal(&asPoint(q).p)
}

func (P *point) Null() kyber.Point {
	P.p.X.SetZero()
	P.p.Y.SetOne()
	return P
}

func (P *point) Base() kyber.Point {
	P.p.Set(&curve.Base)
	return P
}

func (P *point) Pick(rand cipher.Stream) kyber.Point {
	return P.Mul(Edwards.Scalar().Pick(rand), nil)
}

func (P *point) Set(q kyber.Point) kyber.Point {
	P.p.Set(&asPoint(q).p)
	return P
}

func (P *point) Clone() kyber.Point {
	c := new(point)
	c.p.Set(&P.p)
	return c
}

// EmbedLen returns 0: data embedding is not supported by this group.
func (P *point) EmbedLen() int {
	return 0
}

func (P *point) Embed(_ []byte, rand cipher.Stream) kyber.Point {
	return P.Pick(rand)
}

func (P *point) Data() ([]byte, error) {
	return nil, errors.New("edwards-bls12-377: data embedding not supported")
}

func (P *point) Add(a, b kyber.Point) kyber.Point {
	P.p.Add(&asPoint(a).p, &asPoint(b).p)
	return P
}

func (P *point) Sub(a, b kyber.Point) kyber.Point {
	var neg twistededwards.PointAffine
	neg.Neg(&asPoint(b).p)
	P.p.Add(&asPoint(a).p, &neg)
	return P
}

func (P *point) Neg(a kyber.Point) kyber.Point {
	P.p.Neg(&asPoint(a).p)
	return P
}

// Mul sets P to s*q, or to s*G when q is nil.
func (P *point) Mul(s kyber.Scalar, q kyber.Point) kyber.Point {
	var base twistededwards.PointAffine
	if q == nil {
		base.Set(&curve.Base)
	} else {
		base.Set(&asPoint(q).p)
	}
	P.p.ScalarMultiplication(&base, scalarToBig(s))
	return P
}

func asPoint(q kyber.Point) *point {
	p, ok := q.(*point)
	if !ok {
		panic(fmt.Sprintf("edwards-bls12-377: foreign point type %T", q))
	}
	return p
}

func isIdentity(p *twistededwards.PointAffine) bool {
	var one fr.Element
	one.SetOne()
	return p.X.IsZero() && p.Y.Equal(&one)
}

func scalarToBig(s kyber.Scalar) *big.Int {
	if m, ok := s.(*mod.Int); ok {
		return &m.V
	}
	buff, _ := s.MarshalBinary()
	return new(big.Int).SetBytes(buff)
}

// XCoordinate returns the affine x-coordinate of p. It is how group elements
// enter hash preimages and signed messages.
func XCoordinate(p kyber.Point) Field {
	return asPoint(p).p.X
}

// IsIdentity reports whether p is the neutral element.
func IsIdentity(p kyber.Point) bool {
	return isIdentity(&asPoint(p).p)
}

// ScalarToField lifts a scalar into the base field. The subgroup order is
// smaller than the field modulus so the lift is injective.
func ScalarToField(s kyber.Scalar) Field {
	var f Field
	f.SetBigInt(scalarToBig(s))
	return f
}

// FieldToScalar reduces a field element modulo the subgroup order.
func FieldToScalar(f *Field) kyber.Scalar {
	var b big.Int
	f.BigInt(&b)
	return mod.NewInt(&b, &curve.Order)
}

// mulByCofactor returns cofactor*p.
func mulByCofactor(p kyber.Point) kyber.Point {
	out := new(point)
	out.p.Set(&asPoint(p).p)
	for i := 1; i < cofactor; i *= 2 {
		out.p.Double(&out.p)
	}
	return out
}

// MulByCofactor returns 4*p.
func MulByCofactor(p kyber.Point) kyber.Point {
	return mulByCofactor(p)
}

// Order returns the order of the prime order subgroup, the scalar modulus.
func Order() *big.Int {
	return new(big.Int).Set(&curve.Order)
}
