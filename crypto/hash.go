package crypto

import (
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr/mimc"
	"github.com/drand/kyber"
	"github.com/drand/kyber/group/mod"
	"golang.org/x/crypto/blake2b"
)

// ErrHashToGroup is returned when no curve point is found for a preimage
// within the try-and-increment budget.
var ErrHashToGroup = errors.New("hash to group: no point found")

// maxHashToGroupAttempts bounds the try-and-increment loop. Each attempt
// succeeds with probability close to 1/2.
const maxHashToGroupAttempts = 256

// Domain maps an ASCII tag to a field element. Domain separators are
// prepended to hash preimages so that hashes with different purposes never
// collide.
func Domain(tag string) Field {
	digest := blake2b.Sum512([]byte(tag))
	var f Field
	f.SetBytes(digest[:])
	return f
}

// FieldFromUint64 returns v as a field element.
func FieldFromUint64(v uint64) Field {
	var f Field
	f.SetUint64(v)
	return f
}

// SampleField reads 64 bytes from rng and reduces them into the field.
func SampleField(rng io.Reader) (Field, error) {
	var buff [64]byte
	var f Field
	if _, err := io.ReadFull(rng, buff[:]); err != nil {
		return f, fmt.Errorf("sampling field element: %w", err)
	}
	f.SetBytes(buff[:])
	return f, nil
}

// mimcHash absorbs the domain, the input length and every input element into
// a MiMC sponge over the BLS12-377 scalar field.
func mimcHash(domain *Field, input []Field) (Field, error) {
	var out Field
	h := mimc.NewMiMC()
	length := FieldFromUint64(uint64(len(input)))
	for _, f := range append([]Field{*domain, length}, input...) {
		buff := f.Bytes()
		if _, err := h.Write(buff[:]); err != nil {
			return out, fmt.Errorf("mimc absorb: %w", err)
		}
	}
	out.SetBytes(h.Sum(nil))
	return out, nil
}

// Hash2 is the two-element-rate field hash, used for short preimages such as
// the transition commitment, tags and serial number nonces.
func (s *Scheme) Hash2(input ...Field) (Field, error) {
	return mimcHash(&s.hash2Domain, input)
}

// Hash4 is the four-element-rate field hash, used for key derivation and
// per-input view keys.
func (s *Scheme) Hash4(input ...Field) (Field, error) {
	return mimcHash(&s.hash4Domain, input)
}

// Hash8 is the eight-element-rate field hash, used for input identifiers,
// function identifiers and record commitments.
func (s *Scheme) Hash8(input ...Field) (Field, error) {
	return mimcHash(&s.hash8Domain, input)
}

// HashMany expands a preimage into n field elements in counter mode.
func (s *Scheme) HashMany(input []Field, n int) ([]Field, error) {
	seed, err := mimcHash(&s.hashManyDomain, input)
	if err != nil {
		return nil, err
	}
	out := make([]Field, n)
	for i := range out {
		out[i], err = mimcHash(&s.hashManyDomain, []Field{seed, FieldFromUint64(uint64(i))})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// HashToScalar hashes the input into a scalar of the Edwards subgroup.
func (s *Scheme) HashToScalar(input ...Field) (kyber.Scalar, error) {
	digest, err := mimcHash(&s.scalarDomain, input)
	if err != nil {
		return nil, err
	}
	var b big.Int
	digest.BigInt(&b)
	return mod.NewInt(&b, &curve.Order), nil
}

// HashToGroup hashes the input onto the prime order subgroup with a
// try-and-increment map: candidate y-coordinates are derived from the digest
// and a counter until the curve equation yields an x-coordinate, then the
// cofactor is cleared.
func (s *Scheme) HashToGroup(input ...Field) (kyber.Point, error) {
	digest, err := mimcHash(&s.groupDomain, input)
	if err != nil {
		return nil, err
	}
	var one, y, y2, num, den, x2, x Field
	one.SetOne()
	for ctr := uint64(0); ctr < maxHashToGroupAttempts; ctr++ {
		y, err = mimcHash(&s.groupDomain, []Field{digest, FieldFromUint64(ctr)})
		if err != nil {
			return nil, err
		}
		// a*x^2 + y^2 = 1 + d*x^2*y^2  =>  x^2 = (1 - y^2) / (a - d*y^2)
		y2.Square(&y)
		num.Sub(&one, &y2)
		den.Mul(&curve.D, &y2)
		den.Sub(&curve.A, &den)
		if den.IsZero() {
			continue
		}
		den.Inverse(&den)
		x2.Mul(&num, &den)
		if x.Sqrt(&x2) == nil {
			continue
		}
		p := new(point)
		p.p.X = x
		p.p.Y = y
		if !p.p.IsOnCurve() {
			continue
		}
		h := mulByCofactor(p)
		if IsIdentity(h) {
			continue
		}
		return h, nil
	}
	return nil, ErrHashToGroup
}

// Commit is a Pedersen-style commitment to the input under the given
// randomizer: x(HashToGroup(input) + randomizer*H) for a fixed generator H
// with unknown discrete logarithm.
func (s *Scheme) Commit(input []Field, randomizer kyber.Scalar) (Field, error) {
	preimage := append([]Field{s.commitDomain}, input...)
	m, err := s.HashToGroup(preimage...)
	if err != nil {
		return Field{}, err
	}
	blind := s.Group.Point().Mul(randomizer, s.commitBase)
	c := s.Group.Point().Add(m, blind)
	return XCoordinate(c), nil
}

// Modulus returns the field modulus.
func Modulus() *big.Int {
	return fr.Modulus()
}
