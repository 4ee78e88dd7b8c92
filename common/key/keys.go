package key

import (
	"errors"
	"fmt"
	"io"

	"github.com/drand/kyber"

	"github.com/drand/vmauth/crypto"
)

// PrivateKey is an account private key. It holds the seed it was derived from
// and the two signing scalars: sk_sig, the signing secret, and r_sig, the
// signature randomizer. It MUST stay private!
type PrivateKey struct {
	seed   crypto.Field
	skSig  kyber.Scalar
	rSig   kyber.Scalar
	scheme *crypto.Scheme
}

// NewPrivateKey samples a fresh seed from rng and derives the private key.
func NewPrivateKey(sch *crypto.Scheme, rng io.Reader) (*PrivateKey, error) {
	seed, err := crypto.SampleField(rng)
	if err != nil {
		return nil, err
	}
	return PrivateKeyFromSeed(sch, seed)
}

// PrivateKeyFromSeed deterministically derives the private key of a seed:
//
//	sk_sig := HashToScalar(secret domain, seed)
//	r_sig  := HashToScalar(randomizer domain, seed)
func PrivateKeyFromSeed(sch *crypto.Scheme, seed crypto.Field) (*PrivateKey, error) {
	if sch == nil {
		return nil, errors.New("private key: nil scheme")
	}
	skSig, err := sch.HashToScalar(sch.SignatureSecretDomain, seed)
	if err != nil {
		return nil, fmt.Errorf("deriving sk_sig: %w", err)
	}
	rSig, err := sch.HashToScalar(sch.SignatureRandomizerDomain, seed)
	if err != nil {
		return nil, fmt.Errorf("deriving r_sig: %w", err)
	}
	return &PrivateKey{seed: seed, skSig: skSig, rSig: rSig, scheme: sch}, nil
}

// Seed returns the seed of this key.
func (p *PrivateKey) Seed() crypto.Field {
	return p.seed
}

// SkSig returns a copy of the signing secret.
func (p *PrivateKey) SkSig() kyber.Scalar {
	return p.skSig.Clone()
}

// RSig returns a copy of the signature randomizer.
func (p *PrivateKey) RSig() kyber.Scalar {
	return p.rSig.Clone()
}

// Scheme returns the scheme the key was derived under.
func (p *PrivateKey) Scheme() *crypto.Scheme {
	return p.scheme
}

// Equal reports whether both keys were derived from the same seed under the
// same scheme.
func (p *PrivateKey) Equal(p2 *PrivateKey) bool {
	return p.scheme.Name == p2.scheme.Name && p.seed.Equal(&p2.seed)
}

// ComputeKey holds the public anchors a signature is verified against:
// pk_sig = sk_sig*G, pr_sig = r_sig*G, and sk_prf = HashToScalar(pk_sig, pr_sig).
type ComputeKey struct {
	pkSig kyber.Point
	prSig kyber.Point
	skPrf kyber.Scalar
}

// NewComputeKey derives the compute key of a private key.
func NewComputeKey(p *PrivateKey) (*ComputeKey, error) {
	g := p.scheme.Group
	pkSig := g.Point().Mul(p.skSig, nil)
	prSig := g.Point().Mul(p.rSig, nil)
	return ComputeKeyFromPublic(p.scheme, pkSig, prSig)
}

// ComputeKeyFromPublic rebuilds a compute key from its two public anchors, as
// a verifier does when reading a signature.
func ComputeKeyFromPublic(sch *crypto.Scheme, pkSig, prSig kyber.Point) (*ComputeKey, error) {
	skPrf, err := sch.HashToScalar(crypto.XCoordinate(pkSig), crypto.XCoordinate(prSig))
	if err != nil {
		return nil, fmt.Errorf("deriving sk_prf: %w", err)
	}
	return &ComputeKey{pkSig: pkSig, prSig: prSig, skPrf: skPrf}, nil
}

// PkSig returns the signing public key.
func (c *ComputeKey) PkSig() kyber.Point {
	return c.pkSig
}

// PrSig returns the public signature randomizer.
func (c *ComputeKey) PrSig() kyber.Point {
	return c.prSig
}

// SkPrf returns the pseudorandom function secret of the account.
func (c *ComputeKey) SkPrf() kyber.Scalar {
	return c.skPrf
}

// Address returns pk_sig + pr_sig + sk_prf*G.
func (c *ComputeKey) Address() Address {
	g := crypto.Edwards
	a := g.Point().Add(c.pkSig, c.prSig)
	a.Add(a, g.Point().Mul(c.skPrf, nil))
	return Address{p: a}
}

// Equal reports whether both compute keys hold the same anchors.
func (c *ComputeKey) Equal(c2 *ComputeKey) bool {
	return c.pkSig.Equal(c2.pkSig) && c.prSig.Equal(c2.prSig)
}

// ViewKey is the scalar sk_sig + r_sig + sk_prf. Its public image is the
// account address.
type ViewKey struct {
	s kyber.Scalar
}

// NewViewKey derives the view key from a private key and its compute key.
func NewViewKey(p *PrivateKey, c *ComputeKey) ViewKey {
	g := p.scheme.Group
	s := g.Scalar().Add(p.skSig, p.rSig)
	s.Add(s, c.skPrf)
	return ViewKey{s: s}
}

// Scalar returns a copy of the view key scalar.
func (v ViewKey) Scalar() kyber.Scalar {
	return v.s.Clone()
}

// Address returns view_key*G.
func (v ViewKey) Address() Address {
	return Address{p: crypto.Edwards.Point().Mul(v.s, nil)}
}

// GraphKey holds sk_tag, the secret used to derive record tags.
type GraphKey struct {
	skTag crypto.Field
}

// NewGraphKey derives sk_tag = Hash4(graph key domain, view key).
func NewGraphKey(sch *crypto.Scheme, v ViewKey) (GraphKey, error) {
	skTag, err := sch.Hash4(sch.GraphKeyDomain, crypto.ScalarToField(v.s))
	if err != nil {
		return GraphKey{}, fmt.Errorf("deriving sk_tag: %w", err)
	}
	return GraphKey{skTag: skTag}, nil
}

// SkTag returns the tag secret.
func (g GraphKey) SkTag() crypto.Field {
	return g.skTag
}

// Derived bundles every key derived from a private key for the duration of a
// single signing call. It is never cached.
type Derived struct {
	ComputeKey *ComputeKey
	ViewKey    ViewKey
	GraphKey   GraphKey
	Address    Address
}

// Derive walks the private key -> compute key -> view key -> graph key chain
// and returns the owned bundle.
func Derive(p *PrivateKey) (*Derived, error) {
	ck, err := NewComputeKey(p)
	if err != nil {
		return nil, err
	}
	vk := NewViewKey(p, ck)
	gk, err := NewGraphKey(p.scheme, vk)
	if err != nil {
		return nil, err
	}
	return &Derived{
		ComputeKey: ck,
		ViewKey:    vk,
		GraphKey:   gk,
		Address:    ck.Address(),
	}, nil
}
