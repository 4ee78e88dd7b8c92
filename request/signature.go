package request

import (
	"errors"
	"fmt"
	"io"

	"github.com/drand/kyber"
	"github.com/drand/kyber/util/random"

	"github.com/drand/vmauth/common/key"
	"github.com/drand/vmauth/crypto"
)

// Signature is a Schnorr signature over a message of field elements. The
// compute key travels with it so that it can be checked against an address.
type Signature struct {
	challenge  kyber.Scalar
	response   kyber.Scalar
	computeKey *key.ComputeKey
}

// NewSignature assembles a signature from its parts.
func NewSignature(challenge, response kyber.Scalar, ck *key.ComputeKey) *Signature {
	return &Signature{challenge: challenge, response: response, computeKey: ck}
}

// SignFields signs an arbitrary field message with a fresh nonce drawn from
// rng. The challenge hashes x(g_r), x(pk_sig), x(pr_sig) and x(address)
// followed by the message.
func SignFields(priv *key.PrivateKey, message []crypto.Field, rng io.Reader) (*Signature, error) {
	sch := priv.Scheme()
	ck, err := key.NewComputeKey(priv)
	if err != nil {
		return nil, derivationError("compute key", err)
	}
	nonce := sch.Group.Scalar().Pick(random.New(rng))
	gr := sch.Group.Point().Mul(nonce, nil)
	preimage := append([]crypto.Field{
		crypto.XCoordinate(gr),
		crypto.XCoordinate(ck.PkSig()),
		crypto.XCoordinate(ck.PrSig()),
		ck.Address().X(),
	}, message...)
	challenge, err := sch.HashToScalar(preimage...)
	if err != nil {
		return nil, derivationError("challenge", err)
	}
	response := sch.Group.Scalar().Mul(challenge, priv.SkSig())
	response.Sub(nonce, response)
	return NewSignature(challenge, response, ck), nil
}

// Challenge returns the challenge scalar.
func (s *Signature) Challenge() kyber.Scalar {
	return s.challenge
}

// Response returns the response scalar.
func (s *Signature) Response() kyber.Scalar {
	return s.response
}

// ComputeKey returns the compute key of the signer.
func (s *Signature) ComputeKey() *key.ComputeKey {
	return s.computeKey
}

// Verify checks the signature against an address and a message. The compute
// key must map to the address, and the challenge recomputed from
// response*G + challenge*pk_sig must equal the signed one.
func (s *Signature) Verify(sch *crypto.Scheme, address key.Address, message []crypto.Field) bool {
	if s == nil || s.computeKey == nil || address.IsZero() {
		return false
	}
	if !s.computeKey.Address().Equal(address) {
		return false
	}
	g := sch.Group
	gr := g.Point().Mul(s.response, nil)
	gr.Add(gr, g.Point().Mul(s.challenge, s.computeKey.PkSig()))
	preimage := append([]crypto.Field{
		crypto.XCoordinate(gr),
		crypto.XCoordinate(s.computeKey.PkSig()),
		crypto.XCoordinate(s.computeKey.PrSig()),
		address.X(),
	}, message...)
	candidate, err := sch.HashToScalar(preimage...)
	if err != nil {
		return false
	}
	return candidate.Equal(s.challenge)
}

// SignatureTOML is the TOML-able version of a signature.
type SignatureTOML struct {
	Challenge string
	Response  string
	PkSig     string
	PrSig     string
}

// TOML returns the TOML-compatible version of the signature.
func (s *Signature) TOML() interface{} {
	return &SignatureTOML{
		Challenge: crypto.ScalarToString(s.challenge),
		Response:  crypto.ScalarToString(s.response),
		PkSig:     crypto.PointToString(s.computeKey.PkSig()),
		PrSig:     crypto.PointToString(s.computeKey.PrSig()),
	}
}

// FromTOML decodes the signature and rebuilds its compute key under the
// default scheme. Use fromTOML to pick the scheme.
func (s *Signature) FromTOML(i interface{}) error {
	sch, err := crypto.GetSchemeFromEnv()
	if err != nil {
		return err
	}
	return s.fromTOML(sch, i)
}

func (s *Signature) fromTOML(sch *crypto.Scheme, i interface{}) error {
	stoml, ok := i.(*SignatureTOML)
	if !ok {
		return errors.New("signature can't decode toml from non SignatureTOML struct")
	}
	challenge, err := crypto.StringToScalar(sch.Group, stoml.Challenge)
	if err != nil {
		return fmt.Errorf("signature challenge: %w", err)
	}
	response, err := crypto.StringToScalar(sch.Group, stoml.Response)
	if err != nil {
		return fmt.Errorf("signature response: %w", err)
	}
	pkSig, err := crypto.StringToPoint(sch.Group, stoml.PkSig)
	if err != nil {
		return fmt.Errorf("signature pk_sig: %w", err)
	}
	prSig, err := crypto.StringToPoint(sch.Group, stoml.PrSig)
	if err != nil {
		return fmt.Errorf("signature pr_sig: %w", err)
	}
	ck, err := key.ComputeKeyFromPublic(sch, pkSig, prSig)
	if err != nil {
		return err
	}
	*s = Signature{challenge: challenge, response: response, computeKey: ck}
	return nil
}

// TOMLValue returns an empty TOML-compatible value of the signature.
func (s *Signature) TOMLValue() interface{} {
	return &SignatureTOML{}
}
