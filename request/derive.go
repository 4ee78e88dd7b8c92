package request

import (
	"github.com/drand/kyber"

	"github.com/drand/vmauth/crypto"
	"github.com/drand/vmauth/program"
)

// The signer and the verifier both build their message from the derivations
// below.

// functionID is Hash8(network id, program name, program network, function name).
func functionID(sch *crypto.Scheme, pid program.ProgramID, name program.Identifier) (crypto.Field, error) {
	return sch.Hash8(
		crypto.FieldFromUint64(uint64(sch.NetworkID)),
		pid.Name.ToField(),
		pid.Network.ToField(),
		name.ToField(),
	)
}

// transitionCommitment is Hash2(tvk).
func transitionCommitment(sch *crypto.Scheme, tvk crypto.Field) (crypto.Field, error) {
	return sch.Hash2(tvk)
}

func indexField(index int) crypto.Field {
	return crypto.FieldFromUint64(uint64(index))
}

// plaintextHash derives the identifier of a constant or public input:
// Hash8(function id, fields, tcm, index).
func plaintextHash(sch *crypto.Scheme, fid crypto.Field, p program.Plaintext, tcm crypto.Field, index int) (crypto.Field, error) {
	fields, err := p.ToFields()
	if err != nil {
		return crypto.Field{}, err
	}
	preimage := append([]crypto.Field{fid}, fields...)
	preimage = append(preimage, tcm, indexField(index))
	return sch.Hash8(preimage...)
}

// privateHash encrypts p under the input view key Hash4(function id, tvk,
// index) and hashes the ciphertext.
func privateHash(sch *crypto.Scheme, fid, tvk crypto.Field, p program.Plaintext, index int) (crypto.Field, error) {
	ivk, err := sch.Hash4(fid, tvk, indexField(index))
	if err != nil {
		return crypto.Field{}, err
	}
	ct, err := program.EncryptSymmetric(sch, p, ivk)
	if err != nil {
		return crypto.Field{}, err
	}
	return sch.Hash8(ct.ToFields()...)
}

// externalRecordHash derives the identifier of an external record:
// Hash8(function id, fields, tvk, index).
func externalRecordHash(sch *crypto.Scheme, fid crypto.Field, r *program.Record, tvk crypto.Field, index int) (crypto.Field, error) {
	fields, err := r.ToFields()
	if err != nil {
		return crypto.Field{}, err
	}
	preimage := append([]crypto.Field{fid}, fields...)
	preimage = append(preimage, tvk, indexField(index))
	return sch.Hash8(preimage...)
}

// serialNumberGenerator is H = HashToGroup(serial number domain, commitment).
func serialNumberGenerator(sch *crypto.Scheme, cm crypto.Field) (kyber.Point, error) {
	return sch.HashToGroup(sch.SerialNumberDomain, cm)
}

// serialNumber commits to the record commitment under the randomizer
// HashToScalar(serial number domain, x(cofactor*gamma)).
func serialNumber(sch *crypto.Scheme, gamma kyber.Point, cm crypto.Field) (crypto.Field, error) {
	nonce, err := sch.HashToScalar(sch.SerialNumberDomain, crypto.XCoordinate(crypto.MulByCofactor(gamma)))
	if err != nil {
		return crypto.Field{}, err
	}
	return sch.Commit([]crypto.Field{sch.SerialNumberDomain, cm}, nonce)
}

// recordTag is Hash2(sk_tag, commitment).
func recordTag(sch *crypto.Scheme, skTag, cm crypto.Field) (crypto.Field, error) {
	return sch.Hash2(skTag, cm)
}
