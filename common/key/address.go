package key

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/drand/kyber"

	"github.com/drand/vmauth/crypto"
)

// AddressPrefix is the human readable prefix of an encoded address.
const AddressPrefix = "vm1"

// ErrInvalidAddress is returned when parsing a malformed address.
var ErrInvalidAddress = errors.New("invalid address")

// Address is the public identity of an account, a point of the Edwards group.
type Address struct {
	p kyber.Point
}

// AddressFromPoint wraps a group element as an address.
func AddressFromPoint(p kyber.Point) Address {
	return Address{p: p}
}

// ParseAddress decodes the output of Address.String.
func ParseAddress(s string) (Address, error) {
	if !strings.HasPrefix(s, AddressPrefix) {
		return Address{}, fmt.Errorf("%w: missing %q prefix", ErrInvalidAddress, AddressPrefix)
	}
	buff, err := hex.DecodeString(strings.TrimPrefix(s, AddressPrefix))
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	p := crypto.Edwards.Point()
	if err := p.UnmarshalBinary(buff); err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return Address{p: p}, nil
}

// Point returns the group element of the address.
func (a Address) Point() kyber.Point {
	return a.p
}

// X returns the x-coordinate of the address, the form it takes in messages.
func (a Address) X() crypto.Field {
	return crypto.XCoordinate(a.p)
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a.p == nil
}

// Equal reports whether both addresses are the same group element.
func (a Address) Equal(b Address) bool {
	if a.p == nil || b.p == nil {
		return a.p == nil && b.p == nil
	}
	return a.p.Equal(b.p)
}

func (a Address) String() string {
	if a.p == nil {
		return ""
	}
	return AddressPrefix + crypto.PointToString(a.p)
}
