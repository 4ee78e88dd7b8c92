package program

import (
	"errors"
	"fmt"
	"strings"

	"github.com/drand/vmauth/crypto"
)

// MaxIdentifierLen is the longest identifier that still packs into a single
// field element.
const MaxIdentifierLen = 31

// ErrInvalidIdentifier is returned when parsing a malformed identifier or
// program id.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// Identifier names a program, a function, a record or a struct member. It
// starts with a letter and holds only ASCII letters, digits and underscores.
type Identifier string

// NewIdentifier validates s as an identifier.
func NewIdentifier(s string) (Identifier, error) {
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidIdentifier)
	}
	if len(s) > MaxIdentifierLen {
		return "", fmt.Errorf("%w: %q is longer than %d bytes", ErrInvalidIdentifier, s, MaxIdentifierLen)
	}
	if !isLetter(s[0]) {
		return "", fmt.Errorf("%w: %q must start with a letter", ErrInvalidIdentifier, s)
	}
	for i := 1; i < len(s); i++ {
		if c := s[i]; !isLetter(c) && !isDigit(c) && c != '_' {
			return "", fmt.Errorf("%w: %q contains %q", ErrInvalidIdentifier, s, c)
		}
	}
	return Identifier(s), nil
}

// MustIdentifier is like NewIdentifier but panics on malformed input. It is
// meant for constants.
func MustIdentifier(s string) Identifier {
	id, err := NewIdentifier(s)
	if err != nil {
		panic(err)
	}
	return id
}

// ToField packs the identifier bytes, big-endian, into one field element.
func (i Identifier) ToField() crypto.Field {
	var f crypto.Field
	f.SetBytes([]byte(i))
	return f
}

func (i Identifier) String() string {
	return string(i)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// ProgramID is the fully qualified name of a program: its name followed by
// the network it is deployed on, as in "token.vm".
type ProgramID struct {
	Name    Identifier
	Network Identifier
}

// ParseProgramID parses "name.network".
func ParseProgramID(s string) (ProgramID, error) {
	name, network, ok := strings.Cut(s, ".")
	if !ok {
		return ProgramID{}, fmt.Errorf("%w: program id %q has no network", ErrInvalidIdentifier, s)
	}
	n, err := NewIdentifier(name)
	if err != nil {
		return ProgramID{}, err
	}
	net, err := NewIdentifier(network)
	if err != nil {
		return ProgramID{}, err
	}
	return ProgramID{Name: n, Network: net}, nil
}

// MustProgramID is like ParseProgramID but panics on malformed input.
func MustProgramID(s string) ProgramID {
	id, err := ParseProgramID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IsZero reports whether the program id is unset.
func (p ProgramID) IsZero() bool {
	return p.Name == "" && p.Network == ""
}

// ToFields returns the name and the network as field elements.
func (p ProgramID) ToFields() []crypto.Field {
	return []crypto.Field{p.Name.ToField(), p.Network.ToField()}
}

func (p ProgramID) String() string {
	return string(p.Name) + "." + string(p.Network)
}

// Locator points at a resource declared in another program, as in
// "token.vm/token".
type Locator struct {
	Program  ProgramID
	Resource Identifier
}

// ParseLocator parses "name.network/resource".
func ParseLocator(s string) (Locator, error) {
	pid, res, ok := strings.Cut(s, "/")
	if !ok {
		return Locator{}, fmt.Errorf("%w: locator %q has no resource", ErrInvalidIdentifier, s)
	}
	id, err := ParseProgramID(pid)
	if err != nil {
		return Locator{}, err
	}
	r, err := NewIdentifier(res)
	if err != nil {
		return Locator{}, err
	}
	return Locator{Program: id, Resource: r}, nil
}

func (l Locator) String() string {
	return l.Program.String() + "/" + string(l.Resource)
}
