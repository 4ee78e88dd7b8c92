package program

import (
	"errors"
	"fmt"
	"strings"

	"github.com/drand/vmauth/crypto"
)

// Value is an input to a function call: a plaintext or a record.
type Value interface {
	// ToFields encodes the value as the field elements hashed into input
	// identifiers and record commitments.
	ToFields() ([]crypto.Field, error)
	String() string
	isValue()
}

// Plaintext is a value that is not a record: a literal or a struct.
type Plaintext interface {
	Value
	isPlaintext()
}

// Tags prefixed to the field encoding of composite values. Literals use their
// LiteralType as tag.
const (
	structTag uint64 = 0x80 + iota
	recordTag
)

var (
	_ Plaintext = (*Literal)(nil)
	_ Plaintext = (*Struct)(nil)
	_ Value     = (*Record)(nil)
)

func (l *Literal) isValue() {}

// Member is a named field of a struct.
type Member struct {
	Name  Identifier
	Value Plaintext
}

// Struct is an ordered list of named plaintext members.
type Struct struct {
	Members []Member
}

// Get returns the value of the named member.
func (s *Struct) Get(name Identifier) (Plaintext, bool) {
	for _, m := range s.Members {
		if m.Name == name {
			return m.Value, true
		}
	}
	return nil, false
}

// ToFields encodes the struct as its tag, its member count, and for each
// member its name, the length of its encoding and the encoding itself.
func (s *Struct) ToFields() ([]crypto.Field, error) {
	out := []crypto.Field{
		crypto.FieldFromUint64(structTag),
		crypto.FieldFromUint64(uint64(len(s.Members))),
	}
	for _, m := range s.Members {
		fields, err := m.Value.ToFields()
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", m.Name, err)
		}
		out = append(out, m.Name.ToField(), crypto.FieldFromUint64(uint64(len(fields))))
		out = append(out, fields...)
	}
	return out, nil
}

func (s *Struct) String() string {
	parts := make([]string, len(s.Members))
	for i, m := range s.Members {
		parts[i] = fmt.Sprintf("%s: %s", m.Name, m.Value)
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

func (s *Struct) isValue()     {}
func (s *Struct) isPlaintext() {}

// ErrParse is returned when a plaintext cannot be parsed.
var ErrParse = errors.New("cannot parse plaintext")

// ParsePlaintext parses a literal or a struct written as
// "{ owner: vm1..., amount: 10u64, meta: { flag: true } }".
func ParsePlaintext(s string) (Plaintext, error) {
	p := &plaintextParser{in: s}
	v, err := p.plaintext()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.in) {
		return nil, fmt.Errorf("%w: trailing input %q", ErrParse, p.in[p.pos:])
	}
	return v, nil
}

type plaintextParser struct {
	in  string
	pos int
}

func (p *plaintextParser) skipSpace() {
	for p.pos < len(p.in) && strings.ContainsRune(" \t\r\n", rune(p.in[p.pos])) {
		p.pos++
	}
}

func (p *plaintextParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.in) {
		return 0
	}
	return p.in[p.pos]
}

func (p *plaintextParser) expect(c byte) error {
	if p.peek() != c {
		return fmt.Errorf("%w: expected %q at offset %d", ErrParse, c, p.pos)
	}
	p.pos++
	return nil
}

func (p *plaintextParser) plaintext() (Plaintext, error) {
	if p.peek() == '{' {
		return p.structValue()
	}
	start := p.pos
	for p.pos < len(p.in) && !strings.ContainsRune(",} \t\r\n", rune(p.in[p.pos])) {
		p.pos++
	}
	if start == p.pos {
		return nil, fmt.Errorf("%w: expected a value at offset %d", ErrParse, start)
	}
	return ParseLiteral(p.in[start:p.pos])
}

func (p *plaintextParser) structValue() (*Struct, error) {
	if err := p.expect('{'); err != nil {
		return nil, err
	}
	s := new(Struct)
	if p.peek() == '}' {
		p.pos++
		return s, nil
	}
	for {
		p.skipSpace()
		start := p.pos
		for p.pos < len(p.in) && p.in[p.pos] != ':' && !strings.ContainsRune(" \t\r\n", rune(p.in[p.pos])) {
			p.pos++
		}
		name, err := NewIdentifier(p.in[start:p.pos])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		if _, dup := s.Get(name); dup {
			return nil, fmt.Errorf("%w: duplicate member %s", ErrParse, name)
		}
		if err := p.expect(':'); err != nil {
			return nil, err
		}
		v, err := p.plaintext()
		if err != nil {
			return nil, err
		}
		s.Members = append(s.Members, Member{Name: name, Value: v})
		switch p.peek() {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return s, nil
		default:
			return nil, fmt.Errorf("%w: expected ',' or '}' at offset %d", ErrParse, p.pos)
		}
	}
}

// Ciphertext is a plaintext encoding masked under a symmetric key.
type Ciphertext []crypto.Field

// ToFields returns a copy of the ciphertext elements.
func (c Ciphertext) ToFields() []crypto.Field {
	return append([]crypto.Field(nil), c...)
}

// EncryptSymmetric masks the field encoding of p with randomizers expanded
// from the key.
func EncryptSymmetric(sch *crypto.Scheme, p Plaintext, k crypto.Field) (Ciphertext, error) {
	fields, err := p.ToFields()
	if err != nil {
		return nil, err
	}
	masks, err := sch.HashMany([]crypto.Field{sch.EncryptionDomain, k}, len(fields))
	if err != nil {
		return nil, err
	}
	ct := make(Ciphertext, len(fields))
	for i := range fields {
		ct[i].Add(&fields[i], &masks[i])
	}
	return ct, nil
}

// DecryptSymmetric removes the masks from c and returns the field encoding of
// the plaintext.
func DecryptSymmetric(sch *crypto.Scheme, c Ciphertext, k crypto.Field) ([]crypto.Field, error) {
	masks, err := sch.HashMany([]crypto.Field{sch.EncryptionDomain, k}, len(c))
	if err != nil {
		return nil, err
	}
	out := make([]crypto.Field, len(c))
	for i := range c {
		out[i].Sub(&c[i], &masks[i])
	}
	return out, nil
}
