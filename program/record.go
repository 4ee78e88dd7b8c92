package program

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/drand/kyber"
	"github.com/drand/kyber/util/random"

	"github.com/drand/vmauth/common/key"
	"github.com/drand/vmauth/crypto"
)

// Visibility is the visibility of a record owner or entry.
type Visibility uint8

const (
	Constant Visibility = iota + 1
	Public
	Private
)

func (v Visibility) String() string {
	switch v {
	case Constant:
		return "constant"
	case Public:
		return "public"
	case Private:
		return "private"
	default:
		return fmt.Sprintf("Visibility(%d)", uint8(v))
	}
}

// ParseVisibility maps "constant", "public" or "private" to a Visibility.
func ParseVisibility(s string) (Visibility, error) {
	switch s {
	case "constant":
		return Constant, nil
	case "public":
		return Public, nil
	case "private":
		return Private, nil
	default:
		return 0, fmt.Errorf("unknown visibility %q", s)
	}
}

// ErrInvalidRecord is returned for records missing their owner or nonce.
var ErrInvalidRecord = errors.New("invalid record")

// Entry is a named, typed field of a record.
type Entry struct {
	Name       Identifier
	Visibility Visibility
	Value      Plaintext
}

// Record is an owned piece of state. Spending it as a function input
// requires the caller to be its owner.
type Record struct {
	Owner           key.Address
	OwnerVisibility Visibility
	Entries         []Entry
	// Nonce makes two records with identical contents commit differently.
	Nonce kyber.Point
}

// NewRecordNonce samples a random nonce for a new record.
func NewRecordNonce(rng io.Reader) kyber.Point {
	return crypto.Edwards.Point().Pick(random.New(rng))
}

// Get returns the value of the named entry.
func (r *Record) Get(name Identifier) (Plaintext, bool) {
	for _, e := range r.Entries {
		if e.Name == name {
			return e.Value, true
		}
	}
	return nil, false
}

// ToFields encodes the record as its tag, its owner and owner visibility, its
// entries (name, visibility, length and encoding of each) and its nonce.
func (r *Record) ToFields() ([]crypto.Field, error) {
	if r.Owner.IsZero() || r.Nonce == nil {
		return nil, ErrInvalidRecord
	}
	out := []crypto.Field{
		crypto.FieldFromUint64(recordTag),
		r.Owner.X(),
		crypto.FieldFromUint64(uint64(r.OwnerVisibility)),
		crypto.FieldFromUint64(uint64(len(r.Entries))),
	}
	for _, e := range r.Entries {
		fields, err := e.Value.ToFields()
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.Name, err)
		}
		out = append(out,
			e.Name.ToField(),
			crypto.FieldFromUint64(uint64(e.Visibility)),
			crypto.FieldFromUint64(uint64(len(fields))))
		out = append(out, fields...)
	}
	return append(out, crypto.XCoordinate(r.Nonce)), nil
}

// Commitment binds the record to the program and record name it was created
// under: Hash8(program id, record name, record fields).
func (r *Record) Commitment(sch *crypto.Scheme, programID ProgramID, name Identifier) (crypto.Field, error) {
	fields, err := r.ToFields()
	if err != nil {
		return crypto.Field{}, err
	}
	preimage := append(programID.ToFields(), name.ToField())
	return sch.Hash8(append(preimage, fields...)...)
}

func (r *Record) String() string {
	parts := []string{fmt.Sprintf("owner: %s.%s", r.Owner, r.OwnerVisibility)}
	for _, e := range r.Entries {
		parts = append(parts, fmt.Sprintf("%s: %s.%s", e.Name, e.Value, e.Visibility))
	}
	if r.Nonce != nil {
		parts = append(parts, "_nonce: "+crypto.PointToString(r.Nonce)+".public")
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

func (r *Record) isValue() {}

// RecordTOML is the TOML-able version of a record.
type RecordTOML struct {
	Owner           string
	OwnerVisibility string
	Nonce           string
	Entries         []EntryTOML
}

// EntryTOML is the TOML-able version of a record entry. Value holds the
// textual plaintext.
type EntryTOML struct {
	Name       string
	Visibility string
	Value      string
}

// TOML returns the TOML-compatible version of the record.
func (r *Record) TOML() interface{} {
	rtoml := &RecordTOML{
		Owner:           r.Owner.String(),
		OwnerVisibility: r.OwnerVisibility.String(),
	}
	if r.Nonce != nil {
		rtoml.Nonce = crypto.PointToString(r.Nonce)
	}
	for _, e := range r.Entries {
		rtoml.Entries = append(rtoml.Entries, EntryTOML{
			Name:       string(e.Name),
			Visibility: e.Visibility.String(),
			Value:      e.Value.String(),
		})
	}
	return rtoml
}

// FromTOML decodes a record from its TOML description.
func (r *Record) FromTOML(i interface{}) error {
	rtoml, ok := i.(*RecordTOML)
	if !ok {
		return errors.New("record can't decode toml from non RecordTOML struct")
	}
	owner, err := key.ParseAddress(rtoml.Owner)
	if err != nil {
		return fmt.Errorf("record owner: %w", err)
	}
	ownerVis, err := ParseVisibility(rtoml.OwnerVisibility)
	if err != nil {
		return fmt.Errorf("record owner: %w", err)
	}
	nonce, err := crypto.StringToPoint(crypto.Edwards, rtoml.Nonce)
	if err != nil {
		return fmt.Errorf("record nonce: %w", err)
	}
	entries := make([]Entry, 0, len(rtoml.Entries))
	for _, et := range rtoml.Entries {
		name, err := NewIdentifier(et.Name)
		if err != nil {
			return err
		}
		vis, err := ParseVisibility(et.Visibility)
		if err != nil {
			return fmt.Errorf("entry %s: %w", name, err)
		}
		v, err := ParsePlaintext(et.Value)
		if err != nil {
			return fmt.Errorf("entry %s: %w", name, err)
		}
		entries = append(entries, Entry{Name: name, Visibility: vis, Value: v})
	}
	*r = Record{Owner: owner, OwnerVisibility: ownerVis, Entries: entries, Nonce: nonce}
	return nil
}

// TOMLValue returns an empty TOML-compatible value of the record.
func (r *Record) TOMLValue() interface{} {
	return &RecordTOML{}
}
