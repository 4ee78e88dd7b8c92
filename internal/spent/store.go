// Package spent keeps track of the records consumed by verified
// authorizations so that a record can only be spent once.
package spent

import (
	"context"
	"errors"
	"fmt"

	json "github.com/nikkolasg/hexjson"

	"github.com/drand/vmauth/crypto"
)

var (
	// ErrDoubleSpend is returned when a serial number or a tag is already
	// recorded.
	ErrDoubleSpend = errors.New("record already spent")
	// ErrNotFound is returned when looking up an unknown serial number.
	ErrNotFound = errors.New("serial number not found")
)

// Entry is what a store keeps about one spent record.
type Entry struct {
	SerialNumber  []byte
	Tag           []byte
	Commitment    []byte
	Authorization string
	Program       string
	Function      string
}

// Marshal encodes the entry, byte slices as hex strings.
func (e *Entry) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal decodes the output of Marshal.
func (e *Entry) Unmarshal(buff []byte) error {
	return json.Unmarshal(buff, e)
}

func (e *Entry) String() string {
	return fmt.Sprintf("{sn: %x, program: %s/%s}", e.SerialNumber, e.Program, e.Function)
}

// FieldBytes returns the canonical encoding of a field element, the form
// serial numbers and tags take in a store.
func FieldBytes(f crypto.Field) []byte {
	b := f.Bytes()
	return b[:]
}

// Store records spent serial numbers together with their tags.
type Store interface {
	// Spend records every entry, or none of them if any serial number or
	// tag is already present. It then returns an error matching
	// ErrDoubleSpend.
	Spend(ctx context.Context, entries []Entry) error
	// IsSpent reports whether a serial number is recorded.
	IsSpent(ctx context.Context, serialNumber []byte) (bool, error)
	// HasTag reports whether a tag is recorded.
	HasTag(ctx context.Context, tag []byte) (bool, error)
	// Get returns the entry of a serial number or ErrNotFound.
	Get(ctx context.Context, serialNumber []byte) (*Entry, error)
	// Len returns the number of recorded serial numbers.
	Len(ctx context.Context) (int, error)
	Close(ctx context.Context) error
}

// DoubleSpendError reports the entry that collided.
type DoubleSpendError struct {
	Entry Entry
	// Field is "serial number" or "tag".
	Field string
}

func (e *DoubleSpendError) Error() string {
	return fmt.Sprintf("%v: %s of %s", ErrDoubleSpend, e.Field, e.Entry.String())
}

// Is makes every DoubleSpendError match ErrDoubleSpend.
func (e *DoubleSpendError) Is(target error) bool {
	return target == ErrDoubleSpend
}
