package crypto

import (
	"fmt"
	"os"

	"github.com/drand/kyber"
)

// Scheme represents the network parameters a request is signed under: the
// network identifier folded into every function identifier, the group, and
// the domain separators of every hash. Two schemes never produce compatible
// requests.
//
// Note: Scheme is not meant to be marshaled directly. Instead use the SchemeFromName
type Scheme struct {
	// The name of the scheme
	Name string
	// NetworkID is the numeric network identifier hashed into function ids.
	NetworkID uint16
	// Group is the group keys, transition keys and record generators live in.
	Group kyber.Group

	// SerialNumberDomain separates the transition secret derivation, the
	// serial number generator and the serial number commitment.
	SerialNumberDomain Field
	// GraphKeyDomain separates the derivation of the tag secret.
	GraphKeyDomain Field
	// EncryptionDomain separates the symmetric encryption randomizers.
	EncryptionDomain Field
	// SignatureSecretDomain and SignatureRandomizerDomain separate the two
	// scalars derived from an account seed.
	SignatureSecretDomain     Field
	SignatureRandomizerDomain Field

	hash2Domain    Field
	hash4Domain    Field
	hash8Domain    Field
	hashManyDomain Field
	scalarDomain   Field
	groupDomain    Field
	commitDomain   Field
	commitBase     kyber.Point
}

func (s *Scheme) String() string {
	if s != nil {
		return s.Name
	}
	return ""
}

// DefaultSchemeID is the default scheme ID.
const DefaultSchemeID = "testnet"

// MainnetSchemeID is the scheme id of the production network.
const MainnetSchemeID = "mainnet"

const (
	testnetNetworkID uint16 = 1
	mainnetNetworkID uint16 = 0
)

// NewTestnetScheme instantiates the scheme used by the test network.
func NewTestnetScheme() *Scheme {
	return newScheme(DefaultSchemeID, testnetNetworkID)
}

// NewMainnetScheme instantiates the scheme used by the production network.
func NewMainnetScheme() *Scheme {
	return newScheme(MainnetSchemeID, mainnetNetworkID)
}

func newScheme(name string, id uint16) *Scheme {
	tag := func(t string) Field {
		return Domain(fmt.Sprintf("vmauth/%s/%s", name, t))
	}
	s := &Scheme{
		Name:                      name,
		NetworkID:                 id,
		Group:                     Edwards,
		SerialNumberDomain:        tag("SerialNumber0"),
		GraphKeyDomain:            tag("GraphKey0"),
		EncryptionDomain:          tag("SymmetricEncryption0"),
		SignatureSecretDomain:     tag("AccountSignatureSecretKey0"),
		SignatureRandomizerDomain: tag("AccountSignatureRandomizer0"),
		hash2Domain:               tag("Hash2"),
		hash4Domain:               tag("Hash4"),
		hash8Domain:               tag("Hash8"),
		hashManyDomain:            tag("HashMany"),
		scalarDomain:              tag("HashToScalar"),
		groupDomain:               tag("HashToGroup"),
		commitDomain:              tag("Commitment0"),
	}
	base, err := s.HashToGroup(tag("CommitmentRandomizerBase0"))
	if err != nil {
		// the map only fails after exhausting every attempt on a fixed input
		panic(fmt.Sprintf("scheme %s: deriving commitment base: %v", name, err))
	}
	s.commitBase = base
	return s
}

// SchemeFromName returns the scheme registered under the given name.
func SchemeFromName(schemeName string) (*Scheme, error) {
	switch schemeName {
	case DefaultSchemeID:
		return NewTestnetScheme(), nil
	case MainnetSchemeID:
		return NewMainnetScheme(), nil
	default:
		return nil, fmt.Errorf("invalid scheme name '%s'", schemeName)
	}
}

var schemeIDs = []string{DefaultSchemeID, MainnetSchemeID}

// ListSchemes will return a slice of valid scheme ids
func ListSchemes() []string {
	return schemeIDs
}

// GetSchemeByIDWithDefault allows the user to retrieve the scheme configuration looking by its ID.
// If the received ID is an empty string, it will return the default defined scheme.
func GetSchemeByIDWithDefault(id string) (*Scheme, error) {
	if id == "" {
		id = DefaultSchemeID
	}

	return SchemeFromName(id)
}

// GetSchemeFromEnv allows the user to retrieve the scheme configuration looking by the ID set on an
// environmental variable.
func GetSchemeFromEnv() (*Scheme, error) {
	id := os.Getenv("SCHEME_ID")

	return GetSchemeByIDWithDefault(id)
}
