package key

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/drand/vmauth/crypto"
	"github.com/drand/vmauth/fs"
)

// Tomler represents any struct that can be (un)marshaled into/from toml format
type Tomler interface {
	TOML() interface{}
	FromTOML(i interface{}) error
	TOMLValue() interface{}
}

// PrivateKeyTOML is the TOML-able version of a private key
type PrivateKeyTOML struct {
	Seed       string
	SchemeName string
}

// TOML returns a struct that can be marshaled using a TOML-encoding library
func (p *PrivateKey) TOML() interface{} {
	return &PrivateKeyTOML{
		Seed:       crypto.FieldToString(&p.seed),
		SchemeName: p.scheme.Name,
	}
}

// FromTOML rederives the private key from its unmarshaled seed.
func (p *PrivateKey) FromTOML(i interface{}) error {
	ptoml, ok := i.(*PrivateKeyTOML)
	if !ok {
		return errors.New("private key can't decode toml from non PrivateKeyTOML struct")
	}
	sch, err := crypto.GetSchemeByIDWithDefault(ptoml.SchemeName)
	if err != nil {
		return err
	}
	seed, err := crypto.StringToField(ptoml.Seed)
	if err != nil {
		return fmt.Errorf("decoding seed: %w", err)
	}
	derived, err := PrivateKeyFromSeed(sch, seed)
	if err != nil {
		return err
	}
	*p = *derived
	return nil
}

// TOMLValue returns an empty TOML-compatible interface value
func (p *PrivateKey) TOMLValue() interface{} {
	return &PrivateKeyTOML{}
}

// PublicTOML is the TOML-able version of an account's public identity.
type PublicTOML struct {
	Address    string
	SchemeName string
}

// Public is the public part of a key stored next to the private key.
type Public struct {
	Address Address
	Scheme  *crypto.Scheme
}

// TOML returns the TOML-compatible version of the public identity.
func (pub *Public) TOML() interface{} {
	return &PublicTOML{Address: pub.Address.String(), SchemeName: pub.Scheme.String()}
}

// FromTOML loads the public identity from its TOML description.
func (pub *Public) FromTOML(i interface{}) error {
	ptoml, ok := i.(*PublicTOML)
	if !ok {
		return errors.New("public can't decode from non PublicTOML struct")
	}
	sch, err := crypto.GetSchemeByIDWithDefault(ptoml.SchemeName)
	if err != nil {
		return err
	}
	addr, err := ParseAddress(ptoml.Address)
	if err != nil {
		return err
	}
	pub.Address = addr
	pub.Scheme = sch
	return nil
}

// TOMLValue returns an empty TOML-compatible value.
func (pub *Public) TOMLValue() interface{} {
	return &PublicTOML{}
}

// Store abstracts the loading and saving of account key material.
type Store interface {
	SaveKey(p *PrivateKey) error
	LoadKey() (*PrivateKey, error)
	LoadPublic() (*Public, error)
}

// ErrAbsent is returned when the store holds no key.
var ErrAbsent = errors.New("store can't find requested object")

const (
	keyFolderName  = "key"
	privateKeyFile = "vmauth.private"
	publicKeyFile  = "vmauth.public"
)

type fileStore struct {
	baseFolder     string
	privateKeyFile string
	publicKeyFile  string
}

// NewFileStore returns a key store rooted at the given folder.
func NewFileStore(baseFolder string) Store {
	keyFolder := filepath.Join(baseFolder, keyFolderName)
	return &fileStore{
		baseFolder:     baseFolder,
		privateKeyFile: filepath.Join(keyFolder, privateKeyFile),
		publicKeyFile:  filepath.Join(keyFolder, publicKeyFile),
	}
}

// SaveKey first saves the private key in a file with tight permissions and
// then saves the public part in another file.
func (f *fileStore) SaveKey(p *PrivateKey) error {
	if _, err := fs.CreateSecureFolder(filepath.Dir(f.privateKeyFile)); err != nil {
		return err
	}
	if err := Save(f.privateKeyFile, p, true); err != nil {
		return err
	}
	derived, err := Derive(p)
	if err != nil {
		return err
	}
	return Save(f.publicKeyFile, &Public{Address: derived.Address, Scheme: p.scheme}, false)
}

// LoadKey decodes the private key.
func (f *fileStore) LoadKey() (*PrivateKey, error) {
	p := new(PrivateKey)
	if err := Load(f.privateKeyFile, p); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadPublic decodes the public identity.
func (f *fileStore) LoadPublic() (*Public, error) {
	pub := new(Public)
	if err := Load(f.publicKeyFile, pub); err != nil {
		return nil, err
	}
	return pub, nil
}

// Save the given Tomler interface to the given path. If secure is true, the
// file will have a 0600 permission.
func Save(path string, t Tomler, secure bool) error {
	var fd *os.File
	var err error
	if secure {
		fd, err = fs.CreateSecureFile(path)
	} else {
		fd, err = os.Create(path)
	}
	if err != nil {
		return fmt.Errorf("config: can't save %s to %s: %w", reflectName(t), path, err)
	}
	defer fd.Close()
	return toml.NewEncoder(fd).Encode(t.TOML())
}

// Load decodes the TOML file at path into t.
func Load(path string, t Tomler) error {
	tomlValue := t.TOMLValue()
	if _, err := toml.DecodeFile(path, tomlValue); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrAbsent, path)
		}
		return err
	}
	return t.FromTOML(tomlValue)
}

func reflectName(t Tomler) string {
	return fmt.Sprintf("%T", t)
}
