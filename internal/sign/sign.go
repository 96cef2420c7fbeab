// Package sign produces and checks armored OpenPGP detached signatures for
// generated manifests.
package sign

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
	"github.com/ProtonMail/go-crypto/openpgp/armor"
)

// SignatureExt is appended to a file name to form its signature file.
const SignatureExt = ".asc"

var (
	// ErrNoPrivateKey is returned when a keyring holds only public keys.
	ErrNoPrivateKey = errors.New("keyring has no private key")
	// ErrPassphrase is returned when an encrypted key cannot be unlocked.
	ErrPassphrase = errors.New("cannot decrypt private key")
)

// Signer signs with one private key.
type Signer struct {
	entity *openpgp.Entity
}

// NewSigner wraps an entity whose private key is already decrypted.
func NewSigner(entity *openpgp.Entity) (*Signer, error) {
	if entity == nil || entity.PrivateKey == nil {
		return nil, ErrNoPrivateKey
	}
	if entity.PrivateKey.Encrypted {
		return nil, fmt.Errorf("%w: key is still encrypted", ErrPassphrase)
	}
	return &Signer{entity: entity}, nil
}

// LoadSigner reads a private key from path, armored or binary, and unlocks
// it with passphrase when it is encrypted.
func LoadSigner(path string, passphrase []byte) (*Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}
	keyring, err := ReadKeyRing(data)
	if err != nil {
		return nil, err
	}

	for _, entity := range keyring {
		if entity.PrivateKey == nil {
			continue
		}
		if err := decrypt(entity, passphrase); err != nil {
			return nil, err
		}
		return NewSigner(entity)
	}
	return nil, ErrNoPrivateKey
}

func decrypt(entity *openpgp.Entity, passphrase []byte) error {
	if entity.PrivateKey.Encrypted {
		if len(passphrase) == 0 {
			return fmt.Errorf("%w: key is encrypted and no passphrase was given", ErrPassphrase)
		}
		if err := entity.PrivateKey.Decrypt(passphrase); err != nil {
			return fmt.Errorf("%w: %v", ErrPassphrase, err)
		}
	}
	for _, sub := range entity.Subkeys {
		if sub.PrivateKey != nil && sub.PrivateKey.Encrypted {
			if err := sub.PrivateKey.Decrypt(passphrase); err != nil {
				return fmt.Errorf("%w: subkey: %v", ErrPassphrase, err)
			}
		}
	}
	return nil
}

// ReadKeyRing parses an armored keyring, falling back to the binary form.
func ReadKeyRing(data []byte) (openpgp.EntityList, error) {
	keyring, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		keyring, err = openpgp.ReadKeyRing(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("read keyring: %w", err)
		}
	}
	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring is empty")
	}
	return keyring, nil
}

// KeyID returns the signing key ID in hex.
func (s *Signer) KeyID() string {
	return s.entity.PrimaryKey.KeyIdString()
}

// Sign writes an armored detached signature of message to w.
func (s *Signer) Sign(w io.Writer, message io.Reader) error {
	if err := openpgp.ArmoredDetachSign(w, s.entity, message, nil); err != nil {
		return fmt.Errorf("sign: %w", err)
	}
	return nil
}

// SignBytes returns the armored detached signature of data.
func (s *Signer) SignBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.Sign(&buf, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PublicKey writes the armored public key, for publishing next to the
// signatures.
func (s *Signer) PublicKey(w io.Writer) error {
	aw, err := armor.Encode(w, openpgp.PublicKeyType, nil)
	if err != nil {
		return fmt.Errorf("armor public key: %w", err)
	}
	if err := s.entity.Serialize(aw); err != nil {
		aw.Close()
		return fmt.Errorf("serialize public key: %w", err)
	}
	return aw.Close()
}

// Verify checks a detached signature, armored or binary, over message.
func Verify(keyring openpgp.EntityList, message, signature []byte) error {
	_, err := openpgp.CheckArmoredDetachedSignature(keyring, bytes.NewReader(message), bytes.NewReader(signature), nil)
	if err != nil {
		_, err = openpgp.CheckDetachedSignature(keyring, bytes.NewReader(message), bytes.NewReader(signature), nil)
	}
	if err != nil {
		return fmt.Errorf("verify signature: %w", err)
	}
	return nil
}
