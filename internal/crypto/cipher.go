package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

const (
	// KeySize is the AES-256 key length.
	KeySize = 32

	// NonceSize is the GCM standard nonce length.
	NonceSize = 12

	// TagSize is the GCM authentication tag length.
	TagSize = 16

	// SaltSize is the length of key derivation salts.
	SaltSize = 32

	// MinEnvelopeSize is the smallest valid envelope: a nonce and a tag
	// around an empty ciphertext.
	MinEnvelopeSize = NonceSize + TagSize
)

// keyProofPlaintext is the fixed value sealed at vault creation so a
// candidate password can be checked without touching real content.
var keyProofPlaintext = []byte("vaultcore.key-proof.v1")

// Cipher performs authenticated encryption over the envelope format
// nonce || ciphertext || tag. A fresh nonce is drawn for every seal; the
// cipher keeps no per-session state.
type Cipher struct {
	rand *Random
}

// NewCipher creates a cipher drawing nonces from the given source.
func NewCipher(rand *Random) *Cipher {
	return &Cipher{rand: rand}
}

// Seal encrypts plaintext with AES-256-GCM under a fresh nonce and
// returns the envelope nonce || ciphertext || tag.
func (c *Cipher) Seal(plaintext, key []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce, err := c.rand.Nonce()
	if err != nil {
		return nil, err
	}

	// Seal appends ciphertext || tag after the nonce.
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts an envelope and verifies its tag. The failure is
// atomic: no partial plaintext is ever returned.
func (c *Cipher) Open(envelope, key []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(envelope) < MinEnvelopeSize {
		return nil, fmt.Errorf("%w: %d bytes (minimum %d)",
			ErrInvalidInput, len(envelope), MinEnvelopeSize)
	}

	nonce := envelope[:NonceSize]
	plaintext, err := aead.Open(nil, nonce, envelope[NonceSize:], nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	if plaintext == nil {
		// GCM yields nil for an empty ciphertext; success always
		// returns a non-nil slice.
		plaintext = []byte{}
	}
	return plaintext, nil
}

// KeyProof seals a fixed plaintext under the key. The result is stored
// at vault creation and later used to test candidate passwords.
func (c *Cipher) KeyProof(key []byte) ([]byte, error) {
	return c.Seal(keyProofPlaintext, key)
}

// CheckKeyProof verifies a candidate key against a stored proof.
func (c *Cipher) CheckKeyProof(proof, key []byte) error {
	plaintext, err := c.Open(proof, key)
	if err != nil {
		return err
	}
	if !bytes.Equal(plaintext, keyProofPlaintext) {
		return ErrAuthenticationFailed
	}
	return nil
}

// ValidateKeySize checks that a key is exactly KeySize bytes.
func ValidateKeySize(key []byte) error {
	if len(key) != KeySize {
		return fmt.Errorf("%w: expected %d bytes, got %d",
			ErrInvalidKeySize, KeySize, len(key))
	}
	return nil
}

// Zero wipes key material in place. Sessions call this on close.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if err := ValidateKeySize(key); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return aead, nil
}
