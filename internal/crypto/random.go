package crypto

import (
	"crypto/rand"
	"fmt"
	"io"
)

// Random draws cryptographically secure bytes for keys, nonces, and
// salts. The source is injectable so tests can run deterministically.
type Random struct {
	source io.Reader
}

// NewRandom creates a Random backed by the operating system CSPRNG.
func NewRandom() *Random {
	return &Random{source: rand.Reader}
}

// NewRandomFrom creates a Random backed by the given reader.
func NewRandomFrom(source io.Reader) *Random {
	return &Random{source: source}
}

// Bytes returns n fresh random bytes.
func (r *Random) Bytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrInvalidArgument, n)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r.source, buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEntropy, err)
	}
	return buf, nil
}

// Key returns a fresh 32-byte symmetric key.
func (r *Random) Key() ([]byte, error) {
	return r.Bytes(KeySize)
}

// Nonce returns a fresh 12-byte nonce.
func (r *Random) Nonce() ([]byte, error) {
	return r.Bytes(NonceSize)
}

// Salt returns a fresh 32-byte salt.
func (r *Random) Salt() ([]byte, error) {
	return r.Bytes(SaltSize)
}
