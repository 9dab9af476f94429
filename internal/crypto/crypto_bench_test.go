package crypto_test

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"

	"github.com/phantomvault/vaultcore/internal/crypto"
)

func benchKey(b *testing.B) []byte {
	b.Helper()
	key := make([]byte, crypto.KeySize)
	if _, err := rand.Read(key); err != nil {
		b.Fatal(err)
	}
	return key
}

func BenchmarkSeal(b *testing.B) {
	c := crypto.NewCipher(crypto.NewRandom())
	key := benchKey(b)
	plaintext := make([]byte, 4096)

	b.SetBytes(int64(len(plaintext)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Seal(plaintext, key); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkOpen(b *testing.B) {
	c := crypto.NewCipher(crypto.NewRandom())
	key := benchKey(b)
	envelope, err := c.Seal(make([]byte, 4096), key)
	if err != nil {
		b.Fatal(err)
	}

	b.SetBytes(4096)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Open(envelope, key); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSealStream(b *testing.B) {
	c := crypto.NewCipher(crypto.NewRandom())
	key := benchKey(b)
	plaintext := make([]byte, 1<<20)

	b.SetBytes(int64(len(plaintext)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := c.SealStream(bytes.NewReader(plaintext), io.Discard, key); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDerive(b *testing.B) {
	salt := make([]byte, crypto.SaltSize)
	if _, err := rand.Read(salt); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := crypto.Derive("benchmark password", salt, crypto.DefaultIterations, crypto.KeySize); err != nil {
			b.Fatal(err)
		}
	}
}
