package crypto_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phantomvault/vaultcore/internal/crypto"
)

func TestDerive_Deterministic(t *testing.T) {
	salt := []byte("0123456789abcdef0123456789abcdef")

	key1, err := crypto.Derive("correct horse", salt, crypto.MinIterations, crypto.KeySize)
	require.NoError(t, err)
	assert.Len(t, key1, crypto.KeySize)

	key2, err := crypto.Derive("correct horse", salt, crypto.MinIterations, crypto.KeySize)
	require.NoError(t, err)
	assert.Equal(t, key1, key2)
}

func TestDerive_InputSensitivity(t *testing.T) {
	salt := []byte("0123456789abcdef0123456789abcdef")
	base, err := crypto.Derive("password", salt, crypto.MinIterations, crypto.KeySize)
	require.NoError(t, err)

	t.Run("different password", func(t *testing.T) {
		key, err := crypto.Derive("Password", salt, crypto.MinIterations, crypto.KeySize)
		require.NoError(t, err)
		assert.NotEqual(t, base, key)
	})

	t.Run("different salt", func(t *testing.T) {
		other := []byte("fedcba9876543210fedcba9876543210")
		key, err := crypto.Derive("password", other, crypto.MinIterations, crypto.KeySize)
		require.NoError(t, err)
		assert.NotEqual(t, base, key)
	})

	t.Run("different iterations", func(t *testing.T) {
		key, err := crypto.Derive("password", salt, crypto.MinIterations+1, crypto.KeySize)
		require.NoError(t, err)
		assert.NotEqual(t, base, key)
	})
}

func TestDerive_ParameterValidation(t *testing.T) {
	salt := []byte("0123456789abcdef0123456789abcdef")

	tests := []struct {
		name       string
		secret     string
		salt       []byte
		iterations int
		length     int
		wantErr    error
	}{
		{"empty secret", "", salt, crypto.MinIterations, crypto.KeySize, crypto.ErrInvalidArgument},
		{"empty salt", "pw", nil, crypto.MinIterations, crypto.KeySize, crypto.ErrInvalidArgument},
		{"iterations below minimum", "pw", salt, crypto.MinIterations - 1, crypto.KeySize, crypto.ErrWeakParameters},
		{"zero length", "pw", salt, crypto.MinIterations, 0, crypto.ErrInvalidArgument},
		{"minimum iterations accepted", "pw", salt, crypto.MinIterations, crypto.KeySize, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := crypto.Derive(tt.secret, tt.salt, tt.iterations, tt.length)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultIterations(t *testing.T) {
	// New secrets must stretch at least as hard as NIST guidance.
	assert.GreaterOrEqual(t, crypto.DefaultIterations, 100_000)
	assert.GreaterOrEqual(t, crypto.DefaultIterations, crypto.MinIterations)
}

func TestNormalizeAnswer(t *testing.T) {
	tests := []struct {
		name     string
		answer   string
		foldCase bool
		want     string
	}{
		{"trims whitespace", "  Rex  ", false, "Rex"},
		{"trims tabs and newlines", "\tRex\n", false, "Rex"},
		{"case preserved by default", "Rex", false, "Rex"},
		{"case folded when enabled", "ReX", true, "rex"},
		{"fold and trim together", "  ReX ", true, "rex"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, crypto.NormalizeAnswer(tt.answer, tt.foldCase))
		})
	}
}
