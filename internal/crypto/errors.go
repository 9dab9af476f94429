package crypto

import "errors"

// Sentinel errors for the crypto engine.
var (
	// ErrEntropy indicates the secure random source failed or returned
	// fewer bytes than requested.
	ErrEntropy = errors.New("entropy source unavailable")

	// ErrWeakParameters indicates key derivation parameters below the
	// accepted minimum.
	ErrWeakParameters = errors.New("key derivation parameters too weak")

	// ErrInvalidArgument indicates an empty secret or salt.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidKeySize indicates a key that is not KeySize bytes.
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrInvalidInput indicates an envelope too short to contain a nonce
	// and tag.
	ErrInvalidInput = errors.New("invalid envelope")

	// ErrAuthenticationFailed indicates tag verification failed. Wrong
	// key, corrupted data, and truncation are deliberately
	// indistinguishable.
	ErrAuthenticationFailed = errors.New("authentication failed")
)
