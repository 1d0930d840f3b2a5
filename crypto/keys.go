package crypto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// ErrInvalidKey is returned when key material has the wrong length or fails
// to parse.
var ErrInvalidKey = errors.New("crypto: invalid key")

// GeneratePrivateKey returns a fresh ed25519 keypair.
func GeneratePrivateKey() (solana.PrivateKey, error) {
	return solana.NewRandomPrivateKey()
}

// PrivateKeyFromBytes accepts the 64-byte seed||public form used by keygen
// files.
func PrivateKeyFromBytes(b []byte) (solana.PrivateKey, error) {
	if len(b) != 64 {
		return nil, fmt.Errorf("%w: expected 64 bytes, got %d", ErrInvalidKey, len(b))
	}
	key := solana.PrivateKey(append([]byte(nil), b...))
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return key, nil
}

// ParsePublicKey decodes a base58 address, tolerating surrounding whitespace.
func ParsePublicKey(s string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(strings.TrimSpace(s))
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return key, nil
}
