package crypto

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
)

// SaveKeyFile writes key as a keygen JSON array of 64 bytes. The parent
// directory is created with 0700 permissions and the file is replaced
// atomically.
func SaveKeyFile(path string, key solana.PrivateKey) error {
	if len(key) == 0 {
		return errors.New("crypto: nil private key")
	}
	if path == "" {
		return errors.New("crypto: empty key path")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	payload, err := json.Marshal(ints)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "key-")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadKeyFile reads a keygen JSON key file.
func LoadKeyFile(path string) (solana.PrivateKey, error) {
	if path == "" {
		return nil, errors.New("crypto: empty key path")
	}
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, err
	}
	return PrivateKeyFromBytes(key)
}

// LoadOrCreateKeyFile loads the key at path, generating and saving a new one
// when the file does not exist.
func LoadOrCreateKeyFile(path string) (solana.PrivateKey, bool, error) {
	key, err := LoadKeyFile(path)
	if err == nil {
		return key, false, nil
	}
	if _, statErr := os.Stat(path); !errors.Is(statErr, fs.ErrNotExist) {
		return nil, false, err
	}
	key, err = GeneratePrivateKey()
	if err != nil {
		return nil, false, err
	}
	if err := SaveKeyFile(path, key); err != nil {
		return nil, false, err
	}
	return key, true, nil
}
