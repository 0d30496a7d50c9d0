package main

import (
	"fmt"
	"os"

	"github.com/agraphon-io/vault/asp"
	vaultcrypto "github.com/agraphon-io/vault/crypto"
)

const stateSaltSize = 16

var passwordKDF = vaultcrypto.NewArgon2PasswordKDF()

// loadState opens the session manager state file at path under
// password, or returns a fresh manager if the file does not exist
// yet. The file layout is a random salt followed by the AEAD-sealed
// gob snapshot from SessionManager.ToEncryptedBlob.
func loadState(path string, password []byte) (*asp.SessionManager, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return asp.NewSessionManager(asp.DefaultSessionManagerConfig(), nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	if len(data) < stateSaltSize {
		return nil, fmt.Errorf("state file %s is truncated", path)
	}
	salt, blob := data[:stateSaltSize], data[stateSaltSize:]
	key := passwordKDF.Derive(password, salt)

	mgr, err := asp.SessionManagerFromEncryptedBlob(asp.DefaultSessionManagerConfig(), nil, key, blob)
	if err != nil {
		return nil, fmt.Errorf("failed to unlock state file (wrong password?): %w", err)
	}
	return mgr, nil
}

// saveState seals mgr's snapshot under password and writes it to
// path, generating a fresh salt on every save.
func saveState(path string, password []byte, mgr *asp.SessionManager) error {
	salt := make([]byte, stateSaltSize)
	if _, err := vaultcrypto.SystemRNG.Read(salt); err != nil {
		return fmt.Errorf("failed to sample salt: %w", err)
	}
	key := passwordKDF.Derive(password, salt)

	blob, err := mgr.ToEncryptedBlob(key)
	if err != nil {
		return fmt.Errorf("failed to seal state: %w", err)
	}
	return os.WriteFile(path, append(salt, blob...), 0600)
}
