package main

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/agraphon-io/vault/asp"
	vaultcrypto "github.com/agraphon-io/vault/crypto"
)

// identityFile is the on-disk JSON form of a long-term ASP identity.
// The signing and KEM secret keys are stored in the clear: callers
// that need them protected at rest should encrypt the file themselves
// or keep it on an already-encrypted volume, the same tradeoff the
// teacher's own key-storage CLI makes for PEM/JWK files.
type identityFile struct {
	VerifyKey    string `json:"verify_key"`
	SignKey      string `json:"sign_key"`
	KEMPublic    string `json:"kem_public"`
	KEMSecret    string `json:"kem_secret,omitempty"`
}

func kemScheme() vaultcrypto.KEM { return asp.NewMLKEM768() }

func generateIdentity() (asp.UserPublicKeys, asp.UserSecretKeys, error) {
	return asp.GenerateUserKeys(vaultcrypto.SystemRNG, kemScheme())
}

func saveIdentity(path string, pub asp.UserPublicKeys, sec *asp.UserSecretKeys) error {
	out := identityFile{
		VerifyKey: base64.StdEncoding.EncodeToString(pub.VerifyKey),
		KEMPublic: base64.StdEncoding.EncodeToString(pub.KEMPublicKey.Bytes()),
	}
	if sec != nil {
		out.SignKey = base64.StdEncoding.EncodeToString(sec.SignKey)
		out.KEMSecret = base64.StdEncoding.EncodeToString(sec.KEMSecretKey.Bytes())
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}
	mode := os.FileMode(0644)
	if sec != nil {
		mode = 0600
	}
	return os.WriteFile(path, data, mode)
}

func loadIdentity(path string) (asp.UserPublicKeys, *asp.UserSecretKeys, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return asp.UserPublicKeys{}, nil, fmt.Errorf("failed to read identity file: %w", err)
	}
	var in identityFile
	if err := json.Unmarshal(data, &in); err != nil {
		return asp.UserPublicKeys{}, nil, fmt.Errorf("failed to parse identity file: %w", err)
	}

	verifyKey, err := base64.StdEncoding.DecodeString(in.VerifyKey)
	if err != nil {
		return asp.UserPublicKeys{}, nil, fmt.Errorf("failed to decode verify key: %w", err)
	}
	kemPublicRaw, err := base64.StdEncoding.DecodeString(in.KEMPublic)
	if err != nil {
		return asp.UserPublicKeys{}, nil, fmt.Errorf("failed to decode kem public key: %w", err)
	}
	kemPublic, err := kemScheme().ParsePublicKey(kemPublicRaw)
	if err != nil {
		return asp.UserPublicKeys{}, nil, fmt.Errorf("failed to parse kem public key: %w", err)
	}
	pub := asp.UserPublicKeys{VerifyKey: ed25519.PublicKey(verifyKey), KEMPublicKey: kemPublic}

	if in.SignKey == "" {
		return pub, nil, nil
	}

	signKey, err := base64.StdEncoding.DecodeString(in.SignKey)
	if err != nil {
		return asp.UserPublicKeys{}, nil, fmt.Errorf("failed to decode sign key: %w", err)
	}
	kemSecretRaw, err := base64.StdEncoding.DecodeString(in.KEMSecret)
	if err != nil {
		return asp.UserPublicKeys{}, nil, fmt.Errorf("failed to decode kem secret key: %w", err)
	}
	kemSecret, err := kemScheme().ParsePrivateKey(kemSecretRaw)
	if err != nil {
		return asp.UserPublicKeys{}, nil, fmt.Errorf("failed to parse kem secret key: %w", err)
	}
	sec := &asp.UserSecretKeys{SignKey: ed25519.PrivateKey(signKey), KEMSecretKey: kemSecret}

	return pub, sec, nil
}
