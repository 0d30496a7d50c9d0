// Package asp implements the Agraphon Session Protocol: a double-ratchet
// style asynchronous messaging layer built on a post-quantum KEM, with
// seeker-based board addressing and signed/encrypted announcements.
package asp

import (
	"fmt"
	"io"

	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/schemes"

	vaultcrypto "github.com/agraphon-io/vault/crypto"
)

// mlkemScheme is the concrete post-quantum KEM behind the narrow KEM
// contract: ML-KEM-768, the NIST-standardized Kyber parameter set.
type mlkemScheme struct {
	scheme kem.Scheme
}

// NewMLKEM768 returns the ML-KEM-768 implementation of
// vaultcrypto.KEM.
func NewMLKEM768() vaultcrypto.KEM {
	return &mlkemScheme{scheme: schemes.ByName("ML-KEM-768")}
}

type mlkemPublicKey struct {
	pk  kem.PublicKey
	raw []byte
}

func (k *mlkemPublicKey) Bytes() []byte { return k.raw }

type mlkemPrivateKey struct {
	sk  kem.PrivateKey
	raw []byte
}

func (k *mlkemPrivateKey) Bytes() []byte { return k.raw }

func (m *mlkemScheme) GenerateKeyPair(rng io.Reader) (vaultcrypto.KEMPublicKey, vaultcrypto.KEMPrivateKey, error) {
	seed := make([]byte, m.scheme.SeedSize())
	if err := vaultcrypto.FillBuffer(rng, seed); err != nil {
		return nil, nil, fmt.Errorf("asp: sampling kem seed: %w", err)
	}
	pk, sk := m.scheme.DeriveKeyPair(seed)

	pkBytes, err := pk.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("asp: marshaling kem public key: %w", err)
	}
	skBytes, err := sk.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("asp: marshaling kem private key: %w", err)
	}
	return &mlkemPublicKey{pk: pk, raw: pkBytes}, &mlkemPrivateKey{sk: sk, raw: skBytes}, nil
}

func (m *mlkemScheme) Encapsulate(rng io.Reader, pk vaultcrypto.KEMPublicKey) (ciphertext, sharedSecret []byte, err error) {
	mpk, ok := pk.(*mlkemPublicKey)
	if !ok {
		return nil, nil, fmt.Errorf("asp: encapsulate: not an ML-KEM-768 public key")
	}
	seed := make([]byte, m.scheme.EncapsulationSeedSize())
	if err := vaultcrypto.FillBuffer(rng, seed); err != nil {
		return nil, nil, fmt.Errorf("asp: sampling encapsulation seed: %w", err)
	}
	ct, ss := m.scheme.EncapsulateDeterministically(mpk.pk, seed)
	return ct, ss, nil
}

// Decapsulate is infallible at the type level: circl's Decapsulate
// always returns a shared secret for a correctly sized ciphertext, even
// one that was not produced for this key; correctness is enforced
// downstream by the AEAD that consumes the shared secret.
func (m *mlkemScheme) Decapsulate(sk vaultcrypto.KEMPrivateKey, ciphertext []byte) ([]byte, error) {
	msk, ok := sk.(*mlkemPrivateKey)
	if !ok {
		return nil, fmt.Errorf("asp: decapsulate: not an ML-KEM-768 private key")
	}
	ss, err := m.scheme.Decapsulate(msk.sk, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("asp: decapsulate: %w", err)
	}
	return ss, nil
}

func (m *mlkemScheme) ParsePublicKey(raw []byte) (vaultcrypto.KEMPublicKey, error) {
	pk, err := m.scheme.UnmarshalBinaryPublicKey(raw)
	if err != nil {
		return nil, fmt.Errorf("asp: parsing kem public key: %w", err)
	}
	return &mlkemPublicKey{pk: pk, raw: append([]byte(nil), raw...)}, nil
}

func (m *mlkemScheme) ParsePrivateKey(raw []byte) (vaultcrypto.KEMPrivateKey, error) {
	sk, err := m.scheme.UnmarshalBinaryPrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("asp: parsing kem private key: %w", err)
	}
	return &mlkemPrivateKey{sk: sk, raw: append([]byte(nil), raw...)}, nil
}

func (m *mlkemScheme) PublicKeySize() int    { return m.scheme.PublicKeySize() }
func (m *mlkemScheme) PrivateKeySize() int   { return m.scheme.PrivateKeySize() }
func (m *mlkemScheme) CiphertextSize() int   { return m.scheme.CiphertextSize() }
func (m *mlkemScheme) SharedSecretSize() int { return m.scheme.SharedKeySize() }
