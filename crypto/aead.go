package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// xchachaSIV adapts XChaCha20-Poly1305 to the wider 64-byte-key,
// 16-byte-nonce contract every caller in this module expects. The
// 64-byte key and the caller-supplied nonce are both fed into an HKDF
// expansion that produces the concrete 32-byte cipher key and 24-byte
// XChaCha20 nonce; this is the same key/nonce-derivation shape the
// ericlagergren double-ratchet reference uses ahead of its own
// XChaCha20-Poly1305 calls. Binding the caller's nonce into the HKDF
// info means a constant all-zero nonce is still safe here only because
// every caller in this module derives a unique 64-byte key per AEAD use
// (per-block, per-slot, or per-encrypted-blob keys); reusing a (key,
// nonce) pair for two different plaintexts is not otherwise guarded
// against.
type xchachaSIV struct{}

// NewXChaChaSIV returns the reference AEAD implementation satisfying the
// module's 64-byte-key / 16-byte-nonce / 16-byte-tag contract.
func NewXChaChaSIV() AEAD { return xchachaSIV{} }

func (xchachaSIV) derive(key, nonce []byte) (subKey, subNonce []byte) {
	if len(key) != AEADKeySize {
		panic(fmt.Sprintf("crypto: invalid AEAD key size: %d", len(key)))
	}
	if len(nonce) != AEADNonceSize {
		panic(fmt.Sprintf("crypto: invalid AEAD nonce size: %d", len(nonce)))
	}
	const (
		K = chacha20poly1305.KeySize
		N = chacha20poly1305.NonceSizeX
	)
	buf := make([]byte, K+N)
	r := hkdf.New(sha256.New, key, nonce, []byte("vault-aead-derive-v1"))
	if _, err := io.ReadFull(r, buf); err != nil {
		panic(err)
	}
	return buf[0:K:K], buf[K : K+N : K+N]
}

func (x xchachaSIV) Seal(key, nonce, plaintext, additionalData []byte) []byte {
	subKey, subNonce := x.derive(key, nonce)
	defer Zero(subKey)
	aead, err := chacha20poly1305.NewX(subKey)
	if err != nil {
		panic(err)
	}
	return aead.Seal(nil, subNonce, plaintext, additionalData)
}

func (x xchachaSIV) Open(key, nonce, ciphertext, additionalData []byte) ([]byte, error) {
	subKey, subNonce := x.derive(key, nonce)
	defer Zero(subKey)
	aead, err := chacha20poly1305.NewX(subKey)
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, subNonce, ciphertext, additionalData)
	if err != nil {
		return nil, fmt.Errorf("crypto: AEAD open failed: %w", err)
	}
	return pt, nil
}

// ZeroNonce is the constant nonce DBS uses for every block/slot/root
// encryption; safe because every key passed alongside it is unique.
var ZeroNonce = make([]byte, AEADNonceSize)
