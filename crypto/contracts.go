// Package crypto defines the narrow cryptographic contracts shared by the
// dbs and asp packages: a post-quantum KEM, a nonce-misuse-resistant AEAD,
// a memory-hard password KDF, an extract-then-expand KDF, and a secure
// RNG. Each is a single-purpose interface so tests can substitute
// in-memory or deterministic implementations without touching callers.
package crypto

import "io"

// AEADKeySize, AEADNonceSize and AEADTagSize fix the shape every AEAD
// implementation in this module must present. Keys are wider than a raw
// cipher key because callers derive them directly from a KDF and never
// see the sub-key/sub-nonce split performed internally.
const (
	AEADKeySize   = 64
	AEADNonceSize = 16
	AEADTagSize   = 16
)

// AEAD is a nonce-misuse-resistant authenticated cipher. Implementations
// must tolerate a constant all-zero nonce safely provided every key is
// used for at most one (key, plaintext) pair, which holds here because
// every block and slot key is itself uniquely derived.
type AEAD interface {
	Seal(key, nonce, plaintext, additionalData []byte) []byte
	Open(key, nonce, ciphertext, additionalData []byte) ([]byte, error)
}

// PasswordKDF stretches a low-entropy password into 64 bytes of key
// material using a memory-hard function.
type PasswordKDF interface {
	Derive(password []byte, salt []byte) []byte
}

// KDF is an extract-then-expand key derivation function. Expand labels
// are opaque byte strings; the output length is caller-chosen.
type KDF interface {
	Extract(salt, ikm []byte) []byte
	Expand(prk, label []byte, length int) []byte
}

// RNG is a cryptographically secure source of random bytes.
type RNG interface {
	io.Reader
}

// KEMPublicKey and KEMPrivateKey are opaque, implementation-defined
// byte-serializable key handles.
type KEMPublicKey interface {
	Bytes() []byte
}

type KEMPrivateKey interface {
	Bytes() []byte
}

// KEM is a post-quantum key encapsulation mechanism. Decapsulate is
// infallible at the type level: it always returns a shared secret, even
// for a malformed ciphertext, because correctness is enforced downstream
// by the AEAD that consumes the shared secret.
type KEM interface {
	GenerateKeyPair(rng io.Reader) (KEMPublicKey, KEMPrivateKey, error)
	Encapsulate(rng io.Reader, pk KEMPublicKey) (ciphertext, sharedSecret []byte, err error)
	Decapsulate(sk KEMPrivateKey, ciphertext []byte) (sharedSecret []byte, err error)
	ParsePublicKey(raw []byte) (KEMPublicKey, error)
	ParsePrivateKey(raw []byte) (KEMPrivateKey, error)
	PublicKeySize() int
	PrivateKeySize() int
	CiphertextSize() int
	SharedSecretSize() int
}
