package crypto

import (
	"crypto/sha512"
	"io"

	"golang.org/x/crypto/hkdf"
)

// hkdfSHA512 implements KDF with HKDF-SHA512, matching the 64-byte key
// material this module derives everywhere (session AEAD keys, block
// keys, slot keys).
type hkdfSHA512 struct{}

// NewHKDF returns the reference extract-then-expand KDF.
func NewHKDF() KDF { return hkdfSHA512{} }

func (hkdfSHA512) Extract(salt, ikm []byte) []byte {
	return hkdf.Extract(sha512.New, ikm, salt)
}

func (hkdfSHA512) Expand(prk, label []byte, length int) []byte {
	r := hkdf.Expand(sha512.New, prk, label)
	out := make([]byte, length)
	if _, err := io.ReadFull(r, out); err != nil {
		panic(err)
	}
	return out
}
