package crypto

import (
	"crypto/rand"
	"io"
)

// SystemRNG is the process-wide cryptographically secure RNG. Tests that
// need determinism substitute their own io.Reader via the narrow RNG
// interface rather than patching this value.
var SystemRNG RNG = rand.Reader

// FillBuffer reads len(buf) cryptographically secure random bytes into buf
// using r.
func FillBuffer(r RNG, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	return err
}
