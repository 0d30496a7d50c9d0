package crypto

import "golang.org/x/crypto/argon2"

// Argon2 memory/time/parallelism parameters. Chosen to be seconds-scale
// and memory-hard per the contract in spec §6 ("≥ 32 MiB, seconds-scale");
// production deployments under tight latency budgets may tune these
// through StorageConfig rather than editing this file.
const (
	argon2Time    = 3
	argon2MemoryKB = 64 * 1024
	argon2Threads = 4
	argon2KeyLen  = 64
)

type argon2PasswordKDF struct{}

// NewArgon2PasswordKDF returns the reference password-stretching KDF.
func NewArgon2PasswordKDF() PasswordKDF { return argon2PasswordKDF{} }

func (argon2PasswordKDF) Derive(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, argon2Time, argon2MemoryKB, argon2Threads, argon2KeyLen)
}
