package crypto

import "runtime"

// Zero overwrites p with zero bytes. Used throughout dbs and asp to wipe
// key material and decrypted buffers on drop/lock, mirroring the
// ericlagergren double-ratchet reference's wipe() helper.
//
//go:noinline
func Zero(p []byte) {
	for i := range p {
		p[i] = 0
	}
	keepAlive(p)
}

func keepAlive(p []byte) {
	runtime.KeepAlive(p)
}
