package dbs

import "errors"

// Block-level failure modes (spec §7).
var (
	ErrBlockNotFound    = errors.New("dbs: block not found")
	ErrDecryptionFailed = errors.New("dbs: decryption failed")
	ErrInvalidFormat    = errors.New("dbs: invalid on-disk format")
	ErrIO               = errors.New("dbs: io error")
)

// Session-level failure modes.
var (
	ErrInvalidPassword = errors.New("dbs: invalid password")
	ErrAlreadyUnlocked = errors.New("dbs: session already unlocked")
	ErrSessionLocked   = errors.New("dbs: session is locked")
)
