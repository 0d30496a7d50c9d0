package dbs

import (
	"fmt"

	"github.com/agraphon-io/vault/crypto"
	"github.com/agraphon-io/vault/internal/logger"
)

// SessionState reports whether a SessionManager currently holds decrypted
// key material.
type SessionState int

const (
	StateLocked SessionState = iota
	StateUnlocked
)

// session is the active, unlocked session: derived keys, the block
// manager over the data file, and the last addressing-slot contents this
// manager wrote, so repeated flushes that leave the root block unchanged
// skip rewriting all 46 slots.
type session struct {
	keys         *SessionKeys
	blockManager *BlockManager

	lastFlushedRootAddress uint64
	lastFlushedRootLength  uint32
}

// SessionManager owns the two backing files and the lifecycle of at most
// one unlocked session at a time: init_storage, create_session,
// unlock_session, lock, and the read/write/flush operations a VFS layer
// delegates to it.
type SessionManager struct {
	fs     FileSystem
	config StorageConfig
	aead   crypto.AEAD
	kdf    crypto.KDF
	pwkdf  crypto.PasswordKDF
	rng    crypto.RNG
	log    logger.Logger

	session *session
}

// NewSessionManager builds a manager over fs using the production
// StorageConfig and the package's default AEAD/KDF/password-KDF/RNG
// implementations.
func NewSessionManager(fs FileSystem, log logger.Logger) *SessionManager {
	return NewSessionManagerWithConfig(fs, ProductionStorageConfig(), log)
}

// NewSessionManagerWithConfig builds a manager over fs with an explicit
// StorageConfig, for tests or non-default deployments.
func NewSessionManagerWithConfig(fs FileSystem, config StorageConfig, log logger.Logger) *SessionManager {
	return &SessionManager{
		fs:     fs,
		config: config,
		aead:   crypto.NewXChaChaSIV(),
		kdf:    crypto.NewHKDF(),
		pwkdf:  crypto.NewArgon2PasswordKDF(),
		rng:    crypto.SystemRNG,
		log:    log,
	}
}

// State reports whether a session is currently unlocked.
func (m *SessionManager) State() SessionState {
	if m.session != nil {
		return StateUnlocked
	}
	return StateLocked
}

// IsUnlocked reports whether a session is currently unlocked.
func (m *SessionManager) IsUnlocked() bool { return m.session != nil }

// InitStorage creates the addressing blob (2 MiB of random bytes) the
// first time it is called against fs. Subsequent calls are no-ops once
// the addressing file already has the right size.
func (m *SessionManager) InitStorage() error {
	size, err := m.fs.Size(FileAddr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if size == AddressingBlobSize {
		return nil
	}
	blob := make([]byte, AddressingBlobSize)
	if err := crypto.FillBuffer(m.rng, blob); err != nil {
		return fmt.Errorf("%w: sampling addressing blob: %v", ErrIO, err)
	}
	if err := m.fs.WriteBytes(FileAddr, 0, blob); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return m.fs.Flush(FileAddr)
}

// CreateSession derives keys from password, lays down Pareto padding
// before a fresh root block, and writes the same encrypted slot content
// to all 46 of that password's addressing slots.
func (m *SessionManager) CreateSession(password []byte) error {
	if m.session != nil {
		return ErrAlreadyUnlocked
	}

	keys := DeriveSessionKeys(m.pwkdf, m.kdf, password)

	padding, err := SamplePareto(m.rng, m.config.ParetoMin, m.config.ParetoMax, m.config.ParetoAlpha)
	if err != nil {
		return err
	}
	curSize, err := m.fs.Size(FileData)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := streamRandomPadding(m.fs, m.rng, curSize, padding); err != nil {
		return err
	}
	rootAddress := curSize + padding

	bm, err := NewBlockManager(m.fs, keys, m.aead, m.kdf, m.rng, rootAddress, m.config, m.log)
	if err != nil {
		keys.Zeroize()
		return fmt.Errorf("dbs: creating session: %w", err)
	}

	content := SlotContent{Address: rootAddress, Length: bm.RootOuterLength()}
	if err := m.writeAllSlots(keys, content); err != nil {
		keys.Zeroize()
		return err
	}

	m.session = &session{
		keys:                   keys,
		blockManager:           bm,
		lastFlushedRootAddress: rootAddress,
		lastFlushedRootLength:  bm.RootOuterLength(),
	}
	return nil
}

// UnlockSession derives keys from password and scans all 46 candidate
// slots, decrypting every one regardless of whether an earlier candidate
// already succeeded so the time taken does not depend on which slot (or
// whether any slot) matches the password. Slots that fail to decrypt, or
// whose bounds or content disagree with the first slot that passes both
// bounds and root-block decryption, are treated as corrupted and rewritten
// in place (self-heal) without touching the slots that already agree.
func (m *SessionManager) UnlockSession(password []byte) error {
	if m.session != nil {
		return ErrAlreadyUnlocked
	}

	keys := DeriveSessionKeys(m.pwkdf, m.kdf, password)

	type candidate struct {
		position int
		content  SlotContent
	}
	var valid []candidate
	var corrupted []int

	for position := 0; position < SlotsPerSession; position++ {
		slotIndex := keys.SlotIndex(position)
		slotKey := keys.SlotKey(position)
		offset := uint64(slotIndex) * SlotSize
		ciphertext, err := m.fs.ReadBytes(FileAddr, offset, SlotSize)
		if err != nil || len(ciphertext) != SlotSize {
			corrupted = append(corrupted, position)
			crypto.Zero(slotKey)
			continue
		}
		content, err := DecryptSlot(m.aead, slotKey, ciphertext)
		crypto.Zero(slotKey)
		if err != nil {
			corrupted = append(corrupted, position)
			continue
		}
		valid = append(valid, candidate{position: position, content: content})
	}

	if len(valid) == 0 {
		keys.Zeroize()
		return ErrInvalidPassword
	}

	dataSize, err := m.fs.Size(FileData)
	if err != nil {
		keys.Zeroize()
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	var haveResult bool
	var rootAddress uint64
	var rootLength uint32

	for _, c := range valid {
		end := c.content.Address + uint64(c.content.Length)
		if end < c.content.Address || end > dataSize {
			corrupted = append(corrupted, c.position)
			continue
		}
		if haveResult {
			if c.content.Address != rootAddress || c.content.Length != rootLength {
				corrupted = append(corrupted, c.position)
			}
			continue
		}
		ciphertext, err := m.fs.ReadBytes(FileData, c.content.Address, int(c.content.Length))
		if err != nil {
			corrupted = append(corrupted, c.position)
			continue
		}
		if _, err := DecryptRoot(m.aead, keys.SessionAEADKey(), ciphertext); err != nil {
			corrupted = append(corrupted, c.position)
			continue
		}
		rootAddress = c.content.Address
		rootLength = c.content.Length
		haveResult = true
	}

	if !haveResult {
		keys.Zeroize()
		return ErrInvalidPassword
	}

	bm, err := LoadBlockManager(m.fs, keys, m.aead, m.kdf, m.rng, rootAddress, rootLength, m.config, m.log)
	if err != nil {
		keys.Zeroize()
		return fmt.Errorf("dbs: unlocking session: %w", err)
	}

	currentAddress := bm.RootAddress()
	currentLength := bm.RootOuterLength()

	if len(corrupted) > 0 {
		content := SlotContent{Address: currentAddress, Length: currentLength}
		for _, position := range corrupted {
			if err := m.writeSlot(keys, position, content); err != nil {
				keys.Zeroize()
				return err
			}
		}
		if err := m.fs.Flush(FileAddr); err != nil {
			keys.Zeroize()
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
	}

	m.session = &session{
		keys:                   keys,
		blockManager:           bm,
		lastFlushedRootAddress: currentAddress,
		lastFlushedRootLength:  currentLength,
	}
	return nil
}

// Lock flushes pending writes, rewrites the addressing slots if the root
// block moved since the last flush, and zeroizes all key material and
// cached plaintext. After Lock returns, ReadData/WriteData/FlushData
// return ErrSessionLocked until a session is unlocked again.
func (m *SessionManager) Lock() error {
	s := m.session
	if s == nil {
		return nil
	}
	m.session = nil

	if err := s.blockManager.Flush(); err != nil {
		s.blockManager.ZeroizeSensitive()
		return err
	}

	rootAddress := s.blockManager.RootAddress()
	rootLength := s.blockManager.RootOuterLength()
	if rootAddress != s.lastFlushedRootAddress || rootLength != s.lastFlushedRootLength {
		content := SlotContent{Address: rootAddress, Length: rootLength}
		if err := m.writeAllSlots(s.keys, content); err != nil {
			s.blockManager.ZeroizeSensitive()
			return err
		}
	}

	s.blockManager.ZeroizeSensitive()
	return nil
}

// ReadData reads length bytes at offset from the unlocked session.
func (m *SessionManager) ReadData(offset uint64, length int) ([]byte, error) {
	if m.session == nil {
		return nil, ErrSessionLocked
	}
	return m.session.blockManager.Read(offset, length)
}

// WriteData writes data at offset into the unlocked session.
func (m *SessionManager) WriteData(offset uint64, data []byte) error {
	if m.session == nil {
		return ErrSessionLocked
	}
	return m.session.blockManager.Write(offset, data)
}

// FlushData flushes the block manager and, only if the root block moved,
// rewrites all 46 addressing slots.
func (m *SessionManager) FlushData() error {
	s := m.session
	if s == nil {
		return ErrSessionLocked
	}
	if err := s.blockManager.Flush(); err != nil {
		return err
	}
	rootAddress := s.blockManager.RootAddress()
	rootLength := s.blockManager.RootOuterLength()
	if rootAddress != s.lastFlushedRootAddress || rootLength != s.lastFlushedRootLength {
		content := SlotContent{Address: rootAddress, Length: rootLength}
		if err := m.writeAllSlots(s.keys, content); err != nil {
			return err
		}
		s.lastFlushedRootAddress = rootAddress
		s.lastFlushedRootLength = rootLength
	}
	return nil
}

// DataSize returns the unlocked session's logical data size.
func (m *SessionManager) DataSize() (uint64, error) {
	if m.session == nil {
		return 0, ErrSessionLocked
	}
	return m.session.blockManager.DataSize(), nil
}

func (m *SessionManager) writeAllSlots(keys *SessionKeys, content SlotContent) error {
	for position := 0; position < SlotsPerSession; position++ {
		if err := m.writeSlot(keys, position, content); err != nil {
			return err
		}
	}
	return m.fs.Flush(FileAddr)
}

func (m *SessionManager) writeSlot(keys *SessionKeys, position int, content SlotContent) error {
	slotIndex := keys.SlotIndex(position)
	slotKey := keys.SlotKey(position)
	defer crypto.Zero(slotKey)
	encrypted := EncryptSlot(m.aead, slotKey, content)
	offset := uint64(slotIndex) * SlotSize
	if err := m.fs.WriteBytes(FileAddr, offset, encrypted); err != nil {
		return fmt.Errorf("%w: writing slot %d: %v", ErrIO, position, err)
	}
	return nil
}

func streamRandomPadding(fs FileSystem, rng crypto.RNG, curSize, padding uint64) error {
	remaining := padding
	offset := curSize
	for remaining > 0 {
		chunk := PaddingChunkSize
		if uint64(chunk) > remaining {
			chunk = int(remaining)
		}
		buf := make([]byte, chunk)
		if err := crypto.FillBuffer(rng, buf); err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
		if err := fs.WriteBytes(FileData, offset, buf); err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
		offset += uint64(chunk)
		remaining -= uint64(chunk)
	}
	return nil
}
