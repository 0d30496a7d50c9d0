package dbs

import (
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/agraphon-io/vault/crypto"
	"github.com/agraphon-io/vault/internal/logger"
)

// decryptedBlock is one cached, decrypted block. It must be zeroized on
// drop and on explicit lock; BlockManager.ZeroizeSensitive wipes every
// cached buffer.
type decryptedBlock struct {
	entry      AllocationEntry
	buffer     []byte
	usedLength uint32
	dirty      bool
}

// BlockManager translates a logical byte stream into encrypted
// variable-size blocks, managing allocation, the in-memory decrypted
// block cache, and the root block that carries the allocation table.
type BlockManager struct {
	fs          FileSystem
	sessionKeys *SessionKeys
	aead        crypto.AEAD
	kdf         crypto.KDF
	rng         crypto.RNG
	config      StorageConfig
	log         logger.Logger

	table                *AllocationTable
	rootAddress          uint64
	rootOuterLength      uint32
	cache                map[[32]byte]*decryptedBlock
	allocationTableDirty bool
	logicalSize          uint64

	sf singleflight.Group
}

// NewBlockManager writes an initial empty root block at rootAddress and
// returns a manager over it.
func NewBlockManager(fs FileSystem, sessionKeys *SessionKeys, aead crypto.AEAD, kdf crypto.KDF, rng crypto.RNG, rootAddress uint64, config StorageConfig, log logger.Logger) (*BlockManager, error) {
	bm := &BlockManager{
		fs:          fs,
		sessionKeys: sessionKeys,
		aead:        aead,
		kdf:         kdf,
		rng:         rng,
		config:      config,
		log:         log,
		table:       NewAllocationTable(),
		rootAddress: rootAddress,
		cache:       make(map[[32]byte]*decryptedBlock),
	}
	ciphertext := EncryptRoot(aead, sessionKeys.SessionAEADKey(), bm.table.ToBytes())
	if err := fs.WriteBytes(FileData, rootAddress, ciphertext); err != nil {
		return nil, fmt.Errorf("dbs: writing initial root block: %w", err)
	}
	bm.rootOuterLength = uint32(len(ciphertext))
	return bm, nil
}

// LoadBlockManager decrypts the root block at (rootAddress,
// rootOuterLength), recovers the allocation table, and computes the
// logical size.
func LoadBlockManager(fs FileSystem, sessionKeys *SessionKeys, aead crypto.AEAD, kdf crypto.KDF, rng crypto.RNG, rootAddress uint64, rootOuterLength uint32, config StorageConfig, log logger.Logger) (*BlockManager, error) {
	ciphertext, err := fs.ReadBytes(FileData, rootAddress, int(rootOuterLength))
	if err != nil {
		return nil, fmt.Errorf("%w: reading root block: %v", ErrIO, err)
	}
	pt, err := DecryptRoot(aead, sessionKeys.SessionAEADKey(), ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: root block: %v", ErrDecryptionFailed, err)
	}
	table, err := AllocationTableFromBytes(pt)
	if err != nil {
		return nil, fmt.Errorf("%w: allocation table: %v", ErrInvalidFormat, err)
	}
	bm := &BlockManager{
		fs:              fs,
		sessionKeys:     sessionKeys,
		aead:            aead,
		kdf:             kdf,
		rng:             rng,
		config:          config,
		log:             log,
		table:           table,
		rootAddress:     rootAddress,
		rootOuterLength: rootOuterLength,
		cache:           make(map[[32]byte]*decryptedBlock),
	}
	bm.logicalSize = table.NextLogicalOffset()
	return bm, nil
}

// RootAddress returns the block manager's current root block address.
func (bm *BlockManager) RootAddress() uint64 { return bm.rootAddress }

// RootOuterLength returns the block manager's current root block
// encrypted size.
func (bm *BlockManager) RootOuterLength() uint32 { return bm.rootOuterLength }

// DataSize returns the logical size of the session's byte stream.
func (bm *BlockManager) DataSize() uint64 { return bm.logicalSize }

// Read always returns exactly length bytes; unwritten or
// beyond-used_length regions read as zero.
func (bm *BlockManager) Read(offset uint64, length int) ([]byte, error) {
	out := make([]byte, length)
	pos := offset
	remaining := length
	for remaining > 0 {
		entry, ok := bm.table.FindBlock(pos)
		if !ok {
			step := ZeroFillStep
			if step > remaining {
				step = remaining
			}
			pos += uint64(step)
			remaining -= step
			continue
		}
		block, err := bm.ensureBlockCached(entry)
		if err != nil {
			return nil, err
		}
		offsetInBlock := pos - entry.InnerDataOffset
		available := int(entry.InnerLength) - int(offsetInBlock)
		n := remaining
		if n > available {
			n = available
		}
		if offsetInBlock < uint64(block.usedLength) {
			copyLen := n
			maxCopy := int(uint64(block.usedLength) - offsetInBlock)
			if copyLen > maxCopy {
				copyLen = maxCopy
			}
			copy(out[length-remaining:], block.buffer[offsetInBlock:offsetInBlock+uint64(copyLen)])
		}
		pos += uint64(n)
		remaining -= n
	}
	return out, nil
}

// Write places bytes into existing blocks where capacity permits,
// allocating new blocks when no existing block covers an offset.
func (bm *BlockManager) Write(offset uint64, data []byte) error {
	pos := offset
	remaining := data
	for len(remaining) > 0 {
		entry, ok := bm.table.FindBlock(pos)
		if !ok {
			if last, ok2 := bm.table.LastBlock(); ok2 && pos >= last.InnerDataOffset && pos < last.InnerDataOffset+uint64(last.InnerLength) {
				entry = last
			} else {
				newEntry, err := bm.allocateNewBlock(uint64(len(remaining)))
				if err != nil {
					return err
				}
				entry = newEntry
			}
		}
		block, err := bm.ensureBlockCached(entry)
		if err != nil {
			return err
		}
		offsetInBlock := pos - entry.InnerDataOffset
		avail := int(entry.InnerLength) - int(offsetInBlock)
		n := len(remaining)
		if n > avail {
			n = avail
		}
		copy(block.buffer[offsetInBlock:offsetInBlock+uint64(n)], remaining[:n])
		if newUsed := uint32(offsetInBlock) + uint32(n); newUsed > block.usedLength {
			block.usedLength = newUsed
		}
		block.dirty = true
		pos += uint64(n)
		remaining = remaining[n:]
		if pos > bm.logicalSize {
			bm.logicalSize = pos
		}
	}
	return nil
}

// Flush re-encrypts every dirty cached block at its same physical
// address, then conditionally rewrites the root block.
func (bm *BlockManager) Flush() error {
	for blockID, block := range bm.cache {
		if !block.dirty {
			continue
		}
		blockKey := bm.sessionKeys.BlockKey(blockID[:])
		pt := EncodeBlockPlaintext(block.usedLength, block.buffer)
		ct := EncryptBlock(bm.aead, blockKey, pt)
		crypto.Zero(blockKey)
		if err := bm.fs.WriteBytes(FileData, block.entry.Address, ct); err != nil {
			return fmt.Errorf("%w: writing block: %v", ErrIO, err)
		}
		block.dirty = false
	}
	if bm.allocationTableDirty {
		if err := bm.writeRootBlock(); err != nil {
			return err
		}
		bm.allocationTableDirty = false
	}
	return bm.fs.Flush(FileData)
}

// ZeroizeSensitive wipes the session key and all cached block buffers.
func (bm *BlockManager) ZeroizeSensitive() {
	bm.sessionKeys.Zeroize()
	for _, block := range bm.cache {
		crypto.Zero(block.buffer)
	}
	bm.cache = make(map[[32]byte]*decryptedBlock)
}

func (bm *BlockManager) ensureBlockCached(entry AllocationEntry) (*decryptedBlock, error) {
	if b, ok := bm.cache[entry.BlockID]; ok {
		return b, nil
	}
	v, err, _ := bm.sf.Do(string(entry.BlockID[:]), func() (interface{}, error) {
		ciphertext, err := bm.fs.ReadBytes(FileData, entry.Address, int(entry.OuterLength))
		if err != nil {
			return nil, fmt.Errorf("%w: reading block: %v", ErrIO, err)
		}
		blockKey := bm.sessionKeys.BlockKey(entry.BlockID[:])
		defer crypto.Zero(blockKey)
		pt, err := DecryptBlock(bm.aead, blockKey, ciphertext)
		if err != nil {
			return nil, fmt.Errorf("%w: block %x: %v", ErrDecryptionFailed, entry.BlockID[:8], err)
		}
		usedLength, payload, err := DecodeBlockPlaintext(pt)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
		buf := make([]byte, entry.InnerLength)
		copy(buf, payload)
		return &decryptedBlock{entry: entry, buffer: buf, usedLength: usedLength}, nil
	})
	if err != nil {
		return nil, err
	}
	block := v.(*decryptedBlock)
	bm.cache[entry.BlockID] = block
	return block, nil
}

// allocateNewBlock is the only place padding is generated for data
// blocks: a random block_id, a rejection-sampled capacity, Pareto
// padding in front, then an encrypted all-zero-used-length block.
func (bm *BlockManager) allocateNewBlock(requiredPayload uint64) (AllocationEntry, error) {
	var blockID [32]byte
	if err := crypto.FillBuffer(bm.rng, blockID[:]); err != nil {
		return AllocationEntry{}, fmt.Errorf("%w: sampling block id: %v", ErrIO, err)
	}

	minCapacityNeeded := bm.config.BlockCapacityMin
	if want := requiredPayload + BlockHeaderSize; want > minCapacityNeeded {
		minCapacityNeeded = want
	}
	capacity, err := SampleBlockCapacity(bm.rng, bm.config.BlockCapacityMin, bm.config.BlockCapacityMax, bm.config.BlockCapacityMu, bm.config.BlockCapacitySigma, minCapacityNeeded)
	if err != nil {
		return AllocationEntry{}, err
	}
	payloadCapacity := capacity - BlockHeaderSize

	padding, err := SamplePareto(bm.rng, bm.config.ParetoMin, bm.config.ParetoMax, bm.config.ParetoAlpha)
	if err != nil {
		return AllocationEntry{}, err
	}
	curSize, err := bm.fs.Size(FileData)
	if err != nil {
		return AllocationEntry{}, fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := bm.writeRandomPadding(curSize, padding); err != nil {
		return AllocationEntry{}, err
	}
	blockAddress := curSize + padding

	payload := make([]byte, payloadCapacity)
	if err := crypto.FillBuffer(bm.rng, payload); err != nil {
		return AllocationEntry{}, fmt.Errorf("%w: %v", ErrIO, err)
	}
	pt := EncodeBlockPlaintext(0, payload)
	blockKey := bm.sessionKeys.BlockKey(blockID[:])
	ct := EncryptBlock(bm.aead, blockKey, pt)
	crypto.Zero(blockKey)

	if err := bm.fs.WriteBytes(FileData, blockAddress, ct); err != nil {
		return AllocationEntry{}, fmt.Errorf("%w: %v", ErrIO, err)
	}

	entry := AllocationEntry{
		InnerDataOffset: bm.nextInnerOffset(),
		InnerLength:     uint32(payloadCapacity),
		Address:         blockAddress,
		OuterLength:     uint32(len(ct)),
		BlockID:         blockID,
	}
	bm.table.AddEntry(entry)
	bm.allocationTableDirty = true

	clean := make([]byte, payloadCapacity)
	copy(clean, payload)
	bm.cache[blockID] = &decryptedBlock{entry: entry, buffer: clean, usedLength: 0}

	if bm.log != nil {
		bm.log.Debug("dbs: allocated block", logger.Int("capacity", int(capacity)), logger.Int("padding", int(padding)))
	}
	return entry, nil
}

// nextInnerOffset is the logical offset immediately after every
// currently allocated block's range, used to place a freshly allocated
// block right after the stream's current logical extent.
func (bm *BlockManager) nextInnerOffset() uint64 {
	return bm.table.NextLogicalOffset()
}

// writeRootBlock re-encrypts the allocation table. If the new ciphertext
// fits within the old outer_length, it is overwritten in place;
// otherwise it is appended with fresh Pareto padding and root_address /
// root_outer_length are updated.
func (bm *BlockManager) writeRootBlock() error {
	ciphertext := EncryptRoot(bm.aead, bm.sessionKeys.SessionAEADKey(), bm.table.ToBytes())
	if bm.rootOuterLength == 0 || uint32(len(ciphertext)) > bm.rootOuterLength {
		padding, err := SamplePareto(bm.rng, bm.config.ParetoMin, bm.config.ParetoMax, bm.config.ParetoAlpha)
		if err != nil {
			return err
		}
		curSize, err := bm.fs.Size(FileData)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
		if err := bm.writeRandomPadding(curSize, padding); err != nil {
			return err
		}
		newAddress := curSize + padding
		if err := bm.fs.WriteBytes(FileData, newAddress, ciphertext); err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
		bm.rootAddress = newAddress
	} else {
		if err := bm.fs.WriteBytes(FileData, bm.rootAddress, ciphertext); err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
	}
	bm.rootOuterLength = uint32(len(ciphertext))
	return nil
}

// writeRandomPadding streams padding bytes of random data to disk in
// fixed-size chunks so no single allocation has to hold hundreds of
// megabytes in memory.
func (bm *BlockManager) writeRandomPadding(curSize, padding uint64) error {
	remaining := padding
	offset := curSize
	for remaining > 0 {
		chunk := PaddingChunkSize
		if uint64(chunk) > remaining {
			chunk = int(remaining)
		}
		buf := make([]byte, chunk)
		if err := crypto.FillBuffer(bm.rng, buf); err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
		if err := bm.fs.WriteBytes(FileData, offset, buf); err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
		offset += uint64(chunk)
		remaining -= uint64(chunk)
	}
	return nil
}
