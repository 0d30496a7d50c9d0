package dbs

import (
	"encoding/binary"
	"fmt"

	"github.com/agraphon-io/vault/crypto"
)

// passwordSalt and kdfSalt are fixed domain-separation constants for the
// password stretch and the session-key extract step, matching the
// original storage engine's constants bit-for-bit so slot indices and
// keys derived from the same password are stable across implementations.
var (
	passwordSalt = []byte("gossip-storage-password-v1")
	kdfSalt      = []byte("gossip-storage-kdf-v1")
)

// SessionKeys holds everything derived from one password: the session
// extract-step PRK (used to derive per-position slot index/key pairs and
// the session AEAD key) and the session AEAD key itself (used for the
// root block and as input to block-key derivation). A single Argon2id
// call and a single HKDF-Extract produce the PRK; every downstream value
// is a cheap HKDF-Expand.
type SessionKeys struct {
	prk            []byte
	sessionAEADKey []byte

	passwordKDF crypto.PasswordKDF
	kdf         crypto.KDF
}

// DeriveSessionKeys derives all key material for password in one
// Argon2id call plus one HKDF-Extract.
func DeriveSessionKeys(passwordKDF crypto.PasswordKDF, kdf crypto.KDF, password []byte) *SessionKeys {
	master := passwordKDF.Derive(password, passwordSalt)
	defer crypto.Zero(master)

	prk := kdf.Extract(kdfSalt, master)
	sessionAEADKey := kdf.Expand(prk, []byte("aead"), crypto.AEADKeySize)

	return &SessionKeys{
		prk:            prk,
		sessionAEADKey: sessionAEADKey,
		passwordKDF:    passwordKDF,
		kdf:            kdf,
	}
}

// SlotIndex returns the addressing-blob slot position for session
// position i (0..45), derived as a little-endian u16 from label
// "slot-{i}".
func (k *SessionKeys) SlotIndex(i int) uint16 {
	label := []byte(fmt.Sprintf("slot-%d", i))
	raw := k.kdf.Expand(k.prk, label, 2)
	return binary.LittleEndian.Uint16(raw)
}

// SlotKey returns the 64-byte AEAD key for session position i, derived
// from label "addr-key-{i}".
func (k *SessionKeys) SlotKey(i int) []byte {
	label := []byte(fmt.Sprintf("addr-key-%d", i))
	return k.kdf.Expand(k.prk, label, crypto.AEADKeySize)
}

// SessionAEADKey returns the 64-byte key used to encrypt/decrypt the
// root block directly (no block_id).
func (k *SessionKeys) SessionAEADKey() []byte {
	return k.sessionAEADKey
}

// BlockKey derives the unique per-block AEAD key from the session AEAD
// key and a 32-byte block_id, making a constant zero nonce safe for
// every block.
func (k *SessionKeys) BlockKey(blockID []byte) []byte {
	blockPRK := k.kdf.Extract(nil, k.sessionAEADKey)
	defer crypto.Zero(blockPRK)
	return k.kdf.Expand(blockPRK, blockID, crypto.AEADKeySize)
}

// Zeroize wipes all derived key material. Callers must not use the
// SessionKeys after calling this.
func (k *SessionKeys) Zeroize() {
	crypto.Zero(k.prk)
	crypto.Zero(k.sessionAEADKey)
}

// SlotContent is the 16-byte plaintext an addressing slot encrypts:
// an 8-byte big-endian address, a 4-byte big-endian length, and 4 zero
// bytes of padding.
type SlotContent struct {
	Address uint64
	Length  uint32
}

// Encode serializes the slot content to its 16-byte plaintext form.
func (s SlotContent) Encode() []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[0:8], s.Address)
	binary.BigEndian.PutUint32(buf[8:12], s.Length)
	return buf
}

// DecodeSlotContent parses a 16-byte slot plaintext.
func DecodeSlotContent(buf []byte) (SlotContent, error) {
	if len(buf) != 16 {
		return SlotContent{}, fmt.Errorf("dbs: invalid slot plaintext length %d", len(buf))
	}
	return SlotContent{
		Address: binary.BigEndian.Uint64(buf[0:8]),
		Length:  binary.BigEndian.Uint32(buf[8:12]),
	}, nil
}

// EncryptSlot encrypts a SlotContent under slotKey, producing the 32-byte
// opaque slot ciphertext (16-byte tag + 16-byte ciphertext).
func EncryptSlot(aead crypto.AEAD, slotKey []byte, content SlotContent) []byte {
	return aead.Seal(slotKey, crypto.ZeroNonce, content.Encode(), nil)
}

// DecryptSlot attempts to decrypt a 32-byte slot ciphertext under
// slotKey.
func DecryptSlot(aead crypto.AEAD, slotKey []byte, ciphertext []byte) (SlotContent, error) {
	pt, err := aead.Open(slotKey, crypto.ZeroNonce, ciphertext, nil)
	if err != nil {
		return SlotContent{}, err
	}
	return DecodeSlotContent(pt)
}

// EncodeBlockPlaintext serializes a block's plaintext: a 4-byte
// big-endian used_length followed by the full-capacity buffer (the
// region beyond used_length is caller-supplied padding).
func EncodeBlockPlaintext(usedLength uint32, buffer []byte) []byte {
	out := make([]byte, 4+len(buffer))
	binary.BigEndian.PutUint32(out[0:4], usedLength)
	copy(out[4:], buffer)
	return out
}

// DecodeBlockPlaintext splits a decrypted block plaintext into its
// used_length and payload buffer.
func DecodeBlockPlaintext(pt []byte) (usedLength uint32, payload []byte, err error) {
	if len(pt) < 4 {
		return 0, nil, fmt.Errorf("dbs: block plaintext too short: %d", len(pt))
	}
	usedLength = binary.BigEndian.Uint32(pt[0:4])
	return usedLength, pt[4:], nil
}

// EncryptBlock encrypts a data block's plaintext under its unique
// block key.
func EncryptBlock(aead crypto.AEAD, blockKey []byte, plaintext []byte) []byte {
	return aead.Seal(blockKey, crypto.ZeroNonce, plaintext, nil)
}

// DecryptBlock decrypts a data block's ciphertext under its block key.
func DecryptBlock(aead crypto.AEAD, blockKey []byte, ciphertext []byte) ([]byte, error) {
	return aead.Open(blockKey, crypto.ZeroNonce, ciphertext, nil)
}

// EncryptRoot encrypts the root block's plaintext under the session AEAD
// key directly (no block_id involved).
func EncryptRoot(aead crypto.AEAD, sessionAEADKey []byte, plaintext []byte) []byte {
	return aead.Seal(sessionAEADKey, crypto.ZeroNonce, plaintext, nil)
}

// DecryptRoot decrypts the root block's ciphertext under the session
// AEAD key.
func DecryptRoot(aead crypto.AEAD, sessionAEADKey []byte, ciphertext []byte) ([]byte, error) {
	return aead.Open(sessionAEADKey, crypto.ZeroNonce, ciphertext, nil)
}
