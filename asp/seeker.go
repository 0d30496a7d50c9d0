package asp

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"

	vaultcrypto "github.com/agraphon-io/vault/crypto"
)

const (
	seekerKDFSalt    = "session.seeker.kdf.salt---------"
	labelSeekerKey   = "session.seeker.key"
	seekerTotalBytes = 1 + 32 + 1 // len_byte, sha256(pubkey), trailer
)

// deriveInitialSeekerKeypair derives one direction's birth seeker
// signing keypair from the pair of handshake seeds, firstSeed's owner
// going first in the KDF input. Both ends of a session compute the same
// four values (self/peer swapped) without further exchange; every
// keypair after this one is only ever exchanged, never re-derived.
func deriveInitialSeekerKeypair(kdf vaultcrypto.KDF, firstSeed, secondSeed [32]byte) (ed25519.PublicKey, ed25519.PrivateKey) {
	ikm := make([]byte, 0, 64)
	ikm = append(ikm, firstSeed[:]...)
	ikm = append(ikm, secondSeed[:]...)
	prk := kdf.Extract([]byte(seekerKDFSalt), ikm)
	defer vaultcrypto.Zero(prk)

	seed := kdf.Expand(prk, []byte(labelSeekerKey), 32)
	defer vaultcrypto.Zero(seed)
	sk := ed25519.NewKeyFromSeed(seed)
	return sk.Public().(ed25519.PublicKey), sk
}

// computeSeeker derives the public board address for a signing public
// key: len_byte ‖ sha256(pubkey) ‖ 0x01.
func computeSeeker(pub ed25519.PublicKey) []byte {
	sum := sha256.Sum256(pub)
	out := make([]byte, 0, seekerTotalBytes)
	out = append(out, byte(seekerTotalBytes))
	out = append(out, sum[:]...)
	out = append(out, 0x01)
	return out
}

// SeekerKeys manages one session's seeker transport layer: the signing
// keypair our next outgoing message posts under, and the public key we
// expect the peer's next incoming message to be signed with. Unlike the
// Agraphon ratchet, neither side derives the other's next keypair: the
// sender samples a fresh keypair per message and carries its public
// half inside the Agraphon-encrypted message record, and the receiver
// only learns it once that record decrypts successfully.
type SeekerKeys struct {
	selfPub  ed25519.PublicKey
	selfPriv ed25519.PrivateKey
	peerPub  ed25519.PublicKey
}

// NewSeekerKeys derives the birth self/peer seeker keypairs from the two
// seeds exchanged during the announcement handshake.
func NewSeekerKeys(kdf vaultcrypto.KDF, ourSeed, peerSeed [32]byte) *SeekerKeys {
	selfPub, selfPriv := deriveInitialSeekerKeypair(kdf, ourSeed, peerSeed)
	peerPub, _ := deriveInitialSeekerKeypair(kdf, peerSeed, ourSeed)
	return &SeekerKeys{selfPub: selfPub, selfPriv: selfPriv, peerPub: peerPub}
}

// CurrentSelfSeeker returns the board address our next outgoing
// message will be posted under.
func (k *SeekerKeys) CurrentSelfSeeker() []byte { return computeSeeker(k.selfPub) }

// CurrentPeerSeeker returns the board address we expect the peer's next
// message to appear under.
func (k *SeekerKeys) CurrentPeerSeeker() []byte { return computeSeeker(k.peerPub) }

// WrapOutgoing signs ciphertext with the current self seeker keypair
// and frames it for posting: len_pk ‖ pk ‖ len_sig ‖ sig ‖ ciphertext.
// The signature covers len(seeker) ‖ seeker ‖ ciphertext, binding the
// post to the board address it is published under. nextPub/nextPriv is
// the fresh keypair the caller has already embedded in ciphertext's
// plaintext record; WrapOutgoing adopts it as the self keypair for the
// message after this one.
func (k *SeekerKeys) WrapOutgoing(ciphertext []byte, nextPub ed25519.PublicKey, nextPriv ed25519.PrivateKey) []byte {
	seeker := computeSeeker(k.selfPub)

	signedMessage := make([]byte, 0, 1+len(seeker)+len(ciphertext))
	signedMessage = append(signedMessage, byte(len(seeker)))
	signedMessage = append(signedMessage, seeker...)
	signedMessage = append(signedMessage, ciphertext...)
	sig := ed25519.Sign(k.selfPriv, signedMessage)

	out := make([]byte, 0, 1+len(k.selfPub)+1+len(sig)+len(ciphertext))
	out = append(out, byte(len(k.selfPub)))
	out = append(out, k.selfPub...)
	out = append(out, byte(len(sig)))
	out = append(out, sig...)
	out = append(out, ciphertext...)

	k.selfPub = nextPub
	k.selfPriv = nextPriv
	return out
}

// AdvancePeer replaces the keypair we expect the peer's next message to
// be signed with. Called only after the current message's Agraphon
// ciphertext has decrypted and its embedded next_seeker_keypair has
// been recovered — the peer seeker is never re-derived independently.
func (k *SeekerKeys) AdvancePeer(nextPub ed25519.PublicKey) {
	k.peerPub = nextPub
}

// seekerKeysSnapshot is the gob-serializable form of SeekerKeys.
type seekerKeysSnapshot struct {
	SelfPub  []byte
	SelfPriv []byte
	PeerPub  []byte
}

func (k *SeekerKeys) snapshot() seekerKeysSnapshot {
	return seekerKeysSnapshot{
		SelfPub:  append([]byte(nil), k.selfPub...),
		SelfPriv: append([]byte(nil), k.selfPriv...),
		PeerPub:  append([]byte(nil), k.peerPub...),
	}
}

func newSeekerKeysFromSnapshot(snap seekerKeysSnapshot) *SeekerKeys {
	return &SeekerKeys{
		selfPub:  ed25519.PublicKey(append([]byte(nil), snap.SelfPub...)),
		selfPriv: ed25519.PrivateKey(append([]byte(nil), snap.SelfPriv...)),
		peerPub:  ed25519.PublicKey(append([]byte(nil), snap.PeerPub...)),
	}
}

// UnwrapIncoming verifies a board post against the expected current
// peer seeker keypair and, on success, returns the enclosed ciphertext.
// It does not itself advance the peer seeker: that only happens once
// the ciphertext decrypts and its embedded next_seeker_keypair is known
// (see SeekerKeys.AdvancePeer).
func (k *SeekerKeys) UnwrapIncoming(wire []byte) ([]byte, error) {
	if len(wire) < 2 {
		return nil, fmt.Errorf("asp: seeker message too short")
	}
	pkLen := int(wire[0])
	if len(wire) < 1+pkLen+1 {
		return nil, fmt.Errorf("asp: seeker message too short")
	}
	pub := ed25519.PublicKey(wire[1 : 1+pkLen])
	rest := wire[1+pkLen:]

	sigLen := int(rest[0])
	if len(rest) < 1+sigLen {
		return nil, fmt.Errorf("asp: seeker message too short")
	}
	sig := rest[1 : 1+sigLen]
	ciphertext := rest[1+sigLen:]

	if !bytes.Equal(pub, k.peerPub) {
		return nil, fmt.Errorf("asp: seeker message signed by unexpected key")
	}

	seeker := computeSeeker(pub)
	signedMessage := make([]byte, 0, 1+len(seeker)+len(ciphertext))
	signedMessage = append(signedMessage, byte(len(seeker)))
	signedMessage = append(signedMessage, seeker...)
	signedMessage = append(signedMessage, ciphertext...)
	if !ed25519.Verify(pub, signedMessage, sig) {
		return nil, fmt.Errorf("asp: seeker message signature invalid")
	}

	return ciphertext, nil
}
