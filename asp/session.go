package asp

import (
	"crypto/ed25519"
	"fmt"
	"time"

	vaultcrypto "github.com/agraphon-io/vault/crypto"
)

// Session combines an Agraphon ratchet with the seeker addressing
// layer: everything needed to post and read one peer's messages on a
// shared board.
type Session struct {
	agraphon       *Agraphon
	seekerKeys     *SeekerKeys
	peerPublicKeys UserPublicKeys
	rng            vaultcrypto.RNG
}

// NewSessionFromAnnouncementPair builds a session from a finalized
// outgoing announcement and a verified incoming announcement, deriving
// both the Agraphon ratchet state and the seeker chains from them.
func NewSessionFromAnnouncementPair(
	aead vaultcrypto.AEAD,
	kdf vaultcrypto.KDF,
	kem vaultcrypto.KEM,
	rng vaultcrypto.RNG,
	peerPublicKeys UserPublicKeys,
	selfOutgoing *OutgoingAnnouncement,
	peerIncoming *IncomingAnnouncement,
) *Session {
	return &Session{
		agraphon:       NewAgraphonFromAnnouncementPair(aead, kdf, kem, rng, selfOutgoing, peerIncoming),
		seekerKeys:     NewSeekerKeys(kdf, selfOutgoing.SeekerSeed, peerIncoming.SeekerSeed),
		peerPublicKeys: peerPublicKeys,
		rng:            rng,
	}
}

// sessionSnapshot is the gob-serializable form of Session, used by
// SessionManager.ToEncryptedBlob/FromEncryptedBlob.
type sessionSnapshot struct {
	Agraphon      agraphonSnapshot
	SeekerKeys    seekerKeysSnapshot
	PeerVerifyKey []byte
	PeerKEMPublic []byte
}

func (s *Session) snapshot() sessionSnapshot {
	return sessionSnapshot{
		Agraphon:      s.agraphon.snapshot(),
		SeekerKeys:    s.seekerKeys.snapshot(),
		PeerVerifyKey: append([]byte(nil), s.peerPublicKeys.VerifyKey...),
		PeerKEMPublic: s.peerPublicKeys.KEMPublicKey.Bytes(),
	}
}

func newSessionFromSnapshot(aead vaultcrypto.AEAD, kdf vaultcrypto.KDF, kem vaultcrypto.KEM, rng vaultcrypto.RNG, snap sessionSnapshot) (*Session, error) {
	agraphon, err := newAgraphonFromSnapshot(aead, kdf, kem, rng, snap.Agraphon)
	if err != nil {
		return nil, err
	}
	peerKEMPublic, err := kem.ParsePublicKey(snap.PeerKEMPublic)
	if err != nil {
		return nil, fmt.Errorf("asp: restoring peer static kem key: %w", err)
	}
	return &Session{
		agraphon:   agraphon,
		seekerKeys: newSeekerKeysFromSnapshot(snap.SeekerKeys),
		peerPublicKeys: UserPublicKeys{
			VerifyKey:    append([]byte(nil), snap.PeerVerifyKey...),
			KEMPublicKey: peerKEMPublic,
		},
		rng: rng,
	}, nil
}

// LagLength returns the number of our sent messages the peer has not
// yet acknowledged.
func (s *Session) LagLength() uint64 { return s.agraphon.LagLength() }

// CurrentSelfSeeker returns the board address our next message will be
// posted under.
func (s *Session) CurrentSelfSeeker() []byte { return s.seekerKeys.CurrentSelfSeeker() }

// CurrentPeerSeeker returns the board address we should next read from
// for this peer.
func (s *Session) CurrentPeerSeeker() []byte { return s.seekerKeys.CurrentPeerSeeker() }

// MessageResult is the authenticated content of one incoming board
// message: the sender's plaintext, the timestamp they attached to it,
// and which of our own sent messages this read acknowledged.
type MessageResult struct {
	Payload      []byte
	TimestampMs  int64
	AckedSeekers [][]byte
}

// SendMessage encrypts payload for the peer and returns the bytes to
// post to the board under CurrentSelfSeeker (as of the call, before it
// ratchets forward). Per the seeker transport layer, the Agraphon
// plaintext is not payload itself but a record wrapping it with the
// send timestamp and a freshly sampled seeker keypair for our next
// message; the peer recovers both once the record decrypts.
func (s *Session) SendMessage(payload []byte) ([]byte, error) {
	nextPub, nextPriv, err := ed25519.GenerateKey(s.rng)
	if err != nil {
		return nil, fmt.Errorf("asp: sampling next seeker keypair: %w", err)
	}

	record := &messageRecord{
		TimestampMs:   time.Now().UnixMilli(),
		NextSeekerPub: nextPub,
		Contents:      payload,
	}
	plaintext := encodeMessageRecord(record)

	seeker := s.seekerKeys.CurrentSelfSeeker()
	ciphertext, err := s.agraphon.SendOutgoingMessage(seeker, plaintext, s.peerPublicKeys.KEMPublicKey)
	if err != nil {
		return nil, fmt.Errorf("asp: sending message: %w", err)
	}
	return s.seekerKeys.WrapOutgoing(ciphertext, nextPub, nextPriv), nil
}

// FeedIncomingMessage verifies and decrypts a board post read from
// CurrentPeerSeeker, resolving its parent against our sent-message
// history, then unpacks the decrypted message record and ratchets the
// peer seeker forward to the key it carried.
func (s *Session) FeedIncomingMessage(selfStaticSK vaultcrypto.KEMPrivateKey, wire []byte) (*MessageResult, error) {
	ciphertext, err := s.seekerKeys.UnwrapIncoming(wire)
	if err != nil {
		return nil, fmt.Errorf("asp: unwrapping board post: %w", err)
	}

	feedResult, err := s.agraphon.TryFeedIncomingMessage(selfStaticSK, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("asp: feeding board post: %w", err)
	}

	record, err := decodeMessageRecord(feedResult.Payload)
	if err != nil {
		return nil, fmt.Errorf("asp: decoding message record: %w", err)
	}

	s.seekerKeys.AdvancePeer(record.NextSeekerPub)

	return &MessageResult{
		Payload:      record.Contents,
		TimestampMs:  record.TimestampMs,
		AckedSeekers: feedResult.AckedSeekers,
	}, nil
}
