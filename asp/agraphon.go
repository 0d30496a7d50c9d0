package asp

import (
	"container/list"
	"fmt"

	vaultcrypto "github.com/agraphon-io/vault/crypto"
)

// rootKeys is the output of the per-message root KDF: a fresh AEAD
// key/nonce pair for this message's ciphertext and the chain key that
// becomes the sender's next k_next.
type rootKeys struct {
	cipherKey   []byte
	cipherNonce []byte
	nextChain   [32]byte
}

// zeroize wipes the derived AEAD key; the chain key is handed off to the
// caller and zeroized by whichever HistoryItem ends up owning it.
func (r *rootKeys) zeroize() {
	vaultcrypto.Zero(r.cipherKey)
	vaultcrypto.Zero(r.cipherNonce)
}

// deriveRootKeys computes root = KDF(msg_randomness ‖ self.k_next ‖
// peer.k_next ‖ msg_ct ‖ msg_ss ‖ msg_ct_static ‖ msg_ss_static), binding
// the message both to the ratchet state and, via the static
// encapsulation, to the peer's long-term identity.
func deriveRootKeys(kdf vaultcrypto.KDF, msgRandomness []byte, selfKNext, peerKNext [32]byte, msgCt, msgSs, msgCtStatic, msgSsStatic []byte) rootKeys {
	ikm := make([]byte, 0, len(msgRandomness)+64+len(msgCt)+len(msgSs)+len(msgCtStatic)+len(msgSsStatic))
	ikm = append(ikm, msgRandomness...)
	ikm = append(ikm, selfKNext[:]...)
	ikm = append(ikm, peerKNext[:]...)
	ikm = append(ikm, msgCt...)
	ikm = append(ikm, msgSs...)
	ikm = append(ikm, msgCtStatic...)
	ikm = append(ikm, msgSsStatic...)

	prk := kdf.Extract(nil, ikm)
	defer vaultcrypto.Zero(prk)

	var rk rootKeys
	rk.cipherKey = kdf.Expand(prk, []byte("agraphon.cipher_key"), vaultcrypto.AEADKeySize)
	rk.cipherNonce = kdf.Expand(prk, []byte("agraphon.cipher_nonce"), vaultcrypto.AEADNonceSize)
	copy(rk.nextChain[:], kdf.Expand(prk, []byte("agraphon.next_chain_key"), 32))
	return rk
}

// Agraphon is the per-pair double-ratchet-style state machine: a deque
// of our recently sent messages (so we can resolve which one a reply
// targets) and the peer's single most recent message state.
type Agraphon struct {
	aead vaultcrypto.AEAD
	kdf  vaultcrypto.KDF
	kem  vaultcrypto.KEM
	rng  vaultcrypto.RNG

	selfMsgHistory *list.List // of *HistoryItemSelf, oldest at Front
	latestPeerMsg  HistoryItemPeer
}

// NewAgraphonFromAnnouncementPair builds a session by joining our
// finalized outgoing announcement with the peer's incoming announcement,
// seeding history at height 1.
func NewAgraphonFromAnnouncementPair(aead vaultcrypto.AEAD, kdf vaultcrypto.KDF, kem vaultcrypto.KEM, rng vaultcrypto.RNG, selfOutgoing *OutgoingAnnouncement, peerIncoming *IncomingAnnouncement) *Agraphon {
	history := list.New()
	history.PushBack(&HistoryItemSelf{
		Height: 1,
		SkNext: selfOutgoing.SkNext,
		KNext:  selfOutgoing.KNext,
		Seeker: nil,
	})

	return &Agraphon{
		aead: aead,
		kdf:  kdf,
		kem:  kem,
		rng:  rng,

		selfMsgHistory: history,
		latestPeerMsg: HistoryItemPeer{
			OurParentHeight: 0,
			PkNext:          peerIncoming.PkNext,
			KNext:           peerIncoming.KNext,
		},
	}
}

// agraphonSnapshot is the gob-serializable form of Agraphon's ratchet
// state, used by Session/SessionManager persistence.
type agraphonSnapshot struct {
	SelfHistory   []historyItemSelfSnapshot
	LatestPeerMsg historyItemPeerSnapshot
}

type historyItemSelfSnapshot struct {
	Height uint64
	SkNext []byte
	KNext  [32]byte
	Seeker []byte
}

type historyItemPeerSnapshot struct {
	OurParentHeight uint64
	PkNext          []byte
	KNext           [32]byte
}

// snapshot captures the ratchet state for serialization.
func (a *Agraphon) snapshot() agraphonSnapshot {
	snap := agraphonSnapshot{
		LatestPeerMsg: historyItemPeerSnapshot{
			OurParentHeight: a.latestPeerMsg.OurParentHeight,
			PkNext:          a.latestPeerMsg.PkNext.Bytes(),
			KNext:           a.latestPeerMsg.KNext,
		},
	}
	for e := a.selfMsgHistory.Front(); e != nil; e = e.Next() {
		item := e.Value.(*HistoryItemSelf)
		snap.SelfHistory = append(snap.SelfHistory, historyItemSelfSnapshot{
			Height: item.Height,
			SkNext: item.SkNext.Bytes(),
			KNext:  item.KNext,
			Seeker: append([]byte(nil), item.Seeker...),
		})
	}
	return snap
}

// newAgraphonFromSnapshot reconstructs an Agraphon from a previously
// captured snapshot.
func newAgraphonFromSnapshot(aead vaultcrypto.AEAD, kdf vaultcrypto.KDF, kem vaultcrypto.KEM, rng vaultcrypto.RNG, snap agraphonSnapshot) (*Agraphon, error) {
	history := list.New()
	for _, item := range snap.SelfHistory {
		skNext, err := kem.ParsePrivateKey(item.SkNext)
		if err != nil {
			return nil, fmt.Errorf("asp: restoring self history entry: %w", err)
		}
		history.PushBack(&HistoryItemSelf{
			Height: item.Height,
			SkNext: skNext,
			KNext:  item.KNext,
			Seeker: append([]byte(nil), item.Seeker...),
		})
	}
	pkNext, err := kem.ParsePublicKey(snap.LatestPeerMsg.PkNext)
	if err != nil {
		return nil, fmt.Errorf("asp: restoring peer ratchet key: %w", err)
	}
	return &Agraphon{
		aead: aead,
		kdf:  kdf,
		kem:  kem,
		rng:  rng,

		selfMsgHistory: history,
		latestPeerMsg: HistoryItemPeer{
			OurParentHeight: snap.LatestPeerMsg.OurParentHeight,
			PkNext:          pkNext,
			KNext:           snap.LatestPeerMsg.KNext,
		},
	}, nil
}

func (a *Agraphon) back() *HistoryItemSelf {
	return a.selfMsgHistory.Back().Value.(*HistoryItemSelf)
}

// LagLength returns the number of our sent messages the peer has not
// yet acknowledged.
func (a *Agraphon) LagLength() uint64 {
	return a.back().Height - a.latestPeerMsg.OurParentHeight
}

// SendOutgoingMessage encrypts payload for the peer, generates a fresh
// ephemeral KEM keypair for forward secrecy, and returns the wire bytes:
// msg_randomness (32) ‖ msg_ct ‖ msg_ct_static ‖ ciphertext.
func (a *Agraphon) SendOutgoingMessage(seeker, payload []byte, peerStaticPK vaultcrypto.KEMPublicKey) ([]byte, error) {
	pSelf := a.back()
	pPeer := a.latestPeerMsg

	msgRandomness := make([]byte, 32)
	if err := vaultcrypto.FillBuffer(a.rng, msgRandomness); err != nil {
		return nil, fmt.Errorf("asp: sampling message randomness: %w", err)
	}

	msgCt, msgSs, err := a.kem.Encapsulate(a.rng, pPeer.PkNext)
	if err != nil {
		return nil, fmt.Errorf("asp: encapsulating to peer ratchet key: %w", err)
	}
	msgCtStatic, msgSsStatic, err := a.kem.Encapsulate(a.rng, peerStaticPK)
	if err != nil {
		return nil, fmt.Errorf("asp: encapsulating to peer static key: %w", err)
	}

	rk := deriveRootKeys(a.kdf, msgRandomness, pSelf.KNext, pPeer.KNext, msgCt, msgSs, msgCtStatic, msgSsStatic)
	defer rk.zeroize()

	pkNext, skNext, err := a.kem.GenerateKeyPair(a.rng)
	if err != nil {
		return nil, fmt.Errorf("asp: generating next ratchet keypair: %w", err)
	}

	plaintext := make([]byte, 0, len(pkNext.Bytes())+len(payload))
	plaintext = append(plaintext, pkNext.Bytes()...)
	plaintext = append(plaintext, payload...)

	ciphertext := a.aead.Seal(rk.cipherKey, rk.cipherNonce, plaintext, nil)

	a.selfMsgHistory.PushBack(&HistoryItemSelf{
		Height: pSelf.Height + 1,
		SkNext: skNext,
		KNext:  rk.nextChain,
		Seeker: append([]byte(nil), seeker...),
	})

	out := make([]byte, 0, 32+len(msgCt)+len(msgCtStatic)+len(ciphertext))
	out = append(out, msgRandomness...)
	out = append(out, msgCt...)
	out = append(out, msgCtStatic...)
	out = append(out, ciphertext...)
	return out, nil
}

// FeedResult is the outcome of a successful TryFeedIncomingMessage:
// the decrypted payload and the seekers of every self-sent message this
// feed acknowledged, which the caller may now release.
type FeedResult struct {
	Payload      []byte
	AckedSeekers [][]byte
}

// TryFeedIncomingMessage scans self_msg_history from newest to oldest,
// trying each as the message's parent, until one successfully decrypts
// the message. This resolves out-of-order replies without the sender
// needing to name its parent explicitly.
func (a *Agraphon) TryFeedIncomingMessage(selfStaticSK vaultcrypto.KEMPrivateKey, message []byte) (*FeedResult, error) {
	ctSize := a.kem.CiphertextSize()
	if len(message) < 32+2*ctSize {
		return nil, fmt.Errorf("asp: message too short")
	}
	msgRandomness := message[:32]
	msgCt := message[32 : 32+ctSize]
	msgCtStatic := message[32+ctSize : 32+2*ctSize]
	ciphertext := message[32+2*ctSize:]

	for e := a.selfMsgHistory.Back(); e != nil; e = e.Prev() {
		pSelf := e.Value.(*HistoryItemSelf)
		result, ok := a.tryWithSelfParent(pSelf, selfStaticSK, msgRandomness, msgCt, msgCtStatic, ciphertext)
		if ok {
			return result, nil
		}
	}
	return nil, fmt.Errorf("asp: no parent in history decrypts this message")
}

func (a *Agraphon) tryWithSelfParent(pSelf *HistoryItemSelf, selfStaticSK vaultcrypto.KEMPrivateKey, msgRandomness, msgCt, msgCtStatic, ciphertext []byte) (*FeedResult, bool) {
	pPeer := a.latestPeerMsg
	peerMsgSeeker := append([]byte(nil), pSelf.Seeker...)

	msgSs, err := a.kem.Decapsulate(pSelf.SkNext, msgCt)
	if err != nil {
		return nil, false
	}
	msgSsStatic, err := a.kem.Decapsulate(selfStaticSK, msgCtStatic)
	if err != nil {
		return nil, false
	}

	rk := deriveRootKeys(a.kdf, msgRandomness, pPeer.KNext, pSelf.KNext, msgCt, msgSs, msgCtStatic, msgSsStatic)
	defer rk.zeroize()

	plaintext, err := a.aead.Open(rk.cipherKey, rk.cipherNonce, ciphertext, nil)
	if err != nil {
		return nil, false
	}

	pkSize := a.kem.PublicKeySize()
	if len(plaintext) < pkSize {
		return nil, false
	}
	pkNext, err := a.kem.ParsePublicKey(plaintext[:pkSize])
	if err != nil {
		return nil, false
	}
	payload := append([]byte(nil), plaintext[pkSize:]...)

	ourParentHeight := pSelf.Height
	a.latestPeerMsg = HistoryItemPeer{
		OurParentHeight: ourParentHeight,
		PkNext:          pkNext,
		KNext:           rk.nextChain,
	}

	var acked [][]byte
	for front := a.selfMsgHistory.Front(); front != nil; front = a.selfMsgHistory.Front() {
		item := front.Value.(*HistoryItemSelf)
		if item.Height >= ourParentHeight {
			break
		}
		acked = append(acked, item.Seeker)
		zeroizeHistoryItemSelf(item)
		a.selfMsgHistory.Remove(front)
	}
	acked = append(acked, peerMsgSeeker)

	return &FeedResult{Payload: payload, AckedSeekers: acked}, true
}
