package asp

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	vaultcrypto "github.com/agraphon-io/vault/crypto"
	"github.com/agraphon-io/vault/internal/logger"
)

// SessionManagerConfig bounds how long announcements and messages stay
// valid and how aggressively idle sessions are kept alive or expired.
// All durations are milliseconds, matching the wire-level timestamps
// they are compared against.
type SessionManagerConfig struct {
	MaxIncomingAnnouncementAgeMs    int64
	MaxIncomingAnnouncementFutureMs int64
	MaxIncomingMessageAgeMs         int64
	MaxIncomingMessageFutureMs      int64
	MaxSessionInactivityMs          int64
	KeepAliveIntervalMs             int64
	MaxSessionLagLength             uint64
}

// DefaultSessionManagerConfig returns the production week-scale
// defaults.
func DefaultSessionManagerConfig() SessionManagerConfig {
	return SessionManagerConfig{
		MaxIncomingAnnouncementAgeMs:    604_800_000,
		MaxIncomingAnnouncementFutureMs: 60_000,
		MaxIncomingMessageAgeMs:         604_800_000,
		MaxIncomingMessageFutureMs:      60_000,
		MaxSessionInactivityMs:          604_800_000,
		KeepAliveIntervalMs:             86_400_000,
		MaxSessionLagLength:             10_000,
	}
}

// SessionStatus summarizes where a peer sits in the handshake/session
// lifecycle.
type SessionStatus int

const (
	StatusUnknownPeer SessionStatus = iota
	StatusNoSession
	StatusPeerRequested
	StatusSelfRequested
	StatusActive
	StatusSaturated
	StatusKilled
)

func (s SessionStatus) String() string {
	switch s {
	case StatusUnknownPeer:
		return "unknown_peer"
	case StatusNoSession:
		return "no_session"
	case StatusPeerRequested:
		return "peer_requested"
	case StatusSelfRequested:
		return "self_requested"
	case StatusActive:
		return "active"
	case StatusSaturated:
		return "saturated"
	case StatusKilled:
		return "killed"
	default:
		return "unknown"
	}
}

// AnnouncementResult is returned by FeedIncomingAnnouncement: who
// announced, when, and whatever user data they attached.
type AnnouncementResult struct {
	AnnouncerPublicKeys UserPublicKeys
	TimestampMs         int64
	UserData            []byte
}

// IncomingMessageResult is returned by FeedIncomingMessageBoardRead: the
// sender, the decrypted payload, and the seekers of our own messages
// this read acknowledged.
type IncomingMessageResult struct {
	PeerID       UserID
	Payload      []byte
	AckedSeekers [][]byte
}

type sessionInfo struct {
	session                      *Session
	lastIncomingMessageTimestamp int64
	lastOutgoingMessageTimestamp int64
}

type peerInfo struct {
	staticPublicKeys   UserPublicKeys
	activeSession      *sessionInfo
	latestIncomingInit *IncomingAnnouncement
	latestOutgoingInit *OutgoingAnnouncement
}

// SessionManager is the top-level multi-peer ASP entry point: it turns
// announcement/message bytes into established Sessions and back,
// tracking per-peer handshake and liveness state.
type SessionManager struct {
	mu     sync.Mutex
	config SessionManagerConfig

	aead vaultcrypto.AEAD
	kdf  vaultcrypto.KDF
	kem  vaultcrypto.KEM
	rng  vaultcrypto.RNG
	log  logger.Logger

	peers map[UserID]*peerInfo
}

// NewSessionManager wires the standard primitive set (ML-KEM-768,
// XChaCha20-Poly1305-SIV, HKDF, system RNG).
func NewSessionManager(config SessionManagerConfig, log logger.Logger) *SessionManager {
	if log == nil {
		log = logger.Default()
	}
	return &SessionManager{
		config: config,
		aead:   vaultcrypto.NewXChaChaSIV(),
		kdf:    vaultcrypto.NewHKDF(),
		kem:    NewMLKEM768(),
		rng:    vaultcrypto.SystemRNG,
		log:    log,
		peers:  make(map[UserID]*peerInfo),
	}
}

func (m *SessionManager) peerOrCreate(id UserID) *peerInfo {
	p, ok := m.peers[id]
	if !ok {
		p = &peerInfo{}
		m.peers[id] = p
	}
	return p
}

// EstablishOutgoingSession builds and returns the announcement bytes to
// publish to the peer's announcement board. If we already hold a valid
// incoming announcement from this peer, the session is established
// immediately.
func (m *SessionManager) EstablishOutgoingSession(peerPublicKeys UserPublicKeys, selfPublicKeys UserPublicKeys, selfSecretKeys UserSecretKeys, userData []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	precursor, err := NewOutgoingAnnouncementPrecursor(m.kem, m.kdf, m.aead, m.rng, peerPublicKeys.KEMPublicKey)
	if err != nil {
		return nil, err
	}
	wireBytes, outgoing, err := precursor.Finalize(selfPublicKeys, selfSecretKeys, userData)
	if err != nil {
		return nil, err
	}

	peerID := peerPublicKeys.UserID()
	p := m.peerOrCreate(peerID)
	p.staticPublicKeys = peerPublicKeys

	if p.latestIncomingInit != nil {
		p.activeSession = &sessionInfo{
			session:                      NewSessionFromAnnouncementPair(m.aead, m.kdf, m.kem, m.rng, peerPublicKeys, outgoing, p.latestIncomingInit),
			lastIncomingMessageTimestamp: p.latestIncomingInit.TimestampMs,
			lastOutgoingMessageTimestamp: outgoing.TimestampMs,
		}
		m.log.Info("asp: session established", logger.String("peer", peerID.String()), logger.String("trigger", "outgoing_announcement"))
	}
	p.latestOutgoingInit = outgoing

	return wireBytes, nil
}

// FeedIncomingAnnouncement verifies and processes an announcement
// received from a peer. If we previously sent an outgoing announcement
// to them, this establishes (or replaces) the active session.
func (m *SessionManager) FeedIncomingAnnouncement(announcementBytes []byte, selfPublicKeys UserPublicKeys, selfSecretKeys UserSecretKeys) (*AnnouncementResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	precursor, err := TryFromIncomingAnnouncementBytes(m.kem, m.kdf, m.aead, announcementBytes, selfSecretKeys.KEMSecretKey)
	if err != nil {
		return nil, ErrInvalidAnnouncement
	}
	originPublicKeys := precursor.OriginPublicKeys()

	incoming, err := precursor.Finalize(originPublicKeys.KEMPublicKey)
	if err != nil {
		return nil, ErrInvalidAnnouncement
	}

	nowMs := time.Now().UnixMilli()
	if incoming.TimestampMs < nowMs-m.config.MaxIncomingAnnouncementAgeMs {
		return nil, ErrInvalidAnnouncement
	}
	if incoming.TimestampMs > nowMs+m.config.MaxIncomingAnnouncementFutureMs {
		return nil, ErrInvalidAnnouncement
	}

	peerID := originPublicKeys.UserID()
	if existing, ok := m.peers[peerID]; ok && existing.latestIncomingInit != nil {
		if incoming.TimestampMs <= existing.latestIncomingInit.TimestampMs {
			return nil, ErrInvalidAnnouncement
		}
	}

	p := m.peerOrCreate(peerID)
	p.staticPublicKeys = originPublicKeys
	if p.latestOutgoingInit != nil {
		p.activeSession = &sessionInfo{
			session:                      NewSessionFromAnnouncementPair(m.aead, m.kdf, m.kem, m.rng, originPublicKeys, p.latestOutgoingInit, incoming),
			lastIncomingMessageTimestamp: incoming.TimestampMs,
			lastOutgoingMessageTimestamp: p.latestOutgoingInit.TimestampMs,
		}
		m.log.Info("asp: session established", logger.String("peer", peerID.String()), logger.String("trigger", "incoming_announcement"))
	}
	p.latestIncomingInit = incoming

	return &AnnouncementResult{
		AnnouncerPublicKeys: originPublicKeys,
		TimestampMs:         incoming.TimestampMs,
		UserData:            precursor.UserData(),
	}, nil
}

// PeerDiscard forgets all state for a peer.
func (m *SessionManager) PeerDiscard(peerID UserID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.peers, peerID)
}

// PeerSessionStatus reports where a peer sits in the handshake/session
// lifecycle.
func (m *SessionManager) PeerSessionStatus(peerID UserID) SessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.peers[peerID]
	if !ok {
		return StatusUnknownPeer
	}
	if p.activeSession != nil {
		if p.activeSession.session.LagLength() >= m.config.MaxSessionLagLength {
			return StatusSaturated
		}
		return StatusActive
	}
	reqPeer := p.latestIncomingInit != nil
	reqSelf := p.latestOutgoingInit != nil
	switch {
	case reqPeer && reqSelf:
		return StatusKilled
	case reqPeer:
		return StatusPeerRequested
	case reqSelf:
		return StatusSelfRequested
	default:
		return StatusNoSession
	}
}

// PeerList returns every peer the manager currently tracks.
func (m *SessionManager) PeerList() []UserID {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]UserID, 0, len(m.peers))
	for id := range m.peers {
		out = append(out, id)
	}
	return out
}

// GetMessageBoardReadKeys returns the seeker each active session
// expects its next incoming message under, for the caller to poll the
// message board with.
func (m *SessionManager) GetMessageBoardReadKeys() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	var seekers [][]byte
	for _, p := range m.peers {
		if p.activeSession != nil {
			seekers = append(seekers, p.activeSession.session.CurrentPeerSeeker())
		}
	}
	return seekers
}

// SendMessage encrypts payload for the named peer's active session, or
// returns ErrNoActiveSession / ErrSessionSaturated.
func (m *SessionManager) SendMessage(peerID UserID, payload []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.peers[peerID]
	if !ok || p.activeSession == nil {
		return nil, ErrNoActiveSession
	}
	if p.activeSession.session.LagLength() >= m.config.MaxSessionLagLength {
		return nil, ErrSessionSaturated
	}
	wireBytes, err := p.activeSession.session.SendMessage(payload)
	if err != nil {
		return nil, err
	}
	p.activeSession.lastOutgoingMessageTimestamp = time.Now().UnixMilli()
	return wireBytes, nil
}

// FeedIncomingMessageBoardRead matches a board read to the peer whose
// active session expects that seeker, decrypts it, and updates
// liveness bookkeeping. A decryption failure kills the session, since a
// corrupted or forged message indicates state desync or tampering.
func (m *SessionManager) FeedIncomingMessageBoardRead(seeker, payload []byte, selfSecretKeys UserSecretKeys) (*IncomingMessageResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var peerID UserID
	var found bool
	for id, p := range m.peers {
		if p.activeSession != nil && bytes.Equal(p.activeSession.session.CurrentPeerSeeker(), seeker) {
			peerID = id
			found = true
			break
		}
	}
	if !found {
		return nil, ErrUnknownPeer
	}

	result, err := m.tryFeedMessage(peerID, payload, selfSecretKeys)
	if err != nil {
		m.peers[peerID].activeSession = nil
		m.log.Info("asp: session dropped", logger.String("peer", peerID.String()), logger.Error(err))
		return nil, err
	}
	return result, nil
}

// tryFeedMessage decrypts payload and enforces message freshness: the
// embedded timestamp must fall within [now-max_age, now+max_future] and
// must not be earlier than the last timestamp already accepted from
// this peer, per the session manager's replay/staleness check. Any
// rejection here happens after the seeker signature and Agraphon
// decryption have already succeeded, so the caller drops the session
// rather than merely discarding the message.
func (m *SessionManager) tryFeedMessage(peerID UserID, payload []byte, selfSecretKeys UserSecretKeys) (*IncomingMessageResult, error) {
	p := m.peers[peerID]
	feedResult, err := p.activeSession.session.FeedIncomingMessage(selfSecretKeys.KEMSecretKey, payload)
	if err != nil {
		return nil, err
	}

	nowMs := time.Now().UnixMilli()
	if feedResult.TimestampMs < nowMs-m.config.MaxIncomingMessageAgeMs ||
		feedResult.TimestampMs > nowMs+m.config.MaxIncomingMessageFutureMs ||
		feedResult.TimestampMs < p.activeSession.lastIncomingMessageTimestamp {
		return nil, ErrMessageTimestampOutOfWindow
	}

	p.activeSession.lastIncomingMessageTimestamp = feedResult.TimestampMs

	return &IncomingMessageResult{
		PeerID:       peerID,
		Payload:      feedResult.Payload,
		AckedSeekers: feedResult.AckedSeekers,
	}, nil
}

// Refresh drops sessions and announcements that have exceeded their
// configured lifetimes and returns the peers whose active sessions need
// a keep-alive message sent. Peer liveness checks run concurrently,
// bounded by an errgroup, since each is an independent read of
// per-peer state.
func (m *SessionManager) Refresh(ctx context.Context) ([]UserID, error) {
	m.mu.Lock()
	type peerSnapshot struct {
		id   UserID
		info *peerInfo
	}
	snapshots := make([]peerSnapshot, 0, len(m.peers))
	for id, p := range m.peers {
		snapshots = append(snapshots, peerSnapshot{id, p})
	}
	nowMs := time.Now().UnixMilli()
	oldestMessage := nowMs - m.config.MaxSessionInactivityMs
	keepAliveCutoff := nowMs - m.config.KeepAliveIntervalMs
	oldestAnnouncement := nowMs - m.config.MaxIncomingAnnouncementAgeMs
	m.mu.Unlock()

	var mu sync.Mutex
	var keepAliveNeeded []UserID

	g, _ := errgroup.WithContext(ctx)
	for _, snap := range snapshots {
		snap := snap
		g.Go(func() error {
			m.mu.Lock()
			defer m.mu.Unlock()

			p := snap.info
			if p.activeSession != nil && p.activeSession.lastIncomingMessageTimestamp < oldestMessage {
				p.activeSession = nil
				m.log.Info("asp: session expired", logger.String("peer", snap.id.String()), logger.String("reason", "inactivity"))
			}
			if p.latestIncomingInit != nil && p.latestIncomingInit.TimestampMs < oldestAnnouncement {
				p.latestIncomingInit = nil
			}
			if p.latestOutgoingInit != nil && p.latestOutgoingInit.TimestampMs < oldestAnnouncement {
				p.latestOutgoingInit = nil
			}
			if p.activeSession != nil && p.activeSession.lastOutgoingMessageTimestamp < keepAliveCutoff {
				mu.Lock()
				keepAliveNeeded = append(keepAliveNeeded, snap.id)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return keepAliveNeeded, nil
}

// peerSnapshot is the gob-serializable form of peerInfo.
type peerSnapshot struct {
	StaticVerifyKey []byte
	StaticKEMPublic []byte

	HasActiveSession bool
	ActiveSession    sessionSnapshot
	LastIncomingTs   int64
	LastOutgoingTs   int64

	HasIncomingInit bool
	IncomingInit    incomingAnnouncementSnapshot

	HasOutgoingInit bool
	OutgoingInit    outgoingAnnouncementSnapshot
}

// managerSnapshot is the gob-serializable form of a SessionManager's
// peer table.
type managerSnapshot struct {
	Peers map[UserID]peerSnapshot
}

// ToEncryptedBlob serializes every peer's handshake/session state and
// seals it under key (64 bytes, as produced by a PasswordKDF or any
// other source of AEAD-strength key material) with the zero nonce: safe
// here because the caller is expected to derive a fresh key per save, or
// accept that repeated saves under the same key only leak plaintext
// equality under the AEAD's SIV construction, never the key itself.
func (m *SessionManager) ToEncryptedBlob(key []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := managerSnapshot{Peers: make(map[UserID]peerSnapshot, len(m.peers))}
	for id, p := range m.peers {
		ps := peerSnapshot{
			StaticVerifyKey: append([]byte(nil), p.staticPublicKeys.VerifyKey...),
		}
		if p.staticPublicKeys.KEMPublicKey != nil {
			ps.StaticKEMPublic = p.staticPublicKeys.KEMPublicKey.Bytes()
		}
		if p.activeSession != nil {
			ps.HasActiveSession = true
			ps.ActiveSession = p.activeSession.session.snapshot()
			ps.LastIncomingTs = p.activeSession.lastIncomingMessageTimestamp
			ps.LastOutgoingTs = p.activeSession.lastOutgoingMessageTimestamp
		}
		if p.latestIncomingInit != nil {
			ps.HasIncomingInit = true
			ps.IncomingInit = p.latestIncomingInit.snapshot()
		}
		if p.latestOutgoingInit != nil {
			ps.HasOutgoingInit = true
			ps.OutgoingInit = p.latestOutgoingInit.snapshot()
		}
		snap.Peers[id] = ps
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, fmt.Errorf("asp: encoding session manager snapshot: %w", err)
	}
	return m.aead.Seal(key, vaultcrypto.ZeroNonce, buf.Bytes(), nil), nil
}

// SessionManagerFromEncryptedBlob reconstructs a SessionManager from a
// blob produced by ToEncryptedBlob under the same key.
func SessionManagerFromEncryptedBlob(config SessionManagerConfig, log logger.Logger, key, blob []byte) (*SessionManager, error) {
	m := NewSessionManager(config, log)

	plaintext, err := m.aead.Open(key, vaultcrypto.ZeroNonce, blob, nil)
	if err != nil {
		return nil, fmt.Errorf("asp: decrypting session manager blob: %w", err)
	}

	var snap managerSnapshot
	if err := gob.NewDecoder(bytes.NewReader(plaintext)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("asp: decoding session manager snapshot: %w", err)
	}

	for id, ps := range snap.Peers {
		p := &peerInfo{
			staticPublicKeys: UserPublicKeys{VerifyKey: append([]byte(nil), ps.StaticVerifyKey...)},
		}
		if len(ps.StaticKEMPublic) > 0 {
			pub, err := m.kem.ParsePublicKey(ps.StaticKEMPublic)
			if err != nil {
				return nil, fmt.Errorf("asp: restoring peer %s static key: %w", id, err)
			}
			p.staticPublicKeys.KEMPublicKey = pub
		}
		if ps.HasActiveSession {
			session, err := newSessionFromSnapshot(m.aead, m.kdf, m.kem, m.rng, ps.ActiveSession)
			if err != nil {
				return nil, fmt.Errorf("asp: restoring peer %s session: %w", id, err)
			}
			p.activeSession = &sessionInfo{
				session:                      session,
				lastIncomingMessageTimestamp: ps.LastIncomingTs,
				lastOutgoingMessageTimestamp: ps.LastOutgoingTs,
			}
		}
		if ps.HasIncomingInit {
			incoming, err := incomingAnnouncementFromSnapshot(m.kem, ps.IncomingInit)
			if err != nil {
				return nil, fmt.Errorf("asp: restoring peer %s incoming announcement: %w", id, err)
			}
			p.latestIncomingInit = incoming
		}
		if ps.HasOutgoingInit {
			outgoing, err := outgoingAnnouncementFromSnapshot(m.kem, ps.OutgoingInit)
			if err != nil {
				return nil, fmt.Errorf("asp: restoring peer %s outgoing announcement: %w", id, err)
			}
			p.latestOutgoingInit = outgoing
		}
		m.peers[id] = p
	}

	return m, nil
}
