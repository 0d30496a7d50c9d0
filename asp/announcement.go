package asp

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"fmt"
	"time"

	vaultcrypto "github.com/agraphon-io/vault/crypto"
)

const (
	labelAuthKey = "announcement.auth_key"
	labelKNext   = "announcement.k_next"
	labelEncKey  = "announcement.enc_key"
)

// authBlob is the signed, encrypted payload inside an announcement: the
// sender's identity, the handshake seed, and a signature binding all of
// it (plus the auth_key only both ends can derive) together.
type authBlob struct {
	VerifyKey         ed25519.PublicKey
	KEMPublicKeyBytes []byte
	SeekerSeed        [32]byte
	TimestampMs       int64
	UserData          []byte
	Signature         []byte
}

func (b *authBlob) signedMessage(authKey []byte) []byte {
	var buf bytes.Buffer
	buf.Write(authKey)
	buf.Write(b.VerifyKey)
	buf.Write(b.KEMPublicKeyBytes)
	buf.Write(b.SeekerSeed[:])
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(b.TimestampMs))
	buf.Write(ts[:])
	buf.Write(b.UserData)
	return buf.Bytes()
}

func encodeAuthBlob(b *authBlob) []byte {
	var buf bytes.Buffer
	writeLenPrefixed(&buf, b.VerifyKey)
	writeLenPrefixed(&buf, b.KEMPublicKeyBytes)
	buf.Write(b.SeekerSeed[:])
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(b.TimestampMs))
	buf.Write(ts[:])
	writeLenPrefixed(&buf, b.UserData)
	writeLenPrefixed(&buf, b.Signature)
	return buf.Bytes()
}

func decodeAuthBlob(data []byte) (*authBlob, error) {
	r := bytes.NewReader(data)
	verifyKey, err := readLenPrefixed(r)
	if err != nil {
		return nil, fmt.Errorf("asp: auth blob: verify key: %w", err)
	}
	kemPub, err := readLenPrefixed(r)
	if err != nil {
		return nil, fmt.Errorf("asp: auth blob: kem public key: %w", err)
	}
	var seed [32]byte
	if _, err := r.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("asp: auth blob: seeker seed: %w", err)
	}
	var tsBuf [8]byte
	if _, err := r.Read(tsBuf[:]); err != nil {
		return nil, fmt.Errorf("asp: auth blob: timestamp: %w", err)
	}
	userData, err := readLenPrefixed(r)
	if err != nil {
		return nil, fmt.Errorf("asp: auth blob: user data: %w", err)
	}
	signature, err := readLenPrefixed(r)
	if err != nil {
		return nil, fmt.Errorf("asp: auth blob: signature: %w", err)
	}
	return &authBlob{
		VerifyKey:         ed25519.PublicKey(verifyKey),
		KEMPublicKeyBytes: kemPub,
		SeekerSeed:        seed,
		TimestampMs:       int64(binary.BigEndian.Uint64(tsBuf[:])),
		UserData:          userData,
		Signature:         signature,
	}, nil
}

func writeLenPrefixed(buf *bytes.Buffer, data []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	buf.Write(lenBuf[:])
	buf.Write(data)
}

func readLenPrefixed(r *bytes.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := r.Read(lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	out := make([]byte, n)
	if _, err := r.Read(out); err != nil {
		return nil, err
	}
	return out, nil
}

// OutgoingAnnouncement is the caller's record of a finalized outgoing
// handshake: the timestamp and seeker seed it advertised, plus the
// initial Agraphon ratchet state (sk_next, k_next) that seeds our side
// of the session once paired with the peer's reply.
type OutgoingAnnouncement struct {
	TimestampMs int64
	SeekerSeed  [32]byte
	SkNext      vaultcrypto.KEMPrivateKey
	KNext       [32]byte
}

// IncomingAnnouncement is the caller's record of a verified incoming
// handshake: the peer's advertised timestamp/seeker seed and the
// ratchet state (pk_next, k_next) that seeds the peer's side of the
// session.
type IncomingAnnouncement struct {
	TimestampMs      int64
	SeekerSeed       [32]byte
	PkNext           vaultcrypto.KEMPublicKey
	KNext            [32]byte
	OriginPublicKeys UserPublicKeys
}

// OutgoingAnnouncementPrecursor holds the KEM encapsulation against the
// peer's static public key and the derived handshake keys, pending
// Finalize with the sender's identity and user data.
type OutgoingAnnouncementPrecursor struct {
	kem  vaultcrypto.KEM
	kdf  vaultcrypto.KDF
	aead vaultcrypto.AEAD
	rng  vaultcrypto.RNG

	ct      []byte
	authKey []byte
	encKey  []byte
	kNext   [32]byte
	skNext  vaultcrypto.KEMPrivateKey
	pkNext  vaultcrypto.KEMPublicKey
}

// NewOutgoingAnnouncementPrecursor encapsulates to the peer's static KEM
// public key and derives the handshake's auth/encryption/chain keys from
// the resulting shared secret.
func NewOutgoingAnnouncementPrecursor(kem vaultcrypto.KEM, kdf vaultcrypto.KDF, aead vaultcrypto.AEAD, rng vaultcrypto.RNG, peerKEMPublicKey vaultcrypto.KEMPublicKey) (*OutgoingAnnouncementPrecursor, error) {
	ct, ss, err := kem.Encapsulate(rng, peerKEMPublicKey)
	if err != nil {
		return nil, fmt.Errorf("asp: encapsulating announcement: %w", err)
	}
	prk := kdf.Extract(nil, ss)
	vaultcrypto.Zero(ss)
	defer vaultcrypto.Zero(prk)

	authKey := kdf.Expand(prk, []byte(labelAuthKey), 32)
	encKey := kdf.Expand(prk, []byte(labelEncKey), vaultcrypto.AEADKeySize)
	var kNext [32]byte
	copy(kNext[:], kdf.Expand(prk, []byte(labelKNext), 32))

	pkNext, skNext, err := kem.GenerateKeyPair(rng)
	if err != nil {
		return nil, fmt.Errorf("asp: generating announcement ratchet keypair: %w", err)
	}

	return &OutgoingAnnouncementPrecursor{
		kem: kem, kdf: kdf, aead: aead, rng: rng,
		ct: ct, authKey: authKey, encKey: encKey, kNext: kNext,
		skNext: skNext, pkNext: pkNext,
	}, nil
}

// Finalize signs and encrypts the handshake's auth blob under the
// sender's identity, returning the wire bytes to transmit and the
// caller's own announcement record.
func (p *OutgoingAnnouncementPrecursor) Finalize(selfPublicKeys UserPublicKeys, selfSecretKeys UserSecretKeys, userData []byte) ([]byte, *OutgoingAnnouncement, error) {
	defer vaultcrypto.Zero(p.authKey)
	defer vaultcrypto.Zero(p.encKey)

	var seekerSeed [32]byte
	if err := vaultcrypto.FillBuffer(p.rng, seekerSeed[:]); err != nil {
		return nil, nil, fmt.Errorf("asp: sampling seeker seed: %w", err)
	}
	timestampMs := time.Now().UnixMilli()

	blob := &authBlob{
		VerifyKey:         selfPublicKeys.VerifyKey,
		KEMPublicKeyBytes: selfPublicKeys.KEMPublicKey.Bytes(),
		SeekerSeed:        seekerSeed,
		TimestampMs:       timestampMs,
		UserData:          userData,
	}
	blob.Signature = ed25519.Sign(selfSecretKeys.SignKey, blob.signedMessage(p.authKey))

	payload := make([]byte, 0, len(p.pkNext.Bytes())+256)
	payload = append(payload, p.pkNext.Bytes()...)
	payload = append(payload, encodeAuthBlob(blob)...)

	ciphertext := p.aead.Seal(p.encKey, vaultcrypto.ZeroNonce, payload, nil)

	wireBytes := make([]byte, 0, len(p.ct)+len(ciphertext))
	wireBytes = append(wireBytes, p.ct...)
	wireBytes = append(wireBytes, ciphertext...)

	return wireBytes, &OutgoingAnnouncement{
		TimestampMs: timestampMs,
		SeekerSeed:  seekerSeed,
		SkNext:      p.skNext,
		KNext:       p.kNext,
	}, nil
}

// outgoingAnnouncementSnapshot is the gob-serializable form of
// OutgoingAnnouncement.
type outgoingAnnouncementSnapshot struct {
	TimestampMs int64
	SeekerSeed  [32]byte
	SkNext      []byte
	KNext       [32]byte
}

func (o *OutgoingAnnouncement) snapshot() outgoingAnnouncementSnapshot {
	return outgoingAnnouncementSnapshot{
		TimestampMs: o.TimestampMs,
		SeekerSeed:  o.SeekerSeed,
		SkNext:      o.SkNext.Bytes(),
		KNext:       o.KNext,
	}
}

func outgoingAnnouncementFromSnapshot(kem vaultcrypto.KEM, snap outgoingAnnouncementSnapshot) (*OutgoingAnnouncement, error) {
	skNext, err := kem.ParsePrivateKey(snap.SkNext)
	if err != nil {
		return nil, fmt.Errorf("asp: restoring outgoing announcement ratchet key: %w", err)
	}
	return &OutgoingAnnouncement{
		TimestampMs: snap.TimestampMs,
		SeekerSeed:  snap.SeekerSeed,
		SkNext:      skNext,
		KNext:       snap.KNext,
	}, nil
}

// incomingAnnouncementSnapshot is the gob-serializable form of
// IncomingAnnouncement.
type incomingAnnouncementSnapshot struct {
	TimestampMs     int64
	SeekerSeed      [32]byte
	PkNext          []byte
	KNext           [32]byte
	OriginVerifyKey []byte
	OriginKEMPublic []byte
}

func (in *IncomingAnnouncement) snapshot() incomingAnnouncementSnapshot {
	return incomingAnnouncementSnapshot{
		TimestampMs:     in.TimestampMs,
		SeekerSeed:      in.SeekerSeed,
		PkNext:          in.PkNext.Bytes(),
		KNext:           in.KNext,
		OriginVerifyKey: append([]byte(nil), in.OriginPublicKeys.VerifyKey...),
		OriginKEMPublic: in.OriginPublicKeys.KEMPublicKey.Bytes(),
	}
}

func incomingAnnouncementFromSnapshot(kem vaultcrypto.KEM, snap incomingAnnouncementSnapshot) (*IncomingAnnouncement, error) {
	pkNext, err := kem.ParsePublicKey(snap.PkNext)
	if err != nil {
		return nil, fmt.Errorf("asp: restoring incoming announcement ratchet key: %w", err)
	}
	originKEMPublic, err := kem.ParsePublicKey(snap.OriginKEMPublic)
	if err != nil {
		return nil, fmt.Errorf("asp: restoring incoming announcement origin key: %w", err)
	}
	return &IncomingAnnouncement{
		TimestampMs: snap.TimestampMs,
		SeekerSeed:  snap.SeekerSeed,
		PkNext:      pkNext,
		KNext:       snap.KNext,
		OriginPublicKeys: UserPublicKeys{
			VerifyKey:    append([]byte(nil), snap.OriginVerifyKey...),
			KEMPublicKey: originKEMPublic,
		},
	}, nil
}

// IncomingAnnouncementPrecursor holds a parsed-and-verified incoming
// handshake, pending Finalize pinning it to an expected sender identity.
type IncomingAnnouncementPrecursor struct {
	timestampMs      int64
	seekerSeed       [32]byte
	userData         []byte
	originPublicKeys UserPublicKeys
	pkNext           vaultcrypto.KEMPublicKey
	kNext            [32]byte
}

// TryFromIncomingAnnouncementBytes decapsulates, derives the handshake
// keys, decrypts the auth blob, and verifies its signature. Every
// failure mode returns the same generic error so observers cannot
// distinguish cause.
func TryFromIncomingAnnouncementBytes(kem vaultcrypto.KEM, kdf vaultcrypto.KDF, aead vaultcrypto.AEAD, wireBytes []byte, ourKEMSecretKey vaultcrypto.KEMPrivateKey) (*IncomingAnnouncementPrecursor, error) {
	ctSize := kem.CiphertextSize()
	if len(wireBytes) < ctSize {
		return nil, ErrInvalidAnnouncement
	}
	ct := wireBytes[:ctSize]
	encBlob := wireBytes[ctSize:]

	ss, err := kem.Decapsulate(ourKEMSecretKey, ct)
	if err != nil {
		return nil, ErrInvalidAnnouncement
	}
	prk := kdf.Extract(nil, ss)
	vaultcrypto.Zero(ss)

	authKey := kdf.Expand(prk, []byte(labelAuthKey), 32)
	encKey := kdf.Expand(prk, []byte(labelEncKey), vaultcrypto.AEADKeySize)
	var kNext [32]byte
	copy(kNext[:], kdf.Expand(prk, []byte(labelKNext), 32))
	vaultcrypto.Zero(prk)
	defer vaultcrypto.Zero(authKey)
	defer vaultcrypto.Zero(encKey)

	payload, err := aead.Open(encKey, vaultcrypto.ZeroNonce, encBlob, nil)
	if err != nil {
		return nil, ErrInvalidAnnouncement
	}

	pkSize := kem.PublicKeySize()
	if len(payload) < pkSize {
		return nil, ErrInvalidAnnouncement
	}
	pkNext, err := kem.ParsePublicKey(payload[:pkSize])
	if err != nil {
		return nil, ErrInvalidAnnouncement
	}

	blob, err := decodeAuthBlob(payload[pkSize:])
	if err != nil {
		return nil, ErrInvalidAnnouncement
	}
	if !ed25519.Verify(blob.VerifyKey, blob.signedMessage(authKey), blob.Signature) {
		return nil, ErrInvalidAnnouncement
	}

	originKEMPublicKey, err := kem.ParsePublicKey(blob.KEMPublicKeyBytes)
	if err != nil {
		return nil, ErrInvalidAnnouncement
	}

	return &IncomingAnnouncementPrecursor{
		timestampMs: blob.TimestampMs,
		seekerSeed:  blob.SeekerSeed,
		userData:    blob.UserData,
		originPublicKeys: UserPublicKeys{
			VerifyKey:    blob.VerifyKey,
			KEMPublicKey: originKEMPublicKey,
		},
		pkNext: pkNext,
		kNext:  kNext,
	}, nil
}

// OriginPublicKeys returns the sender identity recovered from the auth
// blob, for callers that want to inspect it before Finalize.
func (p *IncomingAnnouncementPrecursor) OriginPublicKeys() UserPublicKeys { return p.originPublicKeys }

// UserData returns the caller-supplied data carried by the handshake.
func (p *IncomingAnnouncementPrecursor) UserData() []byte { return p.userData }

// TimestampMs returns the handshake's advertised timestamp.
func (p *IncomingAnnouncementPrecursor) TimestampMs() int64 { return p.timestampMs }

// Finalize pins the precursor to an expected sender KEM public key
// (recovered independently by the caller, e.g. from a contact list) and
// returns the IncomingAnnouncement record.
func (p *IncomingAnnouncementPrecursor) Finalize(expectedOriginKEMPublicKey vaultcrypto.KEMPublicKey) (*IncomingAnnouncement, error) {
	if !bytes.Equal(p.originPublicKeys.KEMPublicKey.Bytes(), expectedOriginKEMPublicKey.Bytes()) {
		return nil, ErrInvalidAnnouncement
	}
	return &IncomingAnnouncement{
		TimestampMs:      p.timestampMs,
		SeekerSeed:       p.seekerSeed,
		PkNext:           p.pkNext,
		KNext:            p.kNext,
		OriginPublicKeys: p.originPublicKeys,
	}, nil
}
