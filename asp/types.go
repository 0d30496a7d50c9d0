package asp

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"

	vaultcrypto "github.com/agraphon-io/vault/crypto"
)

// UserID is a stable 32-byte identifier derived from a user's public
// keys.
type UserID [32]byte

// String renders the user ID as hex, for logging.
func (id UserID) String() string { return fmt.Sprintf("%x", id[:]) }

// UserPublicKeys is everything a peer needs to address and authenticate
// messages to us: an Ed25519 verification key (used to authenticate
// announcement auth blobs) and our long-term post-quantum KEM public
// key.
type UserPublicKeys struct {
	VerifyKey    ed25519.PublicKey
	KEMPublicKey vaultcrypto.KEMPublicKey
}

// UserID derives the stable identifier for this key set.
func (k UserPublicKeys) UserID() UserID {
	h := sha256.New()
	h.Write(k.VerifyKey)
	h.Write(k.KEMPublicKey.Bytes())
	var id UserID
	copy(id[:], h.Sum(nil))
	return id
}

// UserSecretKeys pairs a long-term Ed25519 signing key with a long-term
// KEM private key.
type UserSecretKeys struct {
	SignKey      ed25519.PrivateKey
	KEMSecretKey vaultcrypto.KEMPrivateKey
}

// GenerateUserKeys samples a fresh identity: an Ed25519 signing keypair
// and a KEM keypair.
func GenerateUserKeys(rng vaultcrypto.RNG, k vaultcrypto.KEM) (UserPublicKeys, UserSecretKeys, error) {
	verifyKey, signKey, err := ed25519.GenerateKey(rng)
	if err != nil {
		return UserPublicKeys{}, UserSecretKeys{}, fmt.Errorf("asp: generating signing keypair: %w", err)
	}
	kemPub, kemSec, err := k.GenerateKeyPair(rng)
	if err != nil {
		return UserPublicKeys{}, UserSecretKeys{}, fmt.Errorf("asp: generating kem keypair: %w", err)
	}
	return UserPublicKeys{VerifyKey: verifyKey, KEMPublicKey: kemPub},
		UserSecretKeys{SignKey: signKey, KEMSecretKey: kemSec}, nil
}

// HistoryItemSelf records one of our sent messages: the ephemeral KEM
// secret the peer must target to reply to this specific message, the
// chain key established after sending it, and the seeker under which it
// was published (so a later ack can report it back to the caller).
type HistoryItemSelf struct {
	Height uint64
	SkNext vaultcrypto.KEMPrivateKey
	KNext  [32]byte
	Seeker []byte
}

// HistoryItemPeer tracks only the peer's most recent message state: we
// always reply relative to it, never to older peer messages.
type HistoryItemPeer struct {
	OurParentHeight uint64
	PkNext          vaultcrypto.KEMPublicKey
	KNext           [32]byte
}

// zeroizeHistoryItemSelf clears the chain key; the KEM secret key's own
// backing bytes are owned by the KEM implementation and are not
// reachable for a generic wipe from here.
func zeroizeHistoryItemSelf(h *HistoryItemSelf) {
	vaultcrypto.Zero(h.KNext[:])
}

func zeroizeHistoryItemPeer(h *HistoryItemPeer) {
	vaultcrypto.Zero(h.KNext[:])
}
