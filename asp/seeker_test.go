package asp_test

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agraphon-io/vault/asp"
	vaultcrypto "github.com/agraphon-io/vault/crypto"
)

func randomSeed(t *testing.T) [32]byte {
	t.Helper()
	var seed [32]byte
	require.NoError(t, vaultcrypto.FillBuffer(vaultcrypto.SystemRNG, seed[:]))
	return seed
}

func freshSeekerKeypair(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(vaultcrypto.SystemRNG)
	require.NoError(t, err)
	return pub, priv
}

func TestSeekerKeysAreSymmetricAcrossDirections(t *testing.T) {
	kdf := vaultcrypto.NewHKDF()
	seedA, seedB := randomSeed(t), randomSeed(t)

	alice := asp.NewSeekerKeys(kdf, seedA, seedB)
	bob := asp.NewSeekerKeys(kdf, seedB, seedA)

	require.Equal(t, alice.CurrentSelfSeeker(), bob.CurrentPeerSeeker())
	require.Equal(t, alice.CurrentPeerSeeker(), bob.CurrentSelfSeeker())
}

func TestSeekerWrapUnwrapRoundTripRatchetsForward(t *testing.T) {
	kdf := vaultcrypto.NewHKDF()
	seedA, seedB := randomSeed(t), randomSeed(t)

	alice := asp.NewSeekerKeys(kdf, seedA, seedB)
	bob := asp.NewSeekerKeys(kdf, seedB, seedA)

	for i := 0; i < 3; i++ {
		seekerBefore := alice.CurrentPeerSeeker()
		require.Equal(t, seekerBefore, bob.CurrentSelfSeeker())

		nextPub, nextPriv := freshSeekerKeypair(t)
		wire := bob.WrapOutgoing([]byte("payload"), nextPub, nextPriv)
		payload, err := alice.UnwrapIncoming(wire)
		require.NoError(t, err)
		require.Equal(t, []byte("payload"), payload)

		// UnwrapIncoming does not itself advance the peer seeker: that
		// only happens once the caller has decrypted the embedded
		// next_seeker_keypair (simulated here directly).
		alice.AdvancePeer(nextPub)
		require.NotEqual(t, seekerBefore, alice.CurrentPeerSeeker())
	}
}

func TestSeekerUnwrapRejectsTamperedSignature(t *testing.T) {
	kdf := vaultcrypto.NewHKDF()
	seedA, seedB := randomSeed(t), randomSeed(t)

	alice := asp.NewSeekerKeys(kdf, seedA, seedB)
	bob := asp.NewSeekerKeys(kdf, seedB, seedA)

	nextPub, nextPriv := freshSeekerKeypair(t)
	wire := bob.WrapOutgoing([]byte("payload"), nextPub, nextPriv)
	wire[len(wire)-1] ^= 0xFF

	_, err := alice.UnwrapIncoming(wire)
	require.Error(t, err)
}

func TestSeekerUnwrapRejectsUnexpectedSigner(t *testing.T) {
	kdf := vaultcrypto.NewHKDF()
	seedA, seedB := randomSeed(t), randomSeed(t)
	seedC, seedD := randomSeed(t), randomSeed(t)

	alice := asp.NewSeekerKeys(kdf, seedA, seedB)
	mallory := asp.NewSeekerKeys(kdf, seedC, seedD)

	nextPub, nextPriv := freshSeekerKeypair(t)
	wire := mallory.WrapOutgoing([]byte("payload"), nextPub, nextPriv)
	_, err := alice.UnwrapIncoming(wire)
	require.Error(t, err)
}
