package asp_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agraphon-io/vault/asp"
	vaultcrypto "github.com/agraphon-io/vault/crypto"
)

func newTestPrimitives() (vaultcrypto.AEAD, vaultcrypto.KDF, vaultcrypto.KEM, vaultcrypto.RNG) {
	return vaultcrypto.NewXChaChaSIV(), vaultcrypto.NewHKDF(), asp.NewMLKEM768(), vaultcrypto.SystemRNG
}

func generateIdentity(t *testing.T, kem vaultcrypto.KEM, rng vaultcrypto.RNG) (asp.UserPublicKeys, asp.UserSecretKeys) {
	t.Helper()
	pub, sec, err := asp.GenerateUserKeys(rng, kem)
	require.NoError(t, err)
	return pub, sec
}

// establishAgraphonPair builds a fully handshaken Alice/Bob Agraphon
// pair by running the real announcement exchange both directions.
func establishAgraphonPair(t *testing.T) (alice, bob *asp.Agraphon, alicePub, bobPub asp.UserPublicKeys, aliceSec, bobSec asp.UserSecretKeys) {
	t.Helper()
	aead, kdf, kem, rng := newTestPrimitives()

	alicePub, aliceSec = generateIdentity(t, kem, rng)
	bobPub, bobSec = generateIdentity(t, kem, rng)

	aliceOutPrecursor, err := asp.NewOutgoingAnnouncementPrecursor(kem, kdf, aead, rng, bobPub.KEMPublicKey)
	require.NoError(t, err)
	aliceWire, aliceOut, err := aliceOutPrecursor.Finalize(alicePub, aliceSec, nil)
	require.NoError(t, err)

	bobOutPrecursor, err := asp.NewOutgoingAnnouncementPrecursor(kem, kdf, aead, rng, alicePub.KEMPublicKey)
	require.NoError(t, err)
	bobWire, bobOut, err := bobOutPrecursor.Finalize(bobPub, bobSec, nil)
	require.NoError(t, err)

	bobIncomingPrecursor, err := asp.TryFromIncomingAnnouncementBytes(kem, kdf, aead, aliceWire, bobSec.KEMSecretKey)
	require.NoError(t, err)
	aliceIncoming, err := bobIncomingPrecursor.Finalize(alicePub.KEMPublicKey)
	require.NoError(t, err)

	aliceIncomingPrecursor, err := asp.TryFromIncomingAnnouncementBytes(kem, kdf, aead, bobWire, aliceSec.KEMSecretKey)
	require.NoError(t, err)
	bobIncoming, err := aliceIncomingPrecursor.Finalize(bobPub.KEMPublicKey)
	require.NoError(t, err)

	alice = asp.NewAgraphonFromAnnouncementPair(aead, kdf, kem, rng, aliceOut, bobIncoming)
	bob = asp.NewAgraphonFromAnnouncementPair(aead, kdf, kem, rng, bobOut, aliceIncoming)
	return
}
