package asp_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agraphon-io/vault/asp"
)

// establishSessionPair mirrors establishAgraphonPair but wraps the
// result in the seeker-addressed Session layer.
func establishSessionPair(t *testing.T) (alice, bob *asp.Session, aliceSec, bobSec asp.UserSecretKeys) {
	t.Helper()
	aead, kdf, kem, rng := newTestPrimitives()

	alicePub, aliceSec := generateIdentity(t, kem, rng)
	bobPub, bobSec := generateIdentity(t, kem, rng)

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

	alice = asp.NewSessionFromAnnouncementPair(aead, kdf, kem, rng, bobPub, aliceOut, bobIncoming)
	bob = asp.NewSessionFromAnnouncementPair(aead, kdf, kem, rng, alicePub, bobOut, aliceIncoming)
	return
}

func TestSessionSendReceiveRoundTrip(t *testing.T) {
	alice, bob, _, bobSec := establishSessionPair(t)

	expectedSeeker := alice.CurrentSelfSeeker()
	require.Equal(t, expectedSeeker, bob.CurrentPeerSeeker())

	wire, err := alice.SendMessage([]byte("hi bob"))
	require.NoError(t, err)

	result, err := bob.FeedIncomingMessage(bobSec.KEMSecretKey, wire)
	require.NoError(t, err)
	require.Equal(t, []byte("hi bob"), result.Payload)
}

func TestSessionSeekersRatchetPerMessage(t *testing.T) {
	alice, bob, _, bobSec := establishSessionPair(t)

	firstSeeker := alice.CurrentSelfSeeker()
	wire, err := alice.SendMessage([]byte("one"))
	require.NoError(t, err)
	_, err = bob.FeedIncomingMessage(bobSec.KEMSecretKey, wire)
	require.NoError(t, err)

	require.NotEqual(t, firstSeeker, alice.CurrentSelfSeeker())
}
