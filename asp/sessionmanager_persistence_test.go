package asp_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agraphon-io/vault/asp"
	vaultcrypto "github.com/agraphon-io/vault/crypto"
)

func TestSessionManagerEncryptedBlobRoundTrip(t *testing.T) {
	alice := asp.NewSessionManager(testConfig(), nil)
	bob := asp.NewSessionManager(testConfig(), nil)

	alicePub, aliceSec := newTestIdentity(t)
	bobPub, bobSec := newTestIdentity(t)

	aliceAnnouncement, err := alice.EstablishOutgoingSession(bobPub, alicePub, aliceSec, nil)
	require.NoError(t, err)
	bobAnnouncement, err := bob.EstablishOutgoingSession(alicePub, bobPub, bobSec, nil)
	require.NoError(t, err)
	_, err = bob.FeedIncomingAnnouncement(aliceAnnouncement, bobPub, bobSec)
	require.NoError(t, err)
	_, err = alice.FeedIncomingAnnouncement(bobAnnouncement, alicePub, aliceSec)
	require.NoError(t, err)

	wire, err := alice.SendMessage(bobPub.UserID(), []byte("before save"))
	require.NoError(t, err)

	key := make([]byte, vaultcrypto.AEADKeySize)
	_, err = vaultcrypto.SystemRNG.Read(key)
	require.NoError(t, err)

	blob, err := bob.ToEncryptedBlob(key)
	require.NoError(t, err)

	restored, err := asp.SessionManagerFromEncryptedBlob(testConfig(), nil, key, blob)
	require.NoError(t, err)

	result, err := restored.FeedIncomingMessageBoardRead(restored.GetMessageBoardReadKeys()[0], wire, bobSec)
	require.NoError(t, err)
	require.Equal(t, []byte("before save"), result.Payload)
	require.Equal(t, asp.StatusActive, restored.PeerSessionStatus(alicePub.UserID()))
}

func TestSessionManagerEncryptedBlobWrongKeyFails(t *testing.T) {
	alice := asp.NewSessionManager(testConfig(), nil)
	bob := asp.NewSessionManager(testConfig(), nil)

	alicePub, aliceSec := newTestIdentity(t)
	bobPub, bobSec := newTestIdentity(t)

	aliceAnnouncement, err := alice.EstablishOutgoingSession(bobPub, alicePub, aliceSec, nil)
	require.NoError(t, err)
	_, err = bob.FeedIncomingAnnouncement(aliceAnnouncement, bobPub, bobSec)
	require.NoError(t, err)

	key := make([]byte, vaultcrypto.AEADKeySize)
	_, err = vaultcrypto.SystemRNG.Read(key)
	require.NoError(t, err)
	blob, err := bob.ToEncryptedBlob(key)
	require.NoError(t, err)

	wrongKey := make([]byte, vaultcrypto.AEADKeySize)
	_, err = vaultcrypto.SystemRNG.Read(wrongKey)
	require.NoError(t, err)

	_, err = asp.SessionManagerFromEncryptedBlob(testConfig(), nil, wrongKey, blob)
	require.Error(t, err)
}
