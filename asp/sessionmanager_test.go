package asp_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agraphon-io/vault/asp"
	vaultcrypto "github.com/agraphon-io/vault/crypto"
)

func testConfig() asp.SessionManagerConfig {
	return asp.SessionManagerConfig{
		MaxIncomingAnnouncementAgeMs:    60_000,
		MaxIncomingAnnouncementFutureMs: 5_000,
		MaxIncomingMessageAgeMs:         300_000,
		MaxIncomingMessageFutureMs:      5_000,
		MaxSessionInactivityMs:          3_600_000,
		KeepAliveIntervalMs:             60_000,
		MaxSessionLagLength:             100,
	}
}

func newTestIdentity(t *testing.T) (asp.UserPublicKeys, asp.UserSecretKeys) {
	t.Helper()
	kem := asp.NewMLKEM768()
	pub, sec, err := asp.GenerateUserKeys(vaultcrypto.SystemRNG, kem)
	require.NoError(t, err)
	return pub, sec
}

func TestSessionManagerBidirectionalEstablishment(t *testing.T) {
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

	require.Equal(t, asp.StatusActive, alice.PeerSessionStatus(bobPub.UserID()))
	require.Equal(t, asp.StatusActive, bob.PeerSessionStatus(alicePub.UserID()))
}

func TestSessionManagerSelfAndPeerRequestedStatuses(t *testing.T) {
	alice := asp.NewSessionManager(testConfig(), nil)
	bobPub, _ := newTestIdentity(t)
	alicePub, aliceSec := newTestIdentity(t)

	_, err := alice.EstablishOutgoingSession(bobPub, alicePub, aliceSec, nil)
	require.NoError(t, err)
	require.Equal(t, asp.StatusSelfRequested, alice.PeerSessionStatus(bobPub.UserID()))

	bob := asp.NewSessionManager(testConfig(), nil)
	bobPub2, bobSec2 := newTestIdentity(t)
	charlie := asp.NewSessionManager(testConfig(), nil)
	charliePub, charlieSec := newTestIdentity(t)

	announcement, err := charlie.EstablishOutgoingSession(bobPub2, charliePub, charlieSec, nil)
	require.NoError(t, err)
	_, err = bob.FeedIncomingAnnouncement(announcement, bobPub2, bobSec2)
	require.NoError(t, err)
	require.Equal(t, asp.StatusPeerRequested, bob.PeerSessionStatus(charliePub.UserID()))
}

func TestSessionManagerPeerListAndDiscard(t *testing.T) {
	manager := asp.NewSessionManager(testConfig(), nil)
	ourPub, ourSec := newTestIdentity(t)
	peer1Pub, _ := newTestIdentity(t)
	peer2Pub, _ := newTestIdentity(t)

	_, err := manager.EstablishOutgoingSession(peer1Pub, ourPub, ourSec, nil)
	require.NoError(t, err)
	_, err = manager.EstablishOutgoingSession(peer2Pub, ourPub, ourSec, nil)
	require.NoError(t, err)

	require.Len(t, manager.PeerList(), 2)

	manager.PeerDiscard(peer1Pub.UserID())
	require.Len(t, manager.PeerList(), 1)
	require.Equal(t, asp.StatusUnknownPeer, manager.PeerSessionStatus(peer1Pub.UserID()))
}

func TestSessionManagerMessageExchangeAndSeekers(t *testing.T) {
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

	wire, err := alice.SendMessage(bobPub.UserID(), []byte("hello bob"))
	require.NoError(t, err)

	bobSeekers := bob.GetMessageBoardReadKeys()
	require.Len(t, bobSeekers, 1)

	result, err := bob.FeedIncomingMessageBoardRead(bobSeekers[0], wire, bobSec)
	require.NoError(t, err)
	require.Equal(t, []byte("hello bob"), result.Payload)
	require.Equal(t, alicePub.UserID(), result.PeerID)
}

func TestSessionManagerSendWithNoActiveSessionFails(t *testing.T) {
	manager := asp.NewSessionManager(testConfig(), nil)
	peerPub, _ := newTestIdentity(t)

	_, err := manager.SendMessage(peerPub.UserID(), []byte("x"))
	require.ErrorIs(t, err, asp.ErrNoActiveSession)
}

func TestSessionManagerSaturationBlocksSend(t *testing.T) {
	config := testConfig()
	config.MaxSessionLagLength = 2
	alice := asp.NewSessionManager(config, nil)
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

	_, err = alice.SendMessage(bobPub.UserID(), []byte("m1"))
	require.NoError(t, err)
	_, err = alice.SendMessage(bobPub.UserID(), []byte("m2"))
	require.NoError(t, err)

	require.Equal(t, asp.StatusSaturated, alice.PeerSessionStatus(bobPub.UserID()))

	_, err = alice.SendMessage(bobPub.UserID(), []byte("m3"))
	require.ErrorIs(t, err, asp.ErrSessionSaturated)
}

func TestSessionManagerCorruptedMessageClosesSession(t *testing.T) {
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

	bobSeekers := bob.GetMessageBoardReadKeys()
	require.Len(t, bobSeekers, 1)

	_, err = bob.FeedIncomingMessageBoardRead(bobSeekers[0], []byte("garbage garbage garbage"), bobSec)
	require.Error(t, err)
	require.Equal(t, asp.StatusNoSession, bob.PeerSessionStatus(alicePub.UserID()))
}

func TestSessionManagerWrongSeekerReturnsUnknownPeer(t *testing.T) {
	manager := asp.NewSessionManager(testConfig(), nil)
	_, ourSec := newTestIdentity(t)

	_, err := manager.FeedIncomingMessageBoardRead([]byte("wrong-seeker"), []byte("data"), ourSec)
	require.ErrorIs(t, err, asp.ErrUnknownPeer)
}

func TestSessionManagerRefreshWithNoPeersReturnsEmpty(t *testing.T) {
	manager := asp.NewSessionManager(testConfig(), nil)
	keepAlive, err := manager.Refresh(context.Background())
	require.NoError(t, err)
	require.Empty(t, keepAlive)
}

// TestSessionManagerStaleMessageTimestampDropsSession covers Invariant
// 13: a message whose embedded timestamp falls outside the configured
// freshness window is rejected, and the session that produced it is
// dropped rather than merely having the message discarded.
func TestSessionManagerStaleMessageTimestampDropsSession(t *testing.T) {
	bobConfig := testConfig()
	bobConfig.MaxIncomingMessageAgeMs = 0
	alice := asp.NewSessionManager(testConfig(), nil)
	bob := asp.NewSessionManager(bobConfig, nil)

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

	wire, err := alice.SendMessage(bobPub.UserID(), []byte("hello bob"))
	require.NoError(t, err)

	// With MaxIncomingMessageAgeMs at zero, any elapsed time between the
	// embedded send timestamp and the read makes the message stale.
	time.Sleep(50 * time.Millisecond)

	bobSeekers := bob.GetMessageBoardReadKeys()
	require.Len(t, bobSeekers, 1)

	_, err = bob.FeedIncomingMessageBoardRead(bobSeekers[0], wire, bobSec)
	require.ErrorIs(t, err, asp.ErrMessageTimestampOutOfWindow)
	require.Equal(t, asp.StatusNoSession, bob.PeerSessionStatus(alicePub.UserID()))
}

func TestSessionManagerMessageAcknowledgments(t *testing.T) {
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

	wire1, err := alice.SendMessage(bobPub.UserID(), []byte("msg1"))
	require.NoError(t, err)
	_, err = alice.SendMessage(bobPub.UserID(), []byte("msg2"))
	require.NoError(t, err)

	bobSeekers := bob.GetMessageBoardReadKeys()
	_, err = bob.FeedIncomingMessageBoardRead(bobSeekers[0], wire1, bobSec)
	require.NoError(t, err)

	replyWire, err := bob.SendMessage(alicePub.UserID(), []byte("reply"))
	require.NoError(t, err)

	aliceSeekers := alice.GetMessageBoardReadKeys()
	received, err := alice.FeedIncomingMessageBoardRead(aliceSeekers[0], replyWire, aliceSec)
	require.NoError(t, err)
	require.NotEmpty(t, received.AckedSeekers)
}
