package asp_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAliceBobSimpleTalk(t *testing.T) {
	alice, bob, _, bobPub, _, bobSec := establishAgraphonPair(t)

	wire, err := alice.SendOutgoingMessage([]byte("seeker-1"), []byte("hello bob"), bobPub.KEMPublicKey)
	require.NoError(t, err)

	result, err := bob.TryFeedIncomingMessage(bobSec.KEMSecretKey, wire)
	require.NoError(t, err)
	require.Equal(t, []byte("hello bob"), result.Payload)
}

func TestSuccessiveMessagesOneSide(t *testing.T) {
	alice, bob, _, bobPub, _, bobSec := establishAgraphonPair(t)

	for i := 0; i < 5; i++ {
		wire, err := alice.SendOutgoingMessage([]byte("seeker"), []byte("msg"), bobPub.KEMPublicKey)
		require.NoError(t, err)
		result, err := bob.TryFeedIncomingMessage(bobSec.KEMSecretKey, wire)
		require.NoError(t, err)
		require.Equal(t, []byte("msg"), result.Payload)
	}
}

func TestReplyToOlderParent(t *testing.T) {
	alice, bob, alicePub, bobPub, aliceSec, bobSec := establishAgraphonPair(t)

	wire1, err := alice.SendOutgoingMessage([]byte("seeker-1"), []byte("msg1"), bobPub.KEMPublicKey)
	require.NoError(t, err)
	_, err = alice.SendOutgoingMessage([]byte("seeker-2"), []byte("msg2"), bobPub.KEMPublicKey)
	require.NoError(t, err)

	// Bob only ever sees msg1, then replies: his reply targets Alice's
	// height-2 history entry, not the newer (unseen by him) height-3 one.
	_, err = bob.TryFeedIncomingMessage(bobSec.KEMSecretKey, wire1)
	require.NoError(t, err)

	reply, err := bob.SendOutgoingMessage([]byte("reply-seeker"), []byte("got msg1"), alicePub.KEMPublicKey)
	require.NoError(t, err)

	result, err := alice.TryFeedIncomingMessage(aliceSec.KEMSecretKey, reply)
	require.NoError(t, err)
	require.Equal(t, []byte("got msg1"), result.Payload)
}

func TestLagLengthTracksUnacknowledgedSends(t *testing.T) {
	alice, bob, alicePub, bobPub, aliceSec, _ := establishAgraphonPair(t)

	initial := alice.LagLength()

	_, err := alice.SendOutgoingMessage([]byte("s1"), []byte("m1"), bobPub.KEMPublicKey)
	require.NoError(t, err)
	_, err = alice.SendOutgoingMessage([]byte("s2"), []byte("m2"), bobPub.KEMPublicKey)
	require.NoError(t, err)
	require.Equal(t, initial+2, alice.LagLength())

	reply, err := bob.SendOutgoingMessage([]byte("ack"), []byte("ack"), alicePub.KEMPublicKey)
	require.NoError(t, err)
	_, err = alice.TryFeedIncomingMessage(aliceSec.KEMSecretKey, reply)
	require.NoError(t, err)
	require.Less(t, alice.LagLength(), initial+2)
}

func TestLargeMessageRoundTrips(t *testing.T) {
	alice, bob, _, bobPub, _, bobSec := establishAgraphonPair(t)

	payload := bytes.Repeat([]byte{0x42}, 256*1024)
	wire, err := alice.SendOutgoingMessage([]byte("seeker"), payload, bobPub.KEMPublicKey)
	require.NoError(t, err)

	result, err := bob.TryFeedIncomingMessage(bobSec.KEMSecretKey, wire)
	require.NoError(t, err)
	require.Equal(t, payload, result.Payload)
}

func TestEmptyMessageRoundTrips(t *testing.T) {
	alice, bob, _, bobPub, _, bobSec := establishAgraphonPair(t)

	wire, err := alice.SendOutgoingMessage([]byte("seeker"), nil, bobPub.KEMPublicKey)
	require.NoError(t, err)

	result, err := bob.TryFeedIncomingMessage(bobSec.KEMSecretKey, wire)
	require.NoError(t, err)
	require.Empty(t, result.Payload)
}

func TestCorruptedMessageFailsToDecrypt(t *testing.T) {
	alice, bob, _, bobPub, _, bobSec := establishAgraphonPair(t)

	wire, err := alice.SendOutgoingMessage([]byte("seeker"), []byte("hello"), bobPub.KEMPublicKey)
	require.NoError(t, err)
	wire[len(wire)-1] ^= 0xFF

	_, err = bob.TryFeedIncomingMessage(bobSec.KEMSecretKey, wire)
	require.Error(t, err)
}

func TestWrongRecipientFailsToDecrypt(t *testing.T) {
	alice, bob, _, bobPub, _, _ := establishAgraphonPair(t)
	_, _, _, charliePub, _, charlieSec := establishAgraphonPair(t)
	_ = charliePub

	wire, err := alice.SendOutgoingMessage([]byte("seeker"), []byte("hello"), bobPub.KEMPublicKey)
	require.NoError(t, err)

	// Bob's session exists but decrypting with an unrelated identity's
	// static secret key must not succeed.
	_, err = bob.TryFeedIncomingMessage(charlieSec.KEMSecretKey, wire)
	require.Error(t, err)
}
