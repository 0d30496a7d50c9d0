package asp

import "errors"

// ErrSessionSaturated is returned by SendMessage when the session's lag
// length has reached the configured maximum and the caller should back
// off before sending more.
var ErrSessionSaturated = errors.New("asp: session saturated")

// ErrUnknownPeer is returned when an operation names a peer with no
// entry in the session manager's table.
var ErrUnknownPeer = errors.New("asp: unknown peer")

// ErrNoActiveSession is returned when an operation requires an active
// Agraphon session and the peer has none.
var ErrNoActiveSession = errors.New("asp: no active session")

// ErrDecryptionFailed is returned by the encrypted-blob persistence
// functions when the provided key cannot open the blob.
var ErrDecryptionFailed = errors.New("asp: blob decryption failed")

// ErrInvalidAnnouncement is returned for any malformed, undecryptable,
// or unverifiable incoming announcement. A single generic error covers
// every failure mode so a probing peer cannot learn which stage
// rejected it.
var ErrInvalidAnnouncement = errors.New("asp: invalid announcement")

// ErrMessageTimestampOutOfWindow is returned when an incoming message's
// embedded timestamp falls outside the configured freshness window, or
// is not later than the last accepted message from that peer. The
// session that produced it is dropped: once seeker verification and
// Agraphon decryption have both succeeded, a stale or replayed
// timestamp means the peer's clock or ratchet state has desynced in a
// way that cannot be recovered in place.
var ErrMessageTimestampOutOfWindow = errors.New("asp: incoming message timestamp out of window")
