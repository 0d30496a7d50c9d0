package asp

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"fmt"
)

// messageRecord is the structured plaintext Agraphon actually encrypts
// for a board message: the sender's content plus the seeker-layer
// bookkeeping that rides inside the same ciphertext so it is
// authenticated and hidden from anyone who cannot decrypt it. The
// embedded timestamp lets the receiver bound message freshness; the
// embedded next seeker keypair ratchets the seeker layer forward in
// lock-step with the Agraphon ratchet, without either side deriving the
// other's next key independently.
type messageRecord struct {
	TimestampMs   int64
	NextSeekerPub ed25519.PublicKey
	Contents      []byte
}

func encodeMessageRecord(r *messageRecord) []byte {
	var buf bytes.Buffer
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(r.TimestampMs))
	buf.Write(ts[:])
	writeLenPrefixed(&buf, r.NextSeekerPub)
	writeLenPrefixed(&buf, r.Contents)
	return buf.Bytes()
}

func decodeMessageRecord(data []byte) (*messageRecord, error) {
	r := bytes.NewReader(data)
	var tsBuf [8]byte
	if _, err := r.Read(tsBuf[:]); err != nil {
		return nil, fmt.Errorf("asp: message record: timestamp: %w", err)
	}
	nextSeekerPub, err := readLenPrefixed(r)
	if err != nil {
		return nil, fmt.Errorf("asp: message record: next seeker key: %w", err)
	}
	contents, err := readLenPrefixed(r)
	if err != nil {
		return nil, fmt.Errorf("asp: message record: contents: %w", err)
	}
	return &messageRecord{
		TimestampMs:   int64(binary.BigEndian.Uint64(tsBuf[:])),
		NextSeekerPub: ed25519.PublicKey(nextSeekerPub),
		Contents:      contents,
	}, nil
}
