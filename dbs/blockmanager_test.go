package dbs_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agraphon-io/vault/crypto"
	"github.com/agraphon-io/vault/dbs"
	"github.com/agraphon-io/vault/dbs/memfs"
)

func newTestKeys(t *testing.T) *dbs.SessionKeys {
	t.Helper()
	return dbs.DeriveSessionKeys(crypto.NewArgon2PasswordKDF(), crypto.NewHKDF(), []byte("correct horse battery staple"))
}

func TestBlockManagerWriteReadRoundTrip(t *testing.T) {
	fs := memfs.New()
	keys := newTestKeys(t)
	aead := crypto.NewXChaChaSIV()
	kdf := crypto.NewHKDF()
	cfg := dbs.TestStorageConfig()

	bm, err := dbs.NewBlockManager(fs, keys, aead, kdf, crypto.SystemRNG, 0, cfg, nil)
	require.NoError(t, err)

	payload := []byte("hello deniable world")
	require.NoError(t, bm.Write(0, payload))
	require.NoError(t, bm.Flush())

	got, err := bm.Read(0, len(payload))
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestBlockManagerReadUnwrittenRegionIsZero(t *testing.T) {
	fs := memfs.New()
	keys := newTestKeys(t)
	aead := crypto.NewXChaChaSIV()
	kdf := crypto.NewHKDF()
	cfg := dbs.TestStorageConfig()

	bm, err := dbs.NewBlockManager(fs, keys, aead, kdf, crypto.SystemRNG, 0, cfg, nil)
	require.NoError(t, err)

	got, err := bm.Read(0, 32)
	require.NoError(t, err)
	require.Equal(t, make([]byte, 32), got)
}

func TestBlockManagerPersistsAcrossLoad(t *testing.T) {
	fs := memfs.New()
	keys := newTestKeys(t)
	aead := crypto.NewXChaChaSIV()
	kdf := crypto.NewHKDF()
	cfg := dbs.TestStorageConfig()

	bm, err := dbs.NewBlockManager(fs, keys, aead, kdf, crypto.SystemRNG, 0, cfg, nil)
	require.NoError(t, err)

	payload := []byte("persisted payload")
	require.NoError(t, bm.Write(0, payload))
	require.NoError(t, bm.Flush())

	rootAddress := bm.RootAddress()
	rootLength := bm.RootOuterLength()

	loaded, err := dbs.LoadBlockManager(fs, keys, aead, kdf, crypto.SystemRNG, rootAddress, rootLength, cfg, nil)
	require.NoError(t, err)

	got, err := loaded.Read(0, len(payload))
	require.NoError(t, err)
	require.Equal(t, payload, got)
	require.Equal(t, bm.DataSize(), loaded.DataSize())
}

func TestBlockManagerWrongKeyFailsToLoad(t *testing.T) {
	fs := memfs.New()
	keys := newTestKeys(t)
	aead := crypto.NewXChaChaSIV()
	kdf := crypto.NewHKDF()
	cfg := dbs.TestStorageConfig()

	bm, err := dbs.NewBlockManager(fs, keys, aead, kdf, crypto.SystemRNG, 0, cfg, nil)
	require.NoError(t, err)
	require.NoError(t, bm.Flush())

	wrongKeys := dbs.DeriveSessionKeys(crypto.NewArgon2PasswordKDF(), crypto.NewHKDF(), []byte("wrong password"))
	_, err = dbs.LoadBlockManager(fs, wrongKeys, aead, kdf, crypto.SystemRNG, bm.RootAddress(), bm.RootOuterLength(), cfg, nil)
	require.ErrorIs(t, err, dbs.ErrDecryptionFailed)
}

func TestBlockManagerAppendAllocatesNewBlock(t *testing.T) {
	fs := memfs.New()
	keys := newTestKeys(t)
	aead := crypto.NewXChaChaSIV()
	kdf := crypto.NewHKDF()
	cfg := dbs.TestStorageConfig()

	bm, err := dbs.NewBlockManager(fs, keys, aead, kdf, crypto.SystemRNG, 0, cfg, nil)
	require.NoError(t, err)

	first := make([]byte, cfg.BlockCapacityMax)
	for i := range first {
		first[i] = byte(i)
	}
	require.NoError(t, bm.Write(0, first))
	require.NoError(t, bm.Flush())

	second := []byte("overflow into a new block")
	require.NoError(t, bm.Write(bm.DataSize(), second))
	require.NoError(t, bm.Flush())

	got, err := bm.Read(bm.DataSize()-uint64(len(second)), len(second))
	require.NoError(t, err)
	require.Equal(t, second, got)
}

func TestBlockManagerZeroizeSensitiveClearsCache(t *testing.T) {
	fs := memfs.New()
	keys := newTestKeys(t)
	aead := crypto.NewXChaChaSIV()
	kdf := crypto.NewHKDF()
	cfg := dbs.TestStorageConfig()

	bm, err := dbs.NewBlockManager(fs, keys, aead, kdf, crypto.SystemRNG, 0, cfg, nil)
	require.NoError(t, err)
	require.NoError(t, bm.Write(0, []byte("secret")))
	require.NoError(t, bm.Flush())

	bm.ZeroizeSensitive()

	// Keys are zeroized; attempting to derive further block keys should
	// no longer reproduce the same ciphertext as before zeroization.
	require.NotPanics(t, func() { bm.ZeroizeSensitive() })
}
