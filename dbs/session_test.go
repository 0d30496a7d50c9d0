package dbs_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agraphon-io/vault/crypto"
	"github.com/agraphon-io/vault/dbs"
	"github.com/agraphon-io/vault/dbs/memfs"
)

func newTestManager(fs *memfs.FS) *dbs.SessionManager {
	return dbs.NewSessionManagerWithConfig(fs, dbs.TestStorageConfig(), nil)
}

func TestInitStorageWritesAddressingBlobOnce(t *testing.T) {
	fs := memfs.New()
	mgr := newTestManager(fs)

	require.NoError(t, mgr.InitStorage())
	size, err := fs.Size(dbs.FileAddr)
	require.NoError(t, err)
	require.EqualValues(t, dbs.AddressingBlobSize, size)

	fs.ResetWriteCount(dbs.FileAddr)
	require.NoError(t, mgr.InitStorage())
	require.Equal(t, 0, fs.WriteCount(dbs.FileAddr))
}

func TestCreateAndUnlockSessionRoundTrip(t *testing.T) {
	fs := memfs.New()
	mgr := newTestManager(fs)
	require.NoError(t, mgr.InitStorage())
	require.NoError(t, mgr.CreateSession([]byte("hunter2")))

	require.NoError(t, mgr.WriteData(0, []byte("hidden volume contents")))
	require.NoError(t, mgr.FlushData())
	require.NoError(t, mgr.Lock())

	require.Equal(t, dbs.StateLocked, mgr.State())

	mgr2 := newTestManager(fs)
	require.NoError(t, mgr2.UnlockSession([]byte("hunter2")))
	require.Equal(t, dbs.StateUnlocked, mgr2.State())

	got, err := mgr2.ReadData(0, len("hidden volume contents"))
	require.NoError(t, err)
	require.Equal(t, "hidden volume contents", string(got))
}

func TestUnlockSessionWrongPassword(t *testing.T) {
	fs := memfs.New()
	mgr := newTestManager(fs)
	require.NoError(t, mgr.InitStorage())
	require.NoError(t, mgr.CreateSession([]byte("correct password")))
	require.NoError(t, mgr.Lock())

	mgr2 := newTestManager(fs)
	err := mgr2.UnlockSession([]byte("wrong password"))
	require.ErrorIs(t, err, dbs.ErrInvalidPassword)
	require.Equal(t, dbs.StateLocked, mgr2.State())
}

// TestUnlockSessionScansExactlySlotsPerSessionRegardlessOfPassword
// covers the constant-time unlock invariant: UnlockSession reads
// exactly SlotsPerSession addressing slots whether or not the password
// is correct, so an observer counting reads learns nothing about
// success.
func TestUnlockSessionScansExactlySlotsPerSessionRegardlessOfPassword(t *testing.T) {
	fs := memfs.New()
	mgr := newTestManager(fs)
	require.NoError(t, mgr.InitStorage())
	require.NoError(t, mgr.CreateSession([]byte("correct password")))
	require.NoError(t, mgr.Lock())

	fs.ResetReadCount(dbs.FileAddr)
	mgrWrong := newTestManager(fs)
	err := mgrWrong.UnlockSession([]byte("wrong password"))
	require.ErrorIs(t, err, dbs.ErrInvalidPassword)
	require.Equal(t, dbs.SlotsPerSession, fs.ReadCount(dbs.FileAddr))

	fs.ResetReadCount(dbs.FileAddr)
	mgrRight := newTestManager(fs)
	require.NoError(t, mgrRight.UnlockSession([]byte("correct password")))
	require.Equal(t, dbs.SlotsPerSession, fs.ReadCount(dbs.FileAddr))
}

func TestMultipleHiddenSessionsAreIndependent(t *testing.T) {
	fs := memfs.New()
	mgr := newTestManager(fs)
	require.NoError(t, mgr.InitStorage())
	require.NoError(t, mgr.CreateSession([]byte("password-one")))
	require.NoError(t, mgr.WriteData(0, []byte("first session data")))
	require.NoError(t, mgr.FlushData())
	require.NoError(t, mgr.Lock())

	mgr.CreateSession([]byte("password-two"))
	require.NoError(t, mgr.WriteData(0, []byte("second session data")))
	require.NoError(t, mgr.FlushData())
	require.NoError(t, mgr.Lock())

	one := newTestManager(fs)
	require.NoError(t, one.UnlockSession([]byte("password-one")))
	got, err := one.ReadData(0, len("first session data"))
	require.NoError(t, err)
	require.Equal(t, "first session data", string(got))
	require.NoError(t, one.Lock())

	two := newTestManager(fs)
	require.NoError(t, two.UnlockSession([]byte("password-two")))
	got, err = two.ReadData(0, len("second session data"))
	require.NoError(t, err)
	require.Equal(t, "second session data", string(got))
}

func TestUnlockSelfHealsCorruptedSlotsOnly(t *testing.T) {
	fs := memfs.New()
	mgr := newTestManager(fs)
	require.NoError(t, mgr.InitStorage())
	require.NoError(t, mgr.CreateSession([]byte("self-heal-password")))
	require.NoError(t, mgr.Lock())

	keys := dbs.DeriveSessionKeys(crypto.NewArgon2PasswordKDF(), crypto.NewHKDF(), []byte("self-heal-password"))
	slotIndex := keys.SlotIndex(0)

	garbage := make([]byte, dbs.SlotSize)
	for i := range garbage {
		garbage[i] = 0xFF
	}
	require.NoError(t, fs.CorruptAt(dbs.FileAddr, uint64(slotIndex)*dbs.SlotSize, garbage))

	fs.ResetWriteCount(dbs.FileAddr)

	mgr2 := newTestManager(fs)
	require.NoError(t, mgr2.UnlockSession([]byte("self-heal-password")))

	require.Equal(t, 1, fs.WriteCount(dbs.FileAddr))
}

func TestReadWriteUnlockedSessionReturnsLockedError(t *testing.T) {
	fs := memfs.New()
	mgr := newTestManager(fs)

	_, err := mgr.ReadData(0, 10)
	require.ErrorIs(t, err, dbs.ErrSessionLocked)

	err = mgr.WriteData(0, []byte("x"))
	require.ErrorIs(t, err, dbs.ErrSessionLocked)

	_, err = mgr.DataSize()
	require.ErrorIs(t, err, dbs.ErrSessionLocked)
}

func TestCreateSessionAlreadyUnlocked(t *testing.T) {
	fs := memfs.New()
	mgr := newTestManager(fs)
	require.NoError(t, mgr.InitStorage())
	require.NoError(t, mgr.CreateSession([]byte("one")))

	err := mgr.CreateSession([]byte("two"))
	require.ErrorIs(t, err, dbs.ErrAlreadyUnlocked)
}
