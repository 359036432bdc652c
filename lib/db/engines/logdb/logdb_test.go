package logdb

import (
	"errors"
	"github.com/ValentinKolb/kvd/lib/db"
	"github.com/ValentinKolb/kvd/lib/db/aof"
	"github.com/ValentinKolb/kvd/lib/db/record"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"
)

// --------------------------------------------------------------------------
// Faulty file system
// --------------------------------------------------------------------------

var errDiskFull = errors.New("no space left on device")

// faultyFs fails every write and sync of its files while failing is set.
type faultyFs struct {
	afero.Fs
	failing *atomic.Bool
}

func (fs faultyFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	f, err := fs.Fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return faultyFile{File: f, failing: fs.failing}, nil
}

type faultyFile struct {
	afero.File
	failing *atomic.Bool
}

func (f faultyFile) Write(p []byte) (int, error) {
	if f.failing.Load() {
		// half of the record reaches the file
		n, _ := f.File.Write(p[:len(p)/2])
		return n, errDiskFull
	}
	return f.File.Write(p)
}

func (f faultyFile) Sync() error {
	if f.failing.Load() {
		return errDiskFull
	}
	return f.File.Sync()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func openMem(t *testing.T, fs afero.Fs, threshold int) *logDBImpl {
	t.Helper()
	kv, err := NewLogDB(&DBOptions{Path: "/data/kvstore.db", Fs: fs, AutoCompactThreshold: threshold})
	require.NoError(t, err)
	return kv.(*logDBImpl)
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestLogDB_IOFailureRollback(t *testing.T) {
	failing := &atomic.Bool{}
	fs := faultyFs{Fs: afero.NewMemMapFs(), failing: failing}

	kv := openMem(t, fs, 0)
	require.NoError(t, kv.Create("a", []byte("1")))
	require.NoError(t, kv.Create("p:1", []byte("x")))
	_, err := kv.Get("a")
	require.NoError(t, err)

	before, err := kv.Info("a")
	require.NoError(t, err)
	statsBefore := kv.Stats()

	failing.Store(true)

	err = kv.Create("b", []byte("2"))
	assert.True(t, db.IsIOError(err), "got %v", err)
	assert.False(t, kv.Exists("b"))

	err = kv.Update("a", []byte("changed"))
	assert.True(t, db.IsIOError(err), "got %v", err)

	_, err = kv.Get("a")
	assert.True(t, db.IsIOError(err), "got %v", err)

	err = kv.Delete("a")
	assert.True(t, db.IsIOError(err), "got %v", err)
	assert.True(t, kv.Exists("a"))

	n, err := kv.DeletePrefix("p:")
	assert.True(t, db.IsIOError(err), "got %v", err)
	assert.Zero(t, n)
	assert.True(t, kv.Exists("p:1"))

	assert.Zero(t, kv.BatchSet([]db.Pair{{Key: "c", Value: []byte("3")}}))
	assert.False(t, kv.Exists("c"))

	// nothing changed in memory
	after, err := kv.Info("a")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	statsAfter := kv.Stats()
	assert.Equal(t, statsBefore.TotalKeys, statsAfter.TotalKeys)
	assert.Equal(t, statsBefore.TotalSizeBytes, statsAfter.TotalSizeBytes)
	assert.Equal(t, statsBefore.OperationsCount, statsAfter.OperationsCount)
	assert.Equal(t, statsBefore.FileSizeBytes, statsAfter.FileSizeBytes)

	// nothing changed on disk either
	failing.Store(false)
	require.NoError(t, kv.Create("d", []byte("4")))
	require.NoError(t, kv.Close())

	kv = openMem(t, fs, 0)
	defer kv.Close()

	assert.Equal(t, []string{"a", "d", "p:1"}, kv.List("", 0))
	meta, err := kv.Info("a")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), meta.AccessCount)
	assert.Equal(t, 1, meta.Size)
}

func TestLogDB_CompactionFailureKeepsData(t *testing.T) {
	failing := &atomic.Bool{}
	fs := faultyFs{Fs: afero.NewMemMapFs(), failing: failing}

	kv := openMem(t, fs, 0)
	defer kv.Close()

	require.NoError(t, kv.Create("a", []byte("1")))
	require.NoError(t, kv.Update("a", []byte("2")))

	failing.Store(true)
	err := kv.Compact()
	assert.True(t, db.IsIOError(err), "got %v", err)
	failing.Store(false)

	assert.Equal(t, 1, kv.Stats().StaleRecords)
	v, err := kv.Get("a")
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), v)

	exists, err := afero.Exists(fs, "/data/kvstore.db.compact.tmp")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLogDB_AutoCompaction(t *testing.T) {
	fs := afero.NewMemMapFs()

	kv := openMem(t, fs, 5)
	defer kv.Close()

	require.NoError(t, kv.Create("a", []byte("v")))
	for i := 0; i < 4; i++ {
		require.NoError(t, kv.Update("a", []byte("v")))
	}
	assert.Equal(t, 4, kv.Stats().StaleRecords)

	// the fifth stale record triggers the compaction
	require.NoError(t, kv.Update("a", []byte("final")))
	stats := kv.Stats()
	assert.Zero(t, stats.StaleRecords)
	assert.Equal(t, int64(record.HeaderSize+record.Put("a", []byte("final"), 0, 0, 0).Size()), stats.FileSizeBytes)
}

func TestLogDB_TornTailRecovery(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/data/kvstore.db"

	kv := openMem(t, fs, 0)
	require.NoError(t, kv.Create("a", []byte("1")))
	require.NoError(t, kv.Create("b", []byte("2")))
	require.NoError(t, kv.Close())

	// a crash in the middle of an append leaves a partial record
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	partial := record.Put("c", []byte("3"), 1, 1, 0).Encode()
	require.NoError(t, afero.WriteFile(fs, path, append(data, partial[:7]...), 0644))

	kv = openMem(t, fs, 0)
	defer kv.Close()

	assert.Equal(t, []string{"a", "b"}, kv.List("", 0))
	assert.Equal(t, int64(len(data)), kv.Stats().FileSizeBytes)
	require.NoError(t, kv.Create("c", []byte("3")))
}

func TestLogDB_CorruptFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/data/kvstore.db"

	kv := openMem(t, fs, 0)
	require.NoError(t, kv.Create("a", []byte("1")))
	require.NoError(t, kv.Create("b", []byte("2")))
	require.NoError(t, kv.Close())

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	// damage the value of the first record
	data[record.HeaderSize+record.Put("a", []byte("1"), 0, 0, 0).Size()-1] ^= 0xff
	require.NoError(t, afero.WriteFile(fs, path, data, 0644))

	_, err = NewLogDB(&DBOptions{Path: path, Fs: fs})
	assert.ErrorIs(t, err, db.ErrCorrupt)

	require.NoError(t, afero.WriteFile(fs, path, []byte("garbage!!"), 0644))
	_, err = NewLogDB(&DBOptions{Path: path, Fs: fs})
	assert.ErrorIs(t, err, db.ErrCorrupt)
}

func TestLogDB_Timestamps(t *testing.T) {
	fs := afero.NewMemMapFs()
	kv := openMem(t, fs, 0)
	defer kv.Close()

	clock := time.Unix(1700000000, 0)
	kv.now = func() time.Time { return clock }
	kv.startTime = clock

	require.NoError(t, kv.Create("k", []byte("v")))
	clock = clock.Add(time.Minute)
	require.NoError(t, kv.Update("k", []byte("v2")))

	meta, err := kv.Info("k")
	require.NoError(t, err)
	assert.True(t, meta.CreatedAt.Equal(time.Unix(1700000000, 0)))
	assert.True(t, meta.UpdatedAt.Equal(time.Unix(1700000060, 0)))

	clock = clock.Add(time.Hour)
	assert.Equal(t, uint64(3660), kv.Stats().UptimeSeconds)
}

func TestLogDB_BackupDir(t *testing.T) {
	fs := afero.NewMemMapFs()

	kv, err := NewLogDB(&DBOptions{Path: "/data/kvstore.db", BackupDir: "/backups", Fs: fs})
	require.NoError(t, err)
	impl := kv.(*logDBImpl)
	impl.now = func() time.Time { return time.Unix(1700000000, 0) }
	defer kv.Close()

	require.NoError(t, kv.Create("k", []byte("v")))

	path, err := kv.Backup()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/backups", "kvstore_backup_1700000000.db"), path)

	require.NoError(t, kv.Update("k", []byte("v2")))

	second, err := kv.Backup()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/backups", "kvstore_backup_1700000000_1.db"), second)

	backup, err := NewLogDB(&DBOptions{Path: path, Fs: fs})
	require.NoError(t, err)
	defer backup.Close()
	value, err := backup.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), value)

	newer, err := NewLogDB(&DBOptions{Path: second, Fs: fs})
	require.NoError(t, err)
	defer newer.Close()
	value, err = newer.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), value)
}

func TestLogDB_Locked(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file locking is not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "kvstore.db")

	kv, err := NewLogDB(&DBOptions{Path: path})
	require.NoError(t, err)

	_, err = NewLogDB(&DBOptions{Path: path})
	assert.ErrorIs(t, err, aof.ErrLocked)

	require.NoError(t, kv.Close())

	kv, err = NewLogDB(&DBOptions{Path: path})
	require.NoError(t, err)
	require.NoError(t, kv.Close())
}
