package aof_test

import (
	"github.com/ValentinKolb/kvd/lib/db"
	"github.com/ValentinKolb/kvd/lib/db/aof"
	"github.com/ValentinKolb/kvd/lib/db/record"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

const path = "/data/kv.db"

func openFile(t *testing.T, fs afero.Fs) *aof.File {
	t.Helper()
	f, err := aof.Open(path, aof.Options{Fs: fs})
	require.NoError(t, err)
	return f
}

func replayAll(t *testing.T, f *aof.File) []record.Record {
	t.Helper()
	var recs []record.Record
	_, err := f.Replay(func(rec record.Record) error {
		recs = append(recs, rec)
		return nil
	})
	require.NoError(t, err)
	return recs
}

func TestAOF_AppendReplay(t *testing.T) {
	fs := afero.NewMemMapFs()

	f := openFile(t, fs)
	assert.Equal(t, int64(record.HeaderSize), f.Size())
	assert.Empty(t, replayAll(t, f))

	require.NoError(t, f.Append(record.Put("a", []byte("1"), 1, 1, 0)))
	require.NoError(t, f.Append(record.Touch("a", 5)))
	require.NoError(t, f.Append(record.Delete("a")))
	require.NoError(t, f.Close())
	assert.ErrorIs(t, f.Close(), db.ErrClosed)

	f = openFile(t, fs)
	defer f.Close()

	recs := replayAll(t, f)
	require.Len(t, recs, 3)
	assert.Equal(t, record.OpPut, recs[0].Op)
	assert.Equal(t, []byte("1"), recs[0].Value)
	assert.Equal(t, record.OpTouch, recs[1].Op)
	assert.Equal(t, uint64(5), recs[1].AccessCount)
	assert.Equal(t, record.OpDelete, recs[2].Op)

	// appending after replay continues at the end of the file
	require.NoError(t, f.Append(record.Put("b", []byte("2"), 1, 1, 0)))
	require.NoError(t, f.Close())

	f = openFile(t, fs)
	defer f.Close()
	assert.Len(t, replayAll(t, f), 4)
}

func TestAOF_TornTail(t *testing.T) {
	fs := afero.NewMemMapFs()

	f := openFile(t, fs)
	require.NoError(t, f.Append(record.Put("a", []byte("1"), 1, 1, 0)))
	require.NoError(t, f.Append(record.Put("b", []byte("2"), 1, 1, 0)))
	goodSize := f.Size()
	require.NoError(t, f.Close())

	// simulate a crash in the middle of the third append
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	partial := record.Put("c", []byte("333"), 1, 1, 0).Encode()
	data = append(data, partial[:len(partial)/2]...)
	require.NoError(t, afero.WriteFile(fs, path, data, 0644))

	f = openFile(t, fs)
	defer f.Close()

	recs := replayAll(t, f)
	assert.Len(t, recs, 2)
	assert.Equal(t, goodSize, f.Size())

	info, err := fs.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, goodSize, info.Size())
}

func TestAOF_TornTailChecksum(t *testing.T) {
	fs := afero.NewMemMapFs()

	f := openFile(t, fs)
	require.NoError(t, f.Append(record.Put("a", []byte("1"), 1, 1, 0)))
	goodSize := f.Size()
	require.NoError(t, f.Append(record.Put("b", []byte("2"), 1, 1, 0)))
	require.NoError(t, f.Close())

	// damage the last byte of the last record
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, afero.WriteFile(fs, path, data, 0644))

	f = openFile(t, fs)
	defer f.Close()

	assert.Len(t, replayAll(t, f), 1)
	assert.Equal(t, goodSize, f.Size())
}

func TestAOF_CorruptRecord(t *testing.T) {
	fs := afero.NewMemMapFs()

	f := openFile(t, fs)
	require.NoError(t, f.Append(record.Put("a", []byte("1"), 1, 1, 0)))
	require.NoError(t, f.Append(record.Put("b", []byte("2"), 1, 1, 0)))
	require.NoError(t, f.Close())

	// damage the value of the first record
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	first := record.Put("a", []byte("1"), 1, 1, 0).Size()
	data[record.HeaderSize+first-1] ^= 0xff
	require.NoError(t, afero.WriteFile(fs, path, data, 0644))

	f = openFile(t, fs)
	defer f.Close()

	_, err = f.Replay(func(record.Record) error { return nil })
	assert.ErrorIs(t, err, db.ErrCorrupt)
}

func TestAOF_BadHeader(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, path, []byte("this is not a data file"), 0644))

	_, err := aof.Open(path, aof.Options{Fs: fs})
	assert.ErrorIs(t, err, db.ErrCorrupt)
}

func TestAOF_Rewrite(t *testing.T) {
	fs := afero.NewMemMapFs()

	f := openFile(t, fs)
	for i := 0; i < 10; i++ {
		require.NoError(t, f.Append(record.Put("a", []byte("value"), 1, int64(i), 0)))
	}
	before := f.Size()

	err := f.Rewrite(func(emit func(record.Record) error) error {
		return emit(record.Put("a", []byte("value"), 1, 9, 0))
	})
	require.NoError(t, err)
	assert.Less(t, f.Size(), before)

	exists, err := afero.Exists(fs, path+".compact.tmp")
	require.NoError(t, err)
	assert.False(t, exists)

	// the rewritten file stays the live file
	require.NoError(t, f.Append(record.Delete("a")))
	require.NoError(t, f.Close())

	f = openFile(t, fs)
	defer f.Close()

	recs := replayAll(t, f)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(9), recs[0].UpdatedAt)
	assert.Equal(t, record.OpDelete, recs[1].Op)
}

func TestAOF_RewriteFailureKeepsOldFile(t *testing.T) {
	fs := afero.NewMemMapFs()

	f := openFile(t, fs)
	defer f.Close()
	require.NoError(t, f.Append(record.Put("a", []byte("1"), 1, 1, 0)))
	before := f.Size()

	err := f.Rewrite(func(emit func(record.Record) error) error {
		_ = emit(record.Put("x", []byte("partial"), 1, 1, 0))
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, before, f.Size())

	exists, err := afero.Exists(fs, path+".compact.tmp")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, f.Append(record.Put("b", []byte("2"), 1, 1, 0)))
}

func TestAOF_LeftoverCompactionFile(t *testing.T) {
	fs := afero.NewMemMapFs()

	f := openFile(t, fs)
	require.NoError(t, f.Append(record.Put("a", []byte("1"), 1, 1, 0)))
	require.NoError(t, f.Close())

	require.NoError(t, afero.WriteFile(fs, path+".compact.tmp", []byte("garbage"), 0644))

	f = openFile(t, fs)
	defer f.Close()

	exists, err := afero.Exists(fs, path+".compact.tmp")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Len(t, replayAll(t, f), 1)
}

func TestAOF_Snapshot(t *testing.T) {
	fs := afero.NewMemMapFs()

	f := openFile(t, fs)
	defer f.Close()
	require.NoError(t, f.Append(record.Put("a", []byte("1"), 1, 1, 0)))
	require.NoError(t, f.Append(record.Put("b", []byte("2"), 1, 1, 0)))

	dst := "/backup/kv_backup_1.db"
	require.NoError(t, f.Snapshot(dst))

	exists, err := afero.Exists(fs, dst+".tmp")
	require.NoError(t, err)
	assert.False(t, exists)

	backup, err := aof.Open(dst, aof.Options{Fs: fs})
	require.NoError(t, err)
	defer backup.Close()
	assert.Len(t, replayAll(t, backup), 2)
}
