package lstore

import (
	"errors"
	"github.com/ValentinKolb/kvd/lib/db"
	"github.com/ValentinKolb/kvd/lib/db/engines/logdb"
	"github.com/ValentinKolb/kvd/lib/store"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func newStore(t *testing.T) store.IStore {
	t.Helper()
	s, err := NewLocalStore(func() (db.KVDB, error) {
		return logdb.NewLogDB(&logdb.DBOptions{Path: "/kv/kvstore.db", Fs: afero.NewMemMapFs()})
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLocalStore_ErrorCodes(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.Create("user:1", []byte("alice")))

	err := s.Create("user:1", []byte("bob"))
	var storeErr *store.Error
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, store.RetCConflict, storeErr.Code)
	assert.ErrorIs(t, err, db.ErrConflict)

	_, err = s.Get("missing")
	assert.Equal(t, store.RetCNotFound, store.CodeOf(err))

	err = s.Update("", []byte("x"))
	assert.Equal(t, store.RetCEmptyKey, store.CodeOf(err))

	_, err = s.Search("(")
	assert.Equal(t, store.RetCInvalidPattern, store.CodeOf(err))
}

func TestLocalStore_Operations(t *testing.T) {
	s := newStore(t)

	n, err := s.BatchSet([]db.Pair{{Key: "a", Value: []byte("1")}, {Key: "", Value: []byte("2")}, {Key: "b", Value: []byte("3")}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ok, err := s.Exists("a")
	require.NoError(t, err)
	assert.True(t, ok)

	v, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	meta, err := s.Info("a")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), meta.AccessCount)

	keys, err := s.List("", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	values, err := s.Search("^b")
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("3")}, values)

	require.NoError(t, s.Update("b", []byte("4")))
	require.NoError(t, s.Compact())

	path, err := s.Backup()
	require.NoError(t, err)
	assert.Contains(t, path, "kvstore_backup_")

	n, err = s.DeletePrefix("")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.Create("c", nil))
	require.NoError(t, s.Delete("c"))

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.TotalKeys)
	assert.Equal(t, uint64(2+1+2+2), stats.OperationsCount)
}
