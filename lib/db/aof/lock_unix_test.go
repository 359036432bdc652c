//go:build unix

package aof_test

import (
	"github.com/ValentinKolb/kvd/lib/db/aof"
	"github.com/ValentinKolb/kvd/lib/db/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"path/filepath"
	"testing"
)

func TestAOF_Lock(t *testing.T) {
	p := filepath.Join(t.TempDir(), "kv.db")

	f, err := aof.Open(p, aof.Options{})
	require.NoError(t, err)

	_, err = aof.Open(p, aof.Options{})
	assert.ErrorIs(t, err, aof.ErrLocked)

	// the lock moves with the file on rewrite
	require.NoError(t, f.Rewrite(func(emit func(record.Record) error) error { return nil }))
	_, err = aof.Open(p, aof.Options{})
	assert.ErrorIs(t, err, aof.ErrLocked)

	require.NoError(t, f.Close())

	f, err = aof.Open(p, aof.Options{})
	require.NoError(t, err)
	require.NoError(t, f.Close())
}
