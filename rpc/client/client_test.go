package client

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/kvd/lib/db"
	"github.com/ValentinKolb/kvd/lib/store"
	"github.com/ValentinKolb/kvd/rpc/common"
	"github.com/ValentinKolb/kvd/rpc/serializer"
	"github.com/ValentinKolb/kvd/rpc/server"
	"github.com/ValentinKolb/kvd/rpc/transport/unix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"path/filepath"
	"testing"
	"time"
)

var testSerializers = map[string]func() serializer.IRPCSerializer{
	"JSON":   serializer.NewJSONSerializer,
	"GOB":    serializer.NewGOBSerializer,
	"Binary": serializer.NewBinarySerializer,
}

// startServer serves one shard over a unix socket and returns the connected client
func startServer(t *testing.T, newSerializer func() serializer.IRPCSerializer) store.IStore {
	dir := t.TempDir()
	socket := filepath.Join(dir, "kvd.sock")

	config := common.ServerConfig{
		Shards:        []common.ServerShard{{ShardID: 1, Path: filepath.Join(dir, "kvstore.db")}},
		NoSync:        true,
		TimeoutSecond: 5,
		Transport:     common.TransportConfig{Endpoint: socket},
		LogLevel:      "info",
	}
	s := server.NewRPCServer(config, unix.NewUnixServerTransport(), newSerializer())
	require.NoError(t, s.Init())

	done := make(chan error, 1)
	go func() { done <- s.Serve() }()
	t.Cleanup(func() {
		assert.NoError(t, s.Close())
		<-done
	})

	clientConfig := common.ClientConfig{
		TimeoutSecond: 5,
		Transport:     common.TransportConfig{Endpoints: []string{socket}, RetryCount: 2},
	}

	var st store.IStore
	require.Eventually(t, func() bool {
		var err error
		st, err = NewRPCStore(1, clientConfig, unix.NewUnixClientTransport(), newSerializer())
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	t.Cleanup(func() { _ = st.Close() })

	return st
}

func TestRPCStore(t *testing.T) {
	for name, newSerializer := range testSerializers {
		t.Run(name, func(t *testing.T) {
			st := startServer(t, newSerializer)

			// Create, conflict and read
			require.NoError(t, st.Create("user:1", []byte("alice")))
			err := st.Create("user:1", []byte("again"))
			assert.True(t, errors.Is(err, db.ErrConflict), "got %v", err)
			assert.Equal(t, store.RetCConflict, store.CodeOf(err))

			value, err := st.Get("user:1")
			require.NoError(t, err)
			assert.Equal(t, []byte("alice"), value)

			// empty values survive the round trip
			require.NoError(t, st.Create("empty", []byte{}))
			value, err = st.Get("empty")
			require.NoError(t, err)
			assert.NotNil(t, value)
			assert.Empty(t, value)

			// validation errors keep their code
			err = st.Create("", []byte("x"))
			assert.True(t, errors.Is(err, db.ErrEmptyKey), "got %v", err)

			ok, err := st.Exists("user:1")
			require.NoError(t, err)
			assert.True(t, ok)

			meta, err := st.Info("user:1")
			require.NoError(t, err)
			assert.Equal(t, 5, meta.Size)
			assert.Equal(t, uint64(1), meta.AccessCount)

			// Update and delete
			require.NoError(t, st.Update("user:1", []byte("alice2")))
			err = st.Update("missing", []byte("x"))
			assert.True(t, errors.Is(err, db.ErrNotFound), "got %v", err)
			require.NoError(t, st.Delete("empty"))

			// Batch, list and search
			count, err := st.BatchSet([]db.Pair{
				{Key: "user:2", Value: []byte("bob")},
				{Key: "user:3", Value: []byte("carol")},
			})
			require.NoError(t, err)
			assert.Equal(t, 2, count)

			keys, err := st.List("user:", 0)
			require.NoError(t, err)
			assert.Equal(t, []string{"user:1", "user:2", "user:3"}, keys)

			keys, err = st.List("nothing:", 0)
			require.NoError(t, err)
			assert.NotNil(t, keys)
			assert.Empty(t, keys)

			values, err := st.Search(`^user:[12]$`)
			require.NoError(t, err)
			assert.Equal(t, [][]byte{[]byte("alice2"), []byte("bob")}, values)

			_, err = st.Search(`[`)
			assert.True(t, errors.Is(err, db.ErrInvalidPattern), "got %v", err)

			// Maintenance
			require.NoError(t, st.Compact())
			path, err := st.Backup()
			require.NoError(t, err)
			assert.Contains(t, path, "kvstore_backup_")

			stats, err := st.Stats()
			require.NoError(t, err)
			assert.Equal(t, 3, stats.TotalKeys)
			assert.Equal(t, db.ImplLogDB, stats.DbType)

			deleted, err := st.DeletePrefix("user:")
			require.NoError(t, err)
			assert.Equal(t, 3, deleted)
		})
	}
}

func TestRPCStore_UnknownShard(t *testing.T) {
	st := startServer(t, serializer.NewBinarySerializer)
	remote := st.(*rpcStore)

	other := &rpcStore{rpcClientAdapter{
		shardId:    42,
		config:     remote.config,
		transport:  remote.transport,
		serializer: remote.serializer,
	}}

	_, err := other.Get("key")
	require.Error(t, err)
	assert.Equal(t, store.RetCInternalError, store.CodeOf(err))
	assert.Contains(t, err.Error(), fmt.Sprintf("shard %d not found", 42))
}
