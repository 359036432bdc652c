package server

import (
	"bytes"
	"errors"
	"fmt"
	"github.com/ValentinKolb/kvd/lib/db"
	"github.com/ValentinKolb/kvd/lib/db/engines/logdb"
	"github.com/ValentinKolb/kvd/lib/store"
	"github.com/ValentinKolb/kvd/lib/store/lstore"
	"github.com/ValentinKolb/kvd/rpc/common"
	"github.com/ValentinKolb/kvd/rpc/serializer"
	"github.com/ValentinKolb/kvd/rpc/transport"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

// fakeTransport only records the handler, requests are passed to it directly
type fakeTransport struct {
	handler transport.ServerHandleFunc
	closed  bool
}

func (f *fakeTransport) RegisterHandler(handler transport.ServerHandleFunc) { f.handler = handler }
func (f *fakeTransport) Listen(common.ServerConfig) error                   { return nil }
func (f *fakeTransport) Close() error                                       { f.closed = true; return nil }

// memFactory opens every shard on an in-memory file system
func memFactory(fs afero.Fs) ShardFactory {
	return func(shard common.ServerShard) (store.IStore, error) {
		return lstore.NewLocalStore(func() (db.KVDB, error) {
			return logdb.NewLogDB(&logdb.DBOptions{Path: shard.Path, Fs: fs, NoSync: true})
		})
	}
}

func newTestServer(t *testing.T, shards ...common.ServerShard) (*RPCServer, *fakeTransport) {
	ft := &fakeTransport{}
	config := common.ServerConfig{Shards: shards, LogLevel: "info"}
	s := NewRPCServerWithFactory(config, ft, serializer.NewBinarySerializer(), memFactory(afero.NewMemMapFs()))
	require.NoError(t, s.Init())
	t.Cleanup(func() { _ = s.Close() })
	return s, ft
}

func call(t *testing.T, ft *fakeTransport, shardId uint64, req *common.Message) common.Message {
	ser := serializer.NewBinarySerializer()
	b, err := ser.Serialize(*req)
	require.NoError(t, err)

	var resp common.Message
	require.NoError(t, ser.Deserialize(ft.handler(shardId, b), &resp))
	return resp
}

func TestRPCServer_Operations(t *testing.T) {
	_, ft := newTestServer(t, common.ServerShard{ShardID: 1, Path: "/data/one.db"})

	resp := call(t, ft, 1, common.NewCreateRequest("user:1", []byte("alice")))
	assert.Empty(t, resp.Err)

	resp = call(t, ft, 1, common.NewCreateRequest("user:1", []byte("bob")))
	assert.Equal(t, store.RetCConflict, resp.Code)
	assert.True(t, errors.Is(resp.Error(), db.ErrConflict))

	resp = call(t, ft, 1, common.NewGetRequest("user:1"))
	require.NoError(t, resp.Error())
	assert.Equal(t, []byte("alice"), resp.Value)

	resp = call(t, ft, 1, common.NewExistsRequest("user:2"))
	require.NoError(t, resp.Error())
	assert.False(t, resp.Ok)

	resp = call(t, ft, 1, common.NewBatchSetRequest([]db.Pair{
		{Key: "user:2", Value: []byte("bob")},
		{Key: "", Value: []byte("invalid")},
		{Key: "user:3", Value: []byte("carol")},
	}))
	require.NoError(t, resp.Error())
	assert.Equal(t, uint64(2), resp.Count)

	resp = call(t, ft, 1, common.NewListRequest("user:", 2))
	require.NoError(t, resp.Error())
	assert.Equal(t, []string{"user:1", "user:2"}, resp.Keys)

	resp = call(t, ft, 1, common.NewSearchRequest(`^user:[23]$`))
	require.NoError(t, resp.Error())
	assert.Equal(t, [][]byte{[]byte("bob"), []byte("carol")}, resp.Values)

	resp = call(t, ft, 1, common.NewSearchRequest(`(`))
	assert.Equal(t, store.RetCInvalidPattern, resp.Code)

	resp = call(t, ft, 1, common.NewDeletePrefixRequest("user:"))
	require.NoError(t, resp.Error())
	assert.Equal(t, uint64(3), resp.Count)

	resp = call(t, ft, 1, common.NewUpdateRequest("user:1", []byte("x")))
	assert.Equal(t, store.RetCNotFound, resp.Code)

	resp = call(t, ft, 1, common.NewStatsRequest())
	require.NoError(t, resp.Error())
	assert.Contains(t, string(resp.Meta), `"total_keys":0`)
}

func TestRPCServer_Errors(t *testing.T) {
	_, ft := newTestServer(t, common.ServerShard{ShardID: 1, Path: "/data/one.db"})

	// unknown shard
	resp := call(t, ft, 99, common.NewGetRequest("key"))
	assert.Equal(t, common.MsgTError, resp.MsgType)
	assert.Contains(t, resp.Err, "shard 99 not found")

	// undecodable request
	var decoded common.Message
	require.NoError(t, serializer.NewBinarySerializer().Deserialize(ft.handler(1, []byte{1}), &decoded))
	assert.Equal(t, common.MsgTError, decoded.MsgType)
	assert.Equal(t, store.RetCInternalError, decoded.Code)

	// unsupported message type
	resp = call(t, ft, 1, common.NewCustomRequest([]byte("x")))
	assert.Equal(t, common.MsgTError, resp.MsgType)
}

func TestRPCServer_Shards(t *testing.T) {
	s, ft := newTestServer(t,
		common.ServerShard{ShardID: 2, Path: "/data/two.db"},
		common.ServerShard{ShardID: 1, Path: "/data/one.db"},
	)
	assert.Equal(t, []uint64{1, 2}, s.ShardIDs())

	// shards are independent
	call(t, ft, 1, common.NewCreateRequest("key", []byte("one")))
	resp := call(t, ft, 2, common.NewExistsRequest("key"))
	assert.False(t, resp.Ok)

	st, ok := s.Store(1)
	require.True(t, ok)
	value, err := st.Get("key")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), value)

	_, ok = s.Store(3)
	assert.False(t, ok)
}

func TestRPCServer_InitFailures(t *testing.T) {
	ft := &fakeTransport{}

	// no shards
	s := NewRPCServerWithFactory(common.ServerConfig{}, ft, serializer.NewJSONSerializer(), memFactory(afero.NewMemMapFs()))
	assert.Error(t, s.Init())

	// duplicate shard ids
	config := common.ServerConfig{Shards: []common.ServerShard{{ShardID: 1, Path: "/a.db"}, {ShardID: 1, Path: "/b.db"}}}
	s = NewRPCServerWithFactory(config, ft, serializer.NewJSONSerializer(), memFactory(afero.NewMemMapFs()))
	assert.Error(t, s.Init())
	assert.Empty(t, s.ShardIDs())

	// failing factory closes the shards opened before
	opened := 0
	fs := afero.NewMemMapFs()
	factory := func(shard common.ServerShard) (store.IStore, error) {
		if shard.ShardID == 2 {
			return nil, fmt.Errorf("disk full")
		}
		opened++
		return memFactory(fs)(shard)
	}
	config = common.ServerConfig{Shards: []common.ServerShard{{ShardID: 1, Path: "/a.db"}, {ShardID: 2, Path: "/b.db"}}}
	s = NewRPCServerWithFactory(config, ft, serializer.NewJSONSerializer(), factory)
	err := s.Init()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, opened)
	assert.Empty(t, s.ShardIDs())
}

func TestRPCServer_CloseAndMetrics(t *testing.T) {
	s, ft := newTestServer(t, common.ServerShard{ShardID: 7, Path: "/data/seven.db"})

	call(t, ft, 7, common.NewCreateRequest("key", []byte("value")))
	call(t, ft, 7, common.NewGetRequest("missing"))

	var buf bytes.Buffer
	s.WritePrometheus(&buf)
	out := buf.String()
	assert.Contains(t, out, `kvd_requests_total{shard="7",op="create"} 1`)
	assert.Contains(t, out, `kvd_request_errors_total{shard="7",op="get",code="NotFound"} 1`)
	assert.Contains(t, out, `kvd_keys{shard="7"} 1`)

	st, _ := s.Store(7)
	require.NoError(t, s.Close())
	assert.True(t, ft.closed)
	assert.Empty(t, s.ShardIDs())

	_, err := st.Get("key")
	assert.True(t, errors.Is(err, db.ErrClosed))
}
