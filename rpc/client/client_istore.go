package client

import (
	"encoding/json"
	"github.com/ValentinKolb/kvd/lib/db"
	"github.com/ValentinKolb/kvd/lib/store"
	"github.com/ValentinKolb/kvd/rpc/common"
	"github.com/ValentinKolb/kvd/rpc/serializer"
	"github.com/ValentinKolb/kvd/rpc/transport"
)

// NewRPCStore creates a new RPC store
// The function takes a shard ID, a config, a transport and a serializer as parameters
// It returns a store.IStore and an error
func NewRPCStore(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (store.IStore, error) {

	// Connect the transport
	err := transport.Connect(config)
	if err != nil {
		return nil, err
	}

	// Create a new RPC store
	s := rpcStore{
		rpcClientAdapter{
			shardId:    shardId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}

	// Return the RPC store
	return &s, nil
}

type rpcStore struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcStore) Get(key string) (value []byte, err error) {
	resp, err := i.invoke(common.NewGetRequest(key))
	if err != nil {
		return nil, err
	}
	if resp.Value == nil {
		return []byte{}, nil // an empty value is dropped by some serializers
	}
	return resp.Value, nil
}

func (i *rpcStore) Exists(key string) (ok bool, err error) {
	resp, err := i.invoke(common.NewExistsRequest(key))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (i *rpcStore) Info(key string) (meta db.Metadata, err error) {
	resp, err := i.invoke(common.NewInfoRequest(key))
	if err != nil {
		return db.Metadata{}, err
	}
	if err := json.Unmarshal(resp.Meta, &meta); err != nil {
		return db.Metadata{}, store.NewError(store.RetCInternalError, "RPC IStoreAdapter - invalid metadata: "+err.Error())
	}
	return meta, nil
}

func (i *rpcStore) Create(key string, value []byte) (err error) {
	_, err = i.invoke(common.NewCreateRequest(key, value))
	return err
}

func (i *rpcStore) Update(key string, value []byte) (err error) {
	_, err = i.invoke(common.NewUpdateRequest(key, value))
	return err
}

func (i *rpcStore) Delete(key string) (err error) {
	_, err = i.invoke(common.NewDeleteRequest(key))
	return err
}

func (i *rpcStore) DeletePrefix(prefix string) (count int, err error) {
	resp, err := i.invoke(common.NewDeletePrefixRequest(prefix))
	if err != nil {
		return 0, err
	}
	return int(resp.Count), nil
}

func (i *rpcStore) BatchSet(pairs []db.Pair) (count int, err error) {
	resp, err := i.invoke(common.NewBatchSetRequest(pairs))
	if err != nil {
		return 0, err
	}
	return int(resp.Count), nil
}

func (i *rpcStore) List(prefix string, limit int) (keys []string, err error) {
	resp, err := i.invoke(common.NewListRequest(prefix, limit))
	if err != nil {
		return nil, err
	}
	if resp.Keys == nil {
		return []string{}, nil
	}
	return resp.Keys, nil
}

func (i *rpcStore) Search(pattern string) (values [][]byte, err error) {
	resp, err := i.invoke(common.NewSearchRequest(pattern))
	if err != nil {
		return nil, err
	}
	if resp.Values == nil {
		return [][]byte{}, nil
	}
	return resp.Values, nil
}

func (i *rpcStore) Compact() (err error) {
	_, err = i.invoke(common.NewCompactRequest())
	return err
}

func (i *rpcStore) Backup() (path string, err error) {
	resp, err := i.invoke(common.NewBackupRequest())
	if err != nil {
		return "", err
	}
	return resp.Key, nil
}

func (i *rpcStore) Stats() (stats db.Stats, err error) {
	resp, err := i.invoke(common.NewStatsRequest())
	if err != nil {
		return db.Stats{}, err
	}
	if err := json.Unmarshal(resp.Meta, &stats); err != nil {
		return db.Stats{}, store.NewError(store.RetCInternalError, "RPC IStoreAdapter - invalid stats: "+err.Error())
	}
	return stats, nil
}

// Close closes the connection of the client, the remote store stays open
func (i *rpcStore) Close() (err error) {
	return i.transport.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (i *rpcStore) invoke(req *common.Message) (*common.Message, error) {
	return invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
}
