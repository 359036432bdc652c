package server

import (
	"github.com/ValentinKolb/kvd/lib/store"
	"github.com/ValentinKolb/kvd/rpc/common"
)

// IRPCServerAdapter translates a decoded request into calls on the store of a shard.
// It never fails itself: errors of the store (and unknown message types) are
// returned as response with Err and Code set.
type IRPCServerAdapter interface {
	Handle(req *common.Message, store store.IStore) (resp *common.Message)
}

// ShardFactory opens the store of one shard. It is called once per shard by Init.
type ShardFactory func(shard common.ServerShard) (store.IStore, error)
