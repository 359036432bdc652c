package server

import (
	"fmt"
	"github.com/ValentinKolb/kvd/lib/store"
	"github.com/ValentinKolb/kvd/rpc/common"
)

func NewIStoreServerAdapter() IRPCServerAdapter {
	return &iStoreServerAdapterImpl{}
}

type iStoreServerAdapterImpl struct{}

func (adapter *iStoreServerAdapterImpl) Handle(req *common.Message, store store.IStore) *common.Message {
	// Check for nil store
	if store == nil {
		return common.NewErrorResponse("handler: store is nil")
	}

	// Handle different message types
	switch req.MsgType {

	// Read operations
	case common.MsgTKVGet:
		val, err := store.Get(req.Key)
		return common.NewGetResponse(val, err)
	case common.MsgTKVExists:
		ok, err := store.Exists(req.Key)
		return common.NewExistsResponse(ok, err)
	case common.MsgTKVInfo:
		meta, err := store.Info(req.Key)
		return common.NewInfoResponse(meta, err)

	// Write operations
	case common.MsgTKVCreate:
		return common.NewCreateResponse(store.Create(req.Key, req.Value))
	case common.MsgTKVUpdate:
		return common.NewUpdateResponse(store.Update(req.Key, req.Value))
	case common.MsgTKVDelete:
		return common.NewDeleteResponse(store.Delete(req.Key))
	case common.MsgTKVDeletePrefix:
		count, err := store.DeletePrefix(req.Key)
		return common.NewDeletePrefixResponse(count, err)
	case common.MsgTKVBatchSet:
		pairs, err := req.Pairs()
		if err != nil {
			return common.NewBatchSetResponse(0, err)
		}
		count, err := store.BatchSet(pairs)
		return common.NewBatchSetResponse(count, err)

	// Query operations
	case common.MsgTKVList:
		keys, err := store.List(req.Key, int(req.Count))
		return common.NewListResponse(keys, err)
	case common.MsgTKVSearch:
		values, err := store.Search(req.Key)
		return common.NewSearchResponse(values, err)

	// Maintenance operations
	case common.MsgTKVCompact:
		return common.NewCompactResponse(store.Compact())
	case common.MsgTKVBackup:
		path, err := store.Backup()
		return common.NewBackupResponse(path, err)
	case common.MsgTKVStats:
		stats, err := store.Stats()
		return common.NewStatsResponse(stats, err)

	default:
		return common.NewErrorResponse(
			fmt.Sprintf("RPC IStoreAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}
