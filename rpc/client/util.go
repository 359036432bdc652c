package client

import (
	"fmt"
	"github.com/ValentinKolb/kvd/lib/store"
	"github.com/ValentinKolb/kvd/rpc/common"
	"github.com/ValentinKolb/kvd/rpc/serializer"
	"github.com/ValentinKolb/kvd/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc/client")
)

// rpcClientAdapter is a struct that stores all data needed for an implementation of an RPC client
// Used by the RPCStore with composition pattern
type rpcClientAdapter struct {
	shardId    uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invokeRPCRequest is a helper function used for all RPC Clients to send requests
// It takes a shard ID, a request message, a transport layer and a serializer as parameters
// It returns a response message and an error if any occurs
// This method also checks if the response is an error response and if the type of the response is the expected type.
// Every returned error is a *store.Error: errors of the remote store keep their code,
// failures of the transport or the serializer are reported as RetCInternalError.
func invokeRPCRequest(shardId uint64, req *common.Message, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer) (*common.Message, error) {
	// Serialize the request
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("RPC IStoreAdapter - failed to serialize request: %s", err))
	}

	// Send the request
	respBytes, err := transport.Send(shardId, reqBytes)
	if err != nil {
		Logger.Debugf("%s request to shard %d failed: %v", req.MsgType, shardId, err)
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("RPC IStoreAdapter - transport error: %s", err))
	}

	// Deserialize the response
	resp := &common.Message{}
	err = serializer.Deserialize(respBytes, resp)
	if err != nil {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("RPC IStoreAdapter - failed to deserialize response: %s", err))
	}

	// Check if the response is an error response
	if err := resp.Error(); err != nil {
		return nil, err
	}
	if resp.MsgType == common.MsgTError {
		return nil, store.NewError(store.RetCInternalError, "RPC IStoreAdapter - error response without message")
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("RPC IStoreAdapter - Unexpected message type: %s, expected %s", resp.MsgType, req.MsgType))
	}

	// Return the response
	return resp, nil
}
