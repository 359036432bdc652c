package transport

import (
	"github.com/ValentinKolb/kvd/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc answers one serialized request for a shard. It is called
// concurrently and must always return a response (errors are encoded in it).
type ServerHandleFunc func(shardId uint64, req []byte) (resp []byte)

// IRPCServerTransport receives requests for the server
type IRPCServerTransport interface {
	// RegisterHandler sets the function every request is passed to.
	// It must be called before Listen.
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport layer and listens for incoming requests.
	// It blocks until Close is called (returns nil) or the listener fails.
	Listen(config common.ServerConfig) error
	// Close stops the listener and makes Listen return
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport sends requests of the client
type IRPCClientTransport interface {
	// Connect opens the connections to the endpoints of the config. It fails only if no
	// endpoint is reachable.
	Connect(config common.ClientConfig) error
	// Send delivers a request for a shard and waits for its response. Failed attempts are
	// retried up to TransportConfig.RetryCount times. Safe for concurrent use.
	Send(shardId uint64, req []byte) (resp []byte, err error)
	// Close closes all connections. Pending and later calls of Send fail.
	Close() error
}
