// Package base implements the framed stream transport shared by the tcp and unix
// transports. The socket specific parts (listen, dial, socket options) are injected
// as IServerConnector and IClientConnector.
//
// Frame layout (big endian):
//
//	shardID u64 | requestID u64 | length u32 | payload
//
// Frames larger than 256 MB are rejected. A response carries the requestID of its
// request, so the client can have many requests in flight on one connection.
//
// Server: one goroutine reads the frames of a connection, every request is handled in
// its own goroutine (at most TransportConfig.MaxWorkersPerConn at once). Responses are
// written under a per connection lock. Read buffers come from a sync.Pool.
//
// Client: opens ConnectionsPerEndpoint connections per endpoint and picks one round
// robin per attempt. A reader goroutine per connection dispatches responses to the
// waiting requests. If a connection breaks, its pending requests fail and the
// connection is dialed again. Failed attempts are retried with exponential backoff.
//
// Thread Safety:
//
//	Send may be called concurrently. Connect and Close must not race with each other.
package base
