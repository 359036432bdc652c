// Package http implements the RPC transport over plain HTTP. Every request is a
// POST /{shardId} with the serialized message as body, the response body is the
// serialized answer. Use it where only HTTP can pass (proxies, load balancers),
// the tcp and unix transports are faster.
//
// The client balances requests round robin over all endpoints and moves to the next
// endpoint on retry. A plain host:port endpoint gets the http:// scheme.
//
// The server shuts down gracefully on Close and logs every request at debug level.
//
// Note: this transport is unrelated to the REST API of package gateway.
package http
