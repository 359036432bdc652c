// Package rpc contains everything needed to serve kvd stores to other processes.
//
// Subpackages:
//
//   - common: the wire Message, server and client configuration, logger setup
//   - serializer: encodes a Message as binary, JSON or gob
//   - transport: moves encoded messages between client and server (tcp, unix, http)
//   - server: owns the shards of a process and answers requests against their stores
//   - client: a store.IStore that forwards every call to a server
//   - gateway: a REST API over the same stores for HTTP-only tools
//
// A request travels client -> serializer -> transport -> server -> store and back.
// Errors keep their store.RetCode on the way, so a remote store fails exactly like a
// local one (errors.Is(err, db.ErrNotFound) works on both).
package rpc
