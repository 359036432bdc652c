// Package unix implements the RPC transport over Unix domain sockets for clients on
// the same machine. It uses the framed stream transport of package base.
//
// The endpoint is the socket path (a unix:// prefix is accepted by the client). On
// Listen a stale socket file of a previous run is removed, any other file at that
// path is left alone and Listen fails. Frame buffers default to 64 KB.
package unix
