// Package transport defines how serialized messages travel between the RPC client
// and server. The transport knows nothing about stores or messages, it only carries
// byte slices tagged with the id of the target shard.
//
//   - IRPCServerTransport: accepts requests and passes them to the registered
//     ServerHandleFunc. Listen blocks until Close.
//   - IRPCClientTransport: sends a request to one of the configured endpoints and
//     waits for the response, retrying failed attempts.
//
// Implementations: tcp and unix (framed streams built on package base) and http
// (one POST per request).
package transport
