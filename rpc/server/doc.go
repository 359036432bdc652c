// Package server implements the RPC server of the key-value store.
// It provides the adapter that maps RPC requests to store operations, along with the
// core server implementation that manages shards and request routing.
//
// The package focuses on:
//   - Server-side RPC request handling for all store operations
//   - Adapter pattern to decouple application logic from RPC mechanisms
//   - Multiple independent shards per process, each a store over its own data file
//   - Request metrics (count, failures by return code, duration) per shard and operation
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that processes incoming requests against a store.IStore.
//
//   - NewIStoreServerAdapter: Factory function creating an adapter for key-value
//     store operations, translating RPC requests to store.IStore method calls. Errors
//     are sent with their store.RetCode, so the client can rebuild them.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport and serializer mechanisms. NewRPCServerWithFactory allows to replace
//     the store of each shard (e.g. in-memory file systems for tests).
//
// Usage Example:
//
//	// Create server configuration
//	config := common.ServerConfig{
//	  Shards: []common.ServerShard{
//	    {ShardID: 100, Path: "/var/lib/kvd/users.db"},
//	    {ShardID: 200, Path: "/var/lib/kvd/sessions.db"},
//	  },
//	  AutoCompactThreshold: 1000,
//	  TimeoutSecond: 5,
//	  Transport: common.TransportConfig{Endpoint: "0.0.0.0:8080"},
//	  LogLevel: "info",
//	}
//
//	// Create and start the server
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPServerTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//	defer s.Close()
//
//	// Start the server
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Metrics:
//
//	kvd_requests_total{shard,op}, kvd_request_errors_total{shard,op,code},
//	kvd_request_duration_seconds{shard,op} (histogram) and the gauges kvd_keys,
//	kvd_value_bytes, kvd_file_bytes and kvd_stale_records per shard. They are
//	written by WritePrometheus, the gateway exports them at /metrics.
//
// Thread Safety:
//
//	The server implementation is thread-safe and can handle concurrent requests
//	across multiple connections. Each request is processed independently.
//	Serve and Close are not thread-safe and should be called only once.
package server
