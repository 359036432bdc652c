// Package gateway exposes the stores of a kvd process over a plain REST API.
//
// The gateway is an alternative to the RPC client for tools that only speak HTTP
// (curl, browsers, monitoring). It serves the same operations as the RPC server, values
// are sent as raw request and response bodies. Errors are mapped from their
// store.RetCode to a http status (NotFound 404, Conflict 409, validation 400).
//
// Every response carries an X-Request-ID header. Request counts and durations per route
// are exported at /metrics together with the metrics of the RPC server and the process.
//
// Usage Example:
//
//	gw := gateway.NewGateway(rpcServer, gateway.Options{
//		DefaultShard: 1,
//		Metrics:      []func(io.Writer){rpcServer.WritePrometheus},
//	})
//	go gw.Listen(":8080")
//	defer gw.Close()
//
//	// curl -X POST localhost:8080/kv/user:1 -d 'alice'
//	// curl localhost:8080/kv/user:1/info
package gateway
