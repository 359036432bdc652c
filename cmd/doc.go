// Package cmd implements the command-line interface of the kvd key-value store.
// It provides a hierarchical command structure with operations for running the
// server and interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for key-value store operations (get, create, update, list, search, perf, ...)
//   - serve: Command for starting and configuring the kvd server and its HTTP gateway
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set as environment variable KVD_<FLAG> (dashes become
// underscores) or in a .env / .env.local file.
//
// See kvd -help for a list of all commands.
package cmd
