// Package common provides core data structures and utilities shared across
// the key-value server, its clients and the gateway. It defines the wire
// message, configuration structures and the logger used by other packages.
//
// The package focuses on:
//   - Message protocol definition for client/server communication
//   - Configuration structures for client and server components
//   - Custom logging implementation on top of Dragonboat's logger facade
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication between components,
//     with a flexible structure that adapts to different operation types.
//     Includes factory methods for creating request and response messages. A
//     response carries the error text and its store.RetCode, so Message.Error
//     rebuilds an error that unwraps to the db sentinel on the client side.
//
//   - MessageType: Enumeration defining all supported operation types, categorized
//     into read, write, query and maintenance operations plus control messages.
//
//   - ServerConfig: Configuration of a server process: the shards (one data file
//     each), engine options, transport settings and the optional HTTP gateway.
//
//   - ClientConfig: Configuration for client components, controlling connection
//     parameters, timeouts, and retry behavior.
//
//   - Logger: Custom logging implementation that plugs into Dragonboat's
//     logger package while providing consistent formatting across the application.
package common
