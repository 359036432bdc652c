// Package store provides a high-level interface for key-value storage operations
// with unified error handling. It serves as an abstraction layer over the lower-level
// db.KVDB implementations and over remote stores reached through the rpc packages.
//
// The package focuses on:
//   - A unified interface (IStore) for key-value operations across different backends
//   - Pluggable storage backend architecture through DBFactory pattern
//   - Error codes that survive the trip over the wire
//
// Key Components:
//
//   - IStore Interface: The core abstraction defining operations for interacting with
//     a key-value store. All implementations share this common interface, allowing
//     applications to switch between a local and a remote store without code changes.
//
//   - Error System: A structured error reporting mechanism using typed error codes
//     (RetCode) and descriptive messages. Every failure of the db package has its own
//     code and *Error unwraps back to the db sentinel (or *db.IOError), so
//     errors.Is and errors.As work the same on both sides of a connection.
//
//   - DBFactory: A function type that abstracts the creation of underlying db.KVDB
//     instances, providing dependency injection and flexible configuration of
//     storage backends.
//
// Implementations:
//
//	- Local Store (lstore): A thin implementation that directly utilizes a db.KVDB
//	  instance and translates its errors into codes.
//	  Available in the "github.com/ValentinKolb/kvd/lib/store/lstore" package.
//
//	- Remote Store (rpc/client): An implementation that forwards every call to a
//	  kvd server. Available in the "github.com/ValentinKolb/kvd/rpc/client" package.
package store
