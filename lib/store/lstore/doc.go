// Package lstore implements a local, single-node key-value store based on the
// store.IStore interface. It is a thin wrapper around any db.KVDB implementation
// that translates the errors of the database into coded store errors.
//
// Implementation Details:
//
//   - Composition Architecture: The store follows a composition pattern where the
//     store.DBFactory factory function injects the underlying db.KVDB implementation.
//     This allows the store to work with any db.KVDB-compatible engine without modification.
//
//   - Error Translation: Every error of the database is converted with
//     store.FromDBError, so callers receive a *store.Error with a stable code that can
//     be sent over the wire.
//
// Thread Safety:
//
//	The local store adds no state of its own. The underlying db.KVDB implementation
//	provides the thread safety guarantees for the actual storage operations.
//
// Usage Example:
//
//	// Create a store with a logdb database backend
//	factory := func() (db.KVDB, error) {
//		return logdb.NewLogDB(&logdb.DBOptions{Path: "data/kvstore.db"})
//	}
//	s, err := lstore.NewLocalStore(factory)
//
//	// Store a value
//	err = s.Create("session:123", sessionData)
//
//	// Retrieve the value
//	value, err := s.Get("session:123")
package lstore
