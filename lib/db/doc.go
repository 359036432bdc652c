// Package db defines the contract of a persistent, single-node key-value database.
// It contains the KVDB interface, the shared data types (Metadata, Pair, Stats),
// the error taxonomy and the validation rules every implementation applies.
//
// The package focuses on:
//   - A unified interface for point reads and writes, prefix and pattern queries
//   - Durable mutations: a write is acknowledged only after it reached the data file
//   - Typed errors that callers can test with errors.Is / errors.As
//
// Key Components:
//
//   - KVDB Interface: Get, Exists, Info, Create, Update, Delete, DeletePrefix,
//     BatchSet, List, Search, Compact, Backup, Stats and Close.
//
//   - Errors: ErrEmptyKey, ErrKeyTooLarge and ErrValueTooLarge are validation
//     errors and are returned before any state change. ErrNotFound and ErrConflict
//     are presence failures and never touch the data file. ErrInvalidPattern is
//     returned by Search for patterns that do not compile. *IOError wraps every
//     failure of the data file; the in-memory state is rolled back (or was never
//     changed) when it is returned.
//
//   - Limits: keys are 1 to MaxKeySize bytes, values 0 to MaxValueSize bytes.
//
// Note on Concurrency:
//   - Implementations must make the in-memory change and the durable write of a
//     mutation atomic with respect to all other operations: no caller ever observes
//     a mutation that has not been persisted.
//   - Compact and Backup hold exclusive access for their entire duration.
//
// Note on Operation Counting:
//   - Stats.OperationsCount increases by one per applied key mutation (create, update,
//     delete; DeletePrefix adds the number of removed keys, BatchSet the number of
//     applied pairs). Reads never increase it.
//
// Related Packages:
//
// The record package (github.com/ValentinKolb/kvd/lib/db/record) defines the on-disk
// record format. The aof package (github.com/ValentinKolb/kvd/lib/db/aof) implements
// the append-only data file. The engines/logdb package
// (github.com/ValentinKolb/kvd/lib/db/engines/logdb) implements KVDB on top of both.
//
// The testing package (github.com/ValentinKolb/kvd/lib/db/testing) provides
// standardized tests and benchmarks for database implementations that satisfy the db.KVDB interface.
//   - RunKVDBTests: Runs a standardized test suite to validate implementations
//   - RunKVDBBenchmarks: Provides performance benchmarks for comparing implementations
package db
