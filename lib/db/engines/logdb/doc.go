// Package logdb implements a persistent key-value database (KVDB) on top of an
// append-only data file. It provides a complete implementation of the db.KVDB
// interface with a focus on durability, consistent visibility of mutations and
// ordered queries.
//
// The package focuses on:
//   - Durable mutations: every mutation is appended and fsynced before it becomes visible
//   - Crash recovery by replaying the data file, torn writes at the tail are cut off
//   - Ordered prefix listing and regular expression search over the key set
//   - Crash-safe compaction and consistent backups
//
// Key Components:
//
//   - logDBImpl: The central database structure implementing db.KVDB. It owns the
//     in-memory index, the data file and the operation counter. A single sync.RWMutex
//     guards index and data file together: mutations hold the write lock across the
//     durable append and the in-memory change, queries hold the read lock.
//
//   - Index: A B-tree (github.com/google/btree) of entries ordered by key. Every entry
//     holds the value, the creation and update time (unix nanoseconds) and the
//     access count. The ordering gives List, DeletePrefix and Search a deterministic
//     lexicographic order without sorting.
//
//   - Data File: An aof.File (github.com/ValentinKolb/kvd/lib/db/aof) with records in
//     the format of the record package: put, delete, touch and delete-batch.
//
// Internal Mechanisms:
//
//   - Write Path: A mutation is validated, checked against the index and encoded as
//     a record. The record is appended and synced. Only when the append succeeded
//     the index is changed, so a failed append (db.IOError) never leaves a change
//     in memory that is not on disk.
//
//   - Access Counting: Get increments the access count of the entry and persists the
//     new count as a touch record, so the metadata survives a restart. Get therefore
//     takes the write lock.
//
//   - Prefix Deletion: DeletePrefix collects all matching keys and persists them as one
//     delete-batch record. Replay applies the batch completely or (if it was torn)
//     not at all.
//
//   - Replay: On startup every record is applied in file order. A later put replaces
//     the whole entry, a delete removes it and a touch sets the access count of a
//     present key.
//
//   - Compaction: Every record that is not the current put of a live key is stale.
//     Compact rewrites the data file with one put per live key via a temporary file
//     and an atomic rename. With AutoCompactThreshold > 0 the database compacts itself
//     as soon as the number of stale records reaches the threshold.
//
//   - Backup: Backup copies the synced data file to "<stem>_backup_<unix-seconds>.db".
//     The copy is a standalone data file that NewLogDB can open.
//
//   - Pattern Cache: Compiled regular expressions are kept in an LRU cache
//     (github.com/hashicorp/golang-lru). Patterns use RE2 syntax and match anywhere in
//     the key unless anchored.
//
//   - Operation Counter: util.OpsCounter counts applied key mutations with its own
//     mutex; DeletePrefix counts each removed key and BatchSet each applied pair.
//
// Compact and Backup hold the write lock for their whole duration. This blocks all
// other operations while they run.
package logdb
