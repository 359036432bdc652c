package db

import (
	"time"
)

// --------------------------------------------------------------------------
// Limits
// --------------------------------------------------------------------------

const (
	MaxKeySize   = 256              // Maximum key length in bytes
	MaxValueSize = 10 * 1024 * 1024 // Maximum value length in bytes (10 MB)
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplLogDB Implementation = "logdb"
)

// Metadata describes a single entry without its value.
type Metadata struct {
	Size        int       `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	AccessCount uint64    `json:"access_count"`
}

// Pair is a key-value pair used for batch writes.
type Pair struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

// Stats are aggregate statistics of a database instance.
// TotalKeys and TotalSizeBytes are taken at a single instant, OperationsCount is read
// from an independent counter and may be a few operations ahead or behind.
type Stats struct {
	TotalKeys       int            `json:"total_keys"`
	TotalSizeBytes  int64          `json:"total_size_bytes"`
	OperationsCount uint64         `json:"operations_count"`
	UptimeSeconds   uint64         `json:"uptime_seconds"`
	FileSizeBytes   int64          `json:"file_size_bytes"`
	StaleRecords    int            `json:"stale_records"`
	DbType          Implementation `json:"db_type"`
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines the interface of a persistent key-value database.
// Every mutation is durable once the method returns without error. Validation,
// presence and absence failures never touch the persisted file and leave the
// database unchanged. Errors are the sentinels of this package (see errors.go)
// or an *IOError when the persisted file could not be written.
type KVDB interface {

	// --------------------------------------------------------------------------
	// Read Operations
	// --------------------------------------------------------------------------

	// Get returns a copy of the value stored for key and increments its access count.
	// Returns ErrNotFound if the key does not exist.
	Get(key string) (value []byte, err error)

	// Exists reports whether key is present. It never fails and has no side effects.
	Exists(key string) (ok bool)

	// Info returns the metadata of key. Returns ErrNotFound if the key does not exist.
	Info(key string) (meta Metadata, err error)

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Create inserts a new entry. Returns ErrConflict if the key already exists.
	Create(key string, value []byte) (err error)

	// Update replaces the value of an existing entry. Returns ErrNotFound if the key does not exist.
	Update(key string, value []byte) (err error)

	// Delete removes an entry. Returns ErrNotFound if the key does not exist.
	Delete(key string) (err error)

	// DeletePrefix removes every key starting with prefix as one atomic operation
	// and returns the number of removed keys.
	DeletePrefix(prefix string) (count int, err error)

	// BatchSet creates or overwrites every pair independently. Invalid pairs and
	// pairs that could not be persisted are skipped. Returns the number of applied pairs.
	BatchSet(pairs []Pair) (count int)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// List returns the keys starting with prefix in ascending byte order.
	// A limit <= 0 means no limit.
	List(prefix string, limit int) (keys []string)

	// Search returns the values of all keys matched by the regular expression pattern,
	// ordered by key. Returns ErrInvalidPattern if the pattern does not compile.
	Search(pattern string) (values [][]byte, err error)

	// --------------------------------------------------------------------------
	// Maintenance Operations
	// --------------------------------------------------------------------------

	// Compact rewrites the persisted file to the minimal representation of the
	// current state. Blocks all other operations while running.
	Compact() (err error)

	// Backup writes a consistent copy of the persisted file and returns its path.
	// Blocks all other operations while running.
	Backup() (path string, err error)

	// Stats returns aggregate statistics.
	Stats() (stats Stats)

	// Close syncs and closes the persisted file. Any later call fails with ErrClosed.
	Close() (err error)
}
