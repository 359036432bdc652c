package logdb

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/kvd/lib/db"
	"github.com/ValentinKolb/kvd/lib/db/aof"
	"github.com/ValentinKolb/kvd/lib/db/record"
	"github.com/ValentinKolb/kvd/lib/db/util"
	"github.com/google/btree"
	lru "github.com/hashicorp/golang-lru"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/afero"
	"sync"
	"time"
)

var Logger = logger.GetLogger("logdb")

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	defaultPath                 = "kvstore.db" // Default data file
	defaultAutoCompactThreshold = 1000         // Stale records that trigger a compaction
	defaultPatternCacheSize     = 128          // Compiled regular expressions kept in memory
	btreeDegree                 = 32           // Degree of the key index
)

// --------------------------------------------------------------------------
// Core LogDB database structure
// --------------------------------------------------------------------------

// entry is the in-memory state of one key. Entries are stored by pointer in the
// index, fields other than key may be changed in place while holding the write lock.
type entry struct {
	key         string
	value       []byte
	createdAt   int64 // unix nanoseconds
	updatedAt   int64 // unix nanoseconds
	accessCount uint64
}

func lessEntry(a, b *entry) bool {
	return a.key < b.key
}

// pivot returns a search item for key.
func pivot(key string) *entry {
	return &entry{key: key}
}

// logDBImpl keeps all entries in an ordered in-memory index and every mutation in an
// append-only data file. A single RWMutex guards index and file: mutations hold the
// write lock across the durable append and the in-memory change.
type logDBImpl struct {
	mu        sync.RWMutex
	file      *aof.File
	index     *btree.BTreeG[*entry]
	totalSize int64 // sum of all value lengths
	records   int   // records in the data file
	closed    bool

	ops       util.OpsCounter
	patterns  *lru.Cache
	threshold int
	backupDir string
	fs        afero.Fs
	startTime time.Time
	now       func() time.Time
}

// DBOptions configures the logDBImpl behavior during initialization
type DBOptions struct {
	Path                 string   // Path of the data file (empty = kvstore.db)
	BackupDir            string   // Directory for backups (empty = directory of the data file)
	Fs                   afero.Fs // File system (nil = operating system)
	NoSync               bool     // Skip fsync after each append (only for tests and benchmarks)
	AutoCompactThreshold int      // Stale records that trigger an automatic compaction (0 = off)
	PatternCacheSize     int      // Number of compiled search patterns to cache (0 = default)
}

// DefaultOptions returns the default logDBImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		Path:                 defaultPath,
		AutoCompactThreshold: defaultAutoCompactThreshold,
		PatternCacheSize:     defaultPatternCacheSize,
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewLogDB opens the data file (creating it if needed), replays it into memory and
// returns the database. Fails with db.ErrCorrupt if the file is damaged anywhere but
// at its tail, and with aof.ErrLocked if another process uses the file.
//
// Thread-safety: This function is not thread-safe and should only be called once
// per data file during initialization.
func NewLogDB(opts *DBOptions) (db.KVDB, error) {

	// Generate default options if not provided
	if opts == nil {
		opts = DefaultOptions()
	}
	path := opts.Path
	if path == "" {
		path = defaultPath
	}
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	cacheSize := opts.PatternCacheSize
	if cacheSize <= 0 {
		cacheSize = defaultPatternCacheSize
	}

	patterns, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}

	file, err := aof.Open(path, aof.Options{Fs: fs, NoSync: opts.NoSync})
	if err != nil {
		return nil, err
	}

	newDB := &logDBImpl{
		file:      file,
		index:     btree.NewG[*entry](btreeDegree, lessEntry),
		patterns:  patterns,
		threshold: opts.AutoCompactThreshold,
		backupDir: opts.BackupDir,
		fs:        fs,
		now:       time.Now,
	}

	// Rebuild the in-memory state
	count, err := file.Replay(newDB.apply)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	newDB.records = count
	newDB.startTime = newDB.now()

	Logger.Infof("opened %s: %d keys, %d records, %d bytes", path, newDB.index.Len(), count, file.Size())

	return newDB, nil
}

// apply folds one replayed record into the in-memory state. Later records supersede
// earlier ones, a tombstone removes the key and a touch of a missing key is ignored.
func (ldb *logDBImpl) apply(rec record.Record) error {
	switch rec.Op {
	case record.OpPut:
		ldb.insert(&entry{
			key:         rec.Key,
			value:       rec.Value,
			createdAt:   rec.CreatedAt,
			updatedAt:   rec.UpdatedAt,
			accessCount: rec.AccessCount,
		})
	case record.OpDelete:
		ldb.remove(rec.Key)
	case record.OpDeleteBatch:
		for _, key := range rec.Keys {
			ldb.remove(key)
		}
	case record.OpTouch:
		if e, ok := ldb.index.Get(pivot(rec.Key)); ok {
			e.accessCount = rec.AccessCount
		}
	default:
		return fmt.Errorf("%w: unknown record %s", db.ErrCorrupt, rec)
	}
	return nil
}

// insert adds or replaces e in the index and keeps totalSize in sync.
func (ldb *logDBImpl) insert(e *entry) {
	if old, replaced := ldb.index.ReplaceOrInsert(e); replaced {
		ldb.totalSize -= int64(len(old.value))
	}
	ldb.totalSize += int64(len(e.value))
}

// remove deletes key from the index and keeps totalSize in sync.
func (ldb *logDBImpl) remove(key string) {
	if old, ok := ldb.index.Delete(pivot(key)); ok {
		ldb.totalSize -= int64(len(old.value))
	}
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get returns a copy of the value and increments the access count of the entry.
// The new access count is persisted before it becomes visible.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
// It takes the write lock because it changes the access count.
func (ldb *logDBImpl) Get(key string) ([]byte, error) {
	if err := db.ValidateKey(key); err != nil {
		return nil, err
	}

	ldb.mu.Lock()
	defer ldb.mu.Unlock()

	if ldb.closed {
		return nil, db.ErrClosed
	}

	e, ok := ldb.index.Get(pivot(key))
	if !ok {
		return nil, db.ErrNotFound
	}

	accessCount := e.accessCount + 1
	if err := ldb.append(record.Touch(key, accessCount)); err != nil {
		return nil, err
	}
	e.accessCount = accessCount

	value := make([]byte, len(e.value))
	copy(value, e.value)

	ldb.maybeCompact()
	return value, nil
}

// Exists reports whether key is present. Invalid keys are never present.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (ldb *logDBImpl) Exists(key string) bool {
	if db.ValidateKey(key) != nil {
		return false
	}

	ldb.mu.RLock()
	defer ldb.mu.RUnlock()

	if ldb.closed {
		return false
	}

	return ldb.index.Has(pivot(key))
}

// Info returns the metadata of key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (ldb *logDBImpl) Info(key string) (db.Metadata, error) {
	if err := db.ValidateKey(key); err != nil {
		return db.Metadata{}, err
	}

	ldb.mu.RLock()
	defer ldb.mu.RUnlock()

	if ldb.closed {
		return db.Metadata{}, db.ErrClosed
	}

	e, ok := ldb.index.Get(pivot(key))
	if !ok {
		return db.Metadata{}, db.ErrNotFound
	}

	return db.Metadata{
		Size:        len(e.value),
		CreatedAt:   time.Unix(0, e.createdAt),
		UpdatedAt:   time.Unix(0, e.updatedAt),
		AccessCount: e.accessCount,
	}, nil
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Create inserts a new entry with created = updated = now and an access count of 0.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (ldb *logDBImpl) Create(key string, value []byte) error {
	if err := db.ValidatePair(key, value); err != nil {
		return err
	}

	ldb.mu.Lock()
	defer ldb.mu.Unlock()

	if ldb.closed {
		return db.ErrClosed
	}

	if ldb.index.Has(pivot(key)) {
		return db.ErrConflict
	}

	now := ldb.now().UnixNano()
	e := &entry{
		key:       key,
		value:     cloneBytes(value),
		createdAt: now,
		updatedAt: now,
	}

	if err := ldb.append(record.Put(key, e.value, e.createdAt, e.updatedAt, e.accessCount)); err != nil {
		return err
	}
	ldb.insert(e)
	ldb.ops.Inc()

	ldb.maybeCompact()
	return nil
}

// Update replaces the value of an existing entry and sets its update time to now.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (ldb *logDBImpl) Update(key string, value []byte) error {
	if err := db.ValidatePair(key, value); err != nil {
		return err
	}

	ldb.mu.Lock()
	defer ldb.mu.Unlock()

	if ldb.closed {
		return db.ErrClosed
	}

	old, ok := ldb.index.Get(pivot(key))
	if !ok {
		return db.ErrNotFound
	}

	if err := ldb.put(old, key, value); err != nil {
		return err
	}
	ldb.ops.Inc()

	ldb.maybeCompact()
	return nil
}

// Delete removes an entry.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (ldb *logDBImpl) Delete(key string) error {
	if err := db.ValidateKey(key); err != nil {
		return err
	}

	ldb.mu.Lock()
	defer ldb.mu.Unlock()

	if ldb.closed {
		return db.ErrClosed
	}

	if !ldb.index.Has(pivot(key)) {
		return db.ErrNotFound
	}

	if err := ldb.append(record.Delete(key)); err != nil {
		return err
	}
	ldb.remove(key)
	ldb.ops.Inc()

	ldb.maybeCompact()
	return nil
}

// DeletePrefix removes every key starting with prefix. The keys are collected and
// removed under one write lock and persisted as a single batch record, so the
// prefix delete is atomic with respect to all other operations and to crashes.
// An empty prefix removes all keys.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (ldb *logDBImpl) DeletePrefix(prefix string) (int, error) {
	ldb.mu.Lock()
	defer ldb.mu.Unlock()

	if ldb.closed {
		return 0, db.ErrClosed
	}

	// a prefix longer than any valid key cannot match
	if len(prefix) > db.MaxKeySize {
		return 0, nil
	}

	var keys []string
	ldb.ascendPrefix(prefix, func(e *entry) bool {
		keys = append(keys, e.key)
		return true
	})
	if len(keys) == 0 {
		return 0, nil
	}

	if err := ldb.append(record.DeleteBatch(keys)); err != nil {
		return 0, err
	}
	for _, key := range keys {
		ldb.remove(key)
	}
	ldb.ops.Add(uint64(len(keys)))

	ldb.maybeCompact()
	return len(keys), nil
}

// BatchSet creates or overwrites every pair on its own. Invalid pairs and pairs that
// fail to persist are skipped, already applied pairs are kept. An overwrite keeps the
// creation time and access count of the existing entry.
//
// Thread-safety: This method is thread-safe and can be called concurrently. Other
// operations may interleave between two pairs.
func (ldb *logDBImpl) BatchSet(pairs []db.Pair) int {
	count := 0
	for _, pair := range pairs {
		if err := db.ValidatePair(pair.Key, pair.Value); err != nil {
			Logger.Debugf("batch: skipping key %q: %v", pair.Key, err)
			continue
		}
		if err := ldb.upsert(pair.Key, pair.Value); err != nil {
			if errors.Is(err, db.ErrClosed) {
				break
			}
			Logger.Warningf("batch: failed to write key %q: %v", pair.Key, err)
			continue
		}
		count++
	}
	return count
}

// upsert applies one pair of a batch under the write lock.
func (ldb *logDBImpl) upsert(key string, value []byte) error {
	ldb.mu.Lock()
	defer ldb.mu.Unlock()

	if ldb.closed {
		return db.ErrClosed
	}

	old, _ := ldb.index.Get(pivot(key))
	if err := ldb.put(old, key, value); err != nil {
		return err
	}
	ldb.ops.Inc()

	ldb.maybeCompact()
	return nil
}

// put persists and applies a new value for key. old is the current entry or nil.
//
// Thread-safety: The caller must hold the write lock.
func (ldb *logDBImpl) put(old *entry, key string, value []byte) error {
	now := ldb.now().UnixNano()
	e := &entry{
		key:       key,
		value:     cloneBytes(value),
		createdAt: now,
		updatedAt: now,
	}
	if old != nil {
		e.createdAt = old.createdAt
		e.accessCount = old.accessCount
	}

	if err := ldb.append(record.Put(key, e.value, e.createdAt, e.updatedAt, e.accessCount)); err != nil {
		return err
	}
	ldb.insert(e)
	return nil
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Close syncs and closes the data file. The database cannot be used afterwards.
//
// Thread-safety: This method is thread-safe. It waits for running operations.
func (ldb *logDBImpl) Close() error {
	ldb.mu.Lock()
	defer ldb.mu.Unlock()

	if ldb.closed {
		return db.ErrClosed
	}
	ldb.closed = true
	ldb.patterns.Purge()

	if err := ldb.file.Close(); err != nil {
		return &db.IOError{Op: "close", Err: err}
	}

	Logger.Infof("closed %s", ldb.file.Path())
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// append durably writes rec. Nothing is changed in memory if it fails.
//
// Thread-safety: The caller must hold the write lock.
func (ldb *logDBImpl) append(rec record.Record) error {
	if err := ldb.file.Append(rec); err != nil {
		Logger.Errorf("failed to append %s: %v", rec, err)
		return &db.IOError{Op: "append", Err: err}
	}
	ldb.records++
	return nil
}

// ascendPrefix calls fn for every entry whose key starts with prefix, in key order,
// until fn returns false.
//
// Thread-safety: The caller must hold the read or write lock.
func (ldb *logDBImpl) ascendPrefix(prefix string, fn func(e *entry) bool) {
	ldb.index.AscendGreaterOrEqual(pivot(prefix), func(e *entry) bool {
		if len(e.key) < len(prefix) || e.key[:len(prefix)] != prefix {
			return false
		}
		return fn(e)
	})
}

func cloneBytes(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
