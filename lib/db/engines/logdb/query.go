package logdb

import (
	"fmt"
	"github.com/ValentinKolb/kvd/lib/db"
	"regexp"
	"time"
)

// --------------------------------------------------------------------------
// Query Operations
// --------------------------------------------------------------------------

// List returns the keys starting with prefix in ascending byte order, at most limit
// keys if limit > 0.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (ldb *logDBImpl) List(prefix string, limit int) []string {
	ldb.mu.RLock()
	defer ldb.mu.RUnlock()

	if ldb.closed {
		return nil
	}

	keys := make([]string, 0)
	ldb.ascendPrefix(prefix, func(e *entry) bool {
		keys = append(keys, e.key)
		return limit <= 0 || len(keys) < limit
	})
	return keys
}

// Search returns copies of the values of all keys the pattern matches, ordered by key.
// The pattern is a RE2 expression that may match anywhere in the key; anchor it with
// ^ and $ to match whole keys only.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (ldb *logDBImpl) Search(pattern string) ([][]byte, error) {
	re, err := ldb.compile(pattern)
	if err != nil {
		return nil, err
	}

	ldb.mu.RLock()
	defer ldb.mu.RUnlock()

	if ldb.closed {
		return nil, db.ErrClosed
	}

	values := make([][]byte, 0)
	ldb.index.Ascend(func(e *entry) bool {
		if re.MatchString(e.key) {
			values = append(values, cloneBytes(e.value))
		}
		return true
	})
	return values, nil
}

// compile returns the compiled pattern, from the cache if possible.
// *regexp.Regexp is safe for concurrent use, so cached values are shared.
func (ldb *logDBImpl) compile(pattern string) (*regexp.Regexp, error) {
	if cached, ok := ldb.patterns.Get(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", db.ErrInvalidPattern, err)
	}

	ldb.patterns.Add(pattern, re)
	return re, nil
}

// --------------------------------------------------------------------------
// Statistics
// --------------------------------------------------------------------------

// Stats returns a consistent snapshot of the key set statistics together with the
// independently counted number of operations.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (ldb *logDBImpl) Stats() db.Stats {
	ldb.mu.RLock()
	stats := db.Stats{
		TotalKeys:      ldb.index.Len(),
		TotalSizeBytes: ldb.totalSize,
		UptimeSeconds:  uint64(ldb.now().Sub(ldb.startTime) / time.Second),
		StaleRecords:   ldb.records - ldb.index.Len(),
		DbType:         db.ImplLogDB,
	}
	if !ldb.closed {
		stats.FileSizeBytes = ldb.file.Size()
	}
	ldb.mu.RUnlock()

	// the counter has its own lock
	stats.OperationsCount = ldb.ops.Load()

	return stats
}
