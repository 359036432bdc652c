package logdb

import (
	"fmt"
	"github.com/ValentinKolb/kvd/lib/db"
	"github.com/ValentinKolb/kvd/lib/db/record"
	"github.com/spf13/afero"
	"path/filepath"
	"strings"
)

// --------------------------------------------------------------------------
// Compaction
// --------------------------------------------------------------------------

// Compact rewrites the data file so that it holds exactly one put record per live key,
// in ascending key order. Tombstones, touches and superseded puts are dropped.
//
// Thread-safety: This method is thread-safe. It holds the write lock for its whole
// duration and blocks all other operations.
func (ldb *logDBImpl) Compact() error {
	ldb.mu.Lock()
	defer ldb.mu.Unlock()

	if ldb.closed {
		return db.ErrClosed
	}

	return ldb.compact()
}

// compact rewrites the data file from the index.
//
// Thread-safety: The caller must hold the write lock.
func (ldb *logDBImpl) compact() error {
	before := ldb.file.Size()

	err := ldb.file.Rewrite(func(emit func(rec record.Record) error) error {
		var err error
		ldb.index.Ascend(func(e *entry) bool {
			err = emit(record.Put(e.key, e.value, e.createdAt, e.updatedAt, e.accessCount))
			return err == nil
		})
		return err
	})
	if err != nil {
		Logger.Errorf("compaction of %s failed: %v", ldb.file.Path(), err)
		return &db.IOError{Op: "compact", Err: err}
	}

	ldb.records = ldb.index.Len()

	Logger.Infof("compacted %s: %d keys, %d -> %d bytes", ldb.file.Path(), ldb.records, before, ldb.file.Size())
	return nil
}

// maybeCompact compacts the data file once the number of stale records reaches the
// configured threshold. The triggering mutation is already durable, so a failure is
// only logged.
//
// Thread-safety: The caller must hold the write lock.
func (ldb *logDBImpl) maybeCompact() {
	if ldb.threshold <= 0 || ldb.records-ldb.index.Len() < ldb.threshold {
		return
	}

	if err := ldb.compact(); err != nil {
		Logger.Warningf("automatic compaction failed: %v", err)
	}
}

// --------------------------------------------------------------------------
// Backup
// --------------------------------------------------------------------------

// Backup copies the data file to "<stem>_backup_<unix-seconds><ext>" in the backup
// directory and returns the path of the copy. The copy is a valid data file. A second
// backup within the same second gets a "_<n>" suffix instead of replacing the first.
//
// Thread-safety: This method is thread-safe. It holds the write lock for its whole
// duration and blocks all other operations.
func (ldb *logDBImpl) Backup() (string, error) {
	ldb.mu.Lock()
	defer ldb.mu.Unlock()

	if ldb.closed {
		return "", db.ErrClosed
	}

	dst := ldb.backupPath()

	if err := ldb.fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", &db.IOError{Op: "backup", Err: err}
	}

	if err := ldb.file.Snapshot(dst); err != nil {
		Logger.Errorf("backup of %s failed: %v", ldb.file.Path(), err)
		return "", &db.IOError{Op: "backup", Err: err}
	}

	Logger.Infof("backup of %s written to %s", ldb.file.Path(), dst)
	return dst, nil
}

// backupPath derives an unused backup file name from the data file name and the current time.
func (ldb *logDBImpl) backupPath() string {
	path := ldb.file.Path()

	dir := ldb.backupDir
	if dir == "" {
		dir = filepath.Dir(path)
	}

	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if ext == "" {
		ext = ".db"
	}

	name := fmt.Sprintf("%s_backup_%d", stem, ldb.now().Unix())
	dst := filepath.Join(dir, name+ext)
	for n := 1; ; n++ {
		if exists, err := afero.Exists(ldb.fs, dst); err != nil || !exists {
			return dst
		}
		dst = filepath.Join(dir, fmt.Sprintf("%s_%d%s", name, n, ext))
	}
}
