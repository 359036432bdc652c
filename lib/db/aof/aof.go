package aof

import (
	"bufio"
	"errors"
	"fmt"
	"github.com/ValentinKolb/kvd/lib/db"
	"github.com/ValentinKolb/kvd/lib/db/record"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/afero"
	"io"
	"os"
	"path/filepath"
)

var Logger = logger.GetLogger("aof")

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	compactSuffix = ".compact.tmp" // suffix of the file written by Rewrite
	backupSuffix  = ".tmp"         // suffix of the file written by Snapshot
	bufferSize    = 1024 * 1024    // 1 MB buffer for replay, rewrite and snapshot
)

// ErrLocked is returned by Open if another process holds the data file.
var ErrLocked = errors.New("data file is locked by another process")

// --------------------------------------------------------------------------
// Append-only file
// --------------------------------------------------------------------------

// Options configures an append-only file.
type Options struct {
	Fs     afero.Fs // File system to use (nil = operating system)
	NoSync bool     // Skip fsync after appends (only for tests and benchmarks)
}

// File is an append-only data file of records.
// The caller is responsible for serializing access: File itself is not thread-safe.
type File struct {
	fs     afero.Fs
	path   string
	file   afero.File
	size   int64 // offset of the end of the last complete record
	noSync bool
	unlock func() error
}

// Open opens (or creates) the data file at path. A new file gets a header, an existing
// file is checked for a valid header. A leftover file of an interrupted Rewrite is removed.
// The file is locked for exclusive use by this process until Close is called.
//
// Thread-safety: This function is not thread-safe and should only be called once per path.
func Open(path string, opts Options) (*File, error) {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	// remove leftovers of an interrupted compaction, the live file is still the old one
	if err := fs.Remove(path + compactSuffix); err == nil {
		Logger.Warningf("removed incomplete compaction file %s", path+compactSuffix)
	}

	file, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}

	unlock, err := lockFile(file)
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	f := &File{
		fs:     fs,
		path:   path,
		file:   file,
		noSync: opts.NoSync,
		unlock: unlock,
	}

	info, err := file.Stat()
	if err != nil {
		_ = f.close()
		return nil, err
	}

	// Case new file -> write header
	if info.Size() == 0 {
		if err := record.WriteHeader(file); err != nil {
			_ = f.close()
			return nil, err
		}
		if err := f.sync(); err != nil {
			_ = f.close()
			return nil, err
		}
		f.size = int64(record.HeaderSize)
		return f, nil
	}

	// Case existing file -> verify header
	if err := record.ReadHeader(io.NewSectionReader(file, 0, info.Size())); err != nil {
		_ = f.close()
		return nil, fmt.Errorf("%w: %s: %v", db.ErrCorrupt, path, err)
	}
	f.size = info.Size()
	if _, err := file.Seek(f.size, io.SeekStart); err != nil {
		_ = f.close()
		return nil, err
	}

	return f, nil
}

// Path returns the path of the data file.
func (f *File) Path() string {
	return f.path
}

// Size returns the size of the data file in bytes.
func (f *File) Size() int64 {
	return f.size
}

// --------------------------------------------------------------------------
// Replay
// --------------------------------------------------------------------------

// Replay reads all records from the start of the file and calls fn for each of them in
// file order. It returns the number of records read.
//
// A record that ends the file early or whose checksum fails as the last record of the
// file is a torn write: it is cut off and replay ends successfully. Any other damage
// returns db.ErrCorrupt. After Replay the file is positioned for appending.
func (f *File) Replay(fn func(rec record.Record) error) (int, error) {
	if f.file == nil {
		return 0, db.ErrClosed
	}

	info, err := f.file.Stat()
	if err != nil {
		return 0, err
	}
	fileSize := info.Size()

	br := bufio.NewReaderSize(io.NewSectionReader(f.file, int64(record.HeaderSize), fileSize-int64(record.HeaderSize)), bufferSize)
	offset := int64(record.HeaderSize)
	count := 0

	for {
		rec, n, err := record.Decode(br)

		// Case end of file
		if err == io.EOF {
			break
		}

		// Case torn write at the end of the file
		if errors.Is(err, record.ErrTruncated) || (errors.Is(err, record.ErrChecksum) && offset+int64(n) == fileSize) {
			Logger.Warningf("%s: torn record at offset %d (%v), truncating %d bytes", f.path, offset, err, fileSize-offset)
			if err := f.file.Truncate(offset); err != nil {
				return count, err
			}
			if err := f.sync(); err != nil {
				return count, err
			}
			fileSize = offset
			break
		}

		// Case damaged record inside the file
		if err != nil {
			return count, fmt.Errorf("%w: %s: offset %d: %v", db.ErrCorrupt, f.path, offset, err)
		}

		if err := fn(rec); err != nil {
			return count, err
		}

		offset += int64(n)
		count++
	}

	f.size = fileSize
	if _, err := f.file.Seek(f.size, io.SeekStart); err != nil {
		return count, err
	}

	Logger.Debugf("%s: replayed %d records (%d bytes)", f.path, count, f.size)
	return count, nil
}

// --------------------------------------------------------------------------
// Append
// --------------------------------------------------------------------------

// Append writes one record and syncs the file. When Append returns nil the record
// survives a crash. On error the file is cut back to its previous size, so a failed
// record never becomes visible to a later Replay.
func (f *File) Append(rec record.Record) error {
	if f.file == nil {
		return db.ErrClosed
	}

	buf := rec.Encode()

	n, err := f.file.Write(buf)
	if err == nil && n != len(buf) {
		err = io.ErrShortWrite
	}
	if err == nil {
		err = f.sync()
	}
	if err != nil {
		f.rollback()
		return err
	}

	f.size += int64(n)
	return nil
}

// rollback cuts the file back to the last acknowledged record.
func (f *File) rollback() {
	if err := f.file.Truncate(f.size); err != nil {
		Logger.Errorf("%s: failed to roll back partial write: %v", f.path, err)
		return
	}
	if _, err := f.file.Seek(f.size, io.SeekStart); err != nil {
		Logger.Errorf("%s: failed to reposition after rollback: %v", f.path, err)
	}
}

// --------------------------------------------------------------------------
// Rewrite (compaction)
// --------------------------------------------------------------------------

// Rewrite replaces the content of the data file with the records produced by each.
// The new content is written to a temporary file, synced and atomically renamed over
// the data file. If Rewrite fails the old data file stays active and unchanged.
func (f *File) Rewrite(each func(emit func(rec record.Record) error) error) error {
	if f.file == nil {
		return db.ErrClosed
	}

	tmpPath := f.path + compactSuffix
	tmp, err := f.fs.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	// lock the new file before it becomes the live file
	unlock, err := lockFile(tmp)
	if err != nil {
		_ = tmp.Close()
		_ = f.fs.Remove(tmpPath)
		return err
	}

	abort := func(cause error) error {
		_ = unlock()
		_ = tmp.Close()
		_ = f.fs.Remove(tmpPath)
		return cause
	}

	// Write header and records
	bw := bufio.NewWriterSize(tmp, bufferSize)
	if err := record.WriteHeader(bw); err != nil {
		return abort(err)
	}
	size := int64(record.HeaderSize)
	buf := make([]byte, 0, 4096)

	err = each(func(rec record.Record) error {
		buf = rec.AppendTo(buf[:0])
		n, err := bw.Write(buf)
		size += int64(n)
		return err
	})
	if err != nil {
		return abort(err)
	}

	// Flush and sync before the rename, the rename must never expose a partial file
	if err := bw.Flush(); err != nil {
		return abort(err)
	}
	if err := tmp.Sync(); err != nil {
		return abort(err)
	}

	// Atomically replace the live file
	if err := f.fs.Rename(tmpPath, f.path); err != nil {
		return abort(err)
	}
	f.syncDir(filepath.Dir(f.path))

	// The renamed file is now the live file, release the old one
	if err := f.unlock(); err != nil {
		Logger.Warningf("%s: failed to unlock replaced file: %v", f.path, err)
	}
	if err := f.file.Close(); err != nil {
		Logger.Warningf("%s: failed to close replaced file: %v", f.path, err)
	}

	f.file = tmp
	f.unlock = unlock
	f.size = size

	return nil
}

// --------------------------------------------------------------------------
// Snapshot (backup)
// --------------------------------------------------------------------------

// Snapshot writes a copy of the data file to dst. The copy is written to a temporary
// file and renamed, so dst is either absent or complete. The copy is a valid data file
// on its own.
func (f *File) Snapshot(dst string) error {
	if f.file == nil {
		return db.ErrClosed
	}

	// make sure the copy contains everything that was acknowledged
	if err := f.file.Sync(); err != nil {
		return err
	}

	tmpPath := dst + backupSuffix
	out, err := f.fs.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	abort := func(cause error) error {
		_ = out.Close()
		_ = f.fs.Remove(tmpPath)
		return cause
	}

	bw := bufio.NewWriterSize(out, bufferSize)
	if _, err := io.Copy(bw, io.NewSectionReader(f.file, 0, f.size)); err != nil {
		return abort(err)
	}
	if err := bw.Flush(); err != nil {
		return abort(err)
	}
	if err := out.Sync(); err != nil {
		return abort(err)
	}
	if err := out.Close(); err != nil {
		_ = f.fs.Remove(tmpPath)
		return err
	}

	if err := f.fs.Rename(tmpPath, dst); err != nil {
		_ = f.fs.Remove(tmpPath)
		return err
	}
	f.syncDir(filepath.Dir(dst))

	return nil
}

// --------------------------------------------------------------------------
// Close
// --------------------------------------------------------------------------

// Close syncs, unlocks and closes the data file.
func (f *File) Close() error {
	if f.file == nil {
		return db.ErrClosed
	}
	syncErr := f.file.Sync()
	if err := f.close(); err != nil {
		return err
	}
	return syncErr
}

func (f *File) close() error {
	if err := f.unlock(); err != nil {
		Logger.Warningf("%s: failed to unlock: %v", f.path, err)
	}
	err := f.file.Close()
	f.file = nil
	return err
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func (f *File) sync() error {
	if f.noSync {
		return nil
	}
	return f.file.Sync()
}

// syncDir makes a rename in dir durable. Failures are logged only: the rename itself
// already happened and the content of both files is complete.
func (f *File) syncDir(dir string) {
	if f.noSync {
		return
	}
	d, err := f.fs.Open(dir)
	if err != nil {
		Logger.Warningf("failed to open directory %s for sync: %v", dir, err)
		return
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		Logger.Warningf("failed to sync directory %s: %v", dir, err)
	}
}
