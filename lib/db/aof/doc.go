// Package aof implements the append-only data file of the logdb engine.
//
// A data file starts with a short header (magic number and format version) followed
// by records in the format of the record package. The file is only ever appended to;
// compaction writes a new file next to it and atomically renames it into place.
//
// Key Components:
//
//   - Open: creates or opens a data file, verifies the header and takes an exclusive
//     flock so that two processes can never write the same file.
//
//   - Replay: streams every record to a callback. A torn record at the end of the file
//     (interrupted write) is cut off with a warning, any other damage is ErrCorrupt.
//
//   - Append: writes and fsyncs one record. A failed append is truncated away.
//
//   - Rewrite: writes a new file via "<path>.compact.tmp", fsyncs it and renames it
//     over the data file. An interrupted rewrite leaves the old file untouched and the
//     leftover temporary file is removed on the next Open.
//
//   - Snapshot: copies the data file to a new path via a temporary file and rename.
//
// All file access goes through an afero.Fs, so tests can run against an in-memory
// file system or inject failures.
//
// Thread-safety: File is not thread-safe. The engine serializes all calls.
package aof
