//go:build unix

package aof

import (
	"errors"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
	"os"
)

// lockFile takes an exclusive, non-blocking flock on file. Files that are not backed
// by the operating system (e.g. afero.MemMapFs) cannot be shared between processes
// and are not locked.
func lockFile(file afero.File) (func() error, error) {
	osFile, ok := file.(*os.File)
	if !ok {
		return func() error { return nil }, nil
	}

	fd := int(osFile.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrLocked
		}
		return nil, err
	}

	return func() error {
		return unix.Flock(fd, unix.LOCK_UN)
	}, nil
}
