//go:build !unix

package aof

import "github.com/spf13/afero"

// lockFile is a no-op on platforms without flock.
func lockFile(afero.File) (func() error, error) {
	return func() error { return nil }, nil
}
