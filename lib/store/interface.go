package store

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/kvd/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() (db.KVDB, error)

// IStore is the generic interface for interacting with a key–value store.
// Every method returns a *Error (nil on success) whose code identifies the failure.
// *Error unwraps to the matching sentinel of the db package, so callers can use
// errors.Is(err, db.ErrNotFound) on local and remote stores alike.
type IStore interface {
	// Get returns the value for a key and increments its access count.
	Get(key string) (value []byte, err error)
	// Exists returns whether a key exists in the store.
	Exists(key string) (ok bool, err error)
	// Info returns the metadata of a key.
	Info(key string) (meta db.Metadata, err error)
	// Create inserts a new key–value pair. Fails with RetCConflict if the key exists.
	Create(key string, value []byte) (err error)
	// Update replaces the value of an existing key. Fails with RetCNotFound if the key does not exist.
	Update(key string, value []byte) (err error)
	// Delete deletes a key–value pair. Fails with RetCNotFound if the key does not exist.
	Delete(key string) (err error)
	// DeletePrefix deletes all keys starting with prefix and returns how many were deleted.
	DeletePrefix(prefix string) (count int, err error)
	// BatchSet creates or overwrites every pair independently and returns how many were applied.
	BatchSet(pairs []db.Pair) (count int, err error)
	// List returns the keys starting with prefix in ascending order (limit <= 0 = all).
	List(prefix string, limit int) (keys []string, err error)
	// Search returns the values of all keys matching the regular expression, ordered by key.
	Search(pattern string) (values [][]byte, err error)
	// Compact rewrites the data file of the store to its minimal size.
	Compact() (err error)
	// Backup writes a copy of the data file and returns its path.
	Backup() (path string, err error)
	// Stats returns aggregate statistics of the store.
	Stats() (stats db.Stats, err error)
	// Close releases the resources held by the store.
	Close() (err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("KVStoreError (code %s): %s", e.Code, e.Msg)
}

// Unwrap returns the db error that corresponds to the code.
func (e *Error) Unwrap() error {
	switch e.Code {
	case RetCNotFound:
		return db.ErrNotFound
	case RetCConflict:
		return db.ErrConflict
	case RetCEmptyKey:
		return db.ErrEmptyKey
	case RetCKeyTooLarge:
		return db.ErrKeyTooLarge
	case RetCValueTooLarge:
		return db.ErrValueTooLarge
	case RetCInvalidPattern:
		return db.ErrInvalidPattern
	case RetCIOFailure:
		return &db.IOError{Op: "store", Err: errors.New(e.Msg)}
	case RetCClosed:
		return db.ErrClosed
	default:
		return nil
	}
}

// NewError creates a new KVStoreError with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// FromDBError converts an error of a db.KVDB into a *Error with the matching code.
// It returns nil for a nil error.
func FromDBError(err error) error {
	if err == nil {
		return nil
	}

	var storeErr *Error
	if errors.As(err, &storeErr) {
		return storeErr
	}

	return NewError(CodeOf(err), err.Error())
}

// CodeOf returns the code that corresponds to err.
func CodeOf(err error) RetCode {
	var storeErr *Error
	switch {
	case err == nil:
		return RetCSuccess
	case errors.As(err, &storeErr):
		return storeErr.Code
	case errors.Is(err, db.ErrNotFound):
		return RetCNotFound
	case errors.Is(err, db.ErrConflict):
		return RetCConflict
	case errors.Is(err, db.ErrEmptyKey):
		return RetCEmptyKey
	case errors.Is(err, db.ErrKeyTooLarge):
		return RetCKeyTooLarge
	case errors.Is(err, db.ErrValueTooLarge):
		return RetCValueTooLarge
	case errors.Is(err, db.ErrInvalidPattern):
		return RetCInvalidPattern
	case errors.Is(err, db.ErrClosed):
		return RetCClosed
	case db.IsIOError(err):
		return RetCIOFailure
	default:
		return RetCInternalError
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess        RetCode = iota // 0: Command executed successfully.
	RetCInternalError                 // 1: Command failed due to an internal error.
	RetCNotFound                      // 2: The key does not exist.
	RetCConflict                      // 3: The key already exists.
	RetCEmptyKey                      // 4: The key is empty.
	RetCKeyTooLarge                   // 5: The key exceeds the maximum key size.
	RetCValueTooLarge                 // 6: The value exceeds the maximum value size.
	RetCInvalidPattern                // 7: The search pattern does not compile.
	RetCIOFailure                     // 8: The data file could not be written.
	RetCClosed                        // 9: The store is closed.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCNotFound:
		return "NotFound"
	case RetCConflict:
		return "Conflict"
	case RetCEmptyKey:
		return "EmptyKey"
	case RetCKeyTooLarge:
		return "KeyTooLarge"
	case RetCValueTooLarge:
		return "ValueTooLarge"
	case RetCInvalidPattern:
		return "InvalidPattern"
	case RetCIOFailure:
		return "IOFailure"
	case RetCClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}
