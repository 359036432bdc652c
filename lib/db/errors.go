package db

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Error Taxonomy
// --------------------------------------------------------------------------

var (
	// validation errors, checked before any state change
	ErrEmptyKey      = errors.New("key cannot be empty")
	ErrKeyTooLarge   = fmt.Errorf("key exceeds maximum size of %d bytes", MaxKeySize)
	ErrValueTooLarge = fmt.Errorf("value exceeds maximum size of %d bytes", MaxValueSize)

	// presence and absence errors
	ErrNotFound = errors.New("key not found")
	ErrConflict = errors.New("key already exists")

	// query errors
	ErrInvalidPattern = errors.New("invalid regex pattern")

	// lifecycle errors
	ErrCorrupt = errors.New("data file is corrupt")
	ErrClosed  = errors.New("database is closed")
)

// IOError reports that the persisted file could not be written.
// The in-memory state is left as it was before the failed operation.
type IOError struct {
	Op  string // the operation that failed (append, compact, backup, ...)
	Err error  // the underlying error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io failure during %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err is one of the validation errors.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyKey) || errors.Is(err, ErrKeyTooLarge) || errors.Is(err, ErrValueTooLarge)
}

// IsIOError reports whether err is (or wraps) an *IOError.
func IsIOError(err error) bool {
	var ioErr *IOError
	return errors.As(err, &ioErr)
}

// --------------------------------------------------------------------------
// Validation
// --------------------------------------------------------------------------

// ValidateKey checks the key against the key size rules.
func ValidateKey(key string) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	if len(key) > MaxKeySize {
		return ErrKeyTooLarge
	}
	return nil
}

// ValidateValue checks the value against the value size rule.
func ValidateValue(value []byte) error {
	if len(value) > MaxValueSize {
		return ErrValueTooLarge
	}
	return nil
}

// ValidatePair checks both key and value.
func ValidatePair(key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	return ValidateValue(value)
}
