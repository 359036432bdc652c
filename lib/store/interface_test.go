package store

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/kvd/lib/db"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestCodeOf(t *testing.T) {
	cases := map[error]RetCode{
		nil:                                      RetCSuccess,
		db.ErrNotFound:                           RetCNotFound,
		db.ErrConflict:                           RetCConflict,
		db.ErrEmptyKey:                           RetCEmptyKey,
		db.ErrKeyTooLarge:                        RetCKeyTooLarge,
		db.ErrValueTooLarge:                      RetCValueTooLarge,
		fmt.Errorf("%w: x", db.ErrInvalidPattern): RetCInvalidPattern,
		db.ErrClosed:                             RetCClosed,
		&db.IOError{Op: "append", Err: errors.New("disk full")}: RetCIOFailure,
		errors.New("something else"):                            RetCInternalError,
		NewError(RetCConflict, "remote"):                        RetCConflict,
	}

	for err, code := range cases {
		assert.Equal(t, code, CodeOf(err), "error %v", err)
	}
}

func TestError_Unwrap(t *testing.T) {
	err := FromDBError(db.ErrNotFound)
	assert.ErrorIs(t, err, db.ErrNotFound)
	assert.Contains(t, err.Error(), "NotFound")

	err = FromDBError(&db.IOError{Op: "append", Err: errors.New("disk full")})
	assert.True(t, db.IsIOError(err))
	assert.Contains(t, err.Error(), "disk full")

	// codes survive a round trip through code and message only
	remote := NewError(CodeOf(db.ErrKeyTooLarge), "too large")
	assert.ErrorIs(t, remote, db.ErrKeyTooLarge)
	assert.True(t, db.IsValidationError(remote))

	assert.Nil(t, FromDBError(nil))
	assert.Nil(t, NewError(RetCInternalError, "x").Unwrap())
}
