package writer

import (
	"errors"
	"fmt"

	"github.com/quantfold/finstore/internal/model"
)

// Error is a write rejection.
type Error struct {
	Code       ErrorCode
	Message    string
	SecurityID int64
	FieldID    int64
	ValidDate  model.Date
	TxnDate    model.Date
}

// ErrorCode categorizes write errors.
type ErrorCode string

const (
	// ErrCodeMonotonicityViolation indicates a new revision's transaction
	// date does not exceed the latest stored one for the key. The write is
	// rejected whole; stored state is untouched.
	ErrCodeMonotonicityViolation ErrorCode = "MONOTONICITY_VIOLATION"

	// ErrCodeNotWritable indicates the field is not flagged for uploads.
	ErrCodeNotWritable ErrorCode = "NOT_WRITABLE"

	// ErrCodeBadValue indicates the supplied value does not fit the field's
	// declared type.
	ErrCodeBadValue ErrorCode = "BAD_VALUE"
)

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (security=%d field=%d valid_date=%s txn_date=%s)",
		e.Code, e.Message, e.SecurityID, e.FieldID, e.ValidDate, e.TxnDate)
}

// IsMonotonicityViolation reports whether err is a transaction-date ordering
// rejection.
func IsMonotonicityViolation(err error) bool {
	var we *Error
	return errors.As(err, &we) && we.Code == ErrCodeMonotonicityViolation
}
