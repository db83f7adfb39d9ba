package snapshot

import (
	"errors"
	"fmt"

	"github.com/quantfold/finstore/internal/model"
)

// Error is a revision-resolution failure.
type Error struct {
	Code       ErrorCode
	Message    string
	SecurityID int64
	FieldID    int64
	ValidDate  model.Date
}

// ErrorCode categorizes resolver errors.
type ErrorCode string

const (
	// ErrCodeAmbiguousRevision indicates two revisions of the same key carry
	// the same transaction date, so neither can be declared the later belief.
	ErrCodeAmbiguousRevision ErrorCode = "AMBIGUOUS_REVISION"

	// ErrCodeTornCurrent indicates a key with zero or multiple current rows
	// where stored revisions exist. The schema's partial unique index blocks
	// the multiple case at write time; hitting this means an out-of-band
	// writer damaged the table.
	ErrCodeTornCurrent ErrorCode = "TORN_CURRENT"
)

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (security=%d field=%d valid_date=%s)",
		e.Code, e.Message, e.SecurityID, e.FieldID, e.ValidDate)
}

// IsAmbiguousRevision reports whether err is a transaction-date tie.
func IsAmbiguousRevision(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Code == ErrCodeAmbiguousRevision
}
