package registry

import (
	"errors"
	"fmt"
)

// Error is a field-metadata error: malformed definitions detected at load
// time, or a caller-supplied mnemonic no definition covers.
type Error struct {
	Code     ErrorCode
	Message  string
	Mnemonic string
}

// ErrorCode categorizes registry errors.
type ErrorCode string

const (
	// ErrCodeDuplicateMnemonic indicates two definitions share a mnemonic.
	// Fatal at registry load.
	ErrCodeDuplicateMnemonic ErrorCode = "DUPLICATE_MNEMONIC"

	// ErrCodeBadStorageMode indicates an unrecognized storage mode token.
	// Fatal at registry load.
	ErrCodeBadStorageMode ErrorCode = "BAD_STORAGE_MODE"

	// ErrCodeBadDataType indicates an unrecognized data type token.
	// Fatal at registry load.
	ErrCodeBadDataType ErrorCode = "BAD_DATA_TYPE"

	// ErrCodeUnknownField indicates a mnemonic with no definition.
	ErrCodeUnknownField ErrorCode = "UNKNOWN_FIELD"

	// ErrCodeAmbiguousMapping indicates two mappings tie on priority for the
	// same (field, security type). Fatal at registry load.
	ErrCodeAmbiguousMapping ErrorCode = "AMBIGUOUS_MAPPING"
)

func (e *Error) Error() string {
	if e.Mnemonic != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Mnemonic)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsUnknownField reports whether err is an unknown-field error.
// Uses errors.As to handle wrapped errors.
func IsUnknownField(err error) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == ErrCodeUnknownField
	}
	return false
}

// IsSchemaError reports whether err is a load-time metadata error.
func IsSchemaError(err error) bool {
	var re *Error
	if errors.As(err, &re) {
		switch re.Code {
		case ErrCodeDuplicateMnemonic, ErrCodeBadStorageMode, ErrCodeBadDataType, ErrCodeAmbiguousMapping:
			return true
		}
	}
	return false
}
