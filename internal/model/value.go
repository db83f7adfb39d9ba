package model

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
)

// Value is a sealed interface over the primitive kinds a long-tier fact can
// carry. Only VString, VDouble, VInt, VDate, VBool and VJSON implement it.
//
// The storage layer decomposes a Value into the sparse nullable columns
// (ValChr, ValDbl, ValInt, ValDate); in memory it is always a single tagged
// variant so callers never see the column-per-type encoding.
type Value interface {
	fieldValue() // sealed
}

// VString is a string-typed field value.
type VString string

func (VString) fieldValue() {}

// VDouble is a double-typed field value.
type VDouble float64

func (VDouble) fieldValue() {}

// VInt is an integer-typed field value.
type VInt int64

func (VInt) fieldValue() {}

// VDate is a date-typed field value.
type VDate Date

func (VDate) fieldValue() {}

// VBool is a boolean field value. Stored in the integer column as 0/1.
type VBool bool

func (VBool) fieldValue() {}

// VJSON is a json-typed field value holding the raw document text.
// Stored in the string column.
type VJSON string

func (VJSON) fieldValue() {}

// DataType enumerates the declared primitive type of a field.
type DataType string

const (
	TypeString DataType = "chr"
	TypeDouble DataType = "dbl"
	TypeInt    DataType = "int"
	TypeDate   DataType = "date"
	TypeJSON   DataType = "json"
	TypeBool   DataType = "lgl"
)

// ParseDataType validates a stored data type token.
func ParseDataType(s string) (DataType, error) {
	switch DataType(s) {
	case TypeString, TypeDouble, TypeInt, TypeDate, TypeJSON, TypeBool:
		return DataType(s), nil
	}
	return "", fmt.Errorf("unknown data type %q", s)
}

// StorageCells is the column-per-type decomposition of a Value, matching the
// long-tier table layout. Exactly one cell is Valid for a non-nil Value.
type StorageCells struct {
	Chr  sql.NullString
	Dbl  sql.NullFloat64
	Int  sql.NullInt64
	Date sql.NullString // ISO date
}

// Decompose maps a Value onto its storage cells.
// A nil Value produces all-null cells (an explicit absent).
func Decompose(v Value) StorageCells {
	var c StorageCells
	switch val := v.(type) {
	case nil:
	case VString:
		c.Chr = sql.NullString{String: string(val), Valid: true}
	case VJSON:
		c.Chr = sql.NullString{String: string(val), Valid: true}
	case VDouble:
		c.Dbl = sql.NullFloat64{Float64: float64(val), Valid: true}
	case VInt:
		c.Int = sql.NullInt64{Int64: int64(val), Valid: true}
	case VBool:
		var n int64
		if val {
			n = 1
		}
		c.Int = sql.NullInt64{Int64: n, Valid: true}
	case VDate:
		c.Date = sql.NullString{String: Date(val).String(), Valid: true}
	}
	return c
}

// Compose reconstructs a Value of the declared type from storage cells.
// Returns nil when the relevant cell is null.
func Compose(c StorageCells, t DataType) (Value, error) {
	switch t {
	case TypeString:
		if !c.Chr.Valid {
			return nil, nil
		}
		return VString(c.Chr.String), nil
	case TypeJSON:
		if !c.Chr.Valid {
			return nil, nil
		}
		return VJSON(c.Chr.String), nil
	case TypeDouble:
		if !c.Dbl.Valid {
			return nil, nil
		}
		return VDouble(c.Dbl.Float64), nil
	case TypeInt:
		if !c.Int.Valid {
			return nil, nil
		}
		return VInt(c.Int.Int64), nil
	case TypeBool:
		if !c.Int.Valid {
			return nil, nil
		}
		return VBool(c.Int.Int64 != 0), nil
	case TypeDate:
		if !c.Date.Valid {
			return nil, nil
		}
		d, err := ParseDate(c.Date.String)
		if err != nil {
			return nil, fmt.Errorf("compose date value: %w", err)
		}
		return VDate(d), nil
	}
	return nil, fmt.Errorf("unknown data type %q", t)
}

// CoerceValue converts arbitrary caller input to a Value of the declared
// type. Used at the upload boundary where values arrive untyped.
func CoerceValue(in any, t DataType) (Value, error) {
	if in == nil {
		return nil, nil
	}
	switch t {
	case TypeString:
		return VString(stringify(in)), nil
	case TypeJSON:
		switch v := in.(type) {
		case string:
			return VJSON(v), nil
		default:
			b, err := json.Marshal(in)
			if err != nil {
				return nil, fmt.Errorf("coerce json value: %w", err)
			}
			return VJSON(string(b)), nil
		}
	case TypeDouble:
		switch v := in.(type) {
		case float64:
			return VDouble(v), nil
		case float32:
			return VDouble(float64(v)), nil
		case int:
			return VDouble(float64(v)), nil
		case int64:
			return VDouble(float64(v)), nil
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("coerce %q to double: %w", v, err)
			}
			return VDouble(f), nil
		}
	case TypeInt:
		switch v := in.(type) {
		case int:
			return VInt(int64(v)), nil
		case int64:
			return VInt(v), nil
		case float64:
			return VInt(int64(v)), nil
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("coerce %q to int: %w", v, err)
			}
			return VInt(n), nil
		}
	case TypeBool:
		switch v := in.(type) {
		case bool:
			return VBool(v), nil
		case int:
			return VBool(v != 0), nil
		case int64:
			return VBool(v != 0), nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("coerce %q to bool: %w", v, err)
			}
			return VBool(b), nil
		}
	case TypeDate:
		switch v := in.(type) {
		case Date:
			return VDate(v), nil
		case string:
			d, err := ParseDate(v)
			if err != nil {
				return nil, err
			}
			return VDate(d), nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %T to %s", in, t)
}

// ValueEqual compares two values for the idempotent-upsert check.
// Equality is by typed value, never by raw text.
func ValueEqual(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case VDate:
		bv, ok := b.(VDate)
		return ok && Date(av).Equal(Date(bv))
	default:
		return a == b
	}
}

// FormatValue renders a value for display and diagnostics.
func FormatValue(v Value) string {
	switch val := v.(type) {
	case nil:
		return "NA"
	case VString:
		return string(val)
	case VJSON:
		return string(val)
	case VDouble:
		return strconv.FormatFloat(float64(val), 'f', -1, 64)
	case VInt:
		return strconv.FormatInt(int64(val), 10)
	case VBool:
		return strconv.FormatBool(bool(val))
	case VDate:
		return Date(val).String()
	}
	return fmt.Sprintf("%v", v)
}

func stringify(in any) string {
	if s, ok := in.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", in)
}
