package model

import "fmt"

// StorageMode selects the physical tier backing a field.
type StorageMode string

const (
	// StorageWide is the dense one-row-per-day tier with no revision history.
	StorageWide StorageMode = "wide"
	// StorageLong is the sparse entity-attribute-value tier with full
	// bitemporal revision history.
	StorageLong StorageMode = "long"
)

// ParseStorageMode validates a stored storage-mode token.
func ParseStorageMode(s string) (StorageMode, error) {
	switch StorageMode(s) {
	case StorageWide, StorageLong:
		return StorageMode(s), nil
	}
	return "", fmt.Errorf("unknown storage mode %q", s)
}

// DateMode selects which temporal axis a read resolves against.
type DateMode string

const (
	// AsOf reconstructs the belief state as known at a past transaction date.
	AsOf DateMode = "as_of"
	// AsSeen returns the currently-held belief for a valid date.
	AsSeen DateMode = "as_seen"
)

// FillMode controls gap handling in ranged reads.
type FillMode string

const (
	// FillNA leaves gaps absent.
	FillNA FillMode = "NA"
	// FillPrevious carries the last non-absent value forward, never backward.
	FillPrevious FillMode = "P"
)

// Periodicity of a field or of a requested series.
type Periodicity string

const (
	Daily      Periodicity = "D"
	Weekly     Periodicity = "W"
	Monthly    Periodicity = "M"
	Quarterly  Periodicity = "Q"
	HalfYearly Periodicity = "HY"
	Yearly     Periodicity = "Y"
)

// Days selects the day universe for date-sequence generation.
type Days string

const (
	// NonTradingDays uses the weekday-only fallback calendar.
	NonTradingDays Days = "N"
	// CalendarDays uses raw calendar days.
	CalendarDays Days = "C"
	// TradingDays uses the exchange's trading sessions.
	TradingDays Days = "T"
)

// Endpoint selects which boundary of a period bucket a sequence emits.
type Endpoint string

const (
	LastOf  Endpoint = "last_of"
	FirstOf Endpoint = "first_of"
)

// BDC is a business-day convention for adjusting off-calendar dates.
type BDC string

const (
	Following         BDC = "Following"
	ModifiedFollowing BDC = "ModifiedFollowing"
	Preceding         BDC = "Preceding"
	ModifiedPreceding BDC = "ModifiedPreceding"
	Unadjusted        BDC = "Unadjusted"
)

// IDKind selects how caller-supplied identifiers are resolved.
type IDKind string

const (
	ByID     IDKind = "id"
	ByTicker IDKind = "ticker"
	ByVendor IDKind = "blp"
)

// FxMode is the FX treatment declared on a field.
type FxMode string

const (
	// FxNone means the field is not currency-denominated.
	FxNone FxMode = ""
	// FxMoney fields divide by the cross rate.
	FxMoney FxMode = "money"
	// FxReturn fields compose returns: (v+1)/(r+1)-1.
	FxReturn FxMode = "return"
)

// Security is the identity record for one instrument. The internal Id is
// immutable and owned exclusively by the store.
type Security struct {
	ID              int64
	Ticker          string
	SecurityType    string
	Currency        string
	ExchangeCode    string
	VendorTicker    string
	InceptionDate   Date // zero = unknown
	TerminationDate Date // zero = still live
	IsActive        bool
}

// ActiveOn reports whether the security's lifecycle window covers dt.
func (s Security) ActiveOn(dt Date) bool {
	if !s.InceptionDate.IsZero() && dt.Before(s.InceptionDate) {
		return false
	}
	if !s.TerminationDate.IsZero() && dt.After(s.TerminationDate) {
		return false
	}
	return true
}

// FieldDef describes one logical field.
type FieldDef struct {
	ID           int64
	Mnemonic     string
	DataType     DataType
	StorageMode  StorageMode
	StorageTable string
	// StorageColumn is the physical column for wide-tier fields;
	// empty for long-tier fields, which are keyed by FieldId.
	StorageColumn string
	Periodicity   Periodicity
	FxMode        FxMode
	// Query-family flags: which operations may serve this field.
	Point   bool // point-in-time reads
	History bool // ranged reads
	Dataset bool // event-dataset reads
	Upload  bool // writes
}

// FieldMapping overrides the physical source for a (field, security type)
// pair. Lower Priority wins; at most one mapping may apply after ordering.
type FieldMapping struct {
	FieldID      int64
	SecurityType string
	SourceTable  string
	SourceColumn string
	Priority     int
}

// Fact is one revisioned long-tier row.
type Fact struct {
	SecurityID int64
	FieldID    int64
	ValidDate  Date
	TxnDate    Date
	Current    bool
	Value      Value
}

// Override is a user-asserted correction that outranks stored values for its
// exact (entity, field, valid date) key.
type Override struct {
	SecurityID int64
	FieldID    int64
	ValidDate  Date
	Value      Value
	Reason     string
	Author     string
}

// Observation is one resolved point in a series: the value plus its
// provenance annotation after override merging.
type Observation struct {
	SecurityID int64
	Field      string
	ValidDate  Date
	Value      Value
	// Overridden marks values replaced by the override layer; Reason and
	// Author carry the override's provenance.
	Overridden bool
	Reason     string
	Author     string
	// Filled marks values carried forward by the fill policy rather than
	// observed on ValidDate.
	Filled bool
}

// EventRecord is one event-fact row (dividend, corporate event or
// adjustment factor), keyed by a surrogate id with no current-flag
// revision semantics.
type EventRecord struct {
	ID            string
	SecurityID    int64
	Ticker        string
	EffectiveDate Date
	TxnDate       Date
	Type          string
	Status        string
	Payload       map[string]Value
}
