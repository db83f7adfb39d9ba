// Package calendar is the trading-calendar oracle: given an exchange code it
// produces valid session dates in a range, adjusts off-calendar dates by
// business-day convention, and generates period-boundary date sequences.
package calendar

import (
	"errors"
	"fmt"
	"time"

	"github.com/quantfold/finstore/internal/model"
)

// Error reports an unsupported exchange code or an unsatisfiable date
// request. Surfaced before any store query executes.
type Error struct {
	Code         ErrorCode
	Message      string
	ExchangeCode string
}

// ErrorCode categorizes calendar errors.
type ErrorCode string

const (
	// ErrCodeUnknownExchange indicates no calendar is registered for the code.
	ErrCodeUnknownExchange ErrorCode = "UNKNOWN_EXCHANGE"

	// ErrCodeBadSequence indicates a date sequence request that cannot be
	// satisfied (e.g. stepping past the available range).
	ErrCodeBadSequence ErrorCode = "BAD_SEQUENCE"
)

func (e *Error) Error() string {
	if e.ExchangeCode != "" {
		return fmt.Sprintf("%s: %s (exchange=%s)", e.Code, e.Message, e.ExchangeCode)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsUnknownExchange reports whether err is an unknown-exchange calendar error.
// Uses errors.As to handle wrapped errors.
func IsUnknownExchange(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeUnknownExchange
	}
	return false
}

// Calendar holds the session rule for one exchange: weekdays minus the
// listed holidays. Immutable after construction; safe for concurrent use.
type Calendar struct {
	mic      string
	holidays map[string]bool // ISO dates
}

// exchangeMIC maps store exchange codes to MIC calendar identifiers.
// WD is the weekday-only fallback used by the non-trading day policy.
var exchangeMIC = map[string]string{
	"US": "XNYS",
	"LN": "XLON",
	"AU": "XASX",
	"CN": "XTSE",
	"SS": "XSTO",
	"SM": "XMAD",
	"IM": "XMIL",
	"NO": "XOSL",
	"FP": "XPAR",
	"BB": "XBRU",
	"SW": "XSWX",
	"WD": "WD",
}

// ForExchange returns the calendar registered for an exchange code.
// Fails with an UNKNOWN_EXCHANGE error for unmapped codes.
func ForExchange(code string) (*Calendar, error) {
	mic, ok := exchangeMIC[code]
	if !ok {
		return nil, &Error{
			Code:         ErrCodeUnknownExchange,
			Message:      "no calendar registered for exchange code",
			ExchangeCode: code,
		}
	}
	return &Calendar{mic: mic, holidays: holidayTables[mic]}, nil
}

// MIC returns the calendar's market identifier code.
func (c *Calendar) MIC() string { return c.mic }

// IsSession reports whether dt is a trading session: a weekday that is not
// an exchange holiday.
func (c *Calendar) IsSession(dt model.Date) bool {
	if isWeekend(dt) {
		return false
	}
	return !c.holidays[dt.String()]
}

// PrevSession returns the last session strictly before dt.
func (c *Calendar) PrevSession(dt model.Date) model.Date {
	d := dt.AddDays(-1)
	for !c.IsSession(d) {
		d = d.AddDays(-1)
	}
	return d
}

// NextSession returns the first session strictly after dt.
func (c *Calendar) NextSession(dt model.Date) model.Date {
	d := dt.AddDays(1)
	for !c.IsSession(d) {
		d = d.AddDays(1)
	}
	return d
}

// Sessions returns all sessions in [from, to], ascending.
func (c *Calendar) Sessions(from, to model.Date) []model.Date {
	var out []model.Date
	for d := from; !d.After(to); d = d.AddDays(1) {
		if c.IsSession(d) {
			out = append(out, d)
		}
	}
	return out
}

// Adjust applies a business-day convention to a single date.
// Dates already on a session are returned unchanged.
func (c *Calendar) Adjust(dt model.Date, bdc model.BDC) model.Date {
	if c.IsSession(dt) || bdc == model.Unadjusted {
		return dt
	}
	switch bdc {
	case model.Following:
		return c.NextSession(dt.AddDays(-1))
	case model.Preceding:
		return c.PrevSession(dt.AddDays(1))
	case model.ModifiedFollowing:
		cand := c.NextSession(dt.AddDays(-1))
		if cand.Month() != dt.Month() {
			return c.PrevSession(dt.AddDays(1))
		}
		return cand
	case model.ModifiedPreceding:
		cand := c.PrevSession(dt.AddDays(1))
		if cand.Month() != dt.Month() {
			return c.NextSession(dt.AddDays(-1))
		}
		return cand
	}
	return dt
}

func isWeekend(dt model.Date) bool {
	wd := dt.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
