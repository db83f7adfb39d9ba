package calendar

import (
	"fmt"
	"time"

	"github.com/quantfold/finstore/internal/model"
)

// SeqOptions configures date-sequence generation.
type SeqOptions struct {
	ExchangeCode string
	Period       model.Periodicity
	Days         model.Days
	Endpoint     model.Endpoint
	// Partial appends the range boundary itself when the last full period
	// boundary falls short of it (or precedes it, for first_of).
	Partial bool
}

// DefaultSeqOptions are daily weekday sequences on the US calendar.
func DefaultSeqOptions() SeqOptions {
	return SeqOptions{
		ExchangeCode: "US",
		Period:       model.Daily,
		Days:         model.NonTradingDays,
		Endpoint:     model.LastOf,
	}
}

// SeqDate generates the sequence of period boundary dates in [from, to],
// ascending. Boundaries landing off-calendar are adjusted by the Days
// policy: non-trading uses the weekday-only calendar, trading uses the
// exchange's own sessions, calendar leaves dates unadjusted.
func SeqDate(from, to model.Date, opts SeqOptions) ([]model.Date, error) {
	if from.After(to) {
		from, to = to, from
	}

	adjustCal, err := adjustCalendar(opts)
	if err != nil {
		return nil, err
	}

	var raw []model.Date
	switch opts.Period {
	case model.Daily:
		for d := from; !d.After(to); d = d.AddDays(1) {
			raw = append(raw, d)
		}
	case model.Weekly:
		raw = weekBounds(from, to, opts.Endpoint)
	case model.Monthly:
		raw = monthStep(from, to, opts.Endpoint, 1)
	case model.Quarterly:
		raw = monthStep(from, to, opts.Endpoint, 3)
	case model.HalfYearly:
		raw = monthStep(from, to, opts.Endpoint, 6)
	case model.Yearly:
		raw = monthStep(from, to, opts.Endpoint, 12)
	default:
		return nil, &Error{Code: ErrCodeBadSequence, Message: fmt.Sprintf("unsupported period %q", opts.Period)}
	}

	bdc := model.Preceding
	if opts.Endpoint == model.FirstOf {
		bdc = model.Following
	}

	seen := make(map[string]bool)
	var out []model.Date
	for _, d := range raw {
		if adjustCal != nil {
			d = adjustCal.Adjust(d, bdc)
		}
		if d.Before(from) || d.After(to) || seen[d.String()] {
			continue
		}
		seen[d.String()] = true
		out = append(out, d)
	}

	if opts.Partial {
		if opts.Endpoint == model.FirstOf {
			if len(out) == 0 || out[0].After(from) {
				out = append([]model.Date{from}, out...)
			}
		} else {
			if len(out) == 0 || out[len(out)-1].Before(to) {
				out = append(out, to)
			}
		}
	}
	return out, nil
}

// PrevDate returns the nth previous period boundary strictly before dt.
func PrevDate(dt model.Date, n int, opts SeqOptions) (model.Date, error) {
	if n == 0 {
		return dt, nil
	}
	return nthPeriodDate(dt, -n, opts)
}

// NextDate returns the nth next period boundary strictly after dt.
func NextDate(dt model.Date, n int, opts SeqOptions) (model.Date, error) {
	if n == 0 {
		return dt, nil
	}
	return nthPeriodDate(dt, n, opts)
}

// PrevBusinessDay is the previous weekday-calendar session before dt,
// the default valid date for point queries.
func PrevBusinessDay(dt model.Date) model.Date {
	cal, _ := ForExchange("WD") // WD is always registered
	return cal.PrevSession(dt)
}

func nthPeriodDate(dt model.Date, n int, opts SeqOptions) (model.Date, error) {
	nAbs := n
	if nAbs < 0 {
		nAbs = -nAbs
	}

	// Span wide enough to contain n period boundaries plus slack for
	// weekends and holidays.
	spanDays := map[model.Periodicity]int{
		model.Daily:      nAbs + 7,
		model.Weekly:     7 * (nAbs + 1),
		model.Monthly:    31 * (nAbs + 1),
		model.Quarterly:  92 * (nAbs + 1),
		model.HalfYearly: 183 * (nAbs + 1),
		model.Yearly:     366 * (nAbs + 1),
	}[opts.Period]
	if spanDays == 0 {
		return model.Date{}, &Error{Code: ErrCodeBadSequence, Message: fmt.Sprintf("unsupported period %q", opts.Period)}
	}

	var from, to model.Date
	if n < 0 {
		from, to = dt.AddDays(-spanDays), dt.AddDays(-1) // exclusive of dt
	} else {
		from, to = dt.AddDays(1), dt.AddDays(spanDays)
	}

	ds, err := SeqDate(from, to, opts)
	if err != nil {
		return model.Date{}, err
	}
	if n < 0 {
		for i, j := 0, len(ds)-1; i < j; i, j = i+1, j-1 {
			ds[i], ds[j] = ds[j], ds[i]
		}
	}
	if len(ds) < nAbs {
		return model.Date{}, &Error{
			Code:    ErrCodeBadSequence,
			Message: fmt.Sprintf("not enough dates in sequence for n=%d", n),
		}
	}
	return ds[nAbs-1], nil
}

// adjustCalendar picks the calendar used for boundary adjustment, or nil for
// the raw calendar-days policy.
func adjustCalendar(opts SeqOptions) (*Calendar, error) {
	switch opts.Days {
	case model.CalendarDays:
		return nil, nil
	case model.TradingDays:
		return ForExchange(opts.ExchangeCode)
	default: // non-trading: weekday-only fallback
		return ForExchange("WD")
	}
}

func weekBounds(from, to model.Date, endpoint model.Endpoint) []model.Date {
	seen := make(map[string]bool)
	var out []model.Date
	for d := from; !d.After(to.AddDays(6)); d = d.AddDays(7) {
		var bound model.Date
		if endpoint == model.FirstOf {
			bound = d.AddDays(-isoWeekdayOffset(d)) // Monday
		} else {
			bound = d.AddDays(6 - isoWeekdayOffset(d)) // Sunday
		}
		if !seen[bound.String()] {
			seen[bound.String()] = true
			out = append(out, bound)
		}
	}
	return out
}

// isoWeekdayOffset returns days since Monday (0..6).
func isoWeekdayOffset(d model.Date) int {
	wd := d.Weekday()
	if wd == time.Sunday {
		return 6
	}
	return int(wd) - 1
}

func monthStep(from, to model.Date, endpoint model.Endpoint, step int) []model.Date {
	var out []model.Date
	seen := make(map[string]bool)
	for d := from; !d.After(to); d = d.AddDays(1) {
		var bound model.Date
		switch step {
		case 1:
			bound = monthBound(d.Year(), int(d.Month()), endpoint)
		case 3:
			bound = groupBound(d, 3, endpoint)
		case 6:
			bound = groupBound(d, 6, endpoint)
		case 12:
			if endpoint == model.FirstOf {
				bound = model.NewDate(d.Year(), time.January, 1)
			} else {
				bound = model.NewDate(d.Year(), time.December, 31)
			}
		}
		if !seen[bound.String()] {
			seen[bound.String()] = true
			out = append(out, bound)
		}
	}
	return out
}

// groupBound maps d to the first or last day of its n-month group
// (quarters for n=3, half-years for n=6).
func groupBound(d model.Date, n int, endpoint model.Endpoint) model.Date {
	group := (int(d.Month()) - 1) / n
	if endpoint == model.FirstOf {
		return model.NewDate(d.Year(), time.Month(group*n+1), 1)
	}
	return monthBound(d.Year(), (group+1)*n, model.LastOf)
}

func monthBound(year, month int, endpoint model.Endpoint) model.Date {
	if endpoint == model.FirstOf {
		return model.NewDate(year, time.Month(month), 1)
	}
	return model.NewDate(year, time.Month(month), 1).MonthEnd()
}
