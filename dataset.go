package finstore

import (
	"context"
	"fmt"
	"strings"
)

// Event datasets are append-per-record collections (dividends, corporate
// events, adjustment factors). They have no current-flag revision semantics:
// a correction is a new record, and queries filter rather than resolve.

// DividendRecord is one stored cash distribution.
type DividendRecord struct {
	ID           string
	SecurityID   int64
	Ticker       string
	ExDate       Date
	RecordDate   Date
	PayableDate  Date
	DeclaredDate Date
	Amount       float64
	DividendType string
	Frequency    string
	Currency     string
	TaxRate      float64
	SpecialFlag  bool
}

// DividendQuery filters the dividend dataset. Zero fields mean no filter;
// the date range applies to the ex-date.
type DividendQuery struct {
	Tickers []string
	From    Date
	To      Date
	Types   []string
	// SpecialOnly restricts the result to special distributions.
	SpecialOnly bool
}

// Dividends lists dividend records matching q, ascending by ex-date.
func (db *DB) Dividends(ctx context.Context, q DividendQuery) ([]DividendRecord, error) {
	where, args := []string{"1=1"}, []any{}
	if len(q.Tickers) > 0 {
		where = append(where, "sm.Ticker IN ("+placeholders(len(q.Tickers))+")")
		for _, t := range q.Tickers {
			args = append(args, t)
		}
	}
	if !q.From.IsZero() {
		where = append(where, "d.ExDate >= ?")
		args = append(args, q.From.String())
	}
	if !q.To.IsZero() {
		where = append(where, "d.ExDate <= ?")
		args = append(args, q.To.String())
	}
	if len(q.Types) > 0 {
		where = append(where, "d.DividendType IN ("+placeholders(len(q.Types))+")")
		for _, t := range q.Types {
			args = append(args, t)
		}
	}
	if q.SpecialOnly {
		where = append(where, "d.SpecialFlag = 1")
	}

	rows, err := db.store.Query(ctx, `
		SELECT d.DividendId, d.SecurityId, sm.Ticker, d.ExDate,
		       COALESCE(d.RecordDate, ''), COALESCE(d.PayableDate, ''),
		       COALESCE(d.DeclaredDate, ''), d.Amount, d.DividendType,
		       COALESCE(d.Frequency, ''), COALESCE(d.Currency, ''),
		       COALESCE(d.TaxRate, 0), d.SpecialFlag
		FROM Dividend d
		JOIN SecurityMaster sm ON sm.Id = d.SecurityId
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY d.ExDate ASC, d.DividendId ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query dividends: %w", err)
	}
	defer rows.Close()

	var out []DividendRecord
	for rows.Next() {
		var (
			rec                                      DividendRecord
			exDate, recDate, payDate, declDate       string
			special                                  int
		)
		if err := rows.Scan(&rec.ID, &rec.SecurityID, &rec.Ticker, &exDate,
			&recDate, &payDate, &declDate, &rec.Amount, &rec.DividendType,
			&rec.Frequency, &rec.Currency, &rec.TaxRate, &special); err != nil {
			return nil, fmt.Errorf("scan dividend: %w", err)
		}
		if rec.ExDate, err = ParseDate(exDate); err != nil {
			return nil, err
		}
		if rec.RecordDate, err = parseOptionalDate(recDate); err != nil {
			return nil, err
		}
		if rec.PayableDate, err = parseOptionalDate(payDate); err != nil {
			return nil, err
		}
		if rec.DeclaredDate, err = parseOptionalDate(declDate); err != nil {
			return nil, err
		}
		rec.SpecialFlag = special != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CorpEventRecord is one stored corporate action.
type CorpEventRecord struct {
	ID               string
	SecurityID       int64
	Ticker           string
	EventType        string
	AnnouncementDate Date
	EffectiveDate    Date
	ExpirationDate   Date
	Description      string
	Data             string
	Status           string
}

// CorpEventQuery filters the corporate-event dataset. The date range applies
// to the effective date. Cancelled events are excluded unless asked for.
type CorpEventQuery struct {
	Tickers          []string
	From             Date
	To               Date
	Types            []string
	IncludeCancelled bool
}

// CorpEvents lists corporate events matching q, ascending by effective date.
func (db *DB) CorpEvents(ctx context.Context, q CorpEventQuery) ([]CorpEventRecord, error) {
	where, args := []string{"1=1"}, []any{}
	if len(q.Tickers) > 0 {
		where = append(where, "sm.Ticker IN ("+placeholders(len(q.Tickers))+")")
		for _, t := range q.Tickers {
			args = append(args, t)
		}
	}
	if !q.From.IsZero() {
		where = append(where, "e.EffectiveDate >= ?")
		args = append(args, q.From.String())
	}
	if !q.To.IsZero() {
		where = append(where, "e.EffectiveDate <= ?")
		args = append(args, q.To.String())
	}
	if len(q.Types) > 0 {
		where = append(where, "r.EventType IN ("+placeholders(len(q.Types))+")")
		for _, t := range q.Types {
			args = append(args, t)
		}
	}
	if !q.IncludeCancelled {
		where = append(where, "e.Status <> 'Cancelled'")
	}

	rows, err := db.store.Query(ctx, `
		SELECT e.EventId, e.SecurityId, sm.Ticker, r.EventType,
		       COALESCE(e.AnnouncementDate, ''), e.EffectiveDate,
		       COALESCE(e.ExpirationDate, ''), COALESCE(e.Description, ''),
		       COALESCE(e.Data, ''), e.Status
		FROM CorpEvent e
		JOIN CorpEventRef r ON r.EventTypeId = e.EventTypeId
		JOIN SecurityMaster sm ON sm.Id = e.SecurityId
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY e.EffectiveDate ASC, e.EventId ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query corp events: %w", err)
	}
	defer rows.Close()

	var out []CorpEventRecord
	for rows.Next() {
		var (
			rec                       CorpEventRecord
			annDate, effDate, expDate string
		)
		if err := rows.Scan(&rec.ID, &rec.SecurityID, &rec.Ticker, &rec.EventType,
			&annDate, &effDate, &expDate, &rec.Description, &rec.Data,
			&rec.Status); err != nil {
			return nil, fmt.Errorf("scan corp event: %w", err)
		}
		if rec.EffectiveDate, err = ParseDate(effDate); err != nil {
			return nil, err
		}
		if rec.AnnouncementDate, err = parseOptionalDate(annDate); err != nil {
			return nil, err
		}
		if rec.ExpirationDate, err = parseOptionalDate(expDate); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CancelCorpEvent marks a corporate event Cancelled. The record stays in the
// dataset; default queries stop returning it.
func (db *DB) CancelCorpEvent(ctx context.Context, eventID string) error {
	return db.writer.CancelCorpEvent(ctx, eventID)
}

// AdjFactorRecord is one stored price-adjustment factor.
type AdjFactorRecord struct {
	ID               string
	SecurityID       int64
	Ticker           string
	EffectiveDate    Date
	Factor           float64
	AdjType          string
	CumulativeFactor float64
	Description      string
}

// AdjFactorQuery filters the adjustment-factor dataset by ticker and
// effective-date range.
type AdjFactorQuery struct {
	Tickers []string
	From    Date
	To      Date
}

// AdjFactors lists adjustment factors matching q, ascending by effective
// date.
func (db *DB) AdjFactors(ctx context.Context, q AdjFactorQuery) ([]AdjFactorRecord, error) {
	where, args := []string{"1=1"}, []any{}
	if len(q.Tickers) > 0 {
		where = append(where, "sm.Ticker IN ("+placeholders(len(q.Tickers))+")")
		for _, t := range q.Tickers {
			args = append(args, t)
		}
	}
	if !q.From.IsZero() {
		where = append(where, "a.EffectiveDate >= ?")
		args = append(args, q.From.String())
	}
	if !q.To.IsZero() {
		where = append(where, "a.EffectiveDate <= ?")
		args = append(args, q.To.String())
	}

	rows, err := db.store.Query(ctx, `
		SELECT a.AdjFactorId, a.SecurityId, sm.Ticker, a.EffectiveDate,
		       a.Factor, a.AdjType, COALESCE(a.CumulativeFactor, 0),
		       COALESCE(a.Description, '')
		FROM AdjFactor a
		JOIN SecurityMaster sm ON sm.Id = a.SecurityId
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY a.EffectiveDate ASC, a.AdjFactorId ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query adjustment factors: %w", err)
	}
	defer rows.Close()

	var out []AdjFactorRecord
	for rows.Next() {
		var (
			rec     AdjFactorRecord
			effDate string
		)
		if err := rows.Scan(&rec.ID, &rec.SecurityID, &rec.Ticker, &effDate,
			&rec.Factor, &rec.AdjType, &rec.CumulativeFactor,
			&rec.Description); err != nil {
			return nil, fmt.Errorf("scan adjustment factor: %w", err)
		}
		if rec.EffectiveDate, err = ParseDate(effDate); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func parseOptionalDate(s string) (Date, error) {
	if s == "" {
		return Date{}, nil
	}
	return ParseDate(s)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
