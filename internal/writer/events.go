package writer

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/quantfold/finstore/internal/model"
)

// Event tables are append-per-event: each record gets a time-ordered
// surrogate id at insert and is never revised in place. Corrections arrive as
// new records (a replacement dividend, a Cancelled status) rather than
// updates.

// Dividend is one cash-distribution declaration.
type Dividend struct {
	SecurityID   int64
	ExDate       model.Date
	RecordDate   model.Date
	PayableDate  model.Date
	DeclaredDate model.Date
	Amount       float64
	DividendType string
	Frequency    string
	Currency     string
	TaxRate      float64
	SpecialFlag  bool
}

// CorpEvent is one corporate action.
type CorpEvent struct {
	SecurityID       int64
	EventType        string
	AnnouncementDate model.Date
	EffectiveDate    model.Date
	ExpirationDate   model.Date
	Description      string
	Data             string // free-form json payload
	Status           string // defaults to Active
}

// AdjFactorEvent is one price-adjustment factor.
type AdjFactorEvent struct {
	SecurityID       int64
	EffectiveDate    model.Date
	Factor           float64
	AdjType          string
	CumulativeFactor float64
	Description      string
}

// newEventID allocates a time-ordered surrogate id so insertion order is
// recoverable from the id alone.
func newEventID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("allocate event id: %w", err)
	}
	return id.String(), nil
}

func nullDate(d model.Date) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

// InsertDividends appends dividend records atomically and returns their ids.
func (w *Writer) InsertDividends(ctx context.Context, divs []Dividend, txnDate model.Date) ([]string, error) {
	if txnDate.IsZero() {
		txnDate = model.Today()
	}
	ids := make([]string, 0, len(divs))
	err := w.store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, d := range divs {
			id, err := newEventID()
			if err != nil {
				return err
			}
			special := 0
			if d.SpecialFlag {
				special = 1
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO Dividend
				  (DividendId, SecurityId, ExDate, RecordDate, PayableDate,
				   DeclaredDate, Amount, DividendType, Frequency, Currency,
				   TaxRate, SpecialFlag, AsOfDate)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?)
			`, id, d.SecurityID, d.ExDate.String(), nullDate(d.RecordDate),
				nullDate(d.PayableDate), nullDate(d.DeclaredDate),
				d.Amount, d.DividendType, d.Frequency, d.Currency,
				d.TaxRate, special, txnDate.String())
			if err != nil {
				return fmt.Errorf("insert dividend for security %d: %w", d.SecurityID, err)
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	w.logger.Debug("dividends inserted", "count", len(ids), "txn_date", txnDate)
	return ids, nil
}

// InsertCorpEvents appends corporate-event records atomically. Event types
// are interned through CorpEventRef, creating reference rows on first use.
func (w *Writer) InsertCorpEvents(ctx context.Context, events []CorpEvent, txnDate model.Date) ([]string, error) {
	if txnDate.IsZero() {
		txnDate = model.Today()
	}
	ids := make([]string, 0, len(events))
	err := w.store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, ev := range events {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO CorpEventRef (EventType) VALUES (?)
				ON CONFLICT(EventType) DO NOTHING
			`, ev.EventType); err != nil {
				return fmt.Errorf("intern event type %q: %w", ev.EventType, err)
			}

			id, err := newEventID()
			if err != nil {
				return err
			}
			status := ev.Status
			if status == "" {
				status = "Active"
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO CorpEvent
				  (EventId, SecurityId, EventTypeId, AnnouncementDate,
				   EffectiveDate, ExpirationDate, Description, Data, Status, AsOfDate)
				SELECT ?, ?, EventTypeId, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?
				FROM CorpEventRef WHERE EventType = ?
			`, id, ev.SecurityID, nullDate(ev.AnnouncementDate),
				ev.EffectiveDate.String(), nullDate(ev.ExpirationDate),
				ev.Description, ev.Data, status, txnDate.String(), ev.EventType)
			if err != nil {
				return fmt.Errorf("insert corp event for security %d: %w", ev.SecurityID, err)
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	w.logger.Debug("corp events inserted", "count", len(ids), "txn_date", txnDate)
	return ids, nil
}

// CancelCorpEvent marks an event Cancelled. The record stays; the status
// change is the correction.
func (w *Writer) CancelCorpEvent(ctx context.Context, eventID string) error {
	n, err := w.store.Exec(ctx,
		`UPDATE CorpEvent SET Status = 'Cancelled' WHERE EventId = ?`, eventID)
	if err != nil {
		return fmt.Errorf("cancel corp event %s: %w", eventID, err)
	}
	if n == 0 {
		return fmt.Errorf("no corp event with id %s", eventID)
	}
	return nil
}

// InsertAdjFactors appends adjustment-factor records atomically.
func (w *Writer) InsertAdjFactors(ctx context.Context, factors []AdjFactorEvent, txnDate model.Date) ([]string, error) {
	if txnDate.IsZero() {
		txnDate = model.Today()
	}
	ids := make([]string, 0, len(factors))
	err := w.store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, f := range factors {
			id, err := newEventID()
			if err != nil {
				return err
			}
			cumulative := sql.NullFloat64{}
			if f.CumulativeFactor != 0 {
				cumulative = sql.NullFloat64{Float64: f.CumulativeFactor, Valid: true}
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO AdjFactor
				  (AdjFactorId, SecurityId, EffectiveDate, Factor, AdjType,
				   CumulativeFactor, Description, AsOfDate)
				VALUES (?, ?, ?, ?, ?, ?, NULLIF(?, ''), ?)
			`, id, f.SecurityID, f.EffectiveDate.String(), f.Factor, f.AdjType,
				cumulative, f.Description, txnDate.String())
			if err != nil {
				return fmt.Errorf("insert adj factor for security %d: %w", f.SecurityID, err)
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	w.logger.Debug("adjustment factors inserted", "count", len(ids), "txn_date", txnDate)
	return ids, nil
}

// PricingRow is one dense pricing upload row. Nil cells leave the stored cell
// untouched on replace.
type PricingRow struct {
	SecurityID int64
	ValueDate  model.Date
	Cells      map[string]float64 // column name to value
}

// InsertPricing replaces pricing cells in bulk. Each row updates only the
// columns it carries.
func (w *Writer) InsertPricing(ctx context.Context, rows []PricingRow) error {
	return w.store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, row := range rows {
			for column, v := range row.Cells {
				if err := validateWideColumn(column); err != nil {
					return err
				}
				if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
					INSERT INTO Pricing (SecurityId, ValueDate, %s)
					VALUES (?, ?, ?)
					ON CONFLICT(SecurityId, ValueDate) DO UPDATE SET %s = excluded.%s`,
					column, column, column),
					row.SecurityID, row.ValueDate.String(), v); err != nil {
					return fmt.Errorf("replace Pricing.%s: %w", column, err)
				}
			}
		}
		return nil
	})
}
