// Package writer appends revisions. The long tier is append-only: a changed
// value never updates a row in place, it demotes the current revision and
// inserts a successor with a strictly greater transaction date. The wide tier
// is keyed-replace with no history.
package writer

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/quantfold/finstore/internal/model"
	"github.com/quantfold/finstore/internal/store"
)

// Writer performs revision and replacement writes.
type Writer struct {
	store  *store.Store
	logger *slog.Logger
}

// New builds a Writer over the given store.
func New(s *store.Store, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{store: s, logger: logger}
}

// Result reports what one upsert did.
type Result struct {
	// Inserted is true when a new revision (or wide row) was written.
	Inserted bool
	// Superseded is true when an existing current revision was demoted.
	Superseded bool
}

// Row is one upsert input.
type Row struct {
	SecurityID int64
	Field      *model.FieldDef
	// SourceTable overrides the field's default destination when a
	// per-security-type mapping applies; SourceColumn likewise for wide rows.
	SourceTable  string
	SourceColumn string
	ValidDate    model.Date
	TxnDate      model.Date // zero means today
	Value        model.Value
}

func (row Row) table() string {
	if row.SourceTable != "" {
		return row.SourceTable
	}
	return row.Field.StorageTable
}

func (row Row) column() string {
	if row.SourceColumn != "" {
		return row.SourceColumn
	}
	return row.Field.StorageColumn
}

// rowIsWide reports whether the row lands on the dense tier. A
// column-addressed mapping is dense regardless of the field's default mode.
func rowIsWide(row Row) bool {
	return row.Field.StorageMode == model.StorageWide || row.SourceColumn != ""
}

// Upsert writes one row, routed by the field's storage tier.
//
// For long-tier fields the sequence is: read the current revision; if it
// holds the same typed value the write is a no-op; if the new transaction
// date does not exceed the stored one the write is rejected; otherwise the
// current revision is demoted and the new one inserted, atomically.
func (w *Writer) Upsert(ctx context.Context, row Row) (Result, error) {
	if !row.Field.Upload {
		return Result{}, &Error{
			Code:       ErrCodeNotWritable,
			Message:    fmt.Sprintf("field %s is not flagged for uploads", row.Field.Mnemonic),
			SecurityID: row.SecurityID,
			FieldID:    row.Field.ID,
			ValidDate:  row.ValidDate,
		}
	}
	if row.TxnDate.IsZero() {
		row.TxnDate = model.Today()
	}

	if rowIsWide(row) {
		return w.upsertWide(ctx, row)
	}

	var res Result
	err := w.store.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		res, err = w.upsertLongTx(ctx, tx, row)
		return err
	})
	return res, err
}

// BatchResult aggregates what one atomic batch did.
type BatchResult struct {
	Written   int // rows that landed
	Unchanged int // rows skipped as already-equal
}

// UpsertMany writes a batch atomically: either every row lands or none does.
// All rows share one transaction, so a mid-batch rejection leaves no partial
// upload behind.
func (w *Writer) UpsertMany(ctx context.Context, rows []Row) (BatchResult, error) {
	for _, row := range rows {
		if !row.Field.Upload {
			return BatchResult{}, &Error{
				Code:       ErrCodeNotWritable,
				Message:    fmt.Sprintf("field %s is not flagged for uploads", row.Field.Mnemonic),
				SecurityID: row.SecurityID,
				FieldID:    row.Field.ID,
				ValidDate:  row.ValidDate,
			}
		}
	}

	var total BatchResult
	err := w.store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, row := range rows {
			if row.TxnDate.IsZero() {
				row.TxnDate = model.Today()
			}
			var (
				res Result
				err error
			)
			if rowIsWide(row) {
				res, err = w.upsertWideTx(ctx, tx, row)
			} else {
				res, err = w.upsertLongTx(ctx, tx, row)
			}
			if err != nil {
				return err
			}
			if res.Inserted {
				total.Written++
			} else {
				total.Unchanged++
			}
		}
		return nil
	})
	if err != nil {
		return BatchResult{}, err
	}
	return total, nil
}

func (w *Writer) upsertLongTx(ctx context.Context, tx *sql.Tx, row Row) (Result, error) {
	table := row.table()
	if err := validateLongTable(table); err != nil {
		return Result{}, err
	}

	var (
		curTxn   string
		curCells model.StorageCells
		exists   = true
	)
	err := tx.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT AsOfDate, ValChr, ValDbl, ValInt, ValDate
		FROM %s
		WHERE SecurityId = ? AND FieldId = ? AND ValueDate = ? AND LastFlag = 1`, table),
		row.SecurityID, row.Field.ID, row.ValidDate.String(),
	).Scan(&curTxn, &curCells.Chr, &curCells.Dbl, &curCells.Int, &curCells.Date)
	switch {
	case err == sql.ErrNoRows:
		exists = false
	case err != nil:
		return Result{}, fmt.Errorf("read current revision: %w", err)
	}

	if exists {
		curValue, err := model.Compose(curCells, row.Field.DataType)
		if err != nil {
			return Result{}, fmt.Errorf("compose current value: %w", err)
		}
		if model.ValueEqual(curValue, row.Value) {
			// Same typed value: re-asserting a belief is not a revision.
			return Result{}, nil
		}

		curDate, err := model.ParseDate(curTxn)
		if err != nil {
			return Result{}, fmt.Errorf("bad stored transaction date %q: %w", curTxn, err)
		}
		if !row.TxnDate.After(curDate) {
			return Result{}, &Error{
				Code: ErrCodeMonotonicityViolation,
				Message: fmt.Sprintf("transaction date %s does not exceed stored %s",
					row.TxnDate, curDate),
				SecurityID: row.SecurityID,
				FieldID:    row.Field.ID,
				ValidDate:  row.ValidDate,
				TxnDate:    row.TxnDate,
			}
		}

		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
			UPDATE %s SET LastFlag = 0
			WHERE SecurityId = ? AND FieldId = ? AND ValueDate = ? AND LastFlag = 1`, table),
			row.SecurityID, row.Field.ID, row.ValidDate.String()); err != nil {
			return Result{}, fmt.Errorf("demote current revision: %w", err)
		}
	}

	cells := model.Decompose(row.Value)
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s
		  (SecurityId, FieldId, ValueDate, AsOfDate, LastFlag,
		   ValChr, ValDbl, ValInt, ValDate)
		VALUES (?, ?, ?, ?, 1, ?, ?, ?, ?)`, table),
		row.SecurityID, row.Field.ID, row.ValidDate.String(), row.TxnDate.String(),
		cells.Chr, cells.Dbl, cells.Int, cells.Date); err != nil {
		return Result{}, fmt.Errorf("insert revision: %w", err)
	}

	w.logger.Debug("revision written",
		"table", table,
		"security_id", row.SecurityID,
		"field", row.Field.Mnemonic,
		"valid_date", row.ValidDate,
		"txn_date", row.TxnDate,
		"superseded", exists,
	)
	return Result{Inserted: true, Superseded: exists}, nil
}

func (w *Writer) upsertWide(ctx context.Context, row Row) (Result, error) {
	var res Result
	err := w.store.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		res, err = w.upsertWideTx(ctx, tx, row)
		return err
	})
	return res, err
}

// upsertWideTx replaces one cell of one dense row. The prior cell value is
// unrecoverable afterwards; fields needing history belong on the long tier.
func (w *Writer) upsertWideTx(ctx context.Context, tx *sql.Tx, row Row) (Result, error) {
	table, column := row.table(), row.column()
	if err := validateWideTable(table); err != nil {
		return Result{}, err
	}
	if err := validateWideColumn(column); err != nil {
		return Result{}, err
	}

	cells := model.Decompose(row.Value)
	arg := cellArg(cells, row.Field.DataType)

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (SecurityId, ValueDate, %s)
		VALUES (?, ?, ?)
		ON CONFLICT(SecurityId, ValueDate) DO UPDATE SET %s = excluded.%s`,
		table, column, column, column),
		row.SecurityID, row.ValidDate.String(), arg); err != nil {
		return Result{}, fmt.Errorf("replace %s.%s: %w", table, column, err)
	}
	return Result{Inserted: true}, nil
}

func cellArg(c model.StorageCells, t model.DataType) any {
	switch t {
	case model.TypeDouble:
		return c.Dbl
	case model.TypeInt, model.TypeBool:
		return c.Int
	case model.TypeDate:
		return c.Date
	default:
		return c.Chr
	}
}

func validateLongTable(name string) error {
	switch name {
	case "FieldSnapshot", "SecuritySnapshot":
		return nil
	}
	return fmt.Errorf("unroutable revision table %q", name)
}

func validateWideTable(name string) error {
	switch name {
	case "Pricing", "WeeklyData", "MonthlyData":
		return nil
	}
	return fmt.Errorf("unroutable replacement table %q", name)
}

var wideColumns = map[string]bool{
	"PxClose": true, "PxHigh": true, "PxLow": true, "PxOpen": true,
	"PxLast": true, "Volume": true, "NavClose": true, "NavLast": true,
	"TotalReturn": true, "DividendAmount": true, "AdjFactor": true,
	"NavChange": true, "NetAssets": true, "SharesOutstanding": true,
	"ExpenseRatio": true,
}

func validateWideColumn(name string) error {
	if !wideColumns[name] {
		return fmt.Errorf("unroutable replacement column %q", name)
	}
	return nil
}
