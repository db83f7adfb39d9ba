// Package snapshot resolves stored revisions into the value that was (or is)
// believed for a key. It owns both temporal axes: the valid date a value is
// about, and the transaction date the system learned it.
//
// Two read modes exist. As-seen answers "what do we believe now" by selecting
// the current revision. As-of answers "what did we believe then" by selecting,
// per valid date, the revision with the greatest transaction date not after
// the requested as-of date. As-of never relaxes the valid-date key: a key with
// no revision visible at the as-of date is absent, not substituted from a
// nearby date.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quantfold/finstore/internal/model"
	"github.com/quantfold/finstore/internal/store"
)

// Resolver reads revisioned long-tier rows and unversioned wide-tier rows.
type Resolver struct {
	store  *store.Store
	logger *slog.Logger
}

// New builds a Resolver over the given store.
func New(s *store.Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: s, logger: logger}
}

// Query selects the revisions to resolve.
type Query struct {
	SecurityID int64
	Field      *model.FieldDef
	// SourceTable and SourceColumn override the field's default physical
	// source when a per-security-type mapping applies.
	SourceTable  string
	SourceColumn string
	From, To     model.Date
	Mode         model.DateMode
	// AsOfDate bounds visible transaction dates in as-of mode. Ignored for
	// as-seen.
	AsOfDate model.Date
}

func (q Query) table() string {
	if q.SourceTable != "" {
		return q.SourceTable
	}
	return q.Field.StorageTable
}

func (q Query) column() string {
	if q.SourceColumn != "" {
		return q.SourceColumn
	}
	return q.Field.StorageColumn
}

// Fetch returns the resolved facts for q, ascending by valid date. Dates with
// no visible revision are simply absent; gap handling belongs to the caller.
// A column-addressed source is dense regardless of the field's default tier.
func (r *Resolver) Fetch(ctx context.Context, q Query) ([]model.Fact, error) {
	if q.Field.StorageMode == model.StorageWide || q.SourceColumn != "" {
		return r.fetchWide(ctx, q)
	}
	return r.fetchLong(ctx, q)
}

// FetchOne resolves a single valid date. Absence is (nil, false, nil).
func (r *Resolver) FetchOne(ctx context.Context, q Query, validDate model.Date) (model.Value, bool, error) {
	q.From, q.To = validDate, validDate
	facts, err := r.Fetch(ctx, q)
	if err != nil {
		return nil, false, err
	}
	if len(facts) == 0 {
		return nil, false, nil
	}
	return facts[0].Value, true, nil
}

// fetchLong resolves revisioned rows from the sparse tier.
func (r *Resolver) fetchLong(ctx context.Context, q Query) ([]model.Fact, error) {
	table := q.table()
	if err := validateTable(table); err != nil {
		return nil, err
	}

	var (
		query string
		args  []any
	)
	switch q.Mode {
	case model.AsOf:
		// Per valid date, the revision with the greatest transaction date not
		// after the as-of date wins. Keys first written after the as-of date
		// have no visible revision and fall out of the result.
		query = fmt.Sprintf(`
			SELECT s.ValueDate, s.AsOfDate, s.LastFlag,
			       s.ValChr, s.ValDbl, s.ValInt, s.ValDate
			FROM %s s
			WHERE s.SecurityId = ? AND s.FieldId = ?
			  AND s.ValueDate BETWEEN ? AND ?
			  AND s.AsOfDate = (
			      SELECT MAX(p.AsOfDate) FROM %s p
			      WHERE p.SecurityId = s.SecurityId AND p.FieldId = s.FieldId
			        AND p.ValueDate = s.ValueDate AND p.AsOfDate <= ?
			  )
			ORDER BY s.ValueDate ASC`, table, table)
		args = []any{q.SecurityID, q.Field.ID, q.From.String(), q.To.String(), q.AsOfDate.String()}
	default: // as-seen
		query = fmt.Sprintf(`
			SELECT ValueDate, AsOfDate, LastFlag,
			       ValChr, ValDbl, ValInt, ValDate
			FROM %s
			WHERE SecurityId = ? AND FieldId = ?
			  AND ValueDate BETWEEN ? AND ?
			  AND LastFlag = 1
			ORDER BY ValueDate ASC`, table)
		args = []any{q.SecurityID, q.Field.ID, q.From.String(), q.To.String()}
	}

	rows, err := r.store.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch %s revisions: %w", table, err)
	}
	defer rows.Close()

	var facts []model.Fact
	for rows.Next() {
		var (
			validDate, txnDate string
			lastFlag           int
			cells              model.StorageCells
		)
		if err := rows.Scan(&validDate, &txnDate, &lastFlag,
			&cells.Chr, &cells.Dbl, &cells.Int, &cells.Date); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}

		f := model.Fact{SecurityID: q.SecurityID, FieldID: q.Field.ID, Current: lastFlag != 0}
		if f.ValidDate, err = model.ParseDate(validDate); err != nil {
			return nil, fmt.Errorf("bad valid date %q: %w", validDate, err)
		}
		if f.TxnDate, err = model.ParseDate(txnDate); err != nil {
			return nil, fmt.Errorf("bad transaction date %q: %w", txnDate, err)
		}
		if f.Value, err = model.Compose(cells, q.Field.DataType); err != nil {
			return nil, fmt.Errorf("compose %s value: %w", q.Field.Mnemonic, err)
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := checkOnePerValidDate(facts, q); err != nil {
		return nil, err
	}
	return facts, nil
}

// checkOnePerValidDate rejects result sets carrying two revisions of the same
// valid date. The primary key makes transaction-date ties unrepresentable, so
// a duplicate here means the table was modified outside the writer.
func checkOnePerValidDate(facts []model.Fact, q Query) error {
	for i := 1; i < len(facts); i++ {
		if !facts[i].ValidDate.Equal(facts[i-1].ValidDate) {
			continue
		}
		code := ErrCodeTornCurrent
		msg := "multiple current revisions for one valid date"
		if facts[i].TxnDate.Equal(facts[i-1].TxnDate) {
			code = ErrCodeAmbiguousRevision
			msg = "two revisions share a transaction date"
		}
		return &Error{
			Code:       code,
			Message:    msg,
			SecurityID: q.SecurityID,
			FieldID:    q.Field.ID,
			ValidDate:  facts[i].ValidDate,
		}
	}
	return nil
}

// fetchWide reads the dense tier. Wide rows keep no history: both read modes
// see the same single row per date, and the transaction axis degenerates to
// the valid date.
func (r *Resolver) fetchWide(ctx context.Context, q Query) ([]model.Fact, error) {
	table, column := q.table(), q.column()
	if err := validateTable(table); err != nil {
		return nil, err
	}
	if err := validateColumn(column); err != nil {
		return nil, err
	}

	rows, err := r.store.Query(ctx, fmt.Sprintf(`
		SELECT ValueDate, %s FROM %s
		WHERE SecurityId = ? AND ValueDate BETWEEN ? AND ?
		ORDER BY ValueDate ASC`, column, table),
		q.SecurityID, q.From.String(), q.To.String())
	if err != nil {
		return nil, fmt.Errorf("fetch %s.%s: %w", table, column, err)
	}
	defer rows.Close()

	var facts []model.Fact
	for rows.Next() {
		var (
			validDate string
			cells     model.StorageCells
		)
		dest := cellFor(&cells, q.Field.DataType)
		if err := rows.Scan(&validDate, dest); err != nil {
			return nil, fmt.Errorf("scan %s.%s: %w", table, column, err)
		}

		f := model.Fact{SecurityID: q.SecurityID, FieldID: q.Field.ID, Current: true}
		if f.ValidDate, err = model.ParseDate(validDate); err != nil {
			return nil, fmt.Errorf("bad valid date %q: %w", validDate, err)
		}
		f.TxnDate = f.ValidDate
		if f.Value, err = model.Compose(cells, q.Field.DataType); err != nil {
			return nil, fmt.Errorf("compose %s value: %w", q.Field.Mnemonic, err)
		}
		if f.Value == nil {
			continue // null cell in a present row: no observation
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// cellFor picks the scan destination matching the declared type.
func cellFor(c *model.StorageCells, t model.DataType) any {
	switch t {
	case model.TypeDouble:
		return &c.Dbl
	case model.TypeInt, model.TypeBool:
		return &c.Int
	case model.TypeDate:
		return &c.Date
	default:
		return &c.Chr
	}
}

// validateTable guards table names interpolated into SQL. Sources come from
// the metadata tables, not from callers, but routing still refuses anything
// that is not a known physical table.
func validateTable(name string) error {
	switch name {
	case "FieldSnapshot", "SecuritySnapshot",
		"Pricing", "WeeklyData", "MonthlyData":
		return nil
	}
	return fmt.Errorf("unroutable table %q", name)
}

var wideColumns = map[string]bool{
	"PxClose": true, "PxHigh": true, "PxLow": true, "PxOpen": true,
	"PxLast": true, "Volume": true, "NavClose": true, "NavLast": true,
	"TotalReturn": true, "DividendAmount": true, "AdjFactor": true,
	"NavChange": true, "NetAssets": true, "SharesOutstanding": true,
	"ExpenseRatio": true,
}

func validateColumn(name string) error {
	if !wideColumns[name] {
		return fmt.Errorf("unroutable column %q", name)
	}
	return nil
}
