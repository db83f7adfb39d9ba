package writer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/finstore/internal/model"
	"github.com/quantfold/finstore/internal/store"
)

var (
	navField = &model.FieldDef{
		ID:           1,
		Mnemonic:     "NAV_CLOSE",
		DataType:     model.TypeDouble,
		StorageMode:  model.StorageLong,
		StorageTable: "FieldSnapshot",
		Upload:       true,
	}
	pxField = &model.FieldDef{
		ID:            2,
		Mnemonic:      "PX_CLOSE",
		DataType:      model.TypeDouble,
		StorageMode:   model.StorageWide,
		StorageTable:  "Pricing",
		StorageColumn: "PxClose",
		Upload:        true,
	}
	readOnlyField = &model.FieldDef{
		ID:           3,
		Mnemonic:     "DERIVED",
		DataType:     model.TypeDouble,
		StorageMode:  model.StorageLong,
		StorageTable: "FieldSnapshot",
		Upload:       false,
	}
)

func testWriter(t *testing.T) (*Writer, *store.Store) {
	t.Helper()
	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	// Parent rows for the snapshot and event foreign keys.
	_, err = s.Exec(ctx, `INSERT INTO SecurityMaster (Id, Ticker, SecurityType) VALUES
		(1, 'SPY', 'ETF'), (2, 'VTI', 'ETF')`)
	require.NoError(t, err)
	for _, def := range []*model.FieldDef{navField, pxField, readOnlyField} {
		_, err = s.Exec(ctx, `INSERT INTO FieldDef
			(FieldId, FieldMnemonic, DataType, StorageMode, StorageTable, StorageColumn, IsUpload)
			VALUES (?, ?, ?, ?, ?, NULLIF(?, ''), ?)`,
			def.ID, def.Mnemonic, string(def.DataType), string(def.StorageMode),
			def.StorageTable, def.StorageColumn, def.Upload)
		require.NoError(t, err)
	}
	return New(s, nil), s
}

// revisions returns (AsOfDate, LastFlag, ValDbl) rows for one key, ascending
// by transaction date.
func revisions(t *testing.T, s *store.Store, secID, fieldID int64, validDate string) [][3]any {
	t.Helper()
	rows, err := s.Query(context.Background(), `
		SELECT AsOfDate, LastFlag, ValDbl FROM FieldSnapshot
		WHERE SecurityId = ? AND FieldId = ? AND ValueDate = ?
		ORDER BY AsOfDate ASC`, secID, fieldID, validDate)
	require.NoError(t, err)
	defer rows.Close()

	var out [][3]any
	for rows.Next() {
		var (
			asOf string
			last int
			val  float64
		)
		require.NoError(t, rows.Scan(&asOf, &last, &val))
		out = append(out, [3]any{asOf, last, val})
	}
	require.NoError(t, rows.Err())
	return out
}

func TestUpsertInsertsFirstRevision(t *testing.T) {
	w, s := testWriter(t)
	ctx := context.Background()

	res, err := w.Upsert(ctx, Row{
		SecurityID: 1,
		Field:      navField,
		ValidDate:  model.MustDate("2024-06-28"),
		TxnDate:    model.MustDate("2024-06-29"),
		Value:      model.VDouble(100.5),
	})
	require.NoError(t, err)
	assert.True(t, res.Inserted)
	assert.False(t, res.Superseded)

	revs := revisions(t, s, 1, 1, "2024-06-28")
	require.Len(t, revs, 1)
	assert.Equal(t, [3]any{"2024-06-29", 1, 100.5}, revs[0])
}

func TestUpsertSupersedesOnNewValue(t *testing.T) {
	w, s := testWriter(t)
	ctx := context.Background()

	key := Row{
		SecurityID: 1,
		Field:      navField,
		ValidDate:  model.MustDate("2024-06-28"),
	}

	first := key
	first.TxnDate = model.MustDate("2024-06-29")
	first.Value = model.VDouble(100.5)
	_, err := w.Upsert(ctx, first)
	require.NoError(t, err)

	second := key
	second.TxnDate = model.MustDate("2024-07-01")
	second.Value = model.VDouble(101.0)
	res, err := w.Upsert(ctx, second)
	require.NoError(t, err)
	assert.True(t, res.Inserted)
	assert.True(t, res.Superseded)

	// Exactly one current row; full history retained.
	revs := revisions(t, s, 1, 1, "2024-06-28")
	require.Len(t, revs, 2)
	assert.Equal(t, [3]any{"2024-06-29", 0, 100.5}, revs[0])
	assert.Equal(t, [3]any{"2024-07-01", 1, 101.0}, revs[1])
}

func TestUpsertSameValueIsNoOp(t *testing.T) {
	w, s := testWriter(t)
	ctx := context.Background()

	row := Row{
		SecurityID: 1,
		Field:      navField,
		ValidDate:  model.MustDate("2024-06-28"),
		TxnDate:    model.MustDate("2024-06-29"),
		Value:      model.VDouble(100.5),
	}
	_, err := w.Upsert(ctx, row)
	require.NoError(t, err)

	// Re-asserting the identical value, even with a later transaction date,
	// writes nothing.
	row.TxnDate = model.MustDate("2024-07-15")
	res, err := w.Upsert(ctx, row)
	require.NoError(t, err)
	assert.False(t, res.Inserted)

	revs := revisions(t, s, 1, 1, "2024-06-28")
	require.Len(t, revs, 1)
	assert.Equal(t, [3]any{"2024-06-29", 1, 100.5}, revs[0])
}

func TestUpsertRejectsNonIncreasingTxnDate(t *testing.T) {
	w, s := testWriter(t)
	ctx := context.Background()

	row := Row{
		SecurityID: 1,
		Field:      navField,
		ValidDate:  model.MustDate("2024-06-28"),
		TxnDate:    model.MustDate("2024-07-01"),
		Value:      model.VDouble(100.5),
	}
	_, err := w.Upsert(ctx, row)
	require.NoError(t, err)

	for _, txn := range []string{"2024-07-01", "2024-06-30"} {
		bad := row
		bad.TxnDate = model.MustDate(txn)
		bad.Value = model.VDouble(999)
		_, err := w.Upsert(ctx, bad)
		require.Error(t, err, "txn %s", txn)
		assert.True(t, IsMonotonicityViolation(err))
	}

	// The rejected writes left stored state untouched.
	revs := revisions(t, s, 1, 1, "2024-06-28")
	require.Len(t, revs, 1)
	assert.Equal(t, [3]any{"2024-07-01", 1, 100.5}, revs[0])
}

func TestUpsertRejectsNonUploadField(t *testing.T) {
	w, _ := testWriter(t)

	_, err := w.Upsert(context.Background(), Row{
		SecurityID: 1,
		Field:      readOnlyField,
		ValidDate:  model.MustDate("2024-06-28"),
		Value:      model.VDouble(1),
	})
	require.Error(t, err)
	var we *Error
	require.ErrorAs(t, err, &we)
	assert.Equal(t, ErrCodeNotWritable, we.Code)
}

func TestUpsertWideReplacesInPlace(t *testing.T) {
	w, s := testWriter(t)
	ctx := context.Background()

	row := Row{
		SecurityID: 1,
		Field:      pxField,
		ValidDate:  model.MustDate("2024-06-28"),
		Value:      model.VDouble(456.78),
	}
	_, err := w.Upsert(ctx, row)
	require.NoError(t, err)

	row.Value = model.VDouble(457.00)
	_, err = w.Upsert(ctx, row)
	require.NoError(t, err)

	// One row, latest value, no history.
	var (
		count int
		px    float64
	)
	require.NoError(t, s.QueryRow(ctx,
		`SELECT COUNT(*) FROM Pricing WHERE SecurityId = 1`).Scan(&count))
	require.NoError(t, s.QueryRow(ctx,
		`SELECT PxClose FROM Pricing WHERE SecurityId = 1 AND ValueDate = '2024-06-28'`).Scan(&px))
	assert.Equal(t, 1, count)
	assert.Equal(t, 457.00, px)
}

func TestUpsertManyIsAtomic(t *testing.T) {
	w, s := testWriter(t)
	ctx := context.Background()

	// Pre-existing revision that the second batch row will violate.
	_, err := w.Upsert(ctx, Row{
		SecurityID: 1,
		Field:      navField,
		ValidDate:  model.MustDate("2024-06-28"),
		TxnDate:    model.MustDate("2024-07-01"),
		Value:      model.VDouble(100),
	})
	require.NoError(t, err)

	_, err = w.UpsertMany(ctx, []Row{
		{
			SecurityID: 1,
			Field:      navField,
			ValidDate:  model.MustDate("2024-06-27"),
			TxnDate:    model.MustDate("2024-07-02"),
			Value:      model.VDouble(99),
		},
		{
			SecurityID: 1,
			Field:      navField,
			ValidDate:  model.MustDate("2024-06-28"),
			TxnDate:    model.MustDate("2024-06-30"), // violates ordering
			Value:      model.VDouble(101),
		},
	})
	require.Error(t, err)
	assert.True(t, IsMonotonicityViolation(err))

	// The first row of the batch must not have landed.
	assert.Empty(t, revisions(t, s, 1, 1, "2024-06-27"))
}

func TestUpsertManyCountsUnchanged(t *testing.T) {
	w, _ := testWriter(t)
	ctx := context.Background()

	row := Row{
		SecurityID: 1,
		Field:      navField,
		ValidDate:  model.MustDate("2024-06-28"),
		TxnDate:    model.MustDate("2024-06-29"),
		Value:      model.VDouble(100),
	}
	_, err := w.Upsert(ctx, row)
	require.NoError(t, err)

	row.TxnDate = model.MustDate("2024-07-01")
	res, err := w.UpsertMany(ctx, []Row{row, {
		SecurityID: 1,
		Field:      navField,
		ValidDate:  model.MustDate("2024-06-29"),
		TxnDate:    model.MustDate("2024-07-01"),
		Value:      model.VDouble(101),
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Written)
	assert.Equal(t, 1, res.Unchanged)
}

func TestInsertDividendsAllocatesOrderedIDs(t *testing.T) {
	w, s := testWriter(t)
	ctx := context.Background()

	ids, err := w.InsertDividends(ctx, []Dividend{
		{SecurityID: 1, ExDate: model.MustDate("2024-03-15"), Amount: 1.69, DividendType: "Regular"},
		{SecurityID: 1, ExDate: model.MustDate("2024-06-21"), Amount: 1.75, DividendType: "Regular"},
	}, model.MustDate("2024-06-30"))
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])
	// UUIDv7 ids are time-ordered, so insertion order is recoverable.
	assert.Less(t, ids[0], ids[1])

	var count int
	require.NoError(t, s.QueryRow(ctx, `SELECT COUNT(*) FROM Dividend`).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestInsertCorpEventsInternsTypes(t *testing.T) {
	w, s := testWriter(t)
	ctx := context.Background()

	_, err := w.InsertCorpEvents(ctx, []CorpEvent{
		{SecurityID: 1, EventType: "Split", EffectiveDate: model.MustDate("2024-06-10")},
		{SecurityID: 2, EventType: "Split", EffectiveDate: model.MustDate("2024-08-01")},
	}, model.MustDate("2024-06-30"))
	require.NoError(t, err)

	var refs int
	require.NoError(t, s.QueryRow(ctx, `SELECT COUNT(*) FROM CorpEventRef`).Scan(&refs))
	assert.Equal(t, 1, refs)

	var status string
	require.NoError(t, s.QueryRow(ctx,
		`SELECT Status FROM CorpEvent WHERE SecurityId = 1`).Scan(&status))
	assert.Equal(t, "Active", status)
}

func TestInsertPricingMergesCells(t *testing.T) {
	w, s := testWriter(t)
	ctx := context.Background()

	require.NoError(t, w.InsertPricing(ctx, []PricingRow{{
		SecurityID: 1,
		ValueDate:  model.MustDate("2024-06-28"),
		Cells:      map[string]float64{"PxClose": 456.78},
	}}))
	// A later upload for the same key with a different column must keep the
	// first column's value.
	require.NoError(t, w.InsertPricing(ctx, []PricingRow{{
		SecurityID: 1,
		ValueDate:  model.MustDate("2024-06-28"),
		Cells:      map[string]float64{"Volume": 1_000_000},
	}}))

	var (
		px  float64
		vol float64
	)
	require.NoError(t, s.QueryRow(ctx,
		`SELECT PxClose, Volume FROM Pricing WHERE SecurityId = 1`).Scan(&px, &vol))
	assert.Equal(t, 456.78, px)
	assert.Equal(t, 1_000_000.0, vol)
}
