package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenAppliesPragmas(t *testing.T) {
	s := openTestStore(t)

	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
	if err := s.verifyPragma("foreign_keys", "1"); err != nil {
		t.Error(err)
	}
	if err := s.verifyPragma("busy_timeout", "5000"); err != nil {
		t.Error(err)
	}
}

func TestOpenCreatesSchema(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tables := []string{
		"SecurityMaster", "FieldDef", "FieldMap",
		"FieldSnapshot", "SecuritySnapshot",
		"Pricing", "WeeklyData", "MonthlyData",
		"Dividend", "CorpEventRef", "CorpEvent", "AdjFactor",
		"FieldOverride",
	}
	for _, table := range tables {
		var name string
		err := s.QueryRow(ctx,
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
			table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	s2.Close()
}

func TestMigrationSetsUserVersion(t *testing.T) {
	s := openTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestOneCurrentRowIndexRejectsSecondCurrent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Parent rows for the foreign keys.
	if _, err := s.Exec(ctx, `INSERT INTO SecurityMaster (Id, Ticker, SecurityType)
		VALUES (1, 'SPY', 'ETF')`); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Exec(ctx, `INSERT INTO FieldDef
		(FieldId, FieldMnemonic, DataType, StorageMode, StorageTable)
		VALUES (1, 'NAV_CLOSE', 'dbl', 'long', 'FieldSnapshot')`); err != nil {
		t.Fatal(err)
	}

	insert := `INSERT INTO FieldSnapshot
		(SecurityId, FieldId, ValueDate, AsOfDate, LastFlag, ValDbl)
		VALUES (1, 1, '2024-06-28', ?, 1, ?)`

	if _, err := s.Exec(ctx, insert, "2024-06-29", 1.0); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	// Second current row for the same (security, field, valid date) must be
	// rejected by the partial unique index.
	if _, err := s.Exec(ctx, insert, "2024-06-30", 2.0); err == nil {
		t.Fatal("expected second current row to violate the unique index")
	}

	// A superseded row alongside the current one is fine.
	if _, err := s.Exec(ctx, `INSERT INTO FieldSnapshot
		(SecurityId, FieldId, ValueDate, AsOfDate, LastFlag, ValDbl)
		VALUES (1, 1, '2024-06-28', '2024-06-27', 0, 0.5)`); err != nil {
		t.Fatalf("superseded insert: %v", err)
	}
}

func TestWithTxCommitsOnNil(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO SecurityMaster
			(Ticker, SecurityType) VALUES ('SPY', 'ETF')`)
		return err
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}

	var count int
	if err := s.QueryRow(ctx, "SELECT COUNT(*) FROM SecurityMaster").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO SecurityMaster
			(Ticker, SecurityType) VALUES ('SPY', 'ETF')`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	var count int
	if err := s.QueryRow(ctx, "SELECT COUNT(*) FROM SecurityMaster").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("count = %d after rollback, want 0", count)
	}
}
