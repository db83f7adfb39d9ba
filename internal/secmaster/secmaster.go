// Package secmaster resolves caller-supplied instrument identifiers to
// security-master records and maintains the master itself. Identifier
// resolution never leaks internal ids into lookups: by-id, by-ticker and
// vendor-ticker lookups are distinct, explicit modes.
package secmaster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quantfold/finstore/internal/model"
	"github.com/quantfold/finstore/internal/store"
)

// Error is a security-resolution failure.
type Error struct {
	Code       ErrorCode
	Message    string
	Identifier string
}

// ErrorCode categorizes security-master errors.
type ErrorCode string

const (
	// ErrCodeUnknownSecurity indicates no record matches the identifier.
	ErrCodeUnknownSecurity ErrorCode = "UNKNOWN_SECURITY"

	// ErrCodeAmbiguousIdentifier indicates an identifier matched more than
	// one record. Vendor tickers are not schema-unique, so this is reachable.
	ErrCodeAmbiguousIdentifier ErrorCode = "AMBIGUOUS_IDENTIFIER"

	// ErrCodeInactiveSecurity indicates the record exists but its lifecycle
	// window does not cover the requested date.
	ErrCodeInactiveSecurity ErrorCode = "INACTIVE_SECURITY"
)

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (identifier=%s)", e.Code, e.Message, e.Identifier)
}

// IsUnknownSecurity reports whether err is an unknown-security error.
func IsUnknownSecurity(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Code == ErrCodeUnknownSecurity
}

// IsInactiveSecurity reports whether err is a lifecycle rejection.
func IsInactiveSecurity(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Code == ErrCodeInactiveSecurity
}

// Master answers identifier lookups against the security master.
type Master struct {
	store  *store.Store
	logger *slog.Logger
}

// New builds a Master over the given store.
func New(s *store.Store, logger *slog.Logger) *Master {
	if logger == nil {
		logger = slog.Default()
	}
	return &Master{store: s, logger: logger}
}

const securityColumns = `Id, Ticker, SecurityType, COALESCE(Currency, ''),
	COALESCE(ExchangeCode, ''), COALESCE(BlpTicker, ''),
	COALESCE(InceptionDate, ''), COALESCE(TerminationDate, ''), IsActive`

func scanSecurity(row interface{ Scan(...any) error }) (model.Security, error) {
	var (
		sec                  model.Security
		inception, termDate  string
		isActive             int
	)
	err := row.Scan(
		&sec.ID, &sec.Ticker, &sec.SecurityType, &sec.Currency,
		&sec.ExchangeCode, &sec.VendorTicker,
		&inception, &termDate, &isActive,
	)
	if err != nil {
		return model.Security{}, err
	}
	if inception != "" {
		if sec.InceptionDate, err = model.ParseDate(inception); err != nil {
			return model.Security{}, fmt.Errorf("bad inception date %q: %w", inception, err)
		}
	}
	if termDate != "" {
		if sec.TerminationDate, err = model.ParseDate(termDate); err != nil {
			return model.Security{}, fmt.Errorf("bad termination date %q: %w", termDate, err)
		}
	}
	sec.IsActive = isActive != 0
	return sec, nil
}

// Resolve finds the security identified by id under the given mode.
func (m *Master) Resolve(ctx context.Context, id string, kind model.IDKind) (model.Security, error) {
	var (
		query string
		arg   any = id
	)
	switch kind {
	case model.ByID:
		query = `SELECT ` + securityColumns + ` FROM SecurityMaster WHERE Id = ?`
	case model.ByTicker:
		query = `SELECT ` + securityColumns + ` FROM SecurityMaster WHERE Ticker = ?`
	case model.ByVendor:
		return m.resolveVendor(ctx, id)
	default:
		return model.Security{}, fmt.Errorf("unknown identifier kind %q", kind)
	}

	sec, err := scanSecurity(m.store.QueryRow(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Security{}, &Error{
			Code:       ErrCodeUnknownSecurity,
			Message:    fmt.Sprintf("no security for %s", kind),
			Identifier: id,
		}
	}
	if err != nil {
		return model.Security{}, fmt.Errorf("resolve security %q: %w", id, err)
	}
	return sec, nil
}

// resolveVendor looks a security up by vendor ticker. Vendor tickers carry no
// uniqueness constraint, so a multi-match is rejected rather than picked from.
func (m *Master) resolveVendor(ctx context.Context, vendorTicker string) (model.Security, error) {
	rows, err := m.store.Query(ctx,
		`SELECT `+securityColumns+` FROM SecurityMaster WHERE BlpTicker = ? ORDER BY Id ASC`,
		vendorTicker)
	if err != nil {
		return model.Security{}, fmt.Errorf("resolve vendor ticker %q: %w", vendorTicker, err)
	}
	defer rows.Close()

	var matches []model.Security
	for rows.Next() {
		sec, err := scanSecurity(rows)
		if err != nil {
			return model.Security{}, fmt.Errorf("scan security: %w", err)
		}
		matches = append(matches, sec)
	}
	if err := rows.Err(); err != nil {
		return model.Security{}, err
	}

	switch len(matches) {
	case 0:
		return model.Security{}, &Error{
			Code:       ErrCodeUnknownSecurity,
			Message:    "no security for vendor ticker",
			Identifier: vendorTicker,
		}
	case 1:
		return matches[0], nil
	default:
		return model.Security{}, &Error{
			Code:       ErrCodeAmbiguousIdentifier,
			Message:    fmt.Sprintf("vendor ticker matches %d securities", len(matches)),
			Identifier: vendorTicker,
		}
	}
}

// ResolveActive resolves id and additionally requires the security's
// lifecycle window to cover dt. includeInactive skips the lifecycle check.
func (m *Master) ResolveActive(ctx context.Context, id string, kind model.IDKind, dt model.Date, includeInactive bool) (model.Security, error) {
	sec, err := m.Resolve(ctx, id, kind)
	if err != nil {
		return model.Security{}, err
	}
	if includeInactive {
		return sec, nil
	}
	if !sec.IsActive || !sec.ActiveOn(dt) {
		return model.Security{}, &Error{
			Code:       ErrCodeInactiveSecurity,
			Message:    fmt.Sprintf("security not active on %s", dt),
			Identifier: id,
		}
	}
	return sec, nil
}

// ResolveAll resolves a batch of identifiers, preserving order. The first
// failure aborts the batch so callers never operate on a partial universe.
func (m *Master) ResolveAll(ctx context.Context, ids []string, kind model.IDKind) ([]model.Security, error) {
	out := make([]model.Security, 0, len(ids))
	for _, id := range ids {
		sec, err := m.Resolve(ctx, id, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, sec)
	}
	return out, nil
}

// List returns the security master in ticker order. Inactive records are
// excluded unless includeInactive is set.
func (m *Master) List(ctx context.Context, includeInactive bool) ([]model.Security, error) {
	query := `SELECT ` + securityColumns + ` FROM SecurityMaster`
	if !includeInactive {
		query += ` WHERE IsActive = 1`
	}
	query += ` ORDER BY Ticker ASC`

	rows, err := m.store.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list securities: %w", err)
	}
	defer rows.Close()

	var out []model.Security
	for rows.Next() {
		sec, err := scanSecurity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan security: %w", err)
		}
		out = append(out, sec)
	}
	return out, rows.Err()
}

// Upsert inserts or updates a security keyed by ticker and returns its
// internal id. The internal id is never caller-assigned: an update keeps the
// existing id, an insert allocates a fresh one.
func (m *Master) Upsert(ctx context.Context, sec model.Security) (int64, error) {
	var id int64
	err := m.store.WithTx(ctx, func(tx *sql.Tx) error {
		inception := sql.NullString{}
		if !sec.InceptionDate.IsZero() {
			inception = sql.NullString{String: sec.InceptionDate.String(), Valid: true}
		}
		termination := sql.NullString{}
		if !sec.TerminationDate.IsZero() {
			termination = sql.NullString{String: sec.TerminationDate.String(), Valid: true}
		}
		isActive := 0
		if sec.IsActive {
			isActive = 1
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO SecurityMaster
			  (Ticker, SecurityType, Currency, ExchangeCode, BlpTicker,
			   InceptionDate, TerminationDate, IsActive)
			VALUES (?, ?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?)
			ON CONFLICT(Ticker) DO UPDATE SET
			  SecurityType = excluded.SecurityType,
			  Currency = excluded.Currency,
			  ExchangeCode = excluded.ExchangeCode,
			  BlpTicker = excluded.BlpTicker,
			  InceptionDate = excluded.InceptionDate,
			  TerminationDate = excluded.TerminationDate,
			  IsActive = excluded.IsActive
		`,
			sec.Ticker, sec.SecurityType, sec.Currency, sec.ExchangeCode,
			sec.VendorTicker, inception, termination, isActive,
		)
		if err != nil {
			return fmt.Errorf("upsert security %s: %w", sec.Ticker, err)
		}

		return tx.QueryRowContext(ctx,
			`SELECT Id FROM SecurityMaster WHERE Ticker = ?`, sec.Ticker).Scan(&id)
	})
	if err != nil {
		return 0, err
	}
	m.logger.Debug("security upserted", "ticker", sec.Ticker, "id", id)
	return id, nil
}

// Deactivate closes a security's lifecycle as of dt without deleting its
// history.
func (m *Master) Deactivate(ctx context.Context, ticker string, dt model.Date) error {
	n, err := m.store.Exec(ctx, `
		UPDATE SecurityMaster
		SET IsActive = 0, TerminationDate = ?
		WHERE Ticker = ?
	`, dt.String(), ticker)
	if err != nil {
		return fmt.Errorf("deactivate security %s: %w", ticker, err)
	}
	if n == 0 {
		return &Error{
			Code:       ErrCodeUnknownSecurity,
			Message:    "no security for ticker",
			Identifier: ticker,
		}
	}
	m.logger.Info("security deactivated", "ticker", ticker, "termination_date", dt)
	return nil
}
