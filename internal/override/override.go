// Package override stores and applies user-asserted corrections. An override
// pins a value for its exact (security, field, valid date) key and outranks
// whatever the revision store resolves there. Overrides are not revisions:
// writing one never touches the underlying tables, and removing one restores
// the stored value untouched.
package override

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/quantfold/finstore/internal/model"
	"github.com/quantfold/finstore/internal/store"
)

// Layer reads and writes the override table.
type Layer struct {
	store  *store.Store
	logger *slog.Logger
}

// New builds a Layer over the given store.
func New(s *store.Store, logger *slog.Logger) *Layer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Layer{store: s, logger: logger}
}

// Put asserts an override. Re-asserting a key replaces the previous override.
func (l *Layer) Put(ctx context.Context, o model.Override) error {
	cells := model.Decompose(o.Value)
	_, err := l.store.Exec(ctx, `
		INSERT INTO FieldOverride
		  (SecurityId, FieldId, ValueDate, ValChr, ValDbl, ValInt, ValDate,
		   Reason, CreatedBy)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''))
		ON CONFLICT(SecurityId, FieldId, ValueDate) DO UPDATE SET
		  ValChr = excluded.ValChr,
		  ValDbl = excluded.ValDbl,
		  ValInt = excluded.ValInt,
		  ValDate = excluded.ValDate,
		  Reason = excluded.Reason,
		  CreatedBy = excluded.CreatedBy,
		  CreatedAt = datetime('now')
	`, o.SecurityID, o.FieldID, o.ValidDate.String(),
		cells.Chr, cells.Dbl, cells.Int, cells.Date,
		o.Reason, o.Author)
	if err != nil {
		return fmt.Errorf("put override: %w", err)
	}
	l.logger.Info("override asserted",
		"security_id", o.SecurityID,
		"field_id", o.FieldID,
		"valid_date", o.ValidDate,
		"author", o.Author,
	)
	return nil
}

// Delete removes an override, restoring the stored value for the key.
// Deleting an absent override is a no-op.
func (l *Layer) Delete(ctx context.Context, securityID, fieldID int64, validDate model.Date) error {
	_, err := l.store.Exec(ctx, `
		DELETE FROM FieldOverride
		WHERE SecurityId = ? AND FieldId = ? AND ValueDate = ?
	`, securityID, fieldID, validDate.String())
	if err != nil {
		return fmt.Errorf("delete override: %w", err)
	}
	return nil
}

// Fetch returns the overrides for one (security, field) in [from, to], keyed
// by valid date.
func (l *Layer) Fetch(ctx context.Context, securityID int64, field *model.FieldDef, from, to model.Date) (map[string]model.Override, error) {
	rows, err := l.store.Query(ctx, `
		SELECT ValueDate, ValChr, ValDbl, ValInt, ValDate,
		       COALESCE(Reason, ''), COALESCE(CreatedBy, '')
		FROM FieldOverride
		WHERE SecurityId = ? AND FieldId = ? AND ValueDate BETWEEN ? AND ?
	`, securityID, field.ID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("fetch overrides: %w", err)
	}
	defer rows.Close()

	out := make(map[string]model.Override)
	for rows.Next() {
		var (
			validDate string
			cells     model.StorageCells
			o         model.Override
		)
		if err := rows.Scan(&validDate, &cells.Chr, &cells.Dbl, &cells.Int, &cells.Date,
			&o.Reason, &o.Author); err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		o.SecurityID = securityID
		o.FieldID = field.ID
		if o.ValidDate, err = model.ParseDate(validDate); err != nil {
			return nil, fmt.Errorf("bad override valid date %q: %w", validDate, err)
		}
		if o.Value, err = model.Compose(cells, field.DataType); err != nil {
			return nil, fmt.Errorf("compose override value: %w", err)
		}
		out[validDate] = o
	}
	return out, rows.Err()
}

// List returns every override for a security in valid-date order, across all
// fields. Used by diagnostics and the CLI.
func (l *Layer) List(ctx context.Context, securityID int64) ([]model.Override, error) {
	rows, err := l.store.Query(ctx, `
		SELECT o.FieldId, o.ValueDate, d.DataType,
		       o.ValChr, o.ValDbl, o.ValInt, o.ValDate,
		       COALESCE(o.Reason, ''), COALESCE(o.CreatedBy, '')
		FROM FieldOverride o
		JOIN FieldDef d ON d.FieldId = o.FieldId
		WHERE o.SecurityId = ?
		ORDER BY o.ValueDate ASC, o.FieldId ASC
	`, securityID)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	defer rows.Close()

	var out []model.Override
	for rows.Next() {
		var (
			validDate, dataType string
			cells               model.StorageCells
			o                   model.Override
		)
		if err := rows.Scan(&o.FieldID, &validDate, &dataType,
			&cells.Chr, &cells.Dbl, &cells.Int, &cells.Date,
			&o.Reason, &o.Author); err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		o.SecurityID = securityID
		if o.ValidDate, err = model.ParseDate(validDate); err != nil {
			return nil, fmt.Errorf("bad override valid date %q: %w", validDate, err)
		}
		t, err := model.ParseDataType(dataType)
		if err != nil {
			return nil, err
		}
		if o.Value, err = model.Compose(cells, t); err != nil {
			return nil, fmt.Errorf("compose override value: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Apply merges overrides into a resolved series. An override whose valid date
// matches an observation replaces its value; an override with no underlying
// observation materializes one under the given field mnemonic. Either way the
// result is annotated with the override's provenance. Pure: inputs are not
// mutated.
func Apply(obs []model.Observation, overrides map[string]model.Override, field string) []model.Observation {
	if len(overrides) == 0 {
		return obs
	}

	used := make(map[string]bool, len(overrides))
	out := make([]model.Observation, 0, len(obs)+len(overrides))
	for _, o := range obs {
		key := o.ValidDate.String()
		if ov, ok := overrides[key]; ok {
			o.Value = ov.Value
			o.Overridden = true
			o.Reason = ov.Reason
			o.Author = ov.Author
			o.Filled = false
			used[key] = true
		}
		out = append(out, o)
	}

	for key, ov := range overrides {
		if used[key] {
			continue
		}
		out = append(out, model.Observation{
			SecurityID: ov.SecurityID,
			Field:      field,
			ValidDate:  ov.ValidDate,
			Value:      ov.Value,
			Overridden: true,
			Reason:     ov.Reason,
			Author:     ov.Author,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ValidDate.Before(out[j].ValidDate)
	})
	return out
}
