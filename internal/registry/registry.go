// Package registry loads field metadata once and answers routing questions:
// which tier backs a field, which physical table and column, which query
// families may serve it.
//
// A Registry is an immutably-shared snapshot. It is never refreshed in
// place; observing metadata changes requires constructing a new Registry.
// Concurrent readers share one instance without synchronization.
package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/quantfold/finstore/internal/model"
	"github.com/quantfold/finstore/internal/store"
)

// Operation names a query family for field filtering.
type Operation string

const (
	OpPoint   Operation = "point"
	OpHistory Operation = "history"
	OpDataset Operation = "dataset"
	OpUpload  Operation = "upload"
)

// Registry is the in-memory field-metadata snapshot.
type Registry struct {
	byMnemonic map[string]*model.FieldDef
	byID       map[int64]*model.FieldDef
	// mappings per field id, ascending priority (lowest wins).
	mappings map[int64][]model.FieldMapping
	ordered  []*model.FieldDef // load order, for stable listings
}

// Load reads all field definitions and mappings from the store.
// Fails with a schema error if a mnemonic is duplicated, a storage mode or
// data type is unrecognized, or two mappings tie on priority.
func Load(ctx context.Context, s *store.Store) (*Registry, error) {
	r := &Registry{
		byMnemonic: make(map[string]*model.FieldDef),
		byID:       make(map[int64]*model.FieldDef),
		mappings:   make(map[int64][]model.FieldMapping),
	}

	rows, err := s.Query(ctx, `
		SELECT FieldId, FieldMnemonic, DataType, StorageMode, StorageTable,
		       COALESCE(StorageColumn, ''), Periodicity, COALESCE(FxMode, ''),
		       IsPoint, IsHistory, IsDataset, IsUpload
		FROM FieldDef
		ORDER BY FieldId ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query field definitions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			def                                  model.FieldDef
			dataType, storageMode, period, fxMode string
			isPoint, isHistory, isDataset, isUp  int
		)
		if err := rows.Scan(
			&def.ID, &def.Mnemonic, &dataType, &storageMode, &def.StorageTable,
			&def.StorageColumn, &period, &fxMode,
			&isPoint, &isHistory, &isDataset, &isUp,
		); err != nil {
			return nil, fmt.Errorf("scan field definition: %w", err)
		}

		def.DataType, err = model.ParseDataType(dataType)
		if err != nil {
			return nil, &Error{Code: ErrCodeBadDataType, Message: err.Error(), Mnemonic: def.Mnemonic}
		}
		def.StorageMode, err = model.ParseStorageMode(storageMode)
		if err != nil {
			return nil, &Error{Code: ErrCodeBadStorageMode, Message: err.Error(), Mnemonic: def.Mnemonic}
		}
		def.Periodicity = model.Periodicity(period)
		def.FxMode = model.FxMode(fxMode)
		def.Point = isPoint != 0
		def.History = isHistory != 0
		def.Dataset = isDataset != 0
		def.Upload = isUp != 0

		if _, dup := r.byMnemonic[def.Mnemonic]; dup {
			return nil, &Error{
				Code:     ErrCodeDuplicateMnemonic,
				Message:  "field mnemonic defined more than once",
				Mnemonic: def.Mnemonic,
			}
		}

		d := def
		r.byMnemonic[d.Mnemonic] = &d
		r.byID[d.ID] = &d
		r.ordered = append(r.ordered, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate field definitions: %w", err)
	}

	if err := r.loadMappings(ctx, s); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Registry) loadMappings(ctx context.Context, s *store.Store) error {
	rows, err := s.Query(ctx, `
		SELECT FieldId, SecurityType, SourceTable, SourceColumn, Priority
		FROM FieldMap
		ORDER BY FieldId ASC, Priority ASC
	`)
	if err != nil {
		return fmt.Errorf("query field mappings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m model.FieldMapping
		if err := rows.Scan(&m.FieldID, &m.SecurityType, &m.SourceTable, &m.SourceColumn, &m.Priority); err != nil {
			return fmt.Errorf("scan field mapping: %w", err)
		}
		r.mappings[m.FieldID] = append(r.mappings[m.FieldID], m)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate field mappings: %w", err)
	}

	// At most one mapping may win per (field, security type): a priority tie
	// would make the winner arbitrary, so it is rejected at load.
	for id, ms := range r.mappings {
		sort.SliceStable(ms, func(i, j int) bool { return ms[i].Priority < ms[j].Priority })
		byType := make(map[string]int)
		for _, m := range ms {
			if prev, ok := byType[m.SecurityType]; ok && prev == m.Priority {
				def := r.byID[id]
				mnemonic := ""
				if def != nil {
					mnemonic = def.Mnemonic
				}
				return &Error{
					Code:     ErrCodeAmbiguousMapping,
					Message:  fmt.Sprintf("mappings for security type %q tie on priority %d", m.SecurityType, m.Priority),
					Mnemonic: mnemonic,
				}
			}
			if _, ok := byType[m.SecurityType]; !ok {
				byType[m.SecurityType] = m.Priority
			}
		}
	}
	return nil
}

// Resolve returns the definition for a mnemonic, or an unknown-field error.
func (r *Registry) Resolve(mnemonic string) (*model.FieldDef, error) {
	def, ok := r.byMnemonic[mnemonic]
	if !ok {
		return nil, &Error{
			Code:     ErrCodeUnknownField,
			Message:  "no definition for field",
			Mnemonic: mnemonic,
		}
	}
	return def, nil
}

// ByID returns the definition for a field id, or nil.
func (r *Registry) ByID(id int64) *model.FieldDef {
	return r.byID[id]
}

// MappingFor returns the winning physical-source mapping for a field and
// security type, or ok=false when the field's default source applies.
func (r *Registry) MappingFor(fieldID int64, securityType string) (model.FieldMapping, bool) {
	for _, m := range r.mappings[fieldID] {
		if m.SecurityType == securityType {
			return m, true
		}
	}
	return model.FieldMapping{}, false
}

// Partition splits mnemonics by storage tier. Unmapped fields are reported,
// not silently dropped, so callers can surface a precise error instead of
// returning a truncated result.
type Partition struct {
	Wide     []*model.FieldDef
	Long     []*model.FieldDef
	Unmapped []string
}

// Partition classifies the given mnemonics by storage tier.
func (r *Registry) Partition(mnemonics []string) Partition {
	var p Partition
	for _, m := range mnemonics {
		def, ok := r.byMnemonic[m]
		if !ok {
			p.Unmapped = append(p.Unmapped, m)
			continue
		}
		switch def.StorageMode {
		case model.StorageWide:
			p.Wide = append(p.Wide, def)
		case model.StorageLong:
			p.Long = append(p.Long, def)
		}
	}
	return p
}

// ForOperation lists fields flagged for a query family, in definition order.
func (r *Registry) ForOperation(op Operation) []*model.FieldDef {
	var out []*model.FieldDef
	for _, def := range r.ordered {
		switch op {
		case OpPoint:
			if def.Point {
				out = append(out, def)
			}
		case OpHistory:
			if def.History {
				out = append(out, def)
			}
		case OpDataset:
			if def.Dataset {
				out = append(out, def)
			}
		case OpUpload:
			if def.Upload {
				out = append(out, def)
			}
		}
	}
	return out
}

// All lists every definition in load order.
func (r *Registry) All() []*model.FieldDef {
	out := make([]*model.FieldDef, len(r.ordered))
	copy(out, r.ordered)
	return out
}
