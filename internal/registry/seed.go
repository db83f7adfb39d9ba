package registry

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quantfold/finstore/internal/model"
	"github.com/quantfold/finstore/internal/store"
)

// SeedFile is the yaml bootstrap format for field metadata.
//
//	fields:
//	  - mnemonic: PX_CLOSE
//	    type: dbl
//	    storage: wide
//	    table: Pricing
//	    column: PxClose
//	    periodicity: D
//	    fx: money
//	mappings:
//	  - field: NAV_CLOSE
//	    security_type: MF
//	    table: Pricing
//	    column: NavLast
//	    priority: 10
type SeedFile struct {
	Fields   []SeedField   `yaml:"fields"`
	Mappings []SeedMapping `yaml:"mappings"`
}

// SeedField declares one field definition.
type SeedField struct {
	Mnemonic    string `yaml:"mnemonic"`
	Type        string `yaml:"type"`
	Storage     string `yaml:"storage"`
	Table       string `yaml:"table"`
	Column      string `yaml:"column"`
	Periodicity string `yaml:"periodicity"`
	Fx          string `yaml:"fx"`
	Point       *bool  `yaml:"point"`
	History     *bool  `yaml:"history"`
	Dataset     *bool  `yaml:"dataset"`
	Upload      *bool  `yaml:"upload"`
}

// SeedMapping declares one per-security-type source override.
type SeedMapping struct {
	Field        string `yaml:"field"`
	SecurityType string `yaml:"security_type"`
	Table        string `yaml:"table"`
	Column       string `yaml:"column"`
	Priority     int    `yaml:"priority"`
}

// ParseSeed decodes and validates a seed document.
func ParseSeed(data []byte) (*SeedFile, error) {
	var sf SeedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("decode seed yaml: %w", err)
	}

	seen := make(map[string]bool)
	for _, f := range sf.Fields {
		if f.Mnemonic == "" {
			return nil, &Error{Code: ErrCodeUnknownField, Message: "seed field with empty mnemonic"}
		}
		if seen[f.Mnemonic] {
			return nil, &Error{
				Code:     ErrCodeDuplicateMnemonic,
				Message:  "field mnemonic defined more than once in seed",
				Mnemonic: f.Mnemonic,
			}
		}
		seen[f.Mnemonic] = true
		if _, err := model.ParseDataType(f.Type); err != nil {
			return nil, &Error{Code: ErrCodeBadDataType, Message: err.Error(), Mnemonic: f.Mnemonic}
		}
		if _, err := model.ParseStorageMode(f.Storage); err != nil {
			return nil, &Error{Code: ErrCodeBadStorageMode, Message: err.Error(), Mnemonic: f.Mnemonic}
		}
	}
	for _, m := range sf.Mappings {
		if !seen[m.Field] {
			return nil, &Error{
				Code:     ErrCodeUnknownField,
				Message:  "mapping references a field not declared in seed",
				Mnemonic: m.Field,
			}
		}
	}
	return &sf, nil
}

// ParseSeedFile reads and decodes a seed document from disk.
func ParseSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(data)
}

// Install writes the seed's definitions and mappings into the store,
// replacing any definition that already exists for the same mnemonic.
// A new Registry must be constructed afterwards to observe the result.
func (sf *SeedFile) Install(ctx context.Context, s *store.Store) error {
	for _, f := range sf.Fields {
		boolDefault := func(p *bool, def bool) int {
			v := def
			if p != nil {
				v = *p
			}
			if v {
				return 1
			}
			return 0
		}
		period := f.Periodicity
		if period == "" {
			period = string(model.Daily)
		}
		_, err := s.Exec(ctx, `
			INSERT INTO FieldDef
			  (FieldMnemonic, DataType, StorageMode, StorageTable, StorageColumn,
			   Periodicity, FxMode, IsPoint, IsHistory, IsDataset, IsUpload)
			VALUES (?, ?, ?, ?, ?, ?, NULLIF(?, ''), ?, ?, ?, ?)
			ON CONFLICT(FieldMnemonic) DO UPDATE SET
			  DataType = excluded.DataType,
			  StorageMode = excluded.StorageMode,
			  StorageTable = excluded.StorageTable,
			  StorageColumn = excluded.StorageColumn,
			  Periodicity = excluded.Periodicity,
			  FxMode = excluded.FxMode,
			  IsPoint = excluded.IsPoint,
			  IsHistory = excluded.IsHistory,
			  IsDataset = excluded.IsDataset,
			  IsUpload = excluded.IsUpload
		`,
			f.Mnemonic, f.Type, f.Storage, f.Table, f.Column,
			period, f.Fx,
			boolDefault(f.Point, true), boolDefault(f.History, true),
			boolDefault(f.Dataset, false), boolDefault(f.Upload, true),
		)
		if err != nil {
			return fmt.Errorf("install field %s: %w", f.Mnemonic, err)
		}
	}

	for _, m := range sf.Mappings {
		_, err := s.Exec(ctx, `
			INSERT INTO FieldMap (FieldId, SecurityType, SourceTable, SourceColumn, Priority)
			SELECT FieldId, ?, ?, ?, ?
			FROM FieldDef WHERE FieldMnemonic = ?
			ON CONFLICT(FieldId, SecurityType, Priority) DO UPDATE SET
			  SourceTable = excluded.SourceTable,
			  SourceColumn = excluded.SourceColumn
		`, m.SecurityType, m.Table, m.Column, m.Priority, m.Field)
		if err != nil {
			return fmt.Errorf("install mapping for %s: %w", m.Field, err)
		}
	}
	return nil
}
