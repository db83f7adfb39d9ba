// Package finstore is a versioned store for financial reference data and
// time series. Values are bitemporal: every revision records both the date
// it is about and the date the system learned it, so any past belief state
// can be reconstructed exactly. Fields are logical names routed onto
// physical storage by a metadata registry; callers never address tables.
package finstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/quantfold/finstore/internal/calendar"
	"github.com/quantfold/finstore/internal/fx"
	"github.com/quantfold/finstore/internal/model"
	"github.com/quantfold/finstore/internal/override"
	"github.com/quantfold/finstore/internal/registry"
	"github.com/quantfold/finstore/internal/router"
	"github.com/quantfold/finstore/internal/secmaster"
	"github.com/quantfold/finstore/internal/snapshot"
	"github.com/quantfold/finstore/internal/store"
	"github.com/quantfold/finstore/internal/writer"
)

// Re-exported domain types, so callers never import internal packages.
type (
	Date        = model.Date
	Value       = model.Value
	VString     = model.VString
	VDouble     = model.VDouble
	VInt        = model.VInt
	VDate       = model.VDate
	VBool       = model.VBool
	VJSON       = model.VJSON
	Observation = model.Observation
	Security    = model.Security
	FieldDef    = model.FieldDef
	Override    = model.Override
	DateMode    = model.DateMode
	FillMode    = model.FillMode
	Periodicity = model.Periodicity
	Days        = model.Days
	IDKind      = model.IDKind
)

// Re-exported mode constants.
const (
	AsOf     = model.AsOf
	AsSeen   = model.AsSeen
	FillNA   = model.FillNA
	FillP    = model.FillPrevious
	ByID     = model.ByID
	ByTicker = model.ByTicker
	ByVendor = model.ByVendor

	NonTradingDays = model.NonTradingDays
	CalendarDays   = model.CalendarDays
	TradingDays    = model.TradingDays
)

// Date and value helpers.
var (
	NewDate     = model.NewDate
	ParseDate   = model.ParseDate
	MustDate    = model.MustDate
	Today       = model.Today
	FormatValue = model.FormatValue
	CoerceValue = model.CoerceValue
)

// RequestError rejects a malformed query before any data is touched.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string {
	return "BAD_REQUEST: " + e.Message
}

// IsRequestError reports whether err is a request-validation rejection.
func IsRequestError(err error) bool {
	var re *RequestError
	return errors.As(err, &re)
}

// Error predicates, re-exported from the layers that define them.
var (
	IsUnknownField          = registry.IsUnknownField
	IsSchemaError           = registry.IsSchemaError
	IsRoutingError          = router.IsRoutingError
	IsUnknownSecurity       = secmaster.IsUnknownSecurity
	IsInactiveSecurity      = secmaster.IsInactiveSecurity
	IsAmbiguousRevision     = snapshot.IsAmbiguousRevision
	IsMonotonicityViolation = writer.IsMonotonicityViolation
	IsMissingRate           = fx.IsMissingRate
	IsUnknownExchange       = calendar.IsUnknownExchange
)

// DB is an open store with its metadata loaded. Safe for concurrent readers;
// writes serialize on the underlying database.
type DB struct {
	store     *store.Store
	meta      atomic.Pointer[metadata]
	master    *secmaster.Master
	resolver  *snapshot.Resolver
	overrides *override.Layer
	writer    *writer.Writer
	fx        *fx.Converter
	logger    *slog.Logger
}

// metadata is the registry and its router, swapped as one unit so a reader
// never sees a router planning against a registry it was not built from.
type metadata struct {
	registry *registry.Registry
	router   *router.Router
}

// Option configures Open.
type Option func(*config)

type config struct {
	logger *slog.Logger
}

// WithLogger routes the store's diagnostics to the given logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// Open opens (creating if needed) the database at path and loads the field
// registry. The path ":memory:" opens a throwaway in-memory store.
func Open(path string, opts ...Option) (*DB, error) {
	cfg := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	s, err := store.Open(path)
	if err != nil {
		return nil, err
	}

	db := &DB{
		store:     s,
		master:    secmaster.New(s, cfg.logger),
		resolver:  snapshot.New(s, cfg.logger),
		overrides: override.New(s, cfg.logger),
		writer:    writer.New(s, cfg.logger),
		fx:        fx.New(s, cfg.logger),
		logger:    cfg.logger,
	}
	if err := db.Reload(context.Background()); err != nil {
		s.Close()
		return nil, err
	}
	return db, nil
}

// Close releases the underlying database.
func (db *DB) Close() error {
	return db.store.Close()
}

// Reload re-reads field metadata. Existing readers keep the registry they
// started with; new requests see the fresh one.
func (db *DB) Reload(ctx context.Context) error {
	reg, err := registry.Load(ctx, db.store)
	if err != nil {
		return fmt.Errorf("load field registry: %w", err)
	}
	db.meta.Store(&metadata{registry: reg, router: router.New(reg)})
	return nil
}

// Fields lists every field definition in load order.
func (db *DB) Fields() []*FieldDef {
	return db.meta.Load().registry.All()
}

// Field resolves one mnemonic.
func (db *DB) Field(mnemonic string) (*FieldDef, error) {
	return db.meta.Load().registry.Resolve(mnemonic)
}

// SeedFields installs field definitions and mappings from a yaml document
// and reloads the registry.
func (db *DB) SeedFields(ctx context.Context, path string) error {
	sf, err := registry.ParseSeedFile(path)
	if err != nil {
		return err
	}
	if err := sf.Install(ctx, db.store); err != nil {
		return err
	}
	return db.Reload(ctx)
}

// Security resolves one identifier.
func (db *DB) Security(ctx context.Context, id string, kind IDKind) (Security, error) {
	return db.master.Resolve(ctx, id, kind)
}

// Securities lists the security master.
func (db *DB) Securities(ctx context.Context, includeInactive bool) ([]Security, error) {
	return db.master.List(ctx, includeInactive)
}

// UpsertSecurity inserts or updates a security keyed by ticker, returning
// its internal id.
func (db *DB) UpsertSecurity(ctx context.Context, sec Security) (int64, error) {
	return db.master.Upsert(ctx, sec)
}

// DeactivateSecurity closes a security's lifecycle as of dt.
func (db *DB) DeactivateSecurity(ctx context.Context, ticker string, dt Date) error {
	return db.master.Deactivate(ctx, ticker, dt)
}

// SetOverride asserts a correction for one (security, field, valid date).
// The supplied value must fit the field's declared type.
func (db *DB) SetOverride(ctx context.Context, ticker, field string, validDate Date, value any, reason, author string) error {
	sec, err := db.master.Resolve(ctx, ticker, model.ByTicker)
	if err != nil {
		return err
	}
	def, err := db.meta.Load().registry.Resolve(field)
	if err != nil {
		return err
	}
	v, err := model.CoerceValue(value, def.DataType)
	if err != nil {
		return err
	}
	return db.overrides.Put(ctx, model.Override{
		SecurityID: sec.ID,
		FieldID:    def.ID,
		ValidDate:  validDate,
		Value:      v,
		Reason:     reason,
		Author:     author,
	})
}

// ClearOverride removes a correction, restoring the stored value.
func (db *DB) ClearOverride(ctx context.Context, ticker, field string, validDate Date) error {
	sec, err := db.master.Resolve(ctx, ticker, model.ByTicker)
	if err != nil {
		return err
	}
	def, err := db.meta.Load().registry.Resolve(field)
	if err != nil {
		return err
	}
	return db.overrides.Delete(ctx, sec.ID, def.ID, validDate)
}

// Overrides lists every correction asserted for a security.
func (db *DB) Overrides(ctx context.Context, ticker string) ([]Override, error) {
	sec, err := db.master.Resolve(ctx, ticker, model.ByTicker)
	if err != nil {
		return nil, err
	}
	return db.overrides.List(ctx, sec.ID)
}

// PrevBusinessDay is the default valid date for point reads.
func PrevBusinessDay(dt Date) Date {
	return calendar.PrevBusinessDay(dt)
}

// resolveSeries fetches, override-merges and FX-converts one (security,
// field) series. Conversion runs last so overridden values convert too.
func (db *DB) resolveSeries(ctx context.Context, sec Security, target router.Target, from, to Date, mode DateMode, asOf Date, fxTarget string) ([]Observation, error) {
	def := target.Field
	q := snapshot.Query{
		SecurityID:   sec.ID,
		Field:        def,
		SourceTable:  target.SourceTable,
		SourceColumn: target.SourceColumn,
		From:         from,
		To:           to,
		Mode:         mode,
		AsOfDate:     asOf,
	}
	facts, err := db.resolver.Fetch(ctx, q)
	if err != nil {
		return nil, err
	}

	obs := make([]Observation, 0, len(facts))
	for _, f := range facts {
		obs = append(obs, Observation{
			SecurityID: f.SecurityID,
			Field:      def.Mnemonic,
			ValidDate:  f.ValidDate,
			Value:      f.Value,
		})
	}

	ovs, err := db.overrides.Fetch(ctx, sec.ID, def, from, to)
	if err != nil {
		return nil, err
	}
	obs = override.Apply(obs, ovs, def.Mnemonic)

	if fxTarget != "" && def.FxMode != model.FxNone {
		obs, err = db.fx.ConvertSeries(ctx, obs, sec.Currency, fxTarget, def.FxMode)
		if err != nil {
			return nil, err
		}
	}
	return obs, nil
}
