package finstore

import (
	"context"

	"github.com/quantfold/finstore/internal/registry"
	"github.com/quantfold/finstore/internal/resample"
)

// HistoryRequest asks for a field series over a valid-date range.
type HistoryRequest struct {
	IDs    []string
	IDKind IDKind // defaults to ticker
	Fields []string
	From   Date
	To     Date // zero means today
	// Mode selects the temporal axis; defaults to as-seen. AsOfDate is
	// required for as-of mode.
	Mode     DateMode
	AsOfDate Date
	// Periodicity coarsens the output grid; defaults to the raw stored
	// dates (no grid projection).
	Periodicity Periodicity
	// DaysPolicy selects the day universe for grid boundaries: weekdays
	// (default), raw calendar days, or the exchange's trading sessions.
	DaysPolicy Days
	// Fill controls gap handling on the grid; defaults to leaving gaps
	// absent. Fills only ever carry values forward.
	Fill FillMode
	// Fx converts currency-denominated fields into this target currency.
	Fx string
	// IncludeInactive admits securities whose lifecycle window does not
	// cover the range.
	IncludeInactive bool
}

func (r *HistoryRequest) normalize() error {
	if r.IDKind == "" {
		r.IDKind = ByTicker
	}
	if r.Mode == "" {
		r.Mode = AsSeen
	}
	if r.Mode == AsOf && r.AsOfDate.IsZero() {
		return &RequestError{Message: "as_of mode requires an as-of date"}
	}
	if r.To.IsZero() {
		r.To = Today()
	}
	if r.Fill == "" {
		r.Fill = FillNA
	}
	return nil
}

// History reads field series over [From, To], ascending by valid date per
// (security, field). With a periodicity set, the resolved series is
// projected onto period boundaries; values are sampled at or before each
// boundary and never from its future.
func (db *DB) History(ctx context.Context, req HistoryRequest) ([]Observation, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}

	secs := make([]Security, 0, len(req.IDs))
	for _, id := range req.IDs {
		sec, err := db.master.ResolveActive(ctx, id, req.IDKind, req.To, req.IncludeInactive)
		if err != nil {
			return nil, err
		}
		secs = append(secs, sec)
	}

	var out []Observation
	for _, sec := range secs {
		plan, err := db.meta.Load().router.PlanRead(req.Fields, sec.SecurityType, registry.OpHistory)
		if err != nil {
			return nil, err
		}
		for _, group := range plan.Groups {
			for _, target := range group.Targets {
				obs, err := db.resolveSeries(ctx, sec, target,
					req.From, req.To, req.Mode, req.AsOfDate, req.Fx)
				if err != nil {
					return nil, err
				}

				if req.Periodicity != "" && req.Periodicity != "D" {
					// Coarse grids always sample the latest value at or
					// before each boundary.
					obs, err = resample.Series(obs, req.From, req.To, resample.Options{
						Period:       req.Periodicity,
						Days:         req.DaysPolicy,
						ExchangeCode: sec.ExchangeCode,
						Fill:         FillP,
					})
				} else if req.Fill == FillP {
					obs, err = resample.Series(obs, req.From, req.To, resample.Options{
						Period:       "D",
						Days:         req.DaysPolicy,
						ExchangeCode: sec.ExchangeCode,
						Fill:         FillP,
					})
				}
				if err != nil {
					return nil, err
				}
				out = append(out, obs...)
			}
		}
	}
	return out, nil
}
