package finstore

import (
	"context"
	"sort"

	"github.com/quantfold/finstore/internal/model"
	"github.com/quantfold/finstore/internal/registry"
)

// PointRequest asks for field values across securities on one valid date.
type PointRequest struct {
	IDs    []string
	IDKind IDKind // defaults to ticker
	Fields []string
	// Date is the valid date; zero means the previous business day.
	Date Date
	// Mode selects the temporal axis; defaults to as-seen. AsOfDate is
	// required for as-of mode.
	Mode     DateMode
	AsOfDate Date
	// Fill, when set to FillP, substitutes the previous business day's
	// value for a (security, field) with nothing on Date.
	Fill FillMode
	// Fx converts currency-denominated fields into this target currency.
	Fx string
	// IncludeInactive admits securities whose lifecycle window does not
	// cover Date.
	IncludeInactive bool
}

func (r *PointRequest) normalize() error {
	if r.IDKind == "" {
		r.IDKind = ByTicker
	}
	if r.Mode == "" {
		r.Mode = AsSeen
	}
	if r.Mode == AsOf && r.AsOfDate.IsZero() {
		return &RequestError{Message: "as_of mode requires an as-of date"}
	}
	if r.Date.IsZero() {
		r.Date = PrevBusinessDay(Today())
	}
	return nil
}

// Point reads field values for a set of securities on one valid date. The
// result holds one observation per (security, field) that has a visible
// value; absent keys are absent, never padded, unless FillP substitutes the
// previous business day's value.
//
// Routing is all-or-nothing: one unknown or non-readable field fails the
// whole request before any data is touched.
//
// Output order is entity, then the caller's field order.
func (db *DB) Point(ctx context.Context, req PointRequest) ([]Observation, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}

	secs := make([]Security, 0, len(req.IDs))
	for _, id := range req.IDs {
		sec, err := db.master.ResolveActive(ctx, id, req.IDKind, req.Date, req.IncludeInactive)
		if err != nil {
			return nil, err
		}
		secs = append(secs, sec)
	}

	fieldPos := make(map[string]int, len(req.Fields))
	for i, f := range req.Fields {
		fieldPos[f] = i
	}

	var out []Observation
	for _, sec := range secs {
		plan, err := db.meta.Load().router.PlanRead(req.Fields, sec.SecurityType, registry.OpPoint)
		if err != nil {
			return nil, err
		}
		var secObs []Observation
		for _, group := range plan.Groups {
			for _, target := range group.Targets {
				obs, err := db.resolveSeries(ctx, sec, target,
					req.Date, req.Date, req.Mode, req.AsOfDate, req.Fx)
				if err != nil {
					return nil, err
				}
				if len(obs) == 0 && req.Fill == FillP {
					prev := PrevBusinessDay(req.Date)
					obs, err = db.resolveSeries(ctx, sec, target,
						prev, prev, req.Mode, req.AsOfDate, req.Fx)
					if err != nil {
						return nil, err
					}
					for i := range obs {
						obs[i].ValidDate = req.Date
						obs[i].Filled = true
					}
				}
				secObs = append(secObs, obs...)
			}
		}
		// The plan groups by storage table; callers see their own order.
		sort.SliceStable(secObs, func(i, j int) bool {
			return fieldPos[secObs[i].Field] < fieldPos[secObs[j].Field]
		})
		out = append(out, secObs...)
	}
	return out, nil
}

// PointValue is a single-security, single-field convenience over Point.
// Absence is (nil, false, nil).
func (db *DB) PointValue(ctx context.Context, ticker, field string, dt Date) (Value, bool, error) {
	obs, err := db.Point(ctx, PointRequest{
		IDs:    []string{ticker},
		Fields: []string{field},
		Date:   dt,
	})
	if err != nil {
		return nil, false, err
	}
	for _, o := range obs {
		if o.Value != nil {
			return o.Value, true, nil
		}
	}
	return nil, false, nil
}

// PointAsOf reads the belief state at a past transaction date.
func (db *DB) PointAsOf(ctx context.Context, req PointRequest, asOf Date) ([]Observation, error) {
	req.Mode = model.AsOf
	req.AsOfDate = asOf
	return db.Point(ctx, req)
}
