// Package resample projects a resolved series onto a coarser period grid.
// Each period reports the observation on its boundary date, or the latest
// earlier one; a period boundary never takes a value from its future.
package resample

import (
	"github.com/quantfold/finstore/internal/calendar"
	"github.com/quantfold/finstore/internal/model"
)

// Options configures one resampling pass.
type Options struct {
	Period       model.Periodicity
	Days         model.Days
	Endpoint     model.Endpoint
	ExchangeCode string
	// Partial includes the range boundary itself as a trailing (or leading)
	// stub period.
	Partial bool
	Fill    model.FillMode
}

// Grid generates the period boundary dates for [from, to] under opts.
// Calendar failures (unknown exchange, unsupported period) propagate.
func Grid(from, to model.Date, opts Options) ([]model.Date, error) {
	seqOpts := calendar.SeqOptions{
		ExchangeCode: opts.ExchangeCode,
		Period:       opts.Period,
		Days:         opts.Days,
		Endpoint:     opts.Endpoint,
		Partial:      opts.Partial,
	}
	if seqOpts.ExchangeCode == "" {
		seqOpts.ExchangeCode = "US"
	}
	if seqOpts.Period == "" {
		seqOpts.Period = model.Daily
	}
	if seqOpts.Days == "" {
		seqOpts.Days = model.NonTradingDays
	}
	if seqOpts.Endpoint == "" {
		seqOpts.Endpoint = model.LastOf
	}
	return calendar.SeqDate(from, to, seqOpts)
}

// Series samples obs onto the period grid for [from, to]. Observations are
// assumed ascending by valid date, as the resolver returns them. A grid date
// carrying no observation on or before it stays absent; between observations
// the latest earlier value is used and marked Filled unless the fill mode
// forbids carrying.
func Series(obs []model.Observation, from, to model.Date, opts Options) ([]model.Observation, error) {
	grid, err := Grid(from, to, opts)
	if err != nil {
		return nil, err
	}
	return onGrid(obs, grid, opts.Fill), nil
}

func onGrid(obs []model.Observation, grid []model.Date, fill model.FillMode) []model.Observation {
	var out []model.Observation
	idx := 0
	var last *model.Observation
	for _, d := range grid {
		for idx < len(obs) && !obs[idx].ValidDate.After(d) {
			last = &obs[idx]
			idx++
		}
		if last == nil {
			continue
		}
		sample := *last
		if !sample.ValidDate.Equal(d) {
			if fill != model.FillPrevious {
				continue
			}
			sample.Filled = true
		}
		sample.ValidDate = d
		out = append(out, sample)
	}
	return out
}
