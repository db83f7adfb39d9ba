package resample

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/finstore/internal/model"
)

func obsOn(date string, v float64) model.Observation {
	return model.Observation{
		SecurityID: 1,
		Field:      "NAV_CLOSE",
		ValidDate:  model.MustDate(date),
		Value:      model.VDouble(v),
	}
}

func dates(obs []model.Observation) []string {
	var out []string
	for _, o := range obs {
		out = append(out, o.ValidDate.String())
	}
	return out
}

func TestGridDefaults(t *testing.T) {
	// Defaults: US exchange, daily period, weekday universe, last_of.
	grid, err := Grid(model.MustDate("2024-07-01"), model.MustDate("2024-07-07"), Options{})
	require.NoError(t, err)
	var got []string
	for _, d := range grid {
		got = append(got, d.String())
	}
	assert.Equal(t, []string{
		"2024-07-01", "2024-07-02", "2024-07-03", "2024-07-04", "2024-07-05",
	}, got)
}

func TestGridPropagatesCalendarErrors(t *testing.T) {
	_, err := Grid(model.MustDate("2024-01-01"), model.MustDate("2024-12-31"), Options{
		ExchangeCode: "ATLANTIS",
		Days:         model.TradingDays,
	})
	require.Error(t, err)

	_, err = Grid(model.MustDate("2024-01-01"), model.MustDate("2024-12-31"), Options{
		Period: model.Periodicity("fortnightly"),
	})
	require.Error(t, err)
}

func TestSeriesMonthlyTradingDays(t *testing.T) {
	// Daily closes spanning the June and July 2024 month ends.
	obs := []model.Observation{
		obsOn("2024-06-27", 100),
		obsOn("2024-06-28", 101), // last XNYS session of June
		obsOn("2024-07-30", 102),
		obsOn("2024-07-31", 103), // last XNYS session of July
	}

	out, err := Series(obs, model.MustDate("2024-06-01"), model.MustDate("2024-08-31"), Options{
		Period: model.Monthly,
		Days:   model.TradingDays,
	})
	require.NoError(t, err)
	// The August boundary precedes any September data: carried from July only
	// under a fill policy, absent otherwise.
	require.Equal(t, []string{"2024-06-28", "2024-07-31"}, dates(out))
	assert.Equal(t, model.VDouble(101), out[0].Value)
	assert.False(t, out[0].Filled)
	assert.Equal(t, model.VDouble(103), out[1].Value)
}

func TestSeriesFillCarriesForwardOnly(t *testing.T) {
	// No observation on the July month end; the June close carries forward.
	obs := []model.Observation{
		obsOn("2024-06-28", 101),
	}

	out, err := Series(obs, model.MustDate("2024-05-01"), model.MustDate("2024-07-31"), Options{
		Period: model.Monthly,
		Days:   model.TradingDays,
		Fill:   model.FillPrevious,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"2024-06-28", "2024-07-31"}, dates(out))

	// May precedes the first observation and stays absent: no backward fill.
	assert.False(t, out[0].Filled)
	assert.True(t, out[1].Filled)
	assert.Equal(t, model.VDouble(101), out[1].Value)

	// Without a fill policy the July boundary is absent too.
	out, err = Series(obs, model.MustDate("2024-05-01"), model.MustDate("2024-07-31"), Options{
		Period: model.Monthly,
		Days:   model.TradingDays,
		Fill:   model.FillNA,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-06-28"}, dates(out))
}

func TestSeriesRewritesValidDateToGrid(t *testing.T) {
	// A filled sample reports the grid date, not the carried observation's.
	obs := []model.Observation{obsOn("2024-06-15", 50)}

	out, err := Series(obs, model.MustDate("2024-06-01"), model.MustDate("2024-06-30"), Options{
		Period: model.Monthly,
		Days:   model.CalendarDays,
		Fill:   model.FillPrevious,
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "2024-06-30", out[0].ValidDate.String())
	assert.True(t, out[0].Filled)
	assert.Equal(t, model.VDouble(50), out[0].Value)
}

func TestSeriesPreservesProvenance(t *testing.T) {
	obs := []model.Observation{{
		SecurityID: 1,
		Field:      "NAV_CLOSE",
		ValidDate:  model.MustDate("2024-06-28"),
		Value:      model.VDouble(99),
		Overridden: true,
		Reason:     "correction",
		Author:     "ops",
	}}

	out, err := Series(obs, model.MustDate("2024-06-01"), model.MustDate("2024-06-30"), Options{
		Period: model.Monthly,
		Days:   model.TradingDays,
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].Overridden)
	assert.Equal(t, "correction", out[0].Reason)
	assert.Equal(t, "ops", out[0].Author)
}
