package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateRoundTrip(t *testing.T) {
	d, err := ParseDate("2024-06-28")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-28", d.String())
	assert.Equal(t, 2024, d.Year())
	assert.Equal(t, time.June, d.Month())
	assert.Equal(t, 28, d.Day())
}

func TestParseDateRejectsGarbage(t *testing.T) {
	for _, bad := range []string{"", "20240628", "2024-13-01", "28/06/2024"} {
		_, err := ParseDate(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestDateOrdering(t *testing.T) {
	a := MustDate("2024-01-15")
	b := MustDate("2024-01-16")

	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.False(t, a.Equal(b))
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 0, a.Compare(a))
}

func TestISOFormSortsLexicographically(t *testing.T) {
	// The storage layer compares dates as strings; lexicographic order must
	// match chronological order across month and year boundaries.
	dates := []Date{
		MustDate("2023-12-31"),
		MustDate("2024-01-01"),
		MustDate("2024-02-09"),
		MustDate("2024-10-09"),
	}
	for i := 1; i < len(dates); i++ {
		assert.True(t, dates[i-1].String() < dates[i].String())
		assert.True(t, dates[i-1].Before(dates[i]))
	}
}

func TestAddDaysCrossesBoundaries(t *testing.T) {
	assert.Equal(t, "2024-03-01", MustDate("2024-02-29").AddDays(1).String())
	assert.Equal(t, "2023-12-31", MustDate("2024-01-01").AddDays(-1).String())
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 2, DaysBetween(MustDate("2024-06-28"), MustDate("2024-06-30")))
	assert.Equal(t, -2, DaysBetween(MustDate("2024-06-30"), MustDate("2024-06-28")))
	assert.Equal(t, 0, DaysBetween(MustDate("2024-06-28"), MustDate("2024-06-28")))
}

func TestMonthBounds(t *testing.T) {
	assert.Equal(t, "2024-02-29", MustDate("2024-02-10").MonthEnd().String()) // leap year
	assert.Equal(t, "2023-02-28", MustDate("2023-02-10").MonthEnd().String())
	assert.Equal(t, "2024-06-01", MustDate("2024-06-28").MonthStart().String())
}

func TestDateTextMarshalling(t *testing.T) {
	d := MustDate("2024-06-28")
	b, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2024-06-28", string(b))

	var back Date
	require.NoError(t, back.UnmarshalText(b))
	assert.True(t, d.Equal(back))
}

func TestZeroDate(t *testing.T) {
	var d Date
	assert.True(t, d.IsZero())
	assert.False(t, MustDate("2024-01-01").IsZero())
}
