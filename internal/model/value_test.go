package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecomposePopulatesExactlyOneCell(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		check func(t *testing.T, c StorageCells)
	}{
		{"string", VString("AAPL US"), func(t *testing.T, c StorageCells) {
			assert.True(t, c.Chr.Valid)
			assert.Equal(t, "AAPL US", c.Chr.String)
		}},
		{"double", VDouble(456.78), func(t *testing.T, c StorageCells) {
			assert.True(t, c.Dbl.Valid)
			assert.Equal(t, 456.78, c.Dbl.Float64)
		}},
		{"int", VInt(42), func(t *testing.T, c StorageCells) {
			assert.True(t, c.Int.Valid)
			assert.Equal(t, int64(42), c.Int.Int64)
		}},
		{"bool lands in int cell", VBool(true), func(t *testing.T, c StorageCells) {
			assert.True(t, c.Int.Valid)
			assert.Equal(t, int64(1), c.Int.Int64)
		}},
		{"date", VDate(MustDate("2024-06-28")), func(t *testing.T, c StorageCells) {
			assert.True(t, c.Date.Valid)
			assert.Equal(t, "2024-06-28", c.Date.String)
		}},
		{"json lands in chr cell", VJSON(`{"k":1}`), func(t *testing.T, c StorageCells) {
			assert.True(t, c.Chr.Valid)
			assert.Equal(t, `{"k":1}`, c.Chr.String)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Decompose(tt.value)
			tt.check(t, c)

			// No other cell may be populated.
			populated := 0
			if c.Chr.Valid {
				populated++
			}
			if c.Dbl.Valid {
				populated++
			}
			if c.Int.Valid {
				populated++
			}
			if c.Date.Valid {
				populated++
			}
			assert.Equal(t, 1, populated)
		})
	}
}

func TestDecomposeNilIsAllNull(t *testing.T) {
	c := Decompose(nil)
	assert.False(t, c.Chr.Valid)
	assert.False(t, c.Dbl.Valid)
	assert.False(t, c.Int.Valid)
	assert.False(t, c.Date.Valid)
}

func TestComposeInvertsDecompose(t *testing.T) {
	cases := []struct {
		value Value
		dtype DataType
	}{
		{VString("x"), TypeString},
		{VDouble(1.5), TypeDouble},
		{VInt(-7), TypeInt},
		{VBool(false), TypeBool},
		{VDate(MustDate("2020-02-29")), TypeDate},
		{VJSON(`[1,2]`), TypeJSON},
	}
	for _, c := range cases {
		got, err := Compose(Decompose(c.value), c.dtype)
		require.NoError(t, err)
		assert.True(t, ValueEqual(c.value, got), "%v (%s)", c.value, c.dtype)
	}
}

func TestComposeNullCellIsNil(t *testing.T) {
	for _, dtype := range []DataType{TypeString, TypeDouble, TypeInt, TypeBool, TypeDate, TypeJSON} {
		got, err := Compose(StorageCells{}, dtype)
		require.NoError(t, err)
		assert.Nil(t, got, string(dtype))
	}
}

func TestCoerceValue(t *testing.T) {
	v, err := CoerceValue("456.78", TypeDouble)
	require.NoError(t, err)
	assert.Equal(t, VDouble(456.78), v)

	v, err = CoerceValue(42, TypeInt)
	require.NoError(t, err)
	assert.Equal(t, VInt(42), v)

	v, err = CoerceValue("true", TypeBool)
	require.NoError(t, err)
	assert.Equal(t, VBool(true), v)

	v, err = CoerceValue("2024-06-28", TypeDate)
	require.NoError(t, err)
	assert.True(t, ValueEqual(VDate(MustDate("2024-06-28")), v))

	v, err = CoerceValue(nil, TypeDouble)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = CoerceValue("not a number", TypeDouble)
	assert.Error(t, err)
}

func TestValueEqualIsTyped(t *testing.T) {
	// Equality compares typed values, never raw text.
	assert.True(t, ValueEqual(VDouble(1), VDouble(1)))
	assert.False(t, ValueEqual(VDouble(1), VInt(1)))
	assert.False(t, ValueEqual(VString("1"), VInt(1)))
	assert.True(t, ValueEqual(nil, nil))
	assert.False(t, ValueEqual(nil, VInt(0)))
	assert.True(t, ValueEqual(VDate(MustDate("2024-01-01")), VDate(MustDate("2024-01-01"))))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "NA", FormatValue(nil))
	assert.Equal(t, "456.78", FormatValue(VDouble(456.78)))
	assert.Equal(t, "42", FormatValue(VInt(42)))
	assert.Equal(t, "true", FormatValue(VBool(true)))
	assert.Equal(t, "2024-06-28", FormatValue(VDate(MustDate("2024-06-28"))))
}

func TestParseDataType(t *testing.T) {
	for _, ok := range []string{"chr", "dbl", "int", "date", "json", "lgl"} {
		_, err := ParseDataType(ok)
		assert.NoError(t, err, ok)
	}
	_, err := ParseDataType("float")
	assert.Error(t, err)
}
