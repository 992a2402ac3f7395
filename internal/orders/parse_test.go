package orders

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDecimal(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"73,50", "73.50"},
		{"73.50", "73.50"},
		{" 10 ", "10"},
		{"$10.0", "10.0"},
		{"1 234,5", "1234.5"},
		{"1\u00a0234,5", "1234.5"},
		{"1,234.5", "1234.5"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeDecimal(tt.in), "NormalizeDecimal(%q)", tt.in)
	}
}

func TestParseDecimalCommaSeparator(t *testing.T) {
	d, err := ParseDecimal("73,50")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("73.50")), "got %s", d)
}

func TestParseDecimalRejectsGarbage(t *testing.T) {
	_, err := ParseDecimal("abc")
	assert.Error(t, err)

	_, err = ParseDecimal("   ")
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"05/03/2024", "5/3/2024", "05.03.2024", "2024-03-05"} {
		got, err := ParseDate(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%s parsed as %s", in, got)
	}

	_, err := ParseDate("March 5th")
	assert.Error(t, err)
}

func TestParseRow(t *testing.T) {
	o, err := ParseRow(Row{"1", "100", "10.0", "01/01/2024"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), o.ID)
	assert.Equal(t, int64(100), o.OrderNumber)
	assert.True(t, o.PriceUSD.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), o.Date)
}

func TestParseRowIgnoresExtraCells(t *testing.T) {
	o, err := ParseRow(Row{"7", "8", "1,5", "2024-02-01", "note"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), o.ID)
	assert.True(t, o.PriceUSD.Equal(decimal.RequireFromString("1.5")))
}

func TestParseRowMalformed(t *testing.T) {
	tests := map[string]Row{
		"short row":        {"1", "100", "10.0"},
		"empty row":        {},
		"fractional id":    {"1.5", "100", "10.0", "01/01/2024"},
		"text order":       {"1", "abc", "10.0", "01/01/2024"},
		"missing price":    {"1", "100", "", "01/01/2024"},
		"unparseable date": {"1", "100", "10.0", "yesterday"},
	}

	for name, row := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRow(row)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedRow), "got %v", err)
		})
	}
}

func TestParseRowWholeNumberWithFraction(t *testing.T) {
	o, err := ParseRow(Row{"42.0", "100", "10", "01/01/2024"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), o.ID)
}
