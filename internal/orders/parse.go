package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Columns is the number of cells an order row occupies (A:D).
const Columns = 4

var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02.01.2006",
	"2.1.2006",
	"2006-01-02",
}

// ParseRow converts raw cells into an Order. Cells beyond the fourth are ignored.
func ParseRow(row Row) (Order, error) {
	if len(row) < Columns {
		return Order{}, fmt.Errorf("%w: expected %d cells, got %d", ErrMalformedRow, Columns, len(row))
	}

	id, err := parseInteger(row[0])
	if err != nil {
		return Order{}, fmt.Errorf("%w: id: %v", ErrMalformedRow, err)
	}
	number, err := parseInteger(row[1])
	if err != nil {
		return Order{}, fmt.Errorf("%w: order number: %v", ErrMalformedRow, err)
	}
	price, err := ParseDecimal(row[2])
	if err != nil {
		return Order{}, fmt.Errorf("%w: price: %v", ErrMalformedRow, err)
	}
	date, err := ParseDate(row[3])
	if err != nil {
		return Order{}, fmt.Errorf("%w: date: %v", ErrMalformedRow, err)
	}

	return Order{
		ID:          id,
		OrderNumber: number,
		PriceUSD:    price,
		Date:        date,
	}, nil
}

// NormalizeDecimal turns spreadsheet and feed number text into a form
// decimal.NewFromString accepts: "73,50" becomes "73.50", "$1 234.5" becomes "1234.5".
func NormalizeDecimal(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "$")
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f':
			return -1
		}
		return r
	}, s)

	// A lone comma is the fractional separator; with a point present it groups thousands.
	if strings.Contains(s, ".") {
		return strings.ReplaceAll(s, ",", "")
	}
	if strings.Count(s, ",") == 1 {
		return strings.Replace(s, ",", ".", 1)
	}
	return s
}

// ParseDecimal parses number text after normalizing it.
func ParseDecimal(text string) (decimal.Decimal, error) {
	s := NormalizeDecimal(text)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty value")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid number %q", text)
	}
	return d, nil
}

// ParseDate accepts day-first dates as entered in the sheet, or ISO dates.
func ParseDate(text string) (time.Time, error) {
	s := strings.TrimSpace(text)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", text)
}

func parseInteger(text string) (int64, error) {
	d, err := ParseDecimal(text)
	if err != nil {
		return 0, err
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("%q is not a whole number", text)
	}
	return d.IntPart(), nil
}
