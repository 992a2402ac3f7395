package orders

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tiendc/go-deepcopy"
)

// Row is one spreadsheet row as read from the source, cells in column order.
type Row []string

// Snapshot is the full ordered row sequence last reconciled with the store.
type Snapshot []Row

// Equal reports whether both snapshots hold the same rows in the same order.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if len(s[i]) != len(other[i]) {
			return false
		}
		for j := range s[i] {
			if s[i][j] != other[i][j] {
				return false
			}
		}
	}
	return true
}

// Clone returns a deep copy that shares no backing arrays with s.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	var out Snapshot
	if err := deepcopy.Copy(&out, s); err != nil {
		// deepcopy only fails on incompatible types; fall back to a manual copy
		out = make(Snapshot, len(s))
		for i, row := range s {
			out[i] = append(Row(nil), row...)
		}
	}
	return out
}

// Order is a row after its cells have been parsed.
type Order struct {
	ID          int64
	OrderNumber int64
	PriceUSD    decimal.Decimal
	Date        time.Time
}

// StoredRow is the persisted form of an order plus its converted price.
type StoredRow struct {
	ID          int64
	OrderNumber int64
	PriceUSD    decimal.Decimal
	PriceLocal  decimal.Decimal
	Date        time.Time
}

// Enrich converts the order's USD price with rate.
func Enrich(o Order, rate decimal.Decimal) StoredRow {
	return StoredRow{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		PriceUSD:    o.PriceUSD,
		PriceLocal:  rate.Mul(o.PriceUSD),
		Date:        o.Date,
	}
}
