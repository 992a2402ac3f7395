package processing

import (
	"errors"
	"time"

	"orders_sync/internal/orders"

	"github.com/shopspring/decimal"
)

// KindMalformed marks rows whose cells could not be parsed.
const KindMalformed orders.Kind = "malformed"

// CycleReport summarizes one cycle.
type CycleReport struct {
	ID       string
	Rows     int
	Changed  bool
	Rate     decimal.Decimal
	Inserted int
	Updated  int
	Skipped  int
	Failures []RowFailure
	Duration time.Duration
}

// RowFailure records a row that was not written.
type RowFailure struct {
	Position int
	ID       int64
	Kind     orders.Kind
	Err      error
}

// Written is the number of rows inserted or updated.
func (r CycleReport) Written() int {
	return r.Inserted + r.Updated
}

func (r *CycleReport) count(op writeOp) {
	switch op {
	case opInsert:
		r.Inserted++
	case opUpdate:
		r.Updated++
	}
}

func failureKind(err error) orders.Kind {
	if errors.Is(err, orders.ErrMalformedRow) {
		return KindMalformed
	}
	return orders.ErrorKind(err)
}
