package processing

import (
	"context"
	"errors"

	"orders_sync/internal/orders"

	"github.com/shopspring/decimal"
)

type writeOp string

const (
	opInsert writeOp = "insert"
	opUpdate writeOp = "update"
)

// applyRow writes one row: an update when its id is already stored, an
// insert otherwise. The returned id is zero when the row could not be parsed.
func (e *Engine) applyRow(ctx context.Context, row orders.Row, rate decimal.Decimal) (writeOp, int64, error) {
	order, err := orders.ParseRow(row)
	if err != nil {
		return "", 0, err
	}
	stored := orders.Enrich(order, rate)

	_, err = e.store.Lookup(ctx, order.ID)
	switch {
	case err == nil:
		if err := e.store.Update(ctx, stored); err != nil {
			return "", order.ID, err
		}
		return opUpdate, order.ID, nil
	case errors.Is(err, orders.ErrNotFound):
		if err := e.store.Insert(ctx, stored); err != nil {
			return "", order.ID, err
		}
		return opInsert, order.ID, nil
	default:
		return "", order.ID, err
	}
}
