package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"orders_sync/internal/orders"

	"github.com/shopspring/decimal"
)

const (
	lookupQuery = `SELECT id, number_order, price_dollar, price_rub, date FROM orders WHERE id = ?`
	insertQuery = `INSERT INTO orders (id, number_order, price_dollar, price_rub, date) VALUES (?, ?, ?, ?, ?)`
	updateQuery = `UPDATE orders SET number_order = ?, price_dollar = ?, price_rub = ?, date = ? WHERE id = ?`
)

// Lookup returns the stored row for id. A missing row yields a
// PersistenceError of kind not_found, which matches orders.ErrNotFound.
func (s *Store) Lookup(ctx context.Context, id int64) (orders.StoredRow, error) {
	var row orders.StoredRow
	err := s.withTx(ctx, "lookup", id, func(tx *sql.Tx) error {
		var (
			number    sql.NullInt64
			usd, rub  decimal.NullDecimal
			orderDate sql.NullTime
		)
		err := tx.QueryRowContext(ctx, s.rebind(lookupQuery), id).Scan(&row.ID, &number, &usd, &rub, &orderDate)
		if err != nil {
			return err
		}
		row.OrderNumber = number.Int64
		row.PriceUSD = usd.Decimal
		row.PriceLocal = rub.Decimal
		row.Date = orderDate.Time
		return nil
	})
	if err != nil {
		return orders.StoredRow{}, err
	}
	return row, nil
}

// Insert adds a new row. A duplicate id is a constraint violation.
func (s *Store) Insert(ctx context.Context, row orders.StoredRow) error {
	return s.withTx(ctx, "insert", row.ID, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.rebind(insertQuery),
			row.ID,
			row.OrderNumber,
			row.PriceUSD.InexactFloat64(),
			row.PriceLocal.InexactFloat64(),
			row.Date,
		)
		return err
	})
}

// Update rewrites every column but the id of an existing row.
func (s *Store) Update(ctx context.Context, row orders.StoredRow) error {
	return s.withTx(ctx, "update", row.ID, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.rebind(updateQuery),
			row.OrderNumber,
			row.PriceUSD.InexactFloat64(),
			row.PriceLocal.InexactFloat64(),
			row.Date,
			row.ID,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
}

// withTx runs fn in a transaction, committing when fn succeeds. The deferred
// rollback releases the connection on every other path.
func (s *Store) withTx(ctx context.Context, op string, id int64, fn func(*sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(op, id, fmt.Errorf("begin: %w", err))
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) && err == nil {
				err = classify(op, id, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	if err := fn(tx); err != nil {
		return classify(op, id, err)
	}
	if err := tx.Commit(); err != nil {
		return classify(op, id, fmt.Errorf("commit: %w", err))
	}
	committed = true
	return nil
}
