package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"orders_sync/internal/orders"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// classify wraps a driver error in an orders.PersistenceError.
func classify(op string, id int64, err error) error {
	if err == nil {
		return nil
	}
	var pe *orders.PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &orders.PersistenceError{Op: op, ID: id, Kind: kindOf(err), Err: err}
}

func kindOf(err error) orders.Kind {
	if errors.Is(err, sql.ErrNoRows) {
		return orders.KindNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgerrcode.IsIntegrityConstraintViolation(pgErr.Code):
			return orders.KindConstraint
		case pgerrcode.IsConnectionException(pgErr.Code),
			pgerrcode.IsOperatorIntervention(pgErr.Code),
			pgerrcode.IsInsufficientResources(pgErr.Code):
			return orders.KindConnection
		}
		return orders.KindOther
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return orders.KindConnection
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code {
		case sqlite3.ErrConstraint:
			return orders.KindConstraint
		case sqlite3.ErrCantOpen, sqlite3.ErrIoErr, sqlite3.ErrNotADB, sqlite3.ErrCorrupt:
			return orders.KindConnection
		}
		return orders.KindOther
	}

	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return orders.KindConnection
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return orders.KindConnection
	}

	// database/sql reports use after Close with an unexported error value
	if strings.Contains(err.Error(), "sql: database is closed") {
		return orders.KindConnection
	}

	return orders.KindOther
}
