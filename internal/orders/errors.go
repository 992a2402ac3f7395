package orders

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable means the spreadsheet could not be read.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrRateUnavailable means no usable exchange rate could be obtained.
	ErrRateUnavailable = errors.New("rate unavailable")
	// ErrMalformedRow means a row's cells could not be parsed into an order.
	ErrMalformedRow = errors.New("malformed row")
	// ErrNotFound means no stored row exists for an identifier.
	ErrNotFound = errors.New("not found")
)

// Kind classifies a persistence failure so callers can choose between
// skipping a row and abandoning the cycle.
type Kind string

const (
	KindConnection Kind = "connection"
	KindConstraint Kind = "constraint"
	KindNotFound   Kind = "not_found"
	KindOther      Kind = "other"
)

// PersistenceError is returned by every store operation that fails.
type PersistenceError struct {
	Op   string
	ID   int64
	Kind Kind
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s id=%d [%s]: %v", e.Op, e.ID, e.Kind, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrNotFound) match not_found persistence errors.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrNotFound && e.Kind == KindNotFound
}

// IsConnection reports whether the store connection itself is unusable.
func (e *PersistenceError) IsConnection() bool {
	return e.Kind == KindConnection
}

// IsConnectionError reports whether err carries a connection-kind PersistenceError.
func IsConnectionError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe) && pe.IsConnection()
}

// ErrorKind returns the persistence kind carried by err, or KindOther.
func ErrorKind(err error) Kind {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindOther
}
