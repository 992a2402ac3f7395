package processing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orders_sync/internal/orders"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// DefaultInterval is the pause between the end of one cycle and the start of the next.
const DefaultInterval = 10 * time.Second

// SheetSource returns the current rows of the spreadsheet range.
type SheetSource interface {
	GetRows(ctx context.Context) (orders.Snapshot, error)
}

// RateProvider returns the current USD to local currency rate.
type RateProvider interface {
	GetRate(ctx context.Context) (decimal.Decimal, error)
}

// RowStore persists stored rows. Each call commits on its own.
type RowStore interface {
	Lookup(ctx context.Context, id int64) (orders.StoredRow, error)
	Insert(ctx context.Context, row orders.StoredRow) error
	Update(ctx context.Context, row orders.StoredRow) error
}

// Observer is told about every finished cycle, successful or not.
type Observer interface {
	ObserveCycle(ctx context.Context, report CycleReport, err error)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, report CycleReport, err error)

func (f ObserverFunc) ObserveCycle(ctx context.Context, report CycleReport, err error) {
	f(ctx, report, err)
}

// Engine mirrors sheet rows into the store. It owns the snapshot of the last
// applied rows and is driven by a single goroutine.
type Engine struct {
	source    SheetSource
	rates     RateProvider
	store     RowStore
	interval  time.Duration
	observers []Observer

	snapshot orders.Snapshot
}

type Option func(*Engine)

func WithInterval(d time.Duration) Option {
	return func(e *Engine) { e.interval = d }
}

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

func NewEngine(source SheetSource, rates RateProvider, store RowStore, opts ...Option) *Engine {
	e := &Engine{
		source:   source,
		rates:    rates,
		store:    store,
		interval: DefaultInterval,
		snapshot: orders.Snapshot{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Snapshot returns a copy of the rows last applied to the store.
func (e *Engine) Snapshot() orders.Snapshot {
	return e.snapshot.Clone()
}

// Run repeats cycles until ctx is cancelled, sleeping the configured
// interval after each one. Cycle failures are logged and never stop the loop.
func (e *Engine) Run(ctx context.Context) error {
	log.Info().Dur("interval", e.interval).Msg("Starting sync loop")

	for {
		if _, err := e.RunCycle(ctx); err != nil {
			log.Error().Err(err).Msg("Sync cycle failed")
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("Sync loop stopped")
			return nil
		case <-time.After(e.interval):
		}
	}
}

// RunCycle performs one fetch, compare and apply pass.
//
// The snapshot advances when every row has been attempted, even if some rows
// failed on their own; a failed row is therefore not retried until the sheet
// changes again. Source, rate and connection failures leave it untouched.
func (e *Engine) RunCycle(ctx context.Context) (CycleReport, error) {
	report := CycleReport{ID: uuid.NewString()}
	start := time.Now()

	err := e.runCycle(ctx, &report)
	report.Duration = time.Since(start)

	for _, o := range e.observers {
		o.ObserveCycle(ctx, report, err)
	}
	return report, err
}

func (e *Engine) runCycle(ctx context.Context, report *CycleReport) error {
	logger := log.With().Str("cycle", report.ID).Logger()
	logger.Debug().Msg("Starting sync cycle")

	rows, err := e.source.GetRows(ctx)
	if err != nil {
		if !errors.Is(err, orders.ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %v", orders.ErrSourceUnavailable, err)
		}
		return err
	}
	report.Rows = len(rows)

	if rows.Equal(e.snapshot) {
		logger.Debug().Int("rows", len(rows)).Msg("No changes in sheet")
		return nil
	}
	report.Changed = true

	rate, err := e.rates.GetRate(ctx)
	if err != nil {
		if !errors.Is(err, orders.ErrRateUnavailable) {
			err = fmt.Errorf("%w: %v", orders.ErrRateUnavailable, err)
		}
		return err
	}
	if !rate.IsPositive() {
		return fmt.Errorf("%w: non-positive rate %s", orders.ErrRateUnavailable, rate)
	}
	report.Rate = rate

	logger.Info().
		Int("rows", len(rows)).
		Str("rate", rate.String()).
		Msg("Sheet changed, applying rows")

	for i, row := range rows {
		if len(row) == 0 {
			report.Skipped++
			continue
		}

		op, id, err := e.applyRow(ctx, row, rate)
		if err == nil {
			report.count(op)
			continue
		}

		failure := RowFailure{Position: i + 1, ID: id, Kind: failureKind(err), Err: err}
		report.Failures = append(report.Failures, failure)

		if orders.IsConnectionError(err) {
			logger.Error().
				Err(err).
				Int("position", failure.Position).
				Int("remaining", len(rows)-i-1).
				Msg("Store connection lost, abandoning cycle")
			return fmt.Errorf("apply aborted at row %d: %w", failure.Position, err)
		}

		logRowFailure(logger, failure)
	}

	e.snapshot = rows.Clone()

	logger.Info().
		Int("inserted", report.Inserted).
		Int("updated", report.Updated).
		Int("failed", len(report.Failures)).
		Int("skipped", report.Skipped).
		Msg("Sync cycle applied")
	return nil
}

func logRowFailure(logger zerolog.Logger, f RowFailure) {
	logger.Warn().
		Err(f.Err).
		Int("position", f.Position).
		Int64("row_id", f.ID).
		Str("kind", string(f.Kind)).
		Msg("Skipping row")
}
