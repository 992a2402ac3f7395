package metrics

import (
	"context"
	"errors"

	"orders_sync/internal/orders"
	"orders_sync/internal/processing"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder turns cycle reports into Prometheus series.
type Recorder struct {
	cycles    *prometheus.CounterVec
	rows      *prometheus.CounterVec
	rowErrors *prometheus.CounterVec
	rate      prometheus.Gauge
	duration  prometheus.Histogram
}

// NewRecorder registers the sync metrics with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_sync_cycles_total",
			Help: "Sync cycles by outcome",
		}, []string{"result"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_sync_rows_total",
			Help: "Rows written to the store by operation",
		}, []string{"op"}),
		rowErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_sync_row_errors_total",
			Help: "Rows that could not be written, by failure kind",
		}, []string{"kind"}),
		rate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orders_sync_rate",
			Help: "Exchange rate used by the most recent applying cycle",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "orders_sync_cycle_duration_seconds",
			Help:    "Wall time of sync cycles",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(r.cycles, r.rows, r.rowErrors, r.rate, r.duration)
	return r
}

// RegisterCallCounter exposes a monotonically increasing call count, such as
// the rate client's API call counter.
func RegisterCallCounter(reg prometheus.Registerer, name, help string, count func() int64) {
	reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: name,
		Help: help,
	}, func() float64 { return float64(count()) }))
}

func (r *Recorder) ObserveCycle(ctx context.Context, report processing.CycleReport, err error) {
	r.cycles.WithLabelValues(cycleResult(report, err)).Inc()
	r.duration.Observe(report.Duration.Seconds())

	if report.Inserted > 0 {
		r.rows.WithLabelValues("insert").Add(float64(report.Inserted))
	}
	if report.Updated > 0 {
		r.rows.WithLabelValues("update").Add(float64(report.Updated))
	}
	for _, f := range report.Failures {
		r.rowErrors.WithLabelValues(string(f.Kind)).Inc()
	}
	if report.Rate.IsPositive() {
		r.rate.Set(report.Rate.InexactFloat64())
	}
}

func cycleResult(report processing.CycleReport, err error) string {
	switch {
	case err == nil && !report.Changed:
		return "unchanged"
	case err == nil:
		return "applied"
	case errors.Is(err, orders.ErrSourceUnavailable):
		return "source_unavailable"
	case errors.Is(err, orders.ErrRateUnavailable):
		return "rate_unavailable"
	case orders.IsConnectionError(err):
		return "store_unavailable"
	default:
		return "error"
	}
}
