package app

import (
	"context"
	"fmt"
	"time"

	"orders_sync/internal/cbr"
	"orders_sync/internal/config"
	"orders_sync/internal/metrics"
	"orders_sync/internal/notifications"
	"orders_sync/internal/processing"
	"orders_sync/internal/retry"
	"orders_sync/internal/sheets"
	"orders_sync/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

// App bundles the sync engine with the resources it owns.
type App struct {
	Engine  *processing.Engine
	Store   *store.Store
	Rates   *cbr.Client
	metrics *metrics.Server
}

// New builds every collaborator from cfg. The caller must Close the result.
func New(ctx context.Context, cfg Config) (*App, error) {
	resilience := config.ForMode(cfg.DBWait)

	st, err := OpenStore(ctx, cfg, resilience.StoreConnect)
	if err != nil {
		return nil, err
	}
	if err := st.EnsureSchema(ctx); err != nil {
		st.Close()
		return nil, err
	}

	source, err := InitializeSheetSource(ctx, cfg, resilience.SheetsConnect)
	if err != nil {
		st.Close()
		return nil, err
	}

	rates := InitializeRateClient(cfg)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(reg)
	metrics.RegisterCallCounter(reg, "orders_sync_rate_api_calls_total", "Requests made to the exchange rate feed", rates.GetAPICallCount)

	engine := processing.NewEngine(source, rates, st,
		processing.WithInterval(cfg.SyncInterval),
		processing.WithObserver(recorder),
		processing.WithObserver(InitializeNotificationClient(cfg)),
	)

	a := &App{Engine: engine, Store: st, Rates: rates}
	if cfg.MetricsAddr != "" {
		a.metrics = metrics.NewServer(cfg.MetricsAddr, reg)
		a.metrics.Start()
	}
	return a, nil
}

// Close stops the metrics server and releases the database.
func (a *App) Close(ctx context.Context) error {
	if a.metrics != nil {
		if err := a.metrics.Stop(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to stop metrics server")
		}
	}
	return a.Store.Close()
}

// OpenStore connects to the configured database, retrying per rc.
func OpenStore(ctx context.Context, cfg Config, rc retry.Config) (*store.Store, error) {
	log.Debug().
		Str("driver", cfg.DBDriver).
		Bool("wait", rc.InfiniteRetry).
		Msg("Connecting to database")

	st, err := retry.WithRetry(ctx, rc, func(ctx context.Context) (*store.Store, error) {
		st, err := store.Open(ctx, cfg.DBDriver, cfg.DSN())
		if err != nil {
			log.Warn().Err(err).Msg("Database not reachable")
		}
		return st, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return st, nil
}

// InitializeSheetSource returns the Google Sheets or local workbook source.
func InitializeSheetSource(ctx context.Context, cfg Config, rc retry.Config) (processing.SheetSource, error) {
	if cfg.SheetSource == SourceXLSX {
		log.Info().Str("path", cfg.XLSXPath).Msg("Reading orders from local workbook")
		return sheets.NewFileSource(cfg.XLSXPath, cfg.XLSXSheet, cfg.SpreadsheetRange), nil
	}

	client, err := retry.WithRetry(ctx, rc, func(ctx context.Context) (*sheets.Client, error) {
		return sheets.NewClient(ctx, cfg.CredentialsFile)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}

	log.Info().
		Str("spreadsheet", cfg.SpreadsheetID).
		Str("range", cfg.SpreadsheetRange).
		Msg("Reading orders from Google Sheets")
	return sheets.NewSource(client, cfg.SpreadsheetID, cfg.SpreadsheetRange), nil
}

func InitializeRateClient(cfg Config) *cbr.Client {
	return cbr.NewClient(cfg.RateURL, cfg.RateCurrencyID, cfg.RateMaxAge)
}

// InitializeNotificationClient creates and returns the notification client
func InitializeNotificationClient(cfg Config) *notifications.Client {
	log.Debug().
		Bool("enabled", cfg.NtfyEnabled).
		Str("base_url", cfg.NtfyURL).
		Str("topic", cfg.NtfyTopic).
		Msg("Initializing notification client")

	client := notifications.NewClient(cfg.NtfyURL, cfg.NtfyTopic, cfg.NtfyEnabled, cfg.NtfyPriority,
		3, 1*time.Second, 30*time.Second)

	if cfg.NtfyEnabled {
		log.Info().Str("topic", cfg.NtfyTopic).Msg("Notifications enabled")
	} else {
		log.Debug().Msg("Notifications disabled")
	}

	return client
}
