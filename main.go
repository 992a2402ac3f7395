package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"orders_sync/internal/app"
	"orders_sync/internal/config"
	"orders_sync/internal/store"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	setupEnvironment()

	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "orders-sync",
		Short:         "Mirror an orders spreadsheet into a database, pricing rows in roubles",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runLoop,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Poll the spreadsheet until interrupted (default)",
			RunE:  runLoop,
		},
		&cobra.Command{
			Use:   "once",
			Short: "Run a single sync cycle",
			RunE:  runOnce,
		},
		&cobra.Command{
			Use:   "init-db",
			Short: "Create the database and the orders table",
			RunE:  initDB,
		},
		&cobra.Command{
			Use:   "rate",
			Short: "Print the current exchange rate",
			RunE:  printRate,
		},
	)
	return root
}

func runLoop(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeApp(a)

	log.Info().
		Dur("interval", cfg.SyncInterval).
		Msg("Starting orders sync. Running immediately and then after every cycle...")

	if err := a.Engine.Run(ctx); err != nil {
		return err
	}
	log.Info().Msg("Shutting down")
	return nil
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeApp(a)

	report, err := a.Engine.RunCycle(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "rows=%d changed=%t inserted=%d updated=%d skipped=%d failed=%d\n",
		report.Rows, report.Changed, report.Inserted, report.Updated, report.Skipped, len(report.Failures))
	return nil
}

func initDB(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}

	if cfg.DBDriver == store.DriverPostgres {
		if err := store.CreateDatabase(ctx, cfg.AdminDSN(), cfg.DBName); err != nil {
			return err
		}
	}

	st, err := app.OpenStore(ctx, cfg, config.ForMode(cfg.DBWait).StoreConnect)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.EnsureSchema(ctx); err != nil {
		return err
	}
	log.Info().Str("driver", cfg.DBDriver).Msg("Orders table ready")
	return nil
}

func printRate(cmd *cobra.Command, args []string) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}

	rate, err := app.InitializeRateClient(cfg).GetRate(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), rate.String())
	return nil
}

func closeApp(a *app.App) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Close(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Msg("Failed to close resources")
	}
}
