package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/traceload/internal/orchestrator"
	"github.com/Adithya-Monish-Kumar-K/traceload/internal/sink"
	"github.com/Adithya-Monish-Kumar-K/traceload/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/traceload/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/traceload/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/traceload/pkg/metrics"
)

// Start the workers and keep writing until interrupted or the configured
// duration elapses. Prints the run summary on exit.
func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate records at the configured rate",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, cmd.OutOrStdout())
		},
	}
	addLoadFlags(cmd)
	cmd.Flags().Bool("dry-run", false, "log records instead of writing them (same as --sink log)")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, out io.Writer) error {
	opener, err := sink.NewOpener(cfg.Sink, sink.Options{
		KeyField:   cfg.Fields.KeyField,
		TokenField: cfg.Fields.TokenField,
	})
	if err != nil {
		return err
	}

	checker := health.NewChecker()
	var observer orchestrator.Observer
	if cfg.Metrics.Enabled {
		observer = metrics.New()
		shutdown := metrics.StartServer(cfg.Metrics.Port, checker)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Warn("metrics server shutdown", "error", err)
			}
		}()
	}

	pool, err := orchestrator.New(orchestrator.ConfigFrom(cfg), opener, observer)
	if err != nil {
		return err
	}

	slog.Info("starting load run",
		"sink", cfg.Sink.Driver,
		"table", cfg.Table,
		"target_tps", cfg.Load.TargetTPS,
		"workers", cfg.Load.Workers,
		"duration", cfg.Load.Duration,
	)
	h, err := pool.Start(ctx)
	if err != nil {
		slog.Error("load run failed to start", "error", err)
		return err
	}
	checker.SetRunID(h.RunID())
	checker.Register("workers", h.HealthCheck())

	err = h.Wait()
	fmt.Fprintln(out)
	h.Summary().Print(out)
	if err != nil {
		slog.Error("load run stopped on failure", "run_id", h.RunID(), "error", err)
		return err
	}
	slog.Info("load run stopped", "run_id", h.RunID())
	return nil
}
