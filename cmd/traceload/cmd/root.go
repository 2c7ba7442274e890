package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/traceload/pkg/config"
)

// RootCmd is the root Cobra command that gets called from the main func.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "traceload",
		Short: "traceload writes synthetic records into a store at a fixed rate.",
		Long: `traceload writes synthetic records into a store at a fixed aggregate rate,
split across concurrent workers that each hold one connection.

Settings are read from the file passed with --config and can be overridden
with TL_* environment variables and command flags. Without a config file the
defaults reproduce the traceability run: 4000 records per second over 40
workers into traceability_test_json on a local Postgres.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().String("config", "", "path to config file")

	cmd.AddCommand(
		runCmd(),
		sampleCmd(),
		keyCmd(),
	)
	return cmd
}

func Execute() {
	if err := RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file, environment and any load flags the
// command defines and the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Lookup("sink") != nil && flags.Changed("sink") {
		cfg.Sink.Driver, _ = flags.GetString("sink")
	}
	if flags.Lookup("dry-run") != nil {
		if dry, _ := flags.GetBool("dry-run"); dry {
			cfg.Sink.Driver = config.DriverLog
		}
	}
	if flags.Lookup("table") != nil && flags.Changed("table") {
		cfg.Table, _ = flags.GetString("table")
	}
	if flags.Lookup("tps") != nil && flags.Changed("tps") {
		cfg.Load.TargetTPS, _ = flags.GetInt("tps")
	}
	if flags.Lookup("workers") != nil && flags.Changed("workers") {
		cfg.Load.Workers, _ = flags.GetInt("workers")
	}
	if flags.Lookup("duration") != nil && flags.Changed("duration") {
		cfg.Load.Duration, _ = flags.GetDuration("duration")
	}
	if flags.Lookup("pacing") != nil && flags.Changed("pacing") {
		cfg.Load.Pacing, _ = flags.GetString("pacing")
	}
	if flags.Lookup("seed") != nil && flags.Changed("seed") {
		cfg.Load.Seed, _ = flags.GetUint64("seed")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func addLoadFlags(cmd *cobra.Command) {
	cmd.Flags().String("sink", "", "sink driver (postgres, mysql, sqlite, mongo, kafka, redis, memory, log)")
	cmd.Flags().String("table", "", "target table, topic, stream or collection")
	cmd.Flags().Int("tps", 0, "aggregate records per second")
	cmd.Flags().Int("workers", 0, "number of concurrent workers")
	cmd.Flags().Duration("duration", 0, "stop after this long (0 runs until interrupted)")
	cmd.Flags().String("pacing", "", "pacing mode (limiter, sleep)")
}
