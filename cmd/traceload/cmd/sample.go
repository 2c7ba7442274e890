package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/traceload/internal/generator"
)

// Print records built from the configured schema without writing them
// anywhere.
func sampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Print synthesized records as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			n, err := cmd.Flags().GetInt("count")
			if err != nil {
				return err
			}

			schema := cfg.Schema
			synth := generator.NewSynthesizer(generator.Options{
				TokenField: cfg.Fields.TokenField,
				KeyField:   cfg.Fields.KeyField,
				Seed:       cfg.Load.Seed,
			})
			enc := json.NewEncoder(cmd.OutOrStdout())
			for range n {
				rec, err := synth.Synthesize(&schema)
				if err != nil {
					return fmt.Errorf("synthesizing record: %w", err)
				}
				if err := enc.Encode(rec); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntP("count", "n", 5, "number of records")
	cmd.Flags().Uint64("seed", 0, "random seed (0 picks one)")
	return cmd
}
