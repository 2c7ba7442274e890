package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/traceload/internal/generator"
)

func keyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Print dedup keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := cmd.Flags().GetInt("count")
			if err != nil {
				return err
			}
			worker, err := cmd.Flags().GetInt("worker")
			if err != nil {
				return err
			}

			var opts []generator.KeyOption
			if worker >= 0 {
				opts = append(opts, generator.WithSequence(worker))
			}
			keys := generator.NewKeyGenerator(opts...)
			for range n {
				fmt.Fprintln(cmd.OutOrStdout(), keys.Key())
			}
			return nil
		},
	}
	cmd.Flags().IntP("count", "n", 1, "number of keys")
	cmd.Flags().Int("worker", -1, "append a per-worker sequence suffix for this worker index")
	return cmd
}
