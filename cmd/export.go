package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/trailhead-retreats/mediaingest/internal/ledger"
)

func newExportCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:     "export <results.json>",
		Short:   "Convert a results ledger to Parquet",
		Example: `  mediaingest export upload-results.json --out upload-results.parquet`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := ledger.ReadResults(args[0])
			if err != nil {
				return err
			}

			if err := ledger.ExportParquet(outPath, records); err != nil {
				return err
			}

			slog.Info("Exported results ledger", "source", args[0], "out", outPath, "records", len(records))
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records to %s\n", len(records), outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "upload-results.parquet", "Parquet output path")

	return cmd
}
