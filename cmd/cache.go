package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/trailhead-retreats/mediaingest/internal/cache"
	"github.com/trailhead-retreats/mediaingest/internal/config"
	"github.com/trailhead-retreats/mediaingest/internal/ledger"
	"github.com/trailhead-retreats/mediaingest/internal/models"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the classification cache",
	}

	cmd.AddCommand(newCacheStatsCmd())

	return cmd
}

func newCacheStatsCmd() *cobra.Command {
	var cacheFile string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show how many cached classifications exist per category and confidence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := cache.OpenFile(config.CachePath(cacheFile))
			if err != nil {
				return err
			}
			printCacheStats(cmd.OutOrStdout(), store.Path(), store.All())
			return nil
		},
	}

	cmd.Flags().StringVar(&cacheFile, "cache-file", "", "Classification cache file (default from CACHE_FILE)")

	return cmd
}

func printCacheStats(w io.Writer, path string, entries map[string]models.ClassificationResult) {
	byCategory := make(map[string]int)
	byConfidence := make(map[string]int)
	for _, r := range entries {
		byCategory[string(r.Category)]++
		byConfidence[string(r.Confidence)]++
	}

	fmt.Fprintf(w, "Cache:    %s\n", path)
	fmt.Fprintf(w, "Entries:  %d\n", len(entries))
	fmt.Fprintln(w, "\nBy category:")
	for _, k := range ledger.SortedKeys(byCategory) {
		fmt.Fprintf(w, "  %-14s %d\n", k, byCategory[k])
	}
	fmt.Fprintln(w, "\nBy confidence:")
	for _, k := range ledger.SortedKeys(byConfidence) {
		fmt.Fprintf(w, "  %-14s %d\n", k, byConfidence[k])
	}
}
