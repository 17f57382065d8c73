package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "mediaingest",
		Short: "Classify a photo tree with a vision model and publish it to a content store",
		Long: `mediaingest walks a folder of trip photos, derives the country from folder
names, classifies each image with a vision model and publishes the image and
its metadata to a content store.

Classifications are cached by content hash, so re-running over the same tree
only pays for new images.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newCacheCmd())

	return cmd
}
