package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"neuroforge-backend/internal/gallery"
	"neuroforge-backend/internal/services"
)

var version = "1.0.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "neuroforge",
	Short: "NeuroForge CLI - generate images and manage the local gallery",
	Long: `neuroforge generates images through a NeuroForge relay and keeps the
results in a gallery stored on disk.

Examples:
  neuroforge generate "a lighthouse in a storm" --quality high --size 1536x1024
  neuroforge gallery list
  neuroforge gallery rm img_1718000000000_abc123def --yes`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	dataDir    string
	storageKey string
	verbose    bool
)

func init() {
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(galleryCmd)

	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "./data", "Directory holding the gallery file")
	rootCmd.PersistentFlags().StringVar(&storageKey, "key", gallery.DefaultKey, "Gallery storage key")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}

func cliLogger() zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()
}

// openGalleries opens the on-disk gallery. A one-shot process never confirms an earlier arm,
// so the window only has to cover the arm and confirm issued by a single command.
func openGalleries(log zerolog.Logger) (*services.Galleries, error) {
	persister, err := gallery.NewFilePersister(dataDir)
	if err != nil {
		return nil, err
	}
	return services.NewGalleries(persister, storageKey, gallery.DefaultConfirmWindow, log), nil
}
