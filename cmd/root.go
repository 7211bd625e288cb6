package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"imagecompare/internal/storage"
)

var (
	dbPath  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "imagecompare",
	Short: "Find similar JPEG images and mark them for review",
	Long: `imagecompare compares all JPEG images in a folder and renames similar pairs
so you can examine and delete the duplicates afterwards.

Every image is reduced to a small grayscale thumbnail, so differences in
resolution, compression quality and color don't matter. Each similar pair is
renamed to DUP_xxxx_A_<name> and DUP_xxxx_B_<name>; the A file is always the
bigger one, so the B files are usually the ones to delete.

Example usage:
  imagecompare scan ./photos            # Rename similar pairs
  imagecompare scan ./photos --dry-run  # Only report them
  imagecompare list                     # Show pairs of the last scan
  imagecompare restore                  # Undo the renames of the last scan
  imagecompare clean --dry-run          # Preview removal of B files`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	homeDir, _ := os.UserHomeDir()
	defaultDB := filepath.Join(homeDir, ".imagecompare", "runs.db")

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDB, "Path to SQLite database recording runs and renames")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every comparison to stderr")
}

// newLogger returns the diagnostic logger. Console output of the commands
// goes to stdout; the logger only writes to stderr.
func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	log.SetLevel(logrus.WarnLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

func openStore() (*storage.Storage, error) {
	store, err := storage.NewStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}
