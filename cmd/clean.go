package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"imagecompare/internal/fileutil"
	"imagecompare/internal/storage"
)

var (
	cleanRunID  int64
	cleanDryRun bool
	moveTo      string
	permanent   bool
	noConfirm   bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the B files of a scan",
	Long: `Remove the smaller member of each similar pair found by a scan.

The clean command walks the pairs in the order they were renamed and removes
the B file of every pair whose members are both still present, so at least
one image of each pair is always kept. Files are moved to the trash unless
another action is given.

Example:
  imagecompare clean                     # Move to trash (default)
  imagecompare clean --permanent         # Delete permanently
  imagecompare clean --move-to=./backup  # Move to specific folder
  imagecompare clean --dry-run           # Preview only
  imagecompare clean --run 3             # Clean scan #3`,
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().Int64Var(&cleanRunID, "run", 0, "Run ID (default: latest)")
	cleanCmd.Flags().BoolVar(&cleanDryRun, "dry-run", false, "Preview without removing")
	cleanCmd.Flags().BoolVar(&permanent, "permanent", false, "Delete permanently instead of moving to trash")
	cleanCmd.Flags().StringVar(&moveTo, "move-to", "", "Move duplicates to this folder")
	cleanCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := selectRun(store, cleanRunID)
	if errors.Is(err, storage.ErrNoRuns) {
		fmt.Println("No scans recorded.")
		return nil
	}
	if err != nil {
		return err
	}
	if run.DryRun {
		fmt.Printf("Run #%d was a dry run, its files were not renamed.\n", run.ID)
		return nil
	}
	if run.Restored {
		fmt.Printf("Run #%d has been restored, nothing to clean.\n", run.ID)
		return nil
	}

	pairs, err := store.GetPairs(run.ID)
	if err != nil {
		return fmt.Errorf("failed to get pairs: %w", err)
	}

	// Collect files still on disk
	var toRemove []string
	var totalSize int64
	sizes := make(map[string]int64)
	for _, path := range storage.Removable(pairs) {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		toRemove = append(toRemove, path)
		sizes[path] = info.Size()
		totalSize += info.Size()
	}

	if len(toRemove) == 0 {
		fmt.Println("No files to remove (files may have been already deleted).")
		return nil
	}

	var action string
	if moveTo != "" {
		action = fmt.Sprintf("move to %s", moveTo)
	} else if permanent {
		action = "permanently delete"
	} else {
		action = "move to trash"
	}

	fmt.Printf("Will %s %d files (%s)\n\n", action, len(toRemove), formatSize(totalSize))

	if cleanDryRun {
		fmt.Println("Files to be removed:")
		for _, path := range toRemove {
			fmt.Printf("  %s\n", path)
		}
		fmt.Println()
		fmt.Println("(Dry run - no files were modified)")
		fmt.Println("Run without --dry-run to actually remove files.")
		return nil
	}

	if !noConfirm && !confirm(fmt.Sprintf("Are you sure you want to %s %d files?", action, len(toRemove))) {
		fmt.Println("Aborted.")
		return nil
	}

	if moveTo != "" {
		if err := os.MkdirAll(moveTo, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", moveTo, err)
		}
	}

	log := newLogger()
	var processed, failed int
	var reclaimed int64
	for _, path := range toRemove {
		var err error
		if moveTo != "" {
			err = fileutil.MoveFile(path, moveTo)
		} else if permanent {
			err = os.Remove(path)
		} else {
			err = fileutil.MoveToTrash(path)
		}

		if err != nil {
			log.WithError(err).WithField("path", path).Error("failed to remove file")
			failed++
			continue
		}
		processed++
		reclaimed += sizes[path]
	}

	fmt.Println()
	if moveTo != "" {
		fmt.Printf("Moved %d files to %s\n", processed, moveTo)
	} else if permanent {
		fmt.Printf("Permanently deleted %d files\n", processed)
	} else {
		fmt.Printf("Moved %d files to trash\n", processed)
	}
	if failed > 0 {
		fmt.Printf("Failed: %d files\n", failed)
	}
	fmt.Printf("Space reclaimed: %s\n", formatSize(reclaimed))

	return nil
}
