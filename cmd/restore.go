package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"imagecompare/internal/rename"
	"imagecompare/internal/storage"
)

var (
	restoreRunID  int64
	restoreDryRun bool
	restoreYes    bool
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Undo the renames of a scan",
	Long: `Give every file renamed by a scan its original name back.

Pairs are undone newest first, so files that were marked in several pairs
lose all their DUP_ prefixes. The run is flagged as restored afterwards.

Example:
  imagecompare restore              # Undo the latest scan
  imagecompare restore --run 3      # Undo scan #3
  imagecompare restore --dry-run    # Show the renames only`,
	RunE: runRestore,
}

func init() {
	restoreCmd.Flags().Int64Var(&restoreRunID, "run", 0, "Run ID (default: latest)")
	restoreCmd.Flags().BoolVar(&restoreDryRun, "dry-run", false, "Preview without renaming")
	restoreCmd.Flags().BoolVarP(&restoreYes, "yes", "y", false, "Skip confirmation prompt")
	rootCmd.AddCommand(restoreCmd)
}

func runRestore(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := selectRun(store, restoreRunID)
	if errors.Is(err, storage.ErrNoRuns) {
		fmt.Println("No scans recorded.")
		return nil
	}
	if err != nil {
		return err
	}

	if run.DryRun {
		fmt.Printf("Run #%d was a dry run, nothing was renamed.\n", run.ID)
		return nil
	}
	if run.Restored {
		fmt.Printf("Run #%d has already been restored.\n", run.ID)
		return nil
	}

	pairs, err := store.GetPairs(run.ID)
	if err != nil {
		return fmt.Errorf("failed to get pairs: %w", err)
	}
	if len(pairs) == 0 {
		fmt.Printf("Run #%d renamed no files.\n", run.ID)
		return nil
	}

	fmt.Printf("Will restore %d pairs of run #%d in %s\n\n", len(pairs), run.ID, run.Folder)

	if restoreDryRun {
		dry := &rename.DryRun{}
		if _, err := rename.Undo(dry, pairs); err != nil {
			return err
		}
		for _, r := range dry.Renames {
			fmt.Printf("  %s -> %s\n", filepath.Base(r[0]), filepath.Base(r[1]))
		}
		fmt.Println()
		fmt.Println("(Dry run - no files were modified)")
		return nil
	}

	if !restoreYes && !confirm(fmt.Sprintf("Rename %d files back to their original names?", 2*len(pairs))) {
		fmt.Println("Aborted.")
		return nil
	}

	restored, err := rename.Undo(rename.Disk{}, pairs)
	if err != nil {
		return fmt.Errorf("restored %d of %d pairs: %w", restored, len(pairs), err)
	}

	if err := store.MarkRestored(run.ID); err != nil {
		return err
	}

	fmt.Printf("Restored %d pairs\n", restored)
	return nil
}
