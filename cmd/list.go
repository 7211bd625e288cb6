package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"imagecompare/internal/models"
	"imagecompare/internal/storage"
)

var (
	listRunID   int64
	listJSON    bool
	listRuns    bool
	listVerbose bool
	listLimit   int
	listOffset  int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the pairs renamed by a scan",
	Long: `Display the similar pairs recorded for a scan, in the order they were renamed.

Each pair shows:
- Its sequence number (the xxxx in DUP_xxxx_)
- The original names and sizes of the A and B files
- The names they were renamed to and their power score

Example:
  imagecompare list               # Pairs of the latest scan
  imagecompare list --run 3       # Pairs of scan #3
  imagecompare list --runs        # All recorded scans
  imagecompare list --json        # Manifest of the latest scan`,
	RunE: runList,
}

func init() {
	listCmd.Flags().Int64Var(&listRunID, "run", 0, "Run ID (default: latest)")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	listCmd.Flags().BoolVar(&listRuns, "runs", false, "List recorded runs instead of pairs")
	listCmd.Flags().BoolVarP(&listVerbose, "long", "l", false, "Show full paths")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "Limit number of pairs to display (0 = all)")
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "Skip first N pairs (for pagination)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if listRuns {
		return printRuns(store)
	}

	run, err := selectRun(store, listRunID)
	if errors.Is(err, storage.ErrNoRuns) {
		fmt.Println("No scans recorded.")
		fmt.Println("Run 'imagecompare scan <folder>' to look for similar images.")
		return nil
	}
	if err != nil {
		return err
	}

	pairs, err := store.GetPairs(run.ID)
	if err != nil {
		return fmt.Errorf("failed to get pairs: %w", err)
	}

	if listJSON {
		return storage.WriteManifest(os.Stdout, run, pairs)
	}

	printRunHeader(run)

	if len(pairs) == 0 {
		fmt.Println("No similar pairs in this run.")
		return nil
	}

	total := len(pairs)
	startIdx := min(listOffset, total)
	shown := pairs[startIdx:]
	if listLimit > 0 && listLimit < len(shown) {
		shown = shown[:listLimit]
	}

	for _, p := range shown {
		printPair(p, listVerbose)
	}

	endIdx := startIdx + len(shown)
	if len(shown) > 0 {
		fmt.Printf("Showing pairs %d-%d of %d\n", startIdx+1, endIdx, total)
		if endIdx < total {
			fmt.Printf("Next page: imagecompare list --run %d -n %d --offset %d\n", run.ID, listLimit, endIdx)
		}
	} else {
		fmt.Printf("No pairs in range (offset %d exceeds total %d)\n", listOffset, total)
	}

	return nil
}

func printRunHeader(run *models.Run) {
	status := "complete"
	switch {
	case run.Restored:
		status = "restored"
	case !run.Finished():
		status = "aborted"
	}
	mode := ""
	if run.DryRun {
		mode = " (dry run)"
	}

	fmt.Printf("Run #%d%s: %s\n", run.ID, mode, run.Folder)
	fmt.Printf("  Started:   %s  [%s]\n", run.StartedAt.Format("2006-01-02 15:04:05"), status)
	fmt.Printf("  Thumbnail: %dx%d  Threshold: %g\n", run.ThumbWidth, run.ThumbHeight, run.Threshold)
	fmt.Printf("  Images:    %d  Pairs: %d\n", run.TotalImages, run.TotalPairs)
	fmt.Println()
}

func printPair(p *models.DuplicatePair, long bool) {
	name := filepath.Base
	if long {
		name = func(s string) string { return s }
	}

	fmt.Printf("#%s  power %.2f\n", models.FormatSeq(p.Seq), p.Score)
	fmt.Printf("  A %-40s %10s  -> %s\n", name(p.OrigA), formatSize(p.SizeA), name(p.NewA))
	fmt.Printf("  B %-40s %10s  -> %s\n", name(p.OrigB), formatSize(p.SizeB), name(p.NewB))
	fmt.Println()
}

func printRuns(store *storage.Storage) error {
	runs, err := store.GetRuns()
	if err != nil {
		return fmt.Errorf("failed to get runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No scans recorded.")
		return nil
	}

	fmt.Printf("%-6s  %-19s  %-8s  %-6s  %s\n", "Run", "Started", "Images", "Pairs", "Folder")
	fmt.Println(strings.Repeat("-", 70))
	for _, run := range runs {
		flags := ""
		if run.DryRun {
			flags += " [dry run]"
		}
		if run.Restored {
			flags += " [restored]"
		}
		fmt.Printf("#%-5d  %-19s  %-8d  %-6d  %s%s\n",
			run.ID, run.StartedAt.Format("2006-01-02 15:04:05"),
			run.TotalImages, run.TotalPairs, run.Folder, flags)
	}
	fmt.Println()
	return nil
}
