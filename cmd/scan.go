package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"imagecompare/internal/match"
	"imagecompare/internal/models"
	"imagecompare/internal/normalize"
	"imagecompare/internal/rename"
	"imagecompare/internal/scan"
	"imagecompare/internal/storage"
)

var (
	threshold    float64
	thumbWidth   int
	thumbHeight  int
	workers      int
	scanDryRun   bool
	manifestPath string
	noDB         bool
	noProgress   bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <folder>",
	Short: "Find similar images in a folder and rename them",
	Long: `Compare every pair of JPEG images in a folder and rename similar pairs.

The scan will:
1. Load all *.jpg and *.jpeg files of the folder (not recursive)
2. Reduce each one to a grayscale thumbnail, rotated per EXIF orientation
3. Compute the cross-image power of every pair of thumbnails
4. Rename each pair below the threshold to DUP_xxxx_A_... / DUP_xxxx_B_...

The renames are recorded in the database, see 'list' and 'restore'.

Example:
  imagecompare scan ./photos
  imagecompare scan ./photos --threshold 30 --width 64 --height 64
  imagecompare scan ./photos --dry-run --manifest pairs.json`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().Float64VarP(&threshold, "threshold", "t", match.DefaultThreshold, "Power threshold, pairs strictly below it are similar")
	scanCmd.Flags().IntVar(&thumbWidth, "width", normalize.DefaultWidth, "Thumbnail bounding box width")
	scanCmd.Flags().IntVar(&thumbHeight, "height", normalize.DefaultHeight, "Thumbnail bounding box height")
	scanCmd.Flags().IntVar(&workers, "workers", 1, "Number of parallel decoders while loading")
	scanCmd.Flags().BoolVar(&scanDryRun, "dry-run", false, "Report similar pairs without renaming")
	scanCmd.Flags().StringVar(&manifestPath, "manifest", "", "Also write a JSON manifest of the renamed pairs to this file")
	scanCmd.Flags().BoolVar(&noDB, "no-db", false, "Do not record the run in the database")
	scanCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Hide progress bars")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	folder := args[0]

	absFolder, err := filepath.Abs(folder)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(absFolder)
	if err != nil {
		return fmt.Errorf("folder not found: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", absFolder)
	}

	log := newLogger()
	normalizer := normalize.NewNormalizer(thumbWidth, thumbHeight)
	w, h := normalizer.Size()

	// Load
	fmt.Println()
	fmt.Printf("Loading images in path '%s' …\n", absFolder)
	fmt.Println()

	var loadBar *progressbar.ProgressBar
	s := scan.NewScanner(
		scan.WithNormalizer(normalizer),
		scan.WithWorkers(workers),
		scan.WithProgress(func(loaded, total int, current string) {
			loadBar.Add(1)
			log.WithField("path", current).Debug("loaded")
		}),
	)

	paths, err := s.FindImages(absFolder)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	loadBar = newBar(len(paths), "Loading", "images")
	col, err := s.Load(cmd.Context(), paths)
	loadBar.Finish()
	if err != nil {
		return fmt.Errorf("failed to load images: %w", err)
	}
	fmt.Printf("Loaded: %d images\n", col.Len())

	// Record the run before the first rename
	run := &models.Run{
		Folder:      absFolder,
		ThumbWidth:  w,
		ThumbHeight: h,
		Threshold:   threshold,
		TotalImages: col.Len(),
		DryRun:      scanDryRun,
	}

	var store *storage.Storage
	if !noDB {
		store, err = openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.BeginRun(run); err != nil {
			return err
		}
	}

	// Compare
	var renamer rename.Renamer = rename.Disk{}
	if scanDryRun {
		renamer = &rename.DryRun{}
	}

	n := col.Len()
	checkBar := newBar(n*(n-1)/2, "Checking", "pairs")
	detector := match.NewDetector(threshold, renamer,
		match.WithLogger(log),
		match.WithPairProgress(func(done, total int) {
			checkBar.Add(1)
		}),
		match.WithPartitionProgress(func(done, total int) {
			checkBar.Describe(fmt.Sprintf("Checking (partition %d/%d)", done, total))
		}),
		match.WithOnPair(func(p *models.DuplicatePair) error {
			checkBar.Clear()
			fmt.Println(pairMessage(p, scanDryRun))
			if store != nil {
				return store.SavePair(run.ID, p)
			}
			return nil
		}),
	)

	fmt.Println()
	fmt.Printf("Checking for similar image pairs, using thumbnail size = (%d, %d), power threshold = %g …\n", w, h, detector.Threshold())
	fmt.Println()

	pairs, _, detectErr := detector.Detect(col, 0)
	checkBar.Finish()

	run.TotalPairs = len(pairs)
	if manifestPath != "" {
		if err := writeManifestFile(manifestPath, run, pairs); err != nil {
			return err
		}
	}
	if detectErr != nil {
		return fmt.Errorf("aborted after %d pairs: %w", len(pairs), detectErr)
	}

	// Unload
	fmt.Println()
	fmt.Println("Unloading images …")
	unloadBar := newBar(n, "Unloading", "images")
	col.Release(func(done, total int) {
		unloadBar.Add(1)
	})
	unloadBar.Finish()

	if store != nil {
		if err := store.FinishRun(run); err != nil {
			return err
		}
	}

	fmt.Println()
	fmt.Println("=== Scan Complete ===")
	fmt.Printf("Total images:  %d\n", n)
	fmt.Printf("Similar pairs: %d\n", len(pairs))
	if store != nil && len(pairs) > 0 {
		fmt.Println()
		fmt.Printf("Run 'imagecompare list --run %d' to see the pairs again\n", run.ID)
		if !scanDryRun {
			fmt.Printf("Run 'imagecompare restore --run %d' to undo the renames\n", run.ID)
		}
	}

	fmt.Println()
	fmt.Println("DONE!")
	return nil
}

func writeManifestFile(path string, run *models.Run, pairs []*models.DuplicatePair) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create manifest: %w", err)
	}
	defer f.Close()

	if err := storage.WriteManifest(f, run, pairs); err != nil {
		return err
	}
	return f.Close()
}
