package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"

	"imagecompare/internal/models"
	"imagecompare/internal/storage"
)

// formatSize renders a byte count with an SI prefix, e.g. "1.2 MB"
func formatSize(bytes int64) string {
	return humanize.SIWithDigits(float64(bytes), 1, "B")
}

// pairMessage is the console line printed for every marked pair
func pairMessage(p *models.DuplicatePair, dryRun bool) string {
	verb := "renaming to"
	if dryRun {
		verb = "would rename to"
	}
	return fmt.Sprintf("#%s:  '%s' (%s)  is similar to  '%s' (%s)  --  %s  '%s'  and  '%s'",
		models.FormatSeq(p.Seq),
		filepath.Base(p.OrigA), formatSize(p.SizeA),
		filepath.Base(p.OrigB), formatSize(p.SizeB),
		verb,
		filepath.Base(p.NewA), filepath.Base(p.NewB))
}

// newBar creates a progress bar for one phase on stderr
func newBar(total int, description, unit string) *progressbar.ProgressBar {
	var w io.Writer = os.Stderr
	if noProgress {
		w = io.Discard
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetItsString(unit),
		progressbar.OptionShowIts(),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

// selectRun returns the run with the given id, or the latest one when id is 0
func selectRun(store *storage.Storage, id int64) (*models.Run, error) {
	if id > 0 {
		return store.GetRun(id)
	}
	run, err := store.LatestRun()
	if err != nil {
		return nil, err
	}
	return run, nil
}

// confirm asks a yes/no question on stdin, defaulting to no
func confirm(question string) bool {
	fmt.Printf("%s [y/N]: ", question)
	reader := bufio.NewReader(os.Stdin)
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
