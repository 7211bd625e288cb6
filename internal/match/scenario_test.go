package match

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/disintegration/imaging"

	"imagecompare/internal/fileutil"
	"imagecompare/internal/models"
	"imagecompare/internal/normalize"
	"imagecompare/internal/rename"
	"imagecompare/internal/scan"
	"imagecompare/internal/storage"
	"imagecompare/internal/testutil"
)

// runFolder scans dir and runs the detector with on-disk renames
func runFolder(t *testing.T, dir string, threshold float64) ([]*models.DuplicatePair, int) {
	t.Helper()
	return runFolderWith(t, dir, threshold, rename.Disk{})
}

func runFolderWith(t *testing.T, dir string, threshold float64, r rename.Renamer) ([]*models.DuplicatePair, int) {
	t.Helper()

	s := scan.NewScanner(scan.WithNormalizer(normalize.NewNormalizer(128, 128)))
	col, err := s.ScanFolder(context.Background(), dir)
	if err != nil {
		t.Fatalf("ScanFolder failed: %v", err)
	}
	defer col.Release(nil)

	pairs, next, err := NewDetector(threshold, r).Detect(col, 0)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	return pairs, next
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestScenario_ByteIdenticalCopies(t *testing.T) {
	dir := t.TempDir()
	data := testutil.EncodeJPEG(t, testutil.HGradient(200, 150), 90)
	testutil.WriteFile(t, dir, "first.jpg", data)
	testutil.WriteFile(t, dir, "second.jpg", data)

	pairs, next := runFolder(t, dir, DefaultThreshold)

	if len(pairs) != 1 || next != 1 {
		t.Fatalf("got %d pairs, next %d; want 1, 1", len(pairs), next)
	}
	if pairs[0].Score != 0 {
		t.Errorf("score = %v, want 0", pairs[0].Score)
	}

	want := []string{"DUP_0000_A_first.jpg", "DUP_0000_B_second.jpg"}
	got := listDir(t, dir)
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("directory = %v, want %v", got, want)
	}
}

func TestScenario_DownscaledReencodedCopy(t *testing.T) {
	dir := t.TempDir()
	src := testutil.HGradient(512, 384)

	// Scanned first but smaller: must end up as B
	small := imaging.Resize(src, 256, 192, imaging.Lanczos)
	testutil.WriteJPEG(t, dir, "copy.jpg", small, 70)
	testutil.WriteJPEG(t, dir, "original.jpg", src, 95)

	pairs, _ := runFolder(t, dir, DefaultThreshold)

	if len(pairs) != 1 {
		t.Fatalf("got %d pairs, want 1", len(pairs))
	}
	p := pairs[0]
	if p.Score >= DefaultThreshold {
		t.Errorf("score = %v, want below %v", p.Score, DefaultThreshold)
	}
	if filepath.Base(p.NewA) != "DUP_0000_A_original.jpg" {
		t.Errorf("NewA = %s", filepath.Base(p.NewA))
	}
	if filepath.Base(p.NewB) != "DUP_0000_B_copy.jpg" {
		t.Errorf("NewB = %s", filepath.Base(p.NewB))
	}
	if testutil.FileSize(t, p.NewA) < testutil.FileSize(t, p.NewB) {
		t.Error("A should be the larger file")
	}
}

func TestScenario_ColorAndGrayEncodings(t *testing.T) {
	dir := t.TempDir()
	tinted := testutil.Tinted(256, 256)
	testutil.WriteJPEG(t, dir, "color.jpg", tinted, 95)
	testutil.WriteJPEG(t, dir, "gray.jpg", imaging.Grayscale(tinted), 95)

	pairs, _ := runFolder(t, dir, DefaultThreshold)
	if len(pairs) != 1 {
		t.Fatalf("got %d pairs, want 1", len(pairs))
	}
}

func TestScenario_RotatedCopy(t *testing.T) {
	dir := t.TempDir()
	upright := testutil.Halves(120, 240)

	// Stored rotated 90° counter-clockwise with orientation 6
	stored := imaging.Rotate90(upright)
	testutil.WriteJPEG(t, dir, "a_upright.jpg", upright, 95)
	testutil.WriteFile(t, dir, "b_rotated.jpg", testutil.WithOrientation(testutil.EncodeJPEG(t, stored, 95), 6))

	pairs, _ := runFolder(t, dir, DefaultThreshold)
	if len(pairs) != 1 {
		t.Fatalf("got %d pairs, want 1", len(pairs))
	}
}

func TestScenario_MutuallyDissimilar(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteJPEG(t, dir, "1.jpg", testutil.HGradient(128, 128), 90)
	testutil.WriteJPEG(t, dir, "2.jpg", testutil.VGradient(128, 128), 90)
	testutil.WriteJPEG(t, dir, "3.jpg", testutil.Checker(128, 128, 16), 90)

	pairs, next := runFolder(t, dir, DefaultThreshold)

	if len(pairs) != 0 || next != 0 {
		t.Errorf("got %d pairs, next %d; want none", len(pairs), next)
	}
	got := listDir(t, dir)
	if len(got) != 3 || got[0] != "1.jpg" || got[1] != "2.jpg" || got[2] != "3.jpg" {
		t.Errorf("directory changed: %v", got)
	}
}

func TestScenario_OnlyOnePairSimilar(t *testing.T) {
	dir := t.TempDir()
	src := testutil.HGradient(256, 256)
	testutil.WriteJPEG(t, dir, "1.jpg", src, 95)
	testutil.WriteJPEG(t, dir, "2.jpg", imaging.Resize(src, 128, 128, imaging.Lanczos), 80)
	testutil.WriteJPEG(t, dir, "3.jpg", testutil.Checker(256, 256, 32), 90)

	pairs, next := runFolder(t, dir, DefaultThreshold)

	if len(pairs) != 1 || next != 1 {
		t.Fatalf("got %d pairs, next %d; want 1, 1", len(pairs), next)
	}
	if pairs[0].Seq != 0 {
		t.Errorf("seq = %d, want 0", pairs[0].Seq)
	}
	if !fileutil.Exists(filepath.Join(dir, "3.jpg")) {
		t.Error("3.jpg should be untouched")
	}
}

func TestScenario_Deterministic(t *testing.T) {
	build := func(dir string) {
		src := testutil.HGradient(200, 200)
		data := testutil.EncodeJPEG(t, src, 90)
		testutil.WriteFile(t, dir, "a.jpg", data)
		testutil.WriteFile(t, dir, "b.jpg", data)
		testutil.WriteFile(t, dir, "c.jpg", data)
		testutil.WriteJPEG(t, dir, "d.jpg", testutil.Checker(200, 200, 20), 90)
		testutil.WriteJPEG(t, dir, "e.jpeg", src, 60)
	}

	dir1, dir2 := t.TempDir(), t.TempDir()
	build(dir1)
	build(dir2)

	pairs1, _ := runFolder(t, dir1, DefaultThreshold)
	pairs2, _ := runFolder(t, dir2, DefaultThreshold)

	if len(pairs1) == 0 {
		t.Fatal("expected some pairs")
	}
	if len(pairs1) != len(pairs2) {
		t.Fatalf("runs differ: %d vs %d pairs", len(pairs1), len(pairs2))
	}
	for k := range pairs1 {
		if filepath.Base(pairs1[k].NewA) != filepath.Base(pairs2[k].NewA) ||
			filepath.Base(pairs1[k].NewB) != filepath.Base(pairs2[k].NewB) {
			t.Errorf("pair %d differs: %s/%s vs %s/%s", k,
				pairs1[k].NewA, pairs1[k].NewB, pairs2[k].NewA, pairs2[k].NewB)
		}
	}

	names1, names2 := listDir(t, dir1), listDir(t, dir2)
	for k := range names1 {
		if names1[k] != names2[k] {
			t.Errorf("directory entry %d: %s vs %s", k, names1[k], names2[k])
		}
	}
}

func TestScenario_DryRunMatchesDisk(t *testing.T) {
	dir := t.TempDir()
	data := testutil.EncodeJPEG(t, testutil.HGradient(160, 120), 90)
	testutil.WriteFile(t, dir, "a.jpg", data)
	testutil.WriteFile(t, dir, "b.jpg", data)
	testutil.WriteFile(t, dir, "c.jpeg", data)
	testutil.WriteJPEG(t, dir, "d.jpg", testutil.Checker(160, 120, 10), 90)
	testutil.PadFile(t, filepath.Join(dir, "b.jpg"), 500)

	before := listDir(t, dir)

	dry := &rename.DryRun{}
	dryPairs, dryNext := runFolderWith(t, dir, DefaultThreshold, dry)

	after := listDir(t, dir)
	if len(after) != len(before) {
		t.Fatalf("dry run changed the directory: %v -> %v", before, after)
	}
	for i := range before {
		if after[i] != before[i] {
			t.Fatalf("dry run changed the directory: %v -> %v", before, after)
		}
	}
	if len(dry.Renames) != 2*len(dryPairs) {
		t.Errorf("recorded %d renames for %d pairs", len(dry.Renames), len(dryPairs))
	}

	diskPairs, diskNext := runFolder(t, dir, DefaultThreshold)

	if dryNext != diskNext || len(dryPairs) != len(diskPairs) {
		t.Fatalf("dry run: %d pairs, next %d; disk: %d pairs, next %d",
			len(dryPairs), dryNext, len(diskPairs), diskNext)
	}
	if len(diskPairs) != 3 {
		t.Fatalf("got %d pairs, want 3", len(diskPairs))
	}
	for i := range diskPairs {
		d, k := dryPairs[i], diskPairs[i]
		if d.Seq != k.Seq || d.NewA != k.NewA || d.NewB != k.NewB || d.OrigA != k.OrigA || d.OrigB != k.OrigB {
			t.Errorf("pair %d: dry run %+v, disk %+v", i, d, k)
		}
	}

	// Every name the dry run reported as final is now on disk
	for _, p := range dryPairs {
		for _, name := range []string{p.NewA, p.NewB} {
			name = storage.CurrentName(dryPairs, name, p.Seq)
			if !fileutil.Exists(name) {
				t.Errorf("%s reported by dry run is missing on disk", filepath.Base(name))
			}
		}
	}
}
