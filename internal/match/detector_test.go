package match

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"

	"imagecompare/internal/fileutil"
	"imagecompare/internal/models"
	"imagecompare/internal/rename"
)

func collection(thumbs []*image.Gray, sizes []int64) *models.Collection {
	records := make([]*models.ImageRecord, len(thumbs))
	for i := range thumbs {
		records[i] = &models.ImageRecord{
			Path:     fmt.Sprintf("/photos/f%d.jpg", i),
			FileSize: sizes[i],
			Thumb:    thumbs[i],
		}
	}
	return models.NewCollection(records)
}

func TestNewDetector_Threshold(t *testing.T) {
	if got := NewDetector(37.5, &rename.DryRun{}).Threshold(); got != 37.5 {
		t.Errorf("Threshold() = %v, want 37.5", got)
	}
}

func TestDetect_ThresholdIsExclusive(t *testing.T) {
	// Power of these two thumbnails is exactly 49
	thumbs := []*image.Gray{uniform(1, 1, 0), uniform(1, 1, 7)}

	tests := []struct {
		threshold float64
		wantPairs int
	}{
		{49, 0},
		{50, 1},
		{48, 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("threshold %v", tt.threshold), func(t *testing.T) {
			col := collection(thumbs, []int64{10, 10})
			pairs, next, err := NewDetector(tt.threshold, &rename.DryRun{}).Detect(col, 0)
			if err != nil {
				t.Fatalf("Detect failed: %v", err)
			}
			if len(pairs) != tt.wantPairs {
				t.Errorf("got %d pairs, want %d", len(pairs), tt.wantPairs)
			}
			if next != tt.wantPairs {
				t.Errorf("next seq = %d, want %d", next, tt.wantPairs)
			}
		})
	}
}

func TestDetect_SizePriority(t *testing.T) {
	tests := []struct {
		name  string
		sizes []int64
		wantA int
		wantB int
	}{
		{"first larger", []int64{200, 100}, 0, 1},
		{"second larger", []int64{100, 200}, 1, 0},
		{"tie goes to first", []int64{150, 150}, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col := collection([]*image.Gray{uniform(2, 2, 1), uniform(2, 2, 1)}, tt.sizes)
			pairs, _, err := NewDetector(DefaultThreshold, &rename.DryRun{}).Detect(col, 0)
			if err != nil {
				t.Fatalf("Detect failed: %v", err)
			}
			if len(pairs) != 1 {
				t.Fatalf("got %d pairs, want 1", len(pairs))
			}

			p := pairs[0]
			if p.A != tt.wantA || p.B != tt.wantB {
				t.Errorf("A=%d B=%d, want A=%d B=%d", p.A, p.B, tt.wantA, tt.wantB)
			}
			if p.SizeA < p.SizeB {
				t.Errorf("SizeA %d < SizeB %d", p.SizeA, p.SizeB)
			}
			wantNewA := filepath.Join("/photos", fmt.Sprintf("DUP_0000_A_f%d.jpg", tt.wantA))
			if p.NewA != wantNewA {
				t.Errorf("NewA = %q, want %q", p.NewA, wantNewA)
			}
		})
	}
}

func TestDetect_OrderAndCounter(t *testing.T) {
	thumbs := []*image.Gray{uniform(2, 2, 5), uniform(2, 2, 5), uniform(2, 2, 5), uniform(2, 2, 5)}
	col := collection(thumbs, []int64{10, 10, 10, 10})
	dry := &rename.DryRun{}

	pairs, next, err := NewDetector(DefaultThreshold, dry).Detect(col, 0)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	wantOrder := [][2]int{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}}
	if len(pairs) != len(wantOrder) {
		t.Fatalf("got %d pairs, want %d", len(pairs), len(wantOrder))
	}
	for k, w := range wantOrder {
		if pairs[k].Seq != k {
			t.Errorf("pair %d seq = %d", k, pairs[k].Seq)
		}
		if pairs[k].A != w[0] || pairs[k].B != w[1] {
			t.Errorf("pair %d = (%d,%d), want %v", k, pairs[k].A, pairs[k].B, w)
		}
	}
	if next != 6 {
		t.Errorf("next = %d, want 6", next)
	}

	// Every counter value appears on exactly two renames
	counts := make(map[string]int)
	for _, r := range dry.Renames {
		counts[filepath.Base(r[1])[:8]]++
	}
	for k := 0; k < 6; k++ {
		key := fmt.Sprintf("DUP_%04d", k)
		if counts[key] != 2 {
			t.Errorf("%s used %d times, want 2", key, counts[key])
		}
	}

	// Renames stack on the current name
	want := filepath.Join("/photos", "DUP_0002_A_DUP_0001_A_DUP_0000_A_f0.jpg")
	if col.Path(0) != want {
		t.Errorf("path(0) = %q, want %q", col.Path(0), want)
	}
	if pairs[3].OrigA != filepath.Join("/photos", "DUP_0000_B_f1.jpg") {
		t.Errorf("pair 3 used stale name %q", pairs[3].OrigA)
	}
}

func TestDetect_StartSequence(t *testing.T) {
	col := collection([]*image.Gray{uniform(1, 1, 0), uniform(1, 1, 0)}, []int64{1, 1})

	pairs, next, err := NewDetector(DefaultThreshold, &rename.DryRun{}).Detect(col, 41)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(pairs) != 1 || pairs[0].Seq != 41 || next != 42 {
		t.Errorf("unexpected result: %d pairs, next %d", len(pairs), next)
	}
	if filepath.Base(pairs[0].NewB) != "DUP_0041_B_f1.jpg" {
		t.Errorf("NewB = %q", pairs[0].NewB)
	}
}

func TestDetect_NoPairs(t *testing.T) {
	tests := []struct {
		name   string
		thumbs []*image.Gray
	}{
		{"empty", nil},
		{"single", []*image.Gray{uniform(2, 2, 0)}},
		{"dissimilar", []*image.Gray{uniform(2, 2, 0), uniform(2, 2, 200), uniform(2, 2, 100)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col := collection(tt.thumbs, make([]int64, len(tt.thumbs)))
			pairs, next, err := NewDetector(DefaultThreshold, &rename.DryRun{}).Detect(col, 0)
			if err != nil {
				t.Fatalf("Detect failed: %v", err)
			}
			if len(pairs) != 0 || next != 0 {
				t.Errorf("got %d pairs, next %d", len(pairs), next)
			}
		})
	}
}

func TestDetect_OnPairSeesCommittedState(t *testing.T) {
	col := collection([]*image.Gray{uniform(1, 1, 0), uniform(1, 1, 0), uniform(1, 1, 99)}, []int64{1, 2, 3})

	var seen []*models.DuplicatePair
	d := NewDetector(DefaultThreshold, &rename.DryRun{}, WithOnPair(func(p *models.DuplicatePair) error {
		if col.Path(p.A) != p.NewA || col.Path(p.B) != p.NewB {
			t.Errorf("collection not updated before onPair")
		}
		seen = append(seen, p)
		return nil
	}))

	if _, _, err := d.Detect(col, 0); err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(seen) != 1 {
		t.Fatalf("onPair called %d times, want 1", len(seen))
	}
	if seen[0].A != 1 {
		t.Errorf("A = %d, want 1 (larger file)", seen[0].A)
	}
}

func TestDetect_OnPairErrorStops(t *testing.T) {
	col := collection([]*image.Gray{uniform(1, 1, 0), uniform(1, 1, 0), uniform(1, 1, 0)}, []int64{1, 1, 1})
	stop := errors.New("stop")

	pairs, next, err := NewDetector(DefaultThreshold, &rename.DryRun{}, WithOnPair(func(*models.DuplicatePair) error {
		return stop
	})).Detect(col, 0)

	if !errors.Is(err, stop) {
		t.Fatalf("err = %v, want stop", err)
	}
	if len(pairs) != 1 || next != 1 {
		t.Errorf("got %d pairs, next %d", len(pairs), next)
	}
}

func TestDetect_Progress(t *testing.T) {
	col := collection([]*image.Gray{uniform(1, 1, 0), uniform(1, 1, 90), uniform(1, 1, 180)}, []int64{1, 1, 1})

	var partitions, comparisons int
	d := NewDetector(DefaultThreshold, &rename.DryRun{},
		WithPartitionProgress(func(done, total int) {
			partitions++
			if total != 2 {
				t.Errorf("partition total = %d, want 2", total)
			}
		}),
		WithPairProgress(func(done, total int) {
			comparisons++
			if done > total {
				t.Errorf("pair progress %d/%d", done, total)
			}
		}),
	)

	if _, _, err := d.Detect(col, 0); err != nil {
		t.Fatal(err)
	}
	if partitions != 2 {
		t.Errorf("partitions = %d, want 2", partitions)
	}
	if comparisons != 3 {
		t.Errorf("comparisons = %d, want 3", comparisons)
	}
}

func TestDetect_RenameFailureIsFatal(t *testing.T) {
	dir := t.TempDir()

	var records []*models.ImageRecord
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		records = append(records, &models.ImageRecord{Path: p, FileSize: 1, Thumb: uniform(2, 2, 0)})
	}
	col := models.NewCollection(records)

	// The second pair (a, c) wants DUP_0001_B_c.jpg; occupy it
	blocker := filepath.Join(dir, "DUP_0001_B_c.jpg")
	if err := os.WriteFile(blocker, []byte("y"), 0644); err != nil {
		t.Fatal(err)
	}

	pairs, next, err := NewDetector(DefaultThreshold, rename.Disk{}).Detect(col, 0)
	if !errors.Is(err, fileutil.ErrTargetExists) {
		t.Fatalf("err = %v, want ErrTargetExists", err)
	}
	if len(pairs) != 1 || next != 1 {
		t.Errorf("got %d pairs, next %d; want 1, 1", len(pairs), next)
	}
	if !fileutil.Exists(filepath.Join(dir, "DUP_0000_B_b.jpg")) {
		t.Error("first pair should stay renamed")
	}
	if !fileutil.Exists(filepath.Join(dir, "c.jpg")) {
		t.Error("c.jpg should not have been renamed")
	}
}

func TestDetect_CompareFailure(t *testing.T) {
	col := collection([]*image.Gray{image.NewGray(image.Rect(0, 0, 0, 0)), uniform(1, 1, 0)}, []int64{1, 1})

	_, _, err := NewDetector(DefaultThreshold, &rename.DryRun{}).Detect(col, 0)
	if !errors.Is(err, ErrEmptyOverlap) {
		t.Errorf("err = %v, want ErrEmptyOverlap", err)
	}
}
