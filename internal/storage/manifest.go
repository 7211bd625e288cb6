package storage

import (
	"encoding/json"
	"fmt"
	"io"

	"imagecompare/internal/models"
)

// Manifest is the JSON report of one run
type Manifest struct {
	Run   *models.Run             `json:"run"`
	Pairs []*models.DuplicatePair `json:"pairs"`
}

// WriteManifest writes run and its pairs as indented JSON
func WriteManifest(w io.Writer, run *models.Run, pairs []*models.DuplicatePair) error {
	if pairs == nil {
		pairs = []*models.DuplicatePair{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Manifest{Run: run, Pairs: pairs}); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return nil
}

// CurrentName follows path through every pair after afterSeq and returns
// the name the file ended up with. Pairs must be in counter order.
func CurrentName(pairs []*models.DuplicatePair, path string, afterSeq int) string {
	for _, p := range pairs {
		if p.Seq <= afterSeq {
			continue
		}
		switch path {
		case p.OrigA:
			path = p.NewA
		case p.OrigB:
			path = p.NewB
		}
	}
	return path
}

// Removable picks, in counter order, the B side of every pair whose
// members are both still kept, and returns the current paths of those
// files. At least one member of each pair is always kept.
func Removable(pairs []*models.DuplicatePair) []string {
	removed := make(map[int]bool)
	var out []string
	for _, p := range pairs {
		if removed[p.A] || removed[p.B] {
			continue
		}
		removed[p.B] = true
		out = append(out, CurrentName(pairs, p.NewB, p.Seq))
	}
	return out
}
