// Package rename marks duplicate pairs on disk by prefixing both file
// names with a shared sequence number and an A/B size marker.
package rename

import (
	"fmt"
	"path/filepath"

	"imagecompare/internal/fileutil"
	"imagecompare/internal/models"
)

// Side tells which member of a duplicate pair a file is
type Side byte

const (
	SideA Side = 'A' // larger or equal file
	SideB Side = 'B'
)

// Prefix returns the marker put in front of a basename
func Prefix(seq int, side Side) string {
	return fmt.Sprintf("DUP_%s_%c_", models.FormatSeq(seq), side)
}

// DupName returns the marked name for path, in the same directory.
// The prefix goes in front of the current basename, so a file that is
// marked twice carries both prefixes.
func DupName(path string, seq int, side Side) string {
	return filepath.Join(filepath.Dir(path), Prefix(seq, side)+filepath.Base(path))
}

// Renamer moves a file to a new name
type Renamer interface {
	Rename(oldpath, newpath string) error
}

// Disk renames files on disk and never overwrites an existing file
type Disk struct{}

// Rename implements Renamer
func (Disk) Rename(oldpath, newpath string) error {
	return fileutil.RenameNoClobber(oldpath, newpath)
}

// DryRun only records the renames it was asked to do
type DryRun struct {
	Renames [][2]string
}

// Rename implements Renamer
func (d *DryRun) Rename(oldpath, newpath string) error {
	d.Renames = append(d.Renames, [2]string{oldpath, newpath})
	return nil
}

// PathTable maps a stable record ID to the file's current path
type PathTable interface {
	Path(id int) string
	SetPath(id int, path string)
}

// MarkPair renames record a to its A name and record b to its B name
// using counter value seq, then stores the new paths in the table.
// If the second rename fails the first one stays applied and recorded.
func MarkPair(r Renamer, paths PathTable, a, b, seq int) (newA, newB string, err error) {
	oldA, oldB := paths.Path(a), paths.Path(b)
	newA = DupName(oldA, seq, SideA)
	newB = DupName(oldB, seq, SideB)

	if err := r.Rename(oldA, newA); err != nil {
		return "", "", fmt.Errorf("failed to rename %s: %w", oldA, err)
	}
	paths.SetPath(a, newA)

	if err := r.Rename(oldB, newB); err != nil {
		return newA, "", fmt.Errorf("failed to rename %s: %w", oldB, err)
	}
	paths.SetPath(b, newB)

	return newA, newB, nil
}

// Undo reverses the renames of pairs, newest first, so files marked
// several times get back their original name. It stops at the first
// failure and returns how many pairs were fully restored.
func Undo(r Renamer, pairs []*models.DuplicatePair) (int, error) {
	restored := 0
	for k := len(pairs) - 1; k >= 0; k-- {
		p := pairs[k]
		if err := r.Rename(p.NewB, p.OrigB); err != nil {
			return restored, fmt.Errorf("failed to restore %s: %w", p.OrigB, err)
		}
		if err := r.Rename(p.NewA, p.OrigA); err != nil {
			return restored, fmt.Errorf("failed to restore %s: %w", p.OrigA, err)
		}
		restored++
	}
	return restored, nil
}
