package models

import (
	"fmt"
	"image"
	"time"
)

// ImageRecord is one scanned file: its current path, the size of the
// original file and the normalized thumbnail used for comparison.
type ImageRecord struct {
	ID       int         `json:"id"`
	Path     string      `json:"path"`
	FileSize int64       `json:"file_size"`
	Thumb    *image.Gray `json:"-"`
}

// Collection holds all records of a run in scan order.
// The index of a record is its identity and never changes.
type Collection struct {
	records []*ImageRecord
}

// NewCollection creates a Collection, assigning IDs by position
func NewCollection(records []*ImageRecord) *Collection {
	for i, rec := range records {
		rec.ID = i
	}
	return &Collection{records: records}
}

// Len returns the number of records
func (c *Collection) Len() int {
	return len(c.records)
}

// Record returns the record with the given ID
func (c *Collection) Record(id int) *ImageRecord {
	return c.records[id]
}

// Records returns all records in scan order
func (c *Collection) Records() []*ImageRecord {
	return c.records
}

// Path returns the current on-disk path of a record
func (c *Collection) Path(id int) string {
	return c.records[id].Path
}

// SetPath records that the file behind id now lives at path
func (c *Collection) SetPath(id int, path string) {
	c.records[id].Path = path
}

// Release drops every thumbnail. The collection keeps its paths.
func (c *Collection) Release(fn func(done, total int)) {
	for i, rec := range c.records {
		rec.Thumb = nil
		if fn != nil {
			fn(i+1, len(c.records))
		}
	}
}

// DuplicatePair is one accepted comparison. A is the larger-or-equal file.
type DuplicatePair struct {
	Seq   int     `json:"seq"`
	A     int     `json:"a"`
	B     int     `json:"b"`
	OrigA string  `json:"orig_a"`
	OrigB string  `json:"orig_b"`
	NewA  string  `json:"new_a"`
	NewB  string  `json:"new_b"`
	SizeA int64   `json:"size_a"`
	SizeB int64   `json:"size_b"`
	Score float64 `json:"score"`
}

// Run describes one scan invocation and its settings
type Run struct {
	ID          int64     `json:"id"`
	Folder      string    `json:"folder"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at,omitzero"`
	ThumbWidth  int       `json:"thumb_width"`
	ThumbHeight int       `json:"thumb_height"`
	Threshold   float64   `json:"threshold"`
	TotalImages int       `json:"total_images"`
	TotalPairs  int       `json:"total_pairs"`
	DryRun      bool      `json:"dry_run"`
	Restored    bool      `json:"restored"`
}

// Finished reports whether the run reached the end of its comparison pass
func (r *Run) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// FormatSeq renders a duplicate counter value, zero padded to 4 digits
func FormatSeq(seq int) string {
	return fmt.Sprintf("%04d", seq)
}
