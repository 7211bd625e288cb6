package match

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"imagecompare/internal/models"
	"imagecompare/internal/rename"
)

// DefaultThreshold is the power below which two images count as duplicates
const DefaultThreshold = 50.0

// Detector compares every pair of a collection once and marks each pair
// whose power is below the threshold
type Detector struct {
	threshold   float64
	renamer     rename.Renamer
	logger      logrus.FieldLogger
	partitionFn func(done, total int)
	pairFn      func(done, total int)
	onPair      func(*models.DuplicatePair) error
}

// Option configures a Detector
type Option func(*Detector)

// WithLogger sets the logger used for per-pair diagnostics
func WithLogger(l logrus.FieldLogger) Option {
	return func(d *Detector) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithPartitionProgress is called after each outer loop iteration
func WithPartitionProgress(fn func(done, total int)) Option {
	return func(d *Detector) {
		d.partitionFn = fn
	}
}

// WithPairProgress is called after each comparison of the inner loop,
// total being the size of the current partition
func WithPairProgress(fn func(done, total int)) Option {
	return func(d *Detector) {
		d.pairFn = fn
	}
}

// WithOnPair is called once per accepted pair, after both files were
// renamed and the counter advanced. An error stops the pass.
func WithOnPair(fn func(*models.DuplicatePair) error) Option {
	return func(d *Detector) {
		d.onPair = fn
	}
}

// NewDetector creates a Detector
func NewDetector(threshold float64, renamer rename.Renamer, opts ...Option) *Detector {
	d := &Detector{
		threshold: threshold,
		renamer:   renamer,
		logger:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Threshold returns the configured threshold
func (d *Detector) Threshold() float64 {
	return d.threshold
}

// Detect runs the all-pairs pass over col. Pairs are visited with i
// ascending and j from i+1, so counter values and rename order are
// deterministic. seq is the first counter value to hand out; the next
// unused value is returned.
//
// On failure the pairs committed so far are returned with the error.
func (d *Detector) Detect(col *models.Collection, seq int) ([]*models.DuplicatePair, int, error) {
	var pairs []*models.DuplicatePair

	n := col.Len()
	for i := 0; i < n-1; i++ {
		partition := n - i - 1
		for j := i + 1; j < n; j++ {
			ri, rj := col.Record(i), col.Record(j)

			power, err := Power(ri.Thumb, rj.Thumb)
			if err != nil {
				return pairs, seq, fmt.Errorf("failed to compare %s and %s: %w", ri.Path, rj.Path, err)
			}

			d.logger.WithFields(logrus.Fields{
				"i":     i,
				"j":     j,
				"power": power,
			}).Debug("compared")

			if power < d.threshold {
				pair, err := d.mark(col, i, j, seq, power)
				if err != nil {
					return pairs, seq, err
				}
				pairs = append(pairs, pair)
				seq++

				if d.onPair != nil {
					if err := d.onPair(pair); err != nil {
						return pairs, seq, err
					}
				}
			}

			if d.pairFn != nil {
				d.pairFn(j-i, partition)
			}
		}

		if d.partitionFn != nil {
			d.partitionFn(i+1, n-1)
		}
	}

	return pairs, seq, nil
}

// mark designates A and B by file size (ties go to i) and renames both
func (d *Detector) mark(col *models.Collection, i, j, seq int, power float64) (*models.DuplicatePair, error) {
	a, b := i, j
	if col.Record(i).FileSize < col.Record(j).FileSize {
		a, b = j, i
	}
	ra, rb := col.Record(a), col.Record(b)

	pair := &models.DuplicatePair{
		Seq:   seq,
		A:     a,
		B:     b,
		OrigA: ra.Path,
		OrigB: rb.Path,
		SizeA: ra.FileSize,
		SizeB: rb.FileSize,
		Score: power,
	}

	newA, newB, err := rename.MarkPair(d.renamer, col, a, b, seq)
	if err != nil {
		if newA != "" {
			return nil, fmt.Errorf("duplicate #%s (%s already renamed to %s): %w",
				models.FormatSeq(seq), pair.OrigA, newA, err)
		}
		return nil, fmt.Errorf("duplicate #%s: %w", models.FormatSeq(seq), err)
	}
	pair.NewA, pair.NewB = newA, newB

	d.logger.WithFields(logrus.Fields{
		"seq":   seq,
		"a":     pair.OrigA,
		"b":     pair.OrigB,
		"power": power,
	}).Debug("marked duplicate pair")

	return pair, nil
}
