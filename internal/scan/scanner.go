package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"imagecompare/internal/models"
	"imagecompare/internal/normalize"
)

// Patterns are matched case-sensitively, in this order
var Patterns = []string{"*.jpg", "*.jpeg"}

// Scanner finds images in a folder and loads their thumbnails
type Scanner struct {
	normalizer *normalize.Normalizer
	workers    int
	progressFn func(loaded, total int, current string)
}

// Option configures a Scanner
type Option func(*Scanner)

// WithWorkers sets the number of parallel decoders.
// Results keep scan order whatever the value.
func WithWorkers(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithNormalizer sets the normalizer used to build thumbnails
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(s *Scanner) {
		if n != nil {
			s.normalizer = n
		}
	}
}

// WithProgress sets a progress callback
func WithProgress(fn func(loaded, total int, current string)) Option {
	return func(s *Scanner) {
		s.progressFn = fn
	}
}

// NewScanner creates a new Scanner
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{
		normalizer: normalize.NewNormalizer(0, 0),
		workers:    1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FindImages lists the JPEG files directly inside folder. Each pattern's
// matches are sorted; directories and other non-regular entries are skipped.
func (s *Scanner) FindImages(folder string) ([]string, error) {
	var paths []string
	for _, pattern := range Patterns {
		matches, err := filepath.Glob(filepath.Join(folder, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to match %s: %w", pattern, err)
		}
		for _, m := range matches {
			info, err := os.Lstat(m)
			if err != nil {
				return nil, fmt.Errorf("failed to stat %s: %w", m, err)
			}
			if info.Mode().IsRegular() {
				paths = append(paths, m)
			}
		}
	}
	return paths, nil
}

// Load normalizes every file into a Collection indexed in the order of
// paths. The first failure aborts the whole load.
func (s *Scanner) Load(ctx context.Context, paths []string) (*models.Collection, error) {
	records := make([]*models.ImageRecord, len(paths))

	var (
		mu     sync.Mutex
		loaded int
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			rec, err := s.loadOne(path)
			if err != nil {
				return err
			}
			records[i] = rec

			if s.progressFn != nil {
				mu.Lock()
				loaded++
				s.progressFn(loaded, len(paths), path)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return models.NewCollection(records), nil
}

func (s *Scanner) loadOne(path string) (*models.ImageRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	thumb, err := s.normalizer.NormalizeFile(path)
	if err != nil {
		return nil, err
	}

	return &models.ImageRecord{
		Path:     path,
		FileSize: info.Size(),
		Thumb:    thumb,
	}, nil
}

// ScanFolder finds and loads all images of folder
func (s *Scanner) ScanFolder(ctx context.Context, folder string) (*models.Collection, error) {
	paths, err := s.FindImages(folder)
	if err != nil {
		return nil, err
	}
	return s.Load(ctx, paths)
}
