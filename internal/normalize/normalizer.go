package normalize

import (
	"fmt"
	"image"
	"io"
	"os"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// Default thumbnail bounding box
const (
	DefaultWidth  = 128
	DefaultHeight = 128
)

// Normalizer turns image files into small grayscale thumbnails that are
// only used for comparison
type Normalizer struct {
	width  int
	height int
}

// NewNormalizer creates a Normalizer with the given bounding box.
// Non-positive sizes fall back to the defaults.
func NewNormalizer(width, height int) *Normalizer {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return &Normalizer{width: width, height: height}
}

// Size returns the thumbnail bounding box
func (n *Normalizer) Size() (width, height int) {
	return n.width, n.height
}

// NormalizeFile loads the image at path and returns its thumbnail.
// The file itself is never modified.
func (n *Normalizer) NormalizeFile(path string) (*image.Gray, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	// Read orientation first, Decode consumes the reader
	orientation, err := ReadOrientation(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind file: %w", err)
	}

	img, err := imaging.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}

	return n.Normalize(img, orientation), nil
}

// Normalize rotates img upright, shrinks it to fit the bounding box
// (never enlarging) and converts it to 8-bit luminance
func (n *Normalizer) Normalize(img image.Image, orientation Orientation) *image.Gray {
	upright := orientation.Apply(img)
	thumb := imaging.Fit(upright, n.width, n.height, imaging.Lanczos)
	return toGray(thumb)
}

func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}
