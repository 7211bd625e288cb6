package match

import (
	"errors"
	"image"
)

// ErrEmptyOverlap is returned when two thumbnails share no pixels
var ErrEmptyOverlap = errors.New("thumbnails do not overlap")

// Power computes the cross-image power of two grayscale thumbnails: the
// mean of the squared per-pixel absolute difference. Lower is more
// similar, 0 means the thumbnails are pixel-identical.
//
// Thumbnails of different size are compared over their common top-left
// region (min width x min height) and the mean is taken over that region.
func Power(a, b *image.Gray) (float64, error) {
	ab, bb := a.Bounds(), b.Bounds()
	w := min(ab.Dx(), bb.Dx())
	h := min(ab.Dy(), bb.Dy())
	if w <= 0 || h <= 0 {
		return 0, ErrEmptyOverlap
	}

	var sum uint64
	for y := 0; y < h; y++ {
		rowA := a.Pix[y*a.Stride : y*a.Stride+w]
		rowB := b.Pix[y*b.Stride : y*b.Stride+w]
		for x := range rowA {
			d := int(rowA[x]) - int(rowB[x])
			sum += uint64(d * d)
		}
	}

	return float64(sum) / float64(w*h), nil
}
