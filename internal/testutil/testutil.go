// Package testutil builds JPEG fixtures for tests.
// All files are written below t.TempDir().
package testutil

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

// HGradient returns a left-to-right black to white gradient
func HGradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(x * 255 / max(w-1, 1))
			img.Set(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

// VGradient returns a top-to-bottom white to black gradient
func VGradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		v := uint8(255 - y*255/max(h-1, 1))
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

// Checker returns a black and white checkerboard with square cells
func Checker(w, h, cell int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{A: 255}
			if (x/cell+y/cell)%2 == 0 {
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

// Halves returns an image whose left half is black and right half white
func Halves(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{A: 255}
			if x >= w/2 {
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

// Tinted returns a colored copy of a gradient, used to check that color
// encoding does not matter after normalization
func Tinted(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(x * 255 / max(w-1, 1))
			img.Set(x, y, color.NRGBA{R: v, G: v / 2, B: 255 - v, A: 255})
		}
	}
	return img
}

// EncodeJPEG encodes img as JPEG with the given quality
func EncodeJPEG(t *testing.T, img image.Image, quality int) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// WriteJPEG encodes img into dir/name and returns the full path
func WriteJPEG(t *testing.T, dir, name string, img image.Image, quality int) string {
	t.Helper()
	return WriteFile(t, dir, name, EncodeJPEG(t, img, quality))
}

// WriteFile writes data into dir/name and returns the full path
func WriteFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// WithOrientation inserts an APP1 EXIF segment carrying only an
// Orientation tag right after the SOI marker of a JPEG stream
func WithOrientation(jpegData []byte, orientation uint16) []byte {
	return WithExif(jpegData, ExifTIFF(orientation, 0))
}

// ExifTIFF builds a big endian TIFF block whose IFD0 holds an Orientation
// tag and, when exifIFD is not 0, an ExifIFDPointer to that offset
func ExifTIFF(orientation uint16, exifIFD uint32) []byte {
	entries := uint16(1)
	if exifIFD != 0 {
		entries++
	}

	tiff := new(bytes.Buffer)
	tiff.Write([]byte{'M', 'M', 0x00, 0x2A})
	binary.Write(tiff, binary.BigEndian, uint32(8))
	binary.Write(tiff, binary.BigEndian, entries)

	// Orientation, SHORT, padded to 4 bytes
	binary.Write(tiff, binary.BigEndian, uint16(0x0112))
	binary.Write(tiff, binary.BigEndian, uint16(3))
	binary.Write(tiff, binary.BigEndian, uint32(1))
	binary.Write(tiff, binary.BigEndian, orientation)
	binary.Write(tiff, binary.BigEndian, uint16(0))

	if exifIFD != 0 {
		// ExifIFDPointer, LONG
		binary.Write(tiff, binary.BigEndian, uint16(0x8769))
		binary.Write(tiff, binary.BigEndian, uint16(4))
		binary.Write(tiff, binary.BigEndian, uint32(1))
		binary.Write(tiff, binary.BigEndian, exifIFD)
	}

	binary.Write(tiff, binary.BigEndian, uint32(0))
	return tiff.Bytes()
}

// WithExif inserts an APP1 segment holding the EXIF header followed by
// tiff right after the SOI marker of a JPEG stream. tiff need not be valid.
func WithExif(jpegData, tiff []byte) []byte {
	return WithAPP1(jpegData, append([]byte("Exif\x00\x00"), tiff...))
}

// WithAPP1 inserts an APP1 segment with an arbitrary payload, such as an
// XMP packet, right after the SOI marker of a JPEG stream
func WithAPP1(jpegData, payload []byte) []byte {
	out := new(bytes.Buffer)
	out.Write(jpegData[:2])
	out.Write([]byte{0xFF, 0xE1})
	binary.Write(out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write(jpegData[2:])
	return out.Bytes()
}

// PadFile appends n zero bytes after the JPEG EOI marker, growing the
// file size without changing the decoded pixels
func PadFile(t *testing.T, path string, n int) {
	t.Helper()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer f.Close()

	if _, err := f.Write(make([]byte, n)); err != nil {
		t.Fatalf("failed to pad %s: %v", path, err)
	}
}

// FileSize returns the size of path in bytes
func FileSize(t *testing.T, path string) int64 {
	t.Helper()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("failed to stat %s: %v", path, err)
	}
	return info.Size()
}
