package normalize

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// Orientation is the EXIF orientation tag value (1-8)
type Orientation int

// EXIF orientation values
const (
	OrientationNormal     Orientation = 1
	OrientationFlipH      Orientation = 2
	OrientationRotate180  Orientation = 3
	OrientationFlipV      Orientation = 4
	OrientationTranspose  Orientation = 5
	OrientationRotate270  Orientation = 6 // stored rotated, display needs 90° clockwise
	OrientationTransverse Orientation = 7
	OrientationRotate90   Orientation = 8 // display needs 90° counter-clockwise
)

// ErrInvalidOrientation is returned when an orientation tag is present
// but carries a value outside 1..8
var ErrInvalidOrientation = errors.New("invalid EXIF orientation")

// ErrUnreadableExif is returned when a file carries an EXIF block that
// cannot be decoded
var ErrUnreadableExif = errors.New("unreadable EXIF metadata")

// JPEG markers walked while looking for the EXIF segment
const (
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOS  = 0xDA
	markerAPP1 = 0xE1
	markerTEM  = 0x01
	markerRST0 = 0xD0
	markerRST7 = 0xD7
)

var exifHeader = []byte("Exif\x00\x00")

// ReadOrientation reads the EXIF orientation from r.
// A file without an EXIF segment, or without the tag, is upright. An EXIF
// segment that cannot be decoded is an error, except when goexif only
// failed on a sub-IFD and IFD0 is intact.
func ReadOrientation(r io.Reader) (Orientation, error) {
	payload, err := findExifSegment(bufio.NewReader(r))
	if err != nil {
		return 0, err
	}
	if payload == nil {
		return OrientationNormal, nil
	}

	x, err := exif.Decode(bytes.NewReader(payload))
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		return 0, fmt.Errorf("%w: %v", ErrUnreadableExif, err)
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		if exif.IsTagNotPresentError(err) {
			return OrientationNormal, nil
		}
		return 0, fmt.Errorf("failed to read orientation tag: %w", err)
	}

	v, err := tag.Int(0)
	if err != nil {
		return 0, fmt.Errorf("failed to read orientation value: %w", err)
	}

	o := Orientation(v)
	if o < OrientationNormal || o > OrientationRotate90 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidOrientation, v)
	}
	return o, nil
}

// findExifSegment walks the JPEG header segments up to the start of scan
// and returns the payload of the first APP1 segment starting with the
// EXIF header, or nil when there is none. Streams that are not JPEG, or
// end early, are left for the image decoder to reject.
func findExifSegment(br *bufio.Reader) ([]byte, error) {
	var soi [2]byte
	if _, err := io.ReadFull(br, soi[:]); err != nil || soi[0] != 0xFF || soi[1] != markerSOI {
		return nil, nil
	}

	for {
		marker, err := nextMarker(br)
		if err != nil {
			return nil, nil
		}
		switch {
		case marker == markerSOS || marker == markerEOI:
			return nil, nil
		case marker == markerTEM || (marker >= markerRST0 && marker <= markerRST7):
			continue
		}

		var size [2]byte
		if _, err := io.ReadFull(br, size[:]); err != nil {
			return nil, nil
		}
		n := int(binary.BigEndian.Uint16(size[:])) - 2
		if n < 0 {
			return nil, nil
		}

		if marker != markerAPP1 {
			if _, err := br.Discard(n); err != nil {
				return nil, nil
			}
			continue
		}

		data := make([]byte, n)
		read, err := io.ReadFull(br, data)
		if !bytes.HasPrefix(data[:read], exifHeader) {
			if err != nil {
				return nil, nil
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: truncated EXIF segment", ErrUnreadableExif)
		}
		return data, nil
	}
}

// nextMarker skips to the next 0xFF and returns the marker byte after
// any fill bytes
func nextMarker(br *bufio.Reader) (byte, error) {
	if _, err := br.ReadBytes(0xFF); err != nil {
		return 0, err
	}
	for {
		c, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if c != 0xFF {
			return c, nil
		}
	}
}

// Apply returns img transformed so its content is visually upright
func (o Orientation) Apply(img image.Image) image.Image {
	switch o {
	case OrientationFlipH:
		return imaging.FlipH(img)
	case OrientationRotate180:
		return imaging.Rotate180(img)
	case OrientationFlipV:
		return imaging.FlipV(img)
	case OrientationTranspose:
		return imaging.Transpose(img)
	case OrientationRotate270:
		return imaging.Rotate270(img)
	case OrientationTransverse:
		return imaging.Transverse(img)
	case OrientationRotate90:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
