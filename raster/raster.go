// Package raster turns an RGBA image into the 1-bit-per-pixel rows a
// NIIMBOT printer consumes, packaged as IMAGE_ROW wire payloads.
package raster

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/Junsang-Mun/niimbot-web/catalog"
)

// Rotation is a clockwise rotation applied before encoding.
type Rotation int

const (
	Rotate0 Rotation = iota
	Rotate90
	Rotate180
	Rotate270
)

// ThresholdMode selects how a gray pixel is classified as set (black)
// or clear (white).
type ThresholdMode int

const (
	// ThresholdFixed uses a constant threshold of 128, independent of
	// the requested print density.
	ThresholdFixed ThresholdMode = iota
	// ThresholdDensityScaled derives the cutoff from the requested
	// print density: 256 - density*40, clamped to 0..255. A higher
	// density lowers the cutoff, so fewer borderline pixels are
	// classified as black (density 5 gives a cutoff of 56).
	ThresholdDensityScaled
)

const fixedThreshold = 128

// Encoder converts images to packed 1bpp rows for a specific model and
// threshold configuration. It holds no per-image state and is safe for
// concurrent use.
type Encoder struct {
	Model    catalog.Model
	Rotation Rotation
	Mode     ThresholdMode
	Density  int // only consulted when Mode == ThresholdDensityScaled
}

// NewEncoder constructs an Encoder validated against model's catalog
// entry for the given density (ignored if mode is ThresholdFixed).
func NewEncoder(model catalog.Model, rot Rotation, mode ThresholdMode, density int) (*Encoder, error) {
	if mode == ThresholdDensityScaled {
		if spec, ok := catalog.Lookup(model); ok && density > spec.MaxDensity {
			return nil, &catalog.ErrDensityExceedsModel{Model: model, Density: density, MaxDensity: spec.MaxDensity}
		}
	}
	return &Encoder{Model: model, Rotation: rot, Mode: mode, Density: density}, nil
}

func (e *Encoder) threshold() uint8 {
	if e.Mode == ThresholdDensityScaled {
		t := 256 - e.Density*40
		if t < 0 {
			t = 0
		}
		if t > 255 {
			t = 255
		}
		return uint8(t)
	}
	return fixedThreshold
}

// colorToGray matches the teacher's luminance formula:
// 0.299R + 0.587G + 0.114B, computed in the 16-bit RGBA color space and
// reduced back to 8 bits.
func colorToGray(c color.Color) uint8 {
	if gray, ok := c.(color.Gray); ok {
		return gray.Y
	}
	r, g, b, _ := c.RGBA()
	gray := (299*r + 587*g + 114*b) / 1000
	return uint8(gray >> 8)
}

// rotate applies e.Rotation to img, returning a new image when rotation
// is non-trivial.
func rotate(img image.Image, rot Rotation) image.Image {
	switch rot {
	case Rotate90:
		return rotate90(img)
	case Rotate180:
		return rotate180(img)
	case Rotate270:
		return rotate270(img)
	default:
		return img
	}
}

func rotate90(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewRGBA(image.Rect(0, 0, h, w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Set(h-1-y, x, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}

func rotate180(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Set(w-1-x, h-1-y, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}

func rotate270(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewRGBA(image.Rect(0, 0, h, w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Set(y, w-1-x, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}

// RowBytes returns the number of packed bytes one row of widthPx pixels
// occupies: ceil(widthPx/8).
func RowBytes(widthPx int) int {
	return (widthPx + 7) / 8
}

// EncodeRows rasterizes img (after rotation) into one packed 1bpp row
// per pixel row, MSB-first, padding the final byte of each row with
// zero bits. It fails with *catalog.ErrWidthExceedsModel if the
// rotated image is wider than the model's max_width_px.
func (e *Encoder) EncodeRows(img image.Image) ([][]byte, error) {
	rotated := rotate(img, e.Rotation)
	b := rotated.Bounds()
	width, height := b.Dx(), b.Dy()

	if spec, ok := catalog.Lookup(e.Model); ok && width > spec.MaxWidthPx {
		return nil, &catalog.ErrWidthExceedsModel{Model: e.Model, WidthPx: width, MaxWidthPx: spec.MaxWidthPx}
	}

	threshold := e.threshold()
	rowBytes := RowBytes(width)
	rows := make([][]byte, height)
	for y := 0; y < height; y++ {
		row := make([]byte, rowBytes)
		for x := 0; x < width; x++ {
			gray := colorToGray(rotated.At(b.Min.X+x, b.Min.Y+y))
			if gray < threshold {
				row[x/8] |= 1 << (7 - uint(x%8))
			}
		}
		rows[y] = row
	}
	return rows, nil
}

// IsDocument reports whether img's pixel brightness histogram is
// dominated (>85%) by near-black and near-white pixels, the signature
// of a scanned page or rendered text rather than a photograph: a
// photo's histogram spreads across the midtones, which dithering
// improves, while a document's bimodal histogram just gets noisier
// under dithering. darkThreshold/lightThreshold default to 50/200 when
// given as 0.
func IsDocument(img image.Image, darkThreshold, lightThreshold uint8) bool {
	if img == nil {
		return false
	}
	if darkThreshold == 0 {
		darkThreshold = 50
	}
	if lightThreshold == 0 {
		lightThreshold = 200
	}
	bounds := img.Bounds()
	dst := image.NewGray(bounds)
	draw.Draw(dst, bounds, img, bounds.Min, draw.Src)

	histogram := make([]int, math.MaxUint8+1)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			histogram[dst.GrayAt(x, y).Y]++
		}
	}

	var darkPixelCount, lightPixelCount, totalPixelCount float64
	for i, count := range histogram {
		totalPixelCount += float64(count)
		if i < int(darkThreshold) {
			darkPixelCount += float64(count)
		} else if i >= int(lightThreshold) {
			lightPixelCount += float64(count)
		}
	}
	if totalPixelCount == 0 {
		return false
	}
	return (darkPixelCount+lightPixelCount)/totalPixelCount > 0.85
}

// imageRowReserved are the three always-zero reserved bytes between the
// row index and the trailing 0x01 marker byte of an IMAGE_ROW payload.
var imageRowReserved = [3]byte{0, 0, 0}

// ImageRowPayload builds the payload of an IMAGE_ROW (0x85) request for
// packed row at index y: a 2-byte big-endian row index, three reserved
// zero bytes, a 0x01 marker, followed by the row's packed bytes.
func ImageRowPayload(y int, row []byte) []byte {
	if y < 0 || y > 0xFFFF {
		panic(fmt.Sprintf("raster: row index %d out of range", y))
	}
	out := make([]byte, 0, 6+len(row))
	out = append(out, byte(y>>8), byte(y))
	out = append(out, imageRowReserved[:]...)
	out = append(out, 0x01)
	out = append(out, row...)
	return out
}

// ImageRowPayloads is a convenience wrapper applying ImageRowPayload to
// every row in order.
func ImageRowPayloads(rows [][]byte) [][]byte {
	out := make([][]byte, len(rows))
	for y, row := range rows {
		out[y] = ImageRowPayload(y, row)
	}
	return out
}
