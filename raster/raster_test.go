package raster

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/Junsang-Mun/niimbot-web/catalog"
)

func TestImageRowPayload_Width16RowSeven(t *testing.T) {
	// row bits 1010000010100000 -> bytes A0 A0
	row := []byte{0xA0, 0xA0}
	got := ImageRowPayload(7, row)
	want := []byte{0x00, 0x07, 0x00, 0x00, 0x00, 0x01, 0xA0, 0xA0}
	if !bytes.Equal(got, want) {
		t.Fatalf("ImageRowPayload = % x, want % x", got, want)
	}
}

func TestRowBytes(t *testing.T) {
	cases := map[int]int{0: 0, 1: 1, 8: 1, 9: 2, 16: 2, 384: 48}
	for width, want := range cases {
		if got := RowBytes(width); got != want {
			t.Errorf("RowBytes(%d) = %d, want %d", width, got, want)
		}
	}
}

func TestBitPacking_MatchesScenarioRow(t *testing.T) {
	// Build a 16px-wide image whose pixels match bit pattern
	// 1010000010100000 (1 = black/dark, 0 = white/light), and confirm
	// EncodeRows packs it to A0 A0 under the fixed threshold.
	bits := "1010000010100000"
	img := image.NewRGBA(image.Rect(0, 0, 16, 1))
	for x, b := range bits {
		c := color.RGBA{255, 255, 255, 255}
		if b == '1' {
			c = color.RGBA{0, 0, 0, 255}
		}
		img.Set(x, 0, c)
	}
	enc := &Encoder{Model: catalog.B21, Rotation: Rotate0, Mode: ThresholdFixed}
	rows, err := enc.EncodeRows(img)
	if err != nil {
		t.Fatalf("EncodeRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	want := []byte{0xA0, 0xA0}
	if !bytes.Equal(rows[0], want) {
		t.Fatalf("row = % x, want % x", rows[0], want)
	}
}

func TestThreshold_MonochromeMapping(t *testing.T) {
	white := color.RGBA{255, 255, 255, 255}
	black := color.RGBA{0, 0, 0, 255}
	gray200 := color.RGBA{200, 200, 200, 255}

	fixed := &Encoder{Mode: ThresholdFixed}
	if bitFor(fixed, white) != 0 {
		t.Errorf("white at fixed threshold: want bit 0")
	}
	if bitFor(fixed, black) != 1 {
		t.Errorf("black at fixed threshold: want bit 1")
	}
	if bitFor(fixed, gray200) != 0 {
		t.Errorf("gray200 at fixed threshold 128: want bit 0")
	}

	scaled := &Encoder{Mode: ThresholdDensityScaled, Density: 5}
	if bitFor(scaled, gray200) != 0 {
		t.Errorf("gray200 at density-scaled threshold (56): want bit 0")
	}
}

// bitFor rasterizes a single pixel and reports whether its bit was set.
func bitFor(enc *Encoder, c color.Color) int {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, c)
	rows, err := enc.EncodeRows(img)
	if err != nil {
		panic(err)
	}
	if rows[0][0]&0x80 != 0 {
		return 1
	}
	return 0
}

func TestEncodeRows_RowCountInvariant(t *testing.T) {
	const height = 40
	img := image.NewRGBA(image.Rect(0, 0, 384, height))
	enc := &Encoder{Model: catalog.B21, Mode: ThresholdFixed}
	rows, err := enc.EncodeRows(img)
	if err != nil {
		t.Fatalf("EncodeRows: %v", err)
	}
	if len(rows) != height {
		t.Fatalf("got %d rows, want %d", len(rows), height)
	}
}

func TestEncodeRows_WidthExceedsModel(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 97, 1))
	enc := &Encoder{Model: catalog.B1, Mode: ThresholdFixed}
	_, err := enc.EncodeRows(img)
	if _, ok := err.(*catalog.ErrWidthExceedsModel); !ok {
		t.Fatalf("err = %v, want *catalog.ErrWidthExceedsModel", err)
	}
}

func TestIsDocument_BimodalHistogramDetected(t *testing.T) {
	// A page of pure black text on pure white: every pixel falls below
	// 50 or at/above 200, so the dark+light fraction is 100%.
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			c := color.RGBA{255, 255, 255, 255}
			if (x+y)%2 == 0 {
				c = color.RGBA{0, 0, 0, 255}
			}
			img.Set(x, y, c)
		}
	}
	if !IsDocument(img, 0, 0) {
		t.Errorf("IsDocument = false, want true for a pure black/white checkerboard")
	}
}

func TestIsDocument_MidtoneSpreadIsNotDocument(t *testing.T) {
	// A smooth gray gradient spans the midtones densely, so the
	// dark+light fraction stays well under the 0.85 cutoff.
	img := image.NewGray(image.Rect(0, 0, 256, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 256; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x)})
		}
	}
	if IsDocument(img, 0, 0) {
		t.Errorf("IsDocument = true, want false for a full midtone gradient")
	}
}

func TestCropToFit_WiderImageClipsAtLeftEdge(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 4))
	for x := 0; x < 20; x++ {
		c := color.RGBA{255, 255, 255, 255}
		if x < 10 {
			c = color.RGBA{0, 0, 0, 255}
		}
		for y := 0; y < 4; y++ {
			img.Set(x, y, c)
		}
	}
	cropped := CropToFit(img, 10)
	if cropped.Bounds().Dx() != 10 || cropped.Bounds().Dy() != 4 {
		t.Fatalf("cropped bounds = %v, want 10x4", cropped.Bounds())
	}
	if gray := colorToGray(cropped.At(0, 0)); gray != 0 {
		t.Errorf("cropped(0,0) gray = %d, want 0 (from the black left half)", gray)
	}
}

func TestCropToFit_NarrowerImagePadsInsteadOfCropping(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	fitted := CropToFit(img, 10)
	if fitted.Bounds().Dx() != 10 {
		t.Fatalf("fitted width = %d, want 10 (padded, not cropped)", fitted.Bounds().Dx())
	}
}
