package raster

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/makeworld-the-better-one/dither/v2"
	"golang.org/x/image/draw"
)

// DitherFunc converts a continuous-tone image to a pure black/white
// image, optionally with an explicit gamma correction (0 selects each
// function's own default gamma). Applying one before EncodeRows softens
// banding on photographs; line art and text print fine without it.
type DitherFunc func(img image.Image, gamma float64) image.Image

// DefaultGamma instructs a DitherFunc to use its own built-in default
// rather than an explicit caller-supplied gamma.
const DefaultGamma = 0.0

func diffusionDither(matrix dither.ErrorDiffusionMatrix, defaultGamma float64) DitherFunc {
	return func(img image.Image, gamma float64) image.Image {
		if gamma == DefaultGamma {
			gamma = defaultGamma
		}
		dithered := image.NewRGBA(img.Bounds())
		d := dither.NewDitherer([]color.Color{color.Black, color.White})
		d.Matrix = matrix
		d.Draw(dithered, dithered.Bounds(), imaging.AdjustGamma(img, gamma), image.Point{})
		return dithered
	}
}

func patternDither(matrix dither.PixelMapper, defaultGamma float64) DitherFunc {
	return func(img image.Image, gamma float64) image.Image {
		if gamma == DefaultGamma {
			gamma = defaultGamma
		}
		dithered := image.NewRGBA(img.Bounds())
		d := dither.NewDitherer([]color.Color{color.Black, color.White})
		d.Mapper = matrix
		d.Draw(dithered, dithered.Bounds(), imaging.AdjustGamma(img, gamma), image.Point{})
		return dithered
	}
}

var (
	// DAtkinson applies Atkinson error diffusion dithering.
	DAtkinson = diffusionDither(dither.Atkinson, 3.0)
	// DStucki applies Stucki error diffusion dithering.
	DStucki = diffusionDither(dither.Stucki, 3.5)
	// DBayer applies an 8x8 Bayer ordered dither.
	DBayer = patternDither(dither.Bayer(8, 8, 1.0), 3.5)
)

// DFloydSteinberg applies Floyd-Steinberg error diffusion dithering. It
// uses the standard library's implementation rather than dither/v2's,
// since draw.FloydSteinberg already operates directly on a paletted
// destination.
func DFloydSteinberg(img image.Image, gamma float64) image.Image {
	const defaultGamma = 1.5
	if gamma == DefaultGamma {
		gamma = defaultGamma
	}
	adjusted := imaging.AdjustGamma(img, gamma)
	dithered := image.NewPaletted(img.Bounds(), []color.Color{color.Black, color.White})
	draw.FloydSteinberg.Draw(dithered, dithered.Bounds(), adjusted, image.Point{})
	return dithered
}
