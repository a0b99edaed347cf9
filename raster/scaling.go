package raster

import (
	"image"

	"golang.org/x/image/draw"
)

// ResizeToFit resizes img to targetWidth while preserving aspect ratio.
// If img is already narrower than or equal to targetWidth, it is placed
// unscaled on a white canvas of targetWidth in the upper-left corner
// rather than being upscaled — a label printer's raster must never
// invent detail that was not in the source image.
func ResizeToFit(img image.Image, targetWidth int) image.Image {
	var resized draw.Image
	if img.Bounds().Dx() <= targetWidth {
		targetHeight := img.Bounds().Dy()
		resized = image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
		draw.Draw(resized, resized.Bounds(), image.White, image.Point{}, draw.Src)
		draw.Copy(resized, image.Point{0, 0}, img, img.Bounds(), draw.Src, nil)
	} else {
		targetHeight := (img.Bounds().Dy() * targetWidth) / img.Bounds().Dx()
		resized = image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
		draw.CatmullRom.Scale(resized, resized.Bounds(), img, img.Bounds(), draw.Over, nil)
	}
	return resized
}

// CropToFit clips img to targetWidth instead of scaling it: images
// narrower than or equal to targetWidth are canvas-padded white exactly
// like ResizeToFit, but wider images are cropped at the left edge
// rather than shrunk, for callers who'd rather lose the right margin
// than blur fine detail through resampling.
func CropToFit(img image.Image, targetWidth int) image.Image {
	if img.Bounds().Dx() <= targetWidth {
		return ResizeToFit(img, targetWidth)
	}
	height := img.Bounds().Dy()
	cropped := image.NewRGBA(image.Rect(0, 0, targetWidth, height))
	srcRect := image.Rect(img.Bounds().Min.X, img.Bounds().Min.Y, img.Bounds().Min.X+targetWidth, img.Bounds().Min.Y+height)
	draw.Draw(cropped, cropped.Bounds(), img, srcRect.Min, draw.Src)
	return cropped
}

// ResizeCanvasY grows dst to newHeight, filling the added area white. If
// newHeight is already within dst's bounds, dst is returned unchanged —
// this never crops.
func ResizeCanvasY(dst *image.RGBA, newHeight int) *image.RGBA {
	if newHeight <= dst.Bounds().Dy() {
		return dst
	}
	newRect := image.Rect(0, 0, dst.Bounds().Dx(), newHeight)
	newImg := image.NewRGBA(newRect)
	draw.Draw(newImg, newRect, image.White, image.Point{}, draw.Src)
	draw.Draw(newImg, dst.Bounds(), dst, image.Point{}, draw.Src)
	return newImg
}
