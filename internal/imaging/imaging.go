// Package imaging decodes fetched image bytes and normalizes them to an
// opaque 3-channel form suitable for JPEG persistence.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Decode parses raw bytes into an image. The format name of the matched
// decoder is returned alongside.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// Normalize converts an image to an opaque 3-channel form. Paletted images
// and images carrying an alpha channel are composited onto a white
// background; images that are already plain 3-channel color pass through
// unchanged.
func Normalize(img image.Image) image.Image {
	if passesThrough(img) {
		return img
	}

	bounds := img.Bounds()
	flat := image.NewRGBA(bounds)
	draw.Draw(flat, bounds, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, bounds, img, bounds.Min, draw.Over)
	return flat
}

// passesThrough reports whether img already is plain 3-channel color: JPEG's
// native YCbCr, or a fully opaque RGBA raster. Everything else, paletted
// rasters included, gets flattened.
func passesThrough(img image.Image) bool {
	switch m := img.(type) {
	case *image.YCbCr:
		return true
	case *image.RGBA:
		return m.Opaque()
	case *image.NRGBA:
		return m.Opaque()
	default:
		return false
	}
}
