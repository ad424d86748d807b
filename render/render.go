// Package render turns a composite into display imagery.
package render

import (
	"image"
	"image/png"
	"io"

	"github.com/prl900/dc_wms/tile"
)

// BandTransform maps the bands of a composite to a display image. It is
// configured per style.
type BandTransform interface {
	// Bands lists the source bands the transform reads.
	Bands() []string
	Apply(img *tile.BandImage) (image.Image, error)
}

// EmptyImage is the placeholder served when no data covers a request:
// a single band, 1x1, all zero image.
func EmptyImage() *image.Gray {
	return image.NewGray(image.Rect(0, 0, 1, 1))
}

// Render applies style to res. An empty result yields EmptyImage.
func Render(res tile.Result, style BandTransform) (image.Image, error) {
	if res.IsEmpty() {
		return EmptyImage(), nil
	}
	return style.Apply(res.Image())
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	return enc.Encode(w, img)
}
