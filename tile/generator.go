package tile

import (
	"context"

	"github.com/prl900/dc_wms/geobox"
)

// Result is either Empty or a composited image.
type Result struct {
	image *BandImage
}

// Empty is the result of a request no dataset could serve.
var Empty = Result{}

// ImageResult wraps a composite.
func ImageResult(b *BandImage) Result { return Result{image: b} }

// IsEmpty reports whether the result carries no data.
func (r Result) IsEmpty() bool { return r.image == nil }

// Image returns the composite, nil when empty.
func (r Result) Image() *BandImage { return r.image }

// Generator produces the composite for one GeoBox. The set of generators is
// closed: *LatestTile and *CloudFreeMosaic.
type Generator interface {
	Generate(ctx context.Context, a Archive, gb *geobox.GeoBox) (Result, error)
	// Bands lists the bands the composite carries.
	Bands() []string
	generator()
}

func (*LatestTile) generator()      {}
func (*CloudFreeMosaic) generator() {}
