package tile

import (
	"image"
	"math"

	"github.com/terrascope/scimage"

	perr "github.com/prl900/dc_wms/errors"
	"github.com/prl900/dc_wms/geobox"
)

// BandImage is a set of named float32 bands aligned to a GeoBox grid plus the
// per-pixel invalid mask. A BandImage belongs to a single request.
type BandImage struct {
	Width   int
	Height  int
	Bands   map[string]*scimage.GrayF32
	Invalid Mask
}

// NewBandImage allocates bands filled with nodata and an all-invalid mask.
func NewBandImage(width, height int, bands []string, nodata float32) *BandImage {
	b := &BandImage{Width: width, Height: height, Bands: make(map[string]*scimage.GrayF32, len(bands)), Invalid: NewMask(width, height, true)}
	for _, name := range bands {
		b.Bands[name] = NewBand(width, height, nodata)
	}
	return b
}

// NewBand returns a width x height float32 band filled with nodata.
func NewBand(width, height int, nodata float32) *scimage.GrayF32 {
	pix := make([]float32, width*height)
	for i := range pix {
		pix[i] = nodata
	}
	return &scimage.GrayF32{Pix: pix, Stride: width, Rect: image.Rect(0, 0, width, height), NoData: nodata}
}

// Value returns band name at column x, row y.
func (b *BandImage) Value(name string, x, y int) float32 {
	band := b.Bands[name]
	return band.Pix[y*band.Stride+x]
}

// check verifies the image was loaded onto gb and carries every band.
func (b *BandImage) check(gb *geobox.GeoBox, bands []string) error {
	if b == nil {
		return perr.LoadFailuref("Error loading tile: archive returned no image")
	}
	if b.Width != gb.Width || b.Height != gb.Height {
		return perr.LoadFailuref("Error loading tile: image is %dx%d, grid is %dx%d", b.Width, b.Height, gb.Width, gb.Height)
	}
	for _, name := range bands {
		band, ok := b.Bands[name]
		if !ok || band == nil {
			return perr.LoadFailuref("Error loading tile: band %q missing", name)
		}
		r := band.Rect
		if r.Min != (image.Point{}) || r.Dx() != gb.Width || r.Dy() != gb.Height || band.Stride < gb.Width || len(band.Pix) < (gb.Height-1)*band.Stride+gb.Width {
			return perr.LoadFailuref("Error loading tile: band %q has shape %v, grid is %dx%d", name, r, gb.Width, gb.Height)
		}
	}
	if b.Invalid.Pix != nil && !b.Invalid.fits(gb.Width, gb.Height) {
		return perr.LoadFailuref("Error loading tile: mask is %dx%d with %d pixels, grid is %dx%d", b.Invalid.Width, b.Invalid.Height, len(b.Invalid.Pix), gb.Width, gb.Height)
	}
	return nil
}

// noDataMask flags pixels where any of bands holds its NoData value or NaN,
// together with any pixel the loader already flagged.
func (b *BandImage) noDataMask(bands []string) Mask {
	m := NewMask(b.Width, b.Height, false)
	if b.Invalid.Pix != nil {
		m = b.Invalid.Clone()
	}
	for _, name := range bands {
		band := b.Bands[name]
		for y := 0; y < b.Height; y++ {
			row := band.Pix[y*band.Stride : y*band.Stride+b.Width]
			for x, v := range row {
				if v == band.NoData || math.IsNaN(float64(v)) {
					m.Pix[y*b.Width+x] = true
				}
			}
		}
	}
	return m
}

// fill copies src pixels of bands into b wherever where is true.
func (b *BandImage) fill(src *BandImage, where []bool, bands []string) {
	for _, name := range bands {
		dst, s := b.Bands[name], src.Bands[name]
		for y := 0; y < b.Height; y++ {
			for x := 0; x < b.Width; x++ {
				if where[y*b.Width+x] {
					dst.Pix[y*dst.Stride+x] = s.Pix[y*s.Stride+x]
				}
			}
		}
	}
}

// merge fills the pixels still invalid in b with the valid pixels of src,
// whose invalid mask is srcInvalid, and narrows b's mask accordingly.
func (b *BandImage) merge(src *BandImage, srcInvalid Mask, bands []string) {
	fillable := make([]bool, len(b.Invalid.Pix))
	for i, inv := range b.Invalid.Pix {
		fillable[i] = inv && !srcInvalid.Pix[i]
	}
	b.fill(src, fillable, bands)
	b.Invalid.And(srcInvalid)
}
