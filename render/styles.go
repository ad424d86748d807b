package render

import (
	"image"
	"image/color"
	"math"

	"github.com/terrascope/scimage"
	"github.com/terrascope/scimage/scicolor"

	perr "github.com/prl900/dc_wms/errors"
	"github.com/prl900/dc_wms/tile"
)

// RGB stretches three bands linearly from [Min, Max] to 8 bits. Invalid
// pixels are transparent.
type RGB struct {
	Red, Green, Blue string
	Min, Max         float32
}

// Bands lists the source bands the transform reads.
func (s RGB) Bands() []string { return []string{s.Red, s.Green, s.Blue} }

// Apply implements BandTransform.
func (s RGB) Apply(img *tile.BandImage) (image.Image, error) {
	r, g, b := img.Bands[s.Red], img.Bands[s.Green], img.Bands[s.Blue]
	if r == nil || g == nil || b == nil {
		return nil, perr.InvalidArgf("rgb style needs bands %s, %s, %s", s.Red, s.Green, s.Blue)
	}
	if s.Max <= s.Min {
		return nil, perr.InvalidArgf("rgb style range [%v, %v] is empty", s.Min, s.Max)
	}

	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			if img.Invalid.Pix[y*img.Width+x] {
				continue
			}
			out.SetNRGBA(x, y, color.NRGBA{
				R: stretch(r.Pix[y*r.Stride+x], s.Min, s.Max),
				G: stretch(g.Pix[y*g.Stride+x], s.Min, s.Max),
				B: stretch(b.Pix[y*b.Stride+x], s.Min, s.Max),
				A: 0xff,
			})
		}
	}
	return out, nil
}

func stretch(v, lo, hi float32) uint8 {
	f := (v - lo) / (hi - lo) * 255
	switch {
	case math.IsNaN(float64(f)) || f <= 0:
		return 0
	case f >= 255:
		return 255
	}
	return uint8(f + 0.5)
}

// Ramp colours one band through a gradient palette between Min and Max.
type Ramp struct {
	Band     string
	Min, Max float32
	Palette  []color.NRGBA
}

// Bands lists the source bands the transform reads.
func (s Ramp) Bands() []string { return []string{s.Band} }

// Apply implements BandTransform.
func (s Ramp) Apply(img *tile.BandImage) (image.Image, error) {
	band := img.Bands[s.Band]
	if band == nil {
		return nil, perr.InvalidArgf("ramp style needs band %s", s.Band)
	}
	values := make([]float32, img.Width*img.Height)
	for y := 0; y < img.Height; y++ {
		copy(values[y*img.Width:(y+1)*img.Width], band.Pix[y*band.Stride:y*band.Stride+img.Width])
	}
	return s.paint(values, img)
}

func (s Ramp) paint(values []float32, img *tile.BandImage) (*image.Paletted, error) {
	if len(s.Palette) < 2 {
		return nil, perr.InvalidArgf("ramp style needs at least two palette colours")
	}
	nodata := float32(math.Inf(-1))
	for i := range values {
		if img.Invalid.Pix[i] || math.IsNaN(float64(values[i])) {
			values[i] = nodata
		}
	}
	gray := &scimage.GrayF32{Pix: values, Stride: img.Width, Rect: image.Rect(0, 0, img.Width, img.Height), Min: s.Min, Max: s.Max, NoData: nodata}
	return gray.AsPaletted(scicolor.GradientNRGBAPalette(s.Palette)), nil
}

// NormalisedDifference colours (A-B)/(A+B) through a ramp over [-1, 1] unless
// the ramp sets its own range.
type NormalisedDifference struct {
	A, B string
	Ramp Ramp
}

// Bands lists the source bands the transform reads.
func (s NormalisedDifference) Bands() []string { return []string{s.A, s.B} }

// Apply implements BandTransform.
func (s NormalisedDifference) Apply(img *tile.BandImage) (image.Image, error) {
	a, b := img.Bands[s.A], img.Bands[s.B]
	if a == nil || b == nil {
		return nil, perr.InvalidArgf("normalised difference style needs bands %s, %s", s.A, s.B)
	}
	ramp := s.Ramp
	if ramp.Max <= ramp.Min {
		ramp.Min, ramp.Max = -1, 1
	}
	values := NormalisedDifferenceValues(img, s.A, s.B)
	return ramp.paint(values, img)
}

// NormalisedDifferenceValues computes (A-B)/(A+B) per pixel, row major.
// Pixels where A+B is zero are NaN.
func NormalisedDifferenceValues(img *tile.BandImage, a, b string) []float32 {
	ba, bb := img.Bands[a], img.Bands[b]
	out := make([]float32, img.Width*img.Height)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			va, vb := ba.Pix[y*ba.Stride+x], bb.Pix[y*bb.Stride+x]
			sum := va + vb
			if sum == 0 {
				out[y*img.Width+x] = float32(math.NaN())
				continue
			}
			out[y*img.Width+x] = (va - vb) / sum
		}
	}
	return out
}
