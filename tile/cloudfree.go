package tile

import (
	"context"
	"math"
	"time"

	"github.com/ctessum/geom"
	"github.com/terrascope/scimage"

	perr "github.com/prl900/dc_wms/errors"
	"github.com/prl900/dc_wms/geobox"
)

const (
	// SkipInvalidFraction discards a time slice whose mask flags at least this
	// share of the grid before its bands are loaded.
	SkipInvalidFraction = 0.95
	// GoodEnoughInvalidFraction stops the mosaic once no more than this share
	// of the composite is still invalid.
	GoodEnoughInvalidFraction = 0.05
)

// MaskDecoder reports whether a raw quality value marks the pixel unusable.
type MaskDecoder func(v float32) (invalid bool)

// CloudFreeMosaic fuses the time slices of a product acquired within
// [Start, End), newest first, replacing pixels flagged by the mask product
// with older valid observations.
type CloudFreeMosaic struct {
	Product      string
	MaskProduct  string
	Measurements []string
	MaskBand     string
	Decode       MaskDecoder
	Start        time.Time
	End          time.Time
}

// Bands lists the bands the composite carries.
func (c *CloudFreeMosaic) Bands() []string { return c.Measurements }

// Datasets returns the product and mask datasets touching gb.
func (c *CloudFreeMosaic) Datasets(ctx context.Context, s Searcher, gb *geobox.GeoBox) (products, masks []Dataset, err error) {
	extent := gb.Extent()
	if products, err = c.search(ctx, s, c.Product, extent, gb.CRS); err != nil {
		return nil, nil, err
	}
	if masks, err = c.search(ctx, s, c.MaskProduct, extent, gb.CRS); err != nil {
		return nil, nil, err
	}
	return products, masks, nil
}

func (c *CloudFreeMosaic) search(ctx context.Context, s Searcher, product string, extent geom.Polygon, crs string) ([]Dataset, error) {
	cands, err := s.Search(ctx, product, extent, crs, c.Start, c.End)
	if err != nil {
		return nil, err
	}
	out := cands[:0:0]
	for _, ds := range cands {
		fp, err := ds.FootprintIn(crs)
		if err != nil {
			return nil, err
		}
		if geobox.Intersects(fp, extent) {
			out = append(out, ds)
		}
	}
	SortByTime(out)
	return out, nil
}

type timeSlice struct {
	time     time.Time
	products []Dataset
	masks    []Dataset
}

// groupByTime splits datasets sorted oldest first into runs sharing an
// acquisition time.
func groupByTime(ds []Dataset) [][]Dataset {
	var groups [][]Dataset
	for _, d := range ds {
		if n := len(groups); n > 0 && groups[n-1][0].Time.Equal(d.Time) {
			groups[n-1] = append(groups[n-1], d)
			continue
		}
		groups = append(groups, []Dataset{d})
	}
	return groups
}

func pairSlices(products, masks []Dataset) ([]timeSlice, error) {
	products = append([]Dataset(nil), products...)
	masks = append([]Dataset(nil), masks...)
	SortByTime(products)
	SortByTime(masks)

	pg, mg := groupByTime(products), groupByTime(masks)
	if len(pg) != len(mg) {
		return nil, perr.Inconsistentf("%d product time slices but %d mask time slices", len(pg), len(mg))
	}
	slices := make([]timeSlice, len(pg))
	for i := range pg {
		pt, mt := pg[i][0].Time, mg[i][0].Time
		if !pt.Equal(mt) {
			return nil, perr.Inconsistentf("product slice at %s has no mask (mask slice at %s)", pt.Format(time.RFC3339), mt.Format(time.RFC3339))
		}
		slices[i] = timeSlice{time: pt, products: pg[i], masks: mg[i]}
	}
	return slices, nil
}

// decode flags pixels whose quality value is NoData, NaN or rejected by dec.
func decode(band *scimage.GrayF32, width, height int, dec MaskDecoder) Mask {
	m := NewMask(width, height, false)
	for y := 0; y < height; y++ {
		row := band.Pix[y*band.Stride : y*band.Stride+width]
		for x, v := range row {
			if v == band.NoData || math.IsNaN(float64(v)) || (dec != nil && dec(v)) {
				m.Pix[y*width+x] = true
			}
		}
	}
	return m
}

// Compose walks the paired slices newest to oldest. Already filled pixels are
// never overwritten by older data. Cancellation is checked before each slice;
// when ctx is done the composite built so far is returned with ctx.Err().
func (c *CloudFreeMosaic) Compose(ctx context.Context, l Loader, products, masks []Dataset, gb *geobox.GeoBox) (Result, error) {
	slices, err := pairSlices(products, masks)
	if err != nil {
		return Empty, err
	}

	var out *BandImage
	for i := len(slices) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			if out == nil {
				return Empty, err
			}
			return ImageResult(out), err
		}
		s := slices[i]

		mimg, err := load(ctx, l, s.masks, gb, []string{c.MaskBand})
		if err != nil {
			return Empty, err
		}
		invalid := decode(mimg.Bands[c.MaskBand], gb.Width, gb.Height, c.Decode)
		if mimg.Invalid.Pix != nil {
			invalid.Or(mimg.Invalid)
		}
		if invalid.Fraction() >= SkipInvalidFraction {
			continue
		}

		img, err := load(ctx, l, s.products, gb, c.Measurements)
		if err != nil {
			return Empty, err
		}
		invalid.Or(img.noDataMask(c.Measurements))

		if out == nil {
			img.Invalid = invalid
			out = img
		} else {
			out.merge(img, invalid, c.Measurements)
		}

		if out.Invalid.Fraction() <= GoodEnoughInvalidFraction {
			break
		}
	}

	if out == nil {
		return Empty, nil
	}
	return ImageResult(out), nil
}

// Generate runs Datasets then Compose.
func (c *CloudFreeMosaic) Generate(ctx context.Context, a Archive, gb *geobox.GeoBox) (Result, error) {
	products, masks, err := c.Datasets(ctx, a, gb)
	if err != nil {
		return Empty, err
	}
	return c.Compose(ctx, a, products, masks, gb)
}
