package tile

import (
	"context"
	"time"

	perr "github.com/prl900/dc_wms/errors"
	"github.com/prl900/dc_wms/geobox"
)

// LatestTile composites the most recent datasets of a product acquired
// within [Time, Time+Period).
type LatestTile struct {
	Product      string
	Measurements []string
	Time         time.Time
	// Period defaults to one day.
	Period time.Duration
}

// Bands lists the bands the composite carries.
func (t *LatestTile) Bands() []string { return t.Measurements }

func (t *LatestTile) period() time.Duration {
	if t.Period <= 0 {
		return 24 * time.Hour
	}
	return t.Period
}

// Datasets searches the archive and selects the datasets covering gb.
func (t *LatestTile) Datasets(ctx context.Context, s Searcher, gb *geobox.GeoBox) ([]Dataset, error) {
	extent := gb.Extent()
	cands, err := s.Search(ctx, t.Product, extent, gb.CRS, t.Time, t.Time.Add(t.period()))
	if err != nil {
		return nil, err
	}
	SortByTime(cands)
	return SelectCoverage(cands, extent, gb.CRS)
}

// Compose loads datasets, newest first as returned by SelectCoverage, and
// fills every pixel from the first dataset that has a value for it.
func (t *LatestTile) Compose(ctx context.Context, l Loader, datasets []Dataset, gb *geobox.GeoBox) (Result, error) {
	if len(datasets) == 0 {
		return Empty, nil
	}

	var out *BandImage
	for _, ds := range datasets {
		img, err := load(ctx, l, []Dataset{ds}, gb, t.Measurements)
		if err != nil {
			return Empty, err
		}
		invalid := img.noDataMask(t.Measurements)
		if out == nil {
			img.Invalid = invalid
			out = img
			continue
		}
		out.merge(img, invalid, t.Measurements)
	}
	return ImageResult(out), nil
}

// Generate runs Datasets then Compose.
func (t *LatestTile) Generate(ctx context.Context, a Archive, gb *geobox.GeoBox) (Result, error) {
	ds, err := t.Datasets(ctx, a, gb)
	if err != nil {
		return Empty, err
	}
	return t.Compose(ctx, a, ds, gb)
}

func load(ctx context.Context, l Loader, ds []Dataset, gb *geobox.GeoBox, bands []string) (*BandImage, error) {
	img, err := l.Load(ctx, ds, gb, bands)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeLoadFailure) {
			return nil, err
		}
		return nil, perr.Wrapf(err, perr.ErrorCodeLoadFailure, "Error loading %d datasets", len(ds))
	}
	if err := img.check(gb, bands); err != nil {
		return nil, err
	}
	return img, nil
}
