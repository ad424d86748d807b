// Package tile selects the archived datasets that cover a GeoBox and
// composites their pixels into a single multi-band image.
package tile

import (
	"context"
	"sort"
	"time"

	"github.com/ctessum/geom"

	"github.com/prl900/dc_wms/geobox"
)

// Dataset is one archived raster as returned by a Searcher. The footprint is
// expressed in the dataset's native CRS.
type Dataset struct {
	ID        string
	Product   string
	Time      time.Time
	Footprint geom.Polygon
	CRS       string
	Bands     []string
}

// FootprintIn returns the footprint reprojected to crs. The dataset itself is
// left untouched.
func (d Dataset) FootprintIn(crs string) (geom.Polygon, error) {
	return geobox.Reproject(d.Footprint, d.CRS, crs)
}

// Searcher answers spatio-temporal queries against the dataset index.
// Results are sorted by acquisition time, oldest first.
type Searcher interface {
	Search(ctx context.Context, product string, window geom.Polygon, crs string, start, end time.Time) ([]Dataset, error)
}

// Loader reads the named bands of datasets resampled onto gb. When several
// datasets are given, earlier ones take precedence where they overlap.
// Pixels without data hold each band's NoData value.
type Loader interface {
	Load(ctx context.Context, datasets []Dataset, gb *geobox.GeoBox, bands []string) (*BandImage, error)
}

// Archive is the full collaborator a Generator needs.
type Archive interface {
	Searcher
	Loader
}

// SortByTime orders datasets oldest first, keeping the relative order of
// datasets acquired at the same instant.
func SortByTime(ds []Dataset) {
	sort.SliceStable(ds, func(i, j int) bool { return ds[i].Time.Before(ds[j].Time) })
}
