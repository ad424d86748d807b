package tile

import (
	"github.com/ctessum/geom"

	"github.com/prl900/dc_wms/geobox"
)

// SelectCoverage picks, newest first, the datasets needed to cover window.
// candidates must be sorted oldest first; crs is the window's CRS. An empty
// result means nothing in the archive touches the window.
//
// The selection is greedy on recency: a dataset is kept only when it touches
// the window and adds area not already covered by newer datasets, and the
// scan stops as soon as the window is fully covered. A footprint that cannot
// be reprojected to crs fails the whole selection.
func SelectCoverage(candidates []Dataset, window geom.Polygon, crs string) ([]Dataset, error) {
	fps := make([]geom.Polygon, len(candidates))
	for i, ds := range candidates {
		fp, err := ds.FootprintIn(crs)
		if err != nil {
			return nil, err
		}
		fps[i] = fp
	}

	i := len(candidates) - 1
	for ; i >= 0; i-- {
		if geobox.Intersects(fps[i], window) {
			break
		}
	}
	if i < 0 {
		return nil, nil
	}

	selected := []Dataset{candidates[i]}
	covered := fps[i]

	for i--; i >= 0; i-- {
		if geobox.Contains(covered, window) {
			break
		}
		if geobox.Contains(covered, fps[i]) {
			continue
		}
		if geobox.Intersects(fps[i], window) {
			selected = append(selected, candidates[i])
			covered = geobox.Union(covered, fps[i])
		}
	}
	return selected, nil
}
