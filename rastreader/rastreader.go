// Package rastreader serves archived raster datasets described by an index
// of records whose pixels live in a blob store.
package rastreader

import (
	"image"
	"sync"
	"time"

	"github.com/ctessum/geom"
	"github.com/rs/zerolog"
	"github.com/terrascope/raster"
	"github.com/terrascope/scimage"
	"golang.org/x/net/context"

	perr "github.com/prl900/dc_wms/errors"
	"github.com/prl900/dc_wms/geobox"
	"github.com/prl900/dc_wms/tile"
)

// maxParallelWarps bounds the records warped at once for one band.
const maxParallelWarps = 4

// Archive implements tile.Archive over an Index and a BlobStore.
type Archive struct {
	idx   *Index
	store BlobStore
	log   zerolog.Logger
}

var _ tile.Archive = (*Archive)(nil)

// NewArchive returns an archive reading the pixels of idx from store.
func NewArchive(idx *Index, store BlobStore, log zerolog.Logger) *Archive {
	return &Archive{idx: idx, store: store, log: log}
}

// Search implements tile.Searcher. A dataset matches when its acquisition
// time falls in [start, end) and the envelope of its footprint, taken in
// crs, overlaps the envelope of window.
func (a *Archive) Search(ctx context.Context, product string, window geom.Polygon, crs string, start, end time.Time) ([]tile.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wb := window.Bounds()
	var out []tile.Dataset
	for _, r := range a.idx.byProduct[product] {
		if r.Time.Before(start) || !r.Time.Before(end) {
			continue
		}
		ds := r.dataset()
		fp, err := ds.FootprintIn(crs)
		if err != nil {
			return nil, err
		}
		if len(fp) == 0 || !fp.Bounds().Overlaps(wb) {
			continue
		}
		out = append(out, ds)
	}
	a.log.Debug().Str("product", product).Time("start", start).Time("end", end).Int("datasets", len(out)).Msg("search")
	return out, nil
}

// Load implements tile.Loader.
func (a *Archive) Load(ctx context.Context, datasets []tile.Dataset, gb *geobox.GeoBox, bands []string) (*tile.BandImage, error) {
	records := make([]*Record, len(datasets))
	for i, ds := range datasets {
		r, ok := a.idx.Record(ds.ID)
		if !ok {
			return nil, perr.LoadFailuref("Error loading tile: dataset %s not indexed", ds.ID)
		}
		for _, b := range bands {
			if _, ok := r.Bands[b]; !ok {
				return nil, perr.LoadFailuref("Error loading tile: dataset %s has no band %s", ds.ID, b)
			}
		}
		records[i] = r
	}

	out := &tile.BandImage{Width: gb.Width, Height: gb.Height, Bands: make(map[string]*scimage.GrayF32, len(bands))}
	for _, b := range bands {
		var nodata float32
		if len(records) > 0 {
			nodata = records[0].Bands[b].NoData
		}
		band, err := a.loadBand(ctx, records, b, gb, nodata)
		if err != nil {
			return nil, err
		}
		out.Bands[b] = band
	}
	return out, nil
}

// loadBand warps band of every record onto gb, at most maxParallelWarps at
// a time, then mosaics them so that earlier records win where they overlap.
func (a *Archive) loadBand(ctx context.Context, records []*Record, band string, gb *geobox.GeoBox, nodata float32) (*scimage.GrayF32, error) {
	warped := make([]*scimage.GrayF32, len(records))
	errs := make([]error, len(records))

	sem := make(chan struct{}, maxParallelWarps)
	var wg sync.WaitGroup
	for i, r := range records {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, r *Record) {
			defer func() {
				<-sem
				wg.Done()
			}()
			warped[i], errs[i] = a.warpRecord(ctx, r, band, gb, nodata)
		}(i, r)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	out := tile.NewBand(gb.Width, gb.Height, nodata)
	for _, w := range warped {
		for i, v := range w.Pix {
			if out.Pix[i] == nodata && v != nodata {
				out.Pix[i] = v
			}
		}
	}
	return out, nil
}

func (a *Archive) warpRecord(ctx context.Context, r *Record, band string, gb *geobox.GeoBox, nodata float32) (*scimage.GrayF32, error) {
	info := r.Bands[band]
	data, err := readObject(ctx, a.store, info.Object)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeLoadFailure, "Error loading dataset %s band %s", r.ID, band)
	}
	pix, err := decodePixels(data, info.DType, r.XSize*r.YSize)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeLoadFailure, "Error decoding dataset %s band %s", r.ID, band)
	}
	if info.NoData != nodata {
		for i, v := range pix {
			if v == info.NoData {
				pix[i] = nodata
			}
		}
	}

	im := &scimage.GrayF32{Pix: pix, Stride: r.XSize, Rect: image.Rect(0, 0, r.XSize, r.YSize), Min: info.MinVal, Max: info.MaxVal, NoData: nodata}
	rIn := &raster.Raster{Image: im, Coverage: r.coverage()}

	dst := tile.NewBand(gb.Width, gb.Height, nodata)
	dst.Min, dst.Max = info.MinVal, info.MaxVal
	rOut := &raster.Raster{Image: dst, Coverage: gb.Coverage()}
	if err := rOut.Warp(rIn); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeLoadFailure, "Error warping dataset %s band %s", r.ID, band)
	}

	a.log.Debug().Str("dataset", r.ID).Str("band", band).Str("object", info.Object).Msg("warped")
	return dst, nil
}
