package tile

import (
	"context"
	"time"

	"github.com/ctessum/geom"
	"github.com/terrascope/geometry"

	perr "github.com/prl900/dc_wms/errors"
	"github.com/prl900/dc_wms/geobox"
)

const (
	testCRS    = geobox.WebMerc
	testNoData = float32(-9999)
)

// pixelFunc gives the value of a band at a grid position.
type pixelFunc func(x, y int) float32

func constant(v float32) pixelFunc { return func(int, int) float32 { return v } }

type fakeDataset struct {
	ds     Dataset
	bounds [4]float64
	values map[string]pixelFunc
}

// fakeArchive serves synthetic rectangles and records every Load call.
type fakeArchive struct {
	datasets map[string]fakeDataset
	loads    [][]string
	loadErr  error
	badShape bool
	onLoad   func(n int)
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{datasets: map[string]fakeDataset{}}
}

func day(n int) time.Time { return time.Date(2020, time.January, n, 0, 0, 0, 0, time.UTC) }

func (f *fakeArchive) add(id, product string, t time.Time, bounds [4]float64, values map[string]pixelFunc) Dataset {
	ds := Dataset{
		ID:        id,
		Product:   product,
		Time:      t,
		Footprint: geobox.Rect(bounds[0], bounds[1], bounds[2], bounds[3]),
		CRS:       testCRS,
	}
	for b := range values {
		ds.Bands = append(ds.Bands, b)
	}
	f.datasets[id] = fakeDataset{ds: ds, bounds: bounds, values: values}
	return ds
}

func (f *fakeArchive) Search(_ context.Context, product string, window geom.Polygon, crs string, start, end time.Time) ([]Dataset, error) {
	var out []Dataset
	for _, d := range f.datasets {
		if d.ds.Product != product || d.ds.Time.Before(start) || !d.ds.Time.Before(end) {
			continue
		}
		out = append(out, d.ds)
	}
	SortByTime(out)
	return out, nil
}

func (f *fakeArchive) Load(_ context.Context, ds []Dataset, gb *geobox.GeoBox, bands []string) (*BandImage, error) {
	ids := make([]string, len(ds))
	for i, d := range ds {
		ids[i] = d.ID
	}
	f.loads = append(f.loads, ids)
	if f.onLoad != nil {
		f.onLoad(len(f.loads))
	}
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	w, h := gb.Width, gb.Height
	if f.badShape {
		w++
	}
	img := NewBandImage(w, h, bands, testNoData)
	img.Invalid = Mask{}
	for y := 0; y < gb.Height; y++ {
		for x := 0; x < gb.Width; x++ {
			cx, cy := gb.Transform.Apply(float64(x)+0.5, float64(y)+0.5)
			for _, b := range bands {
				for _, d := range ds {
					fd := f.datasets[d.ID]
					if cx < fd.bounds[0] || cx > fd.bounds[2] || cy < fd.bounds[1] || cy > fd.bounds[3] {
						continue
					}
					fn, ok := fd.values[b]
					if !ok {
						continue
					}
					if v := fn(x, y); v != testNoData {
						img.Bands[b].Pix[y*img.Bands[b].Stride+x] = v
						break
					}
				}
			}
		}
	}
	return img, nil
}

func (f *fakeArchive) loadedIDs() []string {
	var out []string
	for _, l := range f.loads {
		out = append(out, l...)
	}
	return out
}

// testBox is a 10x10 grid over [0,10]x[0,10] with unit pixels.
func testBox() *geobox.GeoBox {
	gb, err := geobox.FromBBox(geometry.BBox(0, 0, 10, 10), 10, 10, testCRS)
	if err != nil {
		panic(err)
	}
	return gb
}

var errBoom = perr.New(perr.ErrorCodeUnknown, "boom")
