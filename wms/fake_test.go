package wms

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ctessum/geom"
	"github.com/rs/zerolog"

	"github.com/prl900/dc_wms/catalog"
	perr "github.com/prl900/dc_wms/errors"
	"github.com/prl900/dc_wms/geobox"
	"github.com/prl900/dc_wms/tile"
)

// fakeArchive holds one world-wide dataset per product and day, every band
// a constant value.
type fakeArchive struct {
	datasets []tile.Dataset
	value    float32
	loadErr  error
	loads    int
}

func (f *fakeArchive) add(id, product string, t time.Time) {
	f.datasets = append(f.datasets, tile.Dataset{
		ID:        id,
		Product:   product,
		Time:      t,
		Footprint: geobox.Rect(-2e7, -2e7, 2e7, 2e7),
		CRS:       geobox.WebMerc,
	})
}

func (f *fakeArchive) Search(_ context.Context, product string, _ geom.Polygon, _ string, start, end time.Time) ([]tile.Dataset, error) {
	var out []tile.Dataset
	for _, d := range f.datasets {
		if d.Product == product && !d.Time.Before(start) && d.Time.Before(end) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeArchive) Load(_ context.Context, _ []tile.Dataset, gb *geobox.GeoBox, bands []string) (*tile.BandImage, error) {
	f.loads++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	img := tile.NewBandImage(gb.Width, gb.Height, bands, -1)
	img.Invalid = tile.Mask{}
	for _, b := range bands {
		for i := range img.Bands[b].Pix {
			img.Bands[b].Pix[i] = f.value
		}
	}
	return img, nil
}

const testLayers = `[
  {
    "name": "ls8_rgb",
    "title": "Landsat 8 <true colour>",
    "product": "ls8",
    "dates_iso8601": ["2020-01-05", "2020-01-01"],
    "bbox": [112, -44, 154, -10],
    "styles": [
      {"name": "simple_rgb", "title": "Simple RGB", "kind": "rgb", "components": ["red", "green", "blue"], "min_value": 0, "max_value": 100},
      {"name": "red_ramp", "kind": "ramp", "components": ["red"], "min_value": 0, "max_value": 100,
       "palette": [{"r": 0, "g": 0, "b": 0, "a": 255}, {"r": 255, "g": 0, "b": 0, "a": 255}]}
    ]
  },
  {
    "name": "void",
    "product": "nothing",
    "dates_iso8601": ["2020-01-01"],
    "styles": [{"name": "simple_rgb", "kind": "rgb", "components": ["red", "green", "blue"], "min_value": 0, "max_value": 100}]
  }
]`

func testService(t *testing.T) (*Service, *fakeArchive) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "layers.json")
	if err := os.WriteFile(path, []byte(testLayers), 0o644); err != nil {
		t.Fatal(err)
	}
	layers, err := catalog.ReadLayers(path)
	if err != nil {
		t.Fatal(err)
	}

	a := &fakeArchive{value: 50}
	a.add("ls8-1", "ls8", time.Date(2020, 1, 1, 2, 0, 0, 0, time.UTC))
	a.add("ls8-5", "ls8", time.Date(2020, 1, 5, 2, 0, 0, 0, time.UTC))

	log := zerolog.Nop()
	s, err := NewService(Config{Title: "Test & WMS", URL: "http://example.com/wms"}, layers, a, &log)
	if err != nil {
		t.Fatal(err)
	}
	return s, a
}

var errBoom = perr.New(perr.ErrorCodeUnknown, "boom")
