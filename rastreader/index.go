package rastreader

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ctessum/geom"
	"github.com/terrascope/geometry"
	"github.com/terrascope/proj4go"
	"gopkg.in/yaml.v3"

	perr "github.com/prl900/dc_wms/errors"
	"github.com/prl900/dc_wms/geobox"
	"github.com/prl900/dc_wms/tile"
)

type BandInfo struct {
	Object string  `json:"object" yaml:"object"`
	DType  string  `json:"dtype" yaml:"dtype"`
	NoData float32 `json:"no_data" yaml:"no_data"`
	MinVal float32 `json:"min_value" yaml:"min_value"`
	MaxVal float32 `json:"max_value" yaml:"max_value"`
}

// Record describes one archived dataset.
type Record struct {
	ID           string              `json:"id" yaml:"id"`
	Product      string              `json:"product" yaml:"product"`
	Time         time.Time           `json:"time" yaml:"time"`
	Proj4        string              `json:"proj4" yaml:"proj4"`
	GeoTransform []float64           `json:"geotransform" yaml:"geotransform"`
	XSize        int                 `json:"x_size" yaml:"x_size"`
	YSize        int                 `json:"y_size" yaml:"y_size"`
	Footprint    [][2]float64        `json:"footprint,omitempty" yaml:"footprint,omitempty"`
	Tile         *TileRef            `json:"tile,omitempty" yaml:"tile,omitempty"`
	Bands        map[string]BandInfo `json:"bands" yaml:"bands"`
}

func (r *Record) resolve() error {
	if r.ID == "" || r.Product == "" {
		return perr.InvalidArgf("dataset record needs an id and a product")
	}
	if r.XSize <= 0 || r.YSize <= 0 {
		return perr.InvalidArgf("dataset %s has size %dx%d", r.ID, r.XSize, r.YSize)
	}
	if r.Tile != nil {
		g, err := gridFor(r.Tile.Grid)
		if err != nil {
			return perr.WithOp(err, "dataset "+r.ID)
		}
		if r.Proj4 == "" {
			r.Proj4 = g.Proj4()
		}
		if len(r.GeoTransform) == 0 {
			bb := g.Bounds(*r.Tile)
			r.GeoTransform = []float64{bb.Min.X, (bb.Max.X - bb.Min.X) / float64(r.XSize), 0, bb.Max.Y, 0, -(bb.Max.Y - bb.Min.Y) / float64(r.YSize)}
		}
	}
	if r.Proj4 == "" {
		return perr.InvalidArgf("dataset %s has no proj4", r.ID)
	}
	if _, err := proj4go.NewProjection(r.Proj4); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "dataset %s has unsupported proj4 %q", r.ID, r.Proj4)
	}
	if len(r.GeoTransform) != 6 {
		return perr.InvalidArgf("dataset %s geotransform needs 6 values, has %d", r.ID, len(r.GeoTransform))
	}
	if len(r.Bands) == 0 {
		return perr.InvalidArgf("dataset %s has no bands", r.ID)
	}
	for name, b := range r.Bands {
		if b.Object == "" {
			return perr.InvalidArgf("dataset %s band %s has no object", r.ID, name)
		}
		if _, err := sampleSize(b.DType); err != nil {
			return perr.WithOp(err, "dataset "+r.ID)
		}
	}
	if n := len(r.Footprint); n != 0 && n < 3 {
		return perr.InvalidArgf("dataset %s footprint has %d vertices", r.ID, n)
	}
	return nil
}

// bbox is the envelope of the dataset's pixel grid in its native CRS.
func (r *Record) bbox() geometry.BoundingBox {
	gt := r.GeoTransform
	w, h := float64(r.XSize), float64(r.YSize)
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range [][2]float64{{0, 0}, {w, 0}, {w, h}, {0, h}} {
		x := gt[0] + c[0]*gt[1] + c[1]*gt[2]
		y := gt[3] + c[0]*gt[4] + c[1]*gt[5]
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	return geometry.BBox(minX, minY, maxX, maxY)
}

func (r *Record) coverage() proj4go.Coverage {
	return proj4go.Coverage{BoundingBox: r.bbox(), Proj4: r.Proj4}
}

// footprint is the valid data outline, defaulting to the grid envelope.
func (r *Record) footprint() geom.Polygon {
	if len(r.Footprint) == 0 {
		bb := r.bbox()
		return geobox.Rect(bb.Min.X, bb.Min.Y, bb.Max.X, bb.Max.Y)
	}
	ring := make(geom.Path, len(r.Footprint))
	for i, p := range r.Footprint {
		ring[i] = geom.Point{X: p[0], Y: p[1]}
	}
	return geom.Polygon{ring}
}

func (r *Record) dataset() tile.Dataset {
	bands := make([]string, 0, len(r.Bands))
	for b := range r.Bands {
		bands = append(bands, b)
	}
	sort.Strings(bands)
	return tile.Dataset{ID: r.ID, Product: r.Product, Time: r.Time, Footprint: r.footprint(), CRS: r.Proj4, Bands: bands}
}

// Index is an in memory dataset index keyed by id and by product.
type Index struct {
	records   map[string]*Record
	byProduct map[string][]*Record
}

// NewIndex validates records and indexes them.
func NewIndex(records []Record) (*Index, error) {
	idx := &Index{records: map[string]*Record{}, byProduct: map[string][]*Record{}}
	for i := range records {
		r := records[i]
		if err := r.resolve(); err != nil {
			return nil, err
		}
		if _, dup := idx.records[r.ID]; dup {
			return nil, perr.InvalidArgf("dataset %s indexed twice", r.ID)
		}
		idx.records[r.ID] = &r
		idx.byProduct[r.Product] = append(idx.byProduct[r.Product], &r)
	}
	for _, rs := range idx.byProduct {
		sort.SliceStable(rs, func(i, j int) bool { return rs[i].Time.Before(rs[j].Time) })
	}
	return idx, nil
}

// ReadIndex loads dataset records from a JSON or YAML file.
func ReadIndex(fileName string) (*Index, error) {
	bytes, err := os.ReadFile(fileName)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "Error reading index file %s", fileName)
	}
	var records []Record
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(bytes, &records)
	default:
		err = json.Unmarshal(bytes, &records)
	}
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "Error parsing index file %s", fileName)
	}
	return NewIndex(records)
}

// Len is the number of indexed datasets.
func (idx *Index) Len() int { return len(idx.records) }

// Record returns the record with the given id.
func (idx *Index) Record(id string) (*Record, bool) {
	r, ok := idx.records[id]
	return r, ok
}

// Dates lists the distinct acquisition days (YYYY-MM-DD, UTC) of product.
func (idx *Index) Dates(product string) []string {
	var dates []string
	seen := map[string]bool{}
	for _, r := range idx.byProduct[product] {
		d := r.Time.UTC().Format("2006-01-02")
		if !seen[d] {
			seen[d] = true
			dates = append(dates, d)
		}
	}
	return dates
}
