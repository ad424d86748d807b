// Package geobox defines the output pixel grid of a tile request and the
// polygon predicates used to compare dataset footprints against it.
package geobox

import (
	"math"

	"github.com/ctessum/geom"
	"github.com/terrascope/geometry"
	"github.com/terrascope/proj4go"

	perr "github.com/prl900/dc_wms/errors"
)

const (
	WebMerc    = "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +nadgrids=@null +wktext  +no_defs"
	Geographic = "+proj=longlat +ellps=WGS84 +datum=WGS84 +no_defs"
)

// GeoBox is an immutable pixel grid: size, pixel to world transform and the
// proj4 definition of the world coordinates.
type GeoBox struct {
	Width     int
	Height    int
	Transform Affine
	CRS       string

	inverse Affine
}

// New validates and builds a GeoBox.
func New(width, height int, transform Affine, crs string) (*GeoBox, error) {
	if width <= 0 || height <= 0 {
		return nil, perr.InvalidGeometryf("grid size %dx%d must be positive", width, height)
	}
	inv, err := transform.Invert()
	if err != nil {
		return nil, err
	}
	return &GeoBox{Width: width, Height: height, Transform: transform, CRS: crs, inverse: inv}, nil
}

// FromBBox builds a north-up grid of width x height pixels over bbox.
func FromBBox(bbox geometry.BoundingBox, width, height int, crs string) (*GeoBox, error) {
	if width <= 0 || height <= 0 {
		return nil, perr.InvalidGeometryf("grid size %dx%d must be positive", width, height)
	}
	dx := (bbox.Max.X - bbox.Min.X) / float64(width)
	dy := (bbox.Max.Y - bbox.Min.Y) / float64(height)
	return New(width, height, Affine{bbox.Min.X, dx, 0, bbox.Max.Y, 0, -dy}, crs)
}

// Len is the number of pixels in the grid.
func (g *GeoBox) Len() int { return g.Width * g.Height }

// Resolution returns the pixel size along x and y in CRS units.
func (g *GeoBox) Resolution() (float64, float64) {
	return math.Hypot(g.Transform[1], g.Transform[4]), math.Hypot(g.Transform[2], g.Transform[5])
}

// Pixel maps world coordinates to fractional pixel coordinates.
func (g *GeoBox) Pixel(x, y float64) (col, row float64) {
	return g.inverse.Apply(x, y)
}

func (g *GeoBox) corners() []geom.Point {
	w, h := float64(g.Width), float64(g.Height)
	pix := [][2]float64{{0, h}, {w, h}, {w, 0}, {0, 0}}
	pts := make([]geom.Point, len(pix))
	for i, p := range pix {
		x, y := g.Transform.Apply(p[0], p[1])
		pts[i] = geom.Point{X: x, Y: y}
	}
	return pts
}

// Extent is the grid outline in the GeoBox CRS.
func (g *GeoBox) Extent() geom.Polygon {
	return geom.Polygon{geom.Path(g.corners())}
}

// BoundingBox is the axis aligned envelope of the grid.
func (g *GeoBox) BoundingBox() geometry.BoundingBox {
	pts := g.corners()
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := minX, minY
	for _, p := range pts[1:] {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	return geometry.BBox(minX, minY, maxX, maxY)
}

// Coverage is the grid extent as a raster coverage for warping.
func (g *GeoBox) Coverage() proj4go.Coverage {
	return proj4go.Coverage{BoundingBox: g.BoundingBox(), Proj4: g.CRS}
}
