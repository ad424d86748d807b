package geobox

import (
	"math"
	"strings"

	"github.com/ctessum/geom"
	"github.com/terrascope/geometry"
	"github.com/terrascope/proj4go"

	perr "github.com/prl900/dc_wms/errors"
)

// containTolerance is the relative area slack allowed by Contains.
const containTolerance = 1e-9

// Rect returns the rectangle polygon with the given corners.
func Rect(minX, minY, maxX, maxY float64) geom.Polygon {
	return geom.Polygon{{
		{X: minX, Y: minY}, {X: maxX, Y: minY}, {X: maxX, Y: maxY}, {X: minX, Y: maxY},
	}}
}

// SameCRS reports whether two proj4 definitions are textually identical.
func SameCRS(a, b string) bool {
	return strings.Join(strings.Fields(a), " ") == strings.Join(strings.Fields(b), " ")
}

// Reproject returns a copy of p with every vertex transformed from one proj4
// definition to another. p is never modified.
func Reproject(p geom.Polygon, from, to string) (geom.Polygon, error) {
	out := make(geom.Polygon, len(p))
	for i, path := range p {
		if SameCRS(from, to) {
			out[i] = append(geom.Path(nil), path...)
			continue
		}
		pts := make([]geometry.Point, len(path))
		for j, v := range path {
			pts[j] = geometry.Point{X: v.X, Y: v.Y}
		}
		if err := proj4go.Inverse(from, pts); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeInvalidGeometry, "Error reprojecting footprint from %q", from)
		}
		if err := proj4go.Forwards(to, pts); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeInvalidGeometry, "Error reprojecting footprint to %q", to)
		}

		ring := make(geom.Path, len(pts))
		for j, v := range pts {
			ring[j] = geom.Point{X: v.X, Y: v.Y}
		}
		out[i] = ring
	}
	return out, nil
}

func area(p geom.Polygonal) float64 {
	if p == nil {
		return 0
	}
	return math.Abs(p.Area())
}

// polygonOf flattens the result of a polygon operation back to a Polygon.
func polygonOf(p geom.Polygonal) geom.Polygon {
	if p == nil {
		return nil
	}
	if poly, ok := p.(geom.Polygon); ok {
		return poly
	}
	var out geom.Polygon
	for _, q := range p.Polygons() {
		out = append(out, q...)
	}
	return out
}

// Intersects reports whether a and b share a region of positive area.
func Intersects(a, b geom.Polygon) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	if !a.Bounds().Overlaps(b.Bounds()) {
		return false
	}
	return area(a.Intersection(b)) > 0
}

// Contains reports whether inner lies entirely within outer.
func Contains(outer, inner geom.Polygon) bool {
	if len(inner) == 0 || len(outer) == 0 {
		return false
	}
	in := area(inner)
	if in == 0 {
		return false
	}
	if !outer.Bounds().Overlaps(inner.Bounds()) {
		return false
	}
	return area(outer.Intersection(inner)) >= in*(1-containTolerance)
}

// Union returns the region covered by a or b.
func Union(a, b geom.Polygon) geom.Polygon {
	switch {
	case len(a) == 0:
		return append(geom.Polygon(nil), b...)
	case len(b) == 0:
		return append(geom.Polygon(nil), a...)
	}
	return polygonOf(a.Union(b))
}
