package geobox

import (
	"math"

	perr "github.com/prl900/dc_wms/errors"
)

// Affine is a pixel to world transform in GDAL geotransform order:
//
//	x = a[0] + col*a[1] + row*a[2]
//	y = a[3] + col*a[4] + row*a[5]
type Affine [6]float64

// Apply maps a pixel position to world coordinates.
func (a Affine) Apply(col, row float64) (x, y float64) {
	return a[0] + col*a[1] + row*a[2], a[3] + col*a[4] + row*a[5]
}

// Det is the determinant of the linear part.
func (a Affine) Det() float64 {
	return a[1]*a[5] - a[2]*a[4]
}

// Invert returns the world to pixel transform.
func (a Affine) Invert() (Affine, error) {
	for _, v := range a {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Affine{}, perr.InvalidGeometryf("transform %v is not finite", [6]float64(a))
		}
	}
	det := a.Det()
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return Affine{}, perr.InvalidGeometryf("transform %v is not invertible", [6]float64(a))
	}

	ia, ib := a[5]/det, -a[2]/det
	id, ie := -a[4]/det, a[1]/det

	return Affine{
		-(ia*a[0] + ib*a[3]), ia, ib,
		-(id*a[0] + ie*a[3]), id, ie,
	}, nil
}
