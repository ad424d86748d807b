package rastreader

import (
	"github.com/terrascope/geometry"

	perr "github.com/prl900/dc_wms/errors"
	"github.com/prl900/dc_wms/geobox"
)

const (
	albersProj = "+proj=aea +lat_1=-18 +lat_2=-36 +lat_0=0 +lon_0=132 +x_0=0 +y_0=0 +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs"
	sinuProj   = "+proj=sinu +lon_0=0 +x_0=0 +y_0=0 +a=6371007.181 +b=6371007.181 +units=m +no_defs "

	albersTileSize = 1e4
	xExtentModis   = 1111950.519666
	yExtentModis   = 1111950.519667
	modisSeqs      = 6
)

// TileRef places a dataset on one of the known product tilings instead of
// giving its geotransform explicitly.
type TileRef struct {
	Grid  string `json:"grid" yaml:"grid"`
	X     int    `json:"x" yaml:"x"`
	Y     int    `json:"y" yaml:"y"`
	Level int    `json:"level" yaml:"level"`
	SeqX  int    `json:"seq_x" yaml:"seq_x"`
	SeqY  int    `json:"seq_y" yaml:"seq_y"`
}

// Grid is a regular tiling in a native projection.
type Grid interface {
	Proj4() string
	Bounds(t TileRef) geometry.BoundingBox
}

// albersGrid is the DEA tiling: X and Y count 10 km units of the tile's
// upper left corner and each level doubles the tile size.
type albersGrid struct{}

func (albersGrid) Proj4() string { return albersProj }

func (albersGrid) Bounds(t TileRef) geometry.BoundingBox {
	step := float64(int(1) << uint(t.Level))
	x, y := float64(t.X), float64(t.Y)
	return geometry.BBox(x*albersTileSize, (y-step)*albersTileSize, (x+step)*albersTileSize, y*albersTileSize)
}

// modisGrid is the MODIS sinusoidal grid: X and Y are the h and v tile
// numbers, each split into 6x6 sub tiles addressed by SeqX and SeqY.
type modisGrid struct{}

func (modisGrid) Proj4() string { return sinuProj }

func (modisGrid) Bounds(t TileRef) geometry.BoundingBox {
	x0 := float64(t.X-18)*xExtentModis + float64(t.SeqX)*(xExtentModis/modisSeqs)
	x1 := x0 + xExtentModis/modisSeqs
	y1 := float64(9-t.Y)*yExtentModis - float64(t.SeqY)*(yExtentModis/modisSeqs)
	y0 := y1 - yExtentModis/modisSeqs
	return geometry.BBox(x0, y0, x1, y1)
}

// awraGrid is the single continental AWRA grid.
type awraGrid struct{}

func (awraGrid) Proj4() string { return geobox.Geographic }

func (awraGrid) Bounds(TileRef) geometry.BoundingBox { return geometry.BBox(112, -44, 154, -10) }

func gridFor(name string) (Grid, error) {
	switch name {
	case "albers":
		return albersGrid{}, nil
	case "modis":
		return modisGrid{}, nil
	case "awra":
		return awraGrid{}, nil
	}
	return nil, perr.InvalidArgf("unknown grid %q", name)
}
