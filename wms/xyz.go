package wms

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/project"
	"github.com/terrascope/geometry"

	perr "github.com/prl900/dc_wms/errors"
	"github.com/prl900/dc_wms/geobox"
	"github.com/prl900/dc_wms/logger"
)

const (
	xyzTileSize = 256
	xyzMaxZoom  = 24
)

// xyzBBox returns the Web Mercator bounds of slippy map tile z/x/y.
func xyzBBox(z, x, y uint32) geometry.BoundingBox {
	b := maptile.New(x, y, maptile.Zoom(z)).Bound()
	sw := project.WGS84.ToMercator(b.Min)
	ne := project.WGS84.ToMercator(b.Max)
	return geometry.BBox(sw[0], sw[1], ne[0], ne[1])
}

func parseTileCoords(r *http.Request) (z, x, y uint32, err error) {
	var v [3]uint64
	for i, name := range []string{"z", "x", "y"} {
		v[i], err = strconv.ParseUint(chi.URLParam(r, name), 10, 32)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid tile %s: %q", name, chi.URLParam(r, name))
		}
	}
	if v[0] > xyzMaxZoom {
		return 0, 0, 0, fmt.Errorf("zoom %d above %d", v[0], xyzMaxZoom)
	}
	if n := uint64(1) << v[0]; v[1] >= n || v[2] >= n {
		return 0, 0, 0, fmt.Errorf("tile %d/%d/%d out of range", v[0], v[1], v[2])
	}
	return uint32(v[0]), uint32(v[1]), uint32(v[2]), nil
}

// handleXYZ serves /tiles/{layer}/{z}/{x}/{y}.png with optional style and
// time query parameters.
func (s *Service) handleXYZ(w http.ResponseWriter, r *http.Request) {
	log := logger.C(r.Context(), s.log)

	layer, err := s.layers.Layer(chi.URLParam(r, "layer"))
	if err != nil {
		http.Error(w, fmt.Sprintf("Layer not found: %v", err), perr.HTTPStatus(err))
		return
	}
	z, x, y, err := parseTileCoords(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("Malformed tile request: %v", err), http.StatusBadRequest)
		return
	}

	args := lowerArgs(r.URL.RawQuery)
	style, err := layer.Style(args["styles"])
	if err != nil {
		http.Error(w, fmt.Sprintf("Malformed tile request: %v", err), http.StatusBadRequest)
		return
	}
	t, err := parseTime(layer, args["time"])
	if err != nil {
		http.Error(w, fmt.Sprintf("Malformed tile request: %v", err), http.StatusBadRequest)
		return
	}

	bbox := xyzBBox(z, x, y)
	if err := s.checkArea(bbox, geobox.WebMerc); err != nil {
		e := asException(err)
		http.Error(w, e.Msg, e.Status)
		return
	}
	gb, err := geobox.FromBBox(bbox, xyzTileSize, xyzTileSize, geobox.WebMerc)
	if err != nil {
		http.Error(w, fmt.Sprintf("Malformed tile request: %v", err), http.StatusBadRequest)
		return
	}

	if err := s.writeTile(w, r, &mapRequest{layer: layer, style: style, gb: gb, time: t}); err != nil {
		e := asException(err)
		log.Error().Err(err).Str("layer", layer.Name).Msg("tile failed")
		http.Error(w, e.Msg, e.Status)
	}
}
