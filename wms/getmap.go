package wms

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/terrascope/geometry"
	"github.com/terrascope/proj4go"

	"github.com/prl900/dc_wms/catalog"
	perr "github.com/prl900/dc_wms/errors"
	"github.com/prl900/dc_wms/geobox"
	"github.com/prl900/dc_wms/logger"
	"github.com/prl900/dc_wms/render"
)

const dateLayout = "2006-01-02"

// mapRequest is a validated GetMap request.
type mapRequest struct {
	layer *catalog.Layer
	style *catalog.Style
	gb    *geobox.GeoBox
	time  time.Time
}

func (s *Service) getMap(w http.ResponseWriter, r *http.Request, args map[string]string) error {
	req, err := s.parseGetMap(args)
	if err != nil {
		return err
	}
	return s.writeTile(w, r, req)
}

func (s *Service) parseGetMap(args map[string]string) (*mapRequest, error) {
	version := args["version"]
	if version == "" {
		return nil, exception("", "Version parameter", "No WMS version supplied")
	}
	if version != "1.1.1" && version != "1.3.0" {
		return nil, exception("", "Version parameter", "Unsupported WMS version: %s", version)
	}

	crsID := args["crs"]
	if version == "1.1.1" {
		crsID = args["srs"]
	}
	crs, ok := publishedCRSs[crsID]
	if !ok {
		return nil, exception(CodeInvalidCRS, "CRS parameter", "Unsupported Coordinate Reference System: %s", crsID)
	}

	layers := strings.Split(args["layers"], ",")
	styles := strings.Split(args["styles"], ",")
	if len(layers) != 1 || len(styles) != 1 {
		return nil, exception("", "", "Multi-layer GetMap requests not supported")
	}
	if layers[0] == "" {
		return nil, exception("", "", "No layer specified in GetMap request")
	}
	layer, err := s.layers.Layer(layers[0])
	if err != nil {
		return nil, exception(CodeLayerNotDefined, "Layer parameter", "Layer %s is not defined", layers[0])
	}
	style, err := layer.Style(styles[0])
	if err != nil {
		return nil, exception(CodeStyleNotDefined, "Style parameter", "Style %s is not defined", styles[0])
	}

	format := strings.ToLower(args["format"])
	if format == "" {
		return nil, exception(CodeInvalidFormat, "Format parameter", "No image format specified")
	}
	if format != "image/png" {
		return nil, exception(CodeInvalidFormat, "Format parameter", "Image format %s is not supported", format)
	}

	gb, err := s.parseGeoBox(args, crs, swapsAxes(version, crsID))
	if err != nil {
		return nil, err
	}

	t, err := parseTime(layer, args["time"])
	if err != nil {
		return nil, err
	}
	return &mapRequest{layer: layer, style: style, gb: gb, time: t}, nil
}

func (s *Service) parseGeoBox(args map[string]string, crs string, swap bool) (*geobox.GeoBox, error) {
	width, err := strconv.Atoi(args["width"])
	if err != nil || width <= 0 {
		return nil, exception("", "Width parameter", "Malformed WMS GetMap request: invalid width %q", args["width"])
	}
	height, err := strconv.Atoi(args["height"])
	if err != nil || height <= 0 {
		return nil, exception("", "Height parameter", "Malformed WMS GetMap request: invalid height %q", args["height"])
	}
	if width > s.cfg.MaxWidth || height > s.cfg.MaxHeight {
		return nil, exception("", "Width parameter", "Requested size %dx%d exceeds %dx%d", width, height, s.cfg.MaxWidth, s.cfg.MaxHeight)
	}

	coords := strings.Split(args["bbox"], ",")
	if len(coords) != 4 {
		return nil, exception("", "BBox parameter", "Malformed WMS GetMap request: bbox needs 4 values")
	}
	pts := make([]float64, 4)
	for i, c := range coords {
		pts[i], err = strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return nil, exception("", "BBox parameter", "Malformed WMS GetMap request: %v", err)
		}
	}
	if swap {
		pts[0], pts[1], pts[2], pts[3] = pts[1], pts[0], pts[3], pts[2]
	}

	bbox := geometry.BBox(pts[0], pts[1], pts[2], pts[3])
	if err := s.checkArea(bbox, crs); err != nil {
		return nil, err
	}
	gb, err := geobox.FromBBox(bbox, width, height, crs)
	if err != nil {
		return nil, exception("", "BBox parameter", "Malformed WMS GetMap request: %v", err)
	}
	return gb, nil
}

// checkArea rejects requests whose extent, measured in Web Mercator, is
// larger than the configured limit.
func (s *Service) checkArea(bbox geometry.BoundingBox, crs string) error {
	if !geobox.SameCRS(crs, geobox.WebMerc) {
		cov := proj4go.Coverage{BoundingBox: bbox, Proj4: crs}
		covMerc, err := cov.Transform(geobox.WebMerc)
		if err != nil {
			return exception("", "BBox parameter", "Error reprojecting bbox: %v", err)
		}
		bbox = covMerc.BoundingBox
	}
	if a := bbox.Area(); a > s.cfg.MaxArea {
		return &Exception{Msg: "Too big area: " + strconv.FormatFloat(a, 'f', 0, 64), Locator: "BBox parameter", Status: http.StatusRequestEntityTooLarge}
	}
	return nil
}

// parseTime resolves the time parameter to a day advertised by layer. An
// absent value selects the latest advertised day.
func parseTime(layer *catalog.Layer, value string) (time.Time, error) {
	times := strings.Split(value, "/")
	if len(times) > 1 {
		return time.Time{}, exception(CodeInvalidDimensionValue, "Time parameter", "Selecting multiple time dimension values not supported")
	}
	day := times[0]
	if day == "" {
		if day = layer.LatestDate(); day == "" {
			return time.Time{}, exception(CodeMissingDimensionValue, "Time parameter", "Time dimension value not supplied")
		}
	}
	t, err := time.Parse(dateLayout, day)
	if err != nil || !layer.HasDate(day) {
		return time.Time{}, exception(CodeInvalidDimensionValue, "Time parameter", "Time dimension value '%s' not valid for this layer", day)
	}
	return t, nil
}

// writeTile composes, renders and writes the PNG for req.
func (s *Service) writeTile(w http.ResponseWriter, r *http.Request, req *mapRequest) error {
	body, err := s.renderTile(r.Context(), req)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", s.cfg.CacheControl)
	_, err = body.WriteTo(w)
	return err
}

func (s *Service) renderTile(ctx context.Context, req *mapRequest) (*bytes.Buffer, error) {
	gen, err := req.layer.Generator(req.style, req.time)
	if err != nil {
		return nil, err
	}
	tr, err := req.style.Transform()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := gen.Generate(ctx, s.archive, req.gb)
	if err != nil {
		return nil, perr.WithOp(err, "layer "+req.layer.Name)
	}
	logger.C(ctx, s.log).Debug().
		Str("layer", req.layer.Name).
		Str("style", req.style.Name).
		Str("time", req.time.Format(dateLayout)).
		Bool("empty", res.IsEmpty()).
		Dur("elapsed", time.Since(start)).
		Msg("tile composed")

	img, err := render.Render(res, tr)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := render.EncodePNG(&buf, img); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "Error PNG encoding tile")
	}
	return &buf, nil
}

// RenderPNG runs a GetMap request given as lower case WMS arguments and
// returns the encoded image.
func (s *Service) RenderPNG(ctx context.Context, args map[string]string) ([]byte, error) {
	req, err := s.parseGetMap(args)
	if err != nil {
		return nil, err
	}
	buf, err := s.renderTile(ctx, req)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
