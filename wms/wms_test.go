package wms

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	perr "github.com/prl900/dc_wms/errors"
)

func get(t *testing.T, s *Service, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	return rec
}

func getMapQuery(overrides map[string]string) string {
	v := url.Values{
		"service": {"WMS"},
		"request": {"GetMap"},
		"version": {"1.1.1"},
		"srs":     {"EPSG:3857"},
		"layers":  {"ls8_rgb"},
		"styles":  {""},
		"format":  {"image/png"},
		"bbox":    {"0,0,1000,1000"},
		"width":   {"16"},
		"height":  {"8"},
		"time":    {"2020-01-01"},
	}
	for k, val := range overrides {
		if val == "-" {
			v.Del(k)
			continue
		}
		v.Set(k, val)
	}
	return "/wms?" + v.Encode()
}

func TestLowerArgs(t *testing.T) {
	args := lowerArgs("REQUEST=GetMap&Layers=a&layers=b&bbox=1%2C2%2C3%2C4&empty=")
	if args["request"] != "GetMap" || args["layers"] != "b" || args["bbox"] != "1,2,3,4" {
		t.Errorf("args = %v", args)
	}
	if v, ok := args["empty"]; !ok || v != "" {
		t.Errorf("empty arg = %q, %v", v, ok)
	}
}

func TestGetCapabilities(t *testing.T) {
	s, _ := testService(t)
	rec := get(t, s, "/wms?SERVICE=WMS&REQUEST=GetCapabilities")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/xml" {
		t.Errorf("content type = %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"<Name>ls8_rgb</Name>",
		"<Name>void</Name>",
		"Landsat 8 &lt;true colour&gt;",
		"Test &amp; WMS",
		"2020-01-01,2020-01-05",
		`default="2020-01-05"`,
		"<CRS>EPSG:3857</CRS>",
		"<Name>red_ramp</Name>",
		"<westBoundLongitude>112</westBoundLongitude>",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("capabilities missing %q", want)
		}
	}

	rec = get(t, s, "/wms?request=GetCapabilities")
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "Invalid service") {
		t.Errorf("missing service: %d %s", rec.Code, rec.Body)
	}
}

func TestGetMap(t *testing.T) {
	s, a := testService(t)
	rec := get(t, s, getMapQuery(nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != DefaultCacheControl {
		t.Errorf("cache control = %q", cc)
	}
	if o := rec.Header().Get("Access-Control-Allow-Origin"); o != "*" {
		t.Errorf("cors = %q", o)
	}
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 8 {
		t.Errorf("image bounds = %v", b)
	}
	if a.loads != 1 {
		t.Errorf("loads = %d, want 1", a.loads)
	}
}

func TestGetMapVersions(t *testing.T) {
	s, _ := testService(t)

	rec := get(t, s, getMapQuery(map[string]string{"version": "1.3.0", "srs": "-", "crs": "EPSG:3857", "styles": "red_ramp"}))
	if rec.Code != http.StatusOK {
		t.Errorf("1.3.0: status = %d: %s", rec.Code, rec.Body)
	}

	// without a time the latest advertised day is served
	rec = get(t, s, getMapQuery(map[string]string{"time": "-"}))
	if rec.Code != http.StatusOK {
		t.Errorf("default time: status = %d: %s", rec.Code, rec.Body)
	}
}

func TestGetMapEmpty(t *testing.T) {
	s, a := testService(t)
	rec := get(t, s, getMapQuery(map[string]string{"layers": "void"}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 1 || b.Dy() != 1 {
		t.Errorf("placeholder bounds = %v", b)
	}
	if a.loads != 0 {
		t.Errorf("loads = %d, want 0", a.loads)
	}
}

func TestGetMapExceptions(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]string
		status    int
		code      string
		msg       string
	}{
		{"no version", map[string]string{"version": "-"}, 400, "", "No WMS version supplied"},
		{"bad version", map[string]string{"version": "1.0.0"}, 400, "", "Unsupported WMS version"},
		{"bad crs", map[string]string{"srs": "EPSG:3577"}, 400, CodeInvalidCRS, "EPSG:3577"},
		{"1.3.0 ignores srs", map[string]string{"version": "1.3.0"}, 400, CodeInvalidCRS, ""},
		{"multi layer", map[string]string{"layers": "ls8_rgb,void"}, 400, "", "Multi-layer"},
		{"no layer", map[string]string{"layers": ""}, 400, "", "No layer specified"},
		{"unknown layer", map[string]string{"layers": "modis"}, 400, CodeLayerNotDefined, "Layer modis is not defined"},
		{"unknown style", map[string]string{"styles": "fancy"}, 400, CodeStyleNotDefined, "Style fancy"},
		{"no format", map[string]string{"format": "-"}, 400, CodeInvalidFormat, "No image format"},
		{"jpeg", map[string]string{"format": "image/jpeg"}, 400, CodeInvalidFormat, "image/jpeg"},
		{"bad width", map[string]string{"width": "abc"}, 400, "", "invalid width"},
		{"zero height", map[string]string{"height": "0"}, 400, "", "invalid height"},
		{"huge size", map[string]string{"width": "10000"}, 400, "", "exceeds"},
		{"short bbox", map[string]string{"bbox": "0,0,1"}, 400, "", "bbox needs 4 values"},
		{"bad bbox", map[string]string{"bbox": "0,0,x,1"}, 400, "", "Malformed"},
		{"degenerate bbox", map[string]string{"bbox": "0,0,0,1000"}, 400, "", "Malformed"},
		{"too big", map[string]string{"bbox": "0,0,1e6,1e6"}, 413, "", "Too big area"},
		{"time range", map[string]string{"time": "2020-01-01/2020-01-05"}, 400, CodeInvalidDimensionValue, "multiple"},
		{"unknown time", map[string]string{"time": "2020-01-02"}, 400, CodeInvalidDimensionValue, "2020-01-02"},
		{"bad time", map[string]string{"time": "yesterday"}, 400, CodeInvalidDimensionValue, "yesterday"},
		{"feature info", map[string]string{"request": "GetFeatureInfo"}, 400, CodeOperationNotSupported, "GetFeatureInfo"},
		{"unknown op", map[string]string{"request": "GetLegend"}, 400, CodeOperationNotSupported, "GetLegend"},
		{"no op", map[string]string{"request": "-"}, 400, "", "No operation specified"},
	}

	s, _ := testService(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, s, getMapQuery(tt.overrides))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/xml" {
				t.Errorf("content type = %q", ct)
			}
			body := rec.Body.String()
			if !strings.Contains(body, "<ServiceExceptionReport") {
				t.Errorf("body is not an exception report: %s", body)
			}
			if tt.code != "" && !strings.Contains(body, `code="`+tt.code+`"`) {
				t.Errorf("body missing code %s: %s", tt.code, body)
			}
			if !strings.Contains(body, tt.msg) {
				t.Errorf("body missing %q: %s", tt.msg, body)
			}
		})
	}
}

func TestGetMapLoadFailure(t *testing.T) {
	s, a := testService(t)
	a.loadErr = errBoom

	rec := get(t, s, getMapQuery(nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), "Unexpected server error") {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestAsException(t *testing.T) {
	if e := asException(perr.InvalidGeometryf("bad")); e.Status != http.StatusBadRequest {
		t.Errorf("invalid geometry status = %d", e.Status)
	}
	if e := asException(errBoom); e.Status != http.StatusInternalServerError || e.Code != "" {
		t.Errorf("unknown error = %+v", e)
	}
	if e := asException(perr.NotFoundf("gone")); e.Status != http.StatusNotFound || e.Msg != "gone" {
		t.Errorf("not found = %+v", e)
	}
	cause := errors.New("open /data/a/red.bin: no such file")
	e := asException(perr.WithOp(perr.Wrap(cause, perr.ErrorCodeLoadFailure, "Error loading dataset a"), "getmap"))
	if e.Status != http.StatusInternalServerError || e.Msg != "Unexpected server error: Error loading dataset a" {
		t.Errorf("load failure = %+v", e)
	}
	orig := exception(CodeInvalidCRS, "CRS parameter", "nope")
	if e := asException(perr.Wrap(orig, perr.ErrorCodeUnknown, "outer")); e != orig {
		t.Errorf("wrapped exception = %+v", e)
	}
}

func TestXYZBBox(t *testing.T) {
	const half = 20037508.342789244
	bb := xyzBBox(1, 0, 0)
	near := func(a, b float64) bool { return math.Abs(a-b) < 1e-3 }
	if !near(bb.Min.X, -half) || !near(bb.Max.X, 0) || !near(bb.Min.Y, 0) || !near(bb.Max.Y, half) {
		t.Errorf("tile 1/0/0 = %v", bb)
	}
}

func TestXYZ(t *testing.T) {
	s, _ := testService(t)

	rec := get(t, s, "/tiles/ls8_rgb/10/900/600.png?time=2020-01-05")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != xyzTileSize || b.Dy() != xyzTileSize {
		t.Errorf("tile bounds = %v", b)
	}

	tests := []struct {
		path   string
		status int
	}{
		{"/tiles/modis/10/900/600.png", http.StatusNotFound},
		{"/tiles/ls8_rgb/10/1024/600.png", http.StatusBadRequest},
		{"/tiles/ls8_rgb/10/x/600.png", http.StatusBadRequest},
		{"/tiles/ls8_rgb/30/0/0.png", http.StatusBadRequest},
		{"/tiles/ls8_rgb/10/900/600.png?time=2019-01-01", http.StatusBadRequest},
		{"/tiles/ls8_rgb/10/900/600.png?styles=fancy", http.StatusBadRequest},
		{"/tiles/ls8_rgb/0/0/0.png", http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		if rec := get(t, s, tt.path); rec.Code != tt.status {
			t.Errorf("%s: status = %d, want %d: %s", tt.path, rec.Code, tt.status, rec.Body)
		}
	}
}

func TestHealth(t *testing.T) {
	s, _ := testService(t)
	if rec := get(t, s, "/health"); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("health = %d %q", rec.Code, rec.Body)
	}
}

func TestRenderPNG(t *testing.T) {
	s, _ := testService(t)
	args := lowerArgs(strings.TrimPrefix(getMapQuery(map[string]string{"styles": "red_ramp"}), "/wms?"))

	body, err := s.RenderPNG(context.Background(), args)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := png.Decode(bytes.NewReader(body)); err != nil {
		t.Fatal(err)
	}

	args["layers"] = "modis"
	var e *Exception
	if _, err := s.RenderPNG(context.Background(), args); !errors.As(err, &e) || e.Code != CodeLayerNotDefined {
		t.Errorf("unknown layer err = %v", err)
	}
}
