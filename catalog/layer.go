// Package catalog holds the layer and style definitions served by the WMS.
package catalog

import (
	"encoding/json"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	perr "github.com/prl900/dc_wms/errors"
	"github.com/prl900/dc_wms/render"
	"github.com/prl900/dc_wms/tile"
)

const (
	ModeLatest    = "latest"
	ModeCloudFree = "cloudfree"

	dateLayout        = "2006-01-02"
	defaultWindowDays = 30
)

type Style struct {
	Name     string `json:"name" yaml:"name"`
	Title    string `json:"title" yaml:"title"`
	Abstract string `json:"abstract" yaml:"abstract"`
	// Kind is one of rgb, ramp or ndi.
	Kind       string        `json:"kind" yaml:"kind"`
	Components []string      `json:"components" yaml:"components"`
	MinVal     float32       `json:"min_value" yaml:"min_value"`
	MaxVal     float32       `json:"max_value" yaml:"max_value"`
	Palette    []color.NRGBA `json:"palette" yaml:"palette"`
}

type Flag struct {
	Bits []int `json:"bits" yaml:"bits"`
	// Values maps the decoded integer, as a string, to its name.
	Values map[string]string `json:"values" yaml:"values"`
}

type Layer struct {
	Name         string    `json:"name" yaml:"name"`
	Title        string    `json:"title" yaml:"title"`
	Abstract     string    `json:"abstract" yaml:"abstract"`
	Product      string    `json:"product" yaml:"product"`
	Mode         string    `json:"mode" yaml:"mode"`
	Dates        []string  `json:"dates_iso8601" yaml:"dates_iso8601"`
	WindowDays   int       `json:"time_window_days" yaml:"time_window_days"`
	BBox         []float64 `json:"bbox" yaml:"bbox"`
	DefaultStyle string    `json:"default_style" yaml:"default_style"`
	Styles       []Style   `json:"styles" yaml:"styles"`

	MaskProduct string            `json:"mask_product" yaml:"mask_product"`
	MaskBand    string            `json:"mask_band" yaml:"mask_band"`
	MaskFlags   map[string]string `json:"mask_flags" yaml:"mask_flags"`
	Flags       map[string]Flag   `json:"flags_definition" yaml:"flags_definition"`
}

type Layers map[string]*Layer

// ReadLayers loads a layer catalog from a JSON or YAML file.
func ReadLayers(fileName string) (Layers, error) {
	lyrs := Layers{}

	bytes, err := os.ReadFile(fileName)
	if err != nil {
		return lyrs, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "Error reading layers file %s", fileName)
	}

	var list []*Layer
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(bytes, &list)
	default:
		err = json.Unmarshal(bytes, &list)
	}
	if err != nil {
		return lyrs, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "Error parsing layers file %s", fileName)
	}

	for _, l := range list {
		if err := l.validate(); err != nil {
			return lyrs, err
		}
		if _, dup := lyrs[l.Name]; dup {
			return lyrs, perr.InvalidArgf("layer %s defined twice", l.Name)
		}
		lyrs[l.Name] = l
	}
	return lyrs, nil
}

// Names returns the layer names in lexical order.
func (ls Layers) Names() []string {
	names := make([]string, 0, len(ls))
	for n := range ls {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Layer looks a layer up by name.
func (ls Layers) Layer(name string) (*Layer, error) {
	l, ok := ls[name]
	if !ok {
		return nil, perr.NotFoundf("layer %s is not defined", name)
	}
	return l, nil
}

func (l *Layer) validate() error {
	if l.Name == "" || l.Product == "" {
		return perr.InvalidArgf("layer needs a name and a product")
	}
	if len(l.BBox) != 0 && len(l.BBox) != 4 {
		return perr.InvalidArgf("layer %s bbox needs 4 values, has %d", l.Name, len(l.BBox))
	}
	switch l.Mode {
	case "":
		l.Mode = ModeLatest
	case ModeLatest:
	case ModeCloudFree:
		if l.MaskProduct == "" || l.MaskBand == "" {
			return perr.InvalidArgf("cloudfree layer %s needs mask_product and mask_band", l.Name)
		}
		if _, err := l.MaskDecoder(); err != nil {
			return err
		}
	default:
		return perr.InvalidArgf("layer %s has unknown mode %q", l.Name, l.Mode)
	}
	if len(l.Styles) == 0 {
		return perr.InvalidArgf("layer %s has no styles", l.Name)
	}
	for i := range l.Styles {
		if _, err := l.Styles[i].Transform(); err != nil {
			return perr.WithOp(err, "layer "+l.Name)
		}
	}
	if l.DefaultStyle == "" {
		l.DefaultStyle = l.Styles[0].Name
	}
	if _, err := l.Style(l.DefaultStyle); err != nil {
		return err
	}
	for _, d := range l.Dates {
		if _, err := time.Parse(dateLayout, d); err != nil {
			return perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "layer %s has an invalid date %q", l.Name, d)
		}
	}
	sort.Strings(l.Dates)
	return nil
}

// Style returns the named style, or the default style for an empty name.
func (l *Layer) Style(name string) (*Style, error) {
	if name == "" {
		name = l.DefaultStyle
	}
	for i := range l.Styles {
		if l.Styles[i].Name == name {
			return &l.Styles[i], nil
		}
	}
	return nil, perr.NotFoundf("style %s is not defined", name)
}

// HasDate reports whether the layer advertises date (YYYY-MM-DD).
func (l *Layer) HasDate(date string) bool {
	i := sort.SearchStrings(l.Dates, date)
	return i < len(l.Dates) && l.Dates[i] == date
}

// LatestDate is the most recent advertised date, empty if none.
func (l *Layer) LatestDate() string {
	if len(l.Dates) == 0 {
		return ""
	}
	return l.Dates[len(l.Dates)-1]
}

// SetDates replaces the advertised dates.
func (l *Layer) SetDates(dates []string) {
	l.Dates = append([]string(nil), dates...)
	sort.Strings(l.Dates)
}

// Generator builds the tile generator for style at day t.
func (l *Layer) Generator(style *Style, t time.Time) (tile.Generator, error) {
	tr, err := style.Transform()
	if err != nil {
		return nil, err
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)

	switch l.Mode {
	case ModeCloudFree:
		dec, err := l.MaskDecoder()
		if err != nil {
			return nil, err
		}
		window := l.WindowDays
		if window <= 0 {
			window = defaultWindowDays
		}
		end := day.AddDate(0, 0, 1)
		return &tile.CloudFreeMosaic{
			Product:      l.Product,
			MaskProduct:  l.MaskProduct,
			Measurements: tr.Bands(),
			MaskBand:     l.MaskBand,
			Decode:       dec,
			Start:        end.AddDate(0, 0, -window),
			End:          end,
		}, nil
	default:
		return &tile.LatestTile{Product: l.Product, Measurements: tr.Bands(), Time: day}, nil
	}
}

// Transform builds the band transform the style describes.
func (s *Style) Transform() (render.BandTransform, error) {
	need := func(n int) error {
		if len(s.Components) != n {
			return perr.InvalidArgf("style %s of kind %s needs %d components, has %d", s.Name, s.Kind, n, len(s.Components))
		}
		return nil
	}
	switch s.Kind {
	case "rgb", "":
		if err := need(3); err != nil {
			return nil, err
		}
		if s.MaxVal <= s.MinVal {
			return nil, perr.InvalidArgf("style %s has an empty value range", s.Name)
		}
		return render.RGB{Red: s.Components[0], Green: s.Components[1], Blue: s.Components[2], Min: s.MinVal, Max: s.MaxVal}, nil
	case "ramp":
		if err := need(1); err != nil {
			return nil, err
		}
		if len(s.Palette) < 2 {
			return nil, perr.InvalidArgf("style %s needs at least two palette colours", s.Name)
		}
		return render.Ramp{Band: s.Components[0], Min: s.MinVal, Max: s.MaxVal, Palette: s.Palette}, nil
	case "ndi":
		if err := need(2); err != nil {
			return nil, err
		}
		if len(s.Palette) < 2 {
			return nil, perr.InvalidArgf("style %s needs at least two palette colours", s.Name)
		}
		return render.NormalisedDifference{A: s.Components[0], B: s.Components[1],
			Ramp: render.Ramp{Min: s.MinVal, Max: s.MaxVal, Palette: s.Palette}}, nil
	default:
		return nil, perr.InvalidArgf("style %s has unknown kind %q", s.Name, s.Kind)
	}
}
