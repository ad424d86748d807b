// Package wms serves a layer catalog over OGC WMS GetCapabilities and GetMap,
// plus an XYZ tile endpoint.
package wms

import (
	"embed"
	"encoding/xml"
	"io"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/prl900/dc_wms/catalog"
	perr "github.com/prl900/dc_wms/errors"
	"github.com/prl900/dc_wms/logger"
	"github.com/prl900/dc_wms/tile"
)

//go:embed templates/*.tpl
var templateFS embed.FS

const (
	DefaultMaxArea      = 4e11
	DefaultMaxSize      = 4096
	DefaultCacheControl = "public, max-age=31536000"
	DefaultTimeout      = 60 * time.Second
)

type Config struct {
	Title    string
	Abstract string
	// URL is the public address advertised in the capabilities document.
	URL string
	// MaxArea caps the request extent, in square metres of Web Mercator.
	MaxArea      float64
	MaxWidth     int
	MaxHeight    int
	CacheControl string
	Timeout      time.Duration
}

func (c *Config) setDefaults() {
	if c.Title == "" {
		c.Title = "Data cube WMS"
	}
	if c.URL == "" {
		c.URL = "http://localhost:8080/wms"
	}
	if c.MaxArea <= 0 {
		c.MaxArea = DefaultMaxArea
	}
	if c.MaxWidth <= 0 {
		c.MaxWidth = DefaultMaxSize
	}
	if c.MaxHeight <= 0 {
		c.MaxHeight = DefaultMaxSize
	}
	if c.CacheControl == "" {
		c.CacheControl = DefaultCacheControl
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

// Service answers WMS requests for a catalog of layers backed by an archive.
type Service struct {
	cfg     Config
	layers  catalog.Layers
	archive tile.Archive
	log     *zerolog.Logger
	tpl     *template.Template
}

// NewService parses the embedded templates and returns a ready service.
func NewService(cfg Config, layers catalog.Layers, archive tile.Archive, log *zerolog.Logger) (*Service, error) {
	cfg.setDefaults()
	tpl, err := template.New("wms").Funcs(template.FuncMap{
		"xml":  xmlEscape,
		"join": strings.Join,
	}).ParseFS(templateFS, "templates/*.tpl")
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "Error trying to parse template documents")
	}
	return &Service{cfg: cfg, layers: layers, archive: archive, log: log, tpl: tpl}, nil
}

func xmlEscape(s string) (string, error) {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Routes returns the service's HTTP handler.
func (s *Service) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.accessLog)
	r.Use(chimw.Recoverer)
	r.Use(chimw.SetHeader("Access-Control-Allow-Origin", "*"))
	r.Use(chimw.Timeout(s.cfg.Timeout))

	r.Get("/", s.handleWMS)
	r.Get("/wms", s.handleWMS)
	r.Get("/tiles/{layer}/{z}/{x}/{y}.png", s.handleXYZ)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, "ok")
	})
	return r
}

func (s *Service) handleWMS(w http.ResponseWriter, r *http.Request) {
	args := lowerArgs(r.URL.RawQuery)

	var err error
	switch op := args["request"]; op {
	case "":
		err = exception("", "Request parameter", "No operation specified")
	case "GetCapabilities":
		err = s.getCapabilities(w, args)
	case "GetMap":
		err = s.getMap(w, r, args)
	case "GetFeatureInfo":
		err = exception(CodeOperationNotSupported, "Request parameter", "GetFeatureInfo not implemented yet")
	default:
		err = exception(CodeOperationNotSupported, "Request parameter", "Unrecognised operation: %s", op)
	}
	if err != nil {
		s.writeException(w, r, err)
	}
}

func (s *Service) writeException(w http.ResponseWriter, r *http.Request, err error) {
	e := asException(err)
	log := logger.C(r.Context(), s.log)
	if e.Status >= http.StatusInternalServerError {
		ev := log.Error().Err(err).Str("query", r.URL.RawQuery)
		if pe, ok := perr.As(err); ok {
			ev = ev.Stringer("error_code", pe.Code()).Str("op", pe.Op())
		}
		ev.Msg("request failed")
	} else {
		log.Debug().Str("code", e.Code).Str("msg", e.Msg).Msg("request rejected")
	}

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(e.Status)
	if err := s.tpl.ExecuteTemplate(w, "exception.tpl", e); err != nil {
		log.Error().Err(err).Msg("Error executing exception template")
	}
}

// accessLog stores the request id for handler loggers and logs each request
// once it is done.
func (s *Service) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logger.WithRequest(r.Context(), chimw.GetReqID(r.Context()))
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r.WithContext(ctx))

		elapsed := time.Since(start)
		log := logger.C(ctx, s.log)
		evt := log.Info()
		if elapsed >= 2*time.Second {
			evt = log.Warn()
		}
		evt.Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", elapsed).
			Str("path", r.URL.Path).
			Str("query", r.URL.RawQuery).
			Msg("request done")
	})
}
