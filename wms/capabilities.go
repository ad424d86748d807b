package wms

import (
	"bytes"
	"net/http"

	"github.com/prl900/dc_wms/catalog"
	perr "github.com/prl900/dc_wms/errors"
)

type capabilities struct {
	Config
	CRSs   []string
	Layers []*catalog.Layer
}

func (s *Service) getCapabilities(w http.ResponseWriter, args map[string]string) error {
	if args["service"] != "WMS" {
		return exception("", "Service parameter", "Invalid service")
	}

	caps := capabilities{Config: s.cfg, CRSs: publishedCRSNames()}
	for _, name := range s.layers.Names() {
		caps.Layers = append(caps.Layers, s.layers[name])
	}

	var buf bytes.Buffer
	if err := s.tpl.ExecuteTemplate(&buf, "capabilities.tpl", caps); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "Error executing capabilities template")
	}
	w.Header().Set("Content-Type", "application/xml")
	_, err := buf.WriteTo(w)
	return err
}
