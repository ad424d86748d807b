package wms

import (
	"sort"

	"github.com/prl900/dc_wms/geobox"
)

// publishedCRSs maps the advertised CRS identifiers to proj4 definitions.
var publishedCRSs = map[string]string{
	"EPSG:3857": geobox.WebMerc,
	"EPSG:4326": geobox.Geographic,
}

func publishedCRSNames() []string {
	names := make([]string, 0, len(publishedCRSs))
	for n := range publishedCRSs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// swapsAxes reports whether a bbox in crs is given latitude first.
func swapsAxes(version, crs string) bool {
	return version == "1.3.0" && crs == "EPSG:4326"
}
