package wms

import (
	"net/url"
	"strings"
)

// lowerArgs returns the query parameters keyed by lower case name. When a
// parameter is repeated, in any case, the last instance wins.
func lowerArgs(rawQuery string) map[string]string {
	args := map[string]string{}
	for _, kv := range strings.FieldsFunc(rawQuery, func(r rune) bool { return r == '&' || r == ';' }) {
		k, v, _ := strings.Cut(kv, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			continue
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			continue
		}
		args[strings.ToLower(key)] = val
	}
	return args
}
