package catalog

import (
	"math"
	"sort"
	"strconv"

	perr "github.com/prl900/dc_wms/errors"
	"github.com/prl900/dc_wms/tile"
)

type flagRule struct {
	bits []int
	want int
}

// MaskDecoder compiles mask_flags against flags_definition. A quality value
// is valid only when every named flag decodes to the requested value name.
func (l *Layer) MaskDecoder() (tile.MaskDecoder, error) {
	names := make([]string, 0, len(l.MaskFlags))
	for n := range l.MaskFlags {
		names = append(names, n)
	}
	sort.Strings(names)

	rules := make([]flagRule, 0, len(names))
	for _, name := range names {
		def, ok := l.Flags[name]
		if !ok {
			return nil, perr.InvalidArgf("layer %s: mask flag %s is not defined", l.Name, name)
		}
		if len(def.Bits) == 0 {
			return nil, perr.InvalidArgf("layer %s: flag %s has no bits", l.Name, name)
		}
		for _, b := range def.Bits {
			if b < 0 || b >= 32 {
				return nil, perr.InvalidArgf("layer %s: flag %s bit %d out of range", l.Name, name, b)
			}
		}
		want := -1
		for raw, label := range def.Values {
			if label != l.MaskFlags[name] {
				continue
			}
			v, err := strconv.Atoi(raw)
			if err != nil {
				return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "layer %s: flag %s value %q", l.Name, name, raw)
			}
			want = v
		}
		if want < 0 {
			return nil, perr.InvalidArgf("layer %s: flag %s has no value %q", l.Name, name, l.MaskFlags[name])
		}
		rules = append(rules, flagRule{bits: def.Bits, want: want})
	}

	return func(v float32) bool {
		if v < 0 || v >= 1<<32 || v != float32(math.Trunc(float64(v))) {
			return true
		}
		raw := uint32(v)
		for _, r := range rules {
			if extract(raw, r.bits) != r.want {
				return true
			}
		}
		return false
	}, nil
}

// extract gathers bits, lowest listed bit first, into an integer.
func extract(raw uint32, bits []int) int {
	v := 0
	for i, b := range bits {
		v |= int((raw>>uint(b))&1) << uint(i)
	}
	return v
}
