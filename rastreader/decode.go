package rastreader

import (
	"encoding/binary"
	"math"

	perr "github.com/prl900/dc_wms/errors"
)

// Sample types of stored pixel objects. Multi-byte samples are little endian.
const (
	DTypeUint8   = "uint8"
	DTypeInt16   = "int16"
	DTypeUint16  = "uint16"
	DTypeFloat32 = "float32"
)

func sampleSize(dtype string) (int, error) {
	switch dtype {
	case DTypeUint8:
		return 1, nil
	case DTypeInt16, DTypeUint16:
		return 2, nil
	case DTypeFloat32:
		return 4, nil
	}
	return 0, perr.InvalidArgf("unsupported dtype %q", dtype)
}

// decodePixels converts a raw object into float32 samples.
func decodePixels(data []byte, dtype string, n int) ([]float32, error) {
	size, err := sampleSize(dtype)
	if err != nil {
		return nil, err
	}
	if len(data) != n*size {
		return nil, perr.LoadFailuref("object holds %d bytes, want %d %s samples", len(data), n, dtype)
	}

	pix := make([]float32, n)
	switch dtype {
	case DTypeUint8:
		for i, v := range data {
			pix[i] = float32(v)
		}
	case DTypeInt16:
		for i := range pix {
			pix[i] = float32(int16(binary.LittleEndian.Uint16(data[2*i:])))
		}
	case DTypeUint16:
		for i := range pix {
			pix[i] = float32(binary.LittleEndian.Uint16(data[2*i:]))
		}
	case DTypeFloat32:
		for i := range pix {
			pix[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
		}
	}
	return pix, nil
}
