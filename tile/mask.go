package tile

// Mask flags pixels as invalid (true) on a Width x Height grid, row major.
type Mask struct {
	Width  int
	Height int
	Pix    []bool
}

// NewMask returns a mask with every pixel set to v.
func NewMask(width, height int, v bool) Mask {
	m := Mask{Width: width, Height: height, Pix: make([]bool, width*height)}
	if v {
		for i := range m.Pix {
			m.Pix[i] = true
		}
	}
	return m
}

// Count is the number of invalid pixels.
func (m Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v {
			n++
		}
	}
	return n
}

// Fraction is the share of invalid pixels. An empty mask is fully invalid.
func (m Mask) Fraction() float64 {
	if len(m.Pix) == 0 {
		return 1
	}
	return float64(m.Count()) / float64(len(m.Pix))
}

// Clone returns a deep copy.
func (m Mask) Clone() Mask {
	c := m
	c.Pix = append([]bool(nil), m.Pix...)
	return c
}

// Or marks as invalid every pixel invalid in o.
func (m Mask) Or(o Mask) {
	for i, v := range o.Pix {
		if v {
			m.Pix[i] = true
		}
	}
}

// And keeps invalid only the pixels invalid in both m and o.
func (m Mask) And(o Mask) {
	for i := range m.Pix {
		m.Pix[i] = m.Pix[i] && o.Pix[i]
	}
}

// fits reports whether m covers a width x height grid.
func (m Mask) fits(width, height int) bool {
	return m.Width == width && m.Height == height && len(m.Pix) == width*height
}
