package pixel

import "math"

// Histogram counts luma values of a packed frame. Only even offsets are
// luma; chroma bytes are skipped.
type Histogram [256]int

func NewHistogram(buf []byte) *Histogram {
	h := &Histogram{}
	for i := 0; i < len(buf); i += 2 {
		h[buf[i]]++
	}
	return h
}

// Total is the number of samples counted.
func (h *Histogram) Total() int {
	n := 0
	for _, c := range h {
		n += c
	}
	return n
}

// CDF returns the cumulative counts and the smallest non-zero one.
func (h *Histogram) CDF() (cdf [256]int, lowest int) {
	sum := 0
	for i, c := range h {
		sum += c
		cdf[i] = sum
		if lowest == 0 && sum > 0 {
			lowest = sum
		}
	}
	return
}

// DarkFraction is the share of samples below level.
func (h *Histogram) DarkFraction(level byte) float64 {
	total := h.Total()
	if total == 0 {
		return 0
	}
	dark := 0
	for i := 0; i < int(level); i++ {
		dark += h[i]
	}
	return float64(dark) / float64(total)
}

// Equalize spreads the luma values of a packed frame over the full range
// using the frame's own cumulative distribution. Chroma bytes are left alone.
// A frame whose luma samples all have the same value is left unchanged.
func Equalize(buf []byte) error {
	if err := checkPacked(buf); err != nil {
		return err
	}

	h := NewHistogram(buf)
	cdf, cdfMin := h.CDF()
	total := len(buf) / 2
	if total == cdfMin {
		return nil
	}

	var lut [256]byte
	scale := 255.0 / float64(total-cdfMin)
	for v, c := range cdf {
		if c < cdfMin {
			continue
		}
		lut[v] = byte(math.Round(float64(c-cdfMin) * scale))
	}

	for i := 0; i < len(buf); i += 2 {
		buf[i] = lut[buf[i]]
	}
	return nil
}
