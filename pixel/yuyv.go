// Package pixel converts packed YUYV 4:2:2 frames to RGB24 and equalizes
// their luma histogram.
package pixel

import (
	"github.com/pkg/errors"
)

// neutralChroma is the chroma value meaning no color difference.
const neutralChroma = 0x80

var (
	ErrEmptyFrame = errors.New("empty frame")
	ErrOddLength  = errors.New("packed frame length is odd")
)

// RGBLen is the size of the RGB24 output for a packed frame of n bytes.
func RGBLen(n int) int {
	return n / 2 * 3
}

func checkPacked(src []byte) error {
	if len(src) == 0 {
		return ErrEmptyFrame
	}
	if len(src)%2 != 0 {
		return errors.Wrapf(ErrOddLength, "length %d", len(src))
	}
	return nil
}

// Converter turns YUYV frames into RGB24. The output buffer is kept between
// calls and reused while the input size does not change, so the result of
// Convert is only valid until the next call.
type Converter struct {
	out []byte
}

// Convert decodes src into the converter's output buffer and returns it.
func (c *Converter) Convert(src []byte) ([]byte, error) {
	if err := checkPacked(src); err != nil {
		return nil, err
	}
	if n := RGBLen(len(src)); len(c.out) != n {
		c.out = make([]byte, n)
	}
	YUYVToRGB(c.out, src)
	return c.out, nil
}

// YUYVToRGB writes one RGB triple per luma sample of src into dst, which
// must hold at least RGBLen(len(src)) bytes.
//
// Each luma sample takes its U from the next byte when it sits at a
// macropixel start and from the previous byte otherwise; V likewise from the
// next byte on the second sample and the previous one otherwise. Neighbors
// outside the frame read as neutral chroma.
func YUYVToRGB(dst, src []byte) {
	n := len(src) &^ 1
	for i := 0; i < n; i += 2 {
		uOffset, vOffset := -1, -1
		if i%4 == 0 {
			uOffset = 1
		}
		if i%4 == 2 {
			vOffset = 1
		}

		y := src[i]
		u := chromaAt(src, i+uOffset)
		v := chromaAt(src, i+vOffset)

		r, g, b := ycbcrToRGB(y, u, v)
		o := i / 2 * 3
		dst[o] = r
		dst[o+1] = g
		dst[o+2] = b
	}
}

func chromaAt(src []byte, i int) byte {
	if i < 0 || i >= len(src) {
		return neutralChroma
	}
	return src[i]
}

// ycbcrToRGB expands studio range samples to full range and applies the
// BT.601 matrix.
func ycbcrToRGB(y, u, v byte) (r, g, b byte) {
	Y := 255.0 / 219.0 * (float64(y) - 16)
	Pb := 255.0 / 224.0 * (float64(u) - 128)
	Pr := 255.0 / 224.0 * (float64(v) - 128)

	r = clamp(Y + 1.402*Pr)
	g = clamp(Y - 0.344*Pb - 0.714*Pr)
	b = clamp(Y + 1.772*Pb)
	return
}

// clamp truncates toward zero and saturates to a byte.
func clamp(x float64) byte {
	r := int(x)
	if r < 0 {
		return 0
	}
	if r > 255 {
		return 255
	}
	return byte(r)
}
