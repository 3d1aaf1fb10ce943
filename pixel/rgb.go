package pixel

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
)

// RGB is an image.Image over packed RGB24 pixels.
type RGB struct {
	Pix    []byte
	Stride int
	Rect   image.Rectangle
}

// NewRGB wraps buf as a width x height image whose rows start stride bytes
// apart. A stride of 0 means rows are packed.
func NewRGB(buf []byte, width, height, stride int) (*RGB, error) {
	if stride == 0 {
		stride = width * 3
	}
	if stride < width*3 {
		return nil, errors.Errorf("stride %d too small for width %d", stride, width)
	}
	if height > 0 {
		if exp := stride*(height-1) + width*3; len(buf) < exp {
			return nil, errors.Errorf("Wrong frame length (exp: %d, read %d)", exp, len(buf))
		}
	}
	return &RGB{Pix: buf, Stride: stride, Rect: image.Rect(0, 0, width, height)}, nil
}

func (p *RGB) ColorModel() color.Model {
	return color.RGBAModel
}

func (p *RGB) Bounds() image.Rectangle {
	return p.Rect
}

func (p *RGB) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(p.Rect)) {
		return color.RGBA{}
	}
	i := p.Stride*(y-p.Rect.Min.Y) + (x-p.Rect.Min.X)*3
	return color.RGBA{p.Pix[i], p.Pix[i+1], p.Pix[i+2], 0xFF}
}
