package pixel

import (
	"bytes"
	"testing"
	"testing/quick"

	"github.com/pkg/errors"
)

func TestConvertBlackPair(t *testing.T) {
	var c Converter
	out, err := c.Convert([]byte{0x10, 0x80, 0x10, 0x80})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	want := []byte{0, 0, 0, 0, 0, 0}
	if !bytes.Equal(out, want) {
		t.Errorf("Convert = %v, want %v", out, want)
	}
}

func TestConvertSingleSampleUsesNeutralChroma(t *testing.T) {
	var c Converter
	// U comes from byte 1; the V neighbor lies before the frame.
	out, err := c.Convert([]byte{126, 200})
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{128, 99, 255}
	if !bytes.Equal(out, want) {
		t.Errorf("Convert = %v, want %v", out, want)
	}
}

func TestConvertKnownColors(t *testing.T) {
	tests := []struct {
		name string
		src  []byte
		want []byte
	}{
		{"white", []byte{235, 128, 235, 128}, []byte{255, 255, 255, 255, 255, 255}},
		{"saturated low", []byte{0, 128, 0, 128}, []byte{0, 0, 0, 0, 0, 0}},
		{"saturated high", []byte{255, 128, 255, 128}, []byte{255, 255, 255, 255, 255, 255}},
		// Second sample takes U from the previous byte and V from the next.
		{"red", []byte{81, 90, 81, 240}, []byte{75, 90, 0, 254, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Converter
			out, err := c.Convert(tt.src)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(out, tt.want) {
				t.Errorf("Convert(%v) = %v, want %v", tt.src, out, tt.want)
			}
		})
	}
}

func TestConvertPreconditions(t *testing.T) {
	var c Converter
	if _, err := c.Convert(nil); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("Convert(nil) = %v, want ErrEmptyFrame", err)
	}
	if _, err := c.Convert([]byte{1, 2, 3}); !errors.Is(err, ErrOddLength) {
		t.Errorf("Convert(odd) = %v, want ErrOddLength", err)
	}
}

func TestConvertOutputLength(t *testing.T) {
	var c Converter
	f := func(src []byte) bool {
		src = src[:len(src)&^1]
		if len(src) < 4 {
			src = append(src, 0x10, 0x80, 0x10, 0x80)
		}
		out, err := c.Convert(src)
		return err == nil && len(out) == len(src)/2*3
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestConvertReusesOutput(t *testing.T) {
	var c Converter
	first, err := c.Convert(make([]byte, 16))
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Convert(bytes.Repeat([]byte{200, 128}, 8))
	if err != nil {
		t.Fatal(err)
	}
	if &first[0] != &second[0] {
		t.Error("output reallocated for an equal sized frame")
	}

	third, err := c.Convert(make([]byte, 32))
	if err != nil {
		t.Fatal(err)
	}
	if len(third) != 48 {
		t.Errorf("len = %d after size change, want 48", len(third))
	}
}

func TestChromaNeighbors(t *testing.T) {
	src := []byte{10, 20, 30, 40, 50, 60}
	tests := []struct {
		i, u, v int
	}{
		{0, 1, -1},
		{2, 1, 3},
		{4, 5, 3},
	}
	for _, tt := range tests {
		uOffset, vOffset := -1, -1
		if tt.i%4 == 0 {
			uOffset = 1
		}
		if tt.i%4 == 2 {
			vOffset = 1
		}
		if tt.i+uOffset != tt.u || tt.i+vOffset != tt.v {
			t.Fatalf("offset %d: got u=%d v=%d", tt.i, tt.i+uOffset, tt.i+vOffset)
		}
		if got := chromaAt(src, tt.v); tt.v < 0 && got != neutralChroma {
			t.Errorf("chromaAt(%d) = %d, want neutral", tt.v, got)
		}
	}
	if got := chromaAt(src, len(src)); got != neutralChroma {
		t.Errorf("chromaAt past end = %d, want neutral", got)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		in   float64
		want byte
	}{
		{-300, 0},
		{-0.9, 0},
		{0, 0},
		{127.99, 127},
		{255, 255},
		{255.5, 255},
		{1000, 255},
	}
	for _, tt := range tests {
		if got := clamp(tt.in); got != tt.want {
			t.Errorf("clamp(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
