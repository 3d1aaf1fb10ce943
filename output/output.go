// Package output writes captured frames to files or other sinks.
package output

import (
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/wthielen/snapcam/capture"
	"github.com/wthielen/snapcam/pixel"
)

type Encoding string

const (
	// Raw writes the frame bytes as they are.
	Raw Encoding = "raw"
	PNG Encoding = "png"
)

// EncodingFor picks an encoding from a file name. Names ending in .zst are
// compressed.
func EncodingFor(name string) (enc Encoding, compress bool) {
	if strings.HasSuffix(name, ".zst") {
		compress = true
		name = strings.TrimSuffix(name, ".zst")
	}
	if strings.EqualFold(filepath.Ext(name), ".png") {
		return PNG, compress
	}
	return Raw, compress
}

// Write encodes frame to w, optionally through a zstd stream.
func Write(w io.Writer, frame *capture.Frame, enc Encoding, compress bool) error {
	if !compress {
		return encode(w, frame, enc)
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	if err := encode(zw, frame, enc); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// WriteFile writes frame to name, choosing the encoding from the name.
func WriteFile(name string, frame *capture.Frame) error {
	enc, compress := EncodingFor(name)

	f, err := os.Create(name)
	if err != nil {
		return errors.Wrapf(err, "Failed to create %s", name)
	}
	if err := Write(f, frame, enc, compress); err != nil {
		f.Close()
		return errors.Wrapf(err, "Error writing %s", name)
	}
	return f.Close()
}

func encode(w io.Writer, frame *capture.Frame, enc Encoding) error {
	switch enc {
	case Raw:
		_, err := w.Write(frame.Data)
		return err
	case PNG:
		if frame.Format != capture.FormatRGB24 {
			return errors.Errorf("can not encode %s frame as png", frame.Format)
		}
		img, err := pixel.NewRGB(frame.Data, frame.Width, frame.Height, frame.Stride)
		if err != nil {
			return err
		}
		return png.Encode(w, img)
	}
	return errors.Errorf("unknown encoding %q", enc)
}
