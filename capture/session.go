package capture

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/wthielen/snapcam/pixel"
)

// darkLevel is the luma below which a sample counts as dark in diagnostics.
const darkLevel = 80

// Session ties a device, its buffer pool and a converter together.
type Session struct {
	dev    Device
	format Format
	opt    Option
	pool   *Pool
	stream *Stream
	conv   pixel.Converter
	log    *slog.Logger
}

// NewSession maps the buffers of an already configured device.
func NewSession(dev Device, format Format, opt *Option) (*Session, error) {
	s := &Session{dev: dev, format: format, opt: *opt, log: opt.Logger}
	if s.log == nil {
		s.log = slog.Default()
	}

	s.pool = NewPool(dev)
	s.pool.SetLogger(s.log)
	if err := s.pool.Allocate(opt.Buffers, format.SizeImage); err != nil {
		return nil, errors.Wrap(err, "Can not prepare buffers")
	}
	s.stream = NewStream(dev, s.pool)
	return s, nil
}

func (s *Session) Format() Format {
	return s.format
}

// Reset rebuilds the buffer pool, e.g. after a failed start.
func (s *Session) Reset() error {
	if err := s.stream.Stop(); err != nil {
		return err
	}
	return s.pool.Resize(s.format.SizeImage)
}

// Read turns streaming on, takes one frame and turns streaming off again.
// RGB data is overwritten by the next Read.
func (s *Session) Read(ctx context.Context) (*Frame, error) {
	if s.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opt.Timeout)
		defer cancel()
	}

	if err := s.stream.Start(); err != nil {
		return nil, errors.Wrap(err, "Can not start streaming")
	}
	defer func() {
		if err := s.stream.Stop(); err != nil {
			s.log.Warn("capture: stream off failed", "error", err)
		}
	}()

	s.log.Debug("capture: waiting for frame",
		"width", s.format.Width,
		"height", s.format.Height,
	)
	b, err := s.stream.CaptureOne(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "Can not read frame")
	}

	frame, err := s.process(ctx, b)
	if qerr := s.stream.Requeue(b.Index()); qerr != nil {
		return nil, errors.Wrap(qerr, "Can not requeue buffer")
	}
	return frame, err
}

func (s *Session) process(ctx context.Context, b *Buffer) (*Frame, error) {
	data, err := b.Bytes()
	if err != nil {
		return nil, err
	}

	if s.log.Enabled(ctx, slog.LevelDebug) {
		h := pixel.NewHistogram(data)
		s.log.Debug("capture: frame dequeued",
			"index", b.Index(),
			"bytes", len(data),
			"dark", h.DarkFraction(darkLevel),
		)
	}

	if s.opt.Equalize {
		if err := pixel.Equalize(data); err != nil {
			return nil, newError(ConversionPrecondition, "equalize", int(b.Index()), err, nil)
		}
	}

	frame := &Frame{
		Width:  int(s.format.Width),
		Height: int(s.format.Height),
		Time:   time.Now(),
	}
	stride := int(s.format.Stride)
	if stride == 0 {
		stride = frame.Width * 2
	}

	if s.opt.Raw {
		frame.Format = FormatYUYV
		frame.Stride = stride
		frame.Data = append([]byte(nil), data...)
		return frame, nil
	}

	rgb, err := s.conv.Convert(data)
	if err != nil {
		return nil, newError(ConversionPrecondition, "convert", int(b.Index()), err, nil)
	}
	frame.Format = FormatRGB24
	frame.Stride = pixel.RGBLen(stride)
	frame.Data = rgb
	return frame, nil
}

// Close stops streaming, unmaps the buffers and closes the device if it
// can be closed.
func (s *Session) Close() error {
	err := s.stream.Stop()
	if rerr := s.pool.Release(); rerr != nil && err == nil {
		err = rerr
	}
	if c, ok := s.dev.(io.Closer); ok {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
