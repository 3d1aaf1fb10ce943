package capture

import (
	"context"
	"log/slog"
	"time"
)

// FrameFormat names the layout of Frame.Data.
type FrameFormat string

const (
	// FormatRGB24 is three bytes per pixel, R G B.
	FormatRGB24 FrameFormat = "RGB24"
	// FormatYUYV is the packed frame as the device delivered it.
	FormatYUYV FrameFormat = "YUYV"
)

// Frame is one captured image. Data never aliases device memory.
type Frame struct {
	Format FrameFormat
	Width  int
	Height int
	// Stride is the number of bytes between the starts of two rows.
	Stride int
	Data   []byte
	Time   time.Time
}

type Processor func(frame *Frame) error

type Option struct {
	Device string
	Width  uint32
	Height uint32
	// Buffers is the number of buffers to request, DefaultBufferCount if 0.
	Buffers int
	// Timeout bounds the wait for one frame. Zero waits until ctx is done.
	Timeout time.Duration
	// Equalize applies luma histogram equalization before conversion.
	Equalize bool
	// Raw skips RGB conversion and returns the packed frame.
	Raw bool
	Logger *slog.Logger
}

// Capture opens the device, reads a single frame and hands it to processor.
func Capture(ctx context.Context, opt *Option, processor Processor) error {
	s, err := OpenSession(opt)
	if err != nil {
		return err
	}
	defer s.Close()

	frame, err := s.Read(ctx)
	if err != nil {
		return err
	}
	return processor(frame)
}
