// Package snapcam captures single still frames from a V4L2 webcam.
package snapcam

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/wthielen/snapcam/capture"
	"github.com/wthielen/snapcam/config"
)

// SnapOption selects what a snapshot returns.
type SnapOption struct {
	Equalize bool
	Raw      bool
	Logger   *slog.Logger
}

// CaptureOption builds the capture options for conf.
func CaptureOption(conf *config.Config, opt *SnapOption) *capture.Option {
	return &capture.Option{
		Device:   conf.Device,
		Width:    conf.Width,
		Height:   conf.Height,
		Buffers:  conf.Buffers,
		Timeout:  time.Duration(conf.Timeout) * time.Second,
		Equalize: conf.Equalize || opt.Equalize,
		Raw:      opt.Raw,
		Logger:   opt.Logger,
	}
}

// Snapshot takes one frame from the configured device.
func Snapshot(ctx context.Context, conf *config.Config, opt *SnapOption) (*capture.Frame, error) {
	var frame *capture.Frame
	err := capture.Capture(ctx, CaptureOption(conf, opt), func(f *capture.Frame) error {
		frame = f
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "snapshot from %s", conf.Device)
	}
	return frame, nil
}
