//go:build linux

package capture

import (
	"log/slog"

	"github.com/pkg/errors"
)

// OpenSession opens opt.Device, negotiates a YUYV format and maps buffers.
func OpenSession(opt *Option) (*Session, error) {
	log := opt.Logger
	if log == nil {
		log = slog.Default()
	}

	dev, err := Open(opt.Device)
	if err != nil {
		return nil, errors.Wrap(err, "Can not open device")
	}

	log.Debug("capture: requesting image format", "device", opt.Device, "width", opt.Width, "height", opt.Height)
	format, err := dev.SetFormat(opt.Width, opt.Height)
	if err != nil {
		dev.Close()
		return nil, errors.Wrap(err, "Can not set image format")
	}
	if format.PixelFormat != PixelFormatYUYV {
		dev.Close()
		return nil, errors.Errorf("%s: device does not deliver YUYV frames", opt.Device)
	}
	if format.Width != opt.Width || format.Height != opt.Height {
		log.Info("capture: image format adjusted by driver",
			"device", opt.Device,
			"width", format.Width,
			"height", format.Height,
		)
	}

	s, err := NewSession(dev, format, opt)
	if err != nil {
		dev.Close()
		return nil, err
	}
	return s, nil
}
