//go:build !linux

package capture

import "github.com/pkg/errors"

// OpenSession is only implemented for Linux video devices.
func OpenSession(opt *Option) (*Session, error) {
	return nil, errors.Errorf("%s: V4L2 capture is not supported on this platform", opt.Device)
}
