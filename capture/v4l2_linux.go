//go:build linux

package capture

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"time"
	"unsafe"

	"github.com/blackjack/webcam/ioctl"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	v4l2CapVideoCapture     uint32 = 0x00000001
	v4l2CapStreaming        uint32 = 0x04000000
	v4l2CapDeviceCaps       uint32 = 0x80000000
	v4l2BufTypeVideoCapture uint32 = 1
	v4l2MemoryMmap          uint32 = 1
	v4l2FieldAny            uint32 = 0
	v4l2ColorspaceRec709    uint32 = 3
)

// PixelFormatYUYV is the fourcc of packed YUYV 4:2:2.
const PixelFormatYUYV uint32 = 'Y' | 'U'<<8 | 'Y'<<16 | 'V'<<24

var (
	vidiocQuerycap  = ioctl.IoR(uintptr('V'), 0, unsafe.Sizeof(v4l2Capability{}))
	vidiocSFmt      = ioctl.IoRW(uintptr('V'), 5, unsafe.Sizeof(v4l2Format{}))
	vidiocReqbufs   = ioctl.IoRW(uintptr('V'), 8, unsafe.Sizeof(v4l2RequestBuffers{}))
	vidiocQuerybuf  = ioctl.IoRW(uintptr('V'), 9, unsafe.Sizeof(v4l2Buffer{}))
	vidiocQbuf      = ioctl.IoRW(uintptr('V'), 15, unsafe.Sizeof(v4l2Buffer{}))
	vidiocDqbuf     = ioctl.IoRW(uintptr('V'), 17, unsafe.Sizeof(v4l2Buffer{}))
	vidiocStreamon  = ioctl.IoW(uintptr('V'), 18, 4)
	vidiocStreamoff = ioctl.IoW(uintptr('V'), 19, 4)

	nullPointer  = unsafe.Pointer(uintptr(0))
	nativeEndian = binary.NativeEndian
)

type v4l2Capability struct {
	driver       [16]uint8
	card         [32]uint8
	busInfo      [32]uint8
	version      uint32
	capabilities uint32
	deviceCaps   uint32
	reserved     [3]uint32
}

// The pointer member forces the kernel's union alignment.
type v4l2FormatUnion struct {
	data [200 - unsafe.Sizeof(nullPointer)]byte
	_    unsafe.Pointer
}

type v4l2Format struct {
	typ   uint32
	union v4l2FormatUnion
}

type v4l2PixFormat struct {
	Width        uint32
	Height       uint32
	Pixelformat  uint32
	Field        uint32
	Bytesperline uint32
	Sizeimage    uint32
	Colorspace   uint32
	Priv         uint32
	Flags        uint32
	YcbcrEnc     uint32
	Quantization uint32
	XferFunc     uint32
}

type v4l2RequestBuffers struct {
	count        uint32
	typ          uint32
	memory       uint32
	capabilities uint32
	flags        uint8
	reserved     [3]uint8
}

type v4l2Timecode struct {
	typ      uint32
	flags    uint32
	frames   uint8
	seconds  uint8
	minutes  uint8
	hours    uint8
	userbits [4]uint8
}

type v4l2Buffer struct {
	index     uint32
	typ       uint32
	bytesused uint32
	flags     uint32
	field     uint32
	timestamp unix.Timeval
	timecode  v4l2Timecode
	sequence  uint32
	memory    uint32
	union     [unsafe.Sizeof(nullPointer)]uint8
	length    uint32
	reserved2 uint32
	reserved  uint32
}

// V4L2 is a Linux video capture device opened in non-blocking mode.
type V4L2 struct {
	path string
	fd   int
}

// Open opens the character device at path and checks that it can capture
// video using the streaming I/O method.
func Open(path string) (*V4L2, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Cannot identify '%s'", path)
	}
	if info.Mode()&os.ModeCharDevice == 0 {
		return nil, errors.Errorf("%s is no device", path)
	}

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "Cannot open '%s'", path)
	}
	d := &V4L2{path: path, fd: fd}

	caps := &v4l2Capability{}
	if err := d.ioctl(vidiocQuerycap, unsafe.Pointer(caps)); err != nil {
		d.Close()
		if errors.Is(err, unix.EINVAL) {
			return nil, errors.Errorf("%s is no V4L2 device", path)
		}
		return nil, errors.Wrapf(err, "%s: could not fetch video capabilities", path)
	}

	c := caps.capabilities
	if c&v4l2CapDeviceCaps != 0 {
		c = caps.deviceCaps
	}
	if c&v4l2CapVideoCapture == 0 {
		d.Close()
		return nil, errors.Errorf("%s is no video capture device", path)
	}
	if c&v4l2CapStreaming == 0 {
		d.Close()
		return nil, errors.Errorf("%s does not support the streaming I/O method", path)
	}

	return d, nil
}

// Path returns the device node this device was opened from.
func (d *V4L2) Path() string {
	return d.path
}

func (d *V4L2) Close() error {
	if d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	return err
}

// SetFormat requests YUYV frames of the given size and returns what the
// driver settled on, which may differ from the request.
func (d *V4L2) SetFormat(width, height uint32) (Format, error) {
	format := &v4l2Format{typ: v4l2BufTypeVideoCapture}
	pix := v4l2PixFormat{
		Width:       width,
		Height:      height,
		Pixelformat: PixelFormatYUYV,
		Field:       v4l2FieldAny,
		Colorspace:  v4l2ColorspaceRec709,
	}

	pixbytes := &bytes.Buffer{}
	if err := binary.Write(pixbytes, nativeEndian, pix); err != nil {
		return Format{}, err
	}
	copy(format.union.data[:], pixbytes.Bytes())

	if err := d.ioctl(vidiocSFmt, unsafe.Pointer(format)); err != nil {
		return Format{}, errors.Wrap(err, "VIDIOC_S_FMT")
	}

	got := v4l2PixFormat{}
	if err := binary.Read(bytes.NewReader(format.union.data[:]), nativeEndian, &got); err != nil {
		return Format{}, err
	}

	return Format{
		PixelFormat: got.Pixelformat,
		Width:       got.Width,
		Height:      got.Height,
		Stride:      got.Bytesperline,
		SizeImage:   got.Sizeimage,
	}, nil
}

func (d *V4L2) RequestBuffers(count uint32) (uint32, error) {
	req := &v4l2RequestBuffers{
		count:  count,
		typ:    v4l2BufTypeVideoCapture,
		memory: v4l2MemoryMmap,
	}
	if err := d.ioctl(vidiocReqbufs, unsafe.Pointer(req)); err != nil {
		return 0, err
	}
	return req.count, nil
}

func (d *V4L2) QueryBuffer(index uint32) (offset, length uint32, err error) {
	buf := &v4l2Buffer{
		index:  index,
		typ:    v4l2BufTypeVideoCapture,
		memory: v4l2MemoryMmap,
	}
	if err = d.ioctl(vidiocQuerybuf, unsafe.Pointer(buf)); err != nil {
		return
	}
	offset = nativeEndian.Uint32(buf.union[0:4])
	length = buf.length
	return
}

func (d *V4L2) Map(offset, length uint32) ([]byte, error) {
	return unix.Mmap(d.fd, int64(offset), int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

func (d *V4L2) Unmap(b []byte) error {
	return unix.Munmap(b)
}

func (d *V4L2) Enqueue(index uint32) error {
	buf := &v4l2Buffer{
		index:  index,
		typ:    v4l2BufTypeVideoCapture,
		memory: v4l2MemoryMmap,
	}
	return d.ioctl(vidiocQbuf, unsafe.Pointer(buf))
}

func (d *V4L2) Dequeue() (index, bytesUsed uint32, err error) {
	buf := &v4l2Buffer{
		typ:    v4l2BufTypeVideoCapture,
		memory: v4l2MemoryMmap,
	}
	if err = d.ioctl(vidiocDqbuf, unsafe.Pointer(buf)); err != nil {
		return
	}
	return buf.index, buf.bytesused, nil
}

func (d *V4L2) StreamOn() error {
	typ := v4l2BufTypeVideoCapture
	return d.ioctl(vidiocStreamon, unsafe.Pointer(&typ))
}

func (d *V4L2) StreamOff() error {
	typ := v4l2BufTypeVideoCapture
	return d.ioctl(vidiocStreamoff, unsafe.Pointer(&typ))
}

// pollSlice bounds a single poll so that cancellation without a deadline is
// still noticed.
const pollSlice = 250 * time.Millisecond

// Wait polls the descriptor until a filled buffer is ready.
func (d *V4L2) Wait(ctx context.Context) error {
	fds := []unix.PollFd{{Fd: int32(d.fd), Events: unix.POLLIN}}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		timeout := pollSlice
		if deadline, ok := ctx.Deadline(); ok {
			left := time.Until(deadline)
			if left <= 0 {
				return context.DeadlineExceeded
			}
			if left < timeout {
				timeout = left
			}
		}
		ms := int((timeout + time.Millisecond - 1) / time.Millisecond)

		n, err := unix.Poll(fds, ms)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}

		revents := fds[0].Revents
		if revents&unix.POLLIN != 0 {
			return nil
		}
		if revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			return unix.EIO
		}
	}
}

func (d *V4L2) ioctl(req uintptr, arg unsafe.Pointer) error {
	for {
		err := ioctl.Ioctl(uintptr(d.fd), req, uintptr(arg))
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}
