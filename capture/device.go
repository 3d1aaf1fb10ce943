package capture

import "context"

// Device is the driver side of the mmap streaming protocol.
//
// Methods return the raw OS error (a unix.Errno for real devices) so that
// callers can tell EAGAIN and EINTR apart from hard failures.
type Device interface {
	// RequestBuffers asks the driver for count buffers and returns how many
	// were granted. A count of 0 frees the driver's buffers.
	RequestBuffers(count uint32) (uint32, error)
	// QueryBuffer returns the mmap offset and length of buffer index.
	QueryBuffer(index uint32) (offset, length uint32, err error)
	Map(offset, length uint32) ([]byte, error)
	Unmap(b []byte) error

	Enqueue(index uint32) error
	// Dequeue returns a filled buffer and the number of bytes used in it.
	Dequeue() (index, bytesUsed uint32, err error)

	StreamOn() error
	StreamOff() error

	// Wait blocks until a buffer can be dequeued or ctx is done.
	Wait(ctx context.Context) error
}

// Format is the negotiated image format.
type Format struct {
	PixelFormat uint32
	Width       uint32
	Height      uint32
	// Stride is the number of bytes per line.
	Stride    uint32
	SizeImage uint32
}
