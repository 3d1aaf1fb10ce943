package capture

import (
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
)

const (
	// DefaultBufferCount is requested when Allocate is called with count 0.
	DefaultBufferCount = 4
	// MinBufferCount is the smallest grant the pool accepts.
	MinBufferCount = 2
)

// BufferIndex is the driver-assigned index of a buffer in the pool.
type BufferIndex uint32

// Ownership tells who may touch a mapped buffer.
type Ownership int

const (
	// ApplicationOwned buffers are never written by the driver.
	ApplicationOwned Ownership = iota
	// DriverQueued buffers may be written by the driver at any time and must
	// not be read.
	DriverQueued
)

func (o Ownership) String() string {
	if o == DriverQueued {
		return "driver-queued"
	}
	return "application-owned"
}

// Buffer is one memory-mapped region shared with the driver.
type Buffer struct {
	index    BufferIndex
	data     []byte
	used     int
	owner    Ownership
	stranded bool
}

func (b *Buffer) Index() BufferIndex {
	return b.index
}

// Len is the mapped length of the buffer.
func (b *Buffer) Len() int {
	return len(b.data)
}

func (b *Buffer) Ownership() Ownership {
	return b.owner
}

// Stranded reports whether the driver refused to take the buffer back.
// A stranded buffer no longer takes part in capture.
func (b *Buffer) Stranded() bool {
	return b.stranded
}

// Bytes returns the part of the buffer filled by the last dequeue.
// It fails while the buffer is queued to the driver.
func (b *Buffer) Bytes() ([]byte, error) {
	if b.owner != ApplicationOwned {
		return nil, newError(ProtocolFailure, "read", int(b.index), ErrBufferBusy, nil)
	}
	return b.data[:b.used], nil
}

// Pool owns the buffers mapped from one device.
type Pool struct {
	dev       Device
	buffers   []*Buffer
	requested int
	log       *slog.Logger
}

func NewPool(dev Device) *Pool {
	return &Pool{dev: dev, log: slog.Default()}
}

// SetLogger replaces the logger used for diagnostics.
func (p *Pool) SetLogger(l *slog.Logger) {
	if l != nil {
		p.log = l
	}
}

// Count is the number of mapped buffers.
func (p *Pool) Count() int {
	return len(p.buffers)
}

// Queued is the number of buffers currently owned by the driver.
func (p *Pool) Queued() int {
	n := 0
	for _, b := range p.buffers {
		if b.owner == DriverQueued {
			n++
		}
	}
	return n
}

// Get returns the buffer at index. Indices coming from the driver must go
// through Get before any access.
func (p *Pool) Get(index BufferIndex) (*Buffer, error) {
	if int64(index) >= int64(len(p.buffers)) {
		return nil, newError(BoundsViolation, "get", int(index), ErrIndexOutOfRange,
			fmt.Errorf("pool holds %d buffers", len(p.buffers)))
	}
	return p.buffers[index], nil
}

// Allocate requests count buffers from the driver (DefaultBufferCount when
// count is 0) and maps each of them. When length is non-zero every buffer
// must be at least that long. On failure nothing stays mapped.
func (p *Pool) Allocate(count int, length uint32) error {
	if count <= 0 {
		count = DefaultBufferCount
	}
	if len(p.buffers) > 0 {
		if err := p.Release(); err != nil {
			return err
		}
	}
	p.requested = count

	granted, err := p.dev.RequestBuffers(uint32(count))
	if err != nil {
		return newError(SetupFailure, "VIDIOC_REQBUFS", -1, ErrMapFailed, err)
	}
	if granted < MinBufferCount {
		if granted > 0 {
			p.free()
		}
		return newError(SetupFailure, "VIDIOC_REQBUFS", -1, ErrInsufficientBuffers,
			fmt.Errorf("requested %d, granted %d", count, granted))
	}

	p.log.Debug("capture: preparing buffers", "requested", count, "granted", granted)

	buffers := make([]*Buffer, 0, granted)
	for i := uint32(0); i < granted; i++ {
		offset, n, err := p.dev.QueryBuffer(i)
		if err != nil {
			p.unwind(buffers)
			return newError(SetupFailure, "VIDIOC_QUERYBUF", int(i), ErrMapFailed, err)
		}
		if length > 0 && n < length {
			p.unwind(buffers)
			return newError(SetupFailure, "VIDIOC_QUERYBUF", int(i), ErrMapFailed,
				fmt.Errorf("driver buffer holds %d bytes, need %d", n, length))
		}

		data, err := p.dev.Map(offset, n)
		if err != nil {
			p.unwind(buffers)
			return newError(SetupFailure, "mmap", int(i), ErrMapFailed, err)
		}
		buffers = append(buffers, &Buffer{index: BufferIndex(i), data: data, owner: ApplicationOwned})
	}

	p.buffers = buffers
	return nil
}

// Resize drops the current pool and allocates a new one with the same
// buffer count. Streaming must have been stopped.
func (p *Pool) Resize(length uint32) error {
	count := p.requested
	if err := p.Release(); err != nil {
		return err
	}
	return p.Allocate(count, length)
}

// Release unmaps every buffer and frees them in the driver. It refuses while
// any buffer is still queued to the driver.
func (p *Pool) Release() error {
	if len(p.buffers) == 0 {
		return nil
	}
	for _, b := range p.buffers {
		if b.owner == DriverQueued {
			return newError(SetupFailure, "release", int(b.index), ErrBufferBusy, nil)
		}
	}

	var firstErr error
	for _, b := range p.buffers {
		if err := p.dev.Unmap(b.data); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "munmap buffer %d", b.index)
		}
		b.data = nil
	}
	p.buffers = nil

	if _, err := p.dev.RequestBuffers(0); err != nil && firstErr == nil {
		firstErr = errors.Wrap(err, "VIDIOC_REQBUFS 0")
	}
	return firstErr
}

func (p *Pool) unwind(mapped []*Buffer) {
	for _, b := range mapped {
		if err := p.dev.Unmap(b.data); err != nil {
			p.log.Warn("capture: unmap failed", "index", b.index, "error", err)
		}
	}
	p.free()
}

// free returns the driver's buffers after a failed allocation.
func (p *Pool) free() {
	if _, err := p.dev.RequestBuffers(0); err != nil {
		p.log.Warn("capture: can not free driver buffers", "error", err)
	}
}

// usable is the number of buffers that still take part in capture.
func (p *Pool) usable() int {
	n := 0
	for _, b := range p.buffers {
		if !b.stranded {
			n++
		}
	}
	return n
}

// reclaim marks every buffer as owned by the application again, as the
// driver does on stream off.
func (p *Pool) reclaim() {
	for _, b := range p.buffers {
		b.owner = ApplicationOwned
		b.used = 0
	}
}
