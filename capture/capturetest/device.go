// Package capturetest provides an in-memory capture.Device for tests.
package capturetest

import (
	"context"
	"sync"

	"golang.org/x/sys/unix"
)

// Device simulates the mmap streaming protocol of a V4L2 driver. Frames
// pushed with Fill are copied into the next queued buffer.
//
// The Fail* fields inject errors; a nil value means success.
type Device struct {
	mu sync.Mutex

	// Grant caps how many buffers RequestBuffers hands out. Zero means the
	// full request is granted.
	Grant uint32
	// Length is the size of each buffer. Defaults to 4096.
	Length uint32

	FailRequest   error
	// FailFree is returned when buffers are freed with a zero count.
	FailFree      error
	FailQuery     map[uint32]error
	FailMap       map[uint32]error
	FailEnqueue   map[uint32]error
	FailDequeue   error
	FailStreamOn  error
	FailStreamOff error
	// BogusIndex, when set, is returned by the next Dequeue instead of a
	// real buffer.
	BogusIndex *uint32
	// OnWait is called from Wait. It may Fill a frame to simulate the
	// driver completing a capture.
	OnWait func(d *Device)

	buffers   [][]byte
	queued    []uint32
	filled    []filled
	pending   [][]byte
	streaming bool

	Requests []uint32
	Mapped   int
	Unmapped int
	Waits    int
	Enqueues []uint32
}

type filled struct {
	index uint32
	used  uint32
}

func (d *Device) length() uint32 {
	if d.Length == 0 {
		return 4096
	}
	return d.Length
}

func (d *Device) RequestBuffers(count uint32) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Requests = append(d.Requests, count)
	if d.FailRequest != nil {
		return 0, d.FailRequest
	}
	if count == 0 && d.FailFree != nil {
		return 0, d.FailFree
	}
	if d.Grant != 0 && count > d.Grant {
		count = d.Grant
	}
	d.buffers = make([][]byte, count)
	for i := range d.buffers {
		d.buffers[i] = make([]byte, d.length())
	}
	d.queued = nil
	d.filled = nil
	return count, nil
}

func (d *Device) QueryBuffer(index uint32) (uint32, uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.FailQuery[index]; err != nil {
		return 0, 0, err
	}
	if int(index) >= len(d.buffers) {
		return 0, 0, unix.EINVAL
	}
	return index * d.length(), d.length(), nil
}

func (d *Device) Map(offset, length uint32) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	index := offset / d.length()
	if err := d.FailMap[index]; err != nil {
		return nil, err
	}
	d.Mapped++
	return d.buffers[index][:length], nil
}

func (d *Device) Unmap(b []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Unmapped++
	return nil
}

func (d *Device) Enqueue(index uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.FailEnqueue[index]; err != nil {
		return err
	}
	if int(index) >= len(d.buffers) {
		return unix.EINVAL
	}
	d.Enqueues = append(d.Enqueues, index)
	d.queued = append(d.queued, index)
	d.deliver()
	return nil
}

func (d *Device) Dequeue() (uint32, uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailDequeue != nil {
		return 0, 0, d.FailDequeue
	}
	if !d.streaming {
		return 0, 0, unix.EINVAL
	}
	if d.BogusIndex != nil {
		index := *d.BogusIndex
		d.BogusIndex = nil
		return index, d.length(), nil
	}
	if len(d.filled) == 0 {
		return 0, 0, unix.EAGAIN
	}
	f := d.filled[0]
	d.filled = d.filled[1:]
	return f.index, f.used, nil
}

func (d *Device) StreamOn() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailStreamOn != nil {
		return d.FailStreamOn
	}
	d.streaming = true
	d.deliver()
	return nil
}

func (d *Device) StreamOff() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailStreamOff != nil {
		return d.FailStreamOff
	}
	d.streaming = false
	d.queued = nil
	d.filled = nil
	return nil
}

func (d *Device) Wait(ctx context.Context) error {
	d.mu.Lock()
	d.Waits++
	hook := d.OnWait
	d.mu.Unlock()

	if hook != nil {
		hook(d)
	}

	d.mu.Lock()
	ready := len(d.filled) > 0
	d.mu.Unlock()
	if ready {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

// Fill schedules a frame. It is written into the oldest queued buffer once
// the device is streaming.
func (d *Device) Fill(frame []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = append(d.pending, frame)
	d.deliver()
}

// Streaming reports whether StreamOn succeeded more recently than StreamOff.
func (d *Device) Streaming() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streaming
}

// Buffer returns the driver side memory of buffer index.
func (d *Device) Buffer(index uint32) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buffers[index]
}

func (d *Device) deliver() {
	for d.streaming && len(d.pending) > 0 && len(d.queued) > 0 {
		index := d.queued[0]
		d.queued = d.queued[1:]
		frame := d.pending[0]
		d.pending = d.pending[1:]
		n := copy(d.buffers[index], frame)
		d.filled = append(d.filled, filled{index: index, used: uint32(n)})
	}
}
