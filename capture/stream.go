package capture

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// State of a Stream.
type State int

const (
	Idle State = iota
	Streaming
)

func (s State) String() string {
	if s == Streaming {
		return "streaming"
	}
	return "idle"
}

const noBuffer = -1

// Stream moves the buffers of a pool between the application and the driver.
// Every transfer is checked, and only one buffer is handed out at a time.
type Stream struct {
	dev   Device
	pool  *Pool
	state State
	held  int
	log   *slog.Logger
}

func NewStream(dev Device, pool *Pool) *Stream {
	return &Stream{dev: dev, pool: pool, held: noBuffer, log: pool.log}
}

func (s *Stream) State() State {
	return s.state
}

// Start queues every buffer in index order and turns streaming on. It
// refuses while the driver still holds buffers from a failed stop. On
// failure the stream stays idle.
func (s *Stream) Start() error {
	if s.state != Idle {
		return newError(ProtocolFailure, "start", noBuffer, ErrAlreadyStreaming, nil)
	}
	if n := s.pool.Queued(); n > 0 {
		return newError(SetupFailure, "start", noBuffer, ErrBufferBusy,
			errors.Errorf("%d buffers still held by the driver", n))
	}
	if n := s.pool.usable(); n < MinBufferCount {
		return newError(SetupFailure, "start", noBuffer, ErrInsufficientBuffers,
			errors.Errorf("%d usable buffers", n))
	}

	for _, b := range s.pool.buffers {
		if b.stranded {
			continue
		}
		if err := s.dev.Enqueue(uint32(b.index)); err != nil {
			s.abort()
			return newError(ProtocolFailure, "VIDIOC_QBUF", int(b.index), ErrQueueFailed, err)
		}
		b.owner = DriverQueued
	}

	if err := s.dev.StreamOn(); err != nil {
		s.abort()
		return newError(ProtocolFailure, "VIDIOC_STREAMON", noBuffer, ErrStreamOnFailed, err)
	}

	s.state = Streaming
	s.held = noBuffer
	s.log.Debug("capture: streaming on", "buffers", s.pool.Count())
	return nil
}

// abort takes back whatever was queued during a failed start. Buffers stay
// queued if the driver refuses to stop.
func (s *Stream) abort() {
	if err := s.dev.StreamOff(); err != nil {
		s.log.Warn("capture: stream off after failed start", "error", err)
		return
	}
	s.pool.reclaim()
}

// CaptureOne blocks until the driver hands back a filled buffer. The buffer
// must be passed to Requeue before CaptureOne is called again.
func (s *Stream) CaptureOne(ctx context.Context) (*Buffer, error) {
	if s.state != Streaming {
		return nil, newError(ProtocolFailure, "capture", noBuffer, ErrNotStreaming, nil)
	}
	if s.held != noBuffer {
		return nil, newError(ProtocolFailure, "capture", s.held, ErrNotRequeued, nil)
	}

	for {
		index, used, err := s.dev.Dequeue()
		switch {
		case err == nil:
			return s.accept(index, used)
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			if err := s.dev.Wait(ctx); err != nil {
				return nil, newError(ProtocolFailure, "wait", noBuffer, ErrCaptureFailed, err)
			}
		default:
			return nil, newError(ProtocolFailure, "VIDIOC_DQBUF", noBuffer, ErrCaptureFailed, err)
		}
	}
}

func (s *Stream) accept(index, used uint32) (*Buffer, error) {
	b, err := s.pool.Get(BufferIndex(index))
	if err != nil {
		return nil, err
	}
	if b.owner != DriverQueued {
		return nil, newError(ProtocolFailure, "VIDIOC_DQBUF", int(index), ErrCaptureFailed,
			errors.New("driver returned a buffer it did not own"))
	}

	b.owner = ApplicationOwned
	b.used = int(used)
	if b.used > len(b.data) || b.used == 0 {
		b.used = len(b.data)
	}
	s.held = int(index)
	return b, nil
}

// Requeue hands a dequeued buffer back to the driver. If the driver refuses,
// the buffer is stranded: it is owned by the application but leaves the ring.
func (s *Stream) Requeue(index BufferIndex) error {
	if s.state != Streaming {
		return newError(ProtocolFailure, "requeue", int(index), ErrNotStreaming, nil)
	}
	b, err := s.pool.Get(index)
	if err != nil {
		return err
	}
	if b.owner != ApplicationOwned || b.stranded {
		return newError(ProtocolFailure, "requeue", int(index), ErrQueueFailed,
			errors.Errorf("buffer is %s", b.owner))
	}

	if int(index) == s.held {
		s.held = noBuffer
	}
	if err := s.dev.Enqueue(uint32(index)); err != nil {
		b.stranded = true
		s.log.Warn("capture: buffer lost from ring", "index", index, "error", err)
		return newError(ProtocolFailure, "VIDIOC_QBUF", int(index), ErrQueueFailed, err)
	}
	b.owner = DriverQueued
	b.used = 0
	return nil
}

// Stop turns streaming off. The stream is idle afterwards even when the
// driver reports an error; in that case buffers stay marked as queued and
// Stop may be called again to take them back.
func (s *Stream) Stop() error {
	if s.state != Streaming && s.pool.Queued() == 0 {
		return nil
	}
	s.state = Idle
	s.held = noBuffer

	if err := s.dev.StreamOff(); err != nil {
		return newError(ProtocolFailure, "VIDIOC_STREAMOFF", noBuffer, ErrStreamOffFailed, err)
	}
	s.pool.reclaim()
	s.log.Debug("capture: streaming off")
	return nil
}
