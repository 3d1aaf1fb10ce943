package capture_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/wthielen/snapcam/capture"
	"github.com/wthielen/snapcam/capture/capturetest"
)

func TestAllocate(t *testing.T) {
	dev := &capturetest.Device{Length: 64}
	pool := capture.NewPool(dev)

	if err := pool.Allocate(0, 64); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if pool.Count() != capture.DefaultBufferCount {
		t.Errorf("Count() = %d, want %d", pool.Count(), capture.DefaultBufferCount)
	}
	if dev.Mapped != capture.DefaultBufferCount {
		t.Errorf("mapped %d buffers, want %d", dev.Mapped, capture.DefaultBufferCount)
	}
	for i := 0; i < pool.Count(); i++ {
		b, err := pool.Get(capture.BufferIndex(i))
		if err != nil {
			t.Fatalf("Get(%d): %v", i, err)
		}
		if b.Index() != capture.BufferIndex(i) || b.Len() != 64 {
			t.Errorf("buffer %d: index %d len %d", i, b.Index(), b.Len())
		}
		if b.Ownership() != capture.ApplicationOwned {
			t.Errorf("buffer %d is %s after allocation", i, b.Ownership())
		}
	}
}

func TestAllocateInsufficientBuffers(t *testing.T) {
	dev := &capturetest.Device{Grant: 1}
	pool := capture.NewPool(dev)

	err := pool.Allocate(4, 0)
	if !errors.Is(err, capture.ErrInsufficientBuffers) {
		t.Fatalf("Allocate error = %v, want ErrInsufficientBuffers", err)
	}
	if capture.KindOf(err) != capture.SetupFailure {
		t.Errorf("KindOf = %v, want %v", capture.KindOf(err), capture.SetupFailure)
	}
	if dev.Mapped != 0 {
		t.Errorf("mapped %d buffers after a short grant", dev.Mapped)
	}
	if pool.Count() != 0 {
		t.Errorf("Count() = %d, want 0", pool.Count())
	}
}

func TestAllocateMapFailedUnwinds(t *testing.T) {
	dev := &capturetest.Device{FailMap: map[uint32]error{2: unix.ENOMEM}}
	pool := capture.NewPool(dev)

	err := pool.Allocate(4, 0)
	if !errors.Is(err, capture.ErrMapFailed) {
		t.Fatalf("Allocate error = %v, want ErrMapFailed", err)
	}
	if !errors.Is(err, unix.ENOMEM) {
		t.Errorf("Allocate error %v does not carry the OS error", err)
	}
	if dev.Unmapped != dev.Mapped {
		t.Errorf("mapped %d, unmapped %d", dev.Mapped, dev.Unmapped)
	}
	if pool.Count() != 0 {
		t.Errorf("partial pool of %d buffers kept", pool.Count())
	}
	if last := dev.Requests[len(dev.Requests)-1]; last != 0 {
		t.Errorf("driver buffers not freed, last request %d", last)
	}
}

func TestAllocateLogsFailedFree(t *testing.T) {
	var logs bytes.Buffer
	dev := &capturetest.Device{
		FailMap:  map[uint32]error{1: unix.ENOMEM},
		FailFree: unix.EBUSY,
	}
	pool := capture.NewPool(dev)
	pool.SetLogger(slog.New(slog.NewTextHandler(&logs, nil)))

	if err := pool.Allocate(2, 0); !errors.Is(err, capture.ErrMapFailed) {
		t.Fatalf("Allocate error = %v, want ErrMapFailed", err)
	}
	if !strings.Contains(logs.String(), "can not free driver buffers") {
		t.Errorf("failed free not logged: %q", logs.String())
	}
}

func TestAllocateShortBuffer(t *testing.T) {
	dev := &capturetest.Device{Length: 32}
	pool := capture.NewPool(dev)

	if err := pool.Allocate(2, 64); !errors.Is(err, capture.ErrMapFailed) {
		t.Fatalf("Allocate error = %v, want ErrMapFailed", err)
	}
}

func TestGetOutOfRange(t *testing.T) {
	pool := capture.NewPool(&capturetest.Device{})
	if err := pool.Allocate(2, 0); err != nil {
		t.Fatal(err)
	}

	for _, index := range []capture.BufferIndex{2, 3, 1 << 31} {
		_, err := pool.Get(index)
		if !errors.Is(err, capture.ErrIndexOutOfRange) {
			t.Errorf("Get(%d) error = %v, want ErrIndexOutOfRange", index, err)
		}
		if capture.KindOf(err) != capture.BoundsViolation {
			t.Errorf("Get(%d) kind = %v", index, capture.KindOf(err))
		}
	}
}

func TestReleaseRefusesQueuedBuffers(t *testing.T) {
	dev := &capturetest.Device{}
	pool := capture.NewPool(dev)
	if err := pool.Allocate(3, 0); err != nil {
		t.Fatal(err)
	}
	stream := capture.NewStream(dev, pool)
	if err := stream.Start(); err != nil {
		t.Fatal(err)
	}

	if err := pool.Release(); !errors.Is(err, capture.ErrBufferBusy) {
		t.Fatalf("Release while streaming = %v, want ErrBufferBusy", err)
	}
	if err := pool.Resize(128); !errors.Is(err, capture.ErrBufferBusy) {
		t.Fatalf("Resize while streaming = %v, want ErrBufferBusy", err)
	}
	if dev.Unmapped != 0 {
		t.Errorf("unmapped %d buffers while queued", dev.Unmapped)
	}

	if err := stream.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := pool.Release(); err != nil {
		t.Fatalf("Release after stop: %v", err)
	}
	if dev.Unmapped != 3 {
		t.Errorf("unmapped %d buffers, want 3", dev.Unmapped)
	}
}

func TestResize(t *testing.T) {
	dev := &capturetest.Device{Length: 256}
	pool := capture.NewPool(dev)
	if err := pool.Allocate(3, 64); err != nil {
		t.Fatal(err)
	}
	if err := pool.Resize(128); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if pool.Count() != 3 {
		t.Errorf("Count() = %d after resize, want 3", pool.Count())
	}
	if dev.Unmapped != 3 || dev.Mapped != 6 {
		t.Errorf("mapped %d unmapped %d, want 6 and 3", dev.Mapped, dev.Unmapped)
	}
}

func TestBytesWhileQueued(t *testing.T) {
	dev := &capturetest.Device{}
	pool := capture.NewPool(dev)
	if err := pool.Allocate(2, 0); err != nil {
		t.Fatal(err)
	}
	stream := capture.NewStream(dev, pool)
	if err := stream.Start(); err != nil {
		t.Fatal(err)
	}
	defer stream.Stop()

	b, _ := pool.Get(0)
	if _, err := b.Bytes(); !errors.Is(err, capture.ErrBufferBusy) {
		t.Errorf("Bytes() on queued buffer = %v, want ErrBufferBusy", err)
	}
}
