package capture

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies capture errors by how the caller may recover.
type Kind int

const (
	// SetupFailure means the pool could not be built. The session is unusable.
	SetupFailure Kind = iota + 1
	// ProtocolFailure means the driver rejected a queue or stream request.
	// The streaming attempt is over; start may be retried after the pool is rebuilt.
	ProtocolFailure
	// BoundsViolation means the driver returned a buffer index outside the pool.
	BoundsViolation
	// ConversionPrecondition means a transform was handed a degenerate buffer.
	ConversionPrecondition
)

func (k Kind) String() string {
	switch k {
	case SetupFailure:
		return "setup failure"
	case ProtocolFailure:
		return "protocol failure"
	case BoundsViolation:
		return "bounds violation"
	case ConversionPrecondition:
		return "conversion precondition"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

var (
	ErrInsufficientBuffers = errors.New("insufficient buffer memory")
	ErrMapFailed           = errors.New("failed to map buffer")
	ErrBufferBusy          = errors.New("buffer is queued to the driver")
	ErrIndexOutOfRange     = errors.New("buffer index out of range")
	ErrQueueFailed         = errors.New("failed to enqueue buffer")
	ErrStreamOnFailed      = errors.New("could not turn on streaming")
	ErrStreamOffFailed     = errors.New("could not turn off streaming")
	ErrCaptureFailed       = errors.New("could not read from device")
	ErrNotStreaming        = errors.New("device is not streaming")
	ErrAlreadyStreaming    = errors.New("device is already streaming")
	ErrNotRequeued         = errors.New("previous buffer was not requeued")
)

// Error carries the failing step, the buffer involved and the OS error.
type Error struct {
	Kind Kind
	// Op is the request or step that failed, e.g. "VIDIOC_QBUF".
	Op string
	// Index is the buffer involved, or -1.
	Index int
	// Code is one of the Err* values of this package, or a pixel error for
	// ConversionPrecondition.
	Code error
	// Err is the underlying OS error, if any.
	Err error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Code.Error()
	if e.Index >= 0 {
		msg = fmt.Sprintf("%s (buffer %d)", msg, e.Index)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Code}
	}
	return []error{e.Code, e.Err}
}

// KindOf reports the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func newError(kind Kind, op string, index int, code, err error) *Error {
	return &Error{Kind: kind, Op: op, Index: index, Code: code, Err: err}
}
