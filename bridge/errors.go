package bridge

import (
	"errors"
	"fmt"
	"strings"
	"unsafe"

	"github.com/isesword/colfile-go-bridge/internal/logging"
)

// FallbackMessage replaces an error text that cannot be handed to C.
const FallbackMessage = "Failed to convert to CString"

// Error is a classified failure of one exported call.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func nullPointer(op, args string) *Error {
	return newError(KindInvalidArgument, op, "Null pointer passed to function for %s", args)
}

// KindOf returns the kind of err, or 0 when it is not an *Error.
func KindOf(err error) ErrorKind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return 0
}

// errorSink is the caller's message buffer.
type errorSink struct {
	buf  unsafe.Pointer
	size uintptr
}

// write copies msg into the buffer, truncated to size-1 bytes and always
// NUL-terminated. A null buffer or zero size is left untouched.
func (s errorSink) write(msg string) {
	if s.buf == nil || s.size == 0 {
		return
	}
	if strings.IndexByte(msg, 0) >= 0 {
		msg = FallbackMessage
	}
	dst := unsafe.Slice((*byte)(s.buf), s.size)
	n := copy(dst[:s.size-1], msg)
	dst[n] = 0
}

// fail reports err through the sink and returns StatusError.
func (s errorSink) fail(err error) Status {
	var be *Error
	if !errors.As(err, &be) {
		be = &Error{Kind: KindIO, Err: err}
	}
	logging.WithComponent("bridge").Debug("call failed", "op", be.Op, "kind", be.Kind, "error", be.Err)
	s.write(err.Error())
	return StatusError
}
