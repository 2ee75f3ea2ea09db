package bridge

import (
	"context"
	"errors"
	"unicode/utf8"
	"unsafe"

	"github.com/isesword/colfile-go-bridge/colfile"
	"github.com/isesword/colfile-go-bridge/internal/rt"
)

// call runs fn as one task on the shared runtime and blocks until it is
// done. Failures, including a runtime that could not be built, are written
// to errs.
func call(op string, errs errorSink, fn func(ctx context.Context) error) Status {
	r, err := rt.Default()
	if err != nil {
		return errs.fail(&Error{Kind: KindRuntime, Op: op, Err: err})
	}
	_, err = rt.Block(r, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	if err != nil {
		if errors.Is(err, rt.ErrTaskPanicked) || errors.Is(err, rt.ErrClosed) {
			var be *Error
			if !errors.As(err, &be) {
				err = &Error{Kind: KindRuntime, Op: op, Err: err}
			}
		}
		return errs.fail(err)
	}
	return StatusOK
}

// pathArg reads a NUL-terminated UTF-8 path.
func pathArg(op string, ptr unsafe.Pointer) (string, error) {
	p := goString(ptr)
	if !utf8.ValidString(p) {
		return "", newError(KindInvalidArgument, op, "Invalid UTF-8 sequence in file path")
	}
	return p, nil
}

// kindOfStage maps a colfile failure to an error kind.
func kindOfStage(err error) ErrorKind {
	switch colfile.StageOf(err) {
	case colfile.StageProjection, colfile.StageSelection:
		return KindInvalidArgument
	case colfile.StageSchema:
		return KindConversion
	case colfile.StageReadStream:
		if errors.Is(err, colfile.ErrInvalidArgument) {
			return KindInvalidArgument
		}
		return KindIO
	case 0:
		return KindIO
	default:
		return KindResourceOpen
	}
}
