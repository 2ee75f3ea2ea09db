package colfile

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnsupportedType = errors.New("unsupported data type")
	ErrWriterFinished  = errors.New("writer already finished")
	ErrWriterClosed    = errors.New("writer is released")
	ErrReaderClosed    = errors.New("reader is released")
	ErrStreamClosed    = errors.New("stream is released")
)

// Stage names the step of an operation that failed.
type Stage int

const (
	StageResolve Stage = iota + 1
	StageParsePath
	StageSchema
	StageCreateSink
	StageCreateWriter
	StageOpenObject
	StageOpenReader
	StageProjection
	StageSelection
	StageReadStream
)

var stageNames = map[Stage]string{
	StageResolve:      "resolve uri",
	StageParsePath:    "parse path",
	StageSchema:       "validate schema",
	StageCreateSink:   "create sink",
	StageCreateWriter: "create writer",
	StageOpenObject:   "open object",
	StageOpenReader:   "open reader",
	StageProjection:   "projection",
	StageSelection:    "row selection",
	StageReadStream:   "read stream",
}

func (s Stage) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// OpError records the stage and object of a failed Create, Open or
// ReadStream call.
type OpError struct {
	Stage Stage
	URI   string
	Err   error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.URI, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

func opErr(stage Stage, uri string, err error) error {
	return &OpError{Stage: stage, URI: uri, Err: err}
}

// StageOf returns the failing stage of err, or 0 when err carries none.
func StageOf(err error) Stage {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Stage
	}
	return 0
}
