package bridge

// Status is the return code of every exported function.
type Status = int32

const (
	StatusOK    Status = 0
	StatusError Status = -1
)

// ErrorKind classifies a failure. It is not encoded in the status code.
type ErrorKind int32

const (
	// KindInvalidArgument: null pointer, bad UTF-8, bad projection or selection.
	KindInvalidArgument ErrorKind = iota + 1
	// KindResourceOpen: bad URI, missing file, incompatible schema.
	KindResourceOpen
	// KindIO: failure while writing, reading or streaming.
	KindIO
	// KindConversion: failure between the C Data Interface and Arrow.
	KindConversion
	// KindRuntime: the executor could not be built or a task panicked.
	KindRuntime
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindResourceOpen:
		return "resource_open"
	case KindIO:
		return "io"
	case KindConversion:
		return "conversion"
	case KindRuntime:
		return "runtime"
	default:
		return "unknown"
	}
}
