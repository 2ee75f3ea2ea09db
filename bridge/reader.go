package bridge

import (
	"context"
	"unsafe"

	"github.com/isesword/colfile-go-bridge/colfile"
)

func readerArg(op string, ptr unsafe.Pointer) (*colfile.Reader, error) {
	r, ok := lookup[*colfile.Reader](ptr)
	if !ok {
		return nil, newError(KindInvalidArgument, op, "handle passed for file_reader_ptr is not a reader")
	}
	return r, nil
}

// CreateReader opens path and stores the reader handle in *out. Batches read
// through it are allocated outside the Go heap.
func CreateReader(path, out unsafe.Pointer, errMsg unsafe.Pointer, errSize uintptr) Status {
	const op = "create_reader"
	return call(op, errorSink{errMsg, errSize}, func(ctx context.Context) error {
		if path == nil || out == nil {
			return nullPointer(op, "file_path or file_reader_ptr")
		}
		uri, err := pathArg(op, path)
		if err != nil {
			return err
		}
		r, err := colfile.OpenWithAllocator(ctx, uri, exportAllocator)
		switch colfile.StageOf(err) {
		case 0:
		case colfile.StageResolve:
			return newError(KindResourceOpen, op, "Failed to create object store from uri: %w", err)
		case colfile.StageParsePath:
			return newError(KindInvalidArgument, op, "Failed to parse path: %w", err)
		case colfile.StageOpenObject:
			return newError(KindResourceOpen, op, "Failed to open file for scheduler %w", err)
		default:
			return newError(KindResourceOpen, op, "Failed to create file reader %w", err)
		}
		setPointer(out, newHandle(r))
		return nil
	})
}

// GetSchema exports the full file schema into *out.
func GetSchema(reader, out unsafe.Pointer, errMsg unsafe.Pointer, errSize uintptr) Status {
	const op = "get_schema"
	return call(op, errorSink{errMsg, errSize}, func(ctx context.Context) error {
		if reader == nil || out == nil {
			return nullPointer(op, "file_reader_ptr or output_schema_ptr")
		}
		r, err := readerArg(op, reader)
		if err != nil {
			return err
		}
		exportSchema(r.Schema(), out)
		return nil
	})
}

// NumRows stores the file row count in *out.
func NumRows(reader, out unsafe.Pointer, errMsg unsafe.Pointer, errSize uintptr) Status {
	const op = "num_rows"
	return call(op, errorSink{errMsg, errSize}, func(ctx context.Context) error {
		if reader == nil || out == nil {
			return nullPointer(op, "file_reader_ptr or num_rows")
		}
		r, err := readerArg(op, reader)
		if err != nil {
			return err
		}
		*(*uint64)(out) = r.NumRows()
		return nil
	})
}

// ReaderFormatVersion stores the version the file was written at.
func ReaderFormatVersion(reader, major, minor unsafe.Pointer, errMsg unsafe.Pointer, errSize uintptr) Status {
	const op = "reader_format_version"
	return call(op, errorSink{errMsg, errSize}, func(ctx context.Context) error {
		if reader == nil || major == nil || minor == nil {
			return nullPointer(op, "file_reader_ptr or major or minor")
		}
		r, err := readerArg(op, reader)
		if err != nil {
			return err
		}
		v := r.FormatVersion()
		*(*uint32)(major) = v.Major
		*(*uint32)(minor) = v.Minor
		return nil
	})
}

// ReleaseReader destroys the handle. Streams created from it stay valid and
// keep the file open until they are released.
func ReleaseReader(reader unsafe.Pointer, errMsg unsafe.Pointer, errSize uintptr) Status {
	const op = "release_reader"
	return call(op, errorSink{errMsg, errSize}, func(ctx context.Context) error {
		if reader == nil {
			return nullPointer(op, "file_reader_ptr")
		}
		r, err := readerArg(op, reader)
		if err != nil {
			return err
		}
		deleteHandle(reader)
		if err := r.Close(); err != nil {
			return newError(KindIO, op, "Failed to release reader: %w", err)
		}
		return nil
	})
}
