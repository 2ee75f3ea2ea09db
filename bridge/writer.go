package bridge

import (
	"context"
	"unsafe"

	"github.com/isesword/colfile-go-bridge/colfile"
)

func writerArg(op string, ptr unsafe.Pointer) (*colfile.Writer, error) {
	w, ok := lookup[*colfile.Writer](ptr)
	if !ok {
		return nil, newError(KindInvalidArgument, op, "handle passed for file_writer_ptr is not a writer")
	}
	return w, nil
}

// CreateWriter opens a writer for path at the default format version and
// stores its handle in *out. The schema descriptor is consumed once the
// arguments are checked.
func CreateWriter(path, schema, out unsafe.Pointer, errMsg unsafe.Pointer, errSize uintptr) Status {
	return createWriter("create_writer", path, schema, nil, 0, out, errorSink{errMsg, errSize})
}

// CreateWriterWithOptions is CreateWriter with a serialized
// google.protobuf.Struct of writer options.
func CreateWriterWithOptions(path, schema, opts unsafe.Pointer, optsLen uintptr, out unsafe.Pointer, errMsg unsafe.Pointer, errSize uintptr) Status {
	if opts == nil && optsLen > 0 {
		return errorSink{errMsg, errSize}.fail(nullPointer("create_writer_with_options", "options_ptr, while options_len > 0"))
	}
	return createWriter("create_writer_with_options", path, schema, opts, optsLen, out, errorSink{errMsg, errSize})
}

func createWriter(op string, path, schema, opts unsafe.Pointer, optsLen uintptr, out unsafe.Pointer, errs errorSink) Status {
	return call(op, errs, func(ctx context.Context) error {
		if path == nil || schema == nil || out == nil {
			return nullPointer(op, "file_path or schema_ptr or file_writer_ptr")
		}
		uri, err := pathArg(op, path)
		if err != nil {
			return err
		}
		options, err := DecodeWriterOptions(optionBytes(opts, optsLen))
		if err != nil {
			return newError(KindInvalidArgument, op, "Failed to parse writer options: %w", err)
		}
		sc, err := importSchema(schema)
		if err != nil {
			return newError(KindConversion, op, "Failed to convert FFI schema: %w", err)
		}

		w, err := colfile.CreateWithOptions(ctx, uri, sc, options)
		switch colfile.StageOf(err) {
		case 0:
		case colfile.StageCreateWriter:
			return newError(KindResourceOpen, op, "Failed to create file writer: %w", err)
		case colfile.StageSchema:
			return newError(KindConversion, op, "Failed to convert FFI schema: %w", err)
		default:
			return newError(KindResourceOpen, op, "Failed to create local writer: %w", err)
		}
		setPointer(out, newHandle(w))
		return nil
	})
}

// WriteBatch converts one array/schema pair and appends it. Both
// descriptors are consumed.
func WriteBatch(writer, arr, schema unsafe.Pointer, errMsg unsafe.Pointer, errSize uintptr) Status {
	const op = "write_batch"
	return call(op, errorSink{errMsg, errSize}, func(ctx context.Context) error {
		if writer == nil || arr == nil || schema == nil {
			return nullPointer(op, "file_writer_ptr or input_array_ptr or input_schema_ptr")
		}
		w, err := writerArg(op, writer)
		if err != nil {
			return err
		}
		rec, err := importBatch(arr, schema)
		if err != nil {
			return newError(KindConversion, op, "Failed to convert from FFI: %w", err)
		}
		defer rec.Release()
		if err := w.Write(ctx, rec); err != nil {
			return newError(KindIO, op, "Failed to write batch: %w", err)
		}
		return nil
	})
}

// WriterTell stores the bytes written so far in *pos.
func WriterTell(writer, pos unsafe.Pointer, errMsg unsafe.Pointer, errSize uintptr) Status {
	const op = "writer_tell"
	return call(op, errorSink{errMsg, errSize}, func(ctx context.Context) error {
		if writer == nil || pos == nil {
			return nullPointer(op, "file_writer_ptr or tell_pos")
		}
		w, err := writerArg(op, writer)
		if err != nil {
			return err
		}
		*(*uint64)(pos) = w.Tell()
		return nil
	})
}

// FinishWriter flushes and publishes the file.
func FinishWriter(writer unsafe.Pointer, errMsg unsafe.Pointer, errSize uintptr) Status {
	const op = "finish_writer"
	return call(op, errorSink{errMsg, errSize}, func(ctx context.Context) error {
		if writer == nil {
			return nullPointer(op, "file_writer_ptr")
		}
		w, err := writerArg(op, writer)
		if err != nil {
			return err
		}
		if _, err := w.Finish(ctx); err != nil {
			return newError(KindIO, op, "Failed to finish writer: %w", err)
		}
		return nil
	})
}

// ReleaseWriter destroys the handle. An unfinished file is discarded.
func ReleaseWriter(writer unsafe.Pointer, errMsg unsafe.Pointer, errSize uintptr) Status {
	const op = "release_writer"
	return call(op, errorSink{errMsg, errSize}, func(ctx context.Context) error {
		if writer == nil {
			return nullPointer(op, "file_writer_ptr")
		}
		w, err := writerArg(op, writer)
		if err != nil {
			return err
		}
		deleteHandle(writer)
		if err := w.Close(); err != nil {
			return newError(KindIO, op, "Failed to release writer: %w", err)
		}
		return nil
	})
}
