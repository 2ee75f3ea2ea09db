package bridge

import (
	"context"
	"errors"
	"io"
	"unsafe"

	"github.com/isesword/colfile-go-bridge/colfile"
)

func streamArg(op string, ptr unsafe.Pointer) (*colfile.Stream, error) {
	s, ok := lookup[*colfile.Stream](ptr)
	if !ok {
		return nil, newError(KindInvalidArgument, op, "handle passed for stream_reader_ptr is not a stream")
	}
	return s, nil
}

// StreamArgs are the scalar and array arguments of create_stream_reader.
type StreamArgs struct {
	BatchSize   uint32
	Readahead   uint32
	Names       unsafe.Pointer // const char* const*
	NameCount   uintptr
	RowIDs      unsafe.Pointer // const uint32_t*
	RowIDsCount uintptr
}

// CreateStreamReader opens a cursor over reader and stores its handle in
// *out. A zero name count reads every column; a zero row count reads every
// row.
func CreateStreamReader(reader, out unsafe.Pointer, args StreamArgs, errMsg unsafe.Pointer, errSize uintptr) Status {
	const op = "create_stream_reader"
	return call(op, errorSink{errMsg, errSize}, func(ctx context.Context) error {
		if reader == nil || out == nil {
			return nullPointer(op, "file_reader_ptr or stream_reader_ptr")
		}
		r, err := readerArg(op, reader)
		if err != nil {
			return err
		}

		opts := colfile.StreamOptions{
			BatchSize: args.BatchSize,
			Readahead: args.Readahead,
		}
		if args.NameCount > 0 {
			if args.Names == nil {
				return nullPointer(op, "projection_column_names, while projection_column_count > 0")
			}
			names, ok := cStrings(args.Names, args.NameCount)
			if !ok {
				return nullPointer(op, "an entry of projection_column_names")
			}
			opts.Columns = names
		}
		if args.RowIDsCount > 0 {
			if args.RowIDs == nil {
				return nullPointer(op, "read_row_ids, while read_row_count > 0")
			}
			opts.Selection = colfile.Rows(copyUint32s(args.RowIDs, args.RowIDsCount))
		}

		s, err := r.ReadStream(ctx, opts)
		if err != nil {
			kind := kindOfStage(err)
			if colfile.StageOf(err) == colfile.StageProjection {
				return newError(kind, op, "Failed to create projection %w", err)
			}
			return newError(kind, op, "Failed to read stream %w", err)
		}
		setPointer(out, newHandle(s))
		return nil
	})
}

// StreamSchema exports the projected schema of a stream into *out.
func StreamSchema(stream, out unsafe.Pointer, errMsg unsafe.Pointer, errSize uintptr) Status {
	const op = "stream_schema"
	return call(op, errorSink{errMsg, errSize}, func(ctx context.Context) error {
		if stream == nil || out == nil {
			return nullPointer(op, "stream_reader_ptr or output_schema_ptr")
		}
		s, err := streamArg(op, stream)
		if err != nil {
			return err
		}
		exportSchema(s.Schema(), out)
		return nil
	})
}

// NextBatch exports the next batch into arr/schema and clears *eof, or sets
// *eof once the stream is exhausted. On failure the outputs are untouched.
func NextBatch(stream, arr, schema, eof unsafe.Pointer, errMsg unsafe.Pointer, errSize uintptr) Status {
	const op = "next_batch"
	return call(op, errorSink{errMsg, errSize}, func(ctx context.Context) error {
		if stream == nil || arr == nil || schema == nil || eof == nil {
			return nullPointer(op, "stream_reader_ptr or output_array_ptr or output_schema_ptr or is_eof")
		}
		s, err := streamArg(op, stream)
		if err != nil {
			return err
		}
		rec, err := s.Next(ctx)
		if errors.Is(err, io.EOF) {
			*(*bool)(eof) = true
			return nil
		}
		if err != nil {
			return newError(KindIO, op, "Failed to next batch, %w", err)
		}
		defer rec.Release()
		exportBatch(rec, arr, schema)
		*(*bool)(eof) = false
		return nil
	})
}

// ReleaseStreamReader destroys the stream handle, dropping any batches it
// decoded ahead.
func ReleaseStreamReader(stream unsafe.Pointer, errMsg unsafe.Pointer, errSize uintptr) Status {
	const op = "release_stream_reader"
	return call(op, errorSink{errMsg, errSize}, func(ctx context.Context) error {
		if stream == nil {
			return nullPointer(op, "stream_reader_ptr")
		}
		s, err := streamArg(op, stream)
		if err != nil {
			return err
		}
		deleteHandle(stream)
		return s.Close()
	})
}
