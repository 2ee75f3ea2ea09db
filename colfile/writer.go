package colfile

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/isesword/colfile-go-bridge/internal/logging"
	"github.com/isesword/colfile-go-bridge/internal/objstore"
)

type writerState int

const (
	writerOpen writerState = iota
	writerFinished
	writerClosed
)

// Writer appends record batches to a new file.
//
// The file only becomes visible at its location once Finish succeeds. A
// Writer is not safe for concurrent use.
type Writer struct {
	uri        string
	schema     *arrow.Schema
	fileSchema *arrow.Schema
	sink       objstore.Sink
	out        *countingWriter
	fw         *pqarrow.FileWriter
	rows       int64
	state      writerState
	log        *slog.Logger
}

// Create opens a writer for a new file at uri with the default options.
func Create(ctx context.Context, uri string, schema *arrow.Schema) (*Writer, error) {
	return CreateWithOptions(ctx, uri, schema, WriterOptions{})
}

// CreateWithOptions opens a writer for a new file at uri.
func CreateWithOptions(ctx context.Context, uri string, schema *arrow.Schema, opts WriterOptions) (*Writer, error) {
	store, raw, err := objstore.FromURI(uri)
	if err != nil {
		return nil, opErr(StageResolve, uri, err)
	}
	key, err := objstore.ParsePath(raw)
	if err != nil {
		return nil, opErr(StageParsePath, uri, err)
	}
	if err := ValidateSchema(schema); err != nil {
		return nil, opErr(StageSchema, uri, err)
	}
	props, err := opts.writerProperties()
	if err != nil {
		return nil, opErr(StageCreateWriter, uri, err)
	}
	fv := opts.FormatVersion
	if fv.IsZero() {
		fv = DefaultFormatVersion
	}
	fileSchema := withMetadata(schema, opts.Metadata, fv)

	sink, err := store.Create(ctx, key)
	if err != nil {
		return nil, opErr(StageCreateSink, uri, err)
	}
	out := &countingWriter{w: sink}
	fw, err := pqarrow.NewFileWriter(fileSchema, out, props, pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
	if err != nil {
		sink.Abort()
		return nil, opErr(StageCreateWriter, uri, err)
	}

	w := &Writer{
		uri:        uri,
		schema:     schema,
		fileSchema: fileSchema,
		sink:       sink,
		out:        out,
		fw:         fw,
		log:        logging.WithPath("writer", uri),
	}
	w.log.Debug("writer created", "fields", schema.NumFields())
	return w, nil
}

// Schema returns the schema every written batch must match.
func (w *Writer) Schema() *arrow.Schema {
	return w.schema
}

// Write appends rec. Each non-empty batch is flushed as its own row group,
// split further when it exceeds the maximum row group length.
func (w *Writer) Write(ctx context.Context, rec arrow.RecordBatch) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !sameFields(rec.Schema(), w.schema) {
		return fmt.Errorf("%w: batch schema %s does not match writer schema %s", ErrInvalidArgument, rec.Schema(), w.schema)
	}
	if rec.NumRows() == 0 {
		return nil
	}

	rebased := array.NewRecordBatch(w.fileSchema, rec.Columns(), rec.NumRows())
	defer rebased.Release()
	if err := w.fw.Write(rebased); err != nil {
		return err
	}
	w.rows += rec.NumRows()
	return nil
}

// Tell reports the bytes handed to storage so far. It never decreases and
// stays valid after Finish.
func (w *Writer) Tell() uint64 {
	return uint64(w.out.n)
}

// Rows reports the rows written so far.
func (w *Writer) Rows() int64 {
	return w.rows
}

// Finish writes the footer and publishes the file. It returns the total row
// count. A failed Finish is final: the partial file is discarded.
func (w *Writer) Finish(ctx context.Context) (int64, error) {
	if err := w.checkOpen(); err != nil {
		return 0, err
	}
	w.state = writerFinished
	if err := ctx.Err(); err != nil {
		w.sink.Abort()
		return 0, err
	}
	if err := w.fw.Close(); err != nil {
		w.sink.Abort()
		return 0, err
	}
	if err := w.sink.Commit(); err != nil {
		return 0, err
	}
	w.log.Debug("writer finished", "rows", w.rows, "bytes", w.out.n)
	return w.rows, nil
}

// Close releases the writer. An unfinished file is discarded.
func (w *Writer) Close() error {
	switch w.state {
	case writerClosed:
		return nil
	case writerOpen:
		w.state = writerClosed
		w.log.Debug("writer released before finish, discarding", "rows", w.rows)
		return w.sink.Abort()
	default:
		w.state = writerClosed
		return nil
	}
}

func (w *Writer) checkOpen() error {
	switch w.state {
	case writerFinished:
		return ErrWriterFinished
	case writerClosed:
		return ErrWriterClosed
	}
	return nil
}

// countingWriter tracks the bytes written through it. It has no Close, so
// closing the engine writer leaves the sink to Commit or Abort.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func sameFields(a, b *arrow.Schema) bool {
	if a.NumFields() != b.NumFields() {
		return false
	}
	for i := 0; i < a.NumFields(); i++ {
		if !a.Field(i).Equal(b.Field(i)) {
			return false
		}
	}
	return true
}

// withMetadata returns sc with kv and the format version key added to its
// schema metadata. The version key is stripped again by the reader.
func withMetadata(sc *arrow.Schema, kv map[string]string, fv FormatVersion) *arrow.Schema {
	md := sc.Metadata()
	keys := append([]string(nil), md.Keys()...)
	vals := append([]string(nil), md.Values()...)
	set := func(k, v string) {
		for i := range keys {
			if keys[i] == k {
				vals[i] = v
				return
			}
		}
		keys = append(keys, k)
		vals = append(vals, v)
	}
	for k, v := range kv {
		set(k, v)
	}
	set(formatVersionKey, fv.String())
	out := arrow.NewMetadata(keys, vals)
	return arrow.NewSchema(sc.Fields(), &out)
}
