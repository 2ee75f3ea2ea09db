package colfile

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/metadata"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/isesword/colfile-go-bridge/internal/logging"
	"github.com/isesword/colfile-go-bridge/internal/objstore"
)

// Reader is an opened file. It is safe for concurrent use.
//
// Streams keep the file open: after Close, the underlying object is released
// once the last stream is closed.
type Reader struct {
	uri      string
	obj      objstore.Object
	meta     *metadata.FileMetaData
	schema   *arrow.Schema
	manifest *pqarrow.SchemaManifest
	offsets  []int64
	version  FormatVersion
	mem      memory.Allocator
	log      *slog.Logger

	mu      sync.Mutex
	streams int
	closed  bool
}

// Open opens the file at uri, decoding into Go memory.
func Open(ctx context.Context, uri string) (*Reader, error) {
	return OpenWithAllocator(ctx, uri, memory.DefaultAllocator)
}

// OpenWithAllocator opens the file at uri. The arrays of every batch read
// from it are allocated from mem; page decoding always uses Go memory.
func OpenWithAllocator(ctx context.Context, uri string, mem memory.Allocator) (*Reader, error) {
	store, raw, err := objstore.FromURI(uri)
	if err != nil {
		return nil, opErr(StageResolve, uri, err)
	}
	key, err := objstore.ParsePath(raw)
	if err != nil {
		return nil, opErr(StageParsePath, uri, err)
	}
	obj, err := store.Open(ctx, key)
	if err != nil {
		return nil, opErr(StageOpenObject, uri, err)
	}

	pf, err := file.NewParquetReader(io.NewSectionReader(obj, 0, obj.Size()),
		file.WithReadProps(pageReadProps()))
	if err != nil {
		obj.Close()
		return nil, opErr(StageOpenReader, uri, err)
	}
	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		obj.Close()
		return nil, opErr(StageOpenReader, uri, err)
	}
	schema, err := fr.Schema()
	if err != nil {
		obj.Close()
		return nil, opErr(StageOpenReader, uri, err)
	}

	meta := pf.MetaData()
	version := formatVersionOf(meta.Version())
	if v := meta.KeyValueMetadata().FindValue(formatVersionKey); v != nil {
		if fv, err := ParseFormatVersion(*v); err == nil {
			version = fv
		}
	} else if i := schema.Metadata().FindKey(formatVersionKey); i >= 0 {
		if fv, err := ParseFormatVersion(schema.Metadata().Values()[i]); err == nil {
			version = fv
		}
	}
	schema = withoutMetadataKey(schema, formatVersionKey)

	offsets := make([]int64, pf.NumRowGroups()+1)
	for i := 0; i < pf.NumRowGroups(); i++ {
		offsets[i+1] = offsets[i] + meta.RowGroup(i).NumRows()
	}

	r := &Reader{
		uri:      uri,
		obj:      obj,
		meta:     meta,
		schema:   schema,
		manifest: fr.Manifest,
		offsets:  offsets,
		version:  version,
		mem:      mem,
		log:      logging.WithPath("reader", uri),
	}
	r.log.Debug("reader opened", "rows", r.NumRows(), "row_groups", len(offsets)-1, "version", r.version)
	return r, nil
}

// Schema returns the full file schema.
func (r *Reader) Schema() *arrow.Schema {
	return r.schema
}

// NumRows returns the total row count.
func (r *Reader) NumRows() uint64 {
	return uint64(r.offsets[len(r.offsets)-1])
}

// NumRowGroups returns the number of row groups in the file.
func (r *Reader) NumRowGroups() int {
	return len(r.offsets) - 1
}

// FormatVersion returns the version the file was written at.
func (r *Reader) FormatVersion() FormatVersion {
	return r.version
}

// Metadata returns the file key/value metadata.
func (r *Reader) Metadata() map[string]string {
	kv := r.meta.KeyValueMetadata()
	out := make(map[string]string, kv.Len())
	for i, k := range kv.Keys() {
		if k == "ARROW:schema" || k == formatVersionKey {
			continue
		}
		out[k] = kv.Values()[i]
	}
	return out
}

// Close releases the reader. Streams already created stay usable.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.streams == 0 {
		return r.teardown()
	}
	r.log.Debug("reader released with live streams", "streams", r.streams)
	return nil
}

func (r *Reader) acquire() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrReaderClosed
	}
	r.streams++
	return nil
}

func (r *Reader) releaseStream() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streams--
	if r.closed && r.streams == 0 {
		if err := r.teardown(); err != nil {
			r.log.Warn("closing file failed", "error", err)
		}
	}
}

func (r *Reader) teardown() error {
	r.log.Debug("reader closed")
	return r.obj.Close()
}

// fileReader builds a private decoder over the shared object, reusing the
// footer parsed by Open.
func (r *Reader) fileReader() (*pqarrow.FileReader, error) {
	pf, err := file.NewParquetReader(io.NewSectionReader(r.obj, 0, r.obj.Size()),
		file.WithMetadata(r.meta),
		file.WithReadProps(pageReadProps()))
	if err != nil {
		return nil, err
	}
	return pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, r.mem)
}

// pageReadProps are the page decoder properties. Pages are decoded in Go
// memory whatever allocator the reader was opened with.
func pageReadProps() *parquet.ReaderProperties {
	return parquet.NewReaderProperties(memory.DefaultAllocator)
}

func withoutMetadataKey(sc *arrow.Schema, key string) *arrow.Schema {
	md := sc.Metadata()
	if md.FindKey(key) < 0 {
		return sc
	}
	var keys, vals []string
	for i, k := range md.Keys() {
		if k != key {
			keys = append(keys, k)
			vals = append(vals, md.Values()[i])
		}
	}
	if len(keys) == 0 {
		return arrow.NewSchema(sc.Fields(), nil)
	}
	out := arrow.NewMetadata(keys, vals)
	return arrow.NewSchema(sc.Fields(), &out)
}
