package bridge

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/cdata"
	"github.com/apache/arrow-go/v18/arrow/memory/mallocator"
	"github.com/stretchr/testify/require"

	"github.com/isesword/colfile-go-bridge/colfile"
)

type errBuf []byte

func newErrBuf() errBuf { return make([]byte, 512) }

func (b errBuf) ptr() unsafe.Pointer { return unsafe.Pointer(&b[0]) }

func (b errBuf) size() uintptr { return uintptr(len(b)) }

func (b errBuf) String() string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

func cstr(s string) unsafe.Pointer {
	b := append([]byte(s), 0)
	return unsafe.Pointer(&b[0])
}

var abSchema = arrow.NewSchema([]arrow.Field{
	{Name: "a", Type: arrow.PrimitiveTypes.Int32},
	{Name: "b", Type: arrow.BinaryTypes.String, Nullable: true},
}, nil)

// abBatch exports rows [from, to) of {a: i, b: "row<i>"} as C descriptors.
func abBatch(from, to int) (*cdata.CArrowArray, *cdata.CArrowSchema) {
	alloc := mallocator.NewMallocator()
	bldr := array.NewRecordBuilder(alloc, abSchema)
	defer bldr.Release()
	for i := from; i < to; i++ {
		bldr.Field(0).(*array.Int32Builder).Append(int32(i))
		bldr.Field(1).(*array.StringBuilder).Append(fmt.Sprintf("row%d", i))
	}
	rec := bldr.NewRecord()
	defer rec.Release()

	var carr cdata.CArrowArray
	var csc cdata.CArrowSchema
	cdata.ExportArrowRecordBatch(rec, &carr, &csc)
	return &carr, &csc
}

func exportedSchema(sc *arrow.Schema) *cdata.CArrowSchema {
	var csc cdata.CArrowSchema
	cdata.ExportArrowSchema(sc, &csc)
	return &csc
}

func importedSchema(t *testing.T, csc *cdata.CArrowSchema) *arrow.Schema {
	t.Helper()
	sc, err := cdata.ImportCArrowSchema(csc)
	require.NoError(t, err)
	return sc
}

// writeAB writes one batch per [from, to) pair through the exported calls.
func writeAB(t *testing.T, path string, bounds ...[2]int) {
	t.Helper()
	eb := newErrBuf()
	var w unsafe.Pointer
	require.Equal(t, StatusOK, CreateWriter(cstr(path), unsafe.Pointer(exportedSchema(abSchema)), unsafe.Pointer(&w), eb.ptr(), eb.size()), eb.String())
	for _, b := range bounds {
		carr, csc := abBatch(b[0], b[1])
		require.Equal(t, StatusOK, WriteBatch(w, unsafe.Pointer(carr), unsafe.Pointer(csc), eb.ptr(), eb.size()), eb.String())
	}
	require.Equal(t, StatusOK, FinishWriter(w, eb.ptr(), eb.size()), eb.String())
	require.Equal(t, StatusOK, ReleaseWriter(w, eb.ptr(), eb.size()), eb.String())
}

func openReader(t *testing.T, path string) unsafe.Pointer {
	t.Helper()
	eb := newErrBuf()
	var r unsafe.Pointer
	require.Equal(t, StatusOK, CreateReader(cstr(path), unsafe.Pointer(&r), eb.ptr(), eb.size()), eb.String())
	require.NotNil(t, r)
	return r
}

// nextAB pulls one batch and decodes its columns by name.
func nextAB(t *testing.T, s unsafe.Pointer) (eof bool, as []int32, bs []string) {
	t.Helper()
	eb := newErrBuf()
	var carr cdata.CArrowArray
	var csc cdata.CArrowSchema
	require.Equal(t, StatusOK, NextBatch(s, unsafe.Pointer(&carr), unsafe.Pointer(&csc), unsafe.Pointer(&eof), eb.ptr(), eb.size()), eb.String())
	if eof {
		return true, nil, nil
	}
	defer cdata.ReleaseCArrowSchema(&csc)
	rec, err := cdata.ImportCRecordBatch(&carr, &csc)
	require.NoError(t, err)
	defer rec.Release()
	for i, f := range rec.Schema().Fields() {
		switch f.Name {
		case "a":
			as = append(as, rec.Column(i).(*array.Int32).Int32Values()...)
		case "b":
			col := rec.Column(i).(*array.String)
			for j := 0; j < col.Len(); j++ {
				bs = append(bs, col.Value(j))
			}
		}
	}
	return false, as, bs
}

func TestErrorSink(t *testing.T) {
	buf := make([]byte, 8)
	for i := range buf {
		buf[i] = 'x'
	}
	errorSink{unsafe.Pointer(&buf[0]), 8}.write("abcdefghij")
	require.Equal(t, []byte("abcdefg\x00"), buf)

	errorSink{unsafe.Pointer(&buf[0]), 8}.write("hi")
	require.Equal(t, "hi", errBuf(buf).String())

	errorSink{unsafe.Pointer(&buf[0]), 8}.write("bad\x00text")
	require.Equal(t, FallbackMessage[:7], errBuf(buf).String())

	full := newErrBuf()
	errorSink{full.ptr(), full.size()}.write("bad\x00text")
	require.Equal(t, "Failed to convert to CString", full.String())

	buf[0] = 'z'
	errorSink{unsafe.Pointer(&buf[0]), 0}.write("ignored")
	require.Equal(t, byte('z'), buf[0])

	require.NotPanics(t, func() { errorSink{nil, 16}.write("ignored") })

	one := []byte{'q'}
	errorSink{unsafe.Pointer(&one[0]), 1}.write("anything")
	require.Equal(t, byte(0), one[0])
}

func TestNullPointersLeaveOutputsUntouched(t *testing.T) {
	eb := newErrBuf()
	sentinel := unsafe.Pointer(&eb[len(eb)-1])

	out := sentinel
	require.Equal(t, StatusError, CreateWriter(nil, unsafe.Pointer(exportedSchema(abSchema)), unsafe.Pointer(&out), eb.ptr(), eb.size()))
	require.Equal(t, sentinel, out)
	require.Contains(t, eb.String(), "Null pointer passed to function for file_path")

	require.Equal(t, StatusError, CreateReader(nil, unsafe.Pointer(&out), eb.ptr(), eb.size()))
	require.Equal(t, sentinel, out)

	pos := uint64(42)
	require.Equal(t, StatusError, WriterTell(nil, unsafe.Pointer(&pos), eb.ptr(), eb.size()))
	require.Equal(t, uint64(42), pos)

	rows := uint64(7)
	require.Equal(t, StatusError, NumRows(nil, unsafe.Pointer(&rows), eb.ptr(), eb.size()))
	require.Equal(t, uint64(7), rows)

	eof := true
	require.Equal(t, StatusError, NextBatch(nil, nil, nil, unsafe.Pointer(&eof), eb.ptr(), eb.size()))
	require.True(t, eof)

	require.Equal(t, StatusError, CreateStreamReader(nil, unsafe.Pointer(&out), StreamArgs{BatchSize: 1}, eb.ptr(), eb.size()))
	require.Equal(t, sentinel, out)

	for _, st := range []Status{
		FinishWriter(nil, eb.ptr(), eb.size()),
		ReleaseWriter(nil, eb.ptr(), eb.size()),
		ReleaseReader(nil, eb.ptr(), eb.size()),
		ReleaseStreamReader(nil, eb.ptr(), eb.size()),
		GetSchema(nil, nil, eb.ptr(), eb.size()),
		StreamSchema(nil, nil, eb.ptr(), eb.size()),
	} {
		require.Equal(t, StatusError, st)
	}

	// A null error buffer still yields the failure status.
	require.Equal(t, StatusError, FinishWriter(nil, nil, 0))
}

func TestWriteThenReadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ab.parquet")
	eb := newErrBuf()

	var w unsafe.Pointer
	require.Equal(t, StatusOK, CreateWriter(cstr(path), unsafe.Pointer(exportedSchema(abSchema)), unsafe.Pointer(&w), eb.ptr(), eb.size()), eb.String())

	var before, again, after uint64
	require.Equal(t, StatusOK, WriterTell(w, unsafe.Pointer(&before), eb.ptr(), eb.size()))
	require.Equal(t, StatusOK, WriterTell(w, unsafe.Pointer(&again), eb.ptr(), eb.size()))
	require.Equal(t, before, again)

	carr, csc := abBatch(0, 10)
	require.Equal(t, StatusOK, WriteBatch(w, unsafe.Pointer(carr), unsafe.Pointer(csc), eb.ptr(), eb.size()), eb.String())
	require.Equal(t, StatusOK, WriterTell(w, unsafe.Pointer(&after), eb.ptr(), eb.size()))
	require.GreaterOrEqual(t, after, before)

	require.Equal(t, StatusOK, FinishWriter(w, eb.ptr(), eb.size()), eb.String())

	carr, csc = abBatch(0, 1)
	require.Equal(t, StatusError, WriteBatch(w, unsafe.Pointer(carr), unsafe.Pointer(csc), eb.ptr(), eb.size()))
	require.Contains(t, eb.String(), "Failed to write batch")
	require.Contains(t, eb.String(), colfile.ErrWriterFinished.Error())
	require.Equal(t, StatusOK, ReleaseWriter(w, eb.ptr(), eb.size()), eb.String())

	r := openReader(t, path)
	var rows uint64
	require.Equal(t, StatusOK, NumRows(r, unsafe.Pointer(&rows), eb.ptr(), eb.size()))
	require.Equal(t, uint64(10), rows)

	var csc2 cdata.CArrowSchema
	require.Equal(t, StatusOK, GetSchema(r, unsafe.Pointer(&csc2), eb.ptr(), eb.size()))
	got := importedSchema(t, &csc2)
	require.Equal(t, 2, got.NumFields())
	for i, f := range abSchema.Fields() {
		require.Equal(t, f.Name, got.Field(i).Name)
		require.True(t, arrow.TypeEqual(f.Type, got.Field(i).Type))
	}

	var major, minor uint32
	require.Equal(t, StatusOK, ReaderFormatVersion(r, unsafe.Pointer(&major), unsafe.Pointer(&minor), eb.ptr(), eb.size()))
	require.Equal(t, colfile.DefaultFormatVersion, colfile.FormatVersion{Major: major, Minor: minor})

	require.Equal(t, StatusOK, ReleaseReader(r, eb.ptr(), eb.size()))
}

func TestStreamSelectionAndProjection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sel.parquet")
	writeAB(t, path, [2]int{0, 4}, [2]int{4, 8})
	r := openReader(t, path)
	eb := newErrBuf()

	names := []unsafe.Pointer{cstr("b")}
	ids := []uint32{3, 1, 4}
	var s unsafe.Pointer
	require.Equal(t, StatusOK, CreateStreamReader(r, unsafe.Pointer(&s), StreamArgs{
		BatchSize:   16,
		Readahead:   2,
		Names:       unsafe.Pointer(&names[0]),
		NameCount:   1,
		RowIDs:      unsafe.Pointer(&ids[0]),
		RowIDsCount: 3,
	}, eb.ptr(), eb.size()), eb.String())

	var csc cdata.CArrowSchema
	require.Equal(t, StatusOK, StreamSchema(s, unsafe.Pointer(&csc), eb.ptr(), eb.size()))
	ss := importedSchema(t, &csc)
	require.Equal(t, 1, ss.NumFields())
	require.Equal(t, "b", ss.Field(0).Name)

	// Releasing the reader first keeps the stream usable.
	require.Equal(t, StatusOK, ReleaseReader(r, eb.ptr(), eb.size()))

	eof, as, bs := nextAB(t, s)
	require.False(t, eof)
	require.Empty(t, as)
	require.Equal(t, []string{"row3", "row1", "row4"}, bs)

	for i := 0; i < 3; i++ {
		eof, _, _ = nextAB(t, s)
		require.True(t, eof)
	}
	require.Equal(t, StatusOK, ReleaseStreamReader(s, eb.ptr(), eb.size()))
}

func TestStreamFullRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "full.parquet")
	writeAB(t, path, [2]int{0, 5}, [2]int{5, 9})
	r := openReader(t, path)
	eb := newErrBuf()
	defer ReleaseReader(r, eb.ptr(), eb.size())

	var s unsafe.Pointer
	require.Equal(t, StatusOK, CreateStreamReader(r, unsafe.Pointer(&s), StreamArgs{BatchSize: 4, Readahead: 1}, eb.ptr(), eb.size()), eb.String())
	defer ReleaseStreamReader(s, eb.ptr(), eb.size())

	var all []int32
	for {
		eof, as, _ := nextAB(t, s)
		if eof {
			break
		}
		all = append(all, as...)
	}
	require.Equal(t, []int32{0, 1, 2, 3, 4, 5, 6, 7, 8}, all)
}

func TestNextBatchReadFailureIsSticky(t *testing.T) {
	path := filepath.Join(t.TempDir(), "truncated.parquet")
	writeAB(t, path, [2]int{0, 10})
	r := openReader(t, path)
	eb := newErrBuf()
	defer ReleaseReader(r, eb.ptr(), eb.size())

	// The footer is already parsed; the data pages are gone.
	require.NoError(t, os.Truncate(path, 0))

	var s unsafe.Pointer
	require.Equal(t, StatusOK, CreateStreamReader(r, unsafe.Pointer(&s), StreamArgs{BatchSize: 100}, eb.ptr(), eb.size()), eb.String())
	defer ReleaseStreamReader(s, eb.ptr(), eb.size())

	var msgs []string
	for i := 0; i < 2; i++ {
		var carr cdata.CArrowArray
		var csc cdata.CArrowSchema
		eof := true
		fe := newErrBuf()
		status := NextBatch(s, unsafe.Pointer(&carr), unsafe.Pointer(&csc), unsafe.Pointer(&eof), fe.ptr(), fe.size())
		require.Equal(t, StatusError, status)
		require.True(t, eof)
		require.Equal(t, cdata.CArrowArray{}, carr)
		require.Equal(t, cdata.CArrowSchema{}, csc)
		require.Contains(t, fe.String(), "Failed to next batch, ")
		msgs = append(msgs, fe.String())
	}
	require.Equal(t, msgs[0], msgs[1])
}

func TestCreateStreamReaderErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "err.parquet")
	writeAB(t, path, [2]int{0, 3})
	r := openReader(t, path)
	eb := newErrBuf()
	defer ReleaseReader(r, eb.ptr(), eb.size())

	var s unsafe.Pointer
	unknown := []unsafe.Pointer{cstr("nope")}
	require.Equal(t, StatusError, CreateStreamReader(r, unsafe.Pointer(&s), StreamArgs{BatchSize: 1, Names: unsafe.Pointer(&unknown[0]), NameCount: 1}, eb.ptr(), eb.size()))
	require.Contains(t, eb.String(), "Failed to create projection")
	require.Nil(t, s)

	require.Equal(t, StatusError, CreateStreamReader(r, unsafe.Pointer(&s), StreamArgs{BatchSize: 1, NameCount: 2}, eb.ptr(), eb.size()))
	require.Contains(t, eb.String(), "projection_column_names, while projection_column_count > 0")

	withNull := []unsafe.Pointer{cstr("a"), nil}
	require.Equal(t, StatusError, CreateStreamReader(r, unsafe.Pointer(&s), StreamArgs{BatchSize: 1, Names: unsafe.Pointer(&withNull[0]), NameCount: 2}, eb.ptr(), eb.size()))
	require.Contains(t, eb.String(), "Null pointer")

	require.Equal(t, StatusError, CreateStreamReader(r, unsafe.Pointer(&s), StreamArgs{BatchSize: 1, RowIDsCount: 1}, eb.ptr(), eb.size()))
	require.Contains(t, eb.String(), "read_row_ids, while read_row_count > 0")

	ids := []uint32{0, 3}
	require.Equal(t, StatusError, CreateStreamReader(r, unsafe.Pointer(&s), StreamArgs{BatchSize: 1, RowIDs: unsafe.Pointer(&ids[0]), RowIDsCount: 2}, eb.ptr(), eb.size()))
	require.Contains(t, eb.String(), "Failed to read stream")

	require.Equal(t, StatusError, CreateStreamReader(r, unsafe.Pointer(&s), StreamArgs{}, eb.ptr(), eb.size()))
	require.Contains(t, eb.String(), "batch size")
	require.Nil(t, s)
}

func TestCreateReaderStages(t *testing.T) {
	eb := newErrBuf()
	var r unsafe.Pointer

	require.Equal(t, StatusError, CreateReader(cstr("s3://bucket/x.parquet"), unsafe.Pointer(&r), eb.ptr(), eb.size()))
	require.Contains(t, eb.String(), "Failed to create object store from uri")

	require.Equal(t, StatusError, CreateReader(cstr("memory://b/a//x.parquet"), unsafe.Pointer(&r), eb.ptr(), eb.size()))
	require.Contains(t, eb.String(), "Failed to parse path")

	require.Equal(t, StatusError, CreateReader(cstr(filepath.Join(t.TempDir(), "missing.parquet")), unsafe.Pointer(&r), eb.ptr(), eb.size()))
	require.Contains(t, eb.String(), "Failed to open file for scheduler")

	bad := []byte{'/', 't', 'm', 'p', '/', 0xff, 0xfe, 0}
	require.Equal(t, StatusError, CreateReader(unsafe.Pointer(&bad[0]), unsafe.Pointer(&r), eb.ptr(), eb.size()))
	require.Equal(t, "Invalid UTF-8 sequence in file path", eb.String())
	require.Nil(t, r)
}

func TestCreateWriterRejectsUnsupportedSchema(t *testing.T) {
	eb := newErrBuf()
	sc := arrow.NewSchema([]arrow.Field{
		{Name: "iv", Type: arrow.FixedWidthTypes.MonthInterval},
	}, nil)
	var w unsafe.Pointer
	path := filepath.Join(t.TempDir(), "bad.parquet")
	require.Equal(t, StatusError, CreateWriter(cstr(path), unsafe.Pointer(exportedSchema(sc)), unsafe.Pointer(&w), eb.ptr(), eb.size()))
	require.Contains(t, eb.String(), "Failed to convert FFI schema")
	require.Nil(t, w)
}

func TestCreateWriterWithOptions(t *testing.T) {
	opts, err := EncodeWriterOptions(colfile.WriterOptions{
		FormatVersion:     colfile.FormatV1_0,
		Compression:       "gzip",
		MaxRowGroupLength: 2,
		Metadata:          map[string]string{"source": "test"},
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "opts.parquet")
	eb := newErrBuf()
	var w unsafe.Pointer
	require.Equal(t, StatusOK, CreateWriterWithOptions(cstr(path), unsafe.Pointer(exportedSchema(abSchema)),
		unsafe.Pointer(&opts[0]), uintptr(len(opts)), unsafe.Pointer(&w), eb.ptr(), eb.size()), eb.String())
	carr, csc := abBatch(0, 5)
	require.Equal(t, StatusOK, WriteBatch(w, unsafe.Pointer(carr), unsafe.Pointer(csc), eb.ptr(), eb.size()), eb.String())
	require.Equal(t, StatusOK, FinishWriter(w, eb.ptr(), eb.size()), eb.String())
	require.Equal(t, StatusOK, ReleaseWriter(w, eb.ptr(), eb.size()))

	r := openReader(t, path)
	defer ReleaseReader(r, eb.ptr(), eb.size())
	var major, minor uint32
	require.Equal(t, StatusOK, ReaderFormatVersion(r, unsafe.Pointer(&major), unsafe.Pointer(&minor), eb.ptr(), eb.size()))
	require.Equal(t, uint32(1), major)
	require.Equal(t, uint32(0), minor)

	require.Equal(t, StatusError, CreateWriterWithOptions(cstr(path), unsafe.Pointer(exportedSchema(abSchema)),
		nil, 4, unsafe.Pointer(&w), eb.ptr(), eb.size()))
	require.Contains(t, eb.String(), "options_ptr")
}

func TestDecodeWriterOptions(t *testing.T) {
	opts, err := DecodeWriterOptions(nil)
	require.NoError(t, err)
	require.True(t, opts.FormatVersion.IsZero())

	data, err := EncodeWriterOptions(colfile.WriterOptions{FormatVersion: colfile.FormatV2_4, Compression: "zstd"})
	require.NoError(t, err)
	opts, err = DecodeWriterOptions(data)
	require.NoError(t, err)
	require.Equal(t, colfile.FormatV2_4, opts.FormatVersion)
	require.Equal(t, "zstd", opts.Compression)

	_, err = DecodeWriterOptions([]byte{0xff, 0xff, 0xff})
	require.Error(t, err)
}

func TestKindOf(t *testing.T) {
	err := nullPointer("op", "x")
	require.Equal(t, KindInvalidArgument, KindOf(err))
	require.Equal(t, ErrorKind(0), KindOf(fmt.Errorf("plain")))
	require.Equal(t, "invalid_argument", KindInvalidArgument.String())
}
