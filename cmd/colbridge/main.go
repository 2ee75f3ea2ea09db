// Command colbridge is built with -buildmode=c-shared. It exposes the
// columnar file bridge as plain C functions; see colbridge.h.
//
// Every function returns 0 on success and -1 on failure, in which case a
// NUL-terminated message is written to error_message (at most
// error_size-1 bytes).
package main

/*
#include "colbridge_abi.h"
*/
import "C"

import (
	"unsafe"

	"github.com/isesword/colfile-go-bridge/bridge"
)

//export create_writer
func create_writer(filePath *C.char, schema *C.struct_ArrowSchema, out **C.ColWriter, errMsg *C.char, errSize C.size_t) C.int32_t {
	return C.int32_t(bridge.CreateWriter(unsafe.Pointer(filePath), unsafe.Pointer(schema), unsafe.Pointer(out),
		unsafe.Pointer(errMsg), uintptr(errSize)))
}

//export create_writer_with_options
func create_writer_with_options(filePath *C.char, schema *C.struct_ArrowSchema, options *C.uint8_t, optionsLen C.size_t,
	out **C.ColWriter, errMsg *C.char, errSize C.size_t) C.int32_t {
	return C.int32_t(bridge.CreateWriterWithOptions(unsafe.Pointer(filePath), unsafe.Pointer(schema),
		unsafe.Pointer(options), uintptr(optionsLen), unsafe.Pointer(out), unsafe.Pointer(errMsg), uintptr(errSize)))
}

//export write_batch
func write_batch(writer *C.ColWriter, arr *C.struct_ArrowArray, schema *C.struct_ArrowSchema, errMsg *C.char, errSize C.size_t) C.int32_t {
	return C.int32_t(bridge.WriteBatch(unsafe.Pointer(writer), unsafe.Pointer(arr), unsafe.Pointer(schema),
		unsafe.Pointer(errMsg), uintptr(errSize)))
}

// write_c_arrow_array is the historical name of write_batch.
//
//export write_c_arrow_array
func write_c_arrow_array(writer *C.ColWriter, arr *C.struct_ArrowArray, schema *C.struct_ArrowSchema, errMsg *C.char, errSize C.size_t) C.int32_t {
	return write_batch(writer, arr, schema, errMsg, errSize)
}

//export writer_tell
func writer_tell(writer *C.ColWriter, pos *C.uint64_t, errMsg *C.char, errSize C.size_t) C.int32_t {
	return C.int32_t(bridge.WriterTell(unsafe.Pointer(writer), unsafe.Pointer(pos), unsafe.Pointer(errMsg), uintptr(errSize)))
}

//export finish_writer
func finish_writer(writer *C.ColWriter, errMsg *C.char, errSize C.size_t) C.int32_t {
	return C.int32_t(bridge.FinishWriter(unsafe.Pointer(writer), unsafe.Pointer(errMsg), uintptr(errSize)))
}

//export release_writer
func release_writer(writer *C.ColWriter, errMsg *C.char, errSize C.size_t) C.int32_t {
	return C.int32_t(bridge.ReleaseWriter(unsafe.Pointer(writer), unsafe.Pointer(errMsg), uintptr(errSize)))
}

//export create_reader
func create_reader(filePath *C.char, out **C.ColReader, errMsg *C.char, errSize C.size_t) C.int32_t {
	return C.int32_t(bridge.CreateReader(unsafe.Pointer(filePath), unsafe.Pointer(out), unsafe.Pointer(errMsg), uintptr(errSize)))
}

//export get_schema
func get_schema(reader *C.ColReader, out *C.struct_ArrowSchema, errMsg *C.char, errSize C.size_t) C.int32_t {
	return C.int32_t(bridge.GetSchema(unsafe.Pointer(reader), unsafe.Pointer(out), unsafe.Pointer(errMsg), uintptr(errSize)))
}

//export num_rows
func num_rows(reader *C.ColReader, out *C.uint64_t, errMsg *C.char, errSize C.size_t) C.int32_t {
	return C.int32_t(bridge.NumRows(unsafe.Pointer(reader), unsafe.Pointer(out), unsafe.Pointer(errMsg), uintptr(errSize)))
}

//export reader_format_version
func reader_format_version(reader *C.ColReader, major, minor *C.uint32_t, errMsg *C.char, errSize C.size_t) C.int32_t {
	return C.int32_t(bridge.ReaderFormatVersion(unsafe.Pointer(reader), unsafe.Pointer(major), unsafe.Pointer(minor),
		unsafe.Pointer(errMsg), uintptr(errSize)))
}

//export create_stream_reader
func create_stream_reader(reader *C.ColReader, out **C.ColStream, batchSize, batchReadahead C.uint32_t,
	names **C.char, nameCount C.size_t, rowIDs *C.uint32_t, rowCount C.size_t,
	errMsg *C.char, errSize C.size_t) C.int32_t {
	args := bridge.StreamArgs{
		BatchSize:   uint32(batchSize),
		Readahead:   uint32(batchReadahead),
		Names:       unsafe.Pointer(names),
		NameCount:   uintptr(nameCount),
		RowIDs:      unsafe.Pointer(rowIDs),
		RowIDsCount: uintptr(rowCount),
	}
	return C.int32_t(bridge.CreateStreamReader(unsafe.Pointer(reader), unsafe.Pointer(out), args, unsafe.Pointer(errMsg), uintptr(errSize)))
}

//export stream_schema
func stream_schema(stream *C.ColStream, out *C.struct_ArrowSchema, errMsg *C.char, errSize C.size_t) C.int32_t {
	return C.int32_t(bridge.StreamSchema(unsafe.Pointer(stream), unsafe.Pointer(out), unsafe.Pointer(errMsg), uintptr(errSize)))
}

//export next_batch
func next_batch(stream *C.ColStream, arr *C.struct_ArrowArray, schema *C.struct_ArrowSchema, isEOF *C.bool,
	errMsg *C.char, errSize C.size_t) C.int32_t {
	return C.int32_t(bridge.NextBatch(unsafe.Pointer(stream), unsafe.Pointer(arr), unsafe.Pointer(schema), unsafe.Pointer(isEOF),
		unsafe.Pointer(errMsg), uintptr(errSize)))
}

//export release_reader
func release_reader(reader *C.ColReader, errMsg *C.char, errSize C.size_t) C.int32_t {
	return C.int32_t(bridge.ReleaseReader(unsafe.Pointer(reader), unsafe.Pointer(errMsg), uintptr(errSize)))
}

//export release_stream_reader
func release_stream_reader(stream *C.ColStream, errMsg *C.char, errSize C.size_t) C.int32_t {
	return C.int32_t(bridge.ReleaseStreamReader(unsafe.Pointer(stream), unsafe.Pointer(errMsg), uintptr(errSize)))
}

func main() {}
