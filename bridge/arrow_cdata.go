package bridge

// Arrow C Data Interface adapter.
// https://arrow.apache.org/docs/format/CDataInterface.html

import (
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/cdata"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/arrow/memory/mallocator"

	"github.com/isesword/colfile-go-bridge/colfile"
)

// exportAllocator backs the arrays of every batch read through the C
// surface, so their buffers live in C memory until the caller releases them.
var exportAllocator memory.Allocator = mallocator.NewMallocator()

// importSchema moves a caller schema into Go and checks the file format can
// store it. The caller's descriptor is released either way.
func importSchema(ptr unsafe.Pointer) (*arrow.Schema, error) {
	sc, err := cdata.ImportCArrowSchema((*cdata.CArrowSchema)(ptr))
	if err != nil {
		return nil, err
	}
	if err := colfile.ValidateSchema(sc); err != nil {
		return nil, err
	}
	return sc, nil
}

// importBatch moves a caller array/schema pair into a record batch. Both
// descriptors are consumed, including on failure.
func importBatch(arr, sc unsafe.Pointer) (arrow.RecordBatch, error) {
	carr := (*cdata.CArrowArray)(arr)
	csc := (*cdata.CArrowSchema)(sc)
	defer cdata.ReleaseCArrowSchema(csc)
	rec, err := cdata.ImportCRecordBatch(carr, csc)
	if err != nil {
		cdata.ReleaseCArrowArray(carr)
		return nil, err
	}
	return rec, nil
}

// exportSchema fills a caller descriptor. The caller releases it.
func exportSchema(sc *arrow.Schema, out unsafe.Pointer) {
	cdata.ExportArrowSchema(sc, (*cdata.CArrowSchema)(out))
}

// exportBatch fills a caller array/schema pair with rec as a struct array.
// The caller releases both.
func exportBatch(rec arrow.RecordBatch, arr, sc unsafe.Pointer) {
	cdata.ExportArrowRecordBatch(rec, (*cdata.CArrowArray)(arr), (*cdata.CArrowSchema)(sc))
}
