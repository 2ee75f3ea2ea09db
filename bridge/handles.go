package bridge

/*
#include <stdint.h>
#include <stdlib.h>
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"
)

// Handles given to C are malloc'd cells holding a cgo.Handle. The cell
// address is what the caller sees; it stays stable and is never moved by
// the Go runtime.

func newHandle(v any) unsafe.Pointer {
	cell := (*C.uintptr_t)(C.malloc(C.sizeof_uintptr_t))
	*cell = C.uintptr_t(cgo.NewHandle(v))
	return unsafe.Pointer(cell)
}

func handleValue(ptr unsafe.Pointer) any {
	return cgo.Handle(*(*C.uintptr_t)(ptr)).Value()
}

func deleteHandle(ptr unsafe.Pointer) {
	cgo.Handle(*(*C.uintptr_t)(ptr)).Delete()
	C.free(ptr)
}

// lookup returns the object behind ptr if it has type T.
func lookup[T any](ptr unsafe.Pointer) (T, bool) {
	v, ok := handleValue(ptr).(T)
	return v, ok
}

func setPointer(out unsafe.Pointer, v unsafe.Pointer) {
	*(*unsafe.Pointer)(out) = v
}

func goString(ptr unsafe.Pointer) string {
	return C.GoString((*C.char)(ptr))
}

// cStrings copies n C strings from a char* array. ok is false if any entry
// is null.
func cStrings(ptr unsafe.Pointer, n uintptr) (out []string, ok bool) {
	entries := unsafe.Slice((**C.char)(ptr), n)
	out = make([]string, n)
	for i, e := range entries {
		if e == nil {
			return nil, false
		}
		out[i] = C.GoString(e)
	}
	return out, true
}

func copyUint32s(ptr unsafe.Pointer, n uintptr) []uint32 {
	return append([]uint32(nil), unsafe.Slice((*uint32)(ptr), n)...)
}
