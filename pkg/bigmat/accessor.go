package bigmat

import (
	"fmt"
	"unsafe"
)

// Element constrains the native element types addressable through
// [Column]: one per type tag.
type Element interface {
	~int8 | ~int16 | ~int32 | ~float64
}

// Column returns column col of m as a typed, writable slice over the
// backing storage, regardless of layout or backing-store kind. Writes
// through the slice are visible to every attached process for the shared
// kinds.
//
// The slice length is the row count clamped to the byte range actually
// mapped, so a handle attached with an overstated shape cannot read or
// write past its mapping. Row indexing beyond that is the caller's
// responsibility (it panics, like any slice).
//
// T must match the matrix's element type; a width mismatch would
// reinterpret raw bytes and is a programming error, so Column panics.
// Returns [ErrColumnRange] for an out-of-range column index.
func Column[T Element](m Matrix, col int) ([]T, error) {
	if col < 0 || col >= m.Cols() {
		return nil, fmt.Errorf("%w: %d of %d", ErrColumnRange, col, m.Cols())
	}

	var zero T

	width := int(unsafe.Sizeof(zero))
	if width != m.ElemType().Width() {
		panic(fmt.Sprintf("bigmat: %T does not match element type %s", zero, m.ElemType()))
	}

	buf := m.columnBytes(col)
	if len(buf) < width {
		return nil, nil
	}

	return unsafe.Slice((*T)(unsafe.Pointer(&buf[0])), len(buf)/width), nil
}
