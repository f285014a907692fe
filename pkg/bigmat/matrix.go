package bigmat

import (
	"fmt"
	"math"
	"unsafe"
)

// Matrix is the uniform surface over the three backing-store kinds:
// process-local heap ([Local]), anonymous shared memory ([SharedMemory]),
// and memory-mapped regular files ([FileBacked]).
//
// Shape, element type, and layout are fixed at creation; only element
// values and row/column names mutate afterwards. The set of
// implementations is closed.
//
// Element access goes through [Column], [Matrix.Get], and [Matrix.Set].
// None of these synchronize the raw storage — callers needing isolation
// must bracket access with the locking operations, which are real
// cross-process locks on the shared kinds and no-ops on [Local].
type Matrix interface {
	// Rows returns the fixed row count.
	Rows() int
	// Cols returns the fixed column count.
	Cols() int
	// ElemType returns the element type tag.
	ElemType() ElementType
	// Separated reports whether storage is one buffer per column rather
	// than a single contiguous block.
	Separated() bool
	// ExtraBytes returns the padding reserved per allocation unit.
	ExtraBytes() int

	// RowNames returns the row names, or nil when unset.
	RowNames() []string
	// SetRowNames replaces the row names. The slice must be empty or
	// exactly Rows long; otherwise [ErrNames].
	SetRowNames(names []string) error
	// ColNames returns the column names, or nil when unset.
	ColNames() []string
	// SetColNames replaces the column names. The slice must be empty or
	// exactly Cols long; otherwise [ErrNames].
	SetColNames(names []string) error

	// Get reads element (row, col) as a float64, with the type's NA
	// sentinel mapped to NaN. Indices are not validated; out-of-range
	// access panics.
	Get(row, col int) float64
	// Set writes element (row, col). NaN and values outside the type's
	// native range store the NA sentinel (see [ElementType.Narrow]).
	Set(row, col int, v float64)

	// ReadLock acquires each listed column's lock in shared mode, in
	// list order. No-op on [Local]. Callers must pass column lists in a
	// globally consistent order (ascending) to avoid lock-order
	// deadlocks; the list is not reordered or deduplicated.
	ReadLock(cols []int) error
	// ReadWriteLock acquires each listed column's lock exclusively.
	ReadWriteLock(cols []int) error
	// Unlock releases each listed column's lock, in list order.
	Unlock(cols []int) error

	// Destroy releases this handle's resources. On the shared kinds the
	// handle that drives the cross-process reference count to zero also
	// removes the backing OS objects. Handles are single-use.
	Destroy() error

	// columnBytes returns the raw storage of one column, clamped to the
	// byte range actually mapped. Closed-set marker.
	columnBytes(col int) []byte
}

// base carries the state common to every matrix kind: shape, codec tag,
// names, and the per-column pointer table. Columns are byte slices into
// the backing storage (one allocation or mapping per column when
// separated, views into a single block otherwise), so element access is
// identical across kinds and no separate pointer-table ownership exists
// to get wrong.
type base struct {
	rows       int
	cols       int
	etype      ElementType
	separated  bool
	extraBytes int
	rowNames   []string
	colNames   []string
	columns    [][]byte
}

func (b *base) Rows() int             { return b.rows }
func (b *base) Cols() int             { return b.cols }
func (b *base) ElemType() ElementType { return b.etype }
func (b *base) Separated() bool       { return b.separated }
func (b *base) ExtraBytes() int       { return b.extraBytes }

func (b *base) RowNames() []string { return b.rowNames }
func (b *base) ColNames() []string { return b.colNames }

func (b *base) SetRowNames(names []string) error {
	if len(names) != 0 && len(names) != b.rows {
		return fmt.Errorf("%w: %d row names for %d rows", ErrNames, len(names), b.rows)
	}

	b.rowNames = names

	return nil
}

func (b *base) SetColNames(names []string) error {
	if len(names) != 0 && len(names) != b.cols {
		return fmt.Errorf("%w: %d column names for %d columns", ErrNames, len(names), b.cols)
	}

	b.colNames = names

	return nil
}

func (b *base) columnBytes(col int) []byte {
	return b.columns[col]
}

// Get reads one element, translating the NA sentinel to NaN.
func (b *base) Get(row, col int) float64 {
	buf := b.columns[col]

	switch b.etype {
	case Char:
		v := *(*int8)(unsafe.Pointer(&buf[row]))
		if v == naChar {
			return math.NaN()
		}

		return float64(v)
	case Short:
		v := *(*int16)(unsafe.Pointer(&buf[row*2]))
		if v == naShort {
			return math.NaN()
		}

		return float64(v)
	case Int:
		v := *(*int32)(unsafe.Pointer(&buf[row*4]))
		if v == naInt {
			return math.NaN()
		}

		return float64(v)
	case Double:
		return *(*float64)(unsafe.Pointer(&buf[row*8]))
	}

	panic(fmt.Sprintf("bigmat: unknown element type tag %d", int(b.etype)))
}

// Set writes one element after narrowing v to the native domain.
func (b *base) Set(row, col int, v float64) {
	buf := b.columns[col]
	v = b.etype.Narrow(v)

	switch b.etype {
	case Char:
		*(*int8)(unsafe.Pointer(&buf[row])) = int8(v)
	case Short:
		*(*int16)(unsafe.Pointer(&buf[row*2])) = int16(v)
	case Int:
		*(*int32)(unsafe.Pointer(&buf[row*4])) = int32(v)
	case Double:
		*(*float64)(unsafe.Pointer(&buf[row*8])) = v
	default:
		panic(fmt.Sprintf("bigmat: unknown element type tag %d", int(b.etype)))
	}
}

// fill sets every element to v (narrowed once, stored everywhere).
func (b *base) fill(v float64) {
	for col := 0; col < b.cols; col++ {
		n := len(b.columns[col]) / b.etype.Width()
		for row := 0; row < n; row++ {
			b.Set(row, col, v)
		}
	}
}

// applyNames validates and installs optional initial names.
func (b *base) applyNames(rowNames, colNames []string) error {
	if err := b.SetRowNames(rowNames); err != nil {
		return err
	}

	return b.SetColNames(colNames)
}

// sliceContiguous builds the per-column table over one block. Column
// views are clamped to the block's real length, rounded down to whole
// elements, so a short mapping (e.g. a connect with overstated shape,
// or a backing file truncated out-of-band) can never address unmapped
// bytes, not even the tail of a partially mapped element.
func (b *base) sliceContiguous(block []byte) {
	width := b.etype.Width()
	colBytes := b.rows * width
	b.columns = make([][]byte, b.cols)

	for i := 0; i < b.cols; i++ {
		start := i * colBytes
		if start >= len(block) {
			b.columns[i] = nil

			continue
		}

		end := start + min(colBytes, (len(block)-start)/width*width)
		b.columns[i] = block[start:end:end]
	}
}

// sliceSeparated builds the per-column table over independent buffers,
// clamping each to whole elements within its real length and excluding
// the padding tail.
func (b *base) sliceSeparated(bufs [][]byte) {
	width := b.etype.Width()
	colBytes := b.rows * width
	b.columns = make([][]byte, b.cols)

	for i, buf := range bufs {
		end := min(colBytes, len(buf)/width*width)
		b.columns[i] = buf[:end:end]
	}
}

// checkShape validates creation parameters shared by all kinds.
func checkShape(rows, cols int, etype ElementType, extraBytes int) error {
	if rows <= 0 || cols <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrShape, rows, cols)
	}

	if !etype.Valid() {
		return fmt.Errorf("%w: tag %d", ErrType, int(etype))
	}

	if extraBytes < 0 {
		return fmt.Errorf("%w: negative extra bytes", ErrShape)
	}

	return nil
}
