// Package bigmat provides dense numeric matrices too large for casual
// copying, with a choice of backing store: process-local heap, named
// shared memory, or memory-mapped files.
//
// All three kinds expose the same [Matrix] surface. Elements are typed
// (1, 2, 4, or 8 bytes wide, see [ElementType]) and stored column-major,
// either as one contiguous block or as one buffer per column. Each
// integer type reserves its minimum value as a missing-value sentinel;
// the float64-based [Matrix.Get] and [Matrix.Set] translate it to and
// from NaN.
//
// # Basic Usage
//
//	m, err := bigmat.NewLocal(bigmat.LocalOptions{
//	    Rows: 1_000_000,
//	    Cols: 4,
//	    Type: bigmat.Double,
//	})
//	if err != nil {
//	    // handle [ErrShape]/[ErrType]
//	}
//	defer m.Destroy()
//
//	m.Set(0, 0, 3.14)
//	v := m.Get(0, 0)
//
//	// Typed zero-copy access to a whole column.
//	col, err := bigmat.Column[float64](m, 0)
//
// # Sharing
//
// [SharedMemory] and [FileBacked] matrices are shared across processes.
// Creation returns the first handle; [Matrix.Destroy] detaches a handle
// and the last detach anywhere removes the backing OS objects. A
// [Descriptor] carries everything another process needs to [Attach],
// since the raw storage does not describe its own shape.
//
// # Concurrency
//
// Element access never locks. Callers needing isolation bracket access
// with [Matrix.ReadLock], [Matrix.ReadWriteLock], and [Matrix.Unlock],
// which take cross-process per-column locks on the shared kinds and do
// nothing on [Local]. Lock column lists in ascending order everywhere or
// overlapping sets can deadlock.
package bigmat
