package bigmat

import (
	"fmt"

	"github.com/calvinalkan/bigmat/internal/ipc"
)

// Cross-process resource names derived from a shared matrix identifier.
// These are wire-format: independently written attachers must reproduce
// them byte for byte, so they are never restructured.
const (
	columnSuffix      = "_column_"
	columnMutexSuffix = "mutex"
	structuralSuffix  = "_mutex_lock"
	counterSuffix     = "_counter"
	setupMutexSuffix  = "_counter_mutex"
)

func columnResourceName(sharedName string, col int) string {
	return fmt.Sprintf("%s%s%d", sharedName, columnSuffix, col)
}

func columnMutexName(sharedName string, col int) string {
	return columnResourceName(sharedName, col) + columnMutexSuffix
}

// sharedCore is the state every cross-process matrix kind adds on top of
// [base]: the unique identifier, one named mutex per column, a
// structural mutex guarding acquisition of the column-mutex set, and the
// reference counter tracking live attachments across all processes.
type sharedCore struct {
	uuid       string
	sharedName string
	ns         *ipc.Namespace

	columnMutexes []*ipc.Mutex
	structural    *ipc.Mutex
	counter       *ipc.Counter

	destroyed bool
}

// initShared builds this handle's mutex and counter handles for
// sharedName. Handle construction is create-or-open, so the first
// attacher creates the OS objects and later attachers open them.
func (s *sharedCore) initShared(ns *ipc.Namespace, uuid, sharedName string, cols int) {
	s.uuid = uuid
	s.sharedName = sharedName
	s.ns = ns

	s.counter = ns.Counter(sharedName + counterSuffix)
	s.structural = ns.Mutex(sharedName + structuralSuffix)

	s.columnMutexes = make([]*ipc.Mutex, cols)
	for i := range s.columnMutexes {
		s.columnMutexes[i] = ns.Mutex(columnMutexName(sharedName, i))
	}
}

// UUID returns the matrix's unique identifier, assigned at creation.
func (s *sharedCore) UUID() string {
	return s.uuid
}

// SharedName returns the prefix all of the matrix's OS resource names
// derive from.
func (s *sharedCore) SharedName() string {
	return s.sharedName
}

// ReadLock acquires each listed column's mutex in shared mode, in list
// order. The structural mutex is held only across the acquisition
// sequence — it prevents two callers from interleaving partial
// acquisition of overlapping column sets, not data access.
func (s *sharedCore) ReadLock(cols []int) error {
	return s.lockColumns(cols, func(m *ipc.Mutex) error { return m.ReadLock() })
}

// ReadWriteLock acquires each listed column's mutex exclusively, in list
// order, under the same structural-mutex bracket as [sharedCore.ReadLock].
func (s *sharedCore) ReadWriteLock(cols []int) error {
	return s.lockColumns(cols, func(m *ipc.Mutex) error { return m.ReadWriteLock() })
}

// Unlock releases each listed column's mutex in list order. Release
// never blocks, so the structural mutex is not taken.
func (s *sharedCore) Unlock(cols []int) error {
	if s.destroyed {
		return ErrDestroyed
	}

	for _, col := range cols {
		if err := s.checkColumn(col); err != nil {
			return err
		}

		if err := s.columnMutexes[col].Unlock(); err != nil {
			return err
		}
	}

	return nil
}

func (s *sharedCore) lockColumns(cols []int, acquire func(*ipc.Mutex) error) error {
	if s.destroyed {
		return ErrDestroyed
	}

	for _, col := range cols {
		if err := s.checkColumn(col); err != nil {
			return err
		}
	}

	if err := s.structural.ReadWriteLock(); err != nil {
		return err
	}

	for i, col := range cols {
		if err := acquire(s.columnMutexes[col]); err != nil {
			// Release what was already acquired so a failed call leaves
			// no column locked.
			for _, held := range cols[:i] {
				_ = s.columnMutexes[held].Unlock()
			}

			_ = s.structural.Unlock()

			return err
		}
	}

	return s.structural.Unlock()
}

func (s *sharedCore) checkColumn(col int) error {
	if col < 0 || col >= len(s.columnMutexes) {
		return fmt.Errorf("%w: %d of %d", ErrColumnRange, col, len(s.columnMutexes))
	}

	return nil
}

// setupMutex returns the transient mutex serializing create/connect/
// destroy for a shared name. It is the same OS lock as the reference
// counter's guard ([ipc.Counter.Mutex]), so counter updates are atomic
// with segment setup and teardown. Its OS name is removed again after
// each bracketed section; [ipc.Mutex] handles the unlink/recreate races
// that removal opens up.
func setupMutex(ns *ipc.Namespace, sharedName string) *ipc.Mutex {
	return ns.Mutex(sharedName + setupMutexSuffix)
}

// teardownShared removes every named IPC object belonging to this
// matrix: all column mutexes, the structural mutex, and the counter.
// Called only by the handle that drove the reference count to zero.
func (s *sharedCore) teardownShared() error {
	var firstErr error

	for _, m := range s.columnMutexes {
		if err := m.Destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := s.structural.Destroy(); err != nil && firstErr == nil {
		firstErr = err
	}

	if err := s.counter.Destroy(); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}
