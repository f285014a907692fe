package bigmat

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/calvinalkan/bigmat/internal/fs"
	"github.com/calvinalkan/bigmat/internal/ipc"
)

const segmentPerm = 0o600

// SharedMemory is a matrix backed by named shared-memory segments
// (files in the namespace directory, /dev/shm on Linux, mapped
// MAP_SHARED). The segments outlive any one process; they are removed
// only when the last attached handle calls Destroy.
type SharedMemory struct {
	base
	sharedCore

	fsys    fs.FS
	regions []*region
}

// SharedOptions configures [CreateSharedMemory] and
// [ConnectSharedMemory]. Shape is not self-describing in the backing
// store: connect callers must supply the same shape parameters used at
// creation (normally via a [Descriptor]).
type SharedOptions struct {
	Rows       int
	Cols       int
	Type       ElementType
	Separated  bool
	ExtraBytes int

	// Fill is the optional initial element value. Only applied by
	// create; connect attaches to existing data.
	Fill *float64

	RowNames []string
	ColNames []string

	// Dir overrides the namespace directory. Empty selects the
	// platform default ([ipc.DefaultDir]). All attachers of one matrix
	// must use the same directory.
	Dir string
}

// CreateSharedMemory creates a fresh shared-memory matrix and attaches
// to it as the first owner (reference count 1).
//
// If any segment cannot be allocated, every segment already created by
// this call is removed and the reference counter is torn down before the
// error is returned — no partially created resource is left behind.
func CreateSharedMemory(opts SharedOptions) (*SharedMemory, error) {
	if err := checkShape(opts.Rows, opts.Cols, opts.Type, opts.ExtraBytes); err != nil {
		return nil, err
	}

	ns := ipc.NewNamespace(opts.Dir)

	uuid, err := ns.Names().Next()
	if err != nil {
		return nil, err
	}

	m := &SharedMemory{
		base: base{
			rows:       opts.Rows,
			cols:       opts.Cols,
			etype:      opts.Type,
			separated:  opts.Separated,
			extraBytes: opts.ExtraBytes,
		},
		fsys: fs.NewReal(),
	}

	setup := setupMutex(ns, uuid)
	if err := setup.ReadWriteLock(); err != nil {
		return nil, err
	}

	m.initShared(ns, uuid, uuid, opts.Cols)

	if err := m.allocateSegments(); err != nil {
		_ = unmapAll(m.regions)
		m.removeSegments()
		_ = m.counter.Destroy()
		_ = setup.Unlock()
		_ = setup.Destroy()

		return nil, err
	}

	if _, err := m.counter.Increment(); err != nil {
		m.removeSegments()
		_ = unmapAll(m.regions)
		_ = m.counter.Destroy()
		_ = setup.Unlock()
		_ = setup.Destroy()

		return nil, err
	}

	if err := setup.Unlock(); err != nil {
		return nil, err
	}

	// The transient setup lock's OS name is removed once creation is
	// done; the durable objects persist under the counter/mutex names.
	if err := setup.Destroy(); err != nil {
		return nil, err
	}

	if err := m.applyNames(opts.RowNames, opts.ColNames); err != nil {
		_ = m.Destroy()

		return nil, err
	}

	if opts.Fill != nil {
		m.fill(*opts.Fill)
	}

	return m, nil
}

// ConnectSharedMemory attaches to an existing shared-memory matrix
// created elsewhere, possibly in another process, and increments its
// reference count.
//
// A missing segment propagates the underlying [os.ErrNotExist]. A shape
// mismatch with the true layout is not detected (the supplied shape is
// trusted), but the column accessors are clamped to the bytes actually
// mapped, so an overstated shape cannot address unmapped memory.
func ConnectSharedMemory(uuid string, opts SharedOptions) (*SharedMemory, error) {
	if err := checkShape(opts.Rows, opts.Cols, opts.Type, opts.ExtraBytes); err != nil {
		return nil, err
	}

	ns := ipc.NewNamespace(opts.Dir)

	m := &SharedMemory{
		base: base{
			rows:       opts.Rows,
			cols:       opts.Cols,
			etype:      opts.Type,
			separated:  opts.Separated,
			extraBytes: opts.ExtraBytes,
		},
		fsys: fs.NewReal(),
	}

	setup := setupMutex(ns, uuid)
	if err := setup.ReadWriteLock(); err != nil {
		return nil, err
	}

	m.initShared(ns, uuid, uuid, opts.Cols)

	if err := m.openSegments(); err != nil {
		_ = unmapAll(m.regions)
		_ = setup.Unlock()
		_ = setup.Destroy()

		return nil, err
	}

	if _, err := m.counter.Increment(); err != nil {
		_ = unmapAll(m.regions)
		_ = setup.Unlock()
		_ = setup.Destroy()

		return nil, err
	}

	if err := setup.Unlock(); err != nil {
		return nil, err
	}

	if err := setup.Destroy(); err != nil {
		return nil, err
	}

	if err := m.applyNames(opts.RowNames, opts.ColNames); err != nil {
		_ = m.Destroy()

		return nil, err
	}

	return m, nil
}

// Destroy detaches this handle: it decrements the reference count and
// unmaps this process's view. When this was the last live handle
// anywhere it also removes the segments and every named IPC object from
// the OS. The handle is inert afterwards.
func (m *SharedMemory) Destroy() error {
	if m.destroyed {
		return ErrDestroyed
	}

	setup := setupMutex(m.ns, m.sharedName)
	if err := setup.ReadWriteLock(); err != nil {
		return err
	}

	remaining, err := m.counter.Decrement()
	if err != nil {
		_ = setup.Unlock()

		return err
	}

	var firstErr error

	if remaining == 0 {
		m.removeSegments()

		if err := m.teardownShared(); err != nil {
			firstErr = err
		}
	}

	if err := unmapAll(m.regions); err != nil && firstErr == nil {
		firstErr = err
	}

	m.regions = nil
	m.columns = nil
	m.destroyed = true

	if err := setup.Unlock(); err != nil && firstErr == nil {
		firstErr = err
	}

	if err := setup.Destroy(); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}

// segmentPath maps a segment name into the namespace directory.
func (m *SharedMemory) segmentPath(name string) string {
	return filepath.Join(m.ns.Dir(), name)
}

// segmentNames lists the OS-level segment names backing this matrix:
// one per column when separated, one for the whole matrix otherwise.
func (m *SharedMemory) segmentNames() []string {
	if !m.separated {
		return []string{m.sharedName}
	}

	names := make([]string, m.cols)
	for i := range names {
		names[i] = columnResourceName(m.sharedName, i)
	}

	return names
}

// allocateSegments creates the fresh segments sized for the declared
// shape and maps them. Caller rolls back on error.
func (m *SharedMemory) allocateSegments() error {
	width := m.etype.Width()

	if m.separated {
		size := int64(m.rows*width + m.extraBytes)
		bufs := make([][]byte, m.cols)

		for i := 0; i < m.cols; i++ {
			r, err := m.createSegment(columnResourceName(m.sharedName, i), size)
			if err != nil {
				return err
			}

			m.regions = append(m.regions, r)
			bufs[i] = r.data
		}

		m.sliceSeparated(bufs)

		return nil
	}

	size := int64(m.rows*m.cols*width + m.extraBytes)

	r, err := m.createSegment(m.sharedName, size)
	if err != nil {
		return err
	}

	m.regions = append(m.regions, r)
	m.sliceContiguous(r.data)

	return nil
}

// openSegments maps existing segments. Each mapping is clamped to the
// smaller of the declared size and the segment's real size.
func (m *SharedMemory) openSegments() error {
	width := m.etype.Width()

	if m.separated {
		declared := int64(m.rows*width + m.extraBytes)
		bufs := make([][]byte, m.cols)

		for i := 0; i < m.cols; i++ {
			r, err := m.openSegment(columnResourceName(m.sharedName, i), declared)
			if err != nil {
				return err
			}

			m.regions = append(m.regions, r)
			bufs[i] = r.data
		}

		m.sliceSeparated(bufs)

		return nil
	}

	declared := int64(m.rows*m.cols*width + m.extraBytes)

	r, err := m.openSegment(m.sharedName, declared)
	if err != nil {
		return err
	}

	m.regions = append(m.regions, r)
	m.sliceContiguous(r.data)

	return nil
}

func (m *SharedMemory) createSegment(name string, size int64) (*region, error) {
	path := m.segmentPath(name)

	f, err := m.fsys.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, segmentPerm)
	if err != nil {
		return nil, fmt.Errorf("bigmat: create segment %q: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	if err := f.Truncate(size); err != nil {
		_ = m.fsys.Remove(path)

		return nil, fmt.Errorf("bigmat: size segment %q: %w", name, err)
	}

	r, err := mapFile(f, size)
	if err != nil {
		_ = m.fsys.Remove(path)

		return nil, err
	}

	return r, nil
}

func (m *SharedMemory) openSegment(name string, declared int64) (*region, error) {
	path := m.segmentPath(name)

	f, err := m.fsys.OpenFile(path, os.O_RDWR, segmentPerm)
	if err != nil {
		return nil, fmt.Errorf("bigmat: open segment %q: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("bigmat: stat segment %q: %w", name, err)
	}

	size := min(declared, info.Size())
	if size <= 0 {
		return nil, fmt.Errorf("bigmat: segment %q is empty", name)
	}

	return mapFile(f, size)
}

// removeSegments unlinks every segment that exists. Best-effort, used
// for rollback after partial creation and for final teardown.
func (m *SharedMemory) removeSegments() {
	for _, name := range m.segmentNames() {
		_ = m.fsys.Remove(m.segmentPath(name))
	}
}

var _ Matrix = (*SharedMemory)(nil)
