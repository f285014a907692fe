package bigmat

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/calvinalkan/bigmat/internal/fs"
	"github.com/calvinalkan/bigmat/internal/ipc"
)

const backingFilePerm = 0o644

// FileBacked is a matrix whose storage is one or more regular files
// mapped MAP_SHARED, so the data both outlives every process and
// survives reboots. The cross-process shared name is the backing file
// name with the matrix identifier appended, which lets two matrices
// reuse one file name in different directories without their IPC
// objects colliding.
type FileBacked struct {
	base
	sharedCore

	fsys     fs.FS
	fileName string
	filePath string
	preserve bool
	regions  []*region
}

// FileOptions configures [CreateFileBacked] and [ConnectFileBacked].
type FileOptions struct {
	Rows       int
	Cols       int
	Type       ElementType
	Separated  bool
	ExtraBytes int

	// Fill is the optional initial element value. Only applied by
	// create.
	Fill *float64

	RowNames []string
	ColNames []string

	// FileName names the backing file. Separated layouts derive one
	// file per column from it.
	FileName string
	// FilePath is the directory holding the backing files.
	FilePath string

	// Preserve keeps the backing files on disk when the last handle is
	// destroyed. Each handle carries its own flag; the last destroyer's
	// flag decides.
	Preserve bool

	// Dir overrides the IPC namespace directory. Empty selects the
	// platform default. The backing files themselves live in FilePath.
	Dir string
}

// CreateFileBacked creates the backing files, maps them, and attaches as
// the first owner (reference count 1). Existing files of the same name
// are truncated and reused.
func CreateFileBacked(opts FileOptions) (*FileBacked, error) {
	if err := checkShape(opts.Rows, opts.Cols, opts.Type, opts.ExtraBytes); err != nil {
		return nil, err
	}

	if opts.FileName == "" {
		return nil, fmt.Errorf("%w: empty file name", ErrShape)
	}

	ns := ipc.NewNamespace(opts.Dir)

	uuid, err := ns.Names().Next()
	if err != nil {
		return nil, err
	}

	m := newFileBacked(opts)
	sharedName := opts.FileName + uuid

	setup := setupMutex(ns, sharedName)
	if err := setup.ReadWriteLock(); err != nil {
		return nil, err
	}

	m.initShared(ns, uuid, sharedName, opts.Cols)

	if err := m.createFiles(); err != nil {
		_ = unmapAll(m.regions)
		m.removeFiles()
		_ = m.counter.Destroy()
		_ = setup.Unlock()
		_ = setup.Destroy()

		return nil, err
	}

	if _, err := m.counter.Increment(); err != nil {
		m.removeFiles()
		_ = unmapAll(m.regions)
		_ = m.counter.Destroy()
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

	if opts.Fill != nil {
		m.fill(*opts.Fill)
	}

	return m, nil
}

// ConnectFileBacked attaches to existing backing files created under the
// given matrix identifier and increments the reference count. A missing
// file propagates the underlying [os.ErrNotExist].
func ConnectFileBacked(uuid string, opts FileOptions) (*FileBacked, error) {
	if err := checkShape(opts.Rows, opts.Cols, opts.Type, opts.ExtraBytes); err != nil {
		return nil, err
	}

	if opts.FileName == "" {
		return nil, fmt.Errorf("%w: empty file name", ErrShape)
	}

	ns := ipc.NewNamespace(opts.Dir)

	m := newFileBacked(opts)
	sharedName := opts.FileName + uuid

	setup := setupMutex(ns, sharedName)
	if err := setup.ReadWriteLock(); err != nil {
		return nil, err
	}

	m.initShared(ns, uuid, sharedName, opts.Cols)

	if err := m.openFiles(); err != nil {
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

func newFileBacked(opts FileOptions) *FileBacked {
	return &FileBacked{
		base: base{
			rows:       opts.Rows,
			cols:       opts.Cols,
			etype:      opts.Type,
			separated:  opts.Separated,
			extraBytes: opts.ExtraBytes,
		},
		fsys:     fs.NewReal(),
		fileName: opts.FileName,
		filePath: opts.FilePath,
		preserve: opts.Preserve,
	}
}

// FileName returns the backing file name the matrix was created with.
func (m *FileBacked) FileName() string {
	return m.fileName
}

// FilePath returns the directory holding the backing files.
func (m *FileBacked) FilePath() string {
	return m.filePath
}

// Preserve reports whether this handle keeps the backing files on disk
// when it turns out to be the last one.
func (m *FileBacked) Preserve() bool {
	return m.preserve
}

// Flush forces every dirty mapped page out to the backing files.
func (m *FileBacked) Flush() error {
	if m.destroyed {
		return ErrDestroyed
	}

	for _, r := range m.regions {
		if err := r.sync(); err != nil {
			return err
		}
	}

	return nil
}

// Destroy detaches this handle. The last handle to go also removes the
// matrix's named IPC objects and, unless its preserve flag is set,
// deletes the backing files.
func (m *FileBacked) Destroy() error {
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
		if !m.preserve {
			m.removeFiles()
		}

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

// fileNames lists the backing file names: one per column when separated,
// one for the whole matrix otherwise.
func (m *FileBacked) fileNames() []string {
	if !m.separated {
		return []string{m.fileName}
	}

	names := make([]string, m.cols)
	for i := range names {
		names[i] = columnResourceName(m.fileName, i)
	}

	return names
}

func (m *FileBacked) path(name string) string {
	return filepath.Join(m.filePath, name)
}

// createFiles sizes and maps fresh backing files for the declared shape.
// Caller rolls back on error.
func (m *FileBacked) createFiles() error {
	width := m.etype.Width()

	if m.separated {
		size := int64(m.rows*width + m.extraBytes)
		bufs := make([][]byte, m.cols)

		for i := 0; i < m.cols; i++ {
			r, err := m.createFile(columnResourceName(m.fileName, i), size)
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

	r, err := m.createFile(m.fileName, size)
	if err != nil {
		return err
	}

	m.regions = append(m.regions, r)
	m.sliceContiguous(r.data)

	return nil
}

// openFiles maps existing backing files, clamping each mapping to the
// smaller of the declared size and the file's real size.
func (m *FileBacked) openFiles() error {
	width := m.etype.Width()

	if m.separated {
		declared := int64(m.rows*width + m.extraBytes)
		bufs := make([][]byte, m.cols)

		for i := 0; i < m.cols; i++ {
			r, err := m.openFile(columnResourceName(m.fileName, i), declared)
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

	r, err := m.openFile(m.fileName, declared)
	if err != nil {
		return err
	}

	m.regions = append(m.regions, r)
	m.sliceContiguous(r.data)

	return nil
}

func (m *FileBacked) createFile(name string, size int64) (*region, error) {
	path := m.path(name)

	f, err := m.fsys.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, backingFilePerm)
	if err != nil {
		return nil, fmt.Errorf("bigmat: create backing file %q: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if err := f.Truncate(size); err != nil {
		_ = m.fsys.Remove(path)

		return nil, fmt.Errorf("bigmat: size backing file %q: %w", path, err)
	}

	r, err := mapFile(f, size)
	if err != nil {
		_ = m.fsys.Remove(path)

		return nil, err
	}

	return r, nil
}

func (m *FileBacked) openFile(name string, declared int64) (*region, error) {
	path := m.path(name)

	f, err := m.fsys.OpenFile(path, os.O_RDWR, backingFilePerm)
	if err != nil {
		return nil, fmt.Errorf("bigmat: open backing file %q: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("bigmat: stat backing file %q: %w", path, err)
	}

	size := min(declared, info.Size())
	if size <= 0 {
		return nil, fmt.Errorf("bigmat: backing file %q is empty", path)
	}

	return mapFile(f, size)
}

// removeFiles unlinks every backing file that exists. Best-effort, used
// for rollback and final teardown.
func (m *FileBacked) removeFiles() {
	for _, name := range m.fileNames() {
		_ = m.fsys.Remove(m.path(name))
	}
}

var _ Matrix = (*FileBacked)(nil)
