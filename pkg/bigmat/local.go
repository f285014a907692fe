package bigmat

// Local is a matrix backed by process-private heap memory. It has no
// cross-process visibility, no locks, and no reference counting; the
// locking operations succeed without doing anything so callers can treat
// all matrix kinds uniformly.
type Local struct {
	base
}

// LocalOptions configures [NewLocal].
type LocalOptions struct {
	Rows       int
	Cols       int
	Type       ElementType
	Separated  bool
	ExtraBytes int

	// Fill, when non-nil, is the initial value of every element,
	// narrowed per the element type.
	Fill *float64

	// RowNames/ColNames are optional initial names (empty or exact
	// length, see [Matrix.SetRowNames]).
	RowNames []string
	ColNames []string
}

// NewLocal allocates a process-local matrix. There is no partial state
// on failure: validation happens before any allocation, and the Go heap
// releases everything as one unit.
func NewLocal(opts LocalOptions) (*Local, error) {
	if err := checkShape(opts.Rows, opts.Cols, opts.Type, opts.ExtraBytes); err != nil {
		return nil, err
	}

	m := &Local{
		base: base{
			rows:       opts.Rows,
			cols:       opts.Cols,
			etype:      opts.Type,
			separated:  opts.Separated,
			extraBytes: opts.ExtraBytes,
		},
	}

	colBytes := opts.Rows * opts.Type.Width()

	if opts.Separated {
		bufs := make([][]byte, opts.Cols)
		for i := range bufs {
			bufs[i] = make([]byte, colBytes+opts.ExtraBytes)
		}

		m.sliceSeparated(bufs)
	} else {
		block := make([]byte, colBytes*opts.Cols+opts.ExtraBytes)
		m.sliceContiguous(block)
	}

	if err := m.applyNames(opts.RowNames, opts.ColNames); err != nil {
		return nil, err
	}

	if opts.Fill != nil {
		m.fill(*opts.Fill)
	}

	return m, nil
}

// ReadLock is a no-op: local storage is never shared across processes.
func (m *Local) ReadLock(cols []int) error { return nil }

// ReadWriteLock is a no-op: local storage is never shared across processes.
func (m *Local) ReadWriteLock(cols []int) error { return nil }

// Unlock is a no-op: local storage is never shared across processes.
func (m *Local) Unlock(cols []int) error { return nil }

// Destroy drops the storage and zeroes the shape. Idempotent — calling
// it twice, or on a handle whose creation never completed, is a no-op.
func (m *Local) Destroy() error {
	m.columns = nil
	m.rows = 0
	m.cols = 0
	m.rowNames = nil
	m.colNames = nil

	return nil
}

var _ Matrix = (*Local)(nil)
