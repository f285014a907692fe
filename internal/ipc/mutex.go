package ipc

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/calvinalkan/bigmat/internal/fs"
)

// ErrNotLocked is returned by [Mutex.Unlock] when the calling handle does
// not hold the mutex. This is a programming error.
var ErrNotLocked = errors.New("ipc: mutex not locked by this handle")

// Mutex is a system-wide mutual-exclusion object identified by name.
//
// Constructing a Mutex is create-or-open: the first handle for a name
// creates the underlying lock file, later handles (in any process) open
// the same one. A Mutex supports shared (read) and exclusive (read-write)
// acquisition, mirroring flock's LOCK_SH/LOCK_EX.
//
// A Mutex handle holds at most one acquisition at a time. Handles are not
// safe for concurrent use by multiple goroutines; give each goroutine its
// own handle, the underlying lock file is shared either way.
type Mutex struct {
	name string
	path string
	ns   *Namespace

	mu   sync.Mutex
	held *fs.Lock
}

// Mutex returns a handle for the named mutex, creating the underlying
// object if it does not exist yet.
func (ns *Namespace) Mutex(name string) *Mutex {
	return &Mutex{
		name: name,
		path: ns.lockPath(name),
		ns:   ns,
	}
}

// Name returns the mutex name.
func (m *Mutex) Name() string {
	return m.name
}

// ReadLock blocks until shared ownership is obtained. Multiple handles
// across processes may hold shared ownership simultaneously.
func (m *Mutex) ReadLock() error {
	lock, err := m.ns.locker.RLock(m.path)
	if err != nil {
		return fmt.Errorf("ipc: read lock %q: %w", m.name, err)
	}

	m.setHeld(lock)

	return nil
}

// ReadWriteLock blocks until exclusive ownership is obtained.
func (m *Mutex) ReadWriteLock() error {
	lock, err := m.ns.locker.Lock(m.path)
	if err != nil {
		return fmt.Errorf("ipc: write lock %q: %w", m.name, err)
	}

	m.setHeld(lock)

	return nil
}

// Unlock releases the current acquisition. Calling Unlock without a held
// acquisition returns [ErrNotLocked].
func (m *Mutex) Unlock() error {
	m.mu.Lock()
	held := m.held
	m.held = nil
	m.mu.Unlock()

	if held == nil {
		return ErrNotLocked
	}

	if err := held.Close(); err != nil {
		return fmt.Errorf("ipc: unlock %q: %w", m.name, err)
	}

	return nil
}

// Destroy permanently removes the named object from the namespace,
// releasing any acquisition this handle still holds. Only safe once no
// other handle needs the mutex; a waiter blocked on the removed file
// re-acquires against a fresh one (see [fs.Locker]).
//
// Destroying a mutex that was never materialized on disk is a no-op.
func (m *Mutex) Destroy() error {
	m.mu.Lock()
	held := m.held
	m.held = nil
	m.mu.Unlock()

	if held != nil {
		_ = held.Close()
	}

	err := m.ns.fsys.Remove(m.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("ipc: destroy mutex %q: %w", m.name, err)
	}

	return nil
}

func (m *Mutex) setHeld(lock *fs.Lock) {
	m.mu.Lock()
	prev := m.held
	m.held = lock
	m.mu.Unlock()

	// Replacing a held lock would leak its descriptor; release it.
	if prev != nil {
		_ = prev.Close()
	}
}
