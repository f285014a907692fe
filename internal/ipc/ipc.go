// Package ipc provides the cross-process coordination primitives the
// matrix engine is built on: named mutexes, named reference counters,
// and a unique-name allocator.
//
// Every primitive is addressed by a plain string name. Names are mapped
// to files inside a [Namespace] directory; mutual exclusion is provided
// by flock(2) through [fs.Locker], so the primitives work across
// unrelated processes with no central coordinator.
//
// None of the blocking operations take a timeout. A process that dies
// while holding a mutex releases it implicitly when the kernel closes
// its descriptors; counters have no such safety net, so an attacher that
// dies without detaching leaves the count overstated.
package ipc

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/calvinalkan/bigmat/internal/fs"
)

// DefaultDir returns the directory named objects live in: /dev/shm when
// the host provides it (Linux), otherwise the system temp directory.
func DefaultDir() string {
	if info, err := os.Stat("/dev/shm"); err == nil && info.IsDir() {
		return "/dev/shm"
	}

	return os.TempDir()
}

// Namespace is a directory holding named IPC objects. Two processes that
// construct a Namespace over the same directory see the same objects.
//
// The zero value is not usable; use [NewNamespace].
type Namespace struct {
	dir    string
	fsys   fs.FS
	locker *fs.Locker

	mu        sync.Mutex
	allocator *Allocator
}

// NewNamespace returns a Namespace rooted at dir. An empty dir selects
// [DefaultDir].
func NewNamespace(dir string) *Namespace {
	if dir == "" {
		dir = DefaultDir()
	}

	fsys := fs.NewReal()

	return &Namespace{
		dir:    dir,
		fsys:   fsys,
		locker: fs.NewLocker(fsys),
	}
}

// Dir returns the namespace directory.
func (ns *Namespace) Dir() string {
	return ns.dir
}

// path maps an object name to its backing file.
func (ns *Namespace) path(name string) string {
	return filepath.Join(ns.dir, name)
}

// lockPath maps a mutex name to its lock file.
func (ns *Namespace) lockPath(name string) string {
	return filepath.Join(ns.dir, name+".lock")
}

// Names returns the allocator for this namespace, creating it lazily.
// The allocator itself is guarded by a dedicated named mutex so two
// concurrent creators — in this process or any other — never receive the
// same identifier.
func (ns *Namespace) Names() *Allocator {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if ns.allocator == nil {
		ns.allocator = newAllocator(ns)
	}

	return ns.allocator
}
