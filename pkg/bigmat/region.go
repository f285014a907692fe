package bigmat

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/calvinalkan/bigmat/internal/fs"
)

// region is one read-write MAP_SHARED mapping of a backing object (a
// /dev/shm segment or a regular file). The mapping, not the file
// descriptor, keeps the view alive; the descriptor is closed as soon as
// the mapping exists.
type region struct {
	data []byte
}

// mapFile maps size bytes of f read-write and shared. The caller still
// owns f.
func mapFile(f fs.File, size int64) (*region, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("bigmat: mmap %d bytes: %w", size, err)
	}

	return &region{data: data}, nil
}

// unmap releases the mapping. The data slice must not be touched after.
func (r *region) unmap() error {
	if r.data == nil {
		return nil
	}

	err := unix.Munmap(r.data)
	r.data = nil

	if err != nil {
		return fmt.Errorf("bigmat: munmap: %w", err)
	}

	return nil
}

// sync flushes modified pages to the backing object synchronously.
func (r *region) sync() error {
	if r.data == nil {
		return nil
	}

	if err := unix.Msync(r.data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("bigmat: msync: %w", err)
	}

	return nil
}

// unmapAll releases every region, keeping the first error.
func unmapAll(regions []*region) error {
	var firstErr error

	for _, r := range regions {
		if err := r.unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
