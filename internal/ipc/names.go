package ipc

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
)

// allocatorMutexName guards identifier generation across all processes
// sharing a namespace.
const allocatorMutexName = "bigmat_name_alloc"

// idBytes is the entropy per generated identifier. 16 random bytes make
// collisions unobservable in practice, but generation still runs under
// the allocator mutex so concurrent creators are serialized the same way
// on every platform.
const idBytes = 16

// Allocator generates unique identifiers used as shared-memory, file,
// and mutex name prefixes. Obtain one via [Namespace.Names].
type Allocator struct {
	mu    sync.Mutex
	mutex *Mutex
}

func newAllocator(ns *Namespace) *Allocator {
	return &Allocator{
		mutex: ns.Mutex(allocatorMutexName),
	}
}

// Next returns a fresh identifier. Identifiers are lowercase hex and safe
// for use in file names.
func (a *Allocator) Next() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.mutex.ReadWriteLock(); err != nil {
		return "", err
	}
	defer func() { _ = a.mutex.Unlock() }()

	var buf [idBytes]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("ipc: generate identifier: %w", err)
	}

	return hex.EncodeToString(buf[:]), nil
}
