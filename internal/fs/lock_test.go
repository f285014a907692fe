package fs

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestLocker_ExclusiveExcludesExclusive(t *testing.T) {
	t.Parallel()

	locker := NewLocker(NewReal())
	path := filepath.Join(t.TempDir(), "res.lock")

	held, err := locker.Lock(path)
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	_, tryErr := locker.TryLock(path)
	if !errors.Is(tryErr, ErrWouldBlock) {
		t.Fatalf("expected ErrWouldBlock, got %v", tryErr)
	}

	if closeErr := held.Close(); closeErr != nil {
		t.Fatalf("Close failed: %v", closeErr)
	}

	reacquired, err := locker.TryLock(path)
	if err != nil {
		t.Fatalf("TryLock after release failed: %v", err)
	}

	_ = reacquired.Close()
}

func TestLocker_SharedAllowsConcurrentReaders(t *testing.T) {
	t.Parallel()

	locker := NewLocker(NewReal())
	path := filepath.Join(t.TempDir(), "res.lock")

	first, err := locker.RLock(path)
	if err != nil {
		t.Fatalf("RLock failed: %v", err)
	}

	second, err := locker.TryRLock(path)
	if err != nil {
		t.Fatalf("second TryRLock failed: %v", err)
	}

	// A writer must be excluded while readers hold the lock.
	_, tryErr := locker.TryLock(path)
	if !errors.Is(tryErr, ErrWouldBlock) {
		t.Fatalf("expected ErrWouldBlock for writer, got %v", tryErr)
	}

	_ = first.Close()
	_ = second.Close()
}

func TestLocker_SharedExcludesWriterUntilReleased(t *testing.T) {
	t.Parallel()

	locker := NewLocker(NewReal())
	path := filepath.Join(t.TempDir(), "res.lock")

	reader, err := locker.RLock(path)
	if err != nil {
		t.Fatalf("RLock failed: %v", err)
	}

	var (
		wg       sync.WaitGroup
		acquired time.Time
	)

	wg.Add(1)

	go func() {
		defer wg.Done()

		writer, lockErr := locker.Lock(path)
		if lockErr != nil {
			t.Errorf("writer Lock failed: %v", lockErr)

			return
		}

		acquired = time.Now()

		_ = writer.Close()
	}()

	const hold = 50 * time.Millisecond

	time.Sleep(hold)

	released := time.Now()

	_ = reader.Close()
	wg.Wait()

	if acquired.Before(released) {
		t.Fatalf("writer acquired lock while reader held it")
	}
}

func TestLock_CloseIdempotent(t *testing.T) {
	t.Parallel()

	locker := NewLocker(NewReal())
	path := filepath.Join(t.TempDir(), "res.lock")

	held, err := locker.Lock(path)
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	if err := held.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}

	if err := held.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestLocker_CreatesParentDirectories(t *testing.T) {
	t.Parallel()

	locker := NewLocker(NewReal())
	path := filepath.Join(t.TempDir(), "a", "b", "res.lock")

	held, err := locker.Lock(path)
	if err != nil {
		t.Fatalf("Lock with missing parents failed: %v", err)
	}

	_ = held.Close()
}

func TestLocker_ReacquireAfterLockFileRemoved(t *testing.T) {
	t.Parallel()

	real := NewReal()
	locker := NewLocker(real)
	path := filepath.Join(t.TempDir(), "res.lock")

	held, err := locker.Lock(path)
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	_ = held.Close()

	// Simulate teardown: the engine unlinks mutex lock files when the
	// last attachment is destroyed. A later Lock must recreate the file.
	if err := real.Remove(path); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	again, err := locker.Lock(path)
	if err != nil {
		t.Fatalf("Lock after removal failed: %v", err)
	}

	_ = again.Close()
}
