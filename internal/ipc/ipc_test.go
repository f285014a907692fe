package ipc

import (
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMutex_ExclusiveExcludes(t *testing.T) {
	t.Parallel()

	ns := NewNamespace(t.TempDir())

	first := ns.Mutex("res")
	second := ns.Mutex("res")

	require.NoError(t, first.ReadWriteLock())

	done := make(chan error, 1)

	go func() {
		// Blocks until first unlocks.
		if err := second.ReadWriteLock(); err != nil {
			done <- err

			return
		}

		done <- second.Unlock()
	}()

	select {
	case <-done:
		t.Fatal("second handle acquired mutex while first held it")
	default:
	}

	require.NoError(t, first.Unlock())
	require.NoError(t, <-done)
}

func TestMutex_SharedDoesNotExclude(t *testing.T) {
	t.Parallel()

	ns := NewNamespace(t.TempDir())

	first := ns.Mutex("res")
	second := ns.Mutex("res")

	require.NoError(t, first.ReadLock())
	require.NoError(t, second.ReadLock())

	require.NoError(t, first.Unlock())
	require.NoError(t, second.Unlock())
}

func TestMutex_UnlockWithoutLock(t *testing.T) {
	t.Parallel()

	ns := NewNamespace(t.TempDir())

	err := ns.Mutex("res").Unlock()
	require.ErrorIs(t, err, ErrNotLocked)
}

func TestMutex_DestroyIsIdempotent(t *testing.T) {
	t.Parallel()

	ns := NewNamespace(t.TempDir())
	m := ns.Mutex("res")

	require.NoError(t, m.ReadWriteLock())
	require.NoError(t, m.Destroy())

	// Second destroy: object already gone.
	require.NoError(t, m.Destroy())
}

func TestCounter_LifecycleAcrossHandles(t *testing.T) {
	t.Parallel()

	ns := NewNamespace(t.TempDir())

	first := ns.Counter("m_counter")

	value, err := first.Get()
	require.NoError(t, err)
	require.Equal(t, int64(0), value)

	value, err = first.Increment()
	require.NoError(t, err)
	require.Equal(t, int64(1), value)

	// A second handle to the same name observes the same state.
	second := ns.Counter("m_counter")

	value, err = second.Increment()
	require.NoError(t, err)
	require.Equal(t, int64(2), value)

	value, err = first.Decrement()
	require.NoError(t, err)
	require.Equal(t, int64(1), value)

	value, err = second.Decrement()
	require.NoError(t, err)
	require.Equal(t, int64(0), value)
}

func TestCounter_DecrementClampsAtZero(t *testing.T) {
	t.Parallel()

	ns := NewNamespace(t.TempDir())

	value, err := ns.Counter("m_counter").Decrement()
	require.NoError(t, err)
	require.Equal(t, int64(0), value)
}

func TestCounter_Reset(t *testing.T) {
	t.Parallel()

	ns := NewNamespace(t.TempDir())
	counter := ns.Counter("m_counter")

	_, err := counter.Increment()
	require.NoError(t, err)
	_, err = counter.Increment()
	require.NoError(t, err)

	require.NoError(t, counter.Reset())

	value, err := counter.Get()
	require.NoError(t, err)
	require.Equal(t, int64(0), value)
}

func TestCounter_GuardedConcurrentIncrements(t *testing.T) {
	t.Parallel()

	ns := NewNamespace(t.TempDir())

	const handles = 8

	var wg sync.WaitGroup

	for i := 0; i < handles; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			counter := ns.Counter("m_counter")

			if err := counter.Mutex().ReadWriteLock(); err != nil {
				t.Errorf("ReadWriteLock: %v", err)

				return
			}
			defer func() {
				if err := counter.Mutex().Unlock(); err != nil {
					t.Errorf("Unlock: %v", err)
				}
			}()

			if _, err := counter.Increment(); err != nil {
				t.Errorf("Increment: %v", err)
			}
		}()
	}

	wg.Wait()

	value, err := ns.Counter("m_counter").Get()
	require.NoError(t, err)
	require.Equal(t, int64(handles), value)
}

func TestCounter_DestroyRemovesState(t *testing.T) {
	t.Parallel()

	ns := NewNamespace(t.TempDir())
	counter := ns.Counter("m_counter")

	_, err := counter.Increment()
	require.NoError(t, err)

	require.NoError(t, counter.Destroy())

	// Re-attaching sees a fresh counter at zero.
	value, err := ns.Counter("m_counter").Get()
	require.NoError(t, err)
	require.Equal(t, int64(0), value)
}

func TestAllocator_UniqueIdentifiers(t *testing.T) {
	t.Parallel()

	ns := NewNamespace(t.TempDir())
	names := ns.Names()

	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		id, err := names.Next()
		require.NoError(t, err)
		require.NotEmpty(t, id)

		if seen[id] {
			t.Fatalf("allocator returned duplicate identifier %q", id)
		}

		seen[id] = true
	}
}

func TestNamespace_DefaultDir(t *testing.T) {
	t.Parallel()

	ns := NewNamespace("")
	require.NotEmpty(t, ns.Dir())

	info, err := os.Stat(ns.Dir())
	require.NoError(t, err)
	require.True(t, info.IsDir())
}
