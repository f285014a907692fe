package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
)

var (
	// ErrWouldBlock is returned by [Locker.TryLock]/[Locker.TryRLock]
	// when the lock is held by another process.
	ErrWouldBlock = errors.New("lock would block")

	// errInodeMismatch is an internal sentinel indicating the lock file was
	// replaced between open and flock. Callers should retry.
	errInodeMismatch = errors.New("inode mismatch")
)

// Locker provides file-based locking using flock(2) (via [syscall.Flock]).
//
// flock is advisory and applies to an inode (an open file), not a pathname.
// All cooperating readers/writers must take the lock for it to have effect.
//
// Locker verifies that the file descriptor it locked still refers to the
// file currently at path at the moment the lock is acquired. This protects
// the open→lock window against the pathname being unlinked and recreated
// by another process — which is routine here, because the matrix engine
// removes lock files when the last attachment of a shared matrix is torn
// down. A waiter that acquires a lock on a removed inode detects the
// mismatch and retries against the fresh file.
//
// Exclusive locks open the file with O_RDWR; shared locks open with
// O_RDONLY. This implementation is Unix-only.
//
// Locker has no internal mutable state beyond its dependencies and is safe
// for concurrent use as long as the underlying [FS] is.
type Locker struct {
	fs    FS
	flock func(fd int, how int) error
}

// NewLocker creates a Locker that uses the given filesystem for file operations.
func NewLocker(fs FS) *Locker {
	return &Locker{
		fs:    fs,
		flock: syscall.Flock,
	}
}

// Lock represents a held file lock. Call [Lock.Close] to release it.
type Lock struct {
	mu    sync.Mutex
	file  File
	flock func(fd int, how int) error
}

// Close releases the lock and closes the underlying file descriptor.
//
// Close is idempotent — calling it multiple times is safe and subsequent
// calls return nil.
//
// On Unix, closing a file descriptor typically releases any flock held by
// that descriptor. Close attempts an explicit unlock first; if both
// unlocking and closing fail, Close returns an error that wraps both
// underlying errors (see [errors.Join]).
func (lk *Lock) Close() error {
	lk.mu.Lock()
	defer lk.mu.Unlock()

	if lk.file == nil {
		return nil
	}

	fd := int(lk.file.Fd())

	unlockErr := flockRetryEINTR(lk.flock, fd, syscall.LOCK_UN)
	closeErr := lk.file.Close()
	lk.file = nil

	if unlockErr != nil {
		unlockErr = fmt.Errorf("unlocking lock: %w", unlockErr)
	}

	if closeErr != nil {
		closeErr = fmt.Errorf("closing lock fd: %w", closeErr)
	}

	return errors.Join(unlockErr, closeErr)
}

// Lock acquires an exclusive lock on the file at path, blocking until the
// lock is available.
//
// If the file or its parent directories do not exist, they are created
// lazily. There is no timeout; a holder that never releases stalls every
// waiter. Use [Locker.TryLock] to avoid unbounded blocking.
//
// Race conditions where the lock file is replaced (deleted+recreated)
// during acquisition are handled automatically — the lock is always
// acquired on the inode currently at path.
func (l *Locker) Lock(path string) (*Lock, error) {
	return l.lockBlocking(path, exclusiveLock)
}

// RLock acquires a shared (read) lock on the file at path, blocking until
// the lock is available.
//
// Multiple processes can hold shared locks simultaneously, but a shared
// lock blocks exclusive locks and vice versa.
//
// See [Locker.Lock] for blocking behavior, file creation, and inode
// replacement caveats.
func (l *Locker) RLock(path string) (*Lock, error) {
	return l.lockBlocking(path, sharedLock)
}

// TryLock attempts to acquire an exclusive lock without blocking.
//
// Returns immediately with [ErrWouldBlock] if the lock cannot be acquired.
func (l *Locker) TryLock(path string) (*Lock, error) {
	return l.lockNonBlocking(path, exclusiveLock)
}

// TryRLock attempts to acquire a shared lock without blocking.
//
// Returns immediately with [ErrWouldBlock] if an exclusive lock is held.
func (l *Locker) TryRLock(path string) (*Lock, error) {
	return l.lockNonBlocking(path, sharedLock)
}

type lockType int

const (
	sharedLock    lockType = syscall.LOCK_SH
	exclusiveLock lockType = syscall.LOCK_EX
)

type lockMode int

const (
	lockModeBlocking lockMode = iota + 1
	lockModeNonBlocking
)

func (l *Locker) lockBlocking(path string, lt lockType) (*Lock, error) {
	openFlag := openFlagForLockType(lt)

	for {
		file, err := l.openLockFile(path, openFlag)
		if err != nil {
			return nil, fmt.Errorf("opening lockfile: %w", err)
		}

		err = l.acquire(file, path, lt, lockModeBlocking)
		if err == nil {
			return &Lock{file: file, flock: l.flock}, nil
		}

		_ = file.Close()

		if errors.Is(err, errInodeMismatch) {
			continue
		}

		return nil, err
	}
}

func (l *Locker) lockNonBlocking(path string, lt lockType) (*Lock, error) {
	file, err := l.openLockFile(path, openFlagForLockType(lt))
	if err != nil {
		return nil, fmt.Errorf("opening lockfile: %w", err)
	}

	err = l.acquire(file, path, lt, lockModeNonBlocking)
	if err == nil {
		return &Lock{file: file, flock: l.flock}, nil
	}

	_ = file.Close()

	if errors.Is(err, errInodeMismatch) {
		return nil, fmt.Errorf("%w: lock file was replaced while acquiring lock", ErrWouldBlock)
	}

	return nil, err
}

// acquire attempts to flock the given file and verify the inode still
// matches path. On success, the file is locked and ready to use. On
// failure, the file is unlocked (if needed) but NOT closed — the caller
// must close it.
//
// Returns:
//   - nil: lock acquired successfully
//   - ErrWouldBlock: lock held elsewhere (only when mode==lockModeNonBlocking)
//   - errInodeMismatch: file at path was replaced, caller should retry
//   - other error: something went wrong
func (l *Locker) acquire(file File, path string, lt lockType, mode lockMode) error {
	fd := int(file.Fd())

	flags := int(lt)
	if mode == lockModeNonBlocking {
		flags |= syscall.LOCK_NB
	}

	if err := flockRetryEINTR(l.flock, fd, flags); err != nil {
		if isWouldBlock(err) {
			return ErrWouldBlock
		}

		return fmt.Errorf("flock: %w", err)
	}

	match, err := l.inodeMatchesPath(path, file)
	if err != nil {
		_ = flockRetryEINTR(l.flock, fd, syscall.LOCK_UN)

		if errors.Is(err, os.ErrNotExist) {
			return errInodeMismatch
		}

		return fmt.Errorf("verifying inode match: %w", err)
	}

	if !match {
		_ = flockRetryEINTR(l.flock, fd, syscall.LOCK_UN)

		return errInodeMismatch
	}

	return nil
}

const (
	lockFilePerm = 0o600
	lockDirPerm  = 0o755
)

func (l *Locker) openLockFile(path string, flag int) (File, error) {
	f, err := l.fs.OpenFile(path, flag|os.O_CREATE, lockFilePerm)
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return f, err
	}

	if err := l.fs.MkdirAll(filepath.Dir(path), lockDirPerm); err != nil {
		return nil, err
	}

	return l.fs.OpenFile(path, flag|os.O_CREATE, lockFilePerm)
}

// inodeMatchesPath verifies that f (the open file descriptor we're about
// to use as the lock) still refers to the file currently at path.
//
// flock locks by inode, not pathname. A pathname can be replaced while the
// caller is acquiring the lock (or blocked waiting on it):
//
//  1. A opens path → gets inode X
//  2. path is unlinked and recreated → now points to inode Y
//  3. A successfully flocks inode X (valid, but no longer "the file at path")
//  4. B opens path → inode Y, and flocks it successfully too
//
// Without this check, both A and B believe they "locked the path", but
// they're actually coordinating on different inodes. Callers use it
// immediately after flock; on mismatch they unlock and retry.
func (l *Locker) inodeMatchesPath(path string, f File) (bool, error) {
	openInfo, err := f.Stat()
	if err != nil {
		return false, err
	}

	openSys, ok := openInfo.Sys().(*syscall.Stat_t)
	if !ok || openSys == nil {
		return false, fmt.Errorf("file.Stat Sys=%T, want *syscall.Stat_t", openInfo.Sys())
	}

	pathInfo, err := l.fs.Stat(path)
	if err != nil {
		return false, err
	}

	pathSys, ok := pathInfo.Sys().(*syscall.Stat_t)
	if !ok || pathSys == nil {
		return false, fmt.Errorf("fs.Stat Sys=%T, want *syscall.Stat_t", pathInfo.Sys())
	}

	return openSys.Dev == pathSys.Dev && openSys.Ino == pathSys.Ino, nil
}

func isWouldBlock(err error) bool {
	return errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EAGAIN)
}

func openFlagForLockType(lt lockType) int {
	if lt == sharedLock {
		return os.O_RDONLY
	}

	return os.O_RDWR
}

// flockRetryEINTR wraps flock, retrying on EINTR.
//
// EINTR means the syscall was interrupted by a signal before it could
// complete. When this happens, the syscall didn't fail, it just needs to
// be retried. Retries are capped to avoid spinning forever under
// pathological signal storms.
func flockRetryEINTR(flock func(fd int, how int) error, fd int, how int) error {
	const maxEINTRRetries = 10000

	var err error
	for i := 0; i < maxEINTRRetries; i++ {
		err = flock(fd, how)
		if err == nil || !errors.Is(err, syscall.EINTR) {
			return err
		}
	}

	return err
}
