package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const (
	lockFileName = ".keepsake.lock"
	// lockWait bounds how long Acquire spins before giving up.
	lockWait = 5 * time.Second
	// lockStaleAfter is the age past which a leftover lock file from a
	// crashed process is broken.
	lockStaleAfter = time.Minute
	lockPollEvery  = 25 * time.Millisecond
)

// DirLock is an advisory lock scoped to a storage root, held via an
// exclusively-created lock file. It serializes whole load-mutate-save
// cycles across processes; the per-tier writes underneath are additionally
// atomic on their own.
type DirLock struct {
	path string
}

// NewDirLock returns a lock rooted at the given storage directory.
func NewDirLock(root string) *DirLock {
	return &DirLock{path: filepath.Join(root, lockFileName)}
}

// Acquire blocks until the lock file can be created exclusively, breaking
// stale locks left by crashed processes. Returns the release function.
func (l *DirLock) Acquire() (func(), error) {
	deadline := time.Now().Add(lockWait)
	for {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() { os.Remove(l.path) }, nil
		}
		if !os.IsExist(err) {
			return nil, errors.Wrap(err, "create lock file")
		}

		if info, statErr := os.Stat(l.path); statErr == nil && time.Since(info.ModTime()) > lockStaleAfter {
			os.Remove(l.path)
			continue
		}

		if time.Now().After(deadline) {
			return nil, errors.Errorf("storage lock %s held past %s", l.path, lockWait)
		}
		time.Sleep(lockPollEvery)
	}
}

// MutexLock is an in-process lock for stores with no on-disk root, such as
// an in-memory SQLite database in tests.
type MutexLock struct {
	mu sync.Mutex
}

// NewMutexLock returns a process-local lock.
func NewMutexLock() *MutexLock { return &MutexLock{} }

// Acquire takes the mutex and returns its release function.
func (l *MutexLock) Acquire() (func(), error) {
	l.mu.Lock()
	return l.mu.Unlock, nil
}
