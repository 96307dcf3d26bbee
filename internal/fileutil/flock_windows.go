//go:build windows
// +build windows

package fileutil

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

// FlockExclusive acquires an exclusive (write) lock on the first byte of the file.
// If nonBlocking is true, returns immediately with an error wrapping
// ERROR_LOCK_VIOLATION when another handle holds the lock.
func FlockExclusive(f *os.File, nonBlocking bool) error {
	flags := uint32(windows.LOCKFILE_EXCLUSIVE_LOCK)
	if nonBlocking {
		flags |= windows.LOCKFILE_FAIL_IMMEDIATELY
	}
	ol := new(windows.Overlapped)
	if err := windows.LockFileEx(windows.Handle(f.Fd()), flags, 0, 1, 0, ol); err != nil {
		return fmt.Errorf("failed to acquire exclusive lock on %s: %w", f.Name(), err)
	}
	return nil
}

// Funlock releases the lock on the file.
func Funlock(f *os.File) error {
	ol := new(windows.Overlapped)
	if err := windows.UnlockFileEx(windows.Handle(f.Fd()), 0, 1, 0, ol); err != nil {
		return fmt.Errorf("failed to unlock %s: %w", f.Name(), err)
	}
	return nil
}
