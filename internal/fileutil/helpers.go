package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrLockBusy reports that a file is held by another process and the
// operation may succeed if retried shortly.
var ErrLockBusy = errors.New("file is locked by another process")

// IsLockBusy reports whether err is a transient lock contention error.
// Platform-specific errno checks live in lockbusy_unix.go and lockbusy_windows.go.
func IsLockBusy(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrLockBusy) {
		return true
	}
	return isBusyErrno(err)
}

// EnsureParentDir creates parent directories for the given path if they do not exist.
func EnsureParentDir(filePath string) error {
	dir := filepath.Dir(filePath)
	return os.MkdirAll(dir, 0755)
}

// ReplaceFileAtomically renames tempPath to targetPath. On systems where
// cross-device rename fails, it falls back to remove-then-rename.
func ReplaceFileAtomically(tempPath, targetPath string) error {
	if err := os.Rename(tempPath, targetPath); err == nil {
		return nil
	}

	if err := os.Remove(targetPath); err != nil && !os.IsNotExist(err) {
		return err
	}

	return os.Rename(tempPath, targetPath)
}

// WriteFileAtomically writes data to a temp file next to path and renames it
// into place.
func WriteFileAtomically(path string, data []byte, perm os.FileMode) error {
	if err := EnsureParentDir(path); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, perm); err != nil {
		return err
	}
	if err := ReplaceFileAtomically(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// OverwriteFile replaces the content of path in place. The file keeps its
// inode and permissions so watchers on its directory see a write event rather
// than a create/rename pair.
//
// The file is locked exclusively (non-blocking) for the duration of the
// write; if another process holds the lock the returned error satisfies
// IsLockBusy.
func OverwriteFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := FlockExclusive(f, true); err != nil {
		if isBusyErrno(err) {
			return fmt.Errorf("%s: %w", path, ErrLockBusy)
		}
		return err
	}
	defer Funlock(f)

	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.WriteAt(data, 0); err != nil {
		return err
	}
	return f.Sync()
}
