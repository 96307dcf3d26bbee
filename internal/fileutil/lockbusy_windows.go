//go:build windows
// +build windows

package fileutil

import (
	"errors"

	"golang.org/x/sys/windows"
)

func isBusyErrno(err error) bool {
	return errors.Is(err, windows.ERROR_SHARING_VIOLATION) ||
		errors.Is(err, windows.ERROR_LOCK_VIOLATION) ||
		errors.Is(err, windows.ERROR_BUSY)
}
