//go:build !windows
// +build !windows

package fileutil

import (
	"errors"
	"syscall"
)

func isBusyErrno(err error) bool {
	return errors.Is(err, syscall.EBUSY) ||
		errors.Is(err, syscall.EWOULDBLOCK) ||
		errors.Is(err, syscall.EAGAIN)
}
