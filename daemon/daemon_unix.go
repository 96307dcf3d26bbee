//go:build !windows
// +build !windows

package daemon

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// IsProcessRunning reports whether a process with the given PID exists.
// A process owned by another user still counts: its session files are live.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

// sysProcAttr puts the watcher in its own process group so a Ctrl-C in the
// launching terminal does not reach it.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// livenessCheck holds a pipe whose write end only the watcher keeps open.
// The read end sees EOF once the watcher exits, zombie or not.
type livenessCheck struct {
	pr, pw *os.File
}

func newLivenessCheck() (*livenessCheck, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create liveness pipe: %w", err)
	}
	return &livenessCheck{pr: pr, pw: pw}, nil
}

func (l *livenessCheck) configureCmd(cmd *exec.Cmd) {
	cmd.ExtraFiles = []*os.File{l.pw}
}

// start drops the parent's write end and returns a channel closed when the
// watcher exits.
func (l *livenessCheck) start(_ int) <-chan struct{} {
	l.pw.Close()
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		defer l.pr.Close()
		var buf [1]byte
		_, _ = l.pr.Read(buf[:])
	}()
	return exited
}

func (l *livenessCheck) cleanup() {
	l.pr.Close()
	l.pw.Close()
}

// StopProcess asks a background watcher to shut down with SIGTERM, which the
// watch command handles like Ctrl-C. A process that has already exited is
// not an error.
func StopProcess(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid PID: %d", pid)
	}

	err := syscall.Kill(pid, syscall.SIGTERM)
	if err == nil || errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return fmt.Errorf("failed to send terminate signal to %d: %w", pid, err)
}

// StopChannel never fires on Unix; stop requests arrive as SIGTERM.
func StopChannel() <-chan struct{} {
	return make(chan struct{})
}
