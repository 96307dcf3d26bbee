// Package daemon manages background cfgsync watch sessions.
//
// Every synchronized pair gets its own set of files in the log directory,
// keyed by the pair ID:
//
//	cfgsync-<id>.pid    process ID of the running watcher
//	cfgsync-<id>.ready  written once the initial reconciliation succeeded
//	cfgsync-<id>.meta   YAML description of the pair (for --status)
//	cfgsync-<id>.log    rotated log of the background process
//
// Start a background watcher:
//
//	logDir, _ := daemon.GetDefaultLogDir()
//	pid, exitCh, err := daemon.SpawnBackground(logDir, pair.ID(), []string{"watch", local})
//
// Stop it:
//
//	pid, _ := daemon.GetRunningPID(logDir, id)
//	daemon.StopProcess(pid)
//
// The PID file contains a single line with the process ID as a decimal integer.
// PID file writes are serialized with an flock on a sibling .lock file.
package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cfgsync/cfgsync/internal/fileutil"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"
)

const (
	filePrefix  = "cfgsync-"
	pidSuffix   = ".pid"
	logSuffix   = ".log"
	readySuffix = ".ready"
	metaSuffix  = ".meta"

	// BackgroundEnv is set in the environment of spawned background processes.
	BackgroundEnv = "CFGSYNC_BACKGROUND"
)

// GetDefaultLogDir returns the OS-specific default log directory.
//
// Platform-specific defaults:
//   - Linux:   $XDG_STATE_HOME/cfgsync/logs or ~/.local/state/cfgsync/logs
//   - macOS:   ~/Library/Logs/cfgsync
//   - Windows: %LOCALAPPDATA%\cfgsync\logs
//
// The directory may not exist yet.
func GetDefaultLogDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir, "Library", "Logs", "cfgsync"), nil
	case "windows":
		if base := os.Getenv("LOCALAPPDATA"); base != "" {
			return filepath.Join(base, "cfgsync", "logs"), nil
		}
		return filepath.Join(homeDir, "AppData", "Local", "cfgsync", "logs"), nil
	default:
		if base := os.Getenv("XDG_STATE_HOME"); base != "" {
			return filepath.Join(base, "cfgsync", "logs"), nil
		}
		return filepath.Join(homeDir, ".local", "state", "cfgsync", "logs"), nil
	}
}

// IsBackground reports whether the current process was started by SpawnBackground.
func IsBackground() bool {
	return os.Getenv(BackgroundEnv) == "1"
}

func PIDFile(logDir, id string) string {
	return filepath.Join(logDir, filePrefix+id+pidSuffix)
}

func LogFile(logDir, id string) string {
	return filepath.Join(logDir, filePrefix+id+logSuffix)
}

func ReadyFile(logDir, id string) string {
	return filepath.Join(logDir, filePrefix+id+readySuffix)
}

func MetaFile(logDir, id string) string {
	return filepath.Join(logDir, filePrefix+id+metaSuffix)
}

// WritePIDFile writes the current process ID to the pair's PID file.
// A non-blocking lock on the sibling .lock file keeps two processes from
// claiming the same pair at once.
func WritePIDFile(logDir, id string) error {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	pidPath := PIDFile(logDir, id)
	lockFh, err := os.OpenFile(pidPath+".lock", os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	defer lockFh.Close()

	if err := fileutil.FlockExclusive(lockFh, true); err != nil {
		return fmt.Errorf("another cfgsync watch process is starting for this pair (lock held)")
	}
	defer fileutil.Funlock(lockFh)

	content := fmt.Sprintf("%d\n", os.Getpid())
	if err := fileutil.WriteFileAtomically(pidPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// ReadPIDFile reads the process ID for the pair.
//
// Return values:
//   - (0, nil):     no PID file exists
//   - (pid, nil):   PID file exists and contains a valid process ID
//   - (0, error):   PID file exists but is corrupt or unreadable
//
// It does not check whether the process is alive; see GetRunningPID.
func ReadPIDFile(logDir, id string) (int, error) {
	data, err := os.ReadFile(PIDFile(logDir, id))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %w", err)
	}
	return pid, nil
}

// RemovePIDFile removes the PID file together with its lock and meta files.
func RemovePIDFile(logDir, id string) error {
	pidPath := PIDFile(logDir, id)
	_ = os.Remove(pidPath + ".lock")
	_ = os.Remove(MetaFile(logDir, id))

	if err := os.Remove(pidPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// GetRunningPID returns the PID of the pair's watcher, or 0 if none is running.
// Stale PID files are cleaned up.
func GetRunningPID(logDir, id string) (int, error) {
	pid, err := ReadPIDFile(logDir, id)
	if err != nil {
		return 0, err
	}
	if pid == 0 {
		return 0, nil
	}

	if !IsProcessRunning(pid) {
		_ = RemovePIDFile(logDir, id)
		_ = RemoveReadyFile(logDir, id)
		return 0, nil
	}
	return pid, nil
}

// WriteReadyFile marks the pair's watcher as past its initial reconciliation.
func WriteReadyFile(logDir, id string) error {
	content := fmt.Sprintf("ready\n%d\n", os.Getpid())
	if err := os.WriteFile(ReadyFile(logDir, id), []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write ready file: %w", err)
	}
	return nil
}

func RemoveReadyFile(logDir, id string) error {
	if err := os.Remove(ReadyFile(logDir, id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove ready file: %w", err)
	}
	return nil
}

func IsReady(logDir, id string) bool {
	_, err := os.Stat(ReadyFile(logDir, id))
	return err == nil
}

// Meta describes a watch session for status listings.
type Meta struct {
	ID        string    `yaml:"id"`
	PID       int       `yaml:"pid"`
	Session   string    `yaml:"session"`
	Local     string    `yaml:"local"`
	Template  string    `yaml:"template"`
	StartedAt time.Time `yaml:"started_at"`
}

func WriteMeta(logDir string, m Meta) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal session metadata: %w", err)
	}
	if err := fileutil.WriteFileAtomically(MetaFile(logDir, m.ID), data, 0600); err != nil {
		return fmt.Errorf("failed to write session metadata: %w", err)
	}
	return nil
}

func ReadMeta(logDir, id string) (*Meta, error) {
	data, err := os.ReadFile(MetaFile(logDir, id))
	if err != nil {
		return nil, fmt.Errorf("failed to read session metadata: %w", err)
	}
	var m Meta
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse session metadata: %w", err)
	}
	return &m, nil
}

// Sessions returns the metadata of every running watcher in logDir, sorted
// by start time. Stale entries are cleaned up on the way.
func Sessions(logDir string) ([]Meta, error) {
	matches, err := filepath.Glob(filepath.Join(logDir, filePrefix+"*"+pidSuffix))
	if err != nil {
		return nil, err
	}

	var sessions []Meta
	for _, path := range matches {
		id := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), filePrefix), pidSuffix)
		pid, err := GetRunningPID(logDir, id)
		if err != nil || pid == 0 {
			continue
		}
		m, err := ReadMeta(logDir, id)
		if err != nil {
			m = &Meta{ID: id}
		}
		m.PID = pid
		sessions = append(sessions, *m)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.Before(sessions[j].StartedAt)
	})
	return sessions, nil
}

// LogOptions controls rotation of a background log file.
type LogOptions struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// NewLogWriter returns a rotating writer for the pair's log file.
func NewLogWriter(logDir, id string, opts LogOptions) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   LogFile(logDir, id),
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
	}
}

// SpawnBackground re-executes the current binary as a detached watcher for
// the pair. The child gets BackgroundEnv=1, no stdin, and its stdout/stderr
// appended to the pair's log file so early failures are captured.
//
// Returns the child PID and a channel that is closed when the child exits.
func SpawnBackground(logDir, id string, args []string) (int, <-chan struct{}, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return 0, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return spawnBackgroundWithLog(LogFile(logDir, id), args)
}

// IsProcessRunning, StopProcess and StopChannel are implemented in
// daemon_unix.go and daemon_windows.go.

func spawnBackgroundWithLog(logPath string, args []string) (int, <-chan struct{}, error) {
	executable, err := os.Executable()
	if err != nil {
		return 0, nil, fmt.Errorf("failed to get executable path: %w", err)
	}

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	liveness, err := newLivenessCheck()
	if err != nil {
		return 0, nil, err
	}

	cmd := exec.Command(executable, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Stdin = nil
	cmd.Env = append(os.Environ(), BackgroundEnv+"=1")
	cmd.SysProcAttr = sysProcAttr()
	liveness.configureCmd(cmd)

	if err := cmd.Start(); err != nil {
		liveness.cleanup()
		return 0, nil, fmt.Errorf("failed to start background process: %w", err)
	}

	return cmd.Process.Pid, liveness.start(cmd.Process.Pid), nil
}
