package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/cfgsync/cfgsync/config"
	"github.com/cfgsync/cfgsync/daemon"
	"github.com/cfgsync/cfgsync/diff"
	"github.com/cfgsync/cfgsync/git"
	"github.com/cfgsync/cfgsync/merge"
	"github.com/cfgsync/cfgsync/syncer"
	"github.com/cfgsync/cfgsync/template"
	"github.com/spf13/cobra"
)

var (
	watchTemplate   string
	watchOnMissing  string
	watchBackground bool
	watchLogDir     string
	watchStatus     bool
	watchStop       bool
)

var (
	watchIsInteractiveTerminal = isInteractiveTerminal
	watchStopDaemonRunner      = stopWatchDaemon
)

var watchCmd = &cobra.Command{
	Use:   "watch [local-file]",
	Short: "Reconcile a config file with its template, then keep both in sync",
	Long: `Reconcile the local config file with its template, then watch both files.

The local file defaults to the configured local_file at the root of the
current git repository (or the current directory). The template is chosen by
classifying the local file, unless --template names one.

The watcher will:
- Normalize line endings of both files and compare them
- Open the merge tool until both files are identical (or you give up)
- Copy every change of one file over the other and print the diff

Background mode:
  cfgsync watch --background              Reconcile now, then watch in background
  cfgsync watch --status                  List background watchers
  cfgsync watch --stop                    Stop the background watcher of the local file

Background logs are rotated according to the log section of the config file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchTemplate, "template", "t", "", "Template name or path (default: classify the local file)")
	watchCmd.Flags().StringVar(&watchOnMissing, "on-missing", "", "What to do when the local file is missing: fail or bootstrap")
	watchCmd.Flags().BoolVar(&watchBackground, "background", false, "Run in background mode")
	watchCmd.Flags().StringVar(&watchLogDir, "log-dir", "", "Directory for log files (default: OS-specific)")
	watchCmd.Flags().BoolVar(&watchStatus, "status", false, "Show background watcher status")
	watchCmd.Flags().BoolVar(&watchStop, "stop", false, "Stop the background watcher")
}

// eventError is a fatal error raised while propagating a change, as opposed
// to one raised during the initial reconciliation.
type eventError struct {
	err error
}

func (e *eventError) Error() string { return e.err.Error() }
func (e *eventError) Unwrap() error { return e.err }

func runWatch(cmd *cobra.Command, args []string) error {
	if err := validateWatchFlags(watchBackground, watchStatus, watchStop); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logDir, err := resolveLogDir(watchLogDir)
	if err != nil {
		return err
	}

	if watchStatus {
		return showWatchStatus(os.Stdout, logDir)
	}

	local, err := resolveLocalPath(args, cfg)
	if err != nil {
		return err
	}

	if watchStop {
		stopped, err := watchStopDaemonRunner(logDir, local)
		if err != nil {
			return err
		}
		if !stopped {
			fmt.Printf("No background watcher is running for %s\n", local)
		}
		return nil
	}

	if daemon.IsBackground() {
		return runWatchBackgroundChild(cfg, logDir, local)
	}

	var selector template.Selector = template.NewMenuSelector(os.Stdin, os.Stdout)
	if watchIsInteractiveTerminal() {
		selector = template.HuhSelector{}
	}
	pair, err := preparePair(cfg, local, watchTemplate, watchOnMissing, selector)
	if err != nil {
		return err
	}

	// Check if already running in background (automatically cleans up stale PIDs)
	pid, err := daemon.GetRunningPID(logDir, pair.ID())
	if err != nil {
		return fmt.Errorf("failed to check running status: %w", err)
	}
	if pid > 0 {
		return fmt.Errorf("watcher is already running in background (PID %d)\nUse 'cfgsync watch --stop' to stop it", pid)
	}

	if watchBackground {
		return startBackgroundWatch(cfg, logDir, pair)
	}
	return runWatchForeground(cfg, pair)
}

func validateWatchFlags(background, status, stop bool) error {
	active := 0
	for _, set := range []bool{background, status, stop} {
		if set {
			active++
		}
	}
	if active > 1 {
		return fmt.Errorf("flags --background, --status, and --stop are mutually exclusive")
	}
	return nil
}

func resolveLogDir(flagValue string) (string, error) {
	if flagValue != "" {
		return filepath.Abs(flagValue)
	}
	logDir, err := daemon.GetDefaultLogDir()
	if err != nil {
		return "", fmt.Errorf("failed to get default log directory: %w", err)
	}
	return logDir, nil
}

// resolveLocalPath returns the explicit local file argument, or the
// configured local_file at the project root.
func resolveLocalPath(args []string, cfg *config.Config) (string, error) {
	if len(args) > 0 {
		return filepath.Abs(args[0])
	}
	if filepath.IsAbs(cfg.LocalFile) {
		return cfg.LocalFile, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	return filepath.Join(git.ProjectRoot(cwd), cfg.LocalFile), nil
}

// resolveTemplatePath returns the template file for local. name may be a
// template name from the library or a path to any file.
func resolveTemplatePath(cfg *config.Config, local, name string) (string, error) {
	lib := cfg.Library()
	if name == "" {
		return lib.Resolve(local, cfg.Templates.Rules)
	}

	path := name
	if !strings.ContainsAny(name, `/\`) {
		path = lib.Path(name)
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("template %q not found: %w", name, err)
	}
	return path, nil
}

func preparePair(cfg *config.Config, local, templateName, onMissing string, selector template.Selector) (syncer.Pair, error) {
	strategy := cfg.MissingStrategy()
	if onMissing != "" {
		s, err := template.ParseMissingStrategy(onMissing)
		if err != nil {
			return syncer.Pair{}, err
		}
		strategy = s
	}

	created, err := template.EnsureLocal(local, strategy, cfg.Library(), selector)
	if err != nil {
		return syncer.Pair{}, err
	}
	if created {
		fmt.Printf("Created %s from template\n", local)
	}

	templatePath, err := resolveTemplatePath(cfg, local, templateName)
	if err != nil {
		return syncer.Pair{}, err
	}
	return syncer.NewPair(local, templatePath)
}

func newMerger(cfg *config.Config) *merge.ExecMerger {
	return &merge.ExecMerger{
		Command:  cfg.Merge.Command,
		Args:     cfg.Merge.Args,
		PathDirs: cfg.Merge.PathDirs,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}
}

func newRenderer(cfg *config.Config, w io.Writer, color bool) *diff.Renderer {
	r := diff.NewRenderer(w, color)
	r.Head = cfg.Diff.ContextHead
	r.Tail = cfg.Diff.ContextTail
	return r
}

// sessionOptions maps the watch section of the config onto session options.
func sessionOptions(cfg *config.Config) syncer.Options {
	opts := syncer.Options{
		RetryDelay: cfg.RetryDelay(),
		MaxRetries: cfg.Watch.MaxRetries,
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = -1
	}
	return opts
}

// watchContext returns a context cancelled on SIGINT, SIGTERM or a stop request.
func watchContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	stopCh := daemon.StopChannel()

	go func() {
		defer signal.Stop(sigChan)
		select {
		case <-sigChan:
			log.Println("Shutting down...")
			cancel()
		case <-stopCh:
			log.Println("Stop file detected, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// runSession runs a watch session and marks errors raised after the
// watchers were installed as event errors.
func runSession(ctx context.Context, pair syncer.Pair, opts syncer.Options) error {
	ready := false
	onReady := opts.OnReady
	opts.OnReady = func(s *syncer.Session) {
		ready = true
		if onReady != nil {
			onReady(s)
		}
	}

	err := syncer.Watch(ctx, pair, opts)
	if err != nil && ready {
		return &eventError{err: err}
	}
	return err
}

// finishWatch prints the closing status of a session.
func finishWatch(w io.Writer, err error) error {
	var evErr *eventError
	switch {
	case err == nil:
	case errors.As(err, &evErr):
		fmt.Fprintln(w, errorStyle.Render("HANDLE EVENT ERROR"))
	case errors.Is(err, merge.ErrUnmerged):
		return fmt.Errorf("files still differ, not watching: %w", err)
	default:
		return err
	}
	fmt.Fprintln(w, dimStyle.Render("end of watch"))
	return err
}

func runWatchForeground(cfg *config.Config, pair syncer.Pair) error {
	ctx, cancel := watchContext()
	defer cancel()

	fmt.Printf("Local:    %s\n", pair.Local)
	fmt.Printf("Template: %s\n", pair.Template)

	opts := sessionOptions(cfg)
	opts.Merger = newMerger(cfg)
	opts.Prompter = merge.NewLinePrompter(os.Stdin, os.Stdout)
	opts.Reporter = syncer.ConsoleReporter{Renderer: newRenderer(cfg, os.Stdout, !noColor)}
	opts.Out = os.Stdout
	opts.OnReady = func(*syncer.Session) {
		fmt.Println(dimStyle.Render("(Press Ctrl+C to stop)"))
	}

	return finishWatch(os.Stdout, runSession(ctx, pair, opts))
}

// runWatchBackgroundChild runs inside the process spawned by startBackgroundWatch.
// The parent already reconciled the pair, so a pair that differs again is not
// merged here.
func runWatchBackgroundChild(cfg *config.Config, logDir, local string) error {
	pair, err := preparePair(cfg, local, watchTemplate, string(template.MissingFail), nil)
	if err != nil {
		return err
	}
	id := pair.ID()

	logw := daemon.NewLogWriter(logDir, id, daemon.LogOptions{
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer logw.Close()

	log.SetOutput(logw)
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.SetPrefix("[cfgsync-watch] ")

	if err := daemon.WritePIDFile(logDir, id); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	defer func() {
		if err := daemon.RemovePIDFile(logDir, id); err != nil {
			log.Printf("Warning: failed to remove PID file on exit: %v", err)
		}
		if err := daemon.RemoveReadyFile(logDir, id); err != nil {
			log.Printf("Warning: failed to remove ready file on exit: %v", err)
		}
	}()

	ctx, cancel := watchContext()
	defer cancel()

	opts := sessionOptions(cfg)
	opts.Prompter = merge.Decline{}
	opts.Reporter = syncer.ConsoleReporter{Renderer: newRenderer(cfg, logw, false)}
	opts.Out = logw
	opts.OnReady = func(s *syncer.Session) {
		meta := daemon.Meta{
			ID:        id,
			PID:       os.Getpid(),
			Session:   s.ID,
			Local:     pair.Local,
			Template:  pair.Template,
			StartedAt: s.Start,
		}
		if err := daemon.WriteMeta(logDir, meta); err != nil {
			log.Printf("Warning: %v", err)
		}
		if err := daemon.WriteReadyFile(logDir, id); err != nil {
			log.Printf("Warning: %v", err)
		}
	}

	err = finishWatch(logw, runSession(ctx, pair, opts))
	if err != nil {
		log.Printf("Watch failed: %v", err)
	}
	return err
}

func startBackgroundWatch(cfg *config.Config, logDir string, pair syncer.Pair) error {
	ctx, cancel := watchContext()
	defer cancel()

	fmt.Println("Merging ...")
	if _, err := merge.Reconcile(ctx, pair.Local, pair.Template, newMerger(cfg), merge.NewLinePrompter(os.Stdin, os.Stdout)); err != nil {
		if errors.Is(err, merge.ErrUnmerged) {
			return fmt.Errorf("files still differ, not watching: %w", err)
		}
		return err
	}

	// Build args for background process (exclude --background flag)
	args := []string{"watch", pair.Local, "--template", pair.Template}
	if configPath != "" {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		args = append(args, "--config", path)
	}
	if watchLogDir != "" {
		args = append(args, "--log-dir", logDir)
	}

	id := pair.ID()
	logFile := daemon.LogFile(logDir, id)
	childPID, exitCh, err := daemon.SpawnBackground(logDir, id, args)
	if err != nil {
		return fmt.Errorf("failed to start background process: %w", err)
	}

	const startupTimeout = 30 * time.Second
	const pollInterval = 250 * time.Millisecond
	deadline := time.Now().Add(startupTimeout)

	for time.Now().Before(deadline) {
		if daemon.IsReady(logDir, id) {
			fmt.Println(successStyle.Render(fmt.Sprintf("Background watcher started (PID %d)", childPID)))
			fmt.Printf("Logs: %s\n", logFile)
			fmt.Printf("\nUse 'cfgsync watch --status' to check status\n")
			fmt.Printf("Use 'cfgsync watch --stop %s' to stop the watcher\n", pair.Local)
			return nil
		}

		// Detect early exit without relying on kill(0), which reports zombies as alive.
		select {
		case <-exitCh:
			return fmt.Errorf("background process failed to start (check logs at %s)", logFile)
		default:
		}

		time.Sleep(pollInterval)
	}

	return fmt.Errorf("timeout waiting for process to become ready after %v (check logs at %s)", startupTimeout, logFile)
}

func showWatchStatus(w io.Writer, logDir string) error {
	sessions, err := daemon.Sessions(logDir)
	if err != nil {
		return fmt.Errorf("failed to list watchers: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Fprintln(w, "Status: not running")
		fmt.Fprintf(w, "Log directory: %s\n", logDir)
		return nil
	}

	for i, s := range sessions {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, "Status: running")
		fmt.Fprintf(w, "PID: %d\n", s.PID)
		if s.Session != "" {
			fmt.Fprintf(w, "Session: %s\n", s.Session)
		}
		if s.Local != "" {
			fmt.Fprintf(w, "Local: %s\n", s.Local)
			fmt.Fprintf(w, "Template: %s\n", s.Template)
		}
		if !s.StartedAt.IsZero() {
			fmt.Fprintf(w, "Started: %s\n", s.StartedAt.Format(time.RFC3339))
		}
		fmt.Fprintf(w, "Log file: %s\n", daemon.LogFile(logDir, s.ID))
	}
	return nil
}

// findSession returns the running session watching local, if any.
func findSession(logDir, local string) (*daemon.Meta, error) {
	sessions, err := daemon.Sessions(logDir)
	if err != nil {
		return nil, err
	}
	for _, s := range sessions {
		if s.Local == local {
			return &s, nil
		}
	}
	return nil, nil
}

func stopWatchDaemon(logDir, local string) (bool, error) {
	session, err := findSession(logDir, local)
	if err != nil {
		return false, fmt.Errorf("failed to list watchers: %w", err)
	}
	if session == nil {
		return false, nil
	}
	pid := session.PID
	logFile := daemon.LogFile(logDir, session.ID)

	fmt.Printf("Stopping background watcher (PID %d)...\n", pid)
	if err := daemon.StopProcess(pid); err != nil {
		return false, fmt.Errorf("failed to stop process: %w", err)
	}

	const shutdownTimeout = 30 * time.Second
	const shutdownPollInterval = 500 * time.Millisecond
	deadline := time.Now().Add(shutdownTimeout)
	lastProgress := time.Now()

	for time.Now().Before(deadline) {
		if !daemon.IsProcessRunning(pid) {
			break
		}
		if time.Since(lastProgress) >= 5*time.Second {
			fmt.Println("Waiting for graceful shutdown...")
			lastProgress = time.Now()
		}
		time.Sleep(shutdownPollInterval)
	}

	if daemon.IsProcessRunning(pid) {
		return false, fmt.Errorf("process did not stop within %v\nStill running? Try: kill -9 %d\nOr check logs at: %s",
			shutdownTimeout, pid, logFile)
	}

	if err := daemon.RemovePIDFile(logDir, session.ID); err != nil {
		return false, fmt.Errorf("failed to remove PID file: %w", err)
	}
	_ = daemon.RemoveReadyFile(logDir, session.ID)

	fmt.Println("Background watcher stopped")
	return true, nil
}
