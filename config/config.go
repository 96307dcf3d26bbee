package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cfgsync/cfgsync/internal/fileutil"
	"github.com/cfgsync/cfgsync/template"
	"gopkg.in/yaml.v3"
)

// unsetRetries marks watch.max_retries as absent until the file is decoded.
const unsetRetries = -1

const (
	ConfigDir      = "cfgsync"
	ConfigFileName = "config.yaml"
	TemplatesDir   = "templates"
)

type Config struct {
	Version   int             `yaml:"version"`
	LocalFile string          `yaml:"local_file"`
	OnMissing string          `yaml:"on_missing"` // fail | bootstrap
	Templates TemplatesConfig `yaml:"templates"`
	Merge     MergeConfig     `yaml:"merge"`
	Watch     WatchConfig     `yaml:"watch"`
	Diff      DiffConfig      `yaml:"diff"`
	Log       LogConfig       `yaml:"log"`
}

type TemplatesConfig struct {
	Dir    string          `yaml:"dir"`
	Suffix string          `yaml:"suffix"`
	Rules  []template.Rule `yaml:"rules"`
}

// MergeConfig describes the external merge tool. Args may reference the two
// files as {a} and {b}; without placeholders the paths are appended.
type MergeConfig struct {
	Command  string   `yaml:"command"`
	Args     []string `yaml:"args,omitempty"`
	PathDirs []string `yaml:"path_dirs,omitempty"` // appended to the tool's PATH
}

type WatchConfig struct {
	RetryDelayMs int `yaml:"retry_delay_ms"`
	MaxRetries   int `yaml:"max_retries"`
}

type DiffConfig struct {
	ContextHead int `yaml:"context_head"`
	ContextTail int `yaml:"context_tail"`
}

// LogConfig controls rotation of the background log file.
type LogConfig struct {
	MaxSizeMB  int `yaml:"max_size_mb"`
	MaxBackups int `yaml:"max_backups"`
	MaxAgeDays int `yaml:"max_age_days"`
}

func DefaultConfig() *Config {
	return &Config{
		Version:   1,
		LocalFile: ".eslintrc.json",
		OnMissing: string(template.MissingBootstrap),
		Templates: TemplatesConfig{
			Dir:    defaultTemplatesDir(),
			Suffix: ".eslintrc.json",
			Rules:  template.DefaultRules(),
		},
		Merge: MergeConfig{
			Command: "meld",
			Args:    []string{"{a}", "{b}"},
		},
		Watch: WatchConfig{
			RetryDelayMs: 200,
			MaxRetries:   1,
		},
		Diff: DiffConfig{
			ContextHead: 3,
			ContextTail: 4,
		},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// GetConfigDir returns the per-user configuration directory.
func GetConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(base, ConfigDir), nil
}

func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

func defaultTemplatesDir() string {
	dir, err := GetConfigDir()
	if err != nil {
		return TemplatesDir
	}
	return filepath.Join(dir, TemplatesDir)
}

// Load reads the configuration at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// An absent max_retries must not read as an explicit 0.
	cfg := Config{Watch: WatchConfig{MaxRetries: unsetRetries}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if _, err := template.ParseMissingStrategy(cfg.OnMissing); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return &cfg, nil
}

// applyDefaults fills in values older or partial config files leave out.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Version == 0 {
		c.Version = defaults.Version
	}
	if c.LocalFile == "" {
		c.LocalFile = defaults.LocalFile
	}
	if c.OnMissing == "" {
		c.OnMissing = defaults.OnMissing
	}

	if c.Templates.Dir == "" {
		c.Templates.Dir = defaults.Templates.Dir
	}
	if c.Templates.Suffix == "" {
		c.Templates.Suffix = defaults.Templates.Suffix
	}
	if len(c.Templates.Rules) == 0 {
		c.Templates.Rules = defaults.Templates.Rules
	}

	// Args only default together with the command they belong to.
	if c.Merge.Command == "" {
		c.Merge.Command = defaults.Merge.Command
		if len(c.Merge.Args) == 0 {
			c.Merge.Args = defaults.Merge.Args
		}
	}

	if c.Watch.RetryDelayMs <= 0 {
		c.Watch.RetryDelayMs = defaults.Watch.RetryDelayMs
	}
	// max_retries: 0 disables retrying, so only absent or negative values are reset.
	if c.Watch.MaxRetries < 0 {
		c.Watch.MaxRetries = defaults.Watch.MaxRetries
	}

	if c.Diff.ContextHead <= 0 {
		c.Diff.ContextHead = defaults.Diff.ContextHead
	}
	if c.Diff.ContextTail <= 0 {
		c.Diff.ContextTail = defaults.Diff.ContextTail
	}

	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = defaults.Log.MaxSizeMB
	}
	if c.Log.MaxBackups < 0 {
		c.Log.MaxBackups = defaults.Log.MaxBackups
	}
	if c.Log.MaxAgeDays < 0 {
		c.Log.MaxAgeDays = defaults.Log.MaxAgeDays
	}
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := fileutil.WriteFileAtomically(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// RetryDelay returns the lock-busy retry delay as a duration.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Watch.RetryDelayMs) * time.Millisecond
}

// MissingStrategy returns the parsed on_missing value.
func (c *Config) MissingStrategy() template.MissingStrategy {
	s, err := template.ParseMissingStrategy(c.OnMissing)
	if err != nil {
		return template.MissingBootstrap
	}
	return s
}

// Library returns the configured template library.
func (c *Config) Library() template.Library {
	return template.Library{Dir: c.Templates.Dir, Suffix: c.Templates.Suffix}
}
