// Package cli implements the cfgsync command line.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cfgsync/cfgsync/config"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	configPath string
	noColor    bool
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

var rootCmd = &cobra.Command{
	Use:   "cfgsync",
	Short: "Keep a project config file in sync with its shared template",
	Long: `cfgsync keeps two files identical: a project-local configuration file and
the shared template it was created from.

Both files are first reconciled through an external merge tool. While
watching, every change to one file is copied over the other and shown as a
colored diff.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: <user config dir>/cfgsync/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(templatesCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// PrintError writes err to stderr in the error style.
func PrintError(err error) {
	fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return filepath.Abs(configPath)
	}
	return config.GetConfigPath()
}

func loadConfig() (*config.Config, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func isInteractiveTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
