package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cfgsync/cfgsync/config"
	"github.com/cfgsync/cfgsync/template"
	"github.com/spf13/cobra"
)

var (
	initMergeTool      string
	initTemplatesDir   string
	initOnMissing      string
	initNonInteractive bool
	initForce          bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the cfgsync configuration",
	Long: `Create the user configuration file and the template directory.

This command will:
- Create config.yaml with default settings (see --config for the location)
- Prompt for the merge tool, template directory and missing-file behavior
- Create the template directory if it does not exist`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVarP(&initMergeTool, "merge-tool", "m", "", "Merge tool command (e.g. meld, kdiff3, code)")
	initCmd.Flags().StringVar(&initTemplatesDir, "templates-dir", "", "Directory holding the templates")
	initCmd.Flags().StringVar(&initOnMissing, "on-missing", "", "What to do when the local file is missing: fail or bootstrap")
	initCmd.Flags().BoolVar(&initNonInteractive, "yes", false, "Use defaults without prompting")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing configuration")
}

func runInit(cmd *cobra.Command, args []string) error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}

	if config.Exists(path) && !initForce {
		fmt.Println("cfgsync is already initialized.")
		fmt.Printf("Configuration: %s\n", path)
		return nil
	}

	var in io.Reader
	if !initNonInteractive {
		in = os.Stdin
	}
	cfg, err := buildInitConfig(in, os.Stdout)
	if err != nil {
		return err
	}
	return writeInitConfig(os.Stdout, path, cfg)
}

// buildInitConfig applies the init flags to the default configuration and,
// when in is not nil, prompts for every value not given as a flag.
func buildInitConfig(in io.Reader, out io.Writer) (*config.Config, error) {
	cfg := config.DefaultConfig()

	var reader *bufio.Reader
	if in != nil {
		reader = bufio.NewReader(in)
	}
	ask := func(label, current string) string {
		if reader == nil {
			return current
		}
		fmt.Fprintf(out, "%s [%s]: ", label, current)
		input, _ := reader.ReadString('\n')
		if input = strings.TrimSpace(input); input != "" {
			return input
		}
		return current
	}

	if initMergeTool != "" {
		cfg.Merge.Command = initMergeTool
	} else {
		cfg.Merge.Command = ask("Merge tool command", cfg.Merge.Command)
	}
	if cfg.Merge.Command != "meld" {
		// Placeholders are meld-specific defaults; other tools get the paths appended.
		cfg.Merge.Args = nil
	}

	if initTemplatesDir != "" {
		cfg.Templates.Dir = initTemplatesDir
	} else {
		cfg.Templates.Dir = ask("Template directory", cfg.Templates.Dir)
	}

	onMissing := initOnMissing
	if onMissing == "" {
		onMissing = ask("When the local file is missing (fail, bootstrap)", cfg.OnMissing)
	}
	strategy, err := template.ParseMissingStrategy(onMissing)
	if err != nil {
		return nil, err
	}
	cfg.OnMissing = string(strategy)

	return cfg, nil
}

func writeInitConfig(out io.Writer, path string, cfg *config.Config) error {
	if err := cfg.Save(path); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Templates.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create template directory: %w", err)
	}

	fmt.Fprintln(out, successStyle.Render("cfgsync initialized."))
	fmt.Fprintf(out, "Configuration: %s\n", path)
	fmt.Fprintf(out, "Templates:     %s (files named <type>%s)\n", cfg.Templates.Dir, cfg.Templates.Suffix)
	fmt.Fprintf(out, "Merge tool:    %s\n", cfg.Merge.Command)
	return nil
}
