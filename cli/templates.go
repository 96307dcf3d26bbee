package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cfgsync/cfgsync/config"
	"github.com/cfgsync/cfgsync/template"
	"github.com/spf13/cobra"
)

var templatesCmd = &cobra.Command{
	Use:   "templates [local-file]",
	Short: "List available templates and classify the local file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTemplates,
}

func runTemplates(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	local, err := resolveLocalPath(args, cfg)
	if err != nil {
		return err
	}
	return listTemplates(os.Stdout, cfg, local)
}

func listTemplates(w io.Writer, cfg *config.Config, local string) error {
	lib := cfg.Library()
	names, err := lib.List()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Templates in %s:\n", lib.Dir)
	if len(names) == 0 {
		fmt.Fprintln(w, dimStyle.Render("  (none)"))
	}
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", name)
	}

	fmt.Fprintf(w, "\nLocal file: %s\n", local)
	if _, err := os.Stat(local); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(w, "Type: missing")
		return nil
	}

	name, err := template.Classify(local, cfg.Templates.Rules)
	if err != nil {
		fmt.Fprintf(w, "Type: %s\n", errorStyle.Render(err.Error()))
		return nil
	}
	fmt.Fprintf(w, "Type: %s\n", name)

	path := lib.Path(name)
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintf(w, "Template: %s %s\n", path, errorStyle.Render("(missing)"))
		return nil
	}
	fmt.Fprintf(w, "Template: %s\n", path)
	return nil
}
