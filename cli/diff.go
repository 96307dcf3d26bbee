package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/alpkeskin/gotoon"
	"github.com/cfgsync/cfgsync/diff"
	"github.com/spf13/cobra"
)

var (
	diffJSON bool
	diffTOON bool
)

var diffCmd = &cobra.Command{
	Use:   "diff <old> <new>",
	Short: "Show the line diff between two files",
	Long: `Show the changes that would be propagated from <new> onto <old>.

Output uses the same format as the watcher: long unchanged stretches are
shortened, added lines are green and removed lines red. Use --json or --toon
for the full list of chunks.`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func init() {
	diffCmd.Flags().BoolVarP(&diffJSON, "json", "j", false, "Output chunks in JSON format")
	diffCmd.Flags().BoolVar(&diffTOON, "toon", false, "Output chunks in TOON format")
	diffCmd.MarkFlagsMutuallyExclusive("json", "toon")
}

// DiffJSON is the machine-readable diff of two files.
type DiffJSON struct {
	Old    string       `json:"old"`
	New    string       `json:"new"`
	Stats  diff.Stats   `json:"stats"`
	Chunks []diff.Chunk `json:"chunks"`
}

func runDiff(cmd *cobra.Command, args []string) error {
	oldContent, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	newContent, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[1], err)
	}

	changes := diff.Lines(string(oldContent), string(newContent))
	switch {
	case diffJSON || diffTOON:
		chunks, stats := diff.Collect(changes)
		result := DiffJSON{Old: args[0], New: args[1], Stats: stats, Chunks: chunks}
		if diffJSON {
			return outputDiffJSON(os.Stdout, result)
		}
		return outputDiffTOON(os.Stdout, result)
	default:
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return outputDiffText(os.Stdout, newRenderer(cfg, os.Stdout, !noColor), args[0], args[1], changes)
	}
}

func outputDiffText(w io.Writer, r *diff.Renderer, oldPath, newPath string, changes iter.Seq[diff.Chunk]) error {
	chunks, stats := diff.Collect(changes)
	if stats.Identical() {
		fmt.Fprintln(w, "Files are identical")
		return nil
	}
	if err := r.Header(fmt.Sprintf("%s -> %s", newPath, oldPath)); err != nil {
		return err
	}
	for _, c := range chunks {
		if err := r.RenderChunk(c); err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "\n%s\n", dimStyle.Render(fmt.Sprintf("%d added, %d removed", stats.Added, stats.Removed)))
	return nil
}

func outputDiffJSON(w io.Writer, result DiffJSON) error {
	if result.Chunks == nil {
		result.Chunks = []diff.Chunk{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func outputDiffTOON(w io.Writer, result DiffJSON) error {
	output, err := gotoon.Encode(result)
	if err != nil {
		return fmt.Errorf("failed to encode TOON: %w", err)
	}
	fmt.Fprintln(w, output)
	return nil
}
