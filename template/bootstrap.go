package template

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cfgsync/cfgsync/internal/fileutil"
	"github.com/charmbracelet/huh"
)

// MissingStrategy decides what happens when the local file does not exist.
type MissingStrategy string

const (
	// MissingFail refuses to start.
	MissingFail MissingStrategy = "fail"
	// MissingBootstrap copies a template chosen by the operator.
	MissingBootstrap MissingStrategy = "bootstrap"
)

// ErrLocalFileMissing is returned by EnsureLocal under MissingFail.
var ErrLocalFileMissing = errors.New("local config file does not exist")

func ParseMissingStrategy(s string) (MissingStrategy, error) {
	switch MissingStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case MissingFail:
		return MissingFail, nil
	case MissingBootstrap, "":
		return MissingBootstrap, nil
	default:
		return "", fmt.Errorf("invalid missing-file strategy %q (want fail or bootstrap)", s)
	}
}

// Selector lets the operator pick one template name.
type Selector interface {
	Select(names []string) (string, error)
}

// EnsureLocal makes sure the local file exists, bootstrapping it from the
// library when the strategy allows. It reports whether a file was created.
func EnsureLocal(path string, strategy MissingStrategy, lib Library, selector Selector) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if strategy == MissingFail {
		return false, fmt.Errorf("%s: %w", path, ErrLocalFileMissing)
	}

	names, err := lib.List()
	if err != nil {
		return false, err
	}
	if len(names) == 0 {
		return false, fmt.Errorf("no templates found in %s", lib.Dir)
	}

	name, err := selector.Select(names)
	if err != nil {
		return false, fmt.Errorf("failed to select template: %w", err)
	}

	data, err := os.ReadFile(lib.Path(name))
	if err != nil {
		return false, fmt.Errorf("failed to read template %q: %w", name, err)
	}
	if err := fileutil.WriteFileAtomically(path, data, 0644); err != nil {
		return false, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return true, nil
}

// MenuSelector prints a numbered menu and reads choices until a valid one is given.
type MenuSelector struct {
	reader *bufio.Reader
	out    io.Writer
}

func NewMenuSelector(in io.Reader, out io.Writer) *MenuSelector {
	return &MenuSelector{reader: bufio.NewReader(in), out: out}
}

func (m *MenuSelector) Select(names []string) (string, error) {
	for {
		fmt.Fprintln(m.out, "Select type :")
		for i, name := range names {
			fmt.Fprintf(m.out, "  %d) %s\n", i+1, name)
		}
		fmt.Fprint(m.out, "Choice: ")

		input, err := m.reader.ReadString('\n')
		choice, convErr := strconv.Atoi(strings.TrimSpace(input))
		if convErr == nil && choice > 0 && choice <= len(names) {
			return names[choice-1], nil
		}
		if err != nil {
			return "", fmt.Errorf("no template selected: %w", err)
		}
	}
}

// HuhSelector shows an interactive list in the terminal.
type HuhSelector struct{}

func (HuhSelector) Select(names []string) (string, error) {
	options := make([]huh.Option[string], len(names))
	for i, name := range names {
		options[i] = huh.NewOption(name, name)
	}

	var choice string
	err := huh.NewSelect[string]().
		Title("Select the project type").
		Options(options...).
		Value(&choice).
		Run()
	if err != nil {
		return "", err
	}
	return choice, nil
}
