package lint

import (
	"context"
	"errors"
	"strings"

	"github.com/roach88/idemcheck/internal/shell"
)

// PathPlaceholder in a linter argv is replaced with the file path. An argv
// without it gets the path appended.
const PathPlaceholder = "{config_file}"

// ArgvRunner runs an executable without a shell.
type ArgvRunner interface {
	RunArgv(ctx context.Context, argv []string, env ...string) (shell.Result, error)
}

// External runs a linter executable.
type External struct {
	Argv   []string
	Runner ArgvRunner
}

// NewExternal creates an external linter from an argv template.
func NewExternal(runner ArgvRunner, argv ...string) *External {
	return &External{Argv: argv, Runner: runner}
}

// Name returns the executable name.
func (e *External) Name() string {
	if len(e.Argv) == 0 {
		return "<empty>"
	}
	return e.Argv[0]
}

// Command returns the argv that will be run for path.
func (e *External) Command(path string) []string {
	argv := make([]string, 0, len(e.Argv)+1)
	substituted := false
	for _, a := range e.Argv {
		if strings.Contains(a, PathPlaceholder) {
			a = strings.ReplaceAll(a, PathPlaceholder, path)
			substituted = true
		}
		argv = append(argv, a)
	}
	if !substituted {
		argv = append(argv, path)
	}
	return argv
}

// Lint runs the linter. A missing executable and a non-zero exit both
// reject the file.
func (e *External) Lint(ctx context.Context, path string) error {
	_, err := e.Runner.RunArgv(ctx, e.Command(path))
	if err == nil {
		return nil
	}

	vErr := &ValidationError{Path: path, Linter: e.Name(), Err: err}
	var cmdErr *shell.CommandError
	if errors.As(err, &cmdErr) {
		vErr.Diagnostic = cmdErr.Diagnostic()
		vErr.Missing = cmdErr.Kind == shell.KindLaunch
	} else {
		vErr.Diagnostic = err.Error()
	}
	return vErr
}

// DefaultExternal returns the stock linters: yamllint for YAML and
// jsonlint for JSON.
func DefaultExternal(runner ArgvRunner) map[string]Linter {
	yamllint := NewExternal(runner, "yamllint", PathPlaceholder)
	return map[string]Linter{
		".yaml": yamllint,
		".yml":  yamllint,
		".json": NewExternal(runner, "jsonlint", "-q", PathPlaceholder),
	}
}

// WithOverrides returns base with extra external linters added or
// replaced. Keys are extensions, with or without the leading dot.
func WithOverrides(base map[string]Linter, runner ArgvRunner, overrides map[string][]string) map[string]Linter {
	out := make(map[string]Linter, len(base)+len(overrides))
	for ext, l := range base {
		out[ext] = l
	}
	for ext, argv := range overrides {
		if len(argv) == 0 {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out[strings.ToLower(ext)] = NewExternal(runner, argv...)
	}
	return out
}
