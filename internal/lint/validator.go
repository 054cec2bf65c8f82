// Package lint validates configuration files before they are applied.
//
// A Validator picks a Linter by file extension. Two families exist:
// external linters (yamllint, jsonlint, or any argv configured by the
// user) run as subprocesses, and builtin linters parse the file
// in-process. Files whose extension has no linter pass without inspection.
package lint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// Linter checks a single file.
type Linter interface {
	// Name identifies the linter in logs and errors.
	Name() string
	// Lint returns a *ValidationError when the file is rejected or the
	// linter itself could not run.
	Lint(ctx context.Context, path string) error
}

// ValidationError reports a rejected file or a linter that could not run.
type ValidationError struct {
	Path       string
	Linter     string
	Diagnostic string // linter output or parser message
	Missing    bool   // the linter executable was not found
	Err        error
}

func (e *ValidationError) Error() string {
	if e.Missing {
		return fmt.Sprintf("validation tool %s not found", e.Linter)
	}
	if e.Diagnostic == "" {
		return fmt.Sprintf("%s rejected %s", e.Linter, e.Path)
	}
	return fmt.Sprintf("%s rejected %s: %s", e.Linter, e.Path, e.Diagnostic)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validator dispatches files to linters keyed by lower-case extension
// including the dot (".yaml").
type Validator struct {
	linters map[string]Linter
	logger  *slog.Logger
}

// NewValidator creates a validator. The map is copied.
func NewValidator(linters map[string]Linter, logger *slog.Logger) *Validator {
	m := make(map[string]Linter, len(linters))
	for ext, l := range linters {
		m[strings.ToLower(ext)] = l
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Validator{linters: m, logger: logger}
}

// LinterFor returns the linter registered for path's extension.
func (v *Validator) LinterFor(path string) (Linter, bool) {
	l, ok := v.linters[strings.ToLower(filepath.Ext(path))]
	return l, ok
}

// Validate lints path. It returns nil when the file is accepted or when
// no linter handles its extension.
func (v *Validator) Validate(ctx context.Context, path string) error {
	l, ok := v.LinterFor(path)
	if !ok {
		v.logger.Warn("unknown file type, skipping validation", "path", path, "ext", filepath.Ext(path))
		return nil
	}

	if err := l.Lint(ctx, path); err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) && vErr.Missing {
			v.logger.Error("validation tool not found", "linter", l.Name(), "error", vErr.Err)
		} else {
			v.logger.Error("configuration validation failed", "linter", l.Name(), "path", path, "error", err)
		}
		return err
	}

	v.logger.Info("configuration file validated", "path", path, "linter", l.Name())
	return nil
}
