package apply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/idemcheck/internal/shell"
)

// Runner runs a shell command line.
type Runner interface {
	Run(ctx context.Context, line string, env ...string) (shell.Result, error)
}

// Executor applies a configuration file by running the rendered template.
type Executor struct {
	Template string
	Exec     Runner
	Logger   *slog.Logger
}

// NewExecutor creates an executor for the given apply-command template.
func NewExecutor(template string, exec Runner, logger *slog.Logger) *Executor {
	return &Executor{Template: template, Exec: exec, Logger: logger}
}

// Apply renders the template for configPath and runs it once.
// A malformed template or a failed command both return an error.
func (e *Executor) Apply(ctx context.Context, configPath string, env ...string) (shell.Result, error) {
	logger := e.logger()
	tmpl, err := ParseTemplate(e.Template)
	if err != nil {
		logger.Error("invalid apply command", "template", e.Template, "error", err)
		return shell.Result{ExitCode: -1}, fmt.Errorf("apply configuration: %w", err)
	}
	if !tmpl.HasPlaceholder() {
		logger.Debug("apply command does not reference {config_file}", "template", e.Template)
	}
	line := tmpl.Render(configPath)

	logger.Info("applying configuration", "command", line)
	res, err := e.Exec.Run(ctx, line, env...)
	if err != nil {
		attrs := []any{"command", line, "exit_code", res.ExitCode, "stderr", strings.TrimSpace(res.Stderr)}
		var cmdErr *shell.CommandError
		if errors.As(err, &cmdErr) {
			attrs = append(attrs, "kind", cmdErr.Kind.String())
		}
		logger.Error("configuration application failed", attrs...)
		return res, fmt.Errorf("apply configuration: %w", err)
	}

	logger.Info("configuration applied", "command", line, "stdout", strings.TrimSpace(res.Stdout))
	return res, nil
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}
