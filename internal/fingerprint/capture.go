// Package fingerprint captures opaque system-state fingerprints by running
// a user-supplied checksum command, and compares sequences of them.
//
// A fingerprint is the checksum command's stdout with surrounding
// whitespace removed. Nothing else about its format is assumed.
package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/idemcheck/internal/shell"
)

// Executor runs a shell command line.
type Executor interface {
	Run(ctx context.Context, line string, env ...string) (shell.Result, error)
}

// Capturer runs the checksum command and turns its output into a fingerprint.
type Capturer struct {
	Command string
	Exec    Executor
	Logger  *slog.Logger
}

// NewCapturer creates a capturer for the given checksum command.
func NewCapturer(command string, exec Executor, logger *slog.Logger) *Capturer {
	return &Capturer{Command: command, Exec: exec, Logger: logger}
}

// Capture runs the checksum command once. Any launch failure or non-zero
// exit is returned as an error; no fingerprint is produced in that case.
func (c *Capturer) Capture(ctx context.Context, env ...string) (string, error) {
	logger := c.logger()
	res, err := c.Exec.Run(ctx, c.Command, env...)
	if err != nil {
		var cmdErr *shell.CommandError
		if errors.As(err, &cmdErr) {
			logger.Error("checksum command failed",
				"command", c.Command,
				"kind", cmdErr.Kind.String(),
				"exit_code", res.ExitCode,
				"stderr", strings.TrimSpace(res.Stderr),
			)
		}
		return "", fmt.Errorf("capture fingerprint: %w", err)
	}

	fp := strings.TrimSpace(res.Stdout)
	logger.Info("checksum calculated", "fingerprint", fp)
	return fp, nil
}

func (c *Capturer) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}
