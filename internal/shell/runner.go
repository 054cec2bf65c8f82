package shell

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DefaultShell is used when Runner.Shell is empty.
const DefaultShell = "/bin/sh"

// waitDelay bounds how long Wait keeps draining pipes after the child was
// killed. Grandchildren that inherited stdout would otherwise block it.
const waitDelay = 2 * time.Second

// Runner executes commands sequentially. The zero value runs through
// /bin/sh with no timeout and discards logs.
type Runner struct {
	Shell   string        // shell binary used by Run
	Timeout time.Duration // per-command limit, 0 means wait forever
	Logger  *slog.Logger
}

// NewRunner creates a runner with the given shell, timeout and logger.
func NewRunner(shellPath string, timeout time.Duration, logger *slog.Logger) *Runner {
	return &Runner{Shell: shellPath, Timeout: timeout, Logger: logger}
}

// Run executes line through the shell. Extra environment entries
// ("KEY=value") are appended to the inherited environment.
func (r *Runner) Run(ctx context.Context, line string, env ...string) (Result, error) {
	sh := r.Shell
	if sh == "" {
		sh = DefaultShell
	}
	return r.run(ctx, line, []string{sh, "-c", line}, env)
}

// RunArgv executes argv[0] directly with the remaining arguments.
func (r *Runner) RunArgv(ctx context.Context, argv []string, env ...string) (Result, error) {
	if len(argv) == 0 {
		return Result{ExitCode: -1}, &CommandError{Kind: KindLaunch, Err: errors.New("empty argv")}
	}
	return r.run(ctx, strings.Join(argv, " "), argv, env)
}

func (r *Runner) run(parent context.Context, display string, argv []string, env []string) (Result, error) {
	logger := r.logger()

	ctx := parent
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, r.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	configureProcess(cmd)

	logger.Debug("running command", "command", display)
	start := time.Now()
	err := cmd.Run()

	res := Result{
		Command:  display,
		ExitCode: -1,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err == nil {
		logger.Debug("command finished", "command", display, "exit_code", res.ExitCode, "duration", res.Duration)
		return res, nil
	}

	cmdErr := &CommandError{Command: display, Result: res, Err: err}
	var exitErr *exec.ExitError
	switch {
	case parent.Err() != nil:
		cmdErr.Kind = KindCanceled
		cmdErr.Err = parent.Err()
	case ctx.Err() == context.DeadlineExceeded:
		cmdErr.Kind = KindTimeout
		cmdErr.Err = ctx.Err()
	case errors.As(err, &exitErr):
		cmdErr.Kind = KindExit
	default:
		cmdErr.Kind = KindLaunch
	}

	logger.Debug("command failed", "command", display, "kind", cmdErr.Kind.String(), "exit_code", res.ExitCode, "error", err)
	return res, cmdErr
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Logger
}
