package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/idemcheck/internal/history"
	"github.com/roach88/idemcheck/internal/idem"
	"github.com/roach88/idemcheck/internal/lint"
	"github.com/roach88/idemcheck/internal/profile"
	"github.com/roach88/idemcheck/internal/shell"
)

func runCheck(cmd *cobra.Command, opts *CheckOptions, configFile string) error {
	logger := newLogger(cmd.ErrOrStderr(), opts.RootOptions)

	linters, err := applyProfile(cmd, opts)
	if err != nil {
		return err
	}
	if err := requireCommands(opts); err != nil {
		return err
	}

	runner := shell.NewRunner(opts.Shell, opts.Timeout, logger)

	var validator idem.Validator
	if opts.Validate {
		validator = newValidator(runner, opts.BuiltinLint, linters, logger)
	}

	orch := idem.New(runner, validator, logger)
	if opts.Now != nil {
		orch.Now = opts.Now
	}

	// Setup signal handling so an interrupted run still cleans up.
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Warn("received signal, aborting run", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	res, runErr := orch.Run(ctx, idem.RunConfig{
		ConfigFile:      configFile,
		ApplyCommand:    opts.ApplyCommand,
		ChecksumCommand: opts.ChecksumCommand,
		Iterations:      opts.Iterations,
		Validate:        opts.Validate,
		TempDir:         opts.TempDir,
	})

	var runID string
	if opts.Record != "" {
		runID = recordRun(ctx, opts, res, logger)
	}

	report := NewReport(res, runID)
	if err := report.Write(cmd.OutOrStdout(), opts.Format); err != nil {
		logger.Error("failed to write report", "error", err)
	}

	if runErr != nil {
		return WrapExitError(ExitFailure, "idempotency check failed", runErr)
	}
	if !res.Idempotent {
		return &ExitError{Code: ExitFailure, Message: "idempotency check failed", Err: idem.ErrNotIdempotent}
	}
	return nil
}

// applyProfile loads --profile and copies its values into every flag the
// user did not set explicitly. It returns the profile's linter overrides.
func applyProfile(cmd *cobra.Command, opts *CheckOptions) (map[string][]string, error) {
	if opts.Profile == "" {
		return nil, nil
	}
	p, err := profile.Load(opts.Profile)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load profile", err)
	}

	flags := cmd.Flags()
	unset := func(name string) bool { return !flags.Changed(name) }

	if unset("checksum_command") && p.ChecksumCommand != "" {
		opts.ChecksumCommand = p.ChecksumCommand
	}
	if unset("apply_command") && p.ApplyCommand != "" {
		opts.ApplyCommand = p.ApplyCommand
	}
	if unset("num_iterations") && p.NumIterations != nil {
		opts.Iterations = *p.NumIterations
	}
	if unset("temp_dir") && p.TempDir != "" {
		opts.TempDir = p.TempDir
	}
	if unset("validate") && p.Validate != nil {
		opts.Validate = *p.Validate
	}
	if unset("builtin-lint") && p.BuiltinLint != nil {
		opts.BuiltinLint = *p.BuiltinLint
	}
	if unset("timeout") && p.Timeout != "" {
		timeout, err := p.TimeoutDuration()
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load profile", err)
		}
		opts.Timeout = timeout
	}
	if unset("shell") && p.Shell != "" {
		opts.Shell = p.Shell
	}
	if unset("record") && p.Record != "" {
		opts.Record = p.Record
	}
	return p.Linters, nil
}

func requireCommands(opts *CheckOptions) error {
	var missing []string
	if opts.ApplyCommand == "" {
		missing = append(missing, `"apply_command"`)
	}
	if opts.ChecksumCommand == "" {
		missing = append(missing, `"checksum_command"`)
	}
	if len(missing) > 0 {
		return NewExitError(ExitCommandError, "required flag(s) "+strings.Join(missing, ", ")+" not set")
	}
	return nil
}

func newValidator(runner *shell.Runner, builtin bool, overrides map[string][]string, logger *slog.Logger) *lint.Validator {
	linters := lint.DefaultExternal(runner)
	if builtin {
		linters = lint.DefaultBuiltin()
	}
	return lint.NewValidator(lint.WithOverrides(linters, runner, overrides), logger)
}

// recordRun stores res in the history database. Failures are logged and
// never change the outcome of the check.
func recordRun(ctx context.Context, opts *CheckOptions, res *idem.RunResult, logger *slog.Logger) string {
	st, err := history.Open(opts.Record)
	if err != nil {
		logger.Error("failed to open history database", "path", opts.Record, "error", err)
		return ""
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing history database", "error", closeErr)
		}
	}()

	rec := history.NewRecorder(st)
	if opts.IDs != nil {
		rec.IDs = opts.IDs
	}

	// The run context may already be canceled by a signal; the record
	// still describes the aborted run.
	id, err := rec.Record(context.WithoutCancel(ctx), res)
	if err != nil {
		logger.Error("failed to record run", "path", opts.Record, "error", err)
		return ""
	}
	logger.Info("run recorded", "run_id", id, "path", opts.Record)
	return id
}
