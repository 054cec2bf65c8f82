package idem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/roach88/idemcheck/internal/apply"
	"github.com/roach88/idemcheck/internal/fingerprint"
	"github.com/roach88/idemcheck/internal/shell"
)

// Runner runs a shell command line. *shell.Runner satisfies it.
type Runner interface {
	Run(ctx context.Context, line string, env ...string) (shell.Result, error)
}

// Validator lints the configuration file. *lint.Validator satisfies it.
type Validator interface {
	Validate(ctx context.Context, path string) error
}

// Orchestrator drives a run. It holds no per-run state and may be reused
// for consecutive runs.
type Orchestrator struct {
	Runner    Runner
	Validator Validator // required only when RunConfig.Validate is set
	Logger    *slog.Logger
	Now       func() time.Time
}

// New creates an orchestrator.
func New(runner Runner, validator Validator, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{Runner: runner, Validator: validator, Logger: logger, Now: time.Now}
}

// Run executes the check described by cfg. The returned result is never
// nil. The error is a *RunError for every fatal failure and nil when all
// commands succeeded; a non-idempotent configuration is reported through
// RunResult.Idempotent, not as an error.
func (o *Orchestrator) Run(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	r := &run{
		o:      o,
		cfg:    cfg,
		logger: o.logger(),
		seq:    fingerprint.NewSequence(),
		result: &RunResult{Config: cfg, StartedAt: o.now()},
	}

	err := r.execute(ctx)
	r.cleanup()

	res := r.result
	res.Fingerprints = r.seq.Entries()
	res.FinishedAt = o.now()
	if err != nil {
		res.Err = err
		return res, err
	}
	res.Stage = StageTerminal
	return res, nil
}

type run struct {
	o       *Orchestrator
	cfg     RunConfig
	logger  *slog.Logger
	seq     *fingerprint.Sequence
	result  *RunResult
	workDir string
	ownsDir bool
}

func (r *run) enter(stage Stage) {
	r.result.Stage = stage
	r.logger.Debug("entering stage", "stage", stage.String())
}

func (r *run) fail(stage Stage, iteration int, err error) error {
	attrs := []any{"stage", stage.String(), "error", err}
	if iteration > 0 {
		attrs = append(attrs, "iteration", iteration)
	}
	r.logger.Error("run aborted", attrs...)
	return &RunError{Stage: stage, Iteration: iteration, Err: err}
}

func (r *run) execute(ctx context.Context) error {
	r.enter(StageInit)
	if err := r.checkPreconditions(); err != nil {
		return r.fail(StageInit, 0, err)
	}

	if r.cfg.Validate {
		r.enter(StageValidating)
		if r.o.Validator == nil {
			return r.fail(StageValidating, 0, errors.New("validation requested but no validator configured"))
		}
		if err := r.o.Validator.Validate(ctx, r.cfg.ConfigFile); err != nil {
			return r.fail(StageValidating, 0, err)
		}
	}

	r.enter(StagePreparing)
	if err := r.prepareWorkDir(); err != nil {
		return r.fail(StagePreparing, 0, err)
	}

	capturer := fingerprint.NewCapturer(r.cfg.ChecksumCommand, r.o.Runner, r.logger.With("stage", StageCapturingInitial.String()))
	r.enter(StageCapturingInitial)
	fp, err := capturer.Capture(ctx, r.env(0)...)
	if err != nil {
		return r.fail(StageCapturingInitial, 0, err)
	}
	r.seq.Append(fp)

	for i := 1; i <= r.cfg.Iterations; i++ {
		iterLogger := r.logger.With("iteration", i)

		r.enter(StageApplying)
		iterLogger.Info("starting iteration", "of", r.cfg.Iterations)
		executor := apply.NewExecutor(r.cfg.ApplyCommand, r.o.Runner, iterLogger.With("stage", StageApplying.String()))
		if _, err := executor.Apply(ctx, r.cfg.ConfigFile, r.env(i)...); err != nil {
			return r.fail(StageApplying, i, err)
		}

		r.enter(StageCapturingChecksum)
		capturer.Logger = iterLogger.With("stage", StageCapturingChecksum.String())
		fp, err := capturer.Capture(ctx, r.env(i)...)
		if err != nil {
			return r.fail(StageCapturingChecksum, i, err)
		}
		r.seq.Append(fp)
	}

	r.enter(StageReporting)
	r.report()
	return nil
}

func (r *run) checkPreconditions() error {
	if _, err := os.Stat(r.cfg.ConfigFile); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, r.cfg.ConfigFile)
		}
		return fmt.Errorf("configuration file %s: %w", r.cfg.ConfigFile, err)
	}
	if r.cfg.Iterations < MinIterations {
		return fmt.Errorf("%w, got %d", ErrTooFewIterations, r.cfg.Iterations)
	}
	if r.cfg.ChecksumCommand == "" || r.cfg.ApplyCommand == "" {
		return ErrMissingCommand
	}
	return nil
}

func (r *run) prepareWorkDir() error {
	if r.cfg.TempDir != "" {
		if err := os.MkdirAll(r.cfg.TempDir, 0o755); err != nil {
			return fmt.Errorf("failed to create temporary directory %s: %w", r.cfg.TempDir, err)
		}
		r.workDir = r.cfg.TempDir
	} else {
		dir, err := os.MkdirTemp("", "idemcheck-")
		if err != nil {
			return fmt.Errorf("failed to create temporary directory: %w", err)
		}
		r.workDir = dir
		r.ownsDir = true
	}
	r.result.WorkDir = r.workDir
	r.logger.Info("using temporary directory", "path", r.workDir, "created", r.ownsDir)
	return nil
}

func (r *run) env(iteration int) []string {
	return []string{
		EnvWorkDir + "=" + r.workDir,
		EnvConfigFile + "=" + r.cfg.ConfigFile,
		EnvIteration + "=" + strconv.Itoa(iteration),
	}
}

func (r *run) report() {
	r.result.Idempotent = r.seq.Stable()
	r.result.Divergent = r.seq.Divergent()

	if r.result.Idempotent {
		r.logger.Info("configuration is idempotent, system state remains consistent after multiple applications",
			"iterations", r.cfg.Iterations,
			"fingerprints", r.seq.Len())
		return
	}
	r.logger.Warn("configuration is NOT idempotent, system state changes after applying it",
		"iterations", r.cfg.Iterations,
		"checksums", r.seq.Entries(),
		"divergent", r.result.Divergent,
	)
}

func (r *run) cleanup() {
	if r.workDir == "" {
		return
	}
	logger := r.logger.With("stage", StageCleanup.String())
	if !r.ownsDir {
		logger.Debug("leaving caller-supplied temporary directory in place", "path", r.workDir)
		return
	}
	if err := os.RemoveAll(r.workDir); err != nil {
		logger.Warn("failed to remove temporary directory", "path", r.workDir, "error", err)
		return
	}
	logger.Info("temporary directory cleaned up", "path", r.workDir)
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

func (o *Orchestrator) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}
