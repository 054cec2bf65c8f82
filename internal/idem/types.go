package idem

import (
	"errors"
	"fmt"
	"time"
)

// MinIterations is the smallest accepted iteration count.
const MinIterations = 2

// Environment variables exported to apply and checksum commands.
const (
	EnvWorkDir    = "IDEMCHECK_WORKDIR"
	EnvConfigFile = "IDEMCHECK_CONFIG_FILE"
	EnvIteration  = "IDEMCHECK_ITERATION"
)

// Stage identifies a step of the run state machine.
type Stage int

const (
	StageInit Stage = iota
	StageValidating
	StagePreparing
	StageCapturingInitial
	StageApplying
	StageCapturingChecksum
	StageReporting
	StageCleanup
	StageTerminal
)

var stageNames = [...]string{
	StageInit:              "init",
	StageValidating:        "validating",
	StagePreparing:         "preparing",
	StageCapturingInitial:  "capturing-initial",
	StageApplying:          "applying",
	StageCapturingChecksum: "capturing-checksum",
	StageReporting:         "reporting",
	StageCleanup:           "cleanup",
	StageTerminal:          "terminal",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Precondition failures detected in Init.
var (
	ErrConfigNotFound   = errors.New("configuration file not found")
	ErrTooFewIterations = errors.New("number of iterations must be at least 2")
	ErrMissingCommand   = errors.New("checksum and apply commands are required")
)

// ErrNotIdempotent marks a completed run whose fingerprints diverged. Run
// never returns it; callers that need an error for the verdict wrap it.
var ErrNotIdempotent = errors.New("configuration is not idempotent")

// RunConfig describes one idempotency check. It is not modified by Run.
type RunConfig struct {
	ConfigFile      string
	ApplyCommand    string // shell template containing {config_file}
	ChecksumCommand string // shell command line printing the fingerprint
	Iterations      int
	Validate        bool
	TempDir         string // caller-owned working directory, empty to create one
}

// RunResult is produced once, at the end of a run.
type RunResult struct {
	Config       RunConfig
	Idempotent   bool
	Fingerprints []string // baseline first, then one per completed iteration
	Divergent    []int    // indexes of fingerprints that differ from the baseline
	WorkDir      string
	Stage        Stage // stage the run stopped in, StageTerminal on completion
	Err          error // fatal error, nil if every command succeeded
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Completed reports whether every stage ran, regardless of the verdict.
func (r *RunResult) Completed() bool {
	return r.Err == nil
}

// Passed reports whether the run completed and found the configuration idempotent.
func (r *RunResult) Passed() bool {
	return r.Err == nil && r.Idempotent
}

// RunError is a fatal failure at a given stage. Iteration is 1-based and
// zero outside the apply loop.
type RunError struct {
	Stage     Stage
	Iteration int
	Err       error
}

func (e *RunError) Error() string {
	if e.Iteration > 0 {
		return fmt.Sprintf("%s (iteration %d): %v", e.Stage, e.Iteration, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
