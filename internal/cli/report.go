package cli

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/roach88/idemcheck/internal/fingerprint"
	"github.com/roach88/idemcheck/internal/idem"
)

// Report is the outcome of a check as shown to the user.
type Report struct {
	RunID           string    `json:"run_id,omitempty"`
	ConfigFile      string    `json:"config_file"`
	Iterations      int       `json:"iterations"`
	Completed       bool      `json:"completed"`
	Idempotent      bool      `json:"idempotent"`
	Fingerprints    []string  `json:"fingerprints"`
	FingerprintsHex []string  `json:"fingerprints_hex,omitempty"`
	Divergent       []int     `json:"divergent,omitempty"`
	FailedStage     string    `json:"failed_stage,omitempty"`
	FailedIteration int       `json:"failed_iteration,omitempty"`
	Error           string    `json:"error,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	Duration        string    `json:"duration"`
}

// NewReport builds a report from an orchestrator result. runID is empty
// when the run was not recorded.
func NewReport(res *idem.RunResult, runID string) Report {
	r := Report{
		RunID:           runID,
		ConfigFile:      res.Config.ConfigFile,
		Iterations:      res.Config.Iterations,
		Completed:       res.Completed(),
		Idempotent:      res.Idempotent,
		Fingerprints:    append([]string{}, res.Fingerprints...),
		FingerprintsHex: fingerprint.HexIfBinary(res.Fingerprints),
		Divergent:       res.Divergent,
		StartedAt:       res.StartedAt.UTC(),
		Duration:        res.FinishedAt.Sub(res.StartedAt).String(),
	}
	if res.Err != nil {
		r.FailedStage = res.Stage.String()
		r.Error = res.Err.Error()
		var runErr *idem.RunError
		if errors.As(res.Err, &runErr) {
			r.FailedStage = runErr.Stage.String()
			r.FailedIteration = runErr.Iteration
			r.Error = runErr.Err.Error()
		}
	}
	return r
}

// Code returns the error code for an aborted run, keyed by the stage it
// stopped in. Completed runs have no code.
func (r Report) Code() string {
	switch r.FailedStage {
	case "":
		return ""
	case idem.StageInit.String():
		return "E001"
	case idem.StageValidating.String():
		return "E002"
	case idem.StagePreparing.String():
		return "E003"
	case idem.StageCapturingInitial.String(), idem.StageCapturingChecksum.String():
		return "E004"
	case idem.StageApplying.String():
		return "E005"
	default:
		return "E000"
	}
}

// Summary is the one-line outcome.
func (r Report) Summary() string {
	switch {
	case !r.Completed:
		where := r.FailedStage
		if r.FailedIteration > 0 {
			where = fmt.Sprintf("%s (iteration %d)", where, r.FailedIteration)
		}
		return "run aborted in " + where
	case r.Idempotent:
		return "configuration is idempotent"
	default:
		return "configuration is not idempotent"
	}
}

// String renders the text form of the report.
func (r Report) String() string {
	var b strings.Builder
	switch {
	case !r.Completed:
		fmt.Fprintf(&b, "ABORTED [%s]: %s\n", r.Code(), r.Summary())
	case r.Idempotent:
		fmt.Fprintf(&b, "PASS: %s\n", r.Summary())
	default:
		fmt.Fprintf(&b, "FAIL: %s\n", r.Summary())
	}

	field := func(label, value string) {
		fmt.Fprintf(&b, "%-14s%s\n", label+":", value)
	}
	if r.RunID != "" {
		field("run id", r.RunID)
	}
	field("config", r.ConfigFile)
	field("started", r.StartedAt.Format(time.RFC3339))
	field("duration", r.Duration)
	field("iterations", fmt.Sprint(r.Iterations))
	if r.Error != "" {
		field("error", r.Error)
	}

	if len(r.Fingerprints) == 0 {
		field("fingerprints", "none")
	} else {
		b.WriteString("fingerprints:\n")
		for i, fp := range r.Fingerprints {
			fmt.Fprintf(&b, "  [%d] %s", i, fp)
			switch {
			case i == 0:
				b.WriteString(" (baseline)")
			case slices.Contains(r.Divergent, i):
				b.WriteString(" (differs)")
			}
			b.WriteByte('\n')
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Write outputs the report in the given format. Completed runs use the
// success envelope whatever the verdict; aborted runs use the error one.
func (r Report) Write(w io.Writer, format string) error {
	f := &OutputFormatter{Format: format, Writer: w}
	if r.Completed || format != "json" {
		return f.Success(r)
	}
	return f.Error(r.Code(), r.Summary(), r)
}
