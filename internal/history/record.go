package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/idemcheck/internal/fingerprint"
	"github.com/roach88/idemcheck/internal/idem"
)

// ErrRunNotFound is returned by GetRun for an unknown ID.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded idempotency check.
type Run struct {
	ID              string    `json:"id"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	ConfigFile      string    `json:"config_file"`
	ApplyCommand    string    `json:"apply_command"`
	ChecksumCommand string    `json:"checksum_command"`
	Iterations      int       `json:"iterations"`
	Validated       bool      `json:"validated"`
	Completed       bool      `json:"completed"`
	Idempotent      bool      `json:"idempotent"`
	FailedStage     string    `json:"failed_stage,omitempty"`
	Error           string    `json:"error,omitempty"`
	Digest          string    `json:"fingerprints_digest"`
	Fingerprints    []string  `json:"fingerprints,omitempty"`
	FingerprintsHex []string  `json:"fingerprints_hex,omitempty"`
}

// FromResult converts an orchestrator result into a history record.
func FromResult(id string, res *idem.RunResult) (Run, error) {
	digest, err := FingerprintDigest(res.Fingerprints)
	if err != nil {
		return Run{}, err
	}

	run := Run{
		ID:              id,
		StartedAt:       res.StartedAt.UTC(),
		FinishedAt:      res.FinishedAt.UTC(),
		ConfigFile:      res.Config.ConfigFile,
		ApplyCommand:    res.Config.ApplyCommand,
		ChecksumCommand: res.Config.ChecksumCommand,
		Iterations:      res.Config.Iterations,
		Validated:       res.Config.Validate,
		Completed:       res.Completed(),
		Idempotent:      res.Idempotent,
		Digest:          digest,
		Fingerprints:    append([]string{}, res.Fingerprints...),
		FingerprintsHex: fingerprint.HexIfBinary(res.Fingerprints),
	}
	if res.Err != nil {
		run.FailedStage = res.Stage.String()
		run.Error = res.Err.Error()
	}
	return run, nil
}

// WriteRun inserts a run and its fingerprints in one transaction.
// Uses ON CONFLICT(id) DO NOTHING - writing the same run twice is a no-op.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, started_at, finished_at, config_file, apply_command, checksum_command,
		 iterations, validated, completed, idempotent, failed_stage, error, fingerprints_digest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.StartedAt.UnixNano(),
		run.FinishedAt.UnixNano(),
		run.ConfigFile,
		run.ApplyCommand,
		run.ChecksumCommand,
		run.Iterations,
		run.Validated,
		run.Completed,
		run.Idempotent,
		run.FailedStage,
		run.Error,
		run.Digest,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("write run: rows affected: %w", err)
	}
	if inserted == 0 {
		return nil
	}

	for i, fp := range run.Fingerprints {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO fingerprints (run_id, idx, value) VALUES (?, ?, ?)`,
			run.ID, i, fp,
		); err != nil {
			return fmt.Errorf("write run: fingerprint %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write run: commit: %w", err)
	}
	return nil
}

const runColumns = `id, started_at, finished_at, config_file, apply_command, checksum_command,
	iterations, validated, completed, idempotent, failed_stage, error, fingerprints_digest`

// ListRuns returns up to limit runs, newest first. Fingerprints are not
// loaded. A limit of zero or less returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id COLLATE BINARY DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns a single run with its fingerprints in capture order.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT value FROM fingerprints
		WHERE run_id = ?
		ORDER BY idx ASC
	`, id)
	if err != nil {
		return Run{}, fmt.Errorf("query fingerprints: %w", err)
	}
	defer rows.Close()

	run.Fingerprints = []string{}
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return Run{}, fmt.Errorf("scan fingerprint: %w", err)
		}
		run.Fingerprints = append(run.Fingerprints, fp)
	}
	if err := rows.Err(); err != nil {
		return Run{}, fmt.Errorf("iterate fingerprints: %w", err)
	}
	run.FingerprintsHex = fingerprint.HexIfBinary(run.Fingerprints)
	return run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run               Run
		started, finished int64
	)
	err := row.Scan(
		&run.ID,
		&started,
		&finished,
		&run.ConfigFile,
		&run.ApplyCommand,
		&run.ChecksumCommand,
		&run.Iterations,
		&run.Validated,
		&run.Completed,
		&run.Idempotent,
		&run.FailedStage,
		&run.Error,
		&run.Digest,
	)
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.StartedAt = time.Unix(0, started).UTC()
	run.FinishedAt = time.Unix(0, finished).UTC()
	return run, nil
}

// Recorder assigns IDs and writes orchestrator results to a store.
type Recorder struct {
	Store *Store
	IDs   IDGenerator
}

// NewRecorder creates a recorder that issues UUIDv7 run IDs.
func NewRecorder(store *Store) *Recorder {
	return &Recorder{Store: store, IDs: UUIDv7Generator{}}
}

// Record stores res and returns the assigned run ID.
func (r *Recorder) Record(ctx context.Context, res *idem.RunResult) (string, error) {
	run, err := FromResult(r.IDs.Generate(), res)
	if err != nil {
		return "", err
	}
	if err := r.Store.WriteRun(ctx, run); err != nil {
		return "", err
	}
	return run.ID, nil
}
