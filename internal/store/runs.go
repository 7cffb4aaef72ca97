package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// IDGenerator produces run IDs.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run IDs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Run is one recorded simulation run.
type Run struct {
	Seq            int64  `json:"seq"`
	ID             string `json:"id"`
	Fingerprint    string `json:"fingerprint"`
	Design         string `json:"design"`
	Policy         string `json:"policy"`
	InputWidth     int    `json:"input_width"`
	OutputWidth    int    `json:"output_width"`
	SimLen         int    `json:"simlen"`
	StimulusDigest string `json:"stimulus_digest"`
	Signature      uint64 `json:"signature"`
	DurationMS     int64  `json:"duration_ms"`
}

// Golden is the blessed signature for a fingerprint.
type Golden struct {
	Fingerprint string `json:"fingerprint"`
	Signature   uint64 `json:"signature"`
	RunID       string `json:"run_id"`
}

// WriteRun inserts a run record and returns it with Seq filled in.
//
// Signatures are stored bit-for-bit in a signed INTEGER column, since SQLite
// integers are 64-bit signed.
func (s *Store) WriteRun(ctx context.Context, r Run) (Run, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, fingerprint, design, policy, input_width, output_width, simlen, stimulus_digest, signature, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		r.Fingerprint,
		r.Design,
		r.Policy,
		r.InputWidth,
		r.OutputWidth,
		r.SimLen,
		r.StimulusDigest,
		int64(r.Signature),
		r.DurationMS,
	)
	if err != nil {
		return Run{}, fmt.Errorf("write run: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return Run{}, fmt.Errorf("write run: %w", err)
	}
	r.Seq = seq
	return r, nil
}

// ListRuns returns the most recent runs, newest first.
// A limit of zero or less returns every run.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, fingerprint, design, policy, input_width, output_width, simlen, stimulus_digest, signature, duration_ms
		FROM runs
		ORDER BY seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	return collectRuns(rows)
}

// RunsByFingerprint returns all runs sharing a fingerprint, oldest first.
func (s *Store) RunsByFingerprint(ctx context.Context, fingerprint string) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, fingerprint, design, policy, input_width, output_width, simlen, stimulus_digest, signature, duration_ms
		FROM runs
		WHERE fingerprint = ?
		ORDER BY seq ASC
	`, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	return collectRuns(rows)
}

// SetGolden blesses the signature of a recorded run for its fingerprint,
// replacing any previous golden signature.
func (s *Store) SetGolden(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO golden (fingerprint, signature, run_id)
		VALUES (?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			signature = excluded.signature,
			run_id = excluded.run_id
	`, r.Fingerprint, int64(r.Signature), r.ID)
	if err != nil {
		return fmt.Errorf("set golden: %w", err)
	}
	return nil
}

// GoldenFor returns the golden signature for a fingerprint.
// found is false if none has been blessed.
func (s *Store) GoldenFor(ctx context.Context, fingerprint string) (g Golden, found bool, err error) {
	var sig int64
	err = s.db.QueryRowContext(ctx, `
		SELECT fingerprint, signature, run_id FROM golden WHERE fingerprint = ?
	`, fingerprint).Scan(&g.Fingerprint, &sig, &g.RunID)
	if errors.Is(err, sql.ErrNoRows) {
		return Golden{}, false, nil
	}
	if err != nil {
		return Golden{}, false, fmt.Errorf("read golden: %w", err)
	}
	g.Signature = uint64(sig)
	return g, true, nil
}

func collectRuns(rows *sql.Rows) ([]Run, error) {
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		var sig int64
		if err := rows.Scan(
			&r.Seq,
			&r.ID,
			&r.Fingerprint,
			&r.Design,
			&r.Policy,
			&r.InputWidth,
			&r.OutputWidth,
			&r.SimLen,
			&r.StimulusDigest,
			&sig,
			&r.DurationMS,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Signature = uint64(sig)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
