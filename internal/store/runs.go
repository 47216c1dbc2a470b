package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned by LatestRun when a library has no runs.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded generate run.
type Run struct {
	Seq              int64
	ID               string
	Name             string
	Module           string
	Kernel           string
	Fingerprint      string
	FutharkVersion   string
	GeneratorVersion string
	ArrayTypes       int
	EntryPoints      int
	SkipCompile      bool
	CreatedAt        time.Time
	Backends         []BackendRecord
}

// BackendRecord is one backend's header digest within a run.
type BackendRecord struct {
	Backend      string
	HeaderSHA256 string
}

// RunIDGenerator produces unique run ids.
// Implemented by UUIDv7Generator (production) and test generators.
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run ids.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// RecordRun inserts run and its backends in one transaction. Seq is
// assigned by the database and ignored on input.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return errors.New("record run: empty id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, name, module, kernel, fingerprint, futhark_version, generator_version,
		 array_types, entry_points, skip_compile, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Name,
		run.Module,
		run.Kernel,
		run.Fingerprint,
		run.FutharkVersion,
		run.GeneratorVersion,
		run.ArrayTypes,
		run.EntryPoints,
		run.SkipCompile,
		run.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	for i, b := range run.Backends {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO run_backends (run_id, position, backend, header_sha256)
			VALUES (?, ?, ?, ?)
		`, run.ID, i, b.Backend, b.HeaderSHA256)
		if err != nil {
			return fmt.Errorf("record run: backend %s: %w", b.Backend, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record run: commit: %w", err)
	}
	return nil
}

const selectRuns = `
	SELECT seq, id, name, module, kernel, fingerprint, futhark_version, generator_version,
	       array_types, entry_points, skip_compile, created_at
	FROM runs
`

// LatestRun returns the most recent run for name, or ErrRunNotFound.
func (s *Store) LatestRun(ctx context.Context, name string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+`
		WHERE name = ?
		ORDER BY seq DESC
		LIMIT 1
	`, name)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	if err := s.loadBackends(ctx, []*Run{&run}); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns runs newest first. An empty name lists every library;
// limit <= 0 means no limit.
//
// Returns an empty slice (not nil) if there are no runs.
func (s *Store) ListRuns(ctx context.Context, name string, limit int) ([]Run, error) {
	var (
		where []string
		args  []any
	)
	if name != "" {
		where = append(where, "name = ?")
		args = append(args, name)
	}
	query := selectRuns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq DESC"
	if limit > 0 {
		query += " LIMIT ?"
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
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	ptrs := make([]*Run, len(runs))
	for i := range runs {
		ptrs[i] = &runs[i]
	}
	if err := s.loadBackends(ctx, ptrs); err != nil {
		return nil, err
	}
	return runs, nil
}

func (s *Store) loadBackends(ctx context.Context, runs []*Run) error {
	for _, run := range runs {
		rows, err := s.db.QueryContext(ctx, `
			SELECT backend, header_sha256
			FROM run_backends
			WHERE run_id = ?
			ORDER BY position ASC
		`, run.ID)
		if err != nil {
			return fmt.Errorf("query backends: %w", err)
		}
		for rows.Next() {
			var b BackendRecord
			if err := rows.Scan(&b.Backend, &b.HeaderSHA256); err != nil {
				rows.Close()
				return fmt.Errorf("scan backend: %w", err)
			}
			run.Backends = append(run.Backends, b)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return fmt.Errorf("iterate backends: %w", err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run       Run
		createdAt string
	)
	err := row.Scan(
		&run.Seq,
		&run.ID,
		&run.Name,
		&run.Module,
		&run.Kernel,
		&run.Fingerprint,
		&run.FutharkVersion,
		&run.GeneratorVersion,
		&run.ArrayTypes,
		&run.EntryPoints,
		&run.SkipCompile,
		&createdAt,
	)
	if err != nil {
		return Run{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Run{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	run.CreatedAt = t
	return run, nil
}
