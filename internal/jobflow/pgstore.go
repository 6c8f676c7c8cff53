package jobflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const jobColumns = `id, organization_id, title, status, recruitment_stage, contratacao_result, version, updated_at`

// PGStore persists jobs and their lane history in PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore returns a Store backed by the given pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Get returns one job by id.
func (s *PGStore) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ApplyMove writes the lane change and history entry atomically, guarded
// by the version the caller observed.
func (s *PGStore) ApplyMove(ctx context.Context, id uuid.UUID, expectedVersion int64, to Lane, clearResult bool, entry LaneChange) (*Job, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("move begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`UPDATE jobs
		 SET recruitment_stage = $1,
		     contratacao_result = CASE WHEN $2 THEN NULL ELSE contratacao_result END,
		     version = version + 1,
		     updated_at = $3
		 WHERE id = $4 AND version = $5
		 RETURNING `+jobColumns,
		to, clearResult, entry.ChangedAt, id, expectedVersion,
	)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.classifyMiss(ctx, id)
		}
		return nil, fmt.Errorf("move update: %w", err)
	}

	if err := insertLaneHistory(ctx, tx, id, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("move commit: %w", err)
	}
	return job, nil
}

// ApplyHiringResult writes the contratacao outcome, the resulting lane and
// optionally the closed status, plus the history entry, atomically.
func (s *PGStore) ApplyHiringResult(ctx context.Context, id uuid.UUID, expectedVersion int64, result HiringResult, to Lane, closeJob bool, entry LaneChange) (*Job, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("hiring result begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`UPDATE jobs
		 SET contratacao_result = $1,
		     recruitment_stage = $2,
		     status = CASE WHEN $3 THEN 'closed' ELSE status END,
		     version = version + 1,
		     updated_at = $4
		 WHERE id = $5 AND version = $6
		 RETURNING `+jobColumns,
		result, to, closeJob, entry.ChangedAt, id, expectedVersion,
	)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.classifyMiss(ctx, id)
		}
		return nil, fmt.Errorf("hiring result update: %w", err)
	}

	if err := insertLaneHistory(ctx, tx, id, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("hiring result commit: %w", err)
	}
	return job, nil
}

// History returns the job's lane history, newest first.
func (s *PGStore) History(ctx context.Context, id uuid.UUID) ([]LaneChange, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT from_stage, to_stage, changed_by, changed_at, COALESCE(notes, '')
		 FROM job_stage_history
		 WHERE job_id = $1
		 ORDER BY changed_at DESC, id DESC`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("job history: %w", err)
	}
	defer rows.Close()

	entries := make([]LaneChange, 0)
	for rows.Next() {
		var e LaneChange
		if err := rows.Scan(&e.From, &e.To, &e.ChangedBy, &e.ChangedAt, &e.Notes); err != nil {
			return nil, fmt.Errorf("job history scan: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PGStore) classifyMiss(ctx context.Context, id uuid.UUID) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM jobs WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("move classify: %w", err)
	}
	if exists {
		return ErrConflict
	}
	return ErrNotFound
}

func insertLaneHistory(ctx context.Context, tx pgx.Tx, id uuid.UUID, entry LaneChange) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO job_stage_history (job_id, from_stage, to_stage, changed_by, changed_at, notes)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))`,
		id, entry.From, entry.To, entry.ChangedBy, entry.ChangedAt, entry.Notes,
	)
	if err != nil {
		return fmt.Errorf("insert job history entry: %w", err)
	}
	return nil
}

func scanJob(row pgx.Row) (*Job, error) {
	var job Job
	err := row.Scan(
		&job.ID, &job.OrganizationID, &job.Title, &job.Status,
		&job.RecruitmentStage, &job.ContratacaoResult, &job.Version, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}
