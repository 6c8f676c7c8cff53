package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"selecta/pipeline-service/internal/scoring"
)

const uniqueViolation = "23505"

const applicationColumns = `id, tenant_id, job_id, candidate_id, current_stage, status, scores, version, created_at, updated_at`

// PGStore persists applications and their history in PostgreSQL. The
// history table is insert-only and written in the same transaction as the
// parent row, so the last history entry always matches current_stage.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore returns a Store backed by the given pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Insert creates the application row plus its initial history entry.
func (s *PGStore) Insert(ctx context.Context, app *Application, first StageChange) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("insert application begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO applications (id, tenant_id, job_id, candidate_id, current_stage, status, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		app.ID, app.TenantID, app.JobID, app.CandidateID,
		app.CurrentStage, app.Status, app.Version, app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicate
		}
		return fmt.Errorf("insert application: %w", err)
	}

	if err := insertHistory(ctx, tx, app.ID, first); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("insert application commit: %w", err)
	}
	return nil
}

// Get returns one application by id.
func (s *PGStore) Get(ctx context.Context, id uuid.UUID) (*Application, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id)

	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get application: %w", err)
	}
	return app, nil
}

// ListByJob returns a job's applications, newest activity first. An empty
// stage returns all of them.
func (s *PGStore) ListByJob(ctx context.Context, jobID uuid.UUID, stage Stage) ([]Application, error) {
	const base = `SELECT ` + applicationColumns + ` FROM applications WHERE job_id = $1`

	var (
		rows pgx.Rows
		err  error
	)
	if stage != "" {
		rows, err = s.pool.Query(ctx, base+` AND current_stage = $2 ORDER BY updated_at DESC`, jobID, stage)
	} else {
		rows, err = s.pool.Query(ctx, base+` ORDER BY updated_at DESC`, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	apps := make([]Application, 0)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("list applications scan: %w", err)
		}
		apps = append(apps, *app)
	}
	return apps, rows.Err()
}

// ApplyTransition writes the new stage, derived status and history entry
// atomically, guarded by the version the caller observed.
func (s *PGStore) ApplyTransition(ctx context.Context, id uuid.UUID, expectedVersion int64, to Stage, status Status, entry StageChange) (*Application, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("transition begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`UPDATE applications
		 SET current_stage = $1, status = $2, version = version + 1, updated_at = $3
		 WHERE id = $4 AND version = $5
		 RETURNING `+applicationColumns,
		to, status, entry.ChangedAt, id, expectedVersion,
	)
	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.classifyMiss(ctx, id)
		}
		return nil, fmt.Errorf("transition update: %w", err)
	}

	if err := insertHistory(ctx, tx, id, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("transition commit: %w", err)
	}
	return app, nil
}

// History returns the stage history, newest first.
func (s *PGStore) History(ctx context.Context, id uuid.UUID) ([]StageChange, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT from_stage, to_stage, changed_by, changed_at, COALESCE(note, '')
		 FROM application_stage_history
		 WHERE application_id = $1
		 ORDER BY changed_at DESC, id DESC`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("application history: %w", err)
	}
	defer rows.Close()

	entries := make([]StageChange, 0)
	for rows.Next() {
		var e StageChange
		if err := rows.Scan(&e.From, &e.To, &e.ChangedBy, &e.ChangedAt, &e.Note); err != nil {
			return nil, fmt.Errorf("application history scan: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SaveScore writes the cached score. It is not version-guarded: the score
// is a derived artifact and the latest computation wins.
func (s *PGStore) SaveScore(ctx context.Context, id uuid.UUID, score scoring.Score) error {
	payload, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("marshal score: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE applications SET scores = $1 WHERE id = $2`,
		payload, id,
	)
	if err != nil {
		return fmt.Errorf("save score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ActiveIDs returns the ids of all active applications.
func (s *PGStore) ActiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM applications WHERE status = $1`, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("active applications: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("active applications scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// classifyMiss distinguishes a stale version from a missing row after a
// guarded update matched nothing.
func (s *PGStore) classifyMiss(ctx context.Context, id uuid.UUID) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM applications WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("transition classify: %w", err)
	}
	if exists {
		return ErrConflict
	}
	return ErrNotFound
}

func insertHistory(ctx context.Context, tx pgx.Tx, id uuid.UUID, entry StageChange) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO application_stage_history (application_id, from_stage, to_stage, changed_by, changed_at, note)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))`,
		id, entry.From, entry.To, entry.ChangedBy, entry.ChangedAt, entry.Note,
	)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

func scanApplication(row pgx.Row) (*Application, error) {
	var app Application
	err := row.Scan(
		&app.ID, &app.TenantID, &app.JobID, &app.CandidateID,
		&app.CurrentStage, &app.Status, &app.Scores, &app.Version,
		&app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &app, nil
}
