package board

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"selecta/pipeline-service/internal/jobflow"
)

// PGReader reads board rows from PostgreSQL.
type PGReader struct {
	pool *pgxpool.Pool
}

// NewPGReader returns a Reader backed by the given pool.
func NewPGReader(pool *pgxpool.Pool) *PGReader {
	return &PGReader{pool: pool}
}

// JobSummary returns the header block for a job's pipeline view.
func (r *PGReader) JobSummary(ctx context.Context, jobID uuid.UUID) (*JobSummary, error) {
	var s JobSummary
	err := r.pool.QueryRow(ctx,
		`SELECT j.id, j.title, COALESCE(o.name, 'N/A'), j.status
		 FROM jobs j
		 LEFT JOIN organizations o ON o.id = j.organization_id
		 WHERE j.id = $1`,
		jobID,
	).Scan(&s.JobID, &s.Title, &s.ClientName, &s.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, jobflow.ErrNotFound
		}
		return nil, fmt.Errorf("job summary: %w", err)
	}
	return &s, nil
}

// CardRows returns every application of the job joined with its candidate
// and cached score, most recently updated first.
func (r *PGReader) CardRows(ctx context.Context, jobID uuid.UUID) ([]CardRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id,
		        COALESCE(u.full_name, 'Candidato'),
		        COALESCE(c.location_city, ''),
		        COALESCE(c.availability, ''),
		        COALESCE((a.scores ->> 'total')::float8, 0),
		        a.current_stage,
		        a.updated_at
		 FROM applications a
		 JOIN candidates c ON c.id = a.candidate_id
		 LEFT JOIN users u ON u.id = c.user_id
		 WHERE a.job_id = $1
		 ORDER BY a.updated_at DESC`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("card rows: %w", err)
	}
	defer rows.Close()

	out := make([]CardRow, 0)
	for rows.Next() {
		var row CardRow
		err := rows.Scan(
			&row.ApplicationID, &row.CandidateName, &row.CandidateCity,
			&row.Availability, &row.ScoreTotal, &row.CurrentStage, &row.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("card row scan: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// JobCards returns every job with its application count.
func (r *PGReader) JobCards(ctx context.Context) ([]JobCard, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT j.id, j.title, j.status, j.recruitment_stage, COUNT(a.id)
		 FROM jobs j
		 LEFT JOIN applications a ON a.job_id = j.id
		 GROUP BY j.id
		 ORDER BY j.updated_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("job cards: %w", err)
	}
	defer rows.Close()

	out := make([]JobCard, 0)
	for rows.Next() {
		var card JobCard
		err := rows.Scan(
			&card.ID, &card.Title, &card.Status,
			&card.RecruitmentStage, &card.ApplicationsCount,
		)
		if err != nil {
			return nil, fmt.Errorf("job card scan: %w", err)
		}
		out = append(out, card)
	}
	return out, rows.Err()
}
