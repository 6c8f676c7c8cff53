package scoring

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGSource loads score inputs from PostgreSQL. All reads are against
// records owned by other services; nothing here writes.
type PGSource struct {
	pool *pgxpool.Pool
}

// NewPGSource returns a snapshot loader backed by the given pool.
func NewPGSource(pool *pgxpool.Pool) *PGSource {
	return &PGSource{pool: pool}
}

// Snapshot assembles the immutable Inputs for one application. Any read
// failure, including a connection dropped mid-iteration, surfaces as an
// error; a partial snapshot is never returned.
func (s *PGSource) Snapshot(ctx context.Context, applicationID, jobID, candidateID uuid.UUID) (Inputs, error) {
	var in Inputs

	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(employment_type, ''), work_mode,
		        COALESCE(location_city, ''), COALESCE(location_state, ''),
		        salary_max, ideal_profile IS NOT NULL
		 FROM jobs WHERE id = $1`,
		jobID,
	).Scan(
		&in.Job.EmploymentType, &in.Job.WorkMode,
		&in.Job.LocationCity, &in.Job.LocationState,
		&in.Job.SalaryMax, &in.Job.HasIdealProfile,
	)
	if err != nil {
		return Inputs{}, fmt.Errorf("snapshot job %s: %w", jobID, err)
	}

	err = s.pool.QueryRow(ctx,
		`SELECT COALESCE(location_city, ''), COALESCE(location_state, ''), salary_expectation
		 FROM candidates WHERE id = $1`,
		candidateID,
	).Scan(&in.Candidate.LocationCity, &in.Candidate.LocationState, &in.Candidate.SalaryExpectation)
	if err != nil {
		return Inputs{}, fmt.Errorf("snapshot candidate %s: %w", candidateID, err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT skill_id, min_level, must_have FROM job_required_skills WHERE job_id = $1`,
		jobID,
	)
	if err != nil {
		return Inputs{}, fmt.Errorf("snapshot required skills: %w", err)
	}
	err = forEachRow(rows, func(r pgx.Rows) error {
		var rs RequiredSkill
		if err := r.Scan(&rs.SkillID, &rs.MinLevel, &rs.MustHave); err != nil {
			return err
		}
		in.RequiredSkills = append(in.RequiredSkills, rs)
		return nil
	})
	if err != nil {
		return Inputs{}, fmt.Errorf("snapshot required skills: %w", err)
	}

	rows, err = s.pool.Query(ctx,
		`SELECT skill_id, level FROM candidate_skills WHERE candidate_id = $1`,
		candidateID,
	)
	if err != nil {
		return Inputs{}, fmt.Errorf("snapshot candidate skills: %w", err)
	}
	err = forEachRow(rows, func(r pgx.Rows) error {
		var cs CandidateSkill
		if err := r.Scan(&cs.SkillID, &cs.Level); err != nil {
			return err
		}
		in.CandidateSkills = append(in.CandidateSkills, cs)
		return nil
	})
	if err != nil {
		return Inputs{}, fmt.Errorf("snapshot candidate skills: %w", err)
	}

	rows, err = s.pool.Query(ctx,
		`SELECT start_date, end_date FROM experiences WHERE candidate_id = $1`,
		candidateID,
	)
	if err != nil {
		return Inputs{}, fmt.Errorf("snapshot experiences: %w", err)
	}
	err = forEachRow(rows, func(r pgx.Rows) error {
		var e ExperienceEntry
		if err := r.Scan(&e.StartDate, &e.EndDate); err != nil {
			return err
		}
		in.Experience = append(in.Experience, e)
		return nil
	})
	if err != nil {
		return Inputs{}, fmt.Errorf("snapshot experiences: %w", err)
	}

	err = s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM assessments WHERE application_id = $1`,
		applicationID,
	).Scan(&in.AssessmentCount)
	if err != nil {
		return Inputs{}, fmt.Errorf("snapshot assessments: %w", err)
	}

	return in, nil
}

// forEachRow drains rows, invoking scan per row, and returns the iteration
// error pgx reports when a connection fails mid-read. pgx ends iteration
// without a scan error in that case, so skipping rows.Err() would hand the
// caller a truncated result set.
func forEachRow(rows pgx.Rows, scan func(pgx.Rows) error) error {
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
