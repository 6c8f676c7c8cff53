package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"selecta/pipeline-service/internal/scoring"
)

// Application is one candidate's pursuit of one job. All mutation goes
// through the stage machine; current_stage, status and the history log are
// never written directly by other components.
type Application struct {
	ID           uuid.UUID      `json:"id"`
	TenantID     uuid.UUID      `json:"tenantId"`
	JobID        uuid.UUID      `json:"jobId"`
	CandidateID  uuid.UUID      `json:"candidateId"`
	CurrentStage Stage          `json:"currentStage"`
	Status       Status         `json:"status"`
	Scores       *scoring.Score `json:"scores,omitempty"`
	Version      int64          `json:"-"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// StageChange is one append-only history entry. From is nil only on the
// entry written at creation.
type StageChange struct {
	From      *Stage    `json:"from"`
	To        Stage     `json:"to"`
	ChangedBy uuid.UUID `json:"changedBy"`
	ChangedAt time.Time `json:"changedAt"`
	Note      string    `json:"note,omitempty"`
}

// Store is the persistence boundary of the application machine. History
// writes are insert-only and happen in the same transaction as the parent
// update; a version mismatch on a write surfaces as ErrConflict.
type Store interface {
	Insert(ctx context.Context, app *Application, first StageChange) error
	Get(ctx context.Context, id uuid.UUID) (*Application, error)
	ListByJob(ctx context.Context, jobID uuid.UUID, stage Stage) ([]Application, error)
	ApplyTransition(ctx context.Context, id uuid.UUID, expectedVersion int64, to Stage, status Status, entry StageChange) (*Application, error)
	History(ctx context.Context, id uuid.UUID) ([]StageChange, error)
	SaveScore(ctx context.Context, id uuid.UUID, score scoring.Score) error
	ActiveIDs(ctx context.Context) ([]uuid.UUID, error)
}

// ScoreSource loads the read-only records a score is computed from.
type ScoreSource interface {
	Snapshot(ctx context.Context, applicationID, jobID, candidateID uuid.UUID) (scoring.Inputs, error)
}
