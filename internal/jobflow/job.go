package jobflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a job id is unknown.
var ErrNotFound = errors.New("job not found")

// ErrConflict signals a lost update on a job write.
var ErrConflict = errors.New("job was modified concurrently")

// InvalidStateError rejects an operation whose precondition on the job's
// current lane is unmet.
type InvalidStateError struct {
	Lane   Lane
	Reason string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("job in stage %s: %s", e.Lane, e.Reason)
}

// Job is the pipeline-relevant subset of a position being recruited for.
// The job's own publication lifecycle (draft → published → …) is managed
// elsewhere; this machine only closes it on a positive hiring result.
type Job struct {
	ID                uuid.UUID     `json:"id"`
	OrganizationID    uuid.UUID     `json:"organizationId"`
	Title             string        `json:"title"`
	Status            string        `json:"status"`
	RecruitmentStage  Lane          `json:"recruitmentStage"`
	ContratacaoResult *HiringResult `json:"contratacaoResult"`
	Version           int64         `json:"-"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// LaneChange is one append-only job history entry.
type LaneChange struct {
	From      *Lane     `json:"from"`
	To        Lane      `json:"to"`
	ChangedBy uuid.UUID `json:"changedBy"`
	ChangedAt time.Time `json:"changedAt"`
	Notes     string    `json:"notes,omitempty"`
}

// Store is the persistence boundary of the job machine.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*Job, error)
	// ApplyMove writes the new lane and history entry; clearResult also
	// nulls contratacao_result in the same statement.
	ApplyMove(ctx context.Context, id uuid.UUID, expectedVersion int64, to Lane, clearResult bool, entry LaneChange) (*Job, error)
	// ApplyHiringResult writes the result, the (possibly unchanged) lane,
	// optionally closes the job, and appends the history entry.
	ApplyHiringResult(ctx context.Context, id uuid.UUID, expectedVersion int64, result HiringResult, to Lane, closeJob bool, entry LaneChange) (*Job, error)
	History(ctx context.Context, id uuid.UUID) ([]LaneChange, error)
}
