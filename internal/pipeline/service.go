package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"selecta/pipeline-service/internal/events"
	"selecta/pipeline-service/internal/scoring"
)

// Service is the application stage machine. It has no dependency on any
// transport — the HTTP layer translates requests into these calls.
type Service struct {
	store  Store
	source ScoreSource
	events events.Publisher
	now    func() time.Time
}

// NewService returns a configured Service. source may be nil when no score
// provider is wired; scoring calls then fail without affecting transitions.
func NewService(store Store, source ScoreSource, pub events.Publisher) *Service {
	return &Service{store: store, source: source, events: pub, now: time.Now}
}

// CreateParams identifies the first candidacy of a candidate for a job.
// ActingUser is supplied by the API layer, which owns role checks.
type CreateParams struct {
	TenantID    uuid.UUID
	JobID       uuid.UUID
	CandidateID uuid.UUID
	ActingUser  uuid.UUID
}

// Create opens an application at submitted/active with its initial history
// entry. Returns ErrDuplicate when the (job, candidate) pair already has
// one. The first score is computed opportunistically; a failure there is
// logged and does not fail creation.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Application, error) {
	now := s.now().UTC()
	app := &Application{
		ID:           uuid.New(),
		TenantID:     p.TenantID,
		JobID:        p.JobID,
		CandidateID:  p.CandidateID,
		CurrentStage: StageSubmitted,
		Status:       StatusActive,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	first := StageChange{To: StageSubmitted, ChangedBy: p.ActingUser, ChangedAt: now}

	if err := s.store.Insert(ctx, app, first); err != nil {
		return nil, err
	}

	if score, err := s.recalculate(ctx, app); err != nil {
		slog.Warn("initial score skipped", "applicationId", app.ID, "err", err)
	} else {
		app.Scores = score
	}

	return app, nil
}

// Get returns one application.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Application, error) {
	return s.store.Get(ctx, id)
}

// ListByJob returns a job's applications, optionally filtered by stage
// (empty stage means all).
func (s *Service) ListByJob(ctx context.Context, jobID uuid.UUID, stage Stage) ([]Application, error) {
	return s.store.ListByJob(ctx, jobID, stage)
}

// Advance moves an application to a new stage. It validates the move
// against the guard rules, persists the stage, the derived status and the
// history entry atomically, then emits a stage-change event. The appended
// entry is returned alongside the updated application.
//
// Two concurrent calls on the same application cannot both succeed against
// the same observed version; the loser gets ErrConflict.
func (s *Service) Advance(ctx context.Context, id uuid.UUID, to Stage, actingUser uuid.UUID, note string) (*Application, *StageChange, error) {
	app, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if err := CheckTransition(app.CurrentStage, to, note); err != nil {
		return nil, nil, err
	}

	from := app.CurrentStage
	entry := StageChange{
		From:      &from,
		To:        to,
		ChangedBy: actingUser,
		ChangedAt: s.now().UTC(),
		Note:      note,
	}

	updated, err := s.store.ApplyTransition(ctx, id, app.Version, to, StatusFor(to), entry)
	if err != nil {
		return nil, nil, err
	}

	s.publish(ctx, events.StageChanged{
		EntityType: events.EntityApplication,
		EntityID:   id,
		FromStage:  string(from),
		ToStage:    string(to),
		OccurredAt: entry.ChangedAt,
	})

	return updated, &entry, nil
}

// History returns the application's stage history, newest first.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]StageChange, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.History(ctx, id)
}

// RecalculateScore re-derives the cached score from source records. When
// the provider or the write fails the prior cached value stays untouched
// and the error is surfaced.
func (s *Service) RecalculateScore(ctx context.Context, id uuid.UUID) (*scoring.Score, error) {
	app, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.recalculate(ctx, app)
}

// RescoreActive recomputes the cached score of every active application.
// Individual failures are logged and skipped; the count of refreshed
// applications is returned.
func (s *Service) RescoreActive(ctx context.Context) (int, error) {
	ids, err := s.store.ActiveIDs(ctx)
	if err != nil {
		return 0, err
	}

	refreshed := 0
	for _, id := range ids {
		if _, err := s.RecalculateScore(ctx, id); err != nil {
			slog.Warn("rescore skipped", "applicationId", id, "err", err)
			continue
		}
		refreshed++
	}
	return refreshed, nil
}

func (s *Service) recalculate(ctx context.Context, app *Application) (*scoring.Score, error) {
	if s.source == nil {
		return nil, fmt.Errorf("no score source configured")
	}

	in, err := s.source.Snapshot(ctx, app.ID, app.JobID, app.CandidateID)
	if err != nil {
		return nil, fmt.Errorf("score inputs: %w", err)
	}

	score := scoring.Calculate(in, s.now().UTC())
	if err := s.store.SaveScore(ctx, app.ID, score); err != nil {
		return nil, fmt.Errorf("save score: %w", err)
	}
	return &score, nil
}

func (s *Service) publish(ctx context.Context, ev events.StageChanged) {
	if err := s.events.StageChanged(ctx, ev); err != nil {
		slog.Warn("publish stage change failed", "entityId", ev.EntityID, "err", err)
	}
}
