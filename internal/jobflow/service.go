package jobflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"selecta/pipeline-service/internal/events"
)

// Service is the job stage machine.
type Service struct {
	store  Store
	events events.Publisher
	now    func() time.Time
}

// NewService returns a configured Service.
func NewService(store Store, pub events.Publisher) *Service {
	return &Service{store: store, events: pub, now: time.Now}
}

// Get returns one job.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	return s.store.Get(ctx, id)
}

// MoveStage moves a job to another lane. Any lane-to-lane move is legal;
// leaving contratacao resets the hiring result.
func (s *Service) MoveStage(ctx context.Context, id uuid.UUID, to Lane, actingUser uuid.UUID, notes string) (*Job, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	from := job.RecruitmentStage
	entry := LaneChange{
		From:      &from,
		To:        to,
		ChangedBy: actingUser,
		ChangedAt: s.now().UTC(),
		Notes:     notes,
	}
	clearResult := from == LaneContratacao && to != LaneContratacao

	updated, err := s.store.ApplyMove(ctx, id, job.Version, to, clearResult, entry)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.StageChanged{
		EntityType: events.EntityJob,
		EntityID:   id,
		FromStage:  string(from),
		ToStage:    string(to),
		OccurredAt: entry.ChangedAt,
	})

	return updated, nil
}

// SetHiringResult records the contratacao outcome. The job must be in the
// contratacao lane. A negative result automatically rewinds the job to
// entrevistas; a positive one closes it.
func (s *Service) SetHiringResult(ctx context.Context, id uuid.UUID, result HiringResult, actingUser uuid.UUID, notes string) (*Job, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if job.RecruitmentStage != LaneContratacao {
		return nil, &InvalidStateError{
			Lane:   job.RecruitmentStage,
			Reason: "hiring result can only be set in the contratacao stage",
		}
	}

	from := LaneContratacao
	now := s.now().UTC()

	var (
		to       Lane
		closeJob bool
		note     string
	)
	if result == ResultNegativo {
		to = LaneEntrevistas
		note = "Contratação negativa: " + fallback(notes, "Retornando para entrevistas")
	} else {
		to = LaneContratacao
		closeJob = true
		note = "Contratação positiva: " + fallback(notes, "Vaga fechada com sucesso")
	}

	entry := LaneChange{From: &from, To: to, ChangedBy: actingUser, ChangedAt: now, Notes: note}

	updated, err := s.store.ApplyHiringResult(ctx, id, job.Version, result, to, closeJob, entry)
	if err != nil {
		return nil, err
	}

	// Only the negative path changes the lane, so only it emits an event.
	if to != from {
		s.publish(ctx, events.StageChanged{
			EntityType: events.EntityJob,
			EntityID:   id,
			FromStage:  string(from),
			ToStage:    string(to),
			OccurredAt: now,
		})
	}

	return updated, nil
}

// History returns the job's lane history, newest first.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]LaneChange, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.History(ctx, id)
}

func (s *Service) publish(ctx context.Context, ev events.StageChanged) {
	if err := s.events.StageChanged(ctx, ev); err != nil {
		slog.Warn("publish stage change failed", "entityId", ev.EntityID, "err", err)
	}
}

func fallback(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
