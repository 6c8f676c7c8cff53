package jobflow_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"selecta/pipeline-service/internal/events"
	"selecta/pipeline-service/internal/jobflow"
)

// memStore implements jobflow.Store with the same version-guard semantics
// as the PostgreSQL store.
type memStore struct {
	mu      sync.Mutex
	jobs    map[uuid.UUID]*jobflow.Job
	history map[uuid.UUID][]jobflow.LaneChange
}

func newMemStore() *memStore {
	return &memStore{
		jobs:    make(map[uuid.UUID]*jobflow.Job),
		history: make(map[uuid.UUID][]jobflow.LaneChange),
	}
}

func (m *memStore) add(job *jobflow.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
}

func (m *memStore) Get(_ context.Context, id uuid.UUID) (*jobflow.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, jobflow.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *memStore) ApplyMove(_ context.Context, id uuid.UUID, expectedVersion int64, to jobflow.Lane, clearResult bool, entry jobflow.LaneChange) (*jobflow.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, jobflow.ErrNotFound
	}
	if job.Version != expectedVersion {
		return nil, jobflow.ErrConflict
	}
	job.RecruitmentStage = to
	if clearResult {
		job.ContratacaoResult = nil
	}
	job.Version++
	job.UpdatedAt = entry.ChangedAt
	m.history[id] = append(m.history[id], entry)
	cp := *job
	return &cp, nil
}

func (m *memStore) ApplyHiringResult(_ context.Context, id uuid.UUID, expectedVersion int64, result jobflow.HiringResult, to jobflow.Lane, closeJob bool, entry jobflow.LaneChange) (*jobflow.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, jobflow.ErrNotFound
	}
	if job.Version != expectedVersion {
		return nil, jobflow.ErrConflict
	}
	job.ContratacaoResult = &result
	job.RecruitmentStage = to
	if closeJob {
		job.Status = "closed"
	}
	job.Version++
	job.UpdatedAt = entry.ChangedAt
	m.history[id] = append(m.history[id], entry)
	cp := *job
	return &cp, nil
}

func (m *memStore) History(_ context.Context, id uuid.UUID) ([]jobflow.LaneChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.history[id]
	out := make([]jobflow.LaneChange, len(entries))
	for i, e := range entries { // newest first
		out[len(entries)-1-i] = e
	}
	return out, nil
}

type capturePub struct {
	mu     sync.Mutex
	events []events.StageChanged
}

func (p *capturePub) StageChanged(_ context.Context, ev events.StageChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func newTestJob(lane jobflow.Lane) *jobflow.Job {
	return &jobflow.Job{
		ID:               uuid.New(),
		OrganizationID:   uuid.New(),
		Title:            "Analista de Dados",
		Status:           "published",
		RecruitmentStage: lane,
		Version:          1,
		UpdatedAt:        time.Now().UTC(),
	}
}

func setup(lane jobflow.Lane) (*jobflow.Service, *jobflow.Job, *capturePub) {
	store := newMemStore()
	job := newTestJob(lane)
	store.add(job)
	pub := &capturePub{}
	return jobflow.NewService(store, pub), job, pub
}

// ── MoveStage ──────────────────────────────────────────────────────────────

func TestMoveStage_AnyLaneToAnyLane(t *testing.T) {
	ctx := context.Background()
	for _, from := range jobflow.Lanes {
		for _, to := range jobflow.Lanes {
			svc, job, _ := setup(from)
			updated, err := svc.MoveStage(ctx, job.ID, to, uuid.New(), "")
			if err != nil {
				t.Errorf("MoveStage(%s → %s): %v", from, to, err)
				continue
			}
			if updated.RecruitmentStage != to {
				t.Errorf("MoveStage(%s → %s) left stage %s", from, to, updated.RecruitmentStage)
			}
		}
	}
}

func TestMoveStage_AppendsHistoryAndEmitsEvent(t *testing.T) {
	svc, job, pub := setup(jobflow.LaneCadastro)
	actor := uuid.New()

	if _, err := svc.MoveStage(context.Background(), job.ID, jobflow.LaneTriagem, actor, "triagem iniciada"); err != nil {
		t.Fatalf("MoveStage: %v", err)
	}

	history, err := svc.History(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history length = %d, want 1", len(history))
	}
	e := history[0]
	if e.From == nil || *e.From != jobflow.LaneCadastro || e.To != jobflow.LaneTriagem {
		t.Errorf("history entry = %+v", e)
	}
	if e.ChangedBy != actor || e.Notes != "triagem iniciada" {
		t.Errorf("history entry attribution = %+v", e)
	}

	if len(pub.events) != 1 {
		t.Fatalf("published events = %d, want 1", len(pub.events))
	}
	if pub.events[0].EntityType != events.EntityJob || pub.events[0].ToStage != "triagem" {
		t.Errorf("event = %+v", pub.events[0])
	}
}

func TestMoveStage_LeavingContratacaoClearsResult(t *testing.T) {
	ctx := context.Background()
	for _, to := range jobflow.Lanes {
		if to == jobflow.LaneContratacao {
			continue
		}
		svc, job, _ := setup(jobflow.LaneContratacao)
		result := jobflow.ResultNegativo
		job.ContratacaoResult = &result

		updated, err := svc.MoveStage(ctx, job.ID, to, uuid.New(), "")
		if err != nil {
			t.Fatalf("MoveStage(contratacao → %s): %v", to, err)
		}
		if updated.ContratacaoResult != nil {
			t.Errorf("leaving contratacao for %s kept result %s", to, *updated.ContratacaoResult)
		}
	}
}

func TestMoveStage_StayingInContratacaoKeepsResult(t *testing.T) {
	svc, job, _ := setup(jobflow.LaneContratacao)
	result := jobflow.ResultPositivo
	job.ContratacaoResult = &result

	updated, err := svc.MoveStage(context.Background(), job.ID, jobflow.LaneContratacao, uuid.New(), "")
	if err != nil {
		t.Fatalf("MoveStage: %v", err)
	}
	if updated.ContratacaoResult == nil || *updated.ContratacaoResult != jobflow.ResultPositivo {
		t.Errorf("self-move in contratacao cleared result: %+v", updated.ContratacaoResult)
	}
}

func TestMoveStage_UnknownJob(t *testing.T) {
	svc, _, _ := setup(jobflow.LaneCadastro)
	_, err := svc.MoveStage(context.Background(), uuid.New(), jobflow.LaneTriagem, uuid.New(), "")
	if !errors.Is(err, jobflow.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

// ── SetHiringResult ────────────────────────────────────────────────────────

func TestSetHiringResult_OutsideContratacao(t *testing.T) {
	for _, lane := range jobflow.Lanes {
		if lane == jobflow.LaneContratacao {
			continue
		}
		svc, job, _ := setup(lane)
		_, err := svc.SetHiringResult(context.Background(), job.ID, jobflow.ResultPositivo, uuid.New(), "")
		var ise *jobflow.InvalidStateError
		if !errors.As(err, &ise) {
			t.Errorf("SetHiringResult in %s error = %v, want InvalidStateError", lane, err)
		}
	}
}

func TestSetHiringResult_NegativeRewindsToEntrevistas(t *testing.T) {
	svc, job, pub := setup(jobflow.LaneContratacao)

	updated, err := svc.SetHiringResult(context.Background(), job.ID, jobflow.ResultNegativo, uuid.New(), "candidato desistiu")
	if err != nil {
		t.Fatalf("SetHiringResult: %v", err)
	}
	if updated.RecruitmentStage != jobflow.LaneEntrevistas {
		t.Errorf("stage = %s, want entrevistas", updated.RecruitmentStage)
	}
	if updated.ContratacaoResult == nil || *updated.ContratacaoResult != jobflow.ResultNegativo {
		t.Errorf("result = %+v, want negativo", updated.ContratacaoResult)
	}
	if updated.Status != "published" {
		t.Errorf("negative result must not close the job, status = %s", updated.Status)
	}

	history, _ := svc.History(context.Background(), job.ID)
	if len(history) != 1 {
		t.Fatalf("history length = %d, want 1 (auto-reversion entry)", len(history))
	}
	if !strings.HasPrefix(history[0].Notes, "Contratação negativa:") {
		t.Errorf("auto-reversion note = %q", history[0].Notes)
	}

	if len(pub.events) != 1 || pub.events[0].ToStage != "entrevistas" {
		t.Errorf("expected one job event to entrevistas, got %+v", pub.events)
	}
}

func TestSetHiringResult_PositiveClosesJob(t *testing.T) {
	svc, job, pub := setup(jobflow.LaneContratacao)

	updated, err := svc.SetHiringResult(context.Background(), job.ID, jobflow.ResultPositivo, uuid.New(), "")
	if err != nil {
		t.Fatalf("SetHiringResult: %v", err)
	}
	if updated.Status != "closed" {
		t.Errorf("status = %s, want closed", updated.Status)
	}
	if updated.RecruitmentStage != jobflow.LaneContratacao {
		t.Errorf("stage = %s, want contratacao (unchanged)", updated.RecruitmentStage)
	}
	if updated.ContratacaoResult == nil || *updated.ContratacaoResult != jobflow.ResultPositivo {
		t.Errorf("result = %+v, want positivo", updated.ContratacaoResult)
	}

	history, _ := svc.History(context.Background(), job.ID)
	if len(history) != 1 || !strings.HasPrefix(history[0].Notes, "Contratação positiva:") {
		t.Errorf("history = %+v", history)
	}

	// No lane change — no stage-change event.
	if len(pub.events) != 0 {
		t.Errorf("positive result emitted %d events, want 0", len(pub.events))
	}
}

func TestSetHiringResult_ThenMoveOutClearsIt(t *testing.T) {
	svc, job, _ := setup(jobflow.LaneContratacao)
	ctx := context.Background()

	if _, err := svc.SetHiringResult(ctx, job.ID, jobflow.ResultPositivo, uuid.New(), ""); err != nil {
		t.Fatalf("SetHiringResult: %v", err)
	}
	updated, err := svc.MoveStage(ctx, job.ID, jobflow.LaneCadastro, uuid.New(), "reabrindo processo")
	if err != nil {
		t.Fatalf("MoveStage: %v", err)
	}
	if updated.ContratacaoResult != nil {
		t.Errorf("result survived leaving contratacao: %s", *updated.ContratacaoResult)
	}
}

// ── RetryOnConflict ────────────────────────────────────────────────────────

func TestRetryOnConflict_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := jobflow.RetryOnConflict(5, func() error {
		calls++
		if calls < 3 {
			return jobflow.ErrConflict
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RetryOnConflict: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryOnConflict_SurfacesOtherErrorsImmediately(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := jobflow.RetryOnConflict(5, func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want boom", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on non-conflict errors)", calls)
	}
}

func TestRetryOnConflict_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := jobflow.RetryOnConflict(4, func() error {
		calls++
		return jobflow.ErrConflict
	})
	if !errors.Is(err, jobflow.ErrConflict) {
		t.Errorf("error = %v, want ErrConflict", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
}

func TestMoveStage_ConcurrentMovesLoseNoHistory(t *testing.T) {
	svc, job, _ := setup(jobflow.LaneCadastro)
	ctx := context.Background()
	targets := []jobflow.Lane{
		jobflow.LaneTriagem, jobflow.LaneEntrevistas, jobflow.LaneSelecao,
		jobflow.LaneEnvioCliente, jobflow.LaneContratacao,
	}

	var wg sync.WaitGroup
	for _, to := range targets {
		wg.Add(1)
		go func(to jobflow.Lane) {
			defer wg.Done()
			err := jobflow.RetryOnConflict(len(targets)*10, func() error {
				_, err := svc.MoveStage(ctx, job.ID, to, uuid.New(), "")
				return err
			})
			if err != nil {
				t.Errorf("MoveStage(→ %s): %v", to, err)
			}
		}(to)
	}
	wg.Wait()

	history, err := svc.History(ctx, job.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != len(targets) {
		t.Fatalf("history length = %d, want %d", len(history), len(targets))
	}
	seen := make(map[jobflow.Lane]int)
	for _, e := range history {
		seen[e.To]++
	}
	for _, to := range targets {
		if seen[to] != 1 {
			t.Errorf("moves to %s = %d, want exactly 1", to, seen[to])
		}
	}
}
