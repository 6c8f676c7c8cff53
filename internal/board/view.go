// Package board is the read side of the pipeline: it composes stored
// application, candidate, job and score state into Kanban views. It holds
// no state of its own; everything here is derived from what the two stage
// machines persisted.
package board

import (
	"context"
	"time"

	"github.com/google/uuid"

	"selecta/pipeline-service/internal/jobflow"
	"selecta/pipeline-service/internal/pipeline"
)

// Badge thresholds on the cached total score.
const (
	mustHaveOkThreshold  = 80.0
	highCultureThreshold = 85.0
	cultureMatchHigh     = "alto"
	cultureMatchMedium   = "médio"
)

// stageColumns fixes the board columns and their labels, in lane order.
var stageColumns = []Column{
	{Key: string(pipeline.StageSubmitted), Label: "Coleta de Dados"},
	{Key: string(pipeline.StageScreening), Label: "Triagem"},
	{Key: string(pipeline.StageRecruiterInterview), Label: "Entrevista RH"},
	{Key: string(pipeline.StageShortlisted), Label: "Selecionados"},
	{Key: string(pipeline.StageClientInterview), Label: "Entrevista Cliente"},
	{Key: string(pipeline.StageOffer), Label: "Oferta"},
	{Key: string(pipeline.StageHired), Label: "Contratado"},
	{Key: string(pipeline.StageRejected), Label: "Reprovado"},
	{Key: string(pipeline.StageWithdrawn), Label: "Desistência"},
}

// Filters narrow the card set of a job pipeline view.
type Filters struct {
	Stage        string
	MinScore     *float64
	City         string
	MustHaveOnly bool
}

// Badges summarize a card at a glance.
type Badges struct {
	MustHaveOk   bool   `json:"mustHaveOk"`
	Availability string `json:"availability"`
	CultureMatch string `json:"cultureMatch"`
}

// Card is one application rendered for the board.
type Card struct {
	ApplicationID uuid.UUID `json:"applicationId"`
	CandidateName string    `json:"candidateName"`
	CandidateCity string    `json:"candidateCity"`
	ScoreTotal    float64   `json:"scoreTotal"`
	Badges        Badges    `json:"badges"`
	CurrentStage  string    `json:"currentStage"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Column is one board lane with its (post-filter) card count.
type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// JobSummary heads a pipeline view.
type JobSummary struct {
	JobID      uuid.UUID `json:"jobId"`
	Title      string    `json:"title"`
	ClientName string    `json:"clientName"`
	Status     string    `json:"status"`
}

// Pipeline is the full board for one job.
type Pipeline struct {
	Job     JobSummary `json:"job"`
	Columns []Column   `json:"columns"`
	Cards   []Card     `json:"cards"`
}

// CardRow is the joined storage row a card is built from.
type CardRow struct {
	ApplicationID uuid.UUID
	CandidateName string
	CandidateCity string
	Availability  string
	ScoreTotal    float64
	CurrentStage  string
	UpdatedAt     time.Time
}

// JobCard is one job on the jobs Kanban.
type JobCard struct {
	ID                uuid.UUID    `json:"id"`
	Title             string       `json:"title"`
	Status            string       `json:"status"`
	RecruitmentStage  jobflow.Lane `json:"recruitmentStage"`
	ApplicationsCount int          `json:"applicationsCount"`
}

// Kanban groups every job by recruitment lane.
type Kanban struct {
	Stages map[jobflow.Lane][]JobCard `json:"stages"`
}

// Reader supplies the joined rows the views are built from.
type Reader interface {
	JobSummary(ctx context.Context, jobID uuid.UUID) (*JobSummary, error)
	CardRows(ctx context.Context, jobID uuid.UUID) ([]CardRow, error)
	JobCards(ctx context.Context) ([]JobCard, error)
}

// Service renders board views.
type Service struct {
	reader Reader
}

// NewService returns a configured Service.
func NewService(reader Reader) *Service {
	return &Service{reader: reader}
}

// JobPipeline renders the board for one job: fixed columns, filtered
// cards, and per-column counts over the filtered set.
func (s *Service) JobPipeline(ctx context.Context, jobID uuid.UUID, f Filters) (*Pipeline, error) {
	job, err := s.reader.JobSummary(ctx, jobID)
	if err != nil {
		return nil, err
	}

	rows, err := s.reader.CardRows(ctx, jobID)
	if err != nil {
		return nil, err
	}

	cards := make([]Card, 0, len(rows))
	counts := make(map[string]int)
	for _, row := range rows {
		if !matches(row, f) {
			continue
		}
		counts[row.CurrentStage]++
		cards = append(cards, buildCard(row))
	}

	columns := make([]Column, len(stageColumns))
	copy(columns, stageColumns)
	for i := range columns {
		columns[i].Count = counts[columns[i].Key]
	}

	return &Pipeline{Job: *job, Columns: columns, Cards: cards}, nil
}

// JobsKanban groups all jobs by lane. Every lane is present even when
// empty, so boards render a stable column set.
func (s *Service) JobsKanban(ctx context.Context) (*Kanban, error) {
	jobs, err := s.reader.JobCards(ctx)
	if err != nil {
		return nil, err
	}

	stages := make(map[jobflow.Lane][]JobCard, len(jobflow.Lanes))
	for _, lane := range jobflow.Lanes {
		stages[lane] = []JobCard{}
	}
	for _, job := range jobs {
		stages[job.RecruitmentStage] = append(stages[job.RecruitmentStage], job)
	}

	return &Kanban{Stages: stages}, nil
}

func matches(row CardRow, f Filters) bool {
	if f.Stage != "" && row.CurrentStage != f.Stage {
		return false
	}
	if f.MinScore != nil && row.ScoreTotal < *f.MinScore {
		return false
	}
	if f.City != "" && row.CandidateCity != f.City {
		return false
	}
	if f.MustHaveOnly && row.ScoreTotal < mustHaveOkThreshold {
		return false
	}
	return true
}

func buildCard(row CardRow) Card {
	culture := cultureMatchMedium
	if row.ScoreTotal > highCultureThreshold {
		culture = cultureMatchHigh
	}
	availability := row.Availability
	if availability == "" {
		availability = "N/A"
	}
	return Card{
		ApplicationID: row.ApplicationID,
		CandidateName: row.CandidateName,
		CandidateCity: row.CandidateCity,
		ScoreTotal:    row.ScoreTotal,
		Badges: Badges{
			MustHaveOk:   row.ScoreTotal >= mustHaveOkThreshold,
			Availability: availability,
			CultureMatch: culture,
		},
		CurrentStage: row.CurrentStage,
		UpdatedAt:    row.UpdatedAt,
	}
}
