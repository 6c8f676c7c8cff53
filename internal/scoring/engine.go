// Package scoring ranks a candidate against a job.
//
// Calculate is a pure function over an Inputs snapshot: five weighted
// components (skills, experience, location, behavioral, availability)
// produce a 0–100 total plus a per-component breakdown. The result is
// cached on the application by the pipeline service but is always fully
// re-derivable from source records.
package scoring

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Component weights. They sum to 1.0.
const (
	skillsWeight       = 0.40
	experienceWeight   = 0.20
	locationWeight     = 0.10
	behavioralWeight   = 0.20
	availabilityWeight = 0.10
)

// mustHavePenalty is subtracted from the skills component after the match
// ratio is applied whenever a must-have skill is unmatched.
const mustHavePenalty = 20.0

// JobProfile is the job-side slice of data the engine reads.
type JobProfile struct {
	EmploymentType  string
	WorkMode        string // presencial | hibrido | remoto
	LocationCity    string
	LocationState   string
	SalaryMax       *float64
	HasIdealProfile bool
}

// CandidateProfile is the candidate-side slice of data the engine reads.
type CandidateProfile struct {
	LocationCity      string
	LocationState     string
	SalaryExpectation *float64
}

// RequiredSkill is a job requirement: minimum level 1–5, optionally must-have.
type RequiredSkill struct {
	SkillID  uuid.UUID
	MinLevel int
	MustHave bool
}

// CandidateSkill is a skill the candidate holds at some level 1–5.
type CandidateSkill struct {
	SkillID uuid.UUID
	Level   int
}

// ExperienceEntry is one employment period. A nil EndDate means the
// position is current and is measured up to "now".
type ExperienceEntry struct {
	StartDate time.Time
	EndDate   *time.Time
}

// Inputs is the immutable snapshot a score is computed from.
type Inputs struct {
	Job             JobProfile
	Candidate       CandidateProfile
	RequiredSkills  []RequiredSkill
	CandidateSkills []CandidateSkill
	Experience      []ExperienceEntry
	AssessmentCount int
}

// Breakdown holds the five component sub-scores, each 0–100.
type Breakdown struct {
	Skills       float64 `json:"skills"`
	Experience   float64 `json:"experience"`
	Location     float64 `json:"location"`
	Behavioral   float64 `json:"behavioral"`
	Availability float64 `json:"availability"`
}

// Score is the weighted total plus its breakdown.
type Score struct {
	Total     float64   `json:"total"`
	Breakdown Breakdown `json:"breakdown"`
}

// Calculate computes the weighted score for the given snapshot. now anchors
// open-ended experience entries so the result is deterministic for a fixed
// input pair.
func Calculate(in Inputs, now time.Time) Score {
	b := Breakdown{
		Skills:       round2(skillsScore(in)),
		Experience:   round2(experienceScore(in, now)),
		Location:     round2(locationScore(in)),
		Behavioral:   round2(behavioralScore(in)),
		Availability: round2(availabilityScore(in)),
	}

	total := b.Skills*skillsWeight +
		b.Experience*experienceWeight +
		b.Location*locationWeight +
		b.Behavioral*behavioralWeight +
		b.Availability*availabilityWeight

	return Score{Total: round2(math.Max(0, total)), Breakdown: b}
}

// skillsScore: 100 × matched/required, then a flat penalty when any
// must-have skill is unmatched, floored at 0. A job with no required
// skills scores 100.
func skillsScore(in Inputs) float64 {
	if len(in.RequiredSkills) == 0 {
		return 100
	}

	levels := make(map[uuid.UUID]int, len(in.CandidateSkills))
	for _, cs := range in.CandidateSkills {
		levels[cs.SkillID] = cs.Level
	}

	matched := 0
	mustHaveMiss := false
	for _, req := range in.RequiredSkills {
		level, ok := levels[req.SkillID]
		if ok && level >= req.MinLevel {
			matched++
		} else if req.MustHave {
			mustHaveMiss = true
		}
	}

	score := 100 * float64(matched) / float64(len(in.RequiredSkills))
	if mustHaveMiss {
		score -= mustHavePenalty
	}
	return math.Max(0, score)
}

// experienceScore: total years across all entries against the threshold the
// seniority in employment_type implies (2 by default, 3 for "pleno",
// 5 for "senior"). A candidate with no entries on file scores a neutral 50.
func experienceScore(in Inputs, now time.Time) float64 {
	if len(in.Experience) == 0 {
		return 50
	}

	totalYears := 0.0
	for _, e := range in.Experience {
		end := now
		if e.EndDate != nil {
			end = *e.EndDate
		}
		totalYears += end.Sub(e.StartDate).Hours() / 24 / 365.25
	}

	required := 2.0
	et := strings.ToLower(in.Job.EmploymentType)
	switch {
	case strings.Contains(et, "senior"):
		required = 5
	case strings.Contains(et, "pleno"):
		required = 3
	}

	return 100 * math.Min(totalYears/required, 1)
}

// locationScore: remote jobs ignore geography entirely; otherwise same city
// is a full match, same state a partial one.
func locationScore(in Inputs) float64 {
	if in.Job.WorkMode == "remoto" {
		return 100
	}
	switch {
	case in.Candidate.LocationCity == in.Job.LocationCity:
		return 100
	case in.Candidate.LocationState == in.Job.LocationState:
		return 70
	default:
		return 40
	}
}

// behavioralScore: 100 when the job defines no ideal profile, 50 when it
// does but no assessments are on file, else a fixed 75 placeholder until
// richer profile comparison lands.
func behavioralScore(in Inputs) float64 {
	if !in.Job.HasIdealProfile {
		return 100
	}
	if in.AssessmentCount == 0 {
		return 50
	}
	return 75
}

// availabilityScore: 100 when there is no salary constraint on either side
// or the candidate fits the job's ceiling, else 50.
func availabilityScore(in Inputs) float64 {
	if in.Job.SalaryMax == nil || in.Candidate.SalaryExpectation == nil {
		return 100
	}
	if *in.Candidate.SalaryExpectation <= *in.Job.SalaryMax {
		return 100
	}
	return 50
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
