// Package pipeline defines the per-application stage machine.
//
// Stage graph:
//
//	submitted ──► screening ──► recruiter_interview ──► shortlisted
//	    ──► client_interview ──► offer ──► hired
//
// Movement between non-terminal stages is deliberately permissive —
// candidates get fast-tracked and bounced back in real processes — with
// two guards: hired is only reachable from offer, and rejected requires
// a note. rejected and withdrawn are side-exits from any non-terminal
// stage. hired, rejected and withdrawn are terminal.
package pipeline

import "fmt"

// Stage values mirror the application current_stage column in PostgreSQL.
type Stage string

const (
	StageSubmitted          Stage = "submitted"
	StageScreening          Stage = "screening"
	StageRecruiterInterview Stage = "recruiter_interview"
	StageShortlisted        Stage = "shortlisted"
	StageClientInterview    Stage = "client_interview"
	StageOffer              Stage = "offer"
	StageHired              Stage = "hired"
	StageRejected           Stage = "rejected"
	StageWithdrawn          Stage = "withdrawn"
)

// Status is derived from the stage, never set independently.
type Status string

const (
	StatusActive    Status = "active"
	StatusHired     Status = "hired"
	StatusRejected  Status = "rejected"
	StatusWithdrawn Status = "withdrawn"
)

var allStages = []Stage{
	StageSubmitted, StageScreening, StageRecruiterInterview, StageShortlisted,
	StageClientInterview, StageOffer, StageHired, StageRejected, StageWithdrawn,
}

// ParseStage converts a raw string to a Stage, returning an error for
// unknown values.
func ParseStage(s string) (Stage, error) {
	st := Stage(s)
	for _, known := range allStages {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown application stage %q", s)
}

// IsTerminal reports whether a stage has no outgoing transitions.
func (s Stage) IsTerminal() bool {
	return s == StageHired || s == StageRejected || s == StageWithdrawn
}

// StatusFor derives the application status from its current stage.
func StatusFor(s Stage) Status {
	switch s {
	case StageHired:
		return StatusHired
	case StageRejected:
		return StatusRejected
	case StageWithdrawn:
		return StatusWithdrawn
	default:
		return StatusActive
	}
}

// CheckTransition applies the guard rules for moving from → to with the
// given note. A nil return means the move is legal.
func CheckTransition(from, to Stage, note string) error {
	if from.IsTerminal() {
		return &InvalidTransitionError{From: from, To: to, Reason: "stage is terminal"}
	}
	if to == StageHired && from != StageOffer {
		return &InvalidTransitionError{From: from, To: to, Reason: "hiring requires a prior offer"}
	}
	if to == StageRejected && note == "" {
		return &InvalidTransitionError{From: from, To: to, Reason: "rejection requires a note"}
	}
	return nil
}
