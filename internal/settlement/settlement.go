// Package settlement derives a participant's financial view from proposal
// state. Nothing here touches storage; a statement is recomputed on every
// read and no ledger is ever persisted.
package settlement

import "stagelink/internal/domain"

// Line states. A fee left undecided is excluded from both totals.
const (
	StatePending   = "pending"
	StateCompleted = "completed"
	StateUndecided = "undecided"
)

// Line is one active proposal seen from one participant's perspective.
type Line struct {
	ProposalID string `json:"proposal_id"`
	ProjectID  string `json:"project_id"`
	DancerID   string `json:"dancer_id"`
	Role       string `json:"role"`
	Fee        *int64 `json:"fee,omitempty"`
	State      string `json:"state" enum:"pending,completed,undecided"`
}

// Statement is the derived income/expense view for one participant.
type Statement struct {
	Income         []Line `json:"income"`
	Expense        []Line `json:"expense"`
	PendingTotal   int64  `json:"pending_total"`
	CompletedTotal int64  `json:"completed_total"`
}

// Derive classifies each active proposal as income or expense for the given
// participant dancer. Income: the proposal addresses the participant.
// Expense: the participant is the PM dancer of the proposal's project and
// the proposal addresses someone else. A single proposal lands in at most
// one bucket. An accepted proposal counts as completed; there is no separate
// payout-confirmation step. Totals are exact integer sums over income lines.
func Derive(participantDancerID string, proposals []domain.Proposal, projectPM map[string]string) Statement {
	s := Statement{}
	for _, p := range proposals {
		if !p.Active() {
			continue
		}
		line := Line{
			ProposalID: p.ID,
			ProjectID:  p.ProjectID,
			DancerID:   p.DancerID,
			Role:       p.Role,
			State:      StatePending,
		}
		if p.Status == domain.ProposalAccepted {
			line.State = StateCompleted
		}
		if p.Fee == nil {
			line.State = StateUndecided
		} else {
			fee := *p.Fee
			line.Fee = &fee
		}
		switch {
		case p.DancerID == participantDancerID:
			s.Income = append(s.Income, line)
			if line.Fee != nil {
				if line.State == StateCompleted {
					s.CompletedTotal += *line.Fee
				} else {
					s.PendingTotal += *line.Fee
				}
			}
		case projectPM[p.ProjectID] == participantDancerID:
			s.Expense = append(s.Expense, line)
		}
	}
	return s
}
