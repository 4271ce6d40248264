package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagelink/internal/domain"
)

func fee(v int64) *int64 { return &v }

func proposal(id, projectID, dancerID, status string, f *int64) domain.Proposal {
	return domain.Proposal{
		ID:        id,
		ProjectID: projectID,
		DancerID:  dancerID,
		SenderID:  "acct-sender",
		Role:      "lead",
		Fee:       f,
		Status:    status,
	}
}

func TestDeriveClassification(t *testing.T) {
	proposals := []domain.Proposal{
		proposal("p1", "proj-a", "dancer-mia", domain.ProposalAccepted, fee(450000)),
		proposal("p2", "proj-a", "dancer-mia", domain.ProposalNegotiating, fee(100000)),
		proposal("p3", "proj-b", "dancer-leo", domain.ProposalPending, fee(80000)),
		proposal("p4", "proj-c", "dancer-leo", domain.ProposalPending, fee(99999)),
	}
	// Mia is PM on proj-b only.
	pm := map[string]string{"proj-b": "dancer-mia"}

	s := Derive("dancer-mia", proposals, pm)
	require.Len(t, s.Income, 2)
	require.Len(t, s.Expense, 1)
	assert.Equal(t, "p3", s.Expense[0].ProposalID)
	assert.Equal(t, int64(450000), s.CompletedTotal)
	assert.Equal(t, int64(100000), s.PendingTotal)
}

func TestDeriveOwnEngagementIsIncomeNotExpense(t *testing.T) {
	// A proposal addressing the PM dancer herself lands in income only,
	// never in both buckets.
	proposals := []domain.Proposal{
		proposal("p1", "proj-a", "dancer-mia", domain.ProposalAccepted, fee(450000)),
	}
	pm := map[string]string{"proj-a": "dancer-mia"}

	s := Derive("dancer-mia", proposals, pm)
	require.Len(t, s.Income, 1)
	assert.Empty(t, s.Expense)
	assert.Equal(t, int64(450000), s.CompletedTotal)
}

func TestDeriveSkipsTerminalNonAccepted(t *testing.T) {
	proposals := []domain.Proposal{
		proposal("p1", "proj-a", "dancer-mia", domain.ProposalDeclined, fee(450000)),
		proposal("p2", "proj-a", "dancer-mia", domain.ProposalCancelled, fee(450000)),
	}
	s := Derive("dancer-mia", proposals, nil)
	assert.Empty(t, s.Income)
	assert.Empty(t, s.Expense)
	assert.Zero(t, s.PendingTotal)
	assert.Zero(t, s.CompletedTotal)
}

func TestDeriveUndecidedFeeExcludedFromTotals(t *testing.T) {
	proposals := []domain.Proposal{
		proposal("p1", "proj-a", "dancer-mia", domain.ProposalAccepted, nil),
		proposal("p2", "proj-a", "dancer-mia", domain.ProposalPending, fee(50000)),
	}
	s := Derive("dancer-mia", proposals, nil)
	require.Len(t, s.Income, 2)
	assert.Equal(t, StateUndecided, s.Income[0].State)
	assert.Nil(t, s.Income[0].Fee)
	assert.Equal(t, int64(50000), s.PendingTotal)
	assert.Zero(t, s.CompletedTotal)
}

func TestDeriveExpenseLinesDoNotCountTowardTotals(t *testing.T) {
	proposals := []domain.Proposal{
		proposal("p1", "proj-b", "dancer-leo", domain.ProposalAccepted, fee(80000)),
	}
	pm := map[string]string{"proj-b": "dancer-mia"}

	s := Derive("dancer-mia", proposals, pm)
	require.Len(t, s.Expense, 1)
	assert.Equal(t, StateCompleted, s.Expense[0].State)
	assert.Zero(t, s.CompletedTotal)
	assert.Zero(t, s.PendingTotal)
}

func TestDeriveDoesNotMutateInput(t *testing.T) {
	f := fee(123)
	proposals := []domain.Proposal{
		proposal("p1", "proj-a", "dancer-mia", domain.ProposalPending, f),
	}
	s := Derive("dancer-mia", proposals, nil)
	require.Len(t, s.Income, 1)

	*s.Income[0].Fee = 999
	assert.Equal(t, int64(123), *proposals[0].Fee)
}

func TestDeriveUnrelatedProposalIgnored(t *testing.T) {
	proposals := []domain.Proposal{
		proposal("p1", "proj-x", "dancer-leo", domain.ProposalPending, fee(100)),
	}
	s := Derive("dancer-mia", proposals, map[string]string{"proj-x": "dancer-zoe"})
	assert.Empty(t, s.Income)
	assert.Empty(t, s.Expense)
}
