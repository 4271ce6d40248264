package engine

import (
	"context"

	"stagelink/internal/settlement"
)

// Settlement derives the dancer's current financial statement from stored
// proposal state.
func (e Engine) Settlement(ctx context.Context, dancerID string) (settlement.Statement, error) {
	if _, err := e.Repo.GetDancer(ctx, dancerID); err != nil {
		return settlement.Statement{}, err
	}
	proposals, err := e.Repo.ListSettlementProposals(ctx, dancerID)
	if err != nil {
		return settlement.Statement{}, err
	}
	seen := map[string]bool{}
	var projectIDs []string
	for _, p := range proposals {
		if !seen[p.ProjectID] {
			seen[p.ProjectID] = true
			projectIDs = append(projectIDs, p.ProjectID)
		}
	}
	pmMap, err := e.Repo.ProjectPMMap(ctx, projectIDs)
	if err != nil {
		return settlement.Statement{}, err
	}
	return settlement.Derive(dancerID, proposals, pmMap), nil
}
