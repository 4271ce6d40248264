package engine

import (
	"context"
	"time"

	"stagelink/internal/domain"
	"stagelink/internal/events"
)

// SyncProjectStatus reconciles a project's dual status with its current
// proposal set. With at least one active proposal both axes are left to
// other control; with none, the commercial axis is forced to cancelled
// (cancel trigger) or declined (anything else) and the execution axis to
// cancelled. The outcome is a pure function of stored state, so repeated
// runs are harmless and a later active proposal reopens the project on the
// next pass.
func (e Engine) SyncProjectStatus(ctx context.Context, projectID, trigger string) error {
	project, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	active, err := e.Repo.CountActiveProposals(ctx, projectID)
	if err != nil {
		return err
	}
	if active > 0 {
		return nil
	}
	confirmation := domain.ConfirmationDeclined
	if trigger == "cancel" {
		confirmation = domain.ConfirmationCancelled
	}
	progress := domain.ProgressCancelled
	if project.ConfirmationStatus == confirmation && project.ProgressStatus == progress {
		return nil
	}

	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateProjectStatus(ctx, tx, projectID, confirmation, progress, now); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "project.status.changed", projectID, "project", projectID, "synchronizer", events.EventPayload{
		"confirmation_status": confirmation,
		"progress_status":     progress,
		"trigger":             trigger,
	}); err != nil {
		return err
	}
	if err := e.Repo.EnqueueIntent(ctx, tx, domain.Intent{
		Kind:      domain.IntentNotification,
		ProjectID: projectID,
		EventType: "project_status_changed",
		ActorID:   "synchronizer",
		CreatedAt: now,
	}); err != nil {
		return err
	}
	return tx.Commit()
}
