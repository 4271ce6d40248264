package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"stagelink/internal/domain"
	"stagelink/internal/events"
)

// ProjectOptions are parameters for creating a project.
type ProjectOptions struct {
	ID         string
	OwnerID    string
	ParentID   *string
	ClientID   *string
	PMDancerID *string
	Title      string
	Category   string
	Budget     *int64
	StartDate  *string
	EndDate    *string
}

func (e Engine) CreateProject(ctx context.Context, opts ProjectOptions) (domain.Project, error) {
	if opts.Title == "" {
		return domain.Project{}, errors.New("title is required")
	}
	if opts.OwnerID == "" {
		return domain.Project{}, errors.New("owner is required")
	}
	if opts.ParentID != nil {
		if _, err := e.Repo.GetProject(ctx, *opts.ParentID); err != nil {
			return domain.Project{}, err
		}
	}
	if opts.PMDancerID != nil {
		if _, err := e.Repo.GetDancer(ctx, *opts.PMDancerID); err != nil {
			return domain.Project{}, err
		}
	}
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := e.now().UTC().Format(time.RFC3339)
	p := domain.Project{
		ID:                 id,
		OwnerID:            opts.OwnerID,
		ParentID:           opts.ParentID,
		ClientID:           opts.ClientID,
		PMDancerID:         opts.PMDancerID,
		Title:              opts.Title,
		Category:           opts.Category,
		ConfirmationStatus: domain.ConfirmationNegotiating,
		ProgressStatus:     domain.ProgressIdle,
		Visibility:         domain.VisibilityPrivate,
		Budget:             opts.Budget,
		StartDate:          opts.StartDate,
		EndDate:            opts.EndDate,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := e.Repo.InsertProject(ctx, p); err != nil {
		return domain.Project{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, "project.created", p.ID, "project", p.ID, opts.OwnerID, events.EventPayload{"title": p.Title}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// SetVisibility updates the stored visibility and embargo date. Owner only;
// the dual status axes are never touched here.
func (e Engine) SetVisibility(ctx context.Context, projectID, actorID, visibility string, embargoDate *string) (domain.Project, error) {
	project, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	if project.OwnerID != actorID {
		return domain.Project{}, ForbiddenError{ActorID: actorID, Action: "change project visibility"}
	}
	if project.Deleted() {
		return domain.Project{}, InvalidStateError{Entity: "project", Status: "deleted", Action: "change visibility"}
	}
	if visibility != domain.VisibilityPrivate && visibility != domain.VisibilityPublic {
		return domain.Project{}, errors.New("visibility must be private or public")
	}
	if embargoDate != nil {
		if _, err := time.Parse("2006-01-02", *embargoDate); err != nil {
			return domain.Project{}, errors.New("embargo_date must be YYYY-MM-DD")
		}
	}
	now := e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateProjectVisibility(ctx, projectID, visibility, embargoDate, now); err != nil {
		return domain.Project{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, "project.visibility.changed", projectID, "project", projectID, actorID, events.EventPayload{
		"visibility": visibility,
	}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return e.Repo.GetProject(ctx, projectID)
}

// DeleteProject soft-deletes a project. Owner only.
func (e Engine) DeleteProject(ctx context.Context, projectID, actorID string) error {
	project, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if project.OwnerID != actorID {
		return ForbiddenError{ActorID: actorID, Action: "delete this project"}
	}
	if project.Deleted() {
		return InvalidStateError{Entity: "project", Status: "deleted", Action: "delete"}
	}
	now := e.now().UTC().Format(time.RFC3339)
	return e.Repo.SoftDeleteProject(ctx, projectID, now)
}
