// Package visibility computes a project's effective public/private state at
// read time and filters project-linked career entries accordingly. Expired
// embargoes are published lazily through the outbox; the read path itself
// never blocks on a write.
package visibility

import (
	"context"
	"log"
	"time"

	"stagelink/internal/domain"
	"stagelink/internal/repo"
)

// EffectivelyPublic reports whether the project is public at the given
// moment. Stored public wins outright; stored private is public only once
// the embargo date is strictly in the past (the embargo day itself still
// counts as private). Soft-deleted projects are never public.
func EffectivelyPublic(p domain.Project, now time.Time) bool {
	if p.Deleted() {
		return false
	}
	if p.Visibility == domain.VisibilityPublic {
		return true
	}
	if p.EmbargoDate == nil {
		return false
	}
	embargo, err := time.Parse("2006-01-02", *p.EmbargoDate)
	if err != nil {
		return false
	}
	today := time.Date(now.UTC().Year(), now.UTC().Month(), now.UTC().Day(), 0, 0, 0, 0, time.UTC)
	return embargo.Before(today)
}

// expiredEmbargo reports a project that is effectively public only because
// its embargo lapsed while the stored visibility is still private.
func expiredEmbargo(p domain.Project, now time.Time) bool {
	return p.Visibility == domain.VisibilityPrivate && EffectivelyPublic(p, now)
}

type Resolver struct {
	Repo   repo.Repo
	Logger *log.Logger
	Now    func() time.Time
}

func (r Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r Resolver) logger() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return log.Default()
}

// PublicProfile returns the dancer's publicly visible career entries.
// Entries linked to a project that is not effectively public are filtered
// out; the projection carries no monetary fields. Projects discovered
// public via an expired embargo are queued for a stored visibility=public
// write; a failed enqueue only delays the stored flip, the response already
// reflects the computed value.
func (r Resolver) PublicProfile(ctx context.Context, dancerID string) ([]domain.PublicCareerEntry, error) {
	if _, err := r.Repo.GetDancer(ctx, dancerID); err != nil {
		return nil, err
	}
	entries, err := r.Repo.ListCareerEntries(ctx, dancerID)
	if err != nil {
		return nil, err
	}
	var projectIDs []string
	seen := map[string]bool{}
	for _, e := range entries {
		if e.ProjectID != nil && !seen[*e.ProjectID] {
			seen[*e.ProjectID] = true
			projectIDs = append(projectIDs, *e.ProjectID)
		}
	}
	projects, err := r.Repo.GetProjects(ctx, projectIDs)
	if err != nil {
		return nil, err
	}

	now := r.now()
	result := []domain.PublicCareerEntry{}
	queued := map[string]bool{}
	for _, e := range entries {
		if e.ProjectID == nil {
			result = append(result, e.Public())
			continue
		}
		project, ok := projects[*e.ProjectID]
		if !ok || !EffectivelyPublic(project, now) {
			continue
		}
		result = append(result, e.Public())
		if expiredEmbargo(project, now) && !queued[project.ID] {
			queued[project.ID] = true
			r.queueAutoPublish(ctx, project.ID)
		}
	}
	return result, nil
}

// queueAutoPublish is best-effort; failures are logged and swallowed.
func (r Resolver) queueAutoPublish(ctx context.Context, projectID string) {
	tx, err := r.Repo.DB.BeginTx(ctx, nil)
	if err != nil {
		r.logger().Printf("auto-publish enqueue for %s: %v", projectID, err)
		return
	}
	defer tx.Rollback()
	now := r.now().UTC().Format(time.RFC3339)
	if err := r.Repo.EnqueueIntent(ctx, tx, domain.Intent{
		Kind:      domain.IntentAutoPublish,
		ProjectID: projectID,
		ActorID:   "resolver",
		CreatedAt: now,
	}); err != nil {
		r.logger().Printf("auto-publish enqueue for %s: %v", projectID, err)
		return
	}
	if err := tx.Commit(); err != nil {
		r.logger().Printf("auto-publish enqueue for %s: %v", projectID, err)
	}
}
