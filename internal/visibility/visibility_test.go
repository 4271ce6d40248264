package visibility

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagelink/internal/db"
	"stagelink/internal/domain"
	"stagelink/internal/migrate"
	"stagelink/internal/repo"
)

func strp(s string) *string { return &s }

func TestEffectivelyPublic(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	deletedAt := "2026-03-01T00:00:00Z"

	cases := []struct {
		name    string
		project domain.Project
		want    bool
	}{
		{"stored public", domain.Project{Visibility: domain.VisibilityPublic}, true},
		{"private no embargo", domain.Project{Visibility: domain.VisibilityPrivate}, false},
		{"embargo yesterday", domain.Project{Visibility: domain.VisibilityPrivate, EmbargoDate: strp("2026-03-14")}, true},
		{"embargo today", domain.Project{Visibility: domain.VisibilityPrivate, EmbargoDate: strp("2026-03-15")}, false},
		{"embargo tomorrow", domain.Project{Visibility: domain.VisibilityPrivate, EmbargoDate: strp("2026-03-16")}, false},
		{"malformed embargo", domain.Project{Visibility: domain.VisibilityPrivate, EmbargoDate: strp("not-a-date")}, false},
		{"deleted public project", domain.Project{Visibility: domain.VisibilityPublic, DeletedAt: &deletedAt}, false},
		{"deleted with expired embargo", domain.Project{Visibility: domain.VisibilityPrivate, EmbargoDate: strp("2020-01-01"), DeletedAt: &deletedAt}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EffectivelyPublic(tc.project, now))
		})
	}
}

func newTestResolver(t *testing.T) (Resolver, repo.Repo) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	rp := repo.Repo{DB: conn}
	r := Resolver{
		Repo:   rp,
		Logger: log.New(io.Discard, "", 0),
		Now:    func() time.Time { return time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC) },
	}
	return r, rp
}

func seedProfile(t *testing.T, rp repo.Repo) {
	t.Helper()
	ctx := context.Background()
	now := "2026-03-01T00:00:00Z"
	require.NoError(t, rp.EnsureAccount(ctx, "acct-owner", "", now))
	require.NoError(t, rp.EnsureAccount(ctx, "acct-mia", "", now))
	require.NoError(t, rp.InsertDancer(ctx, domain.Dancer{
		ID:             "dancer-mia",
		OwnerAccountID: "acct-mia",
		Name:           "Mia",
		CreatedAt:      now,
	}))
}

func seedProject(t *testing.T, rp repo.Repo, id, visibility string, embargo *string) {
	t.Helper()
	now := "2026-03-01T00:00:00Z"
	require.NoError(t, rp.InsertProject(context.Background(), domain.Project{
		ID:                 id,
		OwnerID:            "acct-owner",
		Title:              "Project " + id,
		ConfirmationStatus: domain.ConfirmationNegotiating,
		ProgressStatus:     domain.ProgressIdle,
		Visibility:         visibility,
		EmbargoDate:        embargo,
		CreatedAt:          now,
		UpdatedAt:          now,
	}))
}

func seedEntry(t *testing.T, rp repo.Repo, id string, projectID *string, f *int64) {
	t.Helper()
	require.NoError(t, rp.InsertCareerEntry(context.Background(), domain.CareerEntry{
		ID:        id,
		DancerID:  "dancer-mia",
		Title:     "Entry " + id,
		ProjectID: projectID,
		Fee:       f,
		CreatedAt: "2026-03-01T00:00:00Z",
	}))
}

func TestPublicProfileFiltersPrivateProjects(t *testing.T) {
	r, rp := newTestResolver(t)
	seedProfile(t, rp)
	seedProject(t, rp, "proj-public", domain.VisibilityPublic, nil)
	seedProject(t, rp, "proj-private", domain.VisibilityPrivate, nil)
	fee := int64(450000)
	seedEntry(t, rp, "e1", strp("proj-public"), &fee)
	seedEntry(t, rp, "e2", strp("proj-private"), nil)
	seedEntry(t, rp, "e3", nil, &fee)

	entries, err := r.PublicProfile(context.Background(), "dancer-mia")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Newest first; e2 is linked to the private project and filtered out.
	assert.Equal(t, "e3", entries[0].ID)
	assert.Equal(t, "e1", entries[1].ID)
}

func TestPublicProfileUnknownDancer(t *testing.T) {
	r, _ := newTestResolver(t)
	_, err := r.PublicProfile(context.Background(), "dancer-missing")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestPublicProfileExpiredEmbargoQueuesAutoPublishOnce(t *testing.T) {
	r, rp := newTestResolver(t)
	seedProfile(t, rp)
	seedProject(t, rp, "proj-embargo", domain.VisibilityPrivate, strp("2026-03-10"))
	seedEntry(t, rp, "e1", strp("proj-embargo"), nil)
	seedEntry(t, rp, "e2", strp("proj-embargo"), nil)

	entries, err := r.PublicProfile(context.Background(), "dancer-mia")
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	// Two entries on the same lapsed project produce a single intent.
	intents, err := rp.PendingIntents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, domain.IntentAutoPublish, intents[0].Kind)
	assert.Equal(t, "proj-embargo", intents[0].ProjectID)

	// The stored row stays private until the worker runs.
	project, err := rp.GetProject(context.Background(), "proj-embargo")
	require.NoError(t, err)
	assert.Equal(t, domain.VisibilityPrivate, project.Visibility)
}

func TestPublicProfileStoredPublicDoesNotQueue(t *testing.T) {
	r, rp := newTestResolver(t)
	seedProfile(t, rp)
	seedProject(t, rp, "proj-public", domain.VisibilityPublic, strp("2026-03-10"))
	seedEntry(t, rp, "e1", strp("proj-public"), nil)

	_, err := r.PublicProfile(context.Background(), "dancer-mia")
	require.NoError(t, err)

	intents, err := rp.PendingIntents(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, intents)
}

func TestPublicProfileOmitsFees(t *testing.T) {
	r, rp := newTestResolver(t)
	seedProfile(t, rp)
	fee := int64(123456)
	seedEntry(t, rp, "e1", nil, &fee)

	entries, err := r.PublicProfile(context.Background(), "dancer-mia")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	// The projection type has no fee field; spot-check the payload shape.
	assert.Equal(t, "e1", entries[0].ID)
	assert.Equal(t, "dancer-mia", entries[0].DancerID)
}
