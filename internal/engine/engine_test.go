package engine

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"stagelink/internal/config"
	"stagelink/internal/db"
	"stagelink/internal/domain"
	"stagelink/internal/migrate"
	"stagelink/internal/repo"
)

func newTestEngine(t *testing.T) Engine {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := New(conn, config.Default())
	e.Logger = log.New(io.Discard, "", 0)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	step := 0
	e.Now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}
	return e
}

type fixture struct {
	OwnerID     string
	DancerOwner string
	DancerID    string
	ProjectID   string
}

func seed(t *testing.T, e Engine) fixture {
	t.Helper()
	ctx := context.Background()
	now := e.NowUTC()
	f := fixture{OwnerID: "acct-owner", DancerOwner: "acct-mia", DancerID: "dancer-mia"}
	for _, acct := range []string{f.OwnerID, f.DancerOwner} {
		if err := e.Repo.EnsureAccount(ctx, acct, "", now); err != nil {
			t.Fatalf("ensure account: %v", err)
		}
	}
	if err := e.Repo.InsertDancer(ctx, domain.Dancer{
		ID:             f.DancerID,
		OwnerAccountID: f.DancerOwner,
		Name:           "Mia",
		CreatedAt:      now,
	}); err != nil {
		t.Fatalf("insert dancer: %v", err)
	}
	p, err := e.CreateProject(ctx, ProjectOptions{OwnerID: f.OwnerID, Title: "Spring Showcase"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	f.ProjectID = p.ID
	return f
}

func propose(t *testing.T, e Engine, f fixture, fee *int64) domain.Proposal {
	t.Helper()
	p, err := e.Propose(context.Background(), ProposeOptions{
		ProjectID: f.ProjectID,
		DancerID:  f.DancerID,
		SenderID:  f.OwnerID,
		Role:      "lead",
		Fee:       fee,
	})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	return p
}

func int64p(v int64) *int64 { return &v }

func TestNegotiationFlow(t *testing.T) {
	e := newTestEngine(t)
	f := seed(t, e)
	ctx := context.Background()

	p := propose(t, e, f, int64p(500000))
	if p.Status != domain.ProposalPending || p.Version != 1 {
		t.Fatalf("unexpected initial proposal: %+v", p)
	}

	p, err := e.Respond(ctx, RespondOptions{
		ProposalID: p.ID,
		ActorID:    f.DancerOwner,
		Action:     ActionCounterOffer,
		Fee:        int64p(450000),
	})
	if err != nil {
		t.Fatalf("counter offer: %v", err)
	}
	if p.Status != domain.ProposalNegotiating {
		t.Fatalf("status = %s, want negotiating", p.Status)
	}
	if p.Fee == nil || *p.Fee != 450000 {
		t.Fatalf("fee not written through: %+v", p.Fee)
	}
	if p.Version != 2 {
		t.Fatalf("version = %d, want 2", p.Version)
	}

	p, err = e.Respond(ctx, RespondOptions{ProposalID: p.ID, ActorID: f.OwnerID, Action: ActionAccept})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if p.Status != domain.ProposalAccepted {
		t.Fatalf("status = %s, want accepted", p.Status)
	}
	if p.Fee == nil || *p.Fee != 450000 {
		t.Fatalf("accepted fee = %v, want 450000", p.Fee)
	}

	entries, err := e.History(ctx, p.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("history length = %d, want 2", len(entries))
	}
	if entries[0].Type != domain.EntryOffer || entries[1].Type != domain.EntryAccept {
		t.Fatalf("unexpected entry types: %s, %s", entries[0].Type, entries[1].Type)
	}
}

func TestRespondOnTerminalProposal(t *testing.T) {
	e := newTestEngine(t)
	f := seed(t, e)
	ctx := context.Background()

	p := propose(t, e, f, nil)
	if _, err := e.Respond(ctx, RespondOptions{ProposalID: p.ID, ActorID: f.DancerOwner, Action: ActionDecline}); err != nil {
		t.Fatalf("decline: %v", err)
	}

	_, err := e.Respond(ctx, RespondOptions{ProposalID: p.ID, ActorID: f.OwnerID, Action: ActionAccept})
	var ise InvalidStateError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
}

func TestRespondForbiddenForStranger(t *testing.T) {
	e := newTestEngine(t)
	f := seed(t, e)
	ctx := context.Background()

	p := propose(t, e, f, nil)
	_, err := e.Respond(ctx, RespondOptions{ProposalID: p.ID, ActorID: "acct-stranger", Action: ActionAccept})
	var fe ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
}

func TestProposeForbiddenForNonOwner(t *testing.T) {
	e := newTestEngine(t)
	f := seed(t, e)

	_, err := e.Propose(context.Background(), ProposeOptions{
		ProjectID: f.ProjectID,
		DancerID:  f.DancerID,
		SenderID:  f.DancerOwner,
		Role:      "lead",
	})
	var fe ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
}

func TestCancelIsSenderOnlyAndLeavesNoHistory(t *testing.T) {
	e := newTestEngine(t)
	f := seed(t, e)
	ctx := context.Background()

	p := propose(t, e, f, nil)
	_, err := e.Cancel(ctx, p.ID, f.DancerOwner)
	var fe ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("expected ForbiddenError for receiver cancel, got %v", err)
	}

	p, err = e.Cancel(ctx, p.ID, f.OwnerID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if p.Status != domain.ProposalCancelled {
		t.Fatalf("status = %s, want cancelled", p.Status)
	}
	entries, err := e.History(ctx, p.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("cancel must not append history, got %d entries", len(entries))
	}
}

func TestCASConflictOnStaleVersion(t *testing.T) {
	e := newTestEngine(t)
	f := seed(t, e)
	ctx := context.Background()

	p := propose(t, e, f, nil)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()
	stale := p
	stale.Status = domain.ProposalAccepted
	if err := e.Repo.UpdateProposalCAS(ctx, tx, stale, p.Version+5); err == nil || !errors.Is(err, repo.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestSyncForcesProjectStatusOnLastDecline(t *testing.T) {
	e := newTestEngine(t)
	f := seed(t, e)
	ctx := context.Background()

	p := propose(t, e, f, nil)
	if _, err := e.Respond(ctx, RespondOptions{ProposalID: p.ID, ActorID: f.DancerOwner, Action: ActionDecline}); err != nil {
		t.Fatalf("decline: %v", err)
	}

	project, err := e.Repo.GetProject(ctx, f.ProjectID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if project.ConfirmationStatus != domain.ConfirmationDeclined {
		t.Fatalf("confirmation = %s, want declined", project.ConfirmationStatus)
	}
	if project.ProgressStatus != domain.ProgressCancelled {
		t.Fatalf("progress = %s, want cancelled", project.ProgressStatus)
	}
}

func TestSyncForcesCancelledOnLastCancel(t *testing.T) {
	e := newTestEngine(t)
	f := seed(t, e)
	ctx := context.Background()

	p := propose(t, e, f, nil)
	if _, err := e.Cancel(ctx, p.ID, f.OwnerID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	project, err := e.Repo.GetProject(ctx, f.ProjectID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if project.ConfirmationStatus != domain.ConfirmationCancelled {
		t.Fatalf("confirmation = %s, want cancelled", project.ConfirmationStatus)
	}
	if project.ProgressStatus != domain.ProgressCancelled {
		t.Fatalf("progress = %s, want cancelled", project.ProgressStatus)
	}
}

func TestSyncIsNoOpWhileProposalsActive(t *testing.T) {
	e := newTestEngine(t)
	f := seed(t, e)
	ctx := context.Background()

	propose(t, e, f, nil)
	if err := e.SyncProjectStatus(ctx, f.ProjectID, "respond"); err != nil {
		t.Fatalf("sync: %v", err)
	}
	project, err := e.Repo.GetProject(ctx, f.ProjectID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if project.ConfirmationStatus != domain.ConfirmationNegotiating || project.ProgressStatus != domain.ProgressIdle {
		t.Fatalf("statuses changed with an active proposal: %s / %s", project.ConfirmationStatus, project.ProgressStatus)
	}
}

func TestNewProposalAfterSyncCountsAsActive(t *testing.T) {
	e := newTestEngine(t)
	f := seed(t, e)
	ctx := context.Background()

	p := propose(t, e, f, nil)
	if _, err := e.Respond(ctx, RespondOptions{ProposalID: p.ID, ActorID: f.DancerOwner, Action: ActionDecline}); err != nil {
		t.Fatalf("decline: %v", err)
	}
	// A fresh proposal makes the project live again; a later sync pass must
	// not force terminal statuses.
	propose(t, e, f, nil)
	if err := e.SyncProjectStatus(ctx, f.ProjectID, "respond"); err != nil {
		t.Fatalf("sync: %v", err)
	}
	n, err := e.Repo.CountActiveProposals(ctx, f.ProjectID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("active proposals = %d, want 1", n)
	}
}

func TestUnreadCounting(t *testing.T) {
	e := newTestEngine(t)
	f := seed(t, e)
	ctx := context.Background()

	p := propose(t, e, f, nil)

	// The receiving dancer has never read anything: the proposal itself counts.
	n, err := e.UnreadCount(ctx, p.ID, f.DancerOwner)
	if err != nil {
		t.Fatalf("unread: %v", err)
	}
	if n != 1 {
		t.Fatalf("dancer unread = %d, want 1", n)
	}

	// The sender authored the proposal; nothing is unread for them.
	n, err = e.UnreadCount(ctx, p.ID, f.OwnerID)
	if err != nil {
		t.Fatalf("unread: %v", err)
	}
	if n != 0 {
		t.Fatalf("sender unread = %d, want 0", n)
	}

	if _, err := e.Respond(ctx, RespondOptions{ProposalID: p.ID, ActorID: f.DancerOwner, Action: ActionMessage, Message: "can we talk fee?"}); err != nil {
		t.Fatalf("message: %v", err)
	}
	n, _ = e.UnreadCount(ctx, p.ID, f.OwnerID)
	if n != 1 {
		t.Fatalf("sender unread after message = %d, want 1", n)
	}

	if _, err := e.MarkRead(ctx, p.ID, f.DancerOwner); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	n, _ = e.UnreadCount(ctx, p.ID, f.DancerOwner)
	if n != 0 {
		t.Fatalf("dancer unread after read = %d, want 0", n)
	}

	if _, err := e.Respond(ctx, RespondOptions{ProposalID: p.ID, ActorID: f.OwnerID, Action: ActionMessage, Message: "sure"}); err != nil {
		t.Fatalf("message: %v", err)
	}
	n, _ = e.UnreadCount(ctx, p.ID, f.DancerOwner)
	if n != 1 {
		t.Fatalf("dancer unread after sender message = %d, want 1", n)
	}
}

func TestCounterOfferRequiresFee(t *testing.T) {
	e := newTestEngine(t)
	f := seed(t, e)

	p := propose(t, e, f, nil)
	_, err := e.Respond(context.Background(), RespondOptions{ProposalID: p.ID, ActorID: f.DancerOwner, Action: ActionCounterOffer})
	if err == nil {
		t.Fatal("expected error for counter_offer without fee")
	}
}

func TestProposeOnDeletedProject(t *testing.T) {
	e := newTestEngine(t)
	f := seed(t, e)
	ctx := context.Background()

	if err := e.DeleteProject(ctx, f.ProjectID, f.OwnerID); err != nil {
		t.Fatalf("delete project: %v", err)
	}
	_, err := e.Propose(ctx, ProposeOptions{ProjectID: f.ProjectID, DancerID: f.DancerID, SenderID: f.OwnerID, Role: "lead"})
	var ise InvalidStateError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
}

func TestSettlementThroughEngine(t *testing.T) {
	e := newTestEngine(t)
	f := seed(t, e)
	ctx := context.Background()

	p := propose(t, e, f, int64p(450000))
	if _, err := e.Respond(ctx, RespondOptions{ProposalID: p.ID, ActorID: f.DancerOwner, Action: ActionAccept}); err != nil {
		t.Fatalf("accept: %v", err)
	}

	st, err := e.Settlement(ctx, f.DancerID)
	if err != nil {
		t.Fatalf("settlement: %v", err)
	}
	if len(st.Income) != 1 || len(st.Expense) != 0 {
		t.Fatalf("unexpected statement shape: %d income, %d expense", len(st.Income), len(st.Expense))
	}
	if st.CompletedTotal != 450000 || st.PendingTotal != 0 {
		t.Fatalf("totals = %d/%d, want 450000/0", st.CompletedTotal, st.PendingTotal)
	}
}
