package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"stagelink/internal/config"
	"stagelink/internal/domain"
	"stagelink/internal/events"
	"stagelink/internal/repo"
)

// Negotiation actions accepted by Respond.
const (
	ActionAccept       = "accept"
	ActionDecline      = "decline"
	ActionCounterOffer = "counter_offer"
	ActionMessage      = "message"
)

// Sides of a negotiation relative to the acting account.
const (
	sideSender = "sender"
	sideDancer = "dancer"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Logger *log.Logger
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// NowUTC returns the engine clock formatted as RFC 3339.
func (e Engine) NowUTC() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.Default()
}

// ProposeOptions are parameters for creating a proposal.
type ProposeOptions struct {
	ProjectID string
	DancerID  string
	SenderID  string
	Role      string
	Fee       *int64
}

// Propose creates a pending proposal from a sender to a dancer for a role in
// a project. The sender must be the project owner or control the project's
// PM dancer.
func (e Engine) Propose(ctx context.Context, opts ProposeOptions) (domain.Proposal, error) {
	if opts.Role == "" {
		return domain.Proposal{}, errors.New("role is required")
	}
	if opts.SenderID == "" {
		return domain.Proposal{}, errors.New("sender is required")
	}
	project, err := e.Repo.GetProject(ctx, opts.ProjectID)
	if err != nil {
		return domain.Proposal{}, err
	}
	if project.Deleted() {
		return domain.Proposal{}, InvalidStateError{Entity: "project", Status: "deleted", Action: "propose"}
	}
	dancer, err := e.Repo.GetDancer(ctx, opts.DancerID)
	if err != nil {
		return domain.Proposal{}, err
	}
	allowed := project.OwnerID == opts.SenderID
	if !allowed && project.PMDancerID != nil {
		pm, err := e.Repo.GetDancer(ctx, *project.PMDancerID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return domain.Proposal{}, err
		}
		allowed = err == nil && pm.OwnedBy(opts.SenderID)
	}
	if !allowed {
		return domain.Proposal{}, ForbiddenError{ActorID: opts.SenderID, Action: "propose on this project"}
	}

	now := e.now().UTC().Format(time.RFC3339)
	p := domain.Proposal{
		ID:        uuid.New().String(),
		ProjectID: project.ID,
		DancerID:  dancer.ID,
		SenderID:  opts.SenderID,
		Role:      opts.Role,
		Fee:       opts.Fee,
		Status:    domain.ProposalPending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Proposal{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertProposal(ctx, tx, p); err != nil {
		return domain.Proposal{}, fmt.Errorf("insert proposal: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "proposal.created", p.ProjectID, "proposal", p.ID, opts.SenderID, events.EventPayload{
		"dancer_id": p.DancerID,
		"role":      p.Role,
	}); err != nil {
		return domain.Proposal{}, err
	}
	if err := e.enqueueNotification(ctx, tx, p, "proposal_created", opts.SenderID, now); err != nil {
		return domain.Proposal{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Proposal{}, err
	}
	return p, nil
}

// RespondOptions are parameters for a negotiation action on a proposal.
type RespondOptions struct {
	ProposalID string
	ActorID    string
	Action     string
	Message    string
	Fee        *int64
}

// Respond applies a negotiation action by either party. Accept and decline
// are terminal; counter offers and messages move a pending proposal to
// negotiating. The proposal write is guarded by compare-and-set; status
// synchronization and notification delivery run as best-effort follow-ups
// and never roll back a committed transition.
func (e Engine) Respond(ctx context.Context, opts RespondOptions) (domain.Proposal, error) {
	p, err := e.Repo.GetProposal(ctx, opts.ProposalID)
	if err != nil {
		return domain.Proposal{}, err
	}
	side, err := e.actorSide(ctx, p, opts.ActorID, "respond to this proposal")
	if err != nil {
		return domain.Proposal{}, err
	}
	if p.Terminal() {
		return domain.Proposal{}, InvalidStateError{Entity: "proposal", Status: p.Status, Action: opts.Action}
	}

	now := e.now().UTC().Format(time.RFC3339)
	entry := domain.NegotiationEntry{
		ID:         uuid.New().String(),
		ProposalID: p.ID,
		ActorID:    opts.ActorID,
		Message:    opts.Message,
		CreatedAt:  now,
	}
	var eventType string
	switch opts.Action {
	case ActionAccept:
		entry.Type = domain.EntryAccept
		p.Status = domain.ProposalAccepted
		eventType = "proposal_accepted"
	case ActionDecline:
		entry.Type = domain.EntryDecline
		p.Status = domain.ProposalDeclined
		eventType = "proposal_declined"
	case ActionCounterOffer:
		if opts.Fee == nil {
			return domain.Proposal{}, errors.New("counter_offer requires a fee")
		}
		entry.Type = domain.EntryOffer
		entry.Fee = opts.Fee
		// The proposal's fee field stays authoritative for settlement, so a
		// counter offer writes it through immediately.
		p.Fee = opts.Fee
		if p.Status == domain.ProposalPending {
			p.Status = domain.ProposalNegotiating
		}
		eventType = "negotiation_message"
	case ActionMessage:
		entry.Type = domain.EntryMessage
		if p.Status == domain.ProposalPending {
			p.Status = domain.ProposalNegotiating
		}
		eventType = "negotiation_message"
	default:
		return domain.Proposal{}, fmt.Errorf("unknown action %s", opts.Action)
	}

	expected := p.Version
	p.UpdatedAt = now
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Proposal{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertEntry(ctx, tx, entry); err != nil {
		return domain.Proposal{}, fmt.Errorf("append history: %w", err)
	}
	if err := e.Repo.UpdateProposalCAS(ctx, tx, p, expected); err != nil {
		return domain.Proposal{}, err
	}
	if err := e.Events.Append(ctx, tx, "proposal."+opts.Action, p.ProjectID, "proposal", p.ID, opts.ActorID, events.EventPayload{
		"status": p.Status,
		"side":   side,
	}); err != nil {
		return domain.Proposal{}, err
	}
	trigger := triggerFor(opts.Action)
	if err := e.enqueueSync(ctx, tx, p, trigger, opts.ActorID, now); err != nil {
		return domain.Proposal{}, err
	}
	if err := e.enqueueNotification(ctx, tx, p, eventType, opts.ActorID, now); err != nil {
		return domain.Proposal{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Proposal{}, err
	}
	p.Version = expected + 1

	// Immediate best-effort pass; the outbox intent is the retry guarantee.
	if err := e.SyncProjectStatus(ctx, p.ProjectID, trigger); err != nil {
		e.logger().Printf("sync project %s after %s: %v", p.ProjectID, opts.Action, err)
	}
	return p, nil
}

// Cancel withdraws a proposal. Only the sender may cancel.
func (e Engine) Cancel(ctx context.Context, proposalID, actorID string) (domain.Proposal, error) {
	p, err := e.Repo.GetProposal(ctx, proposalID)
	if err != nil {
		return domain.Proposal{}, err
	}
	if p.SenderID != actorID {
		return domain.Proposal{}, ForbiddenError{ActorID: actorID, Action: "cancel this proposal"}
	}
	if p.Terminal() {
		return domain.Proposal{}, InvalidStateError{Entity: "proposal", Status: p.Status, Action: "cancel"}
	}

	now := e.now().UTC().Format(time.RFC3339)
	expected := p.Version
	p.Status = domain.ProposalCancelled
	p.UpdatedAt = now
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Proposal{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateProposalCAS(ctx, tx, p, expected); err != nil {
		return domain.Proposal{}, err
	}
	if err := e.Events.Append(ctx, tx, "proposal.cancelled", p.ProjectID, "proposal", p.ID, actorID, events.EventPayload{"status": p.Status}); err != nil {
		return domain.Proposal{}, err
	}
	if err := e.enqueueSync(ctx, tx, p, "cancel", actorID, now); err != nil {
		return domain.Proposal{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Proposal{}, err
	}
	p.Version = expected + 1

	if err := e.SyncProjectStatus(ctx, p.ProjectID, "cancel"); err != nil {
		e.logger().Printf("sync project %s after cancel: %v", p.ProjectID, err)
	}
	return p, nil
}

// MarkRead advances the acting party's read cursor to now.
func (e Engine) MarkRead(ctx context.Context, proposalID, actorID string) (domain.Proposal, error) {
	p, err := e.Repo.GetProposal(ctx, proposalID)
	if err != nil {
		return domain.Proposal{}, err
	}
	side, err := e.actorSide(ctx, p, actorID, "read this proposal")
	if err != nil {
		return domain.Proposal{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	expected := p.Version
	if side == sideSender {
		p.SenderReadAt = &now
	} else {
		p.ReceiverReadAt = &now
	}
	p.UpdatedAt = now
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Proposal{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateProposalCAS(ctx, tx, p, expected); err != nil {
		return domain.Proposal{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Proposal{}, err
	}
	p.Version = expected + 1
	return p, nil
}

// UnreadCount counts history entries authored by the other party after the
// actor's read cursor. A receiving dancer with no cursor also counts the
// initial proposal itself; the sender never does.
func (e Engine) UnreadCount(ctx context.Context, proposalID, actorID string) (int, error) {
	p, err := e.Repo.GetProposal(ctx, proposalID)
	if err != nil {
		return 0, err
	}
	side, err := e.actorSide(ctx, p, actorID, "read this proposal")
	if err != nil {
		return 0, err
	}
	entries, err := e.Repo.ListEntries(ctx, proposalID)
	if err != nil {
		return 0, err
	}
	var cursor *string
	if side == sideSender {
		cursor = p.SenderReadAt
	} else {
		cursor = p.ReceiverReadAt
	}
	count := 0
	for _, entry := range entries {
		entrySide := sideDancer
		if entry.ActorID == p.SenderID {
			entrySide = sideSender
		}
		if entrySide == side {
			continue
		}
		if cursor == nil || entry.CreatedAt > *cursor {
			count++
		}
	}
	if side == sideDancer && p.ReceiverReadAt == nil {
		count++
	}
	return count, nil
}

// History returns the proposal's negotiation log in append order.
func (e Engine) History(ctx context.Context, proposalID string) ([]domain.NegotiationEntry, error) {
	if _, err := e.Repo.GetProposal(ctx, proposalID); err != nil {
		return nil, err
	}
	return e.Repo.ListEntries(ctx, proposalID)
}

// actorSide resolves which side of the negotiation the account is on.
func (e Engine) actorSide(ctx context.Context, p domain.Proposal, actorID, action string) (string, error) {
	if actorID == "" {
		return "", ForbiddenError{ActorID: actorID, Action: action}
	}
	if p.SenderID == actorID {
		return sideSender, nil
	}
	dancer, err := e.Repo.GetDancer(ctx, p.DancerID)
	if err != nil {
		return "", err
	}
	if dancer.OwnedBy(actorID) {
		return sideDancer, nil
	}
	return "", ForbiddenError{ActorID: actorID, Action: action}
}

func triggerFor(action string) string {
	switch action {
	case ActionDecline:
		return "decline"
	default:
		return "respond"
	}
}

func (e Engine) enqueueSync(ctx context.Context, tx *sql.Tx, p domain.Proposal, trigger, actorID, now string) error {
	payload, _ := json.Marshal(map[string]string{"trigger": trigger})
	return e.Repo.EnqueueIntent(ctx, tx, domain.Intent{
		Kind:       domain.IntentSyncStatus,
		ProjectID:  p.ProjectID,
		ProposalID: p.ID,
		ActorID:    actorID,
		Payload:    string(payload),
		CreatedAt:  now,
	})
}

func (e Engine) enqueueNotification(ctx context.Context, tx *sql.Tx, p domain.Proposal, eventType, actorID, now string) error {
	return e.Repo.EnqueueIntent(ctx, tx, domain.Intent{
		Kind:       domain.IntentNotification,
		ProjectID:  p.ProjectID,
		ProposalID: p.ID,
		EventType:  eventType,
		ActorID:    actorID,
		CreatedAt:  now,
	})
}
