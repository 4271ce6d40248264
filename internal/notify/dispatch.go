package notify

import (
	"context"
	"errors"
	"fmt"
	"log"

	"stagelink/internal/config"
	"stagelink/internal/domain"
	"stagelink/internal/repo"
)

// Notification event types.
const (
	EventProposalCreated      = "proposal_created"
	EventProposalAccepted     = "proposal_accepted"
	EventProposalDeclined     = "proposal_declined"
	EventNegotiationMessage   = "negotiation_message"
	EventProjectStatusChanged = "project_status_changed"
)

// Dispatcher resolves the recipient set for an event and pushes one
// notification per recipient through the gateway.
type Dispatcher struct {
	Repo    repo.Repo
	Gateway Gateway
	Config  *config.Config
	Logger  *log.Logger
}

func (d Dispatcher) logger() *log.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return log.Default()
}

func (d Dispatcher) deepLinkBase() string {
	if d.Config != nil && d.Config.Notifications.DeepLinkBase != "" {
		return d.Config.Notifications.DeepLinkBase
	}
	return "stagelink://"
}

// Dispatch delivers one event to all of its recipients. Recipients are
// resolved independently; one failed send does not stop the others. It
// returns how many notifications were delivered out of how many were
// attempted, and an error only when the event itself cannot be resolved.
func (d Dispatcher) Dispatch(ctx context.Context, in domain.Intent) (delivered, attempted int, err error) {
	var msgs []Notification
	switch in.EventType {
	case EventProjectStatusChanged:
		msgs, err = d.projectMessages(ctx, in)
	case EventProposalCreated, EventProposalAccepted, EventProposalDeclined, EventNegotiationMessage:
		msgs, err = d.proposalMessages(ctx, in)
	default:
		return 0, 0, fmt.Errorf("unknown notification event %q", in.EventType)
	}
	if err != nil {
		return 0, 0, err
	}
	for _, m := range msgs {
		attempted++
		ok, sendErr := d.Gateway.Send(ctx, m)
		if sendErr != nil {
			d.logger().Printf("notify %s to %s: %v", in.EventType, m.RecipientID, sendErr)
			continue
		}
		if ok {
			delivered++
		}
	}
	return delivered, attempted, nil
}

func (d Dispatcher) proposalMessages(ctx context.Context, in domain.Intent) ([]Notification, error) {
	p, err := d.Repo.GetProposal(ctx, in.ProposalID)
	if err != nil {
		return nil, err
	}
	project, err := d.Repo.GetProject(ctx, p.ProjectID)
	if err != nil {
		return nil, err
	}
	link := d.deepLinkBase() + "proposals/" + p.ID

	var recipients []string
	var title, body string
	switch in.EventType {
	case EventProposalCreated:
		recipients = d.dancerAccounts(ctx, p.DancerID)
		title = "New proposal"
		body = fmt.Sprintf("You have a new proposal for %q on %s.", p.Role, project.Title)
	case EventProposalAccepted:
		recipients = []string{p.SenderID}
		title = "Proposal accepted"
		body = fmt.Sprintf("Your proposal for %q on %s was accepted.", p.Role, project.Title)
	case EventProposalDeclined:
		recipients = []string{p.SenderID}
		title = "Proposal declined"
		body = fmt.Sprintf("Your proposal for %q on %s was declined.", p.Role, project.Title)
	case EventNegotiationMessage:
		// Notify the side that did not act.
		if in.ActorID == p.SenderID {
			recipients = d.dancerAccounts(ctx, p.DancerID)
		} else {
			recipients = []string{p.SenderID}
		}
		title = "Negotiation update"
		body = fmt.Sprintf("New activity on your proposal for %q on %s.", p.Role, project.Title)
	}
	return render(recipients, in.ActorID, title, body, link), nil
}

func (d Dispatcher) projectMessages(ctx context.Context, in domain.Intent) ([]Notification, error) {
	project, err := d.Repo.GetProject(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}
	recipients := []string{project.OwnerID}
	if project.PMDancerID != nil {
		recipients = append(recipients, d.dancerAccounts(ctx, *project.PMDancerID)...)
	}
	if project.ClientID != nil {
		client, err := d.Repo.GetClientProfile(ctx, *project.ClientID)
		if err == nil {
			recipients = append(recipients, client.OwnerAccountID)
		} else if !errors.Is(err, repo.ErrNotFound) {
			d.logger().Printf("notify: resolve client %s: %v", *project.ClientID, err)
		}
	}
	title := "Project status changed"
	body := fmt.Sprintf("%s is now %s / %s.", project.Title, project.ConfirmationStatus, project.ProgressStatus)
	link := d.deepLinkBase() + "projects/" + project.ID
	return render(recipients, "", title, body, link), nil
}

// dancerAccounts returns the accounts controlling a dancer profile. A lookup
// failure yields no recipients rather than an error.
func (d Dispatcher) dancerAccounts(ctx context.Context, dancerID string) []string {
	dancer, err := d.Repo.GetDancer(ctx, dancerID)
	if err != nil {
		d.logger().Printf("notify: resolve dancer %s: %v", dancerID, err)
		return nil
	}
	accounts := []string{dancer.OwnerAccountID}
	if dancer.ManagerAccountID != nil {
		accounts = append(accounts, *dancer.ManagerAccountID)
	}
	return accounts
}

// render dedupes recipients and drops the acting account; nobody is notified
// about their own action.
func render(recipients []string, actorID, title, body, link string) []Notification {
	seen := map[string]bool{}
	var msgs []Notification
	for _, r := range recipients {
		if r == "" || r == actorID || seen[r] {
			continue
		}
		seen[r] = true
		msgs = append(msgs, Notification{RecipientID: r, Title: title, Body: body, DeepLink: link})
	}
	return msgs
}
