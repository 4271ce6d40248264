package domain

// Proposal statuses. Accepted, declined and cancelled are terminal.
const (
	ProposalPending     = "pending"
	ProposalNegotiating = "negotiating"
	ProposalAccepted    = "accepted"
	ProposalDeclined    = "declined"
	ProposalCancelled   = "cancelled"
)

// ActiveProposalStatuses are the statuses that count as a live engagement
// for status synchronization and settlement.
var ActiveProposalStatuses = []string{ProposalAccepted, ProposalPending, ProposalNegotiating}

// Negotiation entry types.
const (
	EntryMessage = "message"
	EntryOffer   = "offer"
	EntryAccept  = "accept"
	EntryDecline = "decline"
)

// Project confirmation statuses (commercial axis).
const (
	ConfirmationNegotiating = "negotiating"
	ConfirmationConfirmed   = "confirmed"
	ConfirmationDeclined    = "declined"
	ConfirmationCancelled   = "cancelled"
	ConfirmationCompleted   = "completed"
)

// Project progress statuses (execution axis).
const (
	ProgressIdle       = "idle"
	ProgressRecruiting = "recruiting"
	ProgressInProgress = "in_progress"
	ProgressCompleted  = "completed"
	ProgressCancelled  = "cancelled"
)

// Project visibility.
const (
	VisibilityPrivate = "private"
	VisibilityPublic  = "public"
)

type Proposal struct {
	ID             string  `json:"id"`
	ProjectID      string  `json:"project_id"`
	DancerID       string  `json:"dancer_id"`
	SenderID       string  `json:"sender_id"`
	Role           string  `json:"role"`
	Fee            *int64  `json:"fee,omitempty"`
	Status         string  `json:"status" enum:"pending,negotiating,accepted,declined,cancelled"`
	SenderReadAt   *string `json:"sender_read_at,omitempty" format:"date-time"`
	ReceiverReadAt *string `json:"receiver_read_at,omitempty" format:"date-time"`
	Version        int     `json:"version"`
	CreatedAt      string  `json:"created_at" format:"date-time"`
	UpdatedAt      string  `json:"updated_at" format:"date-time"`
}

// Terminal reports whether the proposal can no longer transition.
func (p Proposal) Terminal() bool {
	switch p.Status {
	case ProposalAccepted, ProposalDeclined, ProposalCancelled:
		return true
	}
	return false
}

// Active reports whether the proposal counts toward the project's live set.
func (p Proposal) Active() bool {
	switch p.Status {
	case ProposalAccepted, ProposalPending, ProposalNegotiating:
		return true
	}
	return false
}

type NegotiationEntry struct {
	ID         string `json:"id"`
	ProposalID string `json:"proposal_id"`
	ActorID    string `json:"actor_id"`
	Type       string `json:"type" enum:"message,offer,accept,decline"`
	Message    string `json:"message,omitempty"`
	Fee        *int64 `json:"fee,omitempty"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

type Project struct {
	ID                 string  `json:"id"`
	OwnerID            string  `json:"owner_id"`
	ParentID           *string `json:"parent_id,omitempty"`
	ClientID           *string `json:"client_id,omitempty"`
	PMDancerID         *string `json:"pm_dancer_id,omitempty"`
	Title              string  `json:"title"`
	Category           string  `json:"category,omitempty"`
	ConfirmationStatus string  `json:"confirmation_status" enum:"negotiating,confirmed,declined,cancelled,completed"`
	ProgressStatus     string  `json:"progress_status" enum:"idle,recruiting,in_progress,completed,cancelled"`
	Visibility         string  `json:"visibility" enum:"private,public"`
	EmbargoDate        *string `json:"embargo_date,omitempty" format:"date"`
	Budget             *int64  `json:"budget,omitempty"`
	StartDate          *string `json:"start_date,omitempty" format:"date"`
	EndDate            *string `json:"end_date,omitempty" format:"date"`
	DeletedAt          *string `json:"deleted_at,omitempty" format:"date-time"`
	Archived           bool    `json:"archived"`
	CreatedAt          string  `json:"created_at" format:"date-time"`
	UpdatedAt          string  `json:"updated_at" format:"date-time"`
}

// Deleted reports the soft-delete marker.
func (p Project) Deleted() bool { return p.DeletedAt != nil }

type CareerEntry struct {
	ID          string  `json:"id"`
	DancerID    string  `json:"dancer_id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	ProjectID   *string `json:"project_id,omitempty"`
	Fee         *int64  `json:"fee,omitempty"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
}

// PublicCareerEntry is the public-read projection of a CareerEntry.
// It deliberately has no fee field.
type PublicCareerEntry struct {
	ID          string  `json:"id"`
	DancerID    string  `json:"dancer_id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	ProjectID   *string `json:"project_id,omitempty"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
}

// Public strips monetary detail from a career entry.
func (c CareerEntry) Public() PublicCareerEntry {
	return PublicCareerEntry{
		ID:          c.ID,
		DancerID:    c.DancerID,
		Title:       c.Title,
		Description: c.Description,
		ProjectID:   c.ProjectID,
		CreatedAt:   c.CreatedAt,
	}
}

type Dancer struct {
	ID               string  `json:"id"`
	OwnerAccountID   string  `json:"owner_account_id"`
	ManagerAccountID *string `json:"manager_account_id,omitempty"`
	Name             string  `json:"name"`
	CreatedAt        string  `json:"created_at" format:"date-time"`
}

// OwnedBy reports whether the account controls this dancer profile.
func (d Dancer) OwnedBy(accountID string) bool {
	if d.OwnerAccountID == accountID {
		return true
	}
	return d.ManagerAccountID != nil && *d.ManagerAccountID == accountID
}

type ClientProfile struct {
	ID             string `json:"id"`
	OwnerAccountID string `json:"owner_account_id"`
	Name           string `json:"name"`
	CreatedAt      string `json:"created_at" format:"date-time"`
}

// Outbox intent kinds and statuses.
const (
	IntentSyncStatus   = "sync_status"
	IntentNotification = "notification"
	IntentAutoPublish  = "auto_publish"

	IntentPending = "pending"
	IntentSent    = "sent"
	IntentFailed  = "failed"
)

type Intent struct {
	ID         int64  `json:"id"`
	Kind       string `json:"kind" enum:"sync_status,notification,auto_publish"`
	ProjectID  string `json:"project_id,omitempty"`
	ProposalID string `json:"proposal_id,omitempty"`
	EventType  string `json:"event_type,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json,omitempty"`
	Status     string `json:"status" enum:"pending,sent,failed"`
	Attempts   int    `json:"attempts"`
	CreatedAt  string `json:"created_at" format:"date-time"`
	UpdatedAt  string `json:"updated_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
