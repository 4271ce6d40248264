package server

import (
	"github.com/google/uuid"

	"stagelink/internal/domain"
	"stagelink/internal/settlement"
)

type domainPublicEntry = domain.PublicCareerEntry

func domainDancer(id, ownerAccountID string, managerAccountID *string, name, now string) domain.Dancer {
	return domain.Dancer{
		ID:               id,
		OwnerAccountID:   ownerAccountID,
		ManagerAccountID: managerAccountID,
		Name:             name,
		CreatedAt:        now,
	}
}

func domainClientProfile(id, ownerAccountID, name, now string) domain.ClientProfile {
	return domain.ClientProfile{
		ID:             id,
		OwnerAccountID: ownerAccountID,
		Name:           name,
		CreatedAt:      now,
	}
}

func domainCareerEntry(dancerID string, req CreateCareerEntryRequest, now string) domain.CareerEntry {
	return domain.CareerEntry{
		ID:          uuid.New().String(),
		DancerID:    dancerID,
		Title:       req.Title,
		Description: req.Description,
		ProjectID:   req.ProjectID,
		Fee:         req.Fee,
		CreatedAt:   now,
	}
}

type CreateProjectRequest struct {
	ID         string  `json:"id,omitempty"`
	Title      string  `json:"title"`
	Category   string  `json:"category,omitempty"`
	ParentID   *string `json:"parent_id,omitempty"`
	ClientID   *string `json:"client_id,omitempty"`
	PMDancerID *string `json:"pm_dancer_id,omitempty"`
	Budget     *int64  `json:"budget,omitempty"`
	StartDate  *string `json:"start_date,omitempty" format:"date"`
	EndDate    *string `json:"end_date,omitempty" format:"date"`
}

type SetVisibilityRequest struct {
	Visibility  string  `json:"visibility" enum:"private,public"`
	EmbargoDate *string `json:"embargo_date,omitempty" format:"date"`
}

type ProjectResponse struct {
	ID                 string  `json:"id"`
	OwnerID            string  `json:"owner_id"`
	ParentID           *string `json:"parent_id,omitempty"`
	ClientID           *string `json:"client_id,omitempty"`
	PMDancerID         *string `json:"pm_dancer_id,omitempty"`
	Title              string  `json:"title"`
	Category           string  `json:"category,omitempty"`
	ConfirmationStatus string  `json:"confirmation_status"`
	ProgressStatus     string  `json:"progress_status"`
	Visibility         string  `json:"visibility"`
	EmbargoDate        *string `json:"embargo_date,omitempty"`
	Budget             *int64  `json:"budget,omitempty"`
	StartDate          *string `json:"start_date,omitempty"`
	EndDate            *string `json:"end_date,omitempty"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"updated_at"`
}

func projectResponse(p domain.Project) ProjectResponse {
	return ProjectResponse{
		ID:                 p.ID,
		OwnerID:            p.OwnerID,
		ParentID:           p.ParentID,
		ClientID:           p.ClientID,
		PMDancerID:         p.PMDancerID,
		Title:              p.Title,
		Category:           p.Category,
		ConfirmationStatus: p.ConfirmationStatus,
		ProgressStatus:     p.ProgressStatus,
		Visibility:         p.Visibility,
		EmbargoDate:        p.EmbargoDate,
		Budget:             p.Budget,
		StartDate:          p.StartDate,
		EndDate:            p.EndDate,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

func mapProjects(items []domain.Project) []ProjectResponse {
	res := []ProjectResponse{}
	for _, p := range items {
		res = append(res, projectResponse(p))
	}
	return res
}

type CreateProposalRequest struct {
	ProjectID string `json:"project_id"`
	DancerID  string `json:"dancer_id"`
	Role      string `json:"role"`
	Fee       *int64 `json:"fee,omitempty"`
}

type RespondRequest struct {
	Action  string `json:"action" enum:"accept,decline,counter_offer,message"`
	Message string `json:"message,omitempty"`
	Fee     *int64 `json:"fee,omitempty"`
}

type ProposalResponse struct {
	ID             string  `json:"id"`
	ProjectID      string  `json:"project_id"`
	DancerID       string  `json:"dancer_id"`
	SenderID       string  `json:"sender_id"`
	Role           string  `json:"role"`
	Fee            *int64  `json:"fee,omitempty"`
	Status         string  `json:"status"`
	SenderReadAt   *string `json:"sender_read_at,omitempty"`
	ReceiverReadAt *string `json:"receiver_read_at,omitempty"`
	Version        int     `json:"version"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

func proposalResponse(p domain.Proposal) ProposalResponse {
	return ProposalResponse{
		ID:             p.ID,
		ProjectID:      p.ProjectID,
		DancerID:       p.DancerID,
		SenderID:       p.SenderID,
		Role:           p.Role,
		Fee:            p.Fee,
		Status:         p.Status,
		SenderReadAt:   p.SenderReadAt,
		ReceiverReadAt: p.ReceiverReadAt,
		Version:        p.Version,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func mapProposals(items []domain.Proposal) []ProposalResponse {
	res := []ProposalResponse{}
	for _, p := range items {
		res = append(res, proposalResponse(p))
	}
	return res
}

type EntryResponse struct {
	ID         string `json:"id"`
	ProposalID string `json:"proposal_id"`
	ActorID    string `json:"actor_id"`
	Type       string `json:"type"`
	Message    string `json:"message,omitempty"`
	Fee        *int64 `json:"fee,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func mapEntries(items []domain.NegotiationEntry) []EntryResponse {
	res := []EntryResponse{}
	for _, e := range items {
		res = append(res, EntryResponse{
			ID:         e.ID,
			ProposalID: e.ProposalID,
			ActorID:    e.ActorID,
			Type:       e.Type,
			Message:    e.Message,
			Fee:        e.Fee,
			CreatedAt:  e.CreatedAt,
		})
	}
	return res
}

type UnreadResponse struct {
	ProposalID string `json:"proposal_id"`
	Unread     int    `json:"unread"`
}

type SettlementResponse struct {
	DancerID       string            `json:"dancer_id"`
	Income         []settlement.Line `json:"income"`
	Expense        []settlement.Line `json:"expense"`
	PendingTotal   int64             `json:"pending_total"`
	CompletedTotal int64             `json:"completed_total"`
}

type CreateDancerRequest struct {
	ID               string  `json:"id,omitempty"`
	Name             string  `json:"name"`
	ManagerAccountID *string `json:"manager_account_id,omitempty"`
}

type DancerResponse struct {
	ID               string  `json:"id"`
	OwnerAccountID   string  `json:"owner_account_id"`
	ManagerAccountID *string `json:"manager_account_id,omitempty"`
	Name             string  `json:"name"`
	CreatedAt        string  `json:"created_at"`
}

func dancerResponse(d domain.Dancer) DancerResponse {
	return DancerResponse{
		ID:               d.ID,
		OwnerAccountID:   d.OwnerAccountID,
		ManagerAccountID: d.ManagerAccountID,
		Name:             d.Name,
		CreatedAt:        d.CreatedAt,
	}
}

type CreateClientProfileRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type ClientProfileResponse struct {
	ID             string `json:"id"`
	OwnerAccountID string `json:"owner_account_id"`
	Name           string `json:"name"`
	CreatedAt      string `json:"created_at"`
}

type CreateCareerEntryRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	ProjectID   *string `json:"project_id,omitempty"`
	Fee         *int64  `json:"fee,omitempty"`
}

type CareerEntryResponse struct {
	ID          string  `json:"id"`
	DancerID    string  `json:"dancer_id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	ProjectID   *string `json:"project_id,omitempty"`
	Fee         *int64  `json:"fee,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

func mapEvents(items []domain.Event) []EventResponse {
	res := []EventResponse{}
	for _, e := range items {
		res = append(res, EventResponse{
			ID:         e.ID,
			TS:         e.TS,
			Type:       e.Type,
			ProjectID:  e.ProjectID,
			EntityKind: e.EntityKind,
			EntityID:   e.EntityID,
			ActorID:    e.ActorID,
			Payload:    e.Payload,
		})
	}
	return res
}
