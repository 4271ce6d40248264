package stagelinksdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Stagelink HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Proposal represents the API proposal model.
type Proposal struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	DancerID  string `json:"dancer_id"`
	SenderID  string `json:"sender_id"`
	Role      string `json:"role"`
	Fee       *int64 `json:"fee,omitempty"`
	Status    string `json:"status"`
	Version   int    `json:"version"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Entry is one negotiation history record.
type Entry struct {
	ID         string `json:"id"`
	ProposalID string `json:"proposal_id"`
	ActorID    string `json:"actor_id"`
	Type       string `json:"type"`
	Message    string `json:"message,omitempty"`
	Fee        *int64 `json:"fee,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// SettlementLine is one income or expense row.
type SettlementLine struct {
	ProposalID string `json:"proposal_id"`
	ProjectID  string `json:"project_id"`
	DancerID   string `json:"dancer_id"`
	Role       string `json:"role"`
	Fee        *int64 `json:"fee,omitempty"`
	State      string `json:"state"`
}

// Settlement is a derived financial statement.
type Settlement struct {
	DancerID       string           `json:"dancer_id"`
	Income         []SettlementLine `json:"income"`
	Expense        []SettlementLine `json:"expense"`
	PendingTotal   int64            `json:"pending_total"`
	CompletedTotal int64            `json:"completed_total"`
}

// PublicCareerEntry is a publicly visible career record; it carries no fee.
type PublicCareerEntry struct {
	ID          string  `json:"id"`
	DancerID    string  `json:"dancer_id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	ProjectID   *string `json:"project_id,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Propose creates a proposal for a dancer.
func (c *Client) Propose(ctx context.Context, projectID, dancerID, role string, fee *int64) (Proposal, error) {
	body := map[string]any{
		"project_id": projectID,
		"dancer_id":  dancerID,
		"role":       role,
	}
	if fee != nil {
		body["fee"] = *fee
	}
	var resp Proposal
	err := c.do(ctx, http.MethodPost, "proposals", body, &resp)
	return resp, err
}

// Respond applies a negotiation action (accept, decline, counter_offer, message).
func (c *Client) Respond(ctx context.Context, proposalID, action, message string, fee *int64) (Proposal, error) {
	body := map[string]any{"action": action}
	if message != "" {
		body["message"] = message
	}
	if fee != nil {
		body["fee"] = *fee
	}
	var resp Proposal
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("proposals/%s/respond", url.PathEscape(proposalID)), body, &resp)
	return resp, err
}

// Cancel withdraws a proposal.
func (c *Client) Cancel(ctx context.Context, proposalID string) (Proposal, error) {
	var resp Proposal
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("proposals/%s/cancel", url.PathEscape(proposalID)), nil, &resp)
	return resp, err
}

// MarkRead advances the caller's read cursor.
func (c *Client) MarkRead(ctx context.Context, proposalID string) (Proposal, error) {
	var resp Proposal
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("proposals/%s/read", url.PathEscape(proposalID)), nil, &resp)
	return resp, err
}

// UnreadCount returns the unread entry count for the caller.
func (c *Client) UnreadCount(ctx context.Context, proposalID string) (int, error) {
	var resp struct {
		Unread int `json:"unread"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("proposals/%s/unread", url.PathEscape(proposalID)), nil, &resp)
	return resp.Unread, err
}

// History returns the negotiation log in append order.
func (c *Client) History(ctx context.Context, proposalID string) ([]Entry, error) {
	var resp []Entry
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("proposals/%s/history", url.PathEscape(proposalID)), nil, &resp)
	return resp, err
}

// Settlement fetches the dancer's derived statement.
func (c *Client) Settlement(ctx context.Context, dancerID string) (Settlement, error) {
	var resp Settlement
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("dancers/%s/settlement", url.PathEscape(dancerID)), nil, &resp)
	return resp, err
}

// PublicProfile fetches the dancer's public career entries.
func (c *Client) PublicProfile(ctx context.Context, dancerID string) ([]PublicCareerEntry, error) {
	var resp []PublicCareerEntry
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("dancers/%s/public-profile", url.PathEscape(dancerID)), nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
