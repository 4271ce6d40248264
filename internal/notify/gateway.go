// Package notify fans negotiation and status events out to recipients
// through an external push gateway. Delivery is best-effort: a failed or
// undeliverable notification never fails the operation that caused it.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"stagelink/internal/config"
)

const defaultGatewayTimeout = 5 * time.Second

// Notification is one rendered message for one recipient account.
type Notification struct {
	RecipientID string `json:"recipient_id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	DeepLink    string `json:"deep_link,omitempty"`
}

// Gateway delivers a notification to a single recipient. The bool reports
// whether the message was actually handed off; false with a nil error means
// the recipient is unreachable (no device, gateway disabled) and the message
// was dropped on purpose.
type Gateway interface {
	Send(ctx context.Context, n Notification) (bool, error)
}

// HTTPGateway posts notifications to a configured push endpoint.
type HTTPGateway struct {
	URL    string
	Secret string
	Client *http.Client
}

func NewHTTPGateway(cfg *config.Config) *HTTPGateway {
	timeout := defaultGatewayTimeout
	if cfg != nil && cfg.Gateway.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.Gateway.TimeoutSeconds) * time.Second
	}
	g := &HTTPGateway{Client: &http.Client{Timeout: timeout}}
	if cfg != nil {
		g.URL = cfg.Gateway.URL
		g.Secret = cfg.Gateway.Secret
	}
	return g
}

func (g *HTTPGateway) Send(ctx context.Context, n Notification) (bool, error) {
	if strings.TrimSpace(g.URL) == "" {
		return false, nil
	}
	data, err := json.Marshal(n)
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL, bytes.NewReader(data))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(g.Secret) != "" {
		req.Header.Set("X-Stagelink-Secret", g.Secret)
	}
	client := g.Client
	if client == nil {
		client = &http.Client{Timeout: defaultGatewayTimeout}
	}
	res, err := client.Do(req)
	if err != nil {
		return false, fmt.Errorf("notification gateway unavailable: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return false, fmt.Errorf("notification gateway status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return true, nil
}
