package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"stagelink/internal/config"
	"stagelink/internal/db"
	"stagelink/internal/engine"
	"stagelink/internal/migrate"
	"stagelink/internal/repo"
)

const testSecret = "test-secret"

var errGatewayUnavailable = errors.New("notification gateway unavailable: connection refused")

func newTestServer(t *testing.T) (*httptest.Server, engine.Engine) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	e.Logger = log.New(io.Discard, "", 0)
	handler, err := New(Config{
		Engine: e,
		Auth: AuthConfig{
			JWTSecret:              testSecret,
			AllowLegacyActorHeader: true,
			Logger:                 e.Logger,
		},
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts, e
}

type errEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, actor string, body any) (int, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set("X-Actor-Id", actor)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return v
}

func errCode(t *testing.T, data []byte) string {
	t.Helper()
	return decode[errEnvelope](t, data).Error.Code
}

func createFixtures(t *testing.T, ts *httptest.Server) (projectID, dancerID string) {
	t.Helper()
	status, data := doJSON(t, ts, http.MethodPost, "/v0/dancers", "acct-mia", map[string]any{
		"id": "dancer-mia", "name": "Mia", "manager_account_id": "acct-mgr",
	})
	if status != http.StatusCreated {
		t.Fatalf("create dancer: status %d body %s", status, data)
	}
	status, data = doJSON(t, ts, http.MethodPost, "/v0/projects", "acct-owner", map[string]any{
		"id": "proj-1", "title": "Spring Showcase",
	})
	if status != http.StatusCreated {
		t.Fatalf("create project: status %d body %s", status, data)
	}
	return "proj-1", "dancer-mia"
}

func TestHealthIsOpen(t *testing.T) {
	ts, _ := newTestServer(t)
	status, data := doJSON(t, ts, http.MethodGet, "/v0/health", "", nil)
	if status != http.StatusOK {
		t.Fatalf("status %d body %s", status, data)
	}
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	ts, _ := newTestServer(t)
	status, data := doJSON(t, ts, http.MethodGet, "/v0/projects", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("status %d body %s", status, data)
	}
	if code := errCode(t, data); code != "unauthorized" {
		t.Fatalf("code = %s, want unauthorized", code)
	}
}

func TestJWTAuthentication(t *testing.T) {
	ts, _ := newTestServer(t)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "acct-owner",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/v0/projects", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/v0/projects", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err = ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token status %d, want 401", resp.StatusCode)
	}
}

func TestProposalLifecycleOverHTTP(t *testing.T) {
	ts, _ := newTestServer(t)
	projectID, dancerID := createFixtures(t, ts)

	status, data := doJSON(t, ts, http.MethodPost, "/v0/proposals", "acct-owner", map[string]any{
		"project_id": projectID, "dancer_id": dancerID, "role": "lead", "fee": 500000,
	})
	if status != http.StatusCreated {
		t.Fatalf("create proposal: status %d body %s", status, data)
	}
	proposal := decode[ProposalResponse](t, data)
	if proposal.Status != "pending" {
		t.Fatalf("status = %s, want pending", proposal.Status)
	}

	status, data = doJSON(t, ts, http.MethodPost, "/v0/proposals/"+proposal.ID+"/respond", "acct-mia", map[string]any{
		"action": "counter_offer", "fee": 450000, "message": "rehearsals included?",
	})
	if status != http.StatusOK {
		t.Fatalf("counter offer: status %d body %s", status, data)
	}
	proposal = decode[ProposalResponse](t, data)
	if proposal.Status != "negotiating" || proposal.Fee == nil || *proposal.Fee != 450000 {
		t.Fatalf("unexpected proposal after counter: %+v", proposal)
	}

	status, data = doJSON(t, ts, http.MethodPost, "/v0/proposals/"+proposal.ID+"/respond", "acct-owner", map[string]any{
		"action": "accept",
	})
	if status != http.StatusOK {
		t.Fatalf("accept: status %d body %s", status, data)
	}

	// Terminal proposals reject further responses.
	status, data = doJSON(t, ts, http.MethodPost, "/v0/proposals/"+proposal.ID+"/respond", "acct-mia", map[string]any{
		"action": "decline",
	})
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("respond on terminal: status %d body %s", status, data)
	}
	if code := errCode(t, data); code != "invalid_state" {
		t.Fatalf("code = %s, want invalid_state", code)
	}

	status, data = doJSON(t, ts, http.MethodGet, "/v0/proposals/"+proposal.ID+"/history", "acct-owner", nil)
	if status != http.StatusOK {
		t.Fatalf("history: status %d body %s", status, data)
	}
	entries := decode[[]EntryResponse](t, data)
	if len(entries) != 2 {
		t.Fatalf("history length = %d, want 2", len(entries))
	}
}

func TestForbiddenResponses(t *testing.T) {
	ts, _ := newTestServer(t)
	projectID, dancerID := createFixtures(t, ts)

	status, data := doJSON(t, ts, http.MethodPost, "/v0/proposals", "acct-owner", map[string]any{
		"project_id": projectID, "dancer_id": dancerID, "role": "lead",
	})
	if status != http.StatusCreated {
		t.Fatalf("create proposal: status %d body %s", status, data)
	}
	proposal := decode[ProposalResponse](t, data)

	// A stranger cannot respond.
	status, data = doJSON(t, ts, http.MethodPost, "/v0/proposals/"+proposal.ID+"/respond", "acct-stranger", map[string]any{
		"action": "accept",
	})
	if status != http.StatusForbidden {
		t.Fatalf("stranger respond: status %d body %s", status, data)
	}
	if code := errCode(t, data); code != "forbidden" {
		t.Fatalf("code = %s, want forbidden", code)
	}

	// The receiving side cannot cancel.
	status, _ = doJSON(t, ts, http.MethodPost, "/v0/proposals/"+proposal.ID+"/cancel", "acct-mia", nil)
	if status != http.StatusForbidden {
		t.Fatalf("receiver cancel: status %d, want 403", status)
	}

	// Settlement is private to the dancer's controllers.
	status, _ = doJSON(t, ts, http.MethodGet, "/v0/dancers/"+dancerID+"/settlement", "acct-stranger", nil)
	if status != http.StatusForbidden {
		t.Fatalf("stranger settlement: status %d, want 403", status)
	}
	status, _ = doJSON(t, ts, http.MethodGet, "/v0/dancers/"+dancerID+"/settlement", "acct-mgr", nil)
	if status != http.StatusOK {
		t.Fatalf("manager settlement: status %d, want 200", status)
	}
}

func TestNotFoundEnvelope(t *testing.T) {
	ts, _ := newTestServer(t)
	status, data := doJSON(t, ts, http.MethodGet, "/v0/proposals/nope", "acct-owner", nil)
	if status != http.StatusNotFound {
		t.Fatalf("status %d body %s", status, data)
	}
	if code := errCode(t, data); code != "not_found" {
		t.Fatalf("code = %s, want not_found", code)
	}
}

func TestPublicProfileNeedsNoAuth(t *testing.T) {
	ts, _ := newTestServer(t)
	_, dancerID := createFixtures(t, ts)
	status, data := doJSON(t, ts, http.MethodPost, "/v0/dancers/"+dancerID+"/career-entries", "acct-mia", map[string]any{
		"title": "Solo at Winter Gala", "fee": 120000,
	})
	if status != http.StatusCreated {
		t.Fatalf("career entry: status %d body %s", status, data)
	}

	status, data = doJSON(t, ts, http.MethodGet, "/v0/dancers/"+dancerID+"/public-profile", "", nil)
	if status != http.StatusOK {
		t.Fatalf("public profile: status %d body %s", status, data)
	}
	if bytes.Contains(data, []byte("fee")) || bytes.Contains(data, []byte("120000")) {
		t.Fatalf("public profile leaked fee: %s", data)
	}
}

func TestHandleErrorTaxonomy(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid state", engine.InvalidStateError{Entity: "proposal", Status: "accepted", Action: "decline"}, http.StatusUnprocessableEntity, "invalid_state"},
		{"forbidden", engine.ForbiddenError{ActorID: "a", Action: "cancel"}, http.StatusForbidden, "forbidden"},
		{"stale version", repo.ErrConflict, http.StatusConflict, "conflict"},
		{"missing row", repo.ErrNotFound, http.StatusNotFound, "not_found"},
		{"gateway down", errGatewayUnavailable, http.StatusServiceUnavailable, "upstream_unavailable"},
		{"validation", errors.New("title is required"), http.StatusBadRequest, "bad_request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			se := handleError(tc.err)
			if se.GetStatus() != tc.status {
				t.Fatalf("status = %d, want %d", se.GetStatus(), tc.status)
			}
			ae, ok := se.(*apiError)
			if !ok {
				t.Fatalf("unexpected error type %T", se)
			}
			if ae.Body.Code != tc.code {
				t.Fatalf("code = %s, want %s", ae.Body.Code, tc.code)
			}
		})
	}
}
