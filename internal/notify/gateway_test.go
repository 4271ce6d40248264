package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPGatewayUnconfiguredDropsSilently(t *testing.T) {
	g := &HTTPGateway{}
	ok, err := g.Send(context.Background(), Notification{RecipientID: "acct-mia"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHTTPGatewaySend(t *testing.T) {
	var gotSecret string
	var gotBody Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSecret = r.Header.Get("X-Stagelink-Secret")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	g := &HTTPGateway{URL: srv.URL, Secret: "hush", Client: srv.Client()}
	ok, err := g.Send(context.Background(), Notification{RecipientID: "acct-mia", Title: "New proposal"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hush", gotSecret)
	assert.Equal(t, "acct-mia", gotBody.RecipientID)
}

func TestHTTPGatewayErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := &HTTPGateway{URL: srv.URL, Client: srv.Client()}
	ok, err := g.Send(context.Background(), Notification{RecipientID: "acct-mia"})
	assert.False(t, ok)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestHTTPGatewayConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	g := &HTTPGateway{URL: srv.URL}
	ok, err := g.Send(context.Background(), Notification{RecipientID: "acct-mia"})
	assert.False(t, ok)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway unavailable")
}
