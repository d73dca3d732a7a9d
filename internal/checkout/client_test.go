package checkout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions(baseURL string) Options {
	return Options{
		BaseURL:    baseURL,
		APIKey:     "sk_test_123",
		Amount:     499,
		Currency:   "USD",
		ReturnURL:  "https://game.example/paid",
		CancelURL:  "https://game.example/cancel",
		WebhookURL: "https://api.example/webhooks/payments",
		Logger:     zerolog.Nop(),
	}
}

func TestCreateSession(t *testing.T) {
	var got SessionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/checkouts", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"session_id":"cs_1","checkout_url":"https://pay.example/cs_1"}`))
	}))
	defer srv.Close()

	c := NewClient(testOptions(srv.URL + "/"))
	c.newKey = func() string { return "key-1" }

	session, err := c.CreateSession(context.Background(), Intent{ProfileID: "profile-1", CloudCode: "CLOUD-1", Product: "jungle-pass"})
	require.NoError(t, err)
	assert.Equal(t, &Session{ID: "cs_1", URL: "https://pay.example/cs_1"}, session)

	assert.Equal(t, SessionRequest{
		Amount:     499,
		Currency:   "USD",
		ReturnURL:  "https://game.example/paid",
		CancelURL:  "https://game.example/cancel",
		WebhookURL: "https://api.example/webhooks/payments",
		Metadata:   Metadata{ProfileID: "profile-1", CloudCode: "CLOUD-1", Product: "jungle-pass"},
	}, got)
}

func TestMetadataWireNames(t *testing.T) {
	c := NewClient(testOptions("http://unused"))
	raw, err := json.Marshal(c.BuildRequest(Intent{ProfileID: "p", Product: "jungle-pass"}))
	require.NoError(t, err)

	var wire map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &wire))
	assert.Equal(t, map[string]interface{}{"profileId": "p", "cloudCode": "", "product": "jungle-pass"}, wire["metadata"])
}

func TestCreateSession_Errors(t *testing.T) {
	rejecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	}))
	defer rejecting.Close()

	_, err := NewClient(testOptions(rejecting.URL)).CreateSession(context.Background(), Intent{ProfileID: "p", Product: "jungle-pass"})
	assert.ErrorIs(t, err, ErrProcessor)

	noURL := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"session_id":"cs_2"}`))
	}))
	defer noURL.Close()

	_, err = NewClient(testOptions(noURL.URL)).CreateSession(context.Background(), Intent{ProfileID: "p", Product: "jungle-pass"})
	assert.ErrorIs(t, err, ErrProcessor)

	opts := testOptions(noURL.URL)
	opts.APIKey = ""
	_, err = NewClient(opts).CreateSession(context.Background(), Intent{ProfileID: "p", Product: "jungle-pass"})
	assert.ErrorIs(t, err, ErrMissingCredential)
}
