package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-payment-webhook/internal/checkout"
	"github.com/imrishuroy/go-payment-webhook/internal/ledger"
	"github.com/imrishuroy/go-payment-webhook/internal/signature"
	"github.com/imrishuroy/go-payment-webhook/internal/webhook"
)

var testSecret = signature.SecretPrefix + base64.StdEncoding.EncodeToString([]byte("handler-test-key"))

type memLedger struct {
	mu   sync.Mutex
	recs map[string]ledger.Record
}

func (m *memLedger) RecordIfAbsent(_ context.Context, owner, txn string, rec ledger.Record) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recs == nil {
		m.recs = map[string]ledger.Record{}
	}
	k := owner + "|" + txn
	if _, ok := m.recs[k]; ok {
		return false, nil
	}
	m.recs[k] = rec
	return true, nil
}

type stubCheckout struct {
	err  error
	seen checkout.Intent
}

func (s *stubCheckout) CreateSession(_ context.Context, in checkout.Intent) (*checkout.Session, error) {
	s.seen = in
	if s.err != nil {
		return nil, s.err
	}
	return &checkout.Session{ID: "cs_1", URL: "https://pay.example/cs_1"}, nil
}

func newTestEngine(t *testing.T, led *memLedger, co SessionCreator) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := webhook.NewRouter(webhook.Options{
		Verifier:        signature.NewVerifier(testSecret, 0),
		Ledger:          led,
		EventType:       "payment.succeeded",
		ProductCode:     "jungle-pass",
		DefaultAmount:   499,
		DefaultCurrency: "USD",
		Logger:          zerolog.Nop(),
	})
	return NewEngine(HandlerConfig{
		Webhook:     router,
		Checkout:    co,
		ProductCode: "jungle-pass",
		Logger:      zerolog.Nop(),
	})
}

func signedDelivery(t *testing.T, id, body string) *http.Request {
	t.Helper()
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig, ok := signature.Sign([]byte(body), id, ts, testSecret)
	require.True(t, ok)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhook.HeaderID, id)
	req.Header.Set(webhook.HeaderTimestamp, ts)
	req.Header.Set(webhook.HeaderSignature, sig)
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

const paidBody = `{"type":"payment.succeeded","data":{"payment_id":"pay_77","total_amount":499,"currency":"USD","metadata":{"profileId":"p-1","product":"jungle-pass"}}}`

func TestWebhook_RecordsThenReportsDuplicate(t *testing.T) {
	led := &memLedger{}
	r := newTestEngine(t, led, &stubCheckout{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedDelivery(t, "msg_1", paidBody))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"received": true}, decode(t, w))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, signedDelivery(t, "msg_1", paidBody))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["duplicate"])

	assert.Len(t, led.recs, 1)
	assert.Equal(t, int64(499), led.recs["p-1|pay_77"].Amount)
}

func TestWebhook_BadSignatureIsUnauthorized(t *testing.T) {
	led := &memLedger{}
	r := newTestEngine(t, led, &stubCheckout{})

	req := signedDelivery(t, "msg_2", paidBody)
	req.Header.Set(webhook.HeaderSignature, "v1,AAAA")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid_signature", decode(t, w)["error"])
	assert.Empty(t, led.recs)
}

func TestWebhook_NonPostIsMethodNotAllowed(t *testing.T) {
	r := newTestEngine(t, &memLedger{}, &stubCheckout{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhooks/payments", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, http.MethodPost, w.Header().Get("Allow"))
}

func TestWebhook_OversizedBodyRejected(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := webhook.NewRouter(webhook.Options{
		Verifier: signature.NewVerifier(testSecret, 0),
		Ledger:   &memLedger{},
		Logger:   zerolog.Nop(),
	})
	r := NewEngine(HandlerConfig{Webhook: router, Checkout: &stubCheckout{}, MaxBodyBytes: 16, Logger: zerolog.Nop()})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedDelivery(t, "msg_3", paidBody))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestHealth(t *testing.T) {
	r := newTestEngine(t, &memLedger{}, &stubCheckout{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func checkoutRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestCheckout_CreatesSession(t *testing.T) {
	co := &stubCheckout{}
	r := newTestEngine(t, &memLedger{}, co)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, checkoutRequest(`{"profileId":"p-1","cloudCode":"ABC123","product":"jungle-pass"}`))

	require.Equal(t, http.StatusCreated, w.Code)
	out := decode(t, w)
	assert.Equal(t, "cs_1", out["session_id"])
	assert.Equal(t, "https://pay.example/cs_1", out["checkout_url"])
	assert.Equal(t, checkout.Intent{ProfileID: "p-1", CloudCode: "ABC123", Product: "jungle-pass"}, co.seen)
}

func TestCheckout_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{"invalid json", `{`, nil, http.StatusBadRequest, "invalid_request_body"},
		{"missing profile", `{"product":"jungle-pass"}`, nil, http.StatusBadRequest, "validation_failed"},
		{"other product", `{"profileId":"p-1","product":"river-pass"}`, nil, http.StatusBadRequest, "unknown_product"},
		{"no credential", `{"profileId":"p-1","product":"jungle-pass"}`, checkout.ErrMissingCredential, http.StatusInternalServerError, "server_misconfigured"},
		{"processor down", `{"profileId":"p-1","product":"jungle-pass"}`, checkout.ErrProcessor, http.StatusBadGateway, "checkout_unavailable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestEngine(t, &memLedger{}, &stubCheckout{err: tc.err})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, checkoutRequest(tc.body))

			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, decode(t, w)["error"])
		})
	}
}
