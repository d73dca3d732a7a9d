// Package checkout creates hosted payment sessions at the processor. The
// metadata it sends is echoed back verbatim in later webhook deliveries and
// is what the receiver correlates on.
package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const sessionPath = "/checkouts"

var (
	ErrMissingCredential = errors.New("checkout: processor credential is not configured")
	ErrProcessor         = errors.New("checkout: processor rejected the request")
)

// Intent is what the caller wants to buy.
type Intent struct {
	ProfileID string
	CloudCode string
	Product   string
}

// Metadata travels to the processor and back unchanged.
type Metadata struct {
	ProfileID string `json:"profileId"`
	CloudCode string `json:"cloudCode"`
	Product   string `json:"product"`
}

// SessionRequest is the body of the session-creation call.
type SessionRequest struct {
	Amount     int64    `json:"amount"`
	Currency   string   `json:"currency"`
	ReturnURL  string   `json:"return_url"`
	CancelURL  string   `json:"cancel_url"`
	WebhookURL string   `json:"webhook_url"`
	Metadata   Metadata `json:"metadata"`
}

// Session is the processor's answer.
type Session struct {
	ID  string `json:"session_id"`
	URL string `json:"checkout_url"`
}

type Options struct {
	BaseURL    string
	APIKey     string
	Amount     int64
	Currency   string
	ReturnURL  string
	CancelURL  string
	WebhookURL string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

type Client struct {
	opts       Options
	httpClient *http.Client
	newKey     func() string
}

func NewClient(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		opts:       opts,
		httpClient: hc,
		newKey:     uuid.NewString,
	}
}

// BuildRequest maps an intent onto the processor payload.
func (c *Client) BuildRequest(in Intent) SessionRequest {
	return SessionRequest{
		Amount:     c.opts.Amount,
		Currency:   c.opts.Currency,
		ReturnURL:  c.opts.ReturnURL,
		CancelURL:  c.opts.CancelURL,
		WebhookURL: c.opts.WebhookURL,
		Metadata: Metadata{
			ProfileID: in.ProfileID,
			CloudCode: in.CloudCode,
			Product:   in.Product,
		},
	}
}

// CreateSession posts a new checkout session. Each call carries a fresh
// Idempotency-Key so a transport-level retry by the caller cannot open two
// sessions for the same attempt.
func (c *Client) CreateSession(ctx context.Context, in Intent) (*Session, error) {
	if c.opts.APIKey == "" {
		return nil, ErrMissingCredential
	}

	payload, err := json.Marshal(c.BuildRequest(in))
	if err != nil {
		return nil, fmt.Errorf("marshal session request: %w", err)
	}

	url := strings.TrimSuffix(c.opts.BaseURL, "/") + sessionPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build session request: %w", err)
	}
	key := c.newKey()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	req.Header.Set("Idempotency-Key", key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send session request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read session response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.opts.Logger.Error().
			Int("status", resp.StatusCode).
			Str("idempotency_key", key).
			Str("profile_id", in.ProfileID).
			Msg("processor rejected checkout session")
		return nil, fmt.Errorf("%w: status %d", ErrProcessor, resp.StatusCode)
	}

	var session Session
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("decode session response: %w", err)
	}
	if session.URL == "" {
		return nil, fmt.Errorf("%w: response without checkout url", ErrProcessor)
	}

	c.opts.Logger.Info().
		Str("session_id", session.ID).
		Str("profile_id", in.ProfileID).
		Str("product", in.Product).
		Msg("checkout session created")
	return &session, nil
}
