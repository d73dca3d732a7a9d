package webhook

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/imrishuroy/go-payment-webhook/internal/aws"
	"github.com/imrishuroy/go-payment-webhook/internal/ledger"
	"github.com/imrishuroy/go-payment-webhook/internal/signature"
)

// Delivery headers.
const (
	HeaderID        = "webhook-id"
	HeaderTimestamp = "webhook-timestamp"
	HeaderSignature = "webhook-signature"
)

// Outcomes reported to Metrics.
const (
	OutcomeMethodNotAllowed = "method_not_allowed"
	OutcomeMisconfigured    = "misconfigured"
	OutcomeUnauthenticated  = "unauthenticated"
	OutcomeMalformed        = "malformed"
	OutcomeIgnored          = "ignored"
	OutcomeRecorded         = "recorded"
	OutcomeDuplicate        = "duplicate"
	OutcomeFailed           = "failed"
	OutcomeNotifyFailed     = "notify_failed"
)

var (
	ErrUnauthenticated = errors.New("webhook: unauthenticated delivery")
	ErrMisconfigured   = errors.New("webhook: signing secret not configured")
)

// Ledger is the write-once payment store.
type Ledger interface {
	RecordIfAbsent(ctx context.Context, ownerID, externalTransactionID string, rec ledger.Record) (bool, error)
}

// Notifier announces freshly recorded payments.
type Notifier interface {
	PublishPaymentRecorded(ctx context.Context, n aws.PaymentRecorded) error
}

// Metrics counts routed outcomes.
type Metrics interface {
	Count(ctx context.Context, outcome string) error
}

// Request is one inbound delivery.
type Request struct {
	Method string
	Header http.Header
	Body   []byte
}

// Response is what the receiver answers. Body is JSON-encodable.
type Response struct {
	Status int
	Body   map[string]interface{}
}

// Options configures a Router. Verifier and Ledger are required; Notifier
// and Metrics may be nil.
type Options struct {
	Verifier        *signature.Verifier
	Ledger          Ledger
	Notifier        Notifier
	Metrics         Metrics
	EventType       string
	ProductCode     string
	DefaultAmount   int64
	DefaultCurrency string

	// CallTimeout bounds each notification and metric call. Zero means DefaultCallTimeout.
	CallTimeout time.Duration
	Logger      zerolog.Logger
}

// DefaultCallTimeout bounds best-effort calls made on the response path.
const DefaultCallTimeout = 2 * time.Second

// Router authenticates deliveries and records successful payments once.
type Router struct {
	opts    Options
	nowFunc func() time.Time
}

func NewRouter(opts Options) *Router {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	return &Router{opts: opts, nowFunc: time.Now}
}

// Handle runs a delivery through the pipeline and returns the response to
// send. Failures before authentication are 4xx and final; failures after it
// are 5xx so the processor redelivers.
func (r *Router) Handle(ctx context.Context, req Request) (resp Response) {
	log := r.opts.Logger.With().Str("delivery_id", req.Header.Get(HeaderID)).Logger()

	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Msg("webhook processing panicked")
			r.count(ctx, log, OutcomeFailed)
			resp = errorResponse(http.StatusInternalServerError, "processing_failed")
		}
	}()

	if req.Method != http.MethodPost {
		r.count(ctx, log, OutcomeMethodNotAllowed)
		return errorResponse(http.StatusMethodNotAllowed, "method_not_allowed")
	}

	if !r.opts.Verifier.Configured() || r.opts.Ledger == nil {
		log.Error().Err(ErrMisconfigured).Msg("webhook receiver is not configured; deliveries will fail until fixed")
		r.count(ctx, log, OutcomeMisconfigured)
		return errorResponse(http.StatusInternalServerError, "server_misconfigured")
	}

	id := req.Header.Get(HeaderID)
	ts := req.Header.Get(HeaderTimestamp)
	sig := req.Header.Get(HeaderSignature)
	if id == "" || ts == "" || sig == "" {
		log.Warn().Err(ErrUnauthenticated).Msg("missing delivery headers")
		r.count(ctx, log, OutcomeUnauthenticated)
		return errorResponse(http.StatusUnauthorized, "missing_signature_headers")
	}

	// the raw bytes are what is signed; nothing parses them before this check
	if !r.opts.Verifier.Verify(req.Body, id, ts, sig) {
		log.Warn().Err(ErrUnauthenticated).Str("timestamp", ts).Msg("signature verification failed")
		r.count(ctx, log, OutcomeUnauthenticated)
		return errorResponse(http.StatusUnauthorized, "invalid_signature")
	}

	env, err := ParseEnvelope(req.Body)
	if err != nil {
		log.Error().Err(err).Msg("authenticated payload could not be parsed")
		r.count(ctx, log, OutcomeMalformed)
		return errorResponse(http.StatusInternalServerError, "processing_failed")
	}

	if env.Type != r.opts.EventType {
		log.Debug().Str("event_type", env.Type).Msg("ignoring event type")
		r.count(ctx, log, OutcomeIgnored)
		return ignored()
	}

	ev, extractErr := env.Extract()
	log = log.With().Str("owner_id", ev.OwnerID).Str("product", ev.ProductCode).Logger()
	if ev.OwnerID == "" || ev.ProductCode != r.opts.ProductCode {
		log.Info().Msg("payment event does not concern this product; ignoring")
		r.count(ctx, log, OutcomeIgnored)
		return ignored()
	}
	if extractErr != nil {
		// never substitute the default for an amount the processor did send
		log.Error().Err(extractErr).Msg("payment event carries an unusable amount")
		r.count(ctx, log, OutcomeMalformed)
		return errorResponse(http.StatusInternalServerError, "processing_failed")
	}

	rec := r.buildRecord(ev, id)
	written, err := r.opts.Ledger.RecordIfAbsent(ctx, ev.OwnerID, rec.ExternalTransactionID, rec)
	if err != nil {
		log.Error().Err(err).Str("transaction_id", rec.ExternalTransactionID).Msg("ledger write failed")
		r.count(ctx, log, OutcomeFailed)
		return errorResponse(http.StatusInternalServerError, "processing_failed")
	}

	if !written {
		log.Info().Str("transaction_id", rec.ExternalTransactionID).Msg("duplicate delivery; payment already recorded")
		r.count(ctx, log, OutcomeDuplicate)
		return Response{Status: http.StatusOK, Body: map[string]interface{}{"received": true, "duplicate": true}}
	}

	log.Info().
		Str("transaction_id", rec.ExternalTransactionID).
		Int64("amount", rec.Amount).
		Str("currency", rec.Currency).
		Msg("payment recorded")
	r.count(ctx, log, OutcomeRecorded)
	r.notify(ctx, log, rec)

	return Response{Status: http.StatusOK, Body: map[string]interface{}{"received": true}}
}

// buildRecord applies the configured amount and currency when the payload
// omits them. A payload without a transaction id falls back to the delivery
// id, which the processor keeps stable across redeliveries.
func (r *Router) buildRecord(ev PaymentEvent, deliveryID string) ledger.Record {
	rec := ledger.Record{
		OwnerID:               ev.OwnerID,
		ExternalTransactionID: ev.ExternalTransactionID,
		Status:                ledger.StatusSucceeded,
		ProductCode:           ev.ProductCode,
		CloudCode:             ev.CloudCode,
		Amount:                ev.Amount,
		Currency:              ev.Currency,
		ProviderPaymentID:     ev.ProviderPaymentID,
		DeliveryID:            deliveryID,
		RecordedAt:            r.nowFunc().UTC(),
	}
	if rec.ExternalTransactionID == "" {
		rec.ExternalTransactionID = deliveryID
	}
	if !ev.HasAmount {
		rec.Amount = r.opts.DefaultAmount
	}
	if rec.Currency == "" {
		rec.Currency = r.opts.DefaultCurrency
	}
	return rec
}

func (r *Router) notify(ctx context.Context, log zerolog.Logger, rec ledger.Record) {
	if r.opts.Notifier == nil {
		return
	}
	callCtx, cancel := r.callContext(ctx)
	defer cancel()
	err := r.opts.Notifier.PublishPaymentRecorded(callCtx, aws.PaymentRecorded{
		OwnerID:               rec.OwnerID,
		ExternalTransactionID: rec.ExternalTransactionID,
		ProductCode:           rec.ProductCode,
		CloudCode:             rec.CloudCode,
		Amount:                rec.Amount,
		Currency:              rec.Currency,
		DeliveryID:            rec.DeliveryID,
		RecordedAt:            rec.RecordedAt,
	})
	if err != nil {
		// the ledger write is committed; redelivery would only hit the duplicate path
		log.Warn().Err(err).Msg("payment notification not published")
		r.count(ctx, log, OutcomeNotifyFailed)
	}
}

func (r *Router) count(ctx context.Context, log zerolog.Logger, outcome string) {
	if r.opts.Metrics == nil {
		return
	}
	callCtx, cancel := r.callContext(ctx)
	defer cancel()
	if err := r.opts.Metrics.Count(callCtx, outcome); err != nil {
		log.Debug().Err(err).Str("outcome", outcome).Msg("metric not recorded")
	}
}

// callContext outlives a disconnecting caller but not CallTimeout.
func (r *Router) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), r.opts.CallTimeout)
}

func ignored() Response {
	return Response{Status: http.StatusOK, Body: map[string]interface{}{"received": true, "ignored": true}}
}

func errorResponse(status int, code string) Response {
	return Response{Status: status, Body: map[string]interface{}{"error": code}}
}
