package main

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"

	"github.com/imrishuroy/go-payment-webhook/internal/aws"
	"github.com/imrishuroy/go-payment-webhook/internal/ledger"
)

// Outcomes reported per consumed notification.
const (
	OutcomeConfirmed = "notification_confirmed"
	OutcomeOrphaned  = "notification_orphaned"
	OutcomePoison    = "notification_poison"
	OutcomeRetry     = "notification_retry"
)

// LedgerReader is the read side of the payment ledger.
type LedgerReader interface {
	Get(ctx context.Context, ownerID, externalTransactionID string) (*ledger.Record, error)
}

type Counter interface {
	Count(ctx context.Context, outcome string) error
}

// Processor confirms payment.recorded notifications against the ledger before
// the entitlement is synced downstream.
type Processor struct {
	ledger  LedgerReader
	metrics Counter
	log     zerolog.Logger
}

func NewProcessor(l LedgerReader, m Counter, log zerolog.Logger) *Processor {
	return &Processor{ledger: l, metrics: m, log: log}
}

// Handle processes an SQS batch. Only messages whose ledger read failed are
// returned as batch item failures; everything else is acknowledged.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, msg := range ev.Records {
		if retry := p.processMessage(ctx, msg); retry {
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: msg.MessageId,
			})
		}
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, msg events.SQSMessage) (retry bool) {
	log := p.log.With().Str("message_id", msg.MessageId).Logger()

	var n aws.PaymentRecorded
	if err := json.Unmarshal([]byte(msg.Body), &n); err != nil || n.OwnerID == "" || n.ExternalTransactionID == "" {
		// redelivery cannot fix a bad body
		log.Error().Err(err).Msg("dropping undecodable payment notification")
		p.count(ctx, log, OutcomePoison)
		return false
	}
	log = log.With().
		Str("owner_id", n.OwnerID).
		Str("transaction_id", n.ExternalTransactionID).
		Logger()

	rec, err := p.ledger.Get(ctx, n.OwnerID, n.ExternalTransactionID)
	if err != nil {
		log.Warn().Err(err).Msg("ledger read failed; message will be redelivered")
		p.count(ctx, log, OutcomeRetry)
		return true
	}
	if rec == nil {
		log.Warn().Msg("notification has no ledger record; dropping")
		p.count(ctx, log, OutcomeOrphaned)
		return false
	}

	log.Info().
		Str("product", rec.ProductCode).
		Str("cloud_code", rec.CloudCode).
		Int64("amount", rec.Amount).
		Str("currency", rec.Currency).
		Msg("payment confirmed for entitlement sync")
	p.count(ctx, log, OutcomeConfirmed)
	return false
}

func (p *Processor) count(ctx context.Context, log zerolog.Logger, outcome string) {
	if p.metrics == nil {
		return
	}
	if err := p.metrics.Count(ctx, outcome); err != nil {
		log.Debug().Err(err).Str("outcome", outcome).Msg("metric not recorded")
	}
}
