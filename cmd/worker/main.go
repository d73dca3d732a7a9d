package main

import (
	"context"
	"errors"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/imrishuroy/go-payment-webhook/internal/aws"
	"github.com/imrishuroy/go-payment-webhook/internal/config"
	"github.com/imrishuroy/go-payment-webhook/internal/ledger"
	"github.com/imrishuroy/go-payment-webhook/pkg/logger"
)

var errLocalRetry = errors.New("worker: local message reported for redelivery")

func main() {
	boot := logger.New()

	cfg, err := config.Load()
	if err != nil {
		boot.Fatal().Err(err).Msg("failed to load config")
	}
	log := logger.NewWithConfig(cfg.Log).With().Str("component", "worker").Logger()

	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init aws clients")
	}

	p := NewProcessor(
		ledger.NewStore(clients.DynamoDB, cfg.Ledger.TableName, cfg.Ledger.WriteTimeout),
		aws.NewMetrics(clients.CloudWatch, cfg.Metrics.Namespace),
		log,
	)

	// RUN_LOCAL replays a single message from LOCAL_SQS_BODY
	if cfg.Server.RunLocal {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			body = `{"owner_id":"local-profile","external_transaction_id":"local-txn"}`
		}
		if err := runLocal(context.Background(), p, body); err != nil {
			log.Fatal().Err(err).Msg("local message failed")
		}
		return
	}

	lambda.Start(p.Handle)
}

func runLocal(ctx context.Context, p *Processor, body string) error {
	resp, err := p.Handle(ctx, events.SQSEvent{
		Records: []events.SQSMessage{{MessageId: "local-1", Body: body}},
	})
	if err != nil {
		return err
	}
	if len(resp.BatchItemFailures) > 0 {
		return errLocalRetry
	}
	return nil
}
