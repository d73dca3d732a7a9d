package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/imrishuroy/go-payment-webhook/internal/aws"
	"github.com/imrishuroy/go-payment-webhook/internal/checkout"
	"github.com/imrishuroy/go-payment-webhook/internal/config"
	"github.com/imrishuroy/go-payment-webhook/internal/handlers"
	"github.com/imrishuroy/go-payment-webhook/internal/ledger"
	"github.com/imrishuroy/go-payment-webhook/internal/signature"
	"github.com/imrishuroy/go-payment-webhook/internal/webhook"
	"github.com/imrishuroy/go-payment-webhook/pkg/logger"
)

func setupRouter(cfg *config.Config, clients *aws.AWSClients, log zerolog.Logger) *gin.Engine {
	router := webhook.NewRouter(webhook.Options{
		Verifier:        signature.NewVerifier(cfg.Webhook.SigningSecret, cfg.Webhook.Tolerance),
		Ledger:          ledger.NewStore(clients.DynamoDB, cfg.Ledger.TableName, cfg.Ledger.WriteTimeout),
		Notifier:        aws.NewPublisher(clients.SQS, cfg.Notifications.QueueURL),
		Metrics:         aws.NewMetrics(clients.CloudWatch, cfg.Metrics.Namespace),
		EventType:       cfg.Webhook.EventType,
		ProductCode:     cfg.Payments.ProductCode,
		DefaultAmount:   cfg.Payments.Amount,
		DefaultCurrency: cfg.Payments.Currency,
		Logger:          log.With().Str("component", "webhook").Logger(),
	})

	co := checkout.NewClient(checkout.Options{
		BaseURL:    cfg.Processor.BaseURL,
		APIKey:     cfg.Processor.APIKey,
		Amount:     cfg.Payments.Amount,
		Currency:   cfg.Payments.Currency,
		ReturnURL:  cfg.Processor.ReturnURL,
		CancelURL:  cfg.Processor.CancelURL,
		WebhookURL: cfg.Processor.WebhookURL,
		Timeout:    cfg.Processor.Timeout,
		Logger:     log.With().Str("component", "checkout").Logger(),
	})

	return handlers.NewEngine(handlers.HandlerConfig{
		Webhook:     router,
		Checkout:    co,
		ProductCode: cfg.Payments.ProductCode,
		Logger:      log,
	})
}

func main() {
	boot := logger.New()

	cfg, err := config.Load()
	if err != nil {
		boot.Fatal().Err(err).Msg("failed to load config")
	}
	log := logger.NewWithConfig(cfg.Log)
	log.Info().Object("config", cfg).Msg("config loaded")

	// keep serving: unconfigured endpoints answer 500 until the settings are fixed
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("configuration incomplete; affected endpoints will fail")
	}

	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init aws clients")
	}

	gin.SetMode(gin.ReleaseMode)
	r := setupRouter(cfg, clients, log)

	if cfg.Server.RunLocal {
		runLocal(r, cfg.Server.Addr, log)
		return
	}

	adapter := ginadapter.New(r)
	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}

func runLocal(r *gin.Engine, addr string, log zerolog.Logger) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("running local server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("local server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}
