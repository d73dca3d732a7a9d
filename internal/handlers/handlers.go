package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/imrishuroy/go-payment-webhook/internal/checkout"
	"github.com/imrishuroy/go-payment-webhook/internal/webhook"
)

// SessionCreator opens checkout sessions at the processor.
type SessionCreator interface {
	CreateSession(ctx context.Context, in checkout.Intent) (*checkout.Session, error)
}

// HandlerConfig groups dependencies for the HTTP handlers.
type HandlerConfig struct {
	Webhook      *webhook.Router
	Checkout     SessionCreator
	ProductCode  string
	MaxBodyBytes int64
	Logger       zerolog.Logger
}

// NewEngine builds the gin engine with middleware and every route registered.
func NewEngine(cfg HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), AccessLog(cfg.Logger), gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	RegisterWebhookRoutes(r, cfg)
	RegisterCheckoutRoutes(r, cfg)
	return r
}
