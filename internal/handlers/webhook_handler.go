package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-payment-webhook/internal/webhook"
)

const defaultMaxBodyBytes = 1 << 20

// RegisterWebhookRoutes mounts the payment webhook receiver. Every method is
// routed so non-POST probes get the receiver's 405 instead of a 404.
func RegisterWebhookRoutes(r *gin.Engine, cfg HandlerConfig) {
	limit := cfg.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}

	r.Any("/webhooks/payments", func(c *gin.Context) {
		var body []byte
		if c.Request.Method == http.MethodPost {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
			raw, err := c.GetRawData()
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "body_too_large"})
					return
				}
				c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable_body"})
				return
			}
			body = raw
		}

		resp := cfg.Webhook.Handle(c.Request.Context(), webhook.Request{
			Method: c.Request.Method,
			Header: c.Request.Header,
			Body:   body,
		})
		if resp.Status == http.StatusMethodNotAllowed {
			c.Header("Allow", http.MethodPost)
		}
		c.JSON(resp.Status, resp.Body)
	})
}
