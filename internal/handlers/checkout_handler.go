package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-payment-webhook/internal/checkout"
	"github.com/imrishuroy/go-payment-webhook/internal/validation"
)

// RegisterCheckoutRoutes mounts POST /checkout.
func RegisterCheckoutRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()

	r.POST("/checkout", func(c *gin.Context) {
		var req validation.CheckoutRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			// BindAndValidate already wrote a 400
			return
		}
		if req.Product != cfg.ProductCode {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_product"})
			return
		}

		session, err := cfg.Checkout.CreateSession(c.Request.Context(), checkout.Intent{
			ProfileID: req.ProfileID,
			CloudCode: req.CloudCode,
			Product:   req.Product,
		})
		if err != nil {
			if errors.Is(err, checkout.ErrMissingCredential) {
				cfg.Logger.Error().Err(err).Msg("checkout requested but processor credential is missing")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "server_misconfigured"})
				return
			}
			cfg.Logger.Error().Err(err).Str("profile_id", req.ProfileID).Msg("checkout session failed")
			c.JSON(http.StatusBadGateway, gin.H{"error": "checkout_unavailable"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"session_id": session.ID, "checkout_url": session.URL})
	})
}
