package validation

// CheckoutRequest is the payload for POST /checkout
type CheckoutRequest struct {
	ProfileID string `json:"profileId" validate:"required,profile_id"`                 // player profile credited on payment
	CloudCode string `json:"cloudCode,omitempty" validate:"omitempty,alphanum,max=32"` // optional cloud save sync code
	Product   string `json:"product" validate:"required,max=64"`                       // must match the configured product
}
