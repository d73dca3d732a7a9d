package ledger

import "time"

// StatusSucceeded is the only status the receiver writes.
const StatusSucceeded = "succeeded"

// Record is a settled payment. The pair (owner_id, external_transaction_id)
// is the table's composite primary key and is written at most once.
type Record struct {
	OwnerID               string    `dynamodbav:"owner_id"`                // PK
	ExternalTransactionID string    `dynamodbav:"external_transaction_id"` // SK
	Status                string    `dynamodbav:"status"`
	ProductCode           string    `dynamodbav:"product_code"`
	CloudCode             string    `dynamodbav:"cloud_code,omitempty"`
	Amount                int64     `dynamodbav:"amount"` // minor units
	Currency              string    `dynamodbav:"currency"`
	ProviderPaymentID     string    `dynamodbav:"provider_payment_id,omitempty"`
	DeliveryID            string    `dynamodbav:"delivery_id,omitempty"` // webhook-id of the first accepted delivery
	RecordedAt            time.Time `dynamodbav:"recorded_at"`
}
