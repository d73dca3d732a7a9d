package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// PaymentRecorded announces a freshly credited payment to downstream consumers.
type PaymentRecorded struct {
	OwnerID               string    `json:"owner_id"`
	ExternalTransactionID string    `json:"external_transaction_id"`
	ProductCode           string    `json:"product_code"`
	CloudCode             string    `json:"cloud_code,omitempty"`
	Amount                int64     `json:"amount"`
	Currency              string    `json:"currency"`
	DeliveryID            string    `json:"delivery_id"`
	RecordedAt            time.Time `json:"recorded_at"`
}

// Publisher wraps an SQS client and a queue URL.
type Publisher struct {
	SQS      SQSAPI
	QueueURL string
}

// NewPublisher returns a Publisher bound to a queue URL.
func NewPublisher(sqsClient SQSAPI, queueURL string) *Publisher {
	return &Publisher{
		SQS:      sqsClient,
		QueueURL: queueURL,
	}
}

// Enabled reports whether a queue is configured. A nil Publisher is disabled.
func (p *Publisher) Enabled() bool {
	return p != nil && p.SQS != nil && p.QueueURL != ""
}

// PublishPaymentRecorded sends the notification as a JSON message. Routing
// fields are duplicated as string message attributes for subscription filters.
func (p *Publisher) PublishPaymentRecorded(ctx context.Context, n PaymentRecorded) error {
	if !p.Enabled() {
		return nil
	}

	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal payment notification: %w", err)
	}

	attrs := map[string]string{
		"event_type":  "payment.recorded",
		"owner_id":    n.OwnerID,
		"product":     n.ProductCode,
		"delivery_id": n.DeliveryID,
	}
	msgAttrs := make(map[string]sqstypes.MessageAttributeValue, len(attrs))
	for k, v := range attrs {
		if v == "" {
			continue
		}
		msgAttrs[k] = sqstypes.MessageAttributeValue{
			DataType:    awsString("String"),
			StringValue: awsString(v),
		}
	}

	_, err = p.SQS.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          &p.QueueURL,
		MessageBody:       awsString(string(body)),
		MessageAttributes: msgAttrs,
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func awsString(s string) *string { return &s }
