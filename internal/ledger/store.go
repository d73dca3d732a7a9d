package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/go-payment-webhook/internal/aws"
)

const (
	attrOwnerID       = "owner_id"
	attrTransactionID = "external_transaction_id"

	// DefaultWriteTimeout bounds a single conditional put.
	DefaultWriteTimeout = 5 * time.Second
)

var (
	// ErrInvalidKey is returned when either half of the composite key is empty.
	ErrInvalidKey = errors.New("ledger: owner id and external transaction id are required")

	createCondition = fmt.Sprintf("attribute_not_exists(%s) AND attribute_not_exists(%s)", attrOwnerID, attrTransactionID)
)

// Store encapsulates ledger operations against DynamoDB.
type Store struct {
	client       aws.DynamoDBAPI
	tableName    string
	writeTimeout time.Duration
	nowFunc      func() time.Time
}

// NewStore returns a Store bound to tableName. A non-positive writeTimeout
// means DefaultWriteTimeout.
func NewStore(client aws.DynamoDBAPI, tableName string, writeTimeout time.Duration) *Store {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &Store{
		client:       client,
		tableName:    tableName,
		writeTimeout: writeTimeout,
		nowFunc:      time.Now,
	}
}

// RecordIfAbsent stores rec under (ownerID, externalTransactionID) unless a
// record already exists there.
// Returns (true, nil) if this call created the record.
// Returns (false, nil) if the key was already taken; nothing is modified.
// Returns (false, err) on any other failure.
//
// The existence check and the write are one conditional PutItem, so concurrent
// callers on the same key see exactly one winner. The put runs detached from
// ctx cancellation: once issued it completes or fails as a whole.
func (s *Store) RecordIfAbsent(ctx context.Context, ownerID, externalTransactionID string, rec Record) (bool, error) {
	if ownerID == "" || externalTransactionID == "" {
		return false, ErrInvalidKey
	}

	rec.OwnerID = ownerID
	rec.ExternalTransactionID = externalTransactionID
	if rec.Status == "" {
		rec.Status = StatusSucceeded
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = s.nowFunc().UTC()
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return false, fmt.Errorf("marshal record: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancel()

	_, err = s.client.PutItem(writeCtx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: &createCondition,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("put item: %w", err)
	}
	return true, nil
}

// Get retrieves a record by its composite key. If not found, returns (nil, nil).
func (s *Store) Get(ctx context.Context, ownerID, externalTransactionID string) (*Record, error) {
	if ownerID == "" || externalTransactionID == "" {
		return nil, ErrInvalidKey
	}
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            key(ownerID, externalTransactionID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return &rec, nil
}

func key(ownerID, externalTransactionID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrOwnerID:       &types.AttributeValueMemberS{Value: ownerID},
		attrTransactionID: &types.AttributeValueMemberS{Value: externalTransactionID},
	}
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException"
}

func awsBool(b bool) *bool { return &b }
