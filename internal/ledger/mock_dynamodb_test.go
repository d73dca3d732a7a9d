package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// memoryDynamo is an in-memory PutItem/GetItem fake keyed by the ledger's
// composite key. It honors the ledger's attribute_not_exists condition.
type memoryDynamo struct {
	mu       sync.Mutex
	items    map[string]map[string]types.AttributeValue
	putCalls int
	putErr   error
	putDelay time.Duration
}

func newMemoryDynamo() *memoryDynamo {
	return &memoryDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func compositeKey(item map[string]types.AttributeValue) (string, error) {
	owner, ok := item[attrOwnerID].(*types.AttributeValueMemberS)
	if !ok {
		return "", errors.New("missing owner_id")
	}
	txn, ok := item[attrTransactionID].(*types.AttributeValueMemberS)
	if !ok {
		return "", errors.New("missing external_transaction_id")
	}
	return owner.Value + "|" + txn.Value, nil
}

func (m *memoryDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	if m.putDelay > 0 {
		time.Sleep(m.putDelay)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	if m.putErr != nil {
		return nil, m.putErr
	}
	k, err := compositeKey(params.Item)
	if err != nil {
		return nil, err
	}
	if params.ConditionExpression != nil && *params.ConditionExpression == createCondition {
		if _, exists := m.items[k]; exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	m.items[k] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *memoryDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, err := compositeKey(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.items[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *memoryDynamo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
