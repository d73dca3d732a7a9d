package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metrics publishes one count per webhook outcome under a CloudWatch namespace.
type Metrics struct {
	client    CloudWatchAPI
	namespace string
}

// NewMetrics returns a recorder. An empty namespace disables publishing.
func NewMetrics(client CloudWatchAPI, namespace string) *Metrics {
	return &Metrics{client: client, namespace: namespace}
}

func (m *Metrics) enabled() bool {
	return m != nil && m.client != nil && m.namespace != ""
}

// Count records a single occurrence of outcome.
func (m *Metrics) Count(ctx context.Context, outcome string) error {
	if !m.enabled() {
		return nil
	}
	one := 1.0
	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: &m.namespace,
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: awsString("WebhookOutcome"),
				Dimensions: []cwtypes.Dimension{
					{Name: awsString("Outcome"), Value: awsString(outcome)},
				},
				Unit:  cwtypes.StandardUnitCount,
				Value: &one,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}
	return nil
}
