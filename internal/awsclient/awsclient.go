// Package awsclient builds AWS service clients from the shared aws section
// of the project configuration.
package awsclient

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/dwsmith1983/tripwire/pkg/types"
)

// Factory creates service clients sharing one loaded configuration.
type Factory struct {
	cfg      aws.Config
	endpoint string
}

// New loads the default AWS configuration, applying the region and a
// custom endpoint (localstack) when set.
func New(ctx context.Context, c *types.AWSConfig) (*Factory, error) {
	if c == nil {
		c = &types.AWSConfig{}
	}
	var opts []func(*awsconfig.LoadOptions) error
	if c.Region != "" {
		opts = append(opts, awsconfig.WithRegion(c.Region))
	}
	// Local emulators accept any static credentials.
	if c.Endpoint != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &Factory{cfg: cfg, endpoint: c.Endpoint}, nil
}

func (f *Factory) baseEndpoint() *string {
	if f.endpoint == "" {
		return nil
	}
	return aws.String(f.endpoint)
}

// DynamoDB returns a DynamoDB client.
func (f *Factory) DynamoDB() *dynamodb.Client {
	return dynamodb.NewFromConfig(f.cfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = f.baseEndpoint()
	})
}

// SQS returns an SQS client.
func (f *Factory) SQS() *sqs.Client {
	return sqs.NewFromConfig(f.cfg, func(o *sqs.Options) {
		o.BaseEndpoint = f.baseEndpoint()
	})
}

// EventBridge returns an EventBridge client.
func (f *Factory) EventBridge() *eventbridge.Client {
	return eventbridge.NewFromConfig(f.cfg, func(o *eventbridge.Options) {
		o.BaseEndpoint = f.baseEndpoint()
	})
}

// CloudWatchLogs returns a CloudWatch Logs client.
func (f *Factory) CloudWatchLogs() *cloudwatchlogs.Client {
	return cloudwatchlogs.NewFromConfig(f.cfg, func(o *cloudwatchlogs.Options) {
		o.BaseEndpoint = f.baseEndpoint()
	})
}

// SecretsManager returns a Secrets Manager client.
func (f *Factory) SecretsManager() *secretsmanager.Client {
	return secretsmanager.NewFromConfig(f.cfg, func(o *secretsmanager.Options) {
		o.BaseEndpoint = f.baseEndpoint()
	})
}
