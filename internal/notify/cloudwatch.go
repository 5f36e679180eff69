package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"

	"github.com/dwsmith1983/tripwire/pkg/types"
)

// CloudWatchLogsAPI is the subset of the CloudWatch Logs client used here.
type CloudWatchLogsAPI interface {
	CreateLogStream(ctx context.Context, params *cloudwatchlogs.CreateLogStreamInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error)
	PutLogEvents(ctx context.Context, params *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
}

// CloudWatchNotifier writes notifications as log events to a CloudWatch
// Logs stream, creating the stream on first use.
type CloudWatchNotifier struct {
	name   string
	client CloudWatchLogsAPI
	group  string
	stream string
	now    func() time.Time

	mu      sync.Mutex
	created bool
}

// NewCloudWatchNotifier creates a CloudWatch Logs notifier.
func NewCloudWatchNotifier(name string, client CloudWatchLogsAPI, group, stream string) (*CloudWatchNotifier, error) {
	if client == nil {
		return nil, fmt.Errorf("cloudwatch client required")
	}
	if group == "" || stream == "" {
		return nil, fmt.Errorf("cloudwatch logGroup and logStream required")
	}
	if name == "" {
		name = "cloudwatch"
	}
	return &CloudWatchNotifier{name: name, client: client, group: group, stream: stream, now: time.Now}, nil
}

// Name returns the notifier identifier.
func (c *CloudWatchNotifier) Name() string { return c.name }

// Send appends n to the log stream.
func (c *CloudWatchNotifier) Send(ctx context.Context, n types.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureStream(ctx); err != nil {
		return err
	}
	msg := n.Subject + "\n" + n.Body
	_, err := c.client.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  aws.String(c.group),
		LogStreamName: aws.String(c.stream),
		LogEvents: []cwtypes.InputLogEvent{{
			Message:   aws.String(msg),
			Timestamp: aws.Int64(c.now().UnixMilli()),
		}},
	})
	if err != nil {
		return fmt.Errorf("cloudwatch put log events: %w", err)
	}
	return nil
}

func (c *CloudWatchNotifier) ensureStream(ctx context.Context) error {
	if c.created {
		return nil
	}
	_, err := c.client.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(c.group),
		LogStreamName: aws.String(c.stream),
	})
	var exists *cwtypes.ResourceAlreadyExistsException
	if err != nil && !errors.As(err, &exists) {
		return fmt.Errorf("cloudwatch create log stream: %w", err)
	}
	c.created = true
	return nil
}
