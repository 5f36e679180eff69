package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/dwsmith1983/tripwire/internal/cacheproto"
	"github.com/dwsmith1983/tripwire/internal/schedule"
	"github.com/dwsmith1983/tripwire/pkg/types"
)

// SQS defaults.
const (
	defaultWaitSeconds = 20
	maxSQSMessages     = 10
)

// SQSAPI is the subset of the SQS client used here.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQS long-polls a queue whose message bodies are cache protocol lines.
type SQS struct {
	client   SQSAPI
	queueURL string
	wait     int32
	policy   schedule.ReconnectPolicy
	logger   *slog.Logger
	now      func() time.Time
}

// NewSQS creates an SQS source.
func NewSQS(client SQSAPI, queueURL string, waitSeconds int32, logger *slog.Logger) (*SQS, error) {
	if queueURL == "" {
		return nil, fmt.Errorf("sqs source requires queueUrl")
	}
	if waitSeconds <= 0 {
		waitSeconds = defaultWaitSeconds
	}
	return &SQS{
		client:   client,
		queueURL: queueURL,
		wait:     waitSeconds,
		policy:   schedule.DefaultReconnectPolicy(),
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Run polls until ctx is cancelled. Receive errors back off; every message
// is deleted once forwarded, including unparsable ones.
func (s *SQS) Run(ctx context.Context, out chan<- types.Update) error {
	failures := 0
	for ctx.Err() == nil {
		resp, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(s.queueURL),
			MaxNumberOfMessages: maxSQSMessages,
			WaitTimeSeconds:     s.wait,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			s.logger.Warn("watchdog: sqs receive failed", "queue", s.queueURL, "attempt", failures, "error", err)
			if !schedule.Sleep(ctx, s.policy, failures) {
				return nil
			}
			continue
		}
		failures = 0

		for _, msg := range resp.Messages {
			if upd, ok := s.parse(aws.ToString(msg.Body)); ok {
				select {
				case out <- upd:
				case <-ctx.Done():
					return nil
				}
			}
			if _, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
				QueueUrl:      aws.String(s.queueURL),
				ReceiptHandle: msg.ReceiptHandle,
			}); err != nil {
				s.logger.Warn("watchdog: sqs delete failed", "error", err)
			}
		}
	}
	return nil
}

func (s *SQS) parse(body string) (types.Update, bool) {
	line, err := cacheproto.ParseLine(body)
	if err != nil {
		s.logger.Debug("watchdog: ignoring sqs message", "body", body, "error", err)
		return types.Update{}, false
	}
	return line.Update(s.now())
}
