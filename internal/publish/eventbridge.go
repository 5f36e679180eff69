package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"

	"github.com/dwsmith1983/tripwire/internal/metrics"
	"github.com/dwsmith1983/tripwire/pkg/types"
)

// DefaultEventSource is the EventBridge source of published messages.
const DefaultEventSource = "tripwire.watchdog"

const putEventsTimeout = 10 * time.Second

// EventBridgeAPI is the subset of the EventBridge client used here.
type EventBridgeAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// EventBridge sends each message as one event. It blocks on the API call,
// so it is wrapped in a Queue when used from the engine.
type EventBridge struct {
	client  EventBridgeAPI
	busName string
	source  string
	logger  *slog.Logger
}

// NewEventBridge creates an EventBridge publisher.
func NewEventBridge(client EventBridgeAPI, busName, source string, logger *slog.Logger) *EventBridge {
	if source == "" {
		source = DefaultEventSource
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBridge{client: client, busName: busName, source: source, logger: logger}
}

// Publish sends msg; failures are logged and counted.
func (e *EventBridge) Publish(msg types.Message) {
	if err := e.send(msg); err != nil {
		metrics.MessagesDropped.Add(1)
		e.logger.Error("watchdog: eventbridge publish failed", "type", msg.Type, "error", err)
		return
	}
	metrics.MessagesPublished.Add(1)
}

func (e *EventBridge) send(msg types.Message) error {
	detail, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling detail: %w", err)
	}
	entry := ebtypes.PutEventsRequestEntry{
		Source:     aws.String(e.source),
		DetailType: aws.String(string(msg.Type)),
		Detail:     aws.String(string(detail)),
	}
	if e.busName != "" {
		entry.EventBusName = aws.String(e.busName)
	}
	if msg.Timestamped() {
		entry.Time = aws.Time(msg.Time)
	}

	ctx, cancel := context.WithTimeout(context.Background(), putEventsTimeout)
	defer cancel()
	out, err := e.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []ebtypes.PutEventsRequestEntry{entry},
	})
	if err != nil {
		return err
	}
	if out.FailedEntryCount > 0 && len(out.Entries) > 0 {
		return fmt.Errorf("event rejected: %s", aws.ToString(out.Entries[0].ErrorMessage))
	}
	return nil
}
