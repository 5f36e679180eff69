package journal

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dwsmith1983/tripwire/pkg/types"
)

// Key prefixes of journal items.
const (
	prefixWatchdog = "WATCHDOG#"
	prefixEvent    = "EVENT#"
)

const defaultRetention = 30 * 24 * time.Hour

// DDBAPI is the subset of the DynamoDB client used by the journal.
type DDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoDB stores events in a single-table layout: one partition per
// watchdog instance, sort keys ordered by event ID.
type DynamoDB struct {
	client    DDBAPI
	tableName string
	pk        string
	retention time.Duration
	now       func() time.Time
}

// NewDynamoDB creates a DynamoDB journal. ttlDays <= 0 selects the default
// retention.
func NewDynamoDB(client DDBAPI, tableName, instance string, ttlDays int) (*DynamoDB, error) {
	if tableName == "" {
		return nil, fmt.Errorf("dynamodb journal requires tableName")
	}
	retention := defaultRetention
	if ttlDays > 0 {
		retention = time.Duration(ttlDays) * 24 * time.Hour
	}
	return &DynamoDB{
		client:    client,
		tableName: tableName,
		pk:        prefixWatchdog + instance,
		retention: retention,
		now:       time.Now,
	}, nil
}

// Append writes ev as one item.
func (d *DynamoDB) Append(ctx context.Context, ev types.Event) error {
	item, err := attributevalue.MarshalMap(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	item["PK"] = &ddbtypes.AttributeValueMemberS{Value: d.pk}
	item["SK"] = &ddbtypes.AttributeValueMemberS{Value: prefixEvent + ev.ID}
	item["ttl"] = &ddbtypes.AttributeValueMemberN{
		Value: strconv.FormatInt(d.now().Add(d.retention).Unix(), 10),
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &d.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	return nil
}

// Recent queries the newest n events.
func (d *DynamoDB) Recent(ctx context.Context, n int) ([]types.Event, error) {
	if n <= 0 {
		n = 50
	}
	out, err := d.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              &d.tableName,
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":pk":     &ddbtypes.AttributeValueMemberS{Value: d.pk},
			":prefix": &ddbtypes.AttributeValueMemberS{Value: prefixEvent},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(n)),
	})
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}

	events := make([]types.Event, 0, len(out.Items))
	for _, item := range out.Items {
		var ev types.Event
		if err := attributevalue.UnmarshalMap(item, &ev); err != nil {
			return nil, fmt.Errorf("unmarshaling event: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}
