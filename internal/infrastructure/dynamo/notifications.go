package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/signcast/notify/internal/domain"
)

// NotificationRepo provides typed DynamoDB operations for the outbox table.
type NotificationRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewNotificationRepo(client *dynamodb.Client, tableName string) *NotificationRepo {
	return &NotificationRepo{client: client, tableName: tableName}
}

func (r *NotificationRepo) Put(ctx context.Context, n *domain.NotificationRecord) error {
	item, err := attributevalue.MarshalMap(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *NotificationRepo) Get(ctx context.Context, notificationID string) (*domain.NotificationRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("notification_id", notificationID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("notification %s: %w", notificationID, domain.ErrNotFound)
	}
	var n domain.NotificationRecord
	if err := attributevalue.UnmarshalMap(out.Item, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// QueryUndelivered returns all records for the screen with no
// delivered_at, ordered (priority desc, created_at asc). Ordering is
// applied in memory after the query; backlogs are bounded by the 24h
// TTL so this stays small.
func (r *NotificationRepo) QueryUndelivered(ctx context.Context, screenID string) ([]domain.NotificationRecord, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("target_screen_id-created_at-index"),
		KeyConditionExpression: aws.String("target_screen_id = :sid"),
		FilterExpression:       aws.String("attribute_not_exists(delivered_at)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sid": &types.AttributeValueMemberS{Value: screenID},
		},
		ScanIndexForward: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	var records []domain.NotificationRecord
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &records); err != nil {
		return nil, err
	}
	sortUndelivered(records)
	return records, nil
}

// sortUndelivered orders records (priority desc, created_at asc). The
// GSI range key is a string timestamp and RFC3339Nano trims trailing
// zeros, so bytewise index order can disagree with time order at
// sub-second granularity ("...00.12Z" sorts before "...00.1Z"). The
// index is never trusted for order; the unmarshaled timestamps decide.
func sortUndelivered(records []domain.NotificationRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Priority != records[j].Priority {
			return records[i].Priority > records[j].Priority
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
}

// MarkDelivered sets delivered_at = now on every id still undelivered.
// Already-delivered ids fail their condition check and are skipped —
// the call is idempotent and never resets an existing delivered_at.
func (r *NotificationRepo) MarkDelivered(ctx context.Context, ids []string, now time.Time) error {
	ts, err := attributevalue.Marshal(now.UTC())
	if err != nil {
		return fmt.Errorf("marshal delivered_at: %w", err)
	}
	for _, id := range ids {
		_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:           aws.String(r.tableName),
			Key:                 strKey("notification_id", id),
			UpdateExpression:    aws.String("SET delivered_at = :ts"),
			ConditionExpression: aws.String("attribute_exists(notification_id) AND attribute_not_exists(delivered_at)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":ts": ts,
			},
		})
		if err != nil {
			var ccf *types.ConditionalCheckFailedException
			if errors.As(err, &ccf) {
				continue
			}
			return fmt.Errorf("mark delivered %s: %w", id, err)
		}
	}
	return nil
}

// Acknowledge sets acknowledged_at on ids belonging to screenID.
// Records targeting another screen fail the condition and are skipped.
func (r *NotificationRepo) Acknowledge(ctx context.Context, screenID string, ids []string, now time.Time) error {
	ts, err := attributevalue.Marshal(now.UTC())
	if err != nil {
		return fmt.Errorf("marshal acknowledged_at: %w", err)
	}
	for _, id := range ids {
		_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:           aws.String(r.tableName),
			Key:                 strKey("notification_id", id),
			UpdateExpression:    aws.String("SET acknowledged_at = :ts"),
			ConditionExpression: aws.String("target_screen_id = :sid"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":ts":  ts,
				":sid": &types.AttributeValueMemberS{Value: screenID},
			},
		})
		if err != nil {
			var ccf *types.ConditionalCheckFailedException
			if errors.As(err, &ccf) {
				continue
			}
			return fmt.Errorf("acknowledge %s: %w", id, err)
		}
	}
	return nil
}

// DeleteExpired removes every record with expires_at < now, regardless
// of delivery state. Returns the number of rows removed.
func (r *NotificationRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	nowEpoch := strconv.FormatInt(now.Unix(), 10)
	removed := 0
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:            aws.String(r.tableName),
			FilterExpression:     aws.String("expires_at < :now"),
			ProjectionExpression: aws.String("notification_id"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":now": &types.AttributeValueMemberN{Value: nowEpoch},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return removed, err
		}
		for _, item := range out.Items {
			idAttr, ok := item["notification_id"].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName: aws.String(r.tableName),
				Key:       strKey("notification_id", idAttr.Value),
			})
			if err != nil {
				return removed, fmt.Errorf("delete expired %s: %w", idAttr.Value, err)
			}
			removed++
		}
		if out.LastEvaluatedKey == nil {
			return removed, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// DeleteByScreen removes every record targeting screenID. Used by the
// screen cascade-delete path.
func (r *NotificationRepo) DeleteByScreen(ctx context.Context, screenID string) error {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("target_screen_id-created_at-index"),
		KeyConditionExpression: aws.String("target_screen_id = :sid"),
		ProjectionExpression:   aws.String("notification_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sid": &types.AttributeValueMemberS{Value: screenID},
		},
	})
	if err != nil {
		return err
	}
	for _, item := range out.Items {
		idAttr, ok := item["notification_id"].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(r.tableName),
			Key:       strKey("notification_id", idAttr.Value),
		})
		if err != nil {
			return fmt.Errorf("cascade delete %s: %w", idAttr.Value, err)
		}
	}
	return nil
}
