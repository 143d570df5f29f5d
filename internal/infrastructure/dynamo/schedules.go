package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/signcast/notify/internal/domain"
)

// ScheduleRepo provides read access to the schedules table. Schedule
// writes belong to the content dashboard; the notification path only
// resolves linkage.
type ScheduleRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewScheduleRepo(client *dynamodb.Client, tableName string) *ScheduleRepo {
	return &ScheduleRepo{client: client, tableName: tableName}
}

func (r *ScheduleRepo) Get(ctx context.Context, scheduleID string) (*domain.Schedule, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("schedule_id", scheduleID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("schedule %s: %w", scheduleID, domain.ErrNotFound)
	}
	var s domain.Schedule
	if err := attributevalue.UnmarshalMap(out.Item, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListActiveByPlaylist queries the playlist_id GSI for active schedules.
func (r *ScheduleRepo) ListActiveByPlaylist(ctx context.Context, playlistID string) ([]domain.Schedule, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("playlist_id-index"),
		KeyConditionExpression: aws.String("playlist_id = :pid"),
		FilterExpression:       aws.String("active = :true"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pid":  &types.AttributeValueMemberS{Value: playlistID},
			":true": &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		return nil, err
	}
	var schedules []domain.Schedule
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &schedules); err != nil {
		return nil, err
	}
	return schedules, nil
}
