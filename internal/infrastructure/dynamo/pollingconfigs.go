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

// PollingConfigRepo provides typed DynamoDB operations for the
// polling_configs table. One row per organization; interval resolution
// is a single GetItem.
type PollingConfigRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewPollingConfigRepo(client *dynamodb.Client, tableName string) *PollingConfigRepo {
	return &PollingConfigRepo{client: client, tableName: tableName}
}

func (r *PollingConfigRepo) Put(ctx context.Context, cfg *domain.PollingConfig) error {
	item, err := attributevalue.MarshalMap(cfg)
	if err != nil {
		return fmt.Errorf("marshal polling config: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *PollingConfigRepo) Get(ctx context.Context, orgID string) (*domain.PollingConfig, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("org_id", orgID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("polling config %s: %w", orgID, domain.ErrNotFound)
	}
	var cfg domain.PollingConfig
	if err := attributevalue.UnmarshalMap(out.Item, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetOverride writes the emergency_override attribute in place.
func (r *PollingConfigRepo) SetOverride(ctx context.Context, orgID string, ov domain.EmergencyOverride) error {
	av, err := attributevalue.Marshal(ov)
	if err != nil {
		return fmt.Errorf("marshal override: %w", err)
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey("org_id", orgID),
		UpdateExpression: aws.String("SET emergency_override = :ov"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ov": av,
		},
	})
	return err
}

// ClearOverride deactivates the override.
func (r *PollingConfigRepo) ClearOverride(ctx context.Context, orgID string) error {
	return r.SetOverride(ctx, orgID, domain.EmergencyOverride{Active: false})
}
