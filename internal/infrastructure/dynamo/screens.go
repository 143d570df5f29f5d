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

// ScreenRepo provides typed DynamoDB operations for the screens table.
type ScreenRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewScreenRepo(client *dynamodb.Client, tableName string) *ScreenRepo {
	return &ScreenRepo{client: client, tableName: tableName}
}

func (r *ScreenRepo) Put(ctx context.Context, s *domain.Screen) error {
	item, err := attributevalue.MarshalMap(s)
	if err != nil {
		return fmt.Errorf("marshal screen: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *ScreenRepo) Get(ctx context.Context, screenID string) (*domain.Screen, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("screen_id", screenID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("screen %s: %w", screenID, domain.ErrNotFound)
	}
	var s domain.Screen
	if err := attributevalue.UnmarshalMap(out.Item, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListByOrg queries the org_id GSI.
func (r *ScreenRepo) ListByOrg(ctx context.Context, orgID string) ([]domain.Screen, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("org_id-index"),
		KeyConditionExpression: aws.String("org_id = :oid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":oid": &types.AttributeValueMemberS{Value: orgID},
		},
	})
	if err != nil {
		return nil, err
	}
	var screens []domain.Screen
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &screens); err != nil {
		return nil, err
	}
	return screens, nil
}

func (r *ScreenRepo) Update(ctx context.Context, screenID string, updates map[string]interface{}) error {
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("screen_id", screenID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

func (r *ScreenRepo) Delete(ctx context.Context, screenID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("screen_id", screenID),
	})
	return err
}
