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

// PlaylistRepo provides read access to the playlists and playlist_items
// tables for fan-out resolution.
type PlaylistRepo struct {
	client     *dynamodb.Client
	tableName  string
	itemsTable string
}

func NewPlaylistRepo(client *dynamodb.Client, tableName, itemsTable string) *PlaylistRepo {
	return &PlaylistRepo{client: client, tableName: tableName, itemsTable: itemsTable}
}

func (r *PlaylistRepo) Get(ctx context.Context, playlistID string) (*domain.Playlist, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("playlist_id", playlistID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("playlist %s: %w", playlistID, domain.ErrNotFound)
	}
	var p domain.Playlist
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PlaylistRepo) GetItem(ctx context.Context, itemID string) (*domain.PlaylistItem, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.itemsTable),
		Key:       strKey("item_id", itemID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("playlist item %s: %w", itemID, domain.ErrNotFound)
	}
	var item domain.PlaylistItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// ListItemsByAsset queries the media_asset_id GSI on playlist_items.
func (r *PlaylistRepo) ListItemsByAsset(ctx context.Context, mediaAssetID string) ([]domain.PlaylistItem, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.itemsTable),
		IndexName:              aws.String("media_asset_id-index"),
		KeyConditionExpression: aws.String("media_asset_id = :aid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":aid": &types.AttributeValueMemberS{Value: mediaAssetID},
		},
	})
	if err != nil {
		return nil, err
	}
	var items []domain.PlaylistItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, err
	}
	return items, nil
}
