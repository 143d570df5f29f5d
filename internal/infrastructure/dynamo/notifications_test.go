package dynamo

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/signcast/notify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func undeliveredIDs(records []domain.NotificationRecord) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.NotificationID)
	}
	return ids
}

func TestSortUndelivered_PriorityDescThenCreatedAsc(t *testing.T) {
	base := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	records := []domain.NotificationRecord{
		{NotificationID: "n1", Priority: 1, CreatedAt: base},
		{NotificationID: "n2", Priority: 5, CreatedAt: base.Add(2 * time.Second)},
		{NotificationID: "n3", Priority: 5, CreatedAt: base.Add(time.Second)},
		{NotificationID: "n4", Priority: 1, CreatedAt: base.Add(3 * time.Second)},
	}

	sortUndelivered(records)

	assert.Equal(t, []string{"n3", "n2", "n1", "n4"}, undeliveredIDs(records))
}

func TestSortUndelivered_SubSecondCreatedAt(t *testing.T) {
	base := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	earlier := base.Add(100 * time.Millisecond)
	later := base.Add(120 * time.Millisecond)

	// The marshaled range key trims trailing zeros, so the later
	// timestamp sorts first bytewise and the index returns the pair
	// inverted. Reproduce that input order and check it is corrected.
	earlierAttr, err := attributevalue.Marshal(earlier)
	require.NoError(t, err)
	laterAttr, err := attributevalue.Marshal(later)
	require.NoError(t, err)
	require.Greater(t,
		earlierAttr.(*types.AttributeValueMemberS).Value,
		laterAttr.(*types.AttributeValueMemberS).Value,
		"string order should disagree with time order for this pair")

	records := []domain.NotificationRecord{
		{NotificationID: "later", Priority: 5, CreatedAt: later},
		{NotificationID: "earlier", Priority: 5, CreatedAt: earlier},
	}

	sortUndelivered(records)

	assert.Equal(t, []string{"earlier", "later"}, undeliveredIDs(records))
}

func TestSortUndelivered_StableForEqualKeys(t *testing.T) {
	ts := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	records := []domain.NotificationRecord{
		{NotificationID: "first", Priority: 3, CreatedAt: ts},
		{NotificationID: "second", Priority: 3, CreatedAt: ts},
	}

	sortUndelivered(records)

	assert.Equal(t, []string{"first", "second"}, undeliveredIDs(records))
}
