package testutil

import (
	"context"
	"errors"
	"testing"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func str(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }

func TestFake_KeysByDeclaredAttribute(t *testing.T) {
	fake := NewFakeDynamoDB(Tables{"orders": OrderKey, "idempotency": IdempotencyKey})
	ctx := context.Background()

	// an idempotency row also carries order_id; it must be stored under its own key
	_, err := fake.PutItem(ctx, &dyn.PutItemInput{
		TableName: ptr("idempotency"),
		Item: map[string]types.AttributeValue{
			"idempotency_key": str("create_order#k1"),
			"order_id":        str("order-1"),
			"status":          str("IN_PROGRESS"),
		},
	})
	require.NoError(t, err)
	assert.Nil(t, fake.Item("idempotency", "order-1"))
	require.NotNil(t, fake.Item("idempotency", "create_order#k1"))

	out, err := fake.GetItem(ctx, &dyn.GetItemInput{
		TableName: ptr("idempotency"),
		Key:       map[string]types.AttributeValue{"idempotency_key": str("create_order#k1")},
	})
	require.NoError(t, err)
	assert.Equal(t, str("order-1"), out.Item["order_id"])

	_, err = fake.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 ptr("idempotency"),
		Key:                       map[string]types.AttributeValue{"idempotency_key": str("create_order#k1")},
		UpdateExpression:          ptr("SET #s = :done"),
		ConditionExpression:       ptr("attribute_exists(idempotency_key) AND #s = :inprog"),
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":done": str("DONE"), ":inprog": str("IN_PROGRESS")},
	})
	require.NoError(t, err)
	assert.Equal(t, str("DONE"), fake.Item("idempotency", "create_order#k1")["status"])
	assert.Equal(t, 1, fake.Len("idempotency"))
}

func TestFake_UnknownTableAndMissingKey(t *testing.T) {
	fake := NewFakeDynamoDB(Tables{"orders": OrderKey})
	ctx := context.Background()

	_, err := fake.GetItem(ctx, &dyn.GetItemInput{
		TableName: ptr("nope"),
		Key:       map[string]types.AttributeValue{"order_id": str("o1")},
	})
	var rnf *types.ResourceNotFoundException
	assert.True(t, errors.As(err, &rnf))

	_, err = fake.PutItem(ctx, &dyn.PutItemInput{
		TableName: ptr("orders"),
		Item:      map[string]types.AttributeValue{"idempotency_key": str("k")},
	})
	assert.Error(t, err)
}

func ptr(v string) *string { return &v }
