package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/imrishuroy/storybook-orderflow/internal/aws"
)

// Secondary indexes on the orders table.
const (
	IndexByEmail  = "by_email"
	IndexByStatus = "by_status"
)

// Store encapsulates operations on the orders table. Timestamps are chosen
// by the caller; the store only persists them.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
	}
}

func (s *Store) TableName() string { return s.tableName }

// Put inserts a new order. It never overwrites an existing order_id.
func (s *Store) Put(ctx context.Context, order Order) error {
	item, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("marshal order item: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(order_id)"),
	})
	if err != nil {
		return storageFault("put item", err)
	}
	return nil
}

// CreateWithIdempotencyTransaction atomically creates:
//   - idempotency record in idempotencyTable (with ConditionExpression attribute_not_exists(idempotency_key))
//   - order record in orders table
//
// idempotencyItem must marshal to a map carrying idempotency_key. If the key
// already exists the transaction is cancelled and ErrDuplicateRequest returned.
func (s *Store) CreateWithIdempotencyTransaction(ctx context.Context, idempotencyTable string, idempotencyItem interface{}, order Order, ttlWindow time.Duration) error {
	idempMap, err := attributevalue.MarshalMap(idempotencyItem)
	if err != nil {
		return fmt.Errorf("marshal idempotency item: %w", err)
	}
	// records without their own expiry get one from the window
	if _, ok := idempMap["expires_at"]; !ok && ttlWindow > 0 {
		expires := order.CreatedAt.Add(ttlWindow).Unix()
		idempMap["expires_at"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expires)}
	}

	orderMap, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("marshal order item: %w", err)
	}

	input := &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           &idempotencyTable,
					Item:                idempMap,
					ConditionExpression: awsString("attribute_not_exists(idempotency_key)"),
				},
			},
			{
				Put: &types.Put{
					TableName:           &s.tableName,
					Item:                orderMap,
					ConditionExpression: awsString("attribute_not_exists(order_id)"),
				},
			},
		},
	}

	_, err = s.client.TransactWriteItems(ctx, input)
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			return fmt.Errorf("%w: %v", ErrDuplicateRequest, err)
		}
		return storageFault("transact write", err)
	}
	return nil
}

// Get fetches an order by order_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	key := map[string]types.AttributeValue{
		"order_id": &types.AttributeValueMemberS{Value: orderID},
	}
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            key,
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, storageFault("get item", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// UpdateStatus conditionally updates the order status from expected -> next.
// Returns ErrStatusMismatch if the stored status is not expected, which also
// covers an order that no longer exists.
func (s *Store) UpdateStatus(ctx context.Context, orderID string, expected, next Status, at time.Time) error {
	ua, err := attributevalue.Marshal(at)
	if err != nil {
		return fmt.Errorf("marshal updated_at: %w", err)
	}
	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
		UpdateExpression:         awsString("SET #s = :new, updated_at = :ua"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new":      &types.AttributeValueMemberS{Value: string(next)},
			":ua":       ua,
			":expected": &types.AttributeValueMemberS{Value: string(expected)},
		},
		ConditionExpression: awsString("#s = :expected"),
	}

	_, err = s.client.UpdateItem(ctx, input)
	if err != nil {
		var sc *types.ConditionalCheckFailedException
		if errors.As(err, &sc) {
			return ErrStatusMismatch
		}
		return storageFault("update item", err)
	}
	return nil
}

// UpdateFiles replaces attachments and shipping fields in one patch.
// Returns ErrNotFound if the order does not exist.
func (s *Store) UpdateFiles(ctx context.Context, orderID string, upd FilesUpdate, at time.Time) error {
	images := upd.Images
	if images == nil {
		images = map[string]string{}
	}
	type field struct {
		name  string
		value interface{}
	}
	fields := []field{
		{"images", images},
		{"first_name", upd.Shipping.FirstName},
		{"last_name", upd.Shipping.LastName},
		{"email", upd.Shipping.Email},
		{"address", upd.Shipping.Address},
		{"city", upd.Shipping.City},
		{"state", upd.Shipping.State},
		{"zip", upd.Shipping.Zip},
		{"updated_at", at},
	}
	if upd.VideoStorageID != "" {
		fields = append(fields, field{"video_storage_id", upd.VideoStorageID})
	}

	// every attribute goes through a name placeholder; several are reserved words
	names := map[string]string{}
	values := map[string]interface{}{}
	set := make([]string, 0, len(fields))
	for _, f := range fields {
		names["#"+f.name] = f.name
		values[":"+f.name] = f.value
		set = append(set, fmt.Sprintf("#%s = :%s", f.name, f.name))
	}
	expr := "SET " + strings.Join(set, ", ")
	if upd.VideoStorageID == "" {
		names["#video_storage_id"] = "video_storage_id"
		expr += " REMOVE #video_storage_id"
	}

	av, err := attributevalue.MarshalMap(values)
	if err != nil {
		return fmt.Errorf("marshal files update: %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
		UpdateExpression:          &expr,
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: av,
		ConditionExpression:       awsString("attribute_exists(order_id)"),
	})
	if err != nil {
		var sc *types.ConditionalCheckFailedException
		if errors.As(err, &sc) {
			return ErrNotFound
		}
		return storageFault("update item", err)
	}
	return nil
}

// QueryByEmail returns every order placed with email, oldest first.
func (s *Store) QueryByEmail(ctx context.Context, email string) ([]Order, error) {
	return s.queryIndex(ctx, IndexByEmail, "email", email)
}

// QueryByStatus returns every order currently in status, oldest first.
func (s *Store) QueryByStatus(ctx context.Context, status Status) ([]Order, error) {
	return s.queryIndex(ctx, IndexByStatus, "status", string(status))
}

func (s *Store) queryIndex(ctx context.Context, index, attr, value string) ([]Order, error) {
	input := &dyn.QueryInput{
		TableName:                &s.tableName,
		IndexName:                awsString(index),
		KeyConditionExpression:   awsString("#k = :v"),
		ExpressionAttributeNames: map[string]string{"#k": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberS{Value: value},
		},
	}

	out := []Order{}
	pages := dyn.NewQueryPaginator(s.client, input)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, storageFault("query "+index, err)
		}
		var batch []Order
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal orders: %w", err)
		}
		out = append(out, batch...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func storageFault(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageFault, err)
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }
