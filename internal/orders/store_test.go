package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storedOrder(id, email string, status Status, created time.Time) Order {
	return Order{
		OrderID:     id,
		Arrangement: Arrangement{Title: "t", ProductID: "essential", ProductName: "Essential", ProductPhotos: "24 photos", ProductPrice: 79},
		Shipping:    Shipping{Email: email},
		Status:      status,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func TestStore_PutGet(t *testing.T) {
	fake := newFake()
	store := NewStore(fake, ordersTable)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 9, 30, 0, 123456789, time.UTC)

	o := storedOrder("order-1", "", StatusPending, now)
	o.Images = images(2)
	require.NoError(t, store.Put(ctx, o))

	// empty shipping fields are not written; email backs a GSI
	item := fake.Item(ordersTable, "order-1")
	_, hasEmail := item["email"]
	assert.False(t, hasEmail)

	got, err := store.Get(ctx, "order-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "order-1", got.OrderID)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, o.Images, got.Images)
	assert.True(t, got.CreatedAt.Equal(now))

	err = store.Put(ctx, o)
	require.Error(t, err, "put must not overwrite an existing order")
	assert.ErrorIs(t, err, ErrStorageFault)

	missing, err := store.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_GetFailure(t *testing.T) {
	fake := newFake()
	boom := errors.New("connection reset")
	fake.FailOn("GetItem", boom)

	_, err := NewStore(fake, ordersTable).Get(context.Background(), "order-1")
	assert.ErrorIs(t, err, ErrStorageFault)
	assert.ErrorIs(t, err, boom)
}

func TestCreateWithIdempotencyTransaction_Success(t *testing.T) {
	fake := newFake()
	store := NewStore(fake, ordersTable)
	now := time.Now().UTC()

	idemp := map[string]interface{}{
		"idempotency_key": "create_order#key-1",
		"status":          "DONE",
		"order_id":        "order-1",
	}
	order := storedOrder("order-1", "", StatusPending, now)

	require.NoError(t, store.CreateWithIdempotencyTransaction(context.Background(), idempTable, idemp, order, 48*time.Hour))

	idempItem := fake.Item(idempTable, "create_order#key-1")
	require.NotNil(t, idempItem, "idempotency item not stored")
	exp, ok := idempItem["expires_at"].(*types.AttributeValueMemberN)
	require.True(t, ok, "expires_at should be filled from the window")
	assert.NotEmpty(t, exp.Value)

	orderItem := fake.Item(ordersTable, "order-1")
	require.NotNil(t, orderItem, "order item not stored")
	var got Order
	require.NoError(t, attributevalue.UnmarshalMap(orderItem, &got))
	assert.Equal(t, order.OrderID, got.OrderID)
}

func TestCreateWithIdempotencyTransaction_ExistingIdempotency_Fails(t *testing.T) {
	fake := newFake()
	fake.Seed(idempTable, map[string]types.AttributeValue{
		"idempotency_key": &types.AttributeValueMemberS{Value: "create_order#key-2"},
		"status":          &types.AttributeValueMemberS{Value: "DONE"},
	})
	store := NewStore(fake, ordersTable)

	idemp := map[string]interface{}{"idempotency_key": "create_order#key-2", "status": "DONE"}
	err := store.CreateWithIdempotencyTransaction(context.Background(), idempTable, idemp, storedOrder("order-2", "", StatusPending, time.Now()), 48*time.Hour)

	assert.ErrorIs(t, err, ErrDuplicateRequest)
	assert.Nil(t, fake.Item(ordersTable, "order-2"), "order must not be written when the key exists")
}

func TestUpdateStatus_Condition_SuccessAndFail(t *testing.T) {
	fake := newFake()
	store := NewStore(fake, ordersTable)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, store.Put(ctx, storedOrder("order-10", "", StatusPending, now)))

	// success: pending -> processing
	require.NoError(t, store.UpdateStatus(ctx, "order-10", StatusPending, StatusProcessing, now.Add(time.Second)))

	got, err := store.Get(ctx, "order-10")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, got.Status)
	assert.True(t, got.UpdatedAt.Equal(now.Add(time.Second)))

	// failure: pending -> completed (but current is processing)
	err = store.UpdateStatus(ctx, "order-10", StatusPending, StatusCompleted, now.Add(2*time.Second))
	assert.ErrorIs(t, err, ErrStatusMismatch)

	err = store.UpdateStatus(ctx, "missing", StatusPending, StatusProcessing, now)
	assert.ErrorIs(t, err, ErrStatusMismatch)
}

func TestUpdateFiles_ReplacesAndRemovesVideo(t *testing.T) {
	fake := newFake()
	store := NewStore(fake, ordersTable)
	ctx := context.Background()
	now := time.Now().UTC()

	o := storedOrder("order-20", "", StatusPending, now)
	o.Images = images(3)
	o.VideoStorageID = "uploads/old-video"
	require.NoError(t, store.Put(ctx, o))

	upd := FilesUpdate{Images: images(24), Shipping: shipping()}
	require.NoError(t, store.UpdateFiles(ctx, "order-20", upd, now.Add(time.Minute)))

	got, err := store.Get(ctx, "order-20")
	require.NoError(t, err)
	assert.Len(t, got.Images, 24)
	assert.Empty(t, got.VideoStorageID)
	assert.Equal(t, shipping(), got.Shipping)
	assert.True(t, got.UpdatedAt.Equal(now.Add(time.Minute)))
	assert.True(t, got.CreatedAt.Equal(now))

	upd.VideoStorageID = "uploads/new-video"
	require.NoError(t, store.UpdateFiles(ctx, "order-20", upd, now.Add(2*time.Minute)))
	got, err = store.Get(ctx, "order-20")
	require.NoError(t, err)
	assert.Equal(t, "uploads/new-video", got.VideoStorageID)

	err = store.UpdateFiles(ctx, "missing", upd, now)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, fake.Item(ordersTable, "missing"), "conditional patch must not upsert")
}

func TestQueryByEmail_PaginatesAndSorts(t *testing.T) {
	fake := newFake()
	fake.PageSize = 2
	store := NewStore(fake, ordersTable)
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	// inserted out of creation order
	require.NoError(t, store.Put(ctx, storedOrder("c", "a@x.com", StatusPending, base.Add(3*time.Hour))))
	require.NoError(t, store.Put(ctx, storedOrder("a", "a@x.com", StatusPending, base.Add(1*time.Hour))))
	require.NoError(t, store.Put(ctx, storedOrder("other", "b@x.com", StatusPending, base)))
	require.NoError(t, store.Put(ctx, storedOrder("b", "a@x.com", StatusProcessing, base.Add(2*time.Hour))))

	got, err := store.QueryByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].OrderID, got[1].OrderID, got[2].OrderID})
	assert.GreaterOrEqual(t, fake.Calls("Query"), 2)

	byStatus, err := store.QueryByStatus(ctx, StatusProcessing)
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "b", byStatus[0].OrderID)

	none, err := store.QueryByEmail(ctx, "noexist@x.com")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
