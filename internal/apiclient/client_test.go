package apiclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/storybook-orderflow/internal/blobstore"
	"github.com/imrishuroy/storybook-orderflow/internal/checkout"
	"github.com/imrishuroy/storybook-orderflow/internal/handlers"
	"github.com/imrishuroy/storybook-orderflow/internal/idempotency"
	"github.com/imrishuroy/storybook-orderflow/internal/logging"
	"github.com/imrishuroy/storybook-orderflow/internal/orders"
	"github.com/imrishuroy/storybook-orderflow/internal/testutil"
)

// bucket stands in for S3: it accepts PUTs on /blob/<id>.
type bucket struct {
	mu    sync.Mutex
	blobs map[string]string
	n     int
	srv   *httptest.Server
}

func newBucket(t *testing.T) *bucket {
	b := &bucket{blobs: map[string]string{}}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		data, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.blobs[strings.TrimPrefix(r.URL.Path, "/blob/")] = string(data)
		b.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *bucket) RequestUploadURL(ctx context.Context, contentType string) (blobstore.Ticket, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.n++
	id := fmt.Sprintf("uploads/%03d", b.n)
	return blobstore.Ticket{URL: b.srv.URL + "/blob/" + id, Method: http.MethodPut, StorageID: id}, nil
}

func (b *bucket) RequestUploadURLs(ctx context.Context, n int, contentType string) ([]blobstore.Ticket, error) {
	out := make([]blobstore.Ticket, 0, n)
	for i := 0; i < n; i++ {
		t, _ := b.RequestUploadURL(ctx, contentType)
		out = append(out, t)
	}
	return out, nil
}

func newTestServer(t *testing.T) (*Client, *bucket) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fake := testutil.NewFakeDynamoDB(testutil.Tables{"orders": testutil.OrderKey, "idempotency": testutil.IdempotencyKey})
	svc := orders.NewService(orders.NewStore(fake, "orders"),
		orders.WithIdempotency(idempotency.NewStore(fake, "idempotency", time.Hour)),
		orders.WithLogger(logging.Discard()),
	)
	b := newBucket(t)
	cfg := handlers.HandlerConfig{Orders: svc, Uploads: b, Logger: logging.Discard()}

	r := gin.New()
	handlers.RegisterProductRoutes(r)
	handlers.RegisterOrdersRoutes(r, cfg)
	handlers.RegisterUploadRoutes(r, cfg)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return New(srv.URL+"/", srv.Client()), b
}

func arrange(product string) orders.NewOrder {
	return orders.NewOrder{Arrangement: orders.Arrangement{Title: "Our First Year", ProductID: product}}
}

func TestProducts(t *testing.T) {
	c, _ := newTestServer(t)
	products, err := c.Products(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.Equal(t, "essential", products[0].ID)
}

func TestOrderRoundTrip(t *testing.T) {
	c, _ := newTestServer(t)
	ctx := context.Background()

	id, err := c.CreateOrder(ctx, arrange("legacy"), "key-1")
	require.NoError(t, err)
	again, err := c.CreateOrder(ctx, arrange("legacy"), "key-1")
	require.NoError(t, err)
	assert.Equal(t, id, again)

	o, err := c.GetOrder(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, orders.StatusPending, o.Status)
	assert.Equal(t, 199, o.ProductPrice)

	missing, err := c.GetOrder(ctx, "no-such-order")
	require.NoError(t, err)
	assert.Nil(t, missing)

	list, err := c.GetOrdersByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestErrorMapping(t *testing.T) {
	c, _ := newTestServer(t)
	ctx := context.Background()

	_, err := c.CreateOrder(ctx, arrange("platinum"), "")
	var ve *orders.ValidationError
	require.True(t, errors.As(err, &ve), "got %v", err)
	assert.Contains(t, ve.Fields, "product_id")
	assert.ErrorIs(t, err, orders.ErrValidation)

	err = c.UpdateOrderStatus(ctx, "no-such-order", orders.StatusCancelled)
	assert.ErrorIs(t, err, orders.ErrNotFound)

	id, err := c.CreateOrder(ctx, arrange("essential"), "")
	require.NoError(t, err)
	err = c.UpdateOrderStatus(ctx, id, orders.StatusCompleted)
	assert.ErrorIs(t, err, orders.ErrInvalidTransition)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
}

func TestCheckoutOverHTTP(t *testing.T) {
	c, b := newTestServer(t)
	ctx := context.Background()

	id, err := c.CreateOrder(ctx, arrange("essential"), "")
	require.NoError(t, err)

	images := make([]checkout.File, 24)
	for i := range images {
		images[i] = checkout.File{Name: fmt.Sprintf("%02d.jpg", i), ContentType: "image/jpeg", Data: []byte(fmt.Sprintf("img-%02d", i))}
	}
	session := &checkout.Session{OrderID: id}
	blobs := &blobstore.Client{Issuer: c, Uploader: blobstore.NewHTTPUploader(nil)}
	wf := checkout.New(c, blobs, session, checkout.WithConcurrency(3), checkout.WithLogger(logging.Discard()))

	err = wf.Submit(ctx, checkout.Submission{
		Images: images,
		Video:  &checkout.File{Name: "v.mp4", ContentType: "video/mp4", Data: []byte("vid")},
		Shipping: orders.Shipping{
			FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com",
			Address: "12 St James's Square", City: "London", State: "LDN", Zip: "SW1Y 4JH",
		},
	})
	require.NoError(t, err)

	o, err := c.GetOrder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusProcessing, o.Status)
	assert.Len(t, o.Images, 24)
	assert.NotEmpty(t, o.VideoStorageID)
	assert.Equal(t, "img-00", b.blobs[o.Images["image-01"]])
	assert.Equal(t, "vid", b.blobs[o.VideoStorageID])

	history, err := c.GetOrdersByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, id, history[0].OrderID)
}
