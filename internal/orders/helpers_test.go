package orders

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/storybook-orderflow/internal/idempotency"
	"github.com/imrishuroy/storybook-orderflow/internal/logging"
	"github.com/imrishuroy/storybook-orderflow/internal/testutil"
)

const (
	ordersTable = "orders"
	idempTable  = "idempotency"
)

func newFake() *testutil.FakeDynamoDB {
	return testutil.NewFakeDynamoDB(testutil.Tables{ordersTable: testutil.OrderKey, idempTable: testutil.IdempotencyKey})
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentMessage struct {
	body  string
	attrs map[string]string
}

type fakePublisher struct {
	sent []sentMessage
	err  error
}

func (p *fakePublisher) SendOrderMessage(ctx context.Context, body string, attrs map[string]string) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, sentMessage{body: body, attrs: attrs})
	return nil
}

type countingRecorder struct {
	created     map[string]int
	transitions map[string]int
}

func (r *countingRecorder) OrderCreated(productID string) { r.created[productID]++ }
func (r *countingRecorder) StatusChanged(to string)       { r.transitions[to]++ }

type harness struct {
	svc       *Service
	store     *Store
	fake      *testutil.FakeDynamoDB
	clock     *stepClock
	publisher *fakePublisher
	recorder  *countingRecorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fake := newFake()
	store := NewStore(fake, ordersTable)
	clock := &stepClock{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
	pub := &fakePublisher{}
	rec := &countingRecorder{created: map[string]int{}, transitions: map[string]int{}}
	idem := idempotency.NewStore(fake, idempTable, 48*time.Hour)

	n := 0
	svc := NewService(store,
		WithIdempotency(idem),
		WithPublisher(pub),
		WithRecorder(rec),
		WithLogger(logging.Discard()),
		WithClock(clock.Now),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%03d", n)
		}),
	)
	return &harness{svc: svc, store: store, fake: fake, clock: clock, publisher: pub, recorder: rec}
}

func images(n int) map[string]string {
	out := make(map[string]string, n)
	for i := 0; i < n; i++ {
		out[ImageSlotKey(i)] = fmt.Sprintf("uploads/blob-%02d", i)
	}
	return out
}

func shipping() Shipping {
	return Shipping{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Address:   "12 St James's Square",
		City:      "London",
		State:     "LDN",
		Zip:       "SW1Y 4JH",
	}
}

func arrangement(product string) Arrangement {
	return Arrangement{Title: "Our First Year", Subtitle: "2025", Message: "For Grandma", ProductID: product}
}

func (h *harness) createPending(t *testing.T, product string) string {
	t.Helper()
	id, err := h.svc.CreateOrder(context.Background(), NewOrder{Arrangement: arrangement(product)})
	require.NoError(t, err)
	return id
}
