package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/imrishuroy/storybook-orderflow/internal/aws"
	"github.com/imrishuroy/storybook-orderflow/internal/catalog"
	"github.com/imrishuroy/storybook-orderflow/internal/idempotency"
	"github.com/imrishuroy/storybook-orderflow/internal/validation"
)

// EventPublisher is satisfied by aws.Publisher.
type EventPublisher interface {
	SendOrderMessage(ctx context.Context, messageBody string, attributes map[string]string) error
}

// Recorder receives lifecycle counts. metrics.Metrics implements it.
type Recorder interface {
	OrderCreated(productID string)
	StatusChanged(to string)
}

// Service is the order lifecycle: it owns the order shape, the legal
// status transitions and the create/read/update operations.
type Service struct {
	store     *Store
	idem      *idempotency.Store
	publisher EventPublisher
	recorder  Recorder
	validate  *validatorv10.Validate
	logger    *log.Entry
	nowFunc   func() time.Time
	newID     func() string
}

type Option func(*Service)

// WithIdempotency enables CreateOrderIdempotent.
func WithIdempotency(store *idempotency.Store) Option {
	return func(s *Service) { s.idem = store }
}

// WithPublisher publishes SubmittedEvent when an order enters processing.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

func WithLogger(l *log.Entry) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.nowFunc = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func NewService(store *Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		validate: validation.New(),
		logger:   log.NewEntry(log.StandardLogger()),
		nowFunc:  time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithField("component", "orders")
	return s
}

// CreateOrder inserts a new pending order and returns its id. Any status in
// the input is ignored.
func (s *Service) CreateOrder(ctx context.Context, in NewOrder) (string, error) {
	order, err := s.buildOrder(in)
	if err != nil {
		return "", err
	}
	if err := s.store.Put(ctx, order); err != nil {
		return "", err
	}
	s.created(order)
	return order.OrderID, nil
}

// CreateOrderIdempotent creates the order and an idempotency record for key
// in one transaction. A repeated key returns the first order's id with
// replayed set and creates nothing.
func (s *Service) CreateOrderIdempotent(ctx context.Context, key string, in NewOrder) (id string, replayed bool, err error) {
	if s.idem == nil {
		return "", false, errors.New("idempotency store not configured")
	}
	order, err := s.buildOrder(in)
	if err != nil {
		return "", false, err
	}

	rec := s.idem.NewRecord(idempotency.ScopeCreateOrder, key, idempotency.StatusDone, order.OrderID)
	body, _ := json.Marshal(map[string]string{"order_id": order.OrderID, "status": string(order.Status)})
	rec.ResponseBody = string(body)
	rec.ResponseStatus = http.StatusCreated

	err = s.store.CreateWithIdempotencyTransaction(ctx, s.idem.TableName(), rec, order, s.idem.TTLWindow())
	if errors.Is(err, ErrDuplicateRequest) {
		prev, getErr := s.idem.Get(ctx, idempotency.ScopeCreateOrder, key)
		if getErr != nil {
			return "", false, fmt.Errorf("%w: idempotency lookup: %w", ErrStorageFault, getErr)
		}
		if prev == nil || prev.OrderID == "" {
			return "", false, fmt.Errorf("transaction canceled without idempotency record: %w", err)
		}
		s.logger.WithFields(log.Fields{"order_id": prev.OrderID, "idempotency_key": key}).Info("replayed create order")
		return prev.OrderID, true, nil
	}
	if err != nil {
		return "", false, err
	}
	s.created(order)
	return order.OrderID, false, nil
}

// GetOrder returns (nil, nil) when the id does not resolve.
func (s *Service) GetOrder(ctx context.Context, id string) (*Order, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	return s.store.Get(ctx, id)
}

// GetOrdersByEmail returns the orders placed with email, oldest first. An
// unknown email yields an empty slice.
func (s *Service) GetOrdersByEmail(ctx context.Context, email string) ([]Order, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return []Order{}, nil
	}
	return s.store.QueryByEmail(ctx, email)
}

func (s *Service) GetOrdersByStatus(ctx context.Context, status Status) ([]Order, error) {
	if !status.Valid() {
		return nil, NewValidationError("status", "unknown status")
	}
	return s.store.QueryByStatus(ctx, status)
}

// UpdateOrderStatus moves an order to status. Only transitions listed in
// the transition table are accepted, and entering processing requires a
// finalizable order.
func (s *Service) UpdateOrderStatus(ctx context.Context, id string, status Status) error {
	if !status.Valid() {
		return NewValidationError("status", "unknown status")
	}
	order, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if order == nil {
		return ErrNotFound
	}
	if !CanTransition(order.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, status)
	}
	entering := status == StatusProcessing && order.Status != StatusProcessing
	if entering {
		if err := s.checkFinalizable(order.ProductID, order.Images, order.Shipping); err != nil {
			return err
		}
	}

	at := s.nextTimestamp(order.UpdatedAt)
	if err := s.store.UpdateStatus(ctx, id, order.Status, status, at); err != nil {
		return err
	}

	s.logger.WithFields(log.Fields{
		"order_id": id,
		"from":     order.Status,
		"to":       status,
	}).Info("order status changed")
	if s.recorder != nil {
		s.recorder.StatusChanged(string(status))
	}
	if entering {
		order.Status = status
		s.publishSubmitted(ctx, order, at)
	}
	return nil
}

// UpdateOrderWithFiles replaces attachments and shipping fields in a single
// patch. It is the commit point of checkout.
func (s *Service) UpdateOrderWithFiles(ctx context.Context, id string, upd FilesUpdate) error {
	order, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if order == nil {
		return ErrNotFound
	}
	if order.Status.Terminal() {
		return fmt.Errorf("%w: order is %s", ErrInvalidTransition, order.Status)
	}

	upd.Shipping = trimShipping(upd.Shipping)
	if err := s.checkFinalizable(order.ProductID, upd.Images, upd.Shipping); err != nil {
		return err
	}

	at := s.nextTimestamp(order.UpdatedAt)
	if err := s.store.UpdateFiles(ctx, id, upd, at); err != nil {
		return err
	}
	s.logger.WithFields(log.Fields{
		"order_id":  id,
		"images":    len(upd.Images),
		"has_video": upd.VideoStorageID != "",
	}).Info("order files attached")
	return nil
}

func (s *Service) buildOrder(in NewOrder) (Order, error) {
	arr := in.Arrangement
	arr.Title = strings.TrimSpace(arr.Title)
	arr.ProductID = strings.TrimSpace(arr.ProductID)
	if err := s.validate.Struct(arr); err != nil {
		return Order{}, &ValidationError{Fields: validation.FieldErrors(err)}
	}

	product, _ := catalog.Lookup(arr.ProductID)
	arr.ProductName = product.Name
	arr.ProductPhotos = product.Photos
	arr.ProductPrice = product.Price

	shipping := trimShipping(in.Shipping)
	if shipping.Email != "" {
		if err := s.validate.Var(shipping.Email, "email"); err != nil {
			return Order{}, NewValidationError("email", "must be a valid email address")
		}
	}
	if len(in.Images) > product.MaxImages {
		return Order{}, NewValidationError("images", fmt.Sprintf("at most %d images allowed for %s", product.MaxImages, product.ID))
	}

	now := s.nowFunc().UTC()
	return Order{
		OrderID:        s.newID(),
		Arrangement:    arr,
		Shipping:       shipping,
		Images:         in.Images,
		VideoStorageID: in.VideoStorageID,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// checkFinalizable enforces what a submitted order must carry: between
// MinImages and the tier limit of attachments and complete shipping fields.
func (s *Service) checkFinalizable(productID string, images map[string]string, shipping Shipping) error {
	fields := map[string]string{}
	if err := s.validate.Struct(shipping); err != nil {
		fields = validation.FieldErrors(err)
	}
	limit := catalog.MaxImages(productID)
	switch n := len(images); {
	case n < catalog.MinImages:
		fields["images"] = fmt.Sprintf("at least %d images required, got %d", catalog.MinImages, n)
	case n > limit:
		fields["images"] = fmt.Sprintf("at most %d images allowed, got %d", limit, n)
	}
	for slot, id := range images {
		if strings.TrimSpace(slot) == "" || strings.TrimSpace(id) == "" {
			fields["images"] = "image slots and storage ids must be non-empty"
			break
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// nextTimestamp keeps updated_at strictly increasing even when the clock
// does not move between two writes.
func (s *Service) nextTimestamp(prev time.Time) time.Time {
	now := s.nowFunc().UTC()
	if !now.After(prev) {
		return prev.UTC().Add(time.Millisecond)
	}
	return now
}

func (s *Service) created(order Order) {
	s.logger.WithFields(log.Fields{
		"order_id":   order.OrderID,
		"product_id": order.ProductID,
	}).Info("order created")
	if s.recorder != nil {
		s.recorder.OrderCreated(order.ProductID)
	}
}

// publishSubmitted is best effort: the status change is already committed.
func (s *Service) publishSubmitted(ctx context.Context, order *Order, at time.Time) {
	if s.publisher == nil {
		return
	}
	ev := SubmittedEvent{
		EventID:     s.newID(),
		OrderID:     order.OrderID,
		Status:      order.Status,
		ProductID:   order.ProductID,
		ImageCount:  len(order.Images),
		HasVideo:    order.VideoStorageID != "",
		SubmittedAt: at,
	}
	body, err := json.Marshal(ev)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.OrderID).Error("marshal submitted event")
		return
	}
	attrs := map[string]string{
		aws.AttrEventID: ev.EventID,
		aws.AttrOrderID: ev.OrderID,
	}
	if err := s.publisher.SendOrderMessage(ctx, string(body), attrs); err != nil {
		s.logger.WithError(err).WithField("order_id", order.OrderID).Warn("failed to publish order submitted event")
	}
}

func trimShipping(sh Shipping) Shipping {
	return Shipping{
		FirstName: strings.TrimSpace(sh.FirstName),
		LastName:  strings.TrimSpace(sh.LastName),
		Email:     strings.TrimSpace(sh.Email),
		Address:   strings.TrimSpace(sh.Address),
		City:      strings.TrimSpace(sh.City),
		State:     strings.TrimSpace(sh.State),
		Zip:       strings.TrimSpace(sh.Zip),
	}
}
