package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	log "github.com/sirupsen/logrus"

	"github.com/imrishuroy/storybook-orderflow/internal/idempotency"
	"github.com/imrishuroy/storybook-orderflow/internal/orders"
)

var (
	errInvalidMessage = errors.New("invalid message")
	errBusy           = errors.New("event is being processed by another attempt")
)

// Processor takes in order.submitted events: it checks that every
// attachment reached the bucket and reports intake metrics, once per event.
type Processor struct {
	idem    *idempotency.Store
	orders  *orders.Store
	blobs   BlobChecker
	metrics MetricsSink
	logger  *log.Entry
}

func NewProcessor(idem *idempotency.Store, store *orders.Store, blobs BlobChecker, metrics MetricsSink, logger *log.Entry) *Processor {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Processor{
		idem:    idem,
		orders:  store,
		blobs:   blobs,
		metrics: metrics,
		logger:  logger.WithField("component", "worker"),
	}
}

// Handle processes a batch and reports failed records individually so SQS
// only redelivers those. Malformed messages are not retried.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		err := p.processMessage(ctx, rec)
		if err == nil {
			continue
		}
		logger := p.logger.WithError(err).WithField("message_id", rec.MessageId)
		if errors.Is(err, errInvalidMessage) {
			logger.Error("dropping malformed message")
			continue
		}
		logger.Warn("message failed, will be retried")
		resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg orders.SubmittedEvent
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return fmt.Errorf("%w: %v", errInvalidMessage, err)
	}
	if msg.OrderID == "" {
		return fmt.Errorf("%w: missing order_id", errInvalidMessage)
	}
	if msg.EventID == "" {
		msg.EventID = rec.MessageId
	}
	logger := p.logger.WithFields(log.Fields{"order_id": msg.OrderID, "event_id": msg.EventID})

	proceed, err := p.claim(ctx, msg)
	if err != nil {
		return err
	}
	if !proceed {
		logger.Info("duplicate event, already processed")
		return nil
	}

	missing, err := p.intake(ctx, msg)
	if err != nil {
		if markErr := p.idem.MarkFailed(ctx, idempotency.ScopeOrderSubmitted, msg.EventID, err.Error()); markErr != nil {
			logger.WithError(markErr).Error("mark event failed")
		}
		return err
	}

	body, _ := json.Marshal(map[string]interface{}{"order_id": msg.OrderID, "missing_attachments": missing})
	if err := p.idem.MarkDone(ctx, idempotency.ScopeOrderSubmitted, msg.EventID, string(body), http.StatusOK); err != nil {
		return fmt.Errorf("mark event done: %w", err)
	}
	logger.WithField("missing_attachments", missing).Info("order intake complete")
	return nil
}

// claim reports whether this delivery should do the work. A FAILED earlier
// attempt is taken over; a DONE one is skipped.
func (p *Processor) claim(ctx context.Context, msg orders.SubmittedEvent) (bool, error) {
	created, err := p.idem.CreateIfNotExists(ctx, idempotency.ScopeOrderSubmitted, msg.EventID, msg.OrderID)
	if err != nil {
		return false, fmt.Errorf("claim event: %w", err)
	}
	if created {
		return true, nil
	}

	rec, err := p.idem.Get(ctx, idempotency.ScopeOrderSubmitted, msg.EventID)
	if err != nil {
		return false, fmt.Errorf("read event record: %w", err)
	}
	if rec == nil {
		// expired between the put and the read
		return false, errBusy
	}
	switch rec.Status {
	case idempotency.StatusDone:
		return false, nil
	case idempotency.StatusFailed:
		ok, err := p.idem.Retry(ctx, idempotency.ScopeOrderSubmitted, msg.EventID)
		if err != nil {
			return false, fmt.Errorf("retry event: %w", err)
		}
		if !ok {
			return false, errBusy
		}
		return true, nil
	default:
		return false, errBusy
	}
}

// intake verifies the attachments and emits metrics. It returns how many
// attachments were not found in the bucket.
func (p *Processor) intake(ctx context.Context, msg orders.SubmittedEvent) (int, error) {
	order, err := p.orders.Get(ctx, msg.OrderID)
	if err != nil {
		return 0, fmt.Errorf("load order: %w", err)
	}
	if order == nil {
		return 0, fmt.Errorf("%w: %s", orders.ErrNotFound, msg.OrderID)
	}

	ids := make([]string, 0, len(order.Images)+1)
	for _, id := range order.Images {
		ids = append(ids, id)
	}
	if order.VideoStorageID != "" {
		ids = append(ids, order.VideoStorageID)
	}
	missing := 0
	for _, id := range ids {
		ok, err := p.blobs.Exists(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("check attachment: %w", err)
		}
		if !ok {
			missing++
			p.logger.WithFields(log.Fields{"order_id": order.OrderID, "storage_id": id}).Warn("attachment missing from bucket")
		}
	}

	dims := map[string]string{"ProductId": order.ProductID}
	if err := p.metrics.Count(ctx, MetricOrdersSubmitted, 1, dims); err != nil {
		p.logger.WithError(err).Warn("publish metric")
	}
	if missing > 0 {
		if err := p.metrics.Count(ctx, MetricMissingAttachments, float64(missing), dims); err != nil {
			p.logger.WithError(err).Warn("publish metric")
		}
	}
	return missing, nil
}
