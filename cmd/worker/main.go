package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/google/uuid"

	"github.com/imrishuroy/storybook-orderflow/internal/aws"
	"github.com/imrishuroy/storybook-orderflow/internal/blobstore"
	"github.com/imrishuroy/storybook-orderflow/internal/config"
	"github.com/imrishuroy/storybook-orderflow/internal/idempotency"
	"github.com/imrishuroy/storybook-orderflow/internal/logging"
	"github.com/imrishuroy/storybook-orderflow/internal/orders"
)

func main() {
	cfg := config.Load()
	logger := logging.New(logging.Options{Service: "storybook-worker", Env: cfg.AppEnv, Level: cfg.LogLevel, Text: cfg.RunLocal})

	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		logger.WithError(err).Fatal("failed to init aws clients")
	}

	processor := NewProcessor(
		idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL),
		orders.NewStore(clients.DynamoDB, cfg.OrdersTable),
		blobstore.NewS3Store(clients.S3Presign, clients.S3, cfg.UploadsBucket, cfg.UploadsPrefix, cfg.UploadURLTTL),
		aws.NewMetricsPublisher(clients.CloudWatch, cfg.MetricsNamespace),
		logger,
	)

	// If RUN_LOCAL=true, simulate a single SQS event for local testing.
	if cfg.RunLocal {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			raw, _ := json.Marshal(orders.SubmittedEvent{
				EventID:     uuid.NewString(),
				OrderID:     os.Getenv("LOCAL_ORDER_ID"),
				Status:      orders.StatusProcessing,
				SubmittedAt: time.Now().UTC(),
			})
			body = string(raw)
		}
		event := events.SQSEvent{Records: []events.SQSMessage{{MessageId: "local-1", Body: body}}}
		resp, err := processor.Handle(context.Background(), event)
		if err != nil || len(resp.BatchItemFailures) > 0 {
			logger.WithError(err).WithField("failures", len(resp.BatchItemFailures)).Fatal("local handler error")
		}
		return
	}

	lambda.Start(processor.Handle)
}
