package main

import "context"

// BlobChecker answers whether an attachment was stored. blobstore.S3Store
// implements it.
type BlobChecker interface {
	Exists(ctx context.Context, storageID string) (bool, error)
}

// MetricsSink publishes count metrics. aws.MetricsPublisher implements it.
type MetricsSink interface {
	Count(ctx context.Context, name string, value float64, dims map[string]string) error
}

// CloudWatch metric names emitted per submitted order.
const (
	MetricOrdersSubmitted    = "OrdersSubmitted"
	MetricMissingAttachments = "MissingAttachments"
)
