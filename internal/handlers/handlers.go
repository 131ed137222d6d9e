package handlers

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/imrishuroy/storybook-orderflow/internal/blobstore"
	"github.com/imrishuroy/storybook-orderflow/internal/metrics"
	"github.com/imrishuroy/storybook-orderflow/internal/orders"
)

// UploadIssuer issues presigned upload tickets. blobstore.S3Store satisfies it.
type UploadIssuer interface {
	RequestUploadURL(ctx context.Context, contentType string) (blobstore.Ticket, error)
	RequestUploadURLs(ctx context.Context, n int, contentType string) ([]blobstore.Ticket, error)
}

// HandlerConfig groups dependencies for the route handlers.
type HandlerConfig struct {
	Orders  *orders.Service
	Uploads UploadIssuer
	// Metrics is optional.
	Metrics *metrics.Metrics
	Logger  *log.Entry
}

func (cfg HandlerConfig) logger() *log.Entry {
	if cfg.Logger == nil {
		return log.NewEntry(log.StandardLogger())
	}
	return cfg.Logger
}
